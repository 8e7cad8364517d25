package sheets

import (
	"context"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/clipwatch/highlight"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_SeedsDefault(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sheets, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sheets) != 1 || sheets[0].ID != highlight.DefaultSheetID {
		t.Fatalf("seeded sheets: got %+v, want the built-in default", sheets)
	}

	def, err := s.DefaultSheet(ctx)
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if def != highlight.DefaultSheetID {
		t.Errorf("default: got %q, want %q", def, highlight.DefaultSheetID)
	}
}

func TestAddListRemove(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	work, err := s.Add(ctx, "  Work  ")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if work.Name != "Work" {
		t.Errorf("Name: got %q, want trimmed %q", work.Name, "Work")
	}

	got, err := s.Get(ctx, work.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Work" {
		t.Errorf("get Name: got %q", got.Name)
	}

	if err := s.Remove(ctx, work.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Get(ctx, work.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after remove: got %v, want ErrNotFound", err)
	}
	if err := s.Remove(ctx, work.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double remove: got %v, want ErrNotFound", err)
	}
}

func TestAdd_RequiresName(t *testing.T) {
	s := testStore(t)
	if _, err := s.Add(context.Background(), "   "); err == nil {
		t.Error("Add accepted a blank name")
	}
}

func TestDefaultSheet_SetAndFallback(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	work, err := s.Add(ctx, "Work")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.SetDefaultSheet(ctx, work.ID); err != nil {
		t.Fatalf("set default: %v", err)
	}
	def, _ := s.DefaultSheet(ctx)
	if def != work.ID {
		t.Errorf("default: got %q, want %q", def, work.ID)
	}

	// Unknown sheet cannot become the default.
	if err := s.SetDefaultSheet(ctx, "sheet_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("set unknown default: got %v, want ErrNotFound", err)
	}

	// Removing the default falls back to the built-in sheet.
	if err := s.Remove(ctx, work.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	def, _ = s.DefaultSheet(ctx)
	if def != highlight.DefaultSheetID {
		t.Errorf("default after removal: got %q, want %q", def, highlight.DefaultSheetID)
	}
}

func TestRemove_BuiltinDefaultProtected(t *testing.T) {
	s := testStore(t)
	if err := s.Remove(context.Background(), highlight.DefaultSheetID); err == nil {
		t.Error("removed the built-in default sheet")
	}
}
