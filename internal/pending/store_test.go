package pending

import (
	"fmt"
	"testing"
	"time"

	"github.com/hazyhaar/clipwatch/highlight"
)

func rec(id string, at time.Time) highlight.Record {
	return highlight.Record{ID: id, Text: "text " + id, CapturedAt: at}
}

func TestAdd_PreservesOrder(t *testing.T) {
	s := New(Config{})
	now := time.Now()
	for i := 0; i < 5; i++ {
		s.Add(rec(fmt.Sprintf("hl_%d", i), now))
	}

	snap := s.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("len: got %d, want 5", len(snap))
	}
	for i, r := range snap {
		want := fmt.Sprintf("hl_%d", i)
		if r.ID != want {
			t.Errorf("order[%d]: got %q, want %q", i, r.ID, want)
		}
	}
}

func TestAdd_FirstCaptureWins(t *testing.T) {
	s := New(Config{})
	s.Add(highlight.Record{ID: "hl_1", Text: "first"})
	s.Add(highlight.Record{ID: "hl_1", Text: "second"})

	if s.Len() != 1 {
		t.Fatalf("len: got %d, want 1", s.Len())
	}
	got, _ := s.Get("hl_1")
	if got.Text != "first" {
		t.Errorf("Text: got %q, want %q", got.Text, "first")
	}
}

func TestRemove_FiresOnEmpty(t *testing.T) {
	s := New(Config{})
	var fired int
	s.OnEmpty(func() { fired++ })

	now := time.Now()
	s.Add(rec("a", now))
	s.Add(rec("b", now))

	if !s.Remove("a") {
		t.Fatal("Remove(a): got false")
	}
	if fired != 0 {
		t.Fatalf("OnEmpty fired early (store not drained)")
	}
	if !s.Remove("b") {
		t.Fatal("Remove(b): got false")
	}
	if fired != 1 {
		t.Errorf("OnEmpty: fired %d times, want 1", fired)
	}
	if s.Remove("b") {
		t.Error("Remove of missing id: got true")
	}
	if fired != 1 {
		t.Errorf("OnEmpty after no-op removal: fired %d times, want 1", fired)
	}
}

func TestClear(t *testing.T) {
	s := New(Config{})
	var fired int
	s.OnEmpty(func() { fired++ })

	s.Add(rec("a", time.Now()))
	s.Clear()

	if s.Len() != 0 {
		t.Errorf("len after clear: got %d, want 0", s.Len())
	}
	if fired != 0 {
		t.Error("Clear must not fire OnEmpty")
	}
}

func TestEvictStale(t *testing.T) {
	s := New(Config{MaxAge: 30 * time.Minute})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.Add(rec("old", base.Add(-45*time.Minute)))
	s.Add(rec("fresh", base.Add(-5*time.Minute)))

	if n := s.EvictStale(); n != 1 {
		t.Fatalf("evicted: got %d, want 1", n)
	}
	if _, ok := s.Get("old"); ok {
		t.Error("stale entry survived eviction")
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Error("fresh entry was evicted")
	}
}

func TestEvictStale_SkipsHeld(t *testing.T) {
	s := New(Config{MaxAge: 30 * time.Minute})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.Add(rec("reviewed", base.Add(-time.Hour)))
	s.Hold([]string{"reviewed"})

	if n := s.EvictStale(); n != 0 {
		t.Fatalf("evicted: got %d, want 0 (held)", n)
	}

	s.Release()
	if n := s.EvictStale(); n != 1 {
		t.Fatalf("evicted after release: got %d, want 1", n)
	}
}

func TestSetMaxAge_TakesEffectLive(t *testing.T) {
	s := New(Config{MaxAge: time.Hour})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.Add(rec("aging", base.Add(-20*time.Minute)))
	if n := s.EvictStale(); n != 0 {
		t.Fatalf("evicted under 1h age: got %d, want 0", n)
	}

	s.SetMaxAge(10 * time.Minute)
	if n := s.EvictStale(); n != 1 {
		t.Fatalf("evicted after retune: got %d, want 1", n)
	}

	// Non-positive retunes are ignored.
	s.SetMaxAge(0)
	s.Add(rec("fresh", base.Add(-5*time.Minute)))
	if n := s.EvictStale(); n != 0 {
		t.Errorf("evicted with 10m age kept: got %d, want 0", n)
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	s := New(Config{})
	s.Add(rec("a", time.Now()))

	snap := s.Snapshot()
	snap[0].Text = "mutated"

	got, _ := s.Get("a")
	if got.Text == "mutated" {
		t.Error("Snapshot aliases store contents")
	}
}
