// Package sheets is the persistent registry of destination sheets: the
// user-defined {id, name} buckets a highlight can be filed into, plus the
// default choice. Any keyed store satisfies the contract; this one is
// SQLite so definitions survive daemon restarts.
package sheets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/clipwatch/highlight"
	"github.com/hazyhaar/clipwatch/idgen"
)

// Sheet is one destination bucket.
type Sheet struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// ErrNotFound reports an unknown sheet id.
var ErrNotFound = errors.New("sheets: not found")

// Store is the registry handle.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
}

// Open opens (or creates) the registry database at path with the
// production pragmas (WAL, foreign keys, busy timeout) applied via EXEC,
// applies the schema, and seeds the "default" sheet.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sheets: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sheets: open: %w", err)
	}
	if path == ":memory:" {
		// Each in-memory connection is a distinct database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sheets: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sheets: apply schema: %w", err)
	}

	s := &Store{db: db, newID: idgen.Prefixed("sheet_", idgen.Default)}
	if err := s.seedDefault(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle so sibling stores can share the file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// seedDefault ensures the built-in default sheet exists and is the
// default when none was ever chosen.
func (s *Store) seedDefault(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sheets (id, name, created_at)
		VALUES (?, 'Default', ?)`,
		highlight.DefaultSheetID, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sheets: seed default: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO settings (key, value)
		VALUES ('default_sheet', ?)`,
		highlight.DefaultSheetID,
	)
	if err != nil {
		return fmt.Errorf("sheets: seed default setting: %w", err)
	}
	return nil
}

// List returns all sheets ordered by name.
func (s *Store) List(ctx context.Context) ([]Sheet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at FROM sheets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sheet
	for rows.Next() {
		var sh Sheet
		if err := rows.Scan(&sh.ID, &sh.Name, &sh.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// Get retrieves one sheet.
func (s *Store) Get(ctx context.Context, id string) (*Sheet, error) {
	var sh Sheet
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM sheets WHERE id = ?`, id).
		Scan(&sh.ID, &sh.Name, &sh.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// Add creates a sheet from a display name and returns it.
func (s *Store) Add(ctx context.Context, name string) (*Sheet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("sheets: name is required")
	}

	sh := Sheet{ID: s.newID(), Name: name, CreatedAt: time.Now().UnixMilli()}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sheets (id, name, created_at) VALUES (?,?,?)`,
		sh.ID, sh.Name, sh.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("sheets: insert: %w", err)
	}
	return &sh, nil
}

// Remove deletes a sheet. The built-in default sheet cannot be removed;
// if the removed sheet was the default, the default falls back to the
// built-in one.
func (s *Store) Remove(ctx context.Context, id string) error {
	if id == highlight.DefaultSheetID {
		return errors.New("sheets: cannot remove the built-in default sheet")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM sheets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE settings SET value = ? WHERE key = 'default_sheet' AND value = ?`,
		highlight.DefaultSheetID, id,
	)
	return err
}

// DefaultSheet returns the id of the current default sheet.
func (s *Store) DefaultSheet(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM settings WHERE key = 'default_sheet'`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return highlight.DefaultSheetID, nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// SetDefaultSheet makes id the default. The sheet must exist.
func (s *Store) SetDefaultSheet(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ('default_sheet', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, id)
	return err
}
