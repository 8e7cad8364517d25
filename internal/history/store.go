// Package history is the archive of delivered highlights. Successful
// batches are appended here after the endpoint accepted them, so the
// user can answer "what did I already file, where, when" without the
// remote sheet. Append-only; rows are never updated.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/clipwatch/highlight"
)

const schema = `
CREATE TABLE IF NOT EXISTS delivered (
	id           TEXT PRIMARY KEY,
	text         TEXT NOT NULL,
	markdown     TEXT NOT NULL DEFAULT '',
	page_title   TEXT NOT NULL DEFAULT '',
	page_url     TEXT NOT NULL DEFAULT '',
	tags         TEXT NOT NULL DEFAULT '[]',
	sheet_id     TEXT NOT NULL,
	captured_at  INTEGER NOT NULL,
	submitted_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_delivered_submitted ON delivered(submitted_at DESC);
CREATE INDEX IF NOT EXISTS idx_delivered_sheet ON delivered(sheet_id);
`

// Entry is one archived highlight.
type Entry struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Markdown    string    `json:"markdown,omitempty"`
	PageTitle   string    `json:"page_title,omitempty"`
	PageURL     string    `json:"page_url,omitempty"`
	Tags        []string  `json:"tags"`
	SheetID     string    `json:"sheet_id"`
	CapturedAt  time.Time `json:"captured_at"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Store is the archive handle. It shares the registry database.
type Store struct {
	db *sql.DB
}

// New applies the schema on the given database.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// RecordBatch archives a delivered batch. tags and sheetID apply to all
// items; submittedAt is the batch submission instant.
func (s *Store) RecordBatch(ctx context.Context, batch []highlight.Record, tags []string, sheetID string, submittedAt time.Time) error {
	if len(batch) == 0 {
		return nil
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("history: marshal tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range batch {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO delivered
			 (id, text, markdown, page_title, page_url, tags, sheet_id, captured_at, submitted_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Text, rec.Markdown, rec.PageTitle, rec.PageURL,
			string(tagsJSON), sheetID, rec.CapturedAt.UnixMilli(), submittedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("history: insert %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

// ListOptions filters Recent.
type ListOptions struct {
	SheetID string // empty: all sheets
	Query   string // substring match on text, case-insensitive
	Limit   int    // default 50, max 500
}

// Recent returns archived highlights, most recently submitted first.
func (s *Store) Recent(ctx context.Context, opts ListOptions) ([]Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	q := `SELECT id, text, markdown, page_title, page_url, tags, sheet_id, captured_at, submitted_at
	      FROM delivered`
	var conds []string
	var args []any
	if opts.SheetID != "" {
		conds = append(conds, "sheet_id = ?")
		args = append(args, opts.SheetID)
	}
	if opts.Query != "" {
		conds = append(conds, "text LIKE ? COLLATE NOCASE")
		args = append(args, "%"+opts.Query+"%")
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY submitted_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var tagsJSON string
		var capturedMs, submittedMs int64
		if err := rows.Scan(&e.ID, &e.Text, &e.Markdown, &e.PageTitle, &e.PageURL,
			&tagsJSON, &e.SheetID, &capturedMs, &submittedMs); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
			e.Tags = nil
		}
		e.CapturedAt = time.UnixMilli(capturedMs).UTC()
		e.SubmittedAt = time.UnixMilli(submittedMs).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of archived highlights.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM delivered`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return n, nil
}
