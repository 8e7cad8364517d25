// Package highlight defines the structured types produced by clipwatch.
// These are the public API contract: the pending store, the confirmation
// session and the delivery pipeline all exchange these values, and any
// custom consumer imports this package to process captured selections.
package highlight

import (
	"errors"
	"strings"
	"time"
)

// MaxTextLen is the upper bound on captured selection text, in bytes.
// Selections above this are dropped at capture time, never truncated.
const MaxTextLen = 50_000

// DefaultSheetID is the destination used when the user never picked one.
const DefaultSheetID = "default"

// Rect is the bounding rectangle of a selection at capture time, in page
// coordinates. Used only for transient affordance placement; never sent
// to the remote store.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Record is one captured selection awaiting (or undergoing) delivery.
//
// Text, AnchorRect and CapturedAt are fixed at capture time. Tags and
// SheetID stay mutable until the record is handed to the delivery
// pipeline; SubmittedAt is stamped at submission.
type Record struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Markdown   string    `json:"markdown,omitempty"` // sanitised fragment, when rich capture is on
	AnchorRect Rect      `json:"anchor_rect"`
	CapturedAt time.Time `json:"captured_at"`

	Tags    []string `json:"tags,omitempty"`
	SheetID string   `json:"sheet_id,omitempty"`

	PageTitle   string    `json:"page_title,omitempty"`
	PageURL     string    `json:"page_url,omitempty"`
	SubmittedAt time.Time `json:"submitted_at,omitzero"`
}

// Payload is the wire shape accepted by the remote endpoint, one object
// per call. Timestamp is ISO-8601 (RFC 3339).
type Payload struct {
	SelectedText string   `json:"selectedText"`
	PageTitle    string   `json:"pageTitle"`
	PageURL      string   `json:"pageUrl"`
	Timestamp    string   `json:"timestamp"`
	Tags         []string `json:"tags"`
	SheetID      string   `json:"sheetId"`
}

// ErrEmptyText and ErrTextTooLong classify invalid captures. Both are
// recovered locally: no record is created and no affordance is shown.
var (
	ErrEmptyText   = errors.New("highlight: empty selection text")
	ErrTextTooLong = errors.New("highlight: selection text exceeds limit")
)

// CleanText trims the raw selection and validates its bounds. The length
// check applies to the raw input: an oversized selection is rejected even
// if trimming would bring it under the limit.
func CleanText(raw string) (string, error) {
	if len(raw) > MaxTextLen {
		return "", ErrTextTooLong
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

// Finalize stamps the late-bound fields and returns the wire payload.
// Tags and sheet come from the confirmation batch, not the record, so a
// batch-wide choice applies uniformly.
func (r Record) Finalize(tags []string, sheetID string, submittedAt time.Time) Payload {
	if sheetID == "" {
		sheetID = DefaultSheetID
	}
	if tags == nil {
		tags = []string{}
	}
	return Payload{
		SelectedText: r.Text,
		PageTitle:    r.PageTitle,
		PageURL:      r.PageURL,
		Timestamp:    submittedAt.UTC().Format(time.RFC3339),
		Tags:         tags,
		SheetID:      sheetID,
	}
}
