// Package observer converts raw selection events from an injected page
// agent into validated highlight records: debounce → validate → dedupe →
// emit. The presentation half lives in selection.js; everything with
// state or failure semantics lives here.
package observer

import (
	"log/slog"
	"time"

	"github.com/hazyhaar/clipwatch/highlight"
	"github.com/hazyhaar/clipwatch/idgen"
	"github.com/hazyhaar/clipwatch/internal/markdown"
)

// Capture is one raw event reported by the page agent (or by the
// context-menu trigger collaborator, which carries only text).
type Capture struct {
	Kind      string         `json:"kind"` // selection | cleared | invoke
	Text      string         `json:"text,omitempty"`
	HTML      string         `json:"html,omitempty"`
	Rect      highlight.Rect `json:"rect,omitzero"`
	PageURL   string         `json:"url,omitempty"`
	PageTitle string         `json:"title,omitempty"`
}

// Events receives the observer's output. Callbacks run on the observer
// loop; keep them quick.
type Events struct {
	// Captured fires once per validated, non-duplicate selection.
	Captured func(highlight.Record)
	// Cleared fires when the selection is dismissed or invalidated.
	Cleared func()
	// Invoke fires when the user clicks the capture affordance.
	Invoke func()
}

// Core evaluates captures independently of any browser plumbing. The
// daemon keeps one per page observer plus one for the context-menu path.
type Core struct {
	dedup *deduper
	md    *markdown.Converter // nil: plain-text capture only
	newID idgen.Generator
	log   *slog.Logger
	now   func() time.Time
}

// CoreConfig for NewCore.
type CoreConfig struct {
	// DedupWindow suppresses re-captures of identical text. Default: 2s.
	DedupWindow time.Duration
	// Markdown enables fragment conversion.
	Markdown *markdown.Converter
	// NewID generates record ids. Default: "hl_"-prefixed UUIDv7.
	NewID  idgen.Generator
	Logger *slog.Logger
}

// NewCore creates a capture evaluator.
func NewCore(cfg CoreConfig) *Core {
	if cfg.NewID == nil {
		cfg.NewID = idgen.Prefixed("hl_", idgen.Default)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Core{
		dedup: newDeduper(cfg.DedupWindow),
		md:    cfg.Markdown,
		newID: cfg.NewID,
		log:   cfg.Logger,
		now:   time.Now,
	}
}

// SetDedupWindow retunes the duplicate-suppression window at runtime.
func (c *Core) SetDedupWindow(d time.Duration) {
	c.dedup.setWindow(d)
}

// Evaluate validates and deduplicates one selection capture. It returns
// the new record and true, or a zero record and false when the capture
// is invalid or a duplicate. Invalid captures are recovered locally: no
// record, no error surfaced, the affordance simply never registers.
func (c *Core) Evaluate(cap Capture) (highlight.Record, bool) {
	text, err := highlight.CleanText(cap.Text)
	if err != nil {
		c.log.Debug("observer: capture dropped", "reason", err)
		return highlight.Record{}, false
	}

	at := c.now()
	if c.dedup.isDuplicate(text, at) {
		c.log.Debug("observer: duplicate capture suppressed")
		return highlight.Record{}, false
	}

	rec := highlight.Record{
		ID:         c.newID(),
		Text:       text,
		AnchorRect: cap.Rect,
		CapturedAt: at,
		PageURL:    cap.PageURL,
		PageTitle:  cap.PageTitle,
	}

	if c.md != nil && cap.HTML != "" {
		md, err := c.md.Convert(cap.HTML, cap.PageURL)
		if err != nil {
			// Markdown is best-effort; plain text always survives.
			c.log.Warn("observer: fragment conversion failed", "error", err)
		} else {
			rec.Markdown = md
		}
	}

	c.dedup.remember(text, at)
	return rec, true
}
