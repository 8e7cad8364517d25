// Package clipwatch provides a selection-capture daemon that orchestrates
// Chrome as a disposable component. It observes user text selections on
// open pages, queues them as pending highlights, runs the confirmation
// workflow, and delivers confirmed batches to a spreadsheet webhook.
//
// clipwatch captures, it does not interpret. The remote endpoint is an
// opaque write-only sink; rendering is left to the page agent and the
// HTTP surface's consumers.
package clipwatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/clipwatch/highlight"
	"github.com/hazyhaar/clipwatch/internal/browser"
	"github.com/hazyhaar/clipwatch/internal/config"
	"github.com/hazyhaar/clipwatch/internal/delivery"
	"github.com/hazyhaar/clipwatch/internal/history"
	"github.com/hazyhaar/clipwatch/internal/markdown"
	"github.com/hazyhaar/clipwatch/internal/observer"
	"github.com/hazyhaar/clipwatch/internal/pending"
	"github.com/hazyhaar/clipwatch/internal/session"
	"github.com/hazyhaar/clipwatch/internal/sheets"
)

// Watcher is the top-level orchestrator: browser, page observers,
// pending store, confirmation session, delivery pipeline, sheet
// registry. Create one per clipwatch instance.
type Watcher struct {
	cfg      *config.Config
	mgr      *browser.Manager
	store    *pending.Store
	session  *session.Session
	registry *sheets.Store
	archive  *history.Store

	md          *markdown.Converter
	triggerCore *observer.Core // context-menu path, no page agent

	mu        sync.Mutex
	observers map[string]*observer.Observer // keyed by page ID
	notice    *session.Notice
	noticeAt  time.Time
	sweepStop chan struct{}

	logger *slog.Logger
}

// New creates a Watcher from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry, err := sheets.Open(cfg.Sheets.Path)
	if err != nil {
		return nil, fmt.Errorf("clipwatch: open sheet registry: %w", err)
	}
	archive, err := history.New(registry.DB())
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("clipwatch: open history: %w", err)
	}

	mode := delivery.ModeReadable
	if cfg.Delivery.Mode == "fire_and_forget" {
		mode = delivery.ModeFireAndForget
	}
	var endpoint delivery.Endpoint = delivery.NewHTTPEndpoint(cfg.Delivery.URL,
		delivery.WithMode(mode),
		delivery.WithLogger(logger),
	)
	endpoint = delivery.WithRelayRetry(endpoint,
		cfg.Delivery.RelayRetries, cfg.Delivery.RelayBackoff, logger)

	pipe := delivery.New(delivery.Config{
		Endpoint: endpoint,
		Attempts: cfg.Delivery.Attempts,
		Delay:    cfg.Delivery.Delay,
		Logger:   logger,
	})

	store := pending.New(pending.Config{
		MaxAge: cfg.Pending.MaxAge,
		Logger: logger,
	})

	w := &Watcher{
		cfg:       cfg,
		mgr:       browser.NewManager(browser.Config{RemoteURL: cfg.Browser.Remote, Stealth: cfg.Browser.Stealth, Logger: logger}),
		store:     store,
		registry:  registry,
		archive:   archive,
		observers: make(map[string]*observer.Observer),
		sweepStop: make(chan struct{}),
		logger:    logger,
	}

	if cfg.Capture.Markdown {
		w.md = markdown.New()
	}
	w.triggerCore = observer.NewCore(observer.CoreConfig{
		DedupWindow: cfg.Capture.DedupWindow,
		Markdown:    w.md,
		Logger:      logger,
	})

	w.session = session.New(session.Config{
		Store:       store,
		Deliver:     pipe,
		OnNotice:    w.setNotice,
		OnDelivered: w.recordDelivered,
		Logger:      logger,
	})
	store.OnEmpty(w.session.HandleStoreEmptied)

	return w, nil
}

// Start launches the browser and begins observing all configured pages.
// The stale-entry sweeper runs regardless of pages: the context-menu
// path fills the store even with no observed page.
func (w *Watcher) Start(ctx context.Context) error {
	go w.store.Sweep(w.cfg.Pending.SweepInterval, w.sweepStop)

	if len(w.cfg.Pages) == 0 && w.cfg.Browser.Remote == "" {
		w.logger.Info("clipwatch: no pages configured, browser not started")
		return nil
	}

	if _, err := w.mgr.Start(ctx); err != nil {
		return fmt.Errorf("clipwatch: start browser: %w", err)
	}

	for _, page := range w.cfg.Pages {
		if err := w.ObservePage(ctx, page); err != nil {
			w.logger.Error("clipwatch: failed to observe page",
				"url", page.URL, "error", err)
		}
	}
	return nil
}

// ObservePage starts selection observation on a single page.
func (w *Watcher) ObservePage(ctx context.Context, pageCfg config.PageConfig) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tab, err := browser.OpenTab(ctx, w.mgr, pageCfg.URL, pageCfg.ID)
	if err != nil {
		return fmt.Errorf("clipwatch: open tab: %w", err)
	}

	core := observer.NewCore(observer.CoreConfig{
		DedupWindow: w.cfg.Capture.DedupWindow,
		Markdown:    w.md,
		Logger:      w.logger,
	})

	obs := observer.New(observer.Config{
		Tab:           tab,
		Core:          core,
		QuietPeriod:   w.cfg.Capture.QuietPeriod,
		RelocateDelay: w.cfg.Capture.RelocateDelay,
		Events: observer.Events{
			Captured: w.onCaptured,
			Invoke:   w.onInvoke,
		},
		Logger: w.logger,
	})
	obs.SetContext(ctx)

	if err := obs.Start(); err != nil {
		tab.Close()
		return fmt.Errorf("clipwatch: start observer: %w", err)
	}

	w.observers[pageCfg.ID] = obs
	return nil
}

// CaptureText is the context-menu trigger path: text arrives with no
// open page selection (and possibly no page context at all). Invalid or
// duplicate text is silently ignored, mirroring in-page capture.
func (w *Watcher) CaptureText(text, pageURL, pageTitle string) (highlight.Record, bool) {
	rec, ok := w.triggerCore.Evaluate(observer.Capture{
		Text:      text,
		PageURL:   pageURL,
		PageTitle: pageTitle,
	})
	if !ok {
		return highlight.Record{}, false
	}
	w.store.Add(rec)
	w.logger.Info("clipwatch: captured via trigger", "id", rec.ID, "chars", len(rec.Text))
	return rec, true
}

// Stop gracefully shuts down observers, sweeper, registry and browser.
func (w *Watcher) Stop() {
	w.mu.Lock()
	for id, obs := range w.observers {
		obs.Stop()
		w.logger.Info("clipwatch: stopped observer", "id", id)
	}
	w.observers = make(map[string]*observer.Observer)
	close(w.sweepStop)
	w.mu.Unlock()

	if err := w.registry.Close(); err != nil {
		w.logger.Warn("clipwatch: close registry", "error", err)
	}
	w.mgr.Close()
}

// Pending exposes the pending-highlight store to the HTTP surface.
func (w *Watcher) Pending() *pending.Store { return w.store }

// Session exposes the confirmation session controller.
func (w *Watcher) Session() *session.Session { return w.session }

// Sheets exposes the sheet registry.
func (w *Watcher) Sheets() *sheets.Store { return w.registry }

// History exposes the delivered-highlight archive.
func (w *Watcher) History() *history.Store { return w.archive }

func (w *Watcher) recordDelivered(batch []highlight.Record, tags []string, sheetID string, submittedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.archive.RecordBatch(ctx, batch, tags, sheetID, submittedAt); err != nil {
		// Delivery already succeeded; the archive is best-effort.
		w.logger.Warn("clipwatch: history record failed", "error", err)
	}
}

// Notice returns the current transient notice, or nil once it expired
// or none is up.
func (w *Watcher) Notice() *session.Notice {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.notice == nil {
		return nil
	}
	if w.notice.AutoDismiss > 0 && time.Since(w.noticeAt) > w.notice.AutoDismiss {
		w.notice = nil
		return nil
	}
	n := *w.notice
	return &n
}

// ApplyConfig absorbs a hot-reloaded configuration. Only the runtime
// knobs move: endpoint and browser changes need a restart.
func (w *Watcher) ApplyConfig(cfg *config.Config) {
	w.store.SetMaxAge(cfg.Pending.MaxAge)
	w.store.SetSweepInterval(cfg.Pending.SweepInterval)
	w.triggerCore.SetDedupWindow(cfg.Capture.DedupWindow)

	w.mu.Lock()
	for _, obs := range w.observers {
		obs.SetDedupWindow(cfg.Capture.DedupWindow)
	}
	w.cfg.Pending = cfg.Pending
	w.cfg.Capture.DedupWindow = cfg.Capture.DedupWindow
	w.mu.Unlock()

	w.logger.Info("clipwatch: runtime config applied",
		"max_age", cfg.Pending.MaxAge,
		"sweep_interval", cfg.Pending.SweepInterval,
		"dedup_window", cfg.Capture.DedupWindow)
}

func (w *Watcher) onCaptured(rec highlight.Record) {
	w.store.Add(rec)
	w.logger.Info("clipwatch: highlight captured",
		"id", rec.ID, "chars", len(rec.Text), "url", rec.PageURL)
}

func (w *Watcher) onInvoke() {
	if err := w.session.Begin(); err != nil {
		w.logger.Warn("clipwatch: review not started", "error", err)
	}
}

func (w *Watcher) setNotice(n session.Notice) {
	w.mu.Lock()
	w.notice = &n
	w.noticeAt = time.Now()
	w.mu.Unlock()
}
