package observer

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/clipwatch/internal/browser"
)

//go:embed selection.js
var selectionJS []byte

// bindingName is the Runtime binding selection.js reports through.
const bindingName = "__clipwatch_binding"

// Observer manages selection observation for a single page: it injects
// the page agent, receives raw events over the binding, and runs the
// debounce → evaluate loop.
type Observer struct {
	tab    *browser.Tab
	core   *Core
	events Events
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	rawCh     chan Capture
	debouncer *debouncer
	relocate  time.Duration
}

// Config for creating an Observer.
type Config struct {
	Tab  *browser.Tab
	Core *Core
	// QuietPeriod coalesces rapid selection changes. Default: 100ms.
	QuietPeriod time.Duration
	// RelocateDelay is passed to the page agent for anchor re-evaluation
	// after scroll/resize. Default: 150ms.
	RelocateDelay time.Duration
	Events        Events
	Logger        *slog.Logger
}

// New creates an Observer for the given tab.
func New(cfg Config) *Observer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RelocateDelay <= 0 {
		cfg.RelocateDelay = 150 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Observer{
		tab:       cfg.Tab,
		core:      cfg.Core,
		events:    cfg.Events,
		logger:    cfg.Logger,
		ctx:       ctx,
		cancel:    cancel,
		rawCh:     make(chan Capture, 256),
		debouncer: newDebouncer(cfg.QuietPeriod),
		relocate:  cfg.RelocateDelay,
	}
}

// SetContext lets the parent watcher pass its context.
func (o *Observer) SetContext(ctx context.Context) {
	o.ctx, o.cancel = context.WithCancel(ctx)
}

// Start injects the page agent and begins processing events.
func (o *Observer) Start() error {
	err := proto.RuntimeAddBinding{Name: bindingName}.Call(o.tab.Page)
	if err != nil {
		o.logger.Warn("observer: addBinding failed (may already exist)", "error", err)
	}

	go o.listenBinding()

	setup := fmt.Sprintf("window.__clipwatch_relocate_ms = %d;", o.relocate.Milliseconds())
	if _, err := o.tab.Page.Eval(setup); err != nil {
		o.logger.Warn("observer: set relocate delay failed", "error", err)
	}
	if _, err := o.tab.Page.Eval(string(selectionJS)); err != nil {
		return fmt.Errorf("observer: inject selection.js: %w", err)
	}

	go o.loop()

	o.logger.Info("observer: watching selections",
		"url", o.tab.PageURL, "id", o.tab.PageID)
	return nil
}

// Stop ends observation. Buffered raw events are discarded: an
// unconfirmed selection mid-debounce is not worth keeping.
func (o *Observer) Stop() {
	o.cancel()
}

// SetDedupWindow retunes this page's duplicate-suppression window.
func (o *Observer) SetDedupWindow(d time.Duration) {
	o.core.SetDedupWindow(d)
}

// listenBinding receives page-agent calls via Runtime.bindingCalled.
func (o *Observer) listenBinding() {
	page := o.tab.Page
	page.Context(o.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}

		var events []Capture
		if err := json.Unmarshal([]byte(e.Payload), &events); err != nil {
			o.logger.Warn("observer: parse binding payload", "error", err)
			return
		}
		for _, ev := range events {
			if ev.PageURL == "" {
				ev.PageURL = o.tab.PageURL
			}
			select {
			case o.rawCh <- ev:
			default:
				o.logger.Warn("observer: raw event buffer full, dropping")
			}
		}
	})()
}

// loop is the observer event loop: raw events in, debounced evaluations
// out. Clears and invokes bypass the debounce — they are user actions,
// not selection churn.
func (o *Observer) loop() {
	for {
		select {
		case <-o.ctx.Done():
			return

		case ev := <-o.rawCh:
			switch ev.Kind {
			case "selection":
				o.debouncer.add(ev)
			case "cleared":
				o.debouncer.take() // drop any buffered selection
				if o.events.Cleared != nil {
					o.events.Cleared()
				}
			case "invoke":
				if o.events.Invoke != nil {
					o.events.Invoke()
				}
			default:
				o.logger.Warn("observer: unknown event kind", "kind", ev.Kind)
			}

		case <-o.debouncer.timerC():
			ev := o.debouncer.take()
			if ev == nil {
				continue
			}
			if rec, ok := o.core.Evaluate(*ev); ok {
				if o.events.Captured != nil {
					o.events.Captured(rec)
				}
			} else if o.events.Cleared != nil {
				// Invalid capture: hide the affordance, register nothing.
				o.events.Cleared()
			}
		}
	}
}
