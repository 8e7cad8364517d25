// Package session drives the confirmation workflow: review the pending
// highlights, collect tags and a destination sheet, submit.
//
// State machine: Idle → Reviewing → Submitting → {Succeeded | Failed}.
// Success and cancel return to Idle; Failed keeps the batch and re-enters
// Submitting on manual retry, so the user never re-enters tags or
// selections after a delivery failure.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/clipwatch/highlight"
	"github.com/hazyhaar/clipwatch/internal/delivery"
	"github.com/hazyhaar/clipwatch/internal/pending"
)

// State names the session phases.
type State string

const (
	StateIdle       State = "idle"
	StateReviewing  State = "reviewing"
	StateSubmitting State = "submitting"
	StateFailed     State = "failed"
)

// NoticeKind classifies transient user notices.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success" // auto-dismisses
	NoticeFailure NoticeKind = "failure" // offers a manual retry action
)

// Notice is a transient message for the UI collaborator.
type Notice struct {
	Kind        NoticeKind
	Message     string
	AutoDismiss time.Duration // zero: sticky until acted on
}

// Deliverer sends a finalised batch. Satisfied by *delivery.Pipeline.
type Deliverer interface {
	Deliver(ctx context.Context, batch []highlight.Record, tags []string, sheetID string, submittedAt time.Time) delivery.Result
}

var (
	// ErrNothingPending: Begin with an empty store.
	ErrNothingPending = errors.New("session: no pending highlights")
	// ErrNotReviewing: a review-phase operation outside Reviewing/Failed.
	ErrNotReviewing = errors.New("session: no review in progress")
	// ErrAlreadyActive: Begin while a session is open. At most one
	// session exists at a time.
	ErrAlreadyActive = errors.New("session: already active")
)

// successDismiss is how long the success notice stays up.
const successDismiss = 3 * time.Second

// Session is the single confirmation controller. All state is owned here,
// never ambient: tests construct fresh instances per case.
type Session struct {
	mu     sync.Mutex
	state  State
	store  *pending.Store
	sender Deliverer
	logger *slog.Logger
	now    func() time.Time

	batch   []highlight.Record
	tags    []string
	sheetID string

	// epoch invalidates in-flight submissions: a result is discarded when
	// the epoch moved (cancel) while the network call was out.
	epoch        int
	submitCancel context.CancelFunc
	wg           sync.WaitGroup

	onNotice    func(Notice)
	onDelivered func(batch []highlight.Record, tags []string, sheetID string, submittedAt time.Time)
}

// Config for a Session.
type Config struct {
	Store    *pending.Store
	Deliver  Deliverer
	OnNotice func(Notice) // may be nil
	// OnDelivered observes each fully accepted batch, after the endpoint
	// confirmed it. May be nil.
	OnDelivered func(batch []highlight.Record, tags []string, sheetID string, submittedAt time.Time)
	Logger      *slog.Logger
}

// New creates an idle Session.
func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		state:       StateIdle,
		store:       cfg.Store,
		sender:      cfg.Deliver,
		logger:      cfg.Logger,
		now:         time.Now,
		onNotice:    cfg.OnNotice,
		onDelivered: cfg.OnDelivered,
	}
}

// Begin snapshots the current store contents as the review set and moves
// Idle → Reviewing. New captures keep queueing in the store but never
// merge into the set under review.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrAlreadyActive
	}
	snap := s.store.Snapshot()
	if len(snap) == 0 {
		return ErrNothingPending
	}

	ids := make([]string, len(snap))
	for i, r := range snap {
		ids[i] = r.ID
	}
	s.store.Hold(ids)

	s.batch = snap
	s.tags = nil
	s.sheetID = ""
	s.state = StateReviewing
	s.logger.Info("session: review started", "items", len(snap))
	return nil
}

// RemoveItem drops one highlight from the review set and the store. When
// the set empties the session dismisses itself back to Idle.
func (s *Session) RemoveItem(id string) error {
	s.mu.Lock()

	if s.state != StateReviewing {
		s.mu.Unlock()
		return ErrNotReviewing
	}
	idx := slices.IndexFunc(s.batch, func(r highlight.Record) bool { return r.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotReviewing
	}
	s.batch = slices.Delete(s.batch, idx, idx+1)
	drained := len(s.batch) == 0
	if drained {
		s.resetLocked()
	}
	s.mu.Unlock()

	// Store removal outside the lock: its OnEmpty callback re-enters us.
	s.store.Remove(id)
	if drained {
		s.logger.Info("session: review set emptied, dismissed")
	}
	return nil
}

// AddTag adds a label to the batch. Tags are a set: duplicates (after
// trimming) are ignored. Applies uniformly to every item.
func (s *Session) AddTag(tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing {
		return ErrNotReviewing
	}
	if !slices.Contains(s.tags, tag) {
		s.tags = append(s.tags, tag)
	}
	return nil
}

// RemoveTag drops a label.
func (s *Session) RemoveTag(tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing {
		return ErrNotReviewing
	}
	if i := slices.Index(s.tags, tag); i >= 0 {
		s.tags = slices.Delete(s.tags, i, i+1)
	}
	return nil
}

// SetSheet picks the destination sheet for the whole batch.
func (s *Session) SetSheet(sheetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing {
		return ErrNotReviewing
	}
	s.sheetID = sheetID
	return nil
}

// Confirm moves Reviewing (or Failed, for manual retry) → Submitting and
// starts delivery. Single-flight: a confirm while Submitting is a no-op
// and reports false. At most one submission is ever in flight.
func (s *Session) Confirm() (started bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReviewing, StateFailed:
	default:
		return false
	}

	s.state = StateSubmitting
	s.epoch++
	epoch := s.epoch

	ctx, cancel := context.WithCancel(context.Background())
	s.submitCancel = cancel

	// Manual retry resends the entire original batch: items delivered
	// before a mid-batch failure go again. At-least-once by design.
	batch := slices.Clone(s.batch)
	tags := slices.Clone(s.tags)
	sheetID := s.sheetID
	submittedAt := s.now()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		res := s.sender.Deliver(ctx, batch, tags, sheetID, submittedAt)
		if s.settle(epoch, res) && s.onDelivered != nil {
			if sheetID == "" {
				sheetID = highlight.DefaultSheetID
			}
			s.onDelivered(batch, tags, sheetID, submittedAt)
		}
	}()
	return true
}

// Cancel discards the batch at any point before success and returns to
// Idle. Not an error: a first-class transition. An in-flight network
// call may still complete; its result is discarded via the epoch.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.resetLocked()
	s.mu.Unlock()

	s.store.Clear()
	s.logger.Info("session: cancelled")
}

// HandleStoreEmptied dismisses the review when an external removal (HTTP
// surface, eviction) drained the store mid-review.
func (s *Session) HandleStoreEmptied() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReviewing {
		s.resetLocked()
		s.logger.Info("session: store drained externally, dismissed")
	}
}

// State reports the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Batch returns a copy of the review set.
func (s *Session) Batch() []highlight.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.batch)
}

// Tags returns a copy of the batch tags.
func (s *Session) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tags)
}

// Sheet returns the chosen destination sheet id ("" until picked).
func (s *Session) Sheet() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sheetID
}

// settle applies a delivery result, unless the session moved on. It
// reports whether a success result was applied.
func (s *Session) settle(epoch int, res delivery.Result) bool {
	s.mu.Lock()

	if epoch != s.epoch || s.state != StateSubmitting {
		s.mu.Unlock()
		s.logger.Debug("session: discarding stale delivery result")
		return false
	}

	if res.Err != nil {
		// Batch stays: retry re-enters Submitting, not Reviewing.
		s.state = StateFailed
		s.submitCancel = nil
		s.mu.Unlock()
		s.logger.Warn("session: submission failed",
			"delivered", res.Delivered, "error", res.Err)
		s.notify(Notice{Kind: NoticeFailure, Message: res.Err.Error()})
		return false
	}

	n := len(s.batch)
	s.resetLocked()
	s.mu.Unlock()

	s.store.Clear()
	s.logger.Info("session: submission succeeded", "items", n)
	s.notify(Notice{Kind: NoticeSuccess, Message: "saved", AutoDismiss: successDismiss})
	return true
}

// resetLocked returns to Idle, invalidating any in-flight submission.
func (s *Session) resetLocked() {
	s.epoch++
	if s.submitCancel != nil {
		s.submitCancel()
		s.submitCancel = nil
	}
	s.batch = nil
	s.tags = nil
	s.sheetID = ""
	s.state = StateIdle
	s.store.Release()
}

func (s *Session) notify(n Notice) {
	if s.onNotice != nil {
		s.onNotice(n)
	}
}
