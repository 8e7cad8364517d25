// Package pending holds captured highlights awaiting user confirmation.
//
// The store is an ordered id → record mapping: iteration follows insertion
// order so the review UI lists highlights in capture order. Staleness
// eviction lives here too; everything else (dedupe, validation) happens
// upstream in the observer.
package pending

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/clipwatch/highlight"
)

// Config controls store behaviour.
type Config struct {
	// MaxAge evicts unconfirmed entries older than this. Default: 30m.
	MaxAge time.Duration
	// Logger for eviction events. Default: slog.Default().
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxAge <= 0 {
		c.MaxAge = 30 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Store is the pending-highlight queue. Safe for use from the observer
// loop and the HTTP surface concurrently.
type Store struct {
	mu         sync.Mutex
	order      []string
	items      map[string]highlight.Record
	held       map[string]struct{} // under review: exempt from eviction
	cfg        Config
	sweepEvery time.Duration
	onEmpty    func()
	now        func() time.Time
}

// New creates an empty store.
func New(cfg Config) *Store {
	cfg.defaults()
	return &Store{
		items: make(map[string]highlight.Record),
		held:  make(map[string]struct{}),
		cfg:   cfg,
		now:   time.Now,
	}
}

// OnEmpty registers a callback invoked whenever a removal drains the
// store. The confirmation session uses it to dismiss its UI when the
// last item under review is deleted.
func (s *Store) OnEmpty(fn func()) {
	s.mu.Lock()
	s.onEmpty = fn
	s.mu.Unlock()
}

// Add inserts a record, preserving insertion order. Re-adding an existing
// id is a no-op: the first capture wins.
func (s *Store) Add(rec highlight.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[rec.ID]; ok {
		return
	}
	s.items[rec.ID] = rec
	s.order = append(s.order, rec.ID)
}

// Get returns the record for id, if present.
func (s *Store) Get(id string) (highlight.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[id]
	return rec, ok
}

// Remove deletes one entry. Returns whether it existed. If the removal
// drains the store the OnEmpty callback fires (outside the lock).
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	_, ok := s.items[id]
	if ok {
		s.deleteLocked(id)
	}
	empty := len(s.items) == 0
	fn := s.onEmpty
	s.mu.Unlock()

	if ok && empty && fn != nil {
		fn()
	}
	return ok
}

// Clear empties the store. Called after a terminal outcome: successful
// submission, user cancel, or abandonment. Does not fire OnEmpty — the
// caller already knows.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.items = make(map[string]highlight.Record)
	s.held = make(map[string]struct{})
}

// Len reports the number of pending records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Snapshot returns the records in insertion order. The slice is a copy;
// mutating it does not affect the store.
func (s *Store) Snapshot() []highlight.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]highlight.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// Hold marks the given ids as under review, exempting them from
// staleness eviction until Release.
func (s *Store) Hold(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.held[id] = struct{}{}
	}
}

// Release lifts all review holds.
func (s *Store) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = make(map[string]struct{})
}

// EvictStale silently drops entries older than MaxAge, skipping held
// ones. Returns the number evicted.
func (s *Store) EvictStale() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.cfg.MaxAge)
	var evicted int
	kept := s.order[:0]
	for _, id := range s.order {
		rec := s.items[id]
		_, held := s.held[id]
		if !held && rec.CapturedAt.Before(cutoff) {
			delete(s.items, id)
			evicted++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept

	if evicted > 0 {
		s.cfg.Logger.Info("pending: evicted stale highlights",
			"count", evicted, "max_age", s.cfg.MaxAge)
	}
	return evicted
}

// SetMaxAge retunes the eviction age at runtime. Non-positive values
// are ignored.
func (s *Store) SetMaxAge(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.cfg.MaxAge = d
	s.mu.Unlock()
}

// SetSweepInterval retunes the sweep cadence; the running Sweep picks it
// up on its next cycle. Non-positive values are ignored.
func (s *Store) SetSweepInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.sweepEvery = d
	s.mu.Unlock()
}

// Sweep runs EvictStale periodically until the stop channel closes. The
// interval is re-read each cycle so SetSweepInterval takes effect live.
func (s *Store) Sweep(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.mu.Lock()
	s.sweepEvery = interval
	s.mu.Unlock()
	for {
		s.mu.Lock()
		d := s.sweepEvery
		s.mu.Unlock()
		t := time.NewTimer(d)
		select {
		case <-stop:
			t.Stop()
			return
		case <-t.C:
			s.EvictStale()
		}
	}
}

func (s *Store) deleteLocked(id string) {
	delete(s.items, id)
	delete(s.held, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
