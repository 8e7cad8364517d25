package observer

import (
	"sync"
	"time"
)

// deduper suppresses re-captures of the text most recently captured.
// Incidental DOM events (a keyup right after the pointerup that made the
// selection) re-fire the same logical selection; inside the window those
// are one capture, not two.
type deduper struct {
	mu       sync.Mutex
	window   time.Duration
	lastText string
	lastAt   time.Time
}

func newDeduper(window time.Duration) *deduper {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &deduper{window: window}
}

// setWindow retunes the suppression window at runtime.
func (d *deduper) setWindow(window time.Duration) {
	if window <= 0 {
		return
	}
	d.mu.Lock()
	d.window = window
	d.mu.Unlock()
}

// isDuplicate reports whether text equals the most recent accepted
// capture and arrived inside the window. The window is measured from the
// accepted capture: dropped duplicates do not extend it, so re-selecting
// the same text later produces a fresh record.
func (d *deduper) isDuplicate(text string, at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return text == d.lastText && at.Sub(d.lastAt) < d.window
}

// remember registers an accepted capture.
func (d *deduper) remember(text string, at time.Time) {
	d.mu.Lock()
	d.lastText = text
	d.lastAt = at
	d.mu.Unlock()
}
