package observer

import "time"

// debouncer coalesces a burst of selection events into one evaluation:
// only the latest event inside a quiet period survives. Unlike a
// batching debouncer, intermediate states are deliberately discarded —
// a selection being dragged out is one logical selection.
type debouncer struct {
	quiet   time.Duration
	latest  *Capture
	timer   *time.Timer
	timerCh <-chan time.Time
}

func newDebouncer(quiet time.Duration) *debouncer {
	if quiet <= 0 {
		quiet = 100 * time.Millisecond
	}
	return &debouncer{quiet: quiet}
}

// add stores the event and (re)starts the quiet-period timer.
func (d *debouncer) add(c Capture) {
	d.latest = &c
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.NewTimer(d.quiet)
	d.timerCh = d.timer.C
}

// timerC is the channel that fires when the quiet period expires. Nil
// while no event is buffered.
func (d *debouncer) timerC() <-chan time.Time {
	return d.timerCh
}

// take returns the buffered event and resets.
func (d *debouncer) take() *Capture {
	c := d.latest
	d.latest = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerCh = nil
	}
	return c
}
