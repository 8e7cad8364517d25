package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/clipwatch/highlight"
)

// fakeEndpoint records every Send and fails selected texts a fixed
// number of times (or forever with failCount < 0).
type fakeEndpoint struct {
	mu       sync.Mutex
	sent     []highlight.Payload
	failText string
	failLeft int // -1 = always fail
}

func (f *fakeEndpoint) Send(_ context.Context, p highlight.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	if p.SelectedText == f.failText && f.failLeft != 0 {
		if f.failLeft > 0 {
			f.failLeft--
		}
		return errors.New("boom")
	}
	return nil
}

func (f *fakeEndpoint) sendsOf(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int
	for _, p := range f.sent {
		if p.SelectedText == text {
			n++
		}
	}
	return n
}

func noSleep(context.Context, time.Duration) error { return nil }

func batch(texts ...string) []highlight.Record {
	out := make([]highlight.Record, len(texts))
	for i, txt := range texts {
		out[i] = highlight.Record{ID: "hl_" + txt, Text: txt}
	}
	return out
}

func newTestPipeline(ep Endpoint) *Pipeline {
	p := New(Config{Endpoint: ep, Attempts: 3, Delay: time.Millisecond})
	p.sleep = noSleep
	return p
}

func TestDeliver_AllSucceed(t *testing.T) {
	ep := &fakeEndpoint{}
	p := newTestPipeline(ep)

	res := p.Deliver(context.Background(), batch("a", "b", "c"), []string{"tag"}, "work", time.Now())
	if res.Err != nil {
		t.Fatalf("err: %v", res.Err)
	}
	if res.Delivered != 3 {
		t.Errorf("Delivered: got %d, want 3", res.Delivered)
	}
	if len(ep.sent) != 3 {
		t.Errorf("sends: got %d, want 3 (one call per record)", len(ep.sent))
	}
	// Stable order.
	for i, want := range []string{"a", "b", "c"} {
		if ep.sent[i].SelectedText != want {
			t.Errorf("order[%d]: got %q, want %q", i, ep.sent[i].SelectedText, want)
		}
	}
}

func TestDeliver_TransientFailureRecovered(t *testing.T) {
	ep := &fakeEndpoint{failText: "b", failLeft: 2} // fails twice, third attempt lands
	p := newTestPipeline(ep)

	res := p.Deliver(context.Background(), batch("a", "b", "c"), nil, "", time.Now())
	if res.Err != nil {
		t.Fatalf("err: %v", res.Err)
	}
	if got := ep.sendsOf("b"); got != 3 {
		t.Errorf("sends of b: got %d, want 3", got)
	}
}

// Mid-batch terminal failure: earlier items sent exactly once, later
// items never sent, and a manual retry re-sends the entire batch.
func TestDeliver_PartialFailureAndManualRetry(t *testing.T) {
	ep := &fakeEndpoint{failText: "c", failLeft: -1}
	p := newTestPipeline(ep)

	res := p.Deliver(context.Background(), batch("a", "b", "c", "d"), nil, "", time.Now())
	var term *TerminalError
	if !errors.As(res.Err, &term) {
		t.Fatalf("err: got %v, want *TerminalError", res.Err)
	}
	if term.Index != 2 {
		t.Errorf("Index: got %d, want 2", term.Index)
	}
	if term.Attempts != 3 {
		t.Errorf("Attempts: got %d, want 3", term.Attempts)
	}
	if res.Delivered != 2 {
		t.Errorf("Delivered: got %d, want 2", res.Delivered)
	}
	for _, text := range []string{"a", "b"} {
		if got := ep.sendsOf(text); got != 1 {
			t.Errorf("sends of %s: got %d, want 1", text, got)
		}
	}
	if got := ep.sendsOf("d"); got != 0 {
		t.Errorf("sends of d: got %d, want 0 (never reached)", got)
	}

	// Manual retry resends the full batch, duplicating a and b. Accepted
	// at-least-once trade-off.
	ep.mu.Lock()
	ep.failLeft = 0
	ep.mu.Unlock()
	res = p.Deliver(context.Background(), batch("a", "b", "c", "d"), nil, "", time.Now())
	if res.Err != nil {
		t.Fatalf("retry err: %v", res.Err)
	}
	for _, text := range []string{"a", "b"} {
		if got := ep.sendsOf(text); got != 2 {
			t.Errorf("sends of %s after retry: got %d, want 2", text, got)
		}
	}
}

func TestDeliver_CancelledBetweenAttempts(t *testing.T) {
	ep := &fakeEndpoint{failText: "a", failLeft: -1}
	p := newTestPipeline(ep)

	ctx, cancel := context.WithCancel(context.Background())
	p.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	res := p.Deliver(ctx, batch("a", "b"), nil, "", time.Now())
	var term *TerminalError
	if !errors.As(res.Err, &term) {
		t.Fatalf("err: got %v, want *TerminalError", res.Err)
	}
	if got := ep.sendsOf("a"); got != 1 {
		t.Errorf("sends of a: got %d, want 1 (cancel stops retries)", got)
	}
	if got := ep.sendsOf("b"); got != 0 {
		t.Errorf("sends of b: got %d, want 0", got)
	}
}

func TestDeliver_StampsLateBoundFields(t *testing.T) {
	ep := &fakeEndpoint{}
	p := newTestPipeline(ep)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	recs := []highlight.Record{{ID: "hl_x", Text: "Hello world", PageTitle: "Example", PageURL: "https://example.com/a"}}
	res := p.Deliver(context.Background(), recs, []string{"Important"}, "work", at)
	if res.Err != nil {
		t.Fatalf("err: %v", res.Err)
	}

	got := ep.sent[0]
	if got.Timestamp != "2026-03-01T09:00:00Z" {
		t.Errorf("Timestamp: got %q", got.Timestamp)
	}
	if got.SheetID != "work" || len(got.Tags) != 1 || got.Tags[0] != "Important" {
		t.Errorf("late-bound fields: got %+v", got)
	}
}
