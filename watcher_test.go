package clipwatch

import (
	"testing"
	"time"

	"github.com/hazyhaar/clipwatch/internal/config"
)

func TestApplyConfig_RetunesRuntimeKnobs(t *testing.T) {
	sink := newSinkServer(t)
	w := testWatcher(t, sink.URL)
	w.cfg.Capture.DedupWindow = time.Hour
	w.triggerCore.SetDedupWindow(time.Hour)

	if _, ok := w.CaptureText("retuned text", "", ""); !ok {
		t.Fatal("first capture rejected")
	}
	if _, ok := w.CaptureText("retuned text", "", ""); ok {
		t.Fatal("duplicate inside 1h window accepted")
	}

	next := &config.Config{}
	next.Delivery.URL = sink.URL
	next.Sheets.Path = ":memory:"
	next.ApplyDefaults()
	next.Capture.DedupWindow = time.Nanosecond
	next.Pending.MaxAge = 10 * time.Minute
	w.ApplyConfig(next)

	time.Sleep(time.Millisecond)
	if _, ok := w.CaptureText("retuned text", "", ""); !ok {
		t.Error("re-capture still suppressed by the old window after reload")
	}
}
