package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clipwatch.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
delivery:
  url: https://script.example/exec
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Capture.QuietPeriod != 100*time.Millisecond {
		t.Errorf("QuietPeriod: got %v", cfg.Capture.QuietPeriod)
	}
	if cfg.Capture.DedupWindow != 2*time.Second {
		t.Errorf("DedupWindow: got %v", cfg.Capture.DedupWindow)
	}
	if cfg.Capture.RelocateDelay != 150*time.Millisecond {
		t.Errorf("RelocateDelay: got %v", cfg.Capture.RelocateDelay)
	}
	if cfg.Pending.MaxAge != 30*time.Minute {
		t.Errorf("MaxAge: got %v", cfg.Pending.MaxAge)
	}
	if cfg.Delivery.Mode != "readable" {
		t.Errorf("Mode: got %q", cfg.Delivery.Mode)
	}
	if cfg.Delivery.Attempts != 3 || cfg.Delivery.Delay != time.Second {
		t.Errorf("retry: got %d/%v", cfg.Delivery.Attempts, cfg.Delivery.Delay)
	}
	if cfg.Delivery.RelayRetries != 0 {
		t.Errorf("RelayRetries: got %d, want 0 (off by default)", cfg.Delivery.RelayRetries)
	}
}

func TestLoadFile_FullConfig(t *testing.T) {
	path := writeConfig(t, `
browser:
  remote: ws://127.0.0.1:9222
  stealth: true
pages:
  - id: docs
    url: https://example.com/docs
capture:
  quiet_period: 50ms
  dedup_window: 5s
  markdown: true
pending:
  max_age: 10m
delivery:
  url: https://script.example/exec
  mode: fire_and_forget
  relay_retries: 2
sheets:
  path: /tmp/reg.db
api:
  addr: 127.0.0.1:9000
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Browser.Remote != "ws://127.0.0.1:9222" || !cfg.Browser.Stealth {
		t.Errorf("browser: %+v", cfg.Browser)
	}
	if len(cfg.Pages) != 1 || cfg.Pages[0].ID != "docs" {
		t.Errorf("pages: %+v", cfg.Pages)
	}
	if cfg.Capture.QuietPeriod != 50*time.Millisecond || !cfg.Capture.Markdown {
		t.Errorf("capture: %+v", cfg.Capture)
	}
	if cfg.Delivery.Mode != "fire_and_forget" || cfg.Delivery.RelayRetries != 2 {
		t.Errorf("delivery: %+v", cfg.Delivery)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"missing url": `capture: {markdown: true}`,
		"bad mode":    "delivery:\n  url: https://x\n  mode: telepathy\n",
	} {
		path := writeConfig(t, body)
		if _, err := LoadFile(path); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}
