// Package config handles clipwatch configuration from YAML files, with
// fsnotify-based hot reload of the runtime-tunable knobs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level clipwatch configuration.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Pages    []PageConfig   `yaml:"pages"`
	Capture  CaptureConfig  `yaml:"capture"`
	Pending  PendingConfig  `yaml:"pending"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	API      APIConfig      `yaml:"api"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	// Remote is a DevTools websocket/HTTP URL to attach to. Empty
	// launches a local browser.
	Remote  string `yaml:"remote"`
	Stealth bool   `yaml:"stealth"`
}

// PageConfig defines a page to observe for selections.
type PageConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// CaptureConfig tunes the selection observer.
type CaptureConfig struct {
	// QuietPeriod coalesces rapid selection changes into one evaluation.
	QuietPeriod time.Duration `yaml:"quiet_period"`
	// DedupWindow drops re-captures of the same text inside this window.
	DedupWindow time.Duration `yaml:"dedup_window"`
	// RelocateDelay re-evaluates the affordance anchor after scroll/resize.
	RelocateDelay time.Duration `yaml:"relocate_delay"`
	// Markdown also captures the selection fragment as sanitised Markdown.
	Markdown bool `yaml:"markdown"`
}

// PendingConfig tunes the pending-highlight store.
type PendingConfig struct {
	MaxAge        time.Duration `yaml:"max_age"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DeliveryConfig defines the remote endpoint and retry policy.
type DeliveryConfig struct {
	URL string `yaml:"url"`
	// Mode: readable | fire_and_forget. Prefer readable: it gives real
	// failure detection.
	Mode     string        `yaml:"mode"`
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
	// RelayRetries enables the coarser doubling-backoff wrapper. 0 = off.
	RelayRetries int           `yaml:"relay_retries"`
	RelayBackoff time.Duration `yaml:"relay_backoff"`
}

// SheetsConfig locates the sheet registry database.
type SheetsConfig struct {
	Path string `yaml:"path"`
}

// APIConfig controls the local HTTP surface.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Delivery.URL == "" {
		return fmt.Errorf("config: delivery.url is required")
	}
	switch c.Delivery.Mode {
	case "", "readable", "fire_and_forget":
	default:
		return fmt.Errorf("config: unknown delivery.mode %q", c.Delivery.Mode)
	}
	return nil
}

// ApplyDefaults fills the zero values with the standard defaults.
func (c *Config) ApplyDefaults() {
	if c.Capture.QuietPeriod <= 0 {
		c.Capture.QuietPeriod = 100 * time.Millisecond
	}
	if c.Capture.DedupWindow <= 0 {
		c.Capture.DedupWindow = 2 * time.Second
	}
	if c.Capture.RelocateDelay <= 0 {
		c.Capture.RelocateDelay = 150 * time.Millisecond
	}
	if c.Pending.MaxAge <= 0 {
		c.Pending.MaxAge = 30 * time.Minute
	}
	if c.Pending.SweepInterval <= 0 {
		c.Pending.SweepInterval = time.Minute
	}
	if c.Delivery.Mode == "" {
		c.Delivery.Mode = "readable"
	}
	if c.Delivery.Attempts <= 0 {
		c.Delivery.Attempts = 3
	}
	if c.Delivery.Delay <= 0 {
		c.Delivery.Delay = time.Second
	}
	if c.Delivery.RelayBackoff <= 0 {
		c.Delivery.RelayBackoff = 2 * time.Second
	}
	if c.Sheets.Path == "" {
		c.Sheets.Path = "clipwatch.db"
	}
	if c.API.Addr == "" {
		c.API.Addr = "127.0.0.1:8632"
	}
}
