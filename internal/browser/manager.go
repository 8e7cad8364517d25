// Package browser manages the Chrome instance clipwatch observes. The
// browser is a disposable component: attach to a running instance over
// DevTools when one is configured, launch a local one otherwise.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Config controls the browser lifecycle.
type Config struct {
	// RemoteURL attaches to an existing instance (ws:// or http://
	// DevTools address). Empty launches a local headless browser.
	RemoteURL string
	// Stealth applies evasion patches to new pages.
	Stealth bool
	Logger  *slog.Logger
}

// Manager owns the rod browser handle.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher // nil when attached to a remote instance
}

// NewManager creates a Manager; Start connects.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{cfg: cfg}
}

// Start connects to (or launches) the browser.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		return m.browser, nil
	}

	controlURL := m.cfg.RemoteURL
	if controlURL == "" {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		controlURL = u
		m.lnch = l
	} else {
		u, err := launcher.ResolveURL(controlURL)
		if err != nil {
			return nil, fmt.Errorf("browser: resolve %s: %w", m.cfg.RemoteURL, err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	m.browser = b
	m.cfg.Logger.Info("browser: connected",
		"remote", m.cfg.RemoteURL != "", "stealth", m.cfg.Stealth)
	return b, nil
}

// Browser returns the active handle, or nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser
}

// Close disconnects, killing the browser only if this process launched
// it. An attached user instance keeps running; only the handle is
// dropped.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser == nil {
		return
	}
	if m.lnch != nil {
		if err := m.browser.Close(); err != nil {
			m.cfg.Logger.Warn("browser: close", "error", err)
		}
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.browser = nil
}
