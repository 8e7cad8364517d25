package clipwatch

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/clipwatch/internal/config"
)

// Config is the top-level clipwatch configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// PageConfig defines a page to observe for selections.
type PageConfig = config.PageConfig

// CaptureConfig tunes the selection observer.
type CaptureConfig = config.CaptureConfig

// PendingConfig tunes the pending-highlight store.
type PendingConfig = config.PendingConfig

// DeliveryConfig defines the remote endpoint and retry policy.
type DeliveryConfig = config.DeliveryConfig

// SheetsConfig locates the sheet registry database.
type SheetsConfig = config.SheetsConfig

// APIConfig controls the local HTTP surface.
type APIConfig = config.APIConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// WatchConfigFile watches path for edits and calls onChange with each
// successfully reloaded configuration. Blocks until ctx is done.
func WatchConfigFile(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	return config.Watch(ctx, path, logger, onChange)
}
