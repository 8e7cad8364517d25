package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the config file and invokes onChange with the freshly
// loaded config after each write. Editors often replace the file rather
// than write in place, so the parent directory is watched and events are
// settled for a short beat before reloading. Invalid intermediate states
// are logged and skipped; the previous config stays in effect.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()

		var settle *time.Timer
		var settleC <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if settle != nil {
					settle.Stop()
				}
				settle = time.NewTimer(200 * time.Millisecond)
				settleC = settle.C

			case <-settleC:
				settleC = nil
				cfg, err := LoadFile(abs)
				if err != nil {
					logger.Warn("config: reload skipped", "error", err)
					continue
				}
				logger.Info("config: reloaded", "path", abs)
				onChange(cfg)

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config: watcher error", "error", err)
			}
		}
	}()
	return nil
}
