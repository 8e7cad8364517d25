// Command clipwatch is the selection-capture daemon.
//
// Usage:
//
//	clipwatch -config clipwatch.yaml        # observe pages from YAML config
//	clipwatch -url https://example.com -endpoint https://hooks.example/sheet
//	clipwatch -endpoint https://hooks.example/sheet   # trigger-only, no browser
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/clipwatch"
	"github.com/hazyhaar/clipwatch/idgen"
	"github.com/hazyhaar/clipwatch/internal/api"
)

func main() {
	configPath := flag.String("config", "", "path to clipwatch.yaml config file")
	singleURL := flag.String("url", "", "observe a single URL")
	endpoint := flag.String("endpoint", "", "delivery webhook URL (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL, *endpoint); err != nil {
		logger.Error("clipwatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL, endpoint string) error {
	var cfg *clipwatch.Config
	switch {
	case configPath != "":
		loaded, err := clipwatch.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	case endpoint != "":
		cfg = &clipwatch.Config{}
		cfg.Delivery.URL = endpoint
		cfg.ApplyDefaults()
	default:
		fmt.Fprintln(os.Stderr, "usage: clipwatch -config <file> | -endpoint <url> [-url <page>]")
		os.Exit(1)
	}
	if endpoint != "" {
		cfg.Delivery.URL = endpoint
	}
	if singleURL != "" {
		cfg.Pages = append(cfg.Pages, clipwatch.PageConfig{ID: idgen.New(), URL: singleURL})
	}

	w, err := clipwatch.New(cfg, logger)
	if err != nil {
		return err
	}
	defer w.Stop()

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	srv := &http.Server{
		Addr: cfg.API.Addr,
		Handler: api.New(api.Config{
			Pending: w.Pending(),
			Session: w.Session(),
			Sheets:  w.Sheets(),
			History: w.History(),
			Capture: w.CaptureText,
			Notice:  w.Notice,
			Logger:  logger,
		}).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("clipwatch: api listening", "addr", cfg.API.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if configPath != "" {
		go func() {
			err := clipwatch.WatchConfigFile(ctx, configPath, logger, w.ApplyConfig)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("clipwatch: config watch stopped", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return nil
}
