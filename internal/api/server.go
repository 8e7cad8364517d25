// Package api exposes the local HTTP surface: pending highlights, the
// confirmation session, the sheet registry and the capture trigger.
// It binds to loopback by default and carries no auth; it is a local
// control plane, not a public API.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/clipwatch/highlight"
	"github.com/hazyhaar/clipwatch/internal/history"
	"github.com/hazyhaar/clipwatch/internal/pending"
	"github.com/hazyhaar/clipwatch/internal/session"
	"github.com/hazyhaar/clipwatch/internal/sheets"
)

// CaptureFunc ingests externally triggered text (context-menu path).
// It reports whether the text was accepted as a new pending highlight.
type CaptureFunc func(text, pageURL, pageTitle string) (highlight.Record, bool)

// NoticeFunc returns the current transient notice, nil when none.
type NoticeFunc func() *session.Notice

// Config wires the HTTP surface to the rest of the daemon.
type Config struct {
	Pending *pending.Store
	Session *session.Session
	Sheets  *sheets.Store
	History *history.Store
	Capture CaptureFunc
	Notice  NoticeFunc
	Logger  *slog.Logger
}

// Server serves the clipwatch control API.
type Server struct {
	store   *pending.Store
	session *session.Session
	sheets  *sheets.Store
	history *history.Store
	capture CaptureFunc
	notice  NoticeFunc
	logger  *slog.Logger
}

// New builds the server. All Config fields except Logger are required.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:   cfg.Pending,
		session: cfg.Session,
		sheets:  cfg.Sheets,
		history: cfg.History,
		capture: cfg.Capture,
		notice:  cfg.Notice,
		logger:  logger,
	}
}

// Router returns the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/pending", s.handlePendingList)
	r.Delete("/pending/{id}", s.handlePendingDelete)
	r.Post("/capture", s.handleCapture)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.handleSessionState)
		r.Post("/begin", s.handleSessionBegin)
		r.Post("/confirm", s.handleSessionConfirm)
		r.Post("/cancel", s.handleSessionCancel)
		r.Delete("/items/{id}", s.handleSessionRemoveItem)
		r.Put("/tags", s.handleSessionAddTag)
		r.Delete("/tags/{tag}", s.handleSessionRemoveTag)
		r.Put("/sheet", s.handleSessionSetSheet)
	})

	r.Route("/sheets", func(r chi.Router) {
		r.Get("/", s.handleSheetsList)
		r.Post("/", s.handleSheetsAdd)
		r.Delete("/{id}", s.handleSheetsRemove)
		r.Get("/default", s.handleSheetsGetDefault)
		r.Put("/default", s.handleSheetsSetDefault)
	})

	r.Get("/history", s.handleHistory)
	r.Get("/notice", s.handleNotice)

	return r
}
