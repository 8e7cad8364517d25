package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/clipwatch/highlight"
	"github.com/hazyhaar/clipwatch/internal/history"
	"github.com/hazyhaar/clipwatch/internal/session"
	"github.com/hazyhaar/clipwatch/internal/sheets"
)

func (s *Server) handlePendingList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handlePendingDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.store.Remove(id) {
		jsonErr(w, "unknown highlight", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 256*1024)

	var req struct {
		Text      string `json:"text"`
		PageURL   string `json:"page_url"`
		PageTitle string `json:"page_title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rec, ok := s.capture(req.Text, req.PageURL, req.PageTitle)
	if !ok {
		// Invalid or duplicate text is silently dropped, same as the
		// in-page path. Report that nothing was queued.
		writeJSON(w, http.StatusOK, map[string]any{"captured": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"captured": true, "id": rec.ID})
}

// sessionView is the JSON projection of the session for GET /session.
type sessionView struct {
	State   session.State      `json:"state"`
	Batch   []highlight.Record `json:"batch"`
	Tags    []string           `json:"tags"`
	SheetID string             `json:"sheet_id"`
	Notice  *noticeView        `json:"notice,omitempty"`
}

// noticeView flattens session.Notice for the wire.
type noticeView struct {
	Kind          session.NoticeKind `json:"kind"`
	Message       string             `json:"message"`
	AutoDismissMs int64              `json:"auto_dismiss_ms,omitempty"`
}

func viewNotice(n *session.Notice) *noticeView {
	if n == nil {
		return nil
	}
	return &noticeView{
		Kind:          n.Kind,
		Message:       n.Message,
		AutoDismissMs: n.AutoDismiss.Milliseconds(),
	}
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionView{
		State:   s.session.State(),
		Batch:   s.session.Batch(),
		Tags:    s.session.Tags(),
		SheetID: s.session.Sheet(),
		Notice:  viewNotice(s.notice()),
	})
}

func (s *Server) handleSessionBegin(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Begin(); err != nil {
		jsonErr(w, err.Error(), sessionErrCode(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state": s.session.State(),
		"count": len(s.session.Batch()),
	})
}

func (s *Server) handleSessionConfirm(w http.ResponseWriter, r *http.Request) {
	if !s.session.Confirm() {
		jsonErr(w, "nothing to submit", http.StatusConflict)
		return
	}
	// Delivery runs in the background; the caller polls GET /session.
	writeJSON(w, http.StatusAccepted, map[string]any{"state": s.session.State()})
}

func (s *Server) handleSessionCancel(w http.ResponseWriter, r *http.Request) {
	s.session.Cancel()
	writeJSON(w, http.StatusOK, map[string]any{"state": s.session.State()})
}

func (s *Server) handleSessionRemoveItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.session.RemoveItem(id); err != nil {
		jsonErr(w, err.Error(), sessionErrCode(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state": s.session.State(),
		"count": len(s.session.Batch()),
	})
}

func (s *Server) handleSessionAddTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Tag) == "" {
		jsonErr(w, "tag is required", http.StatusBadRequest)
		return
	}
	if err := s.session.AddTag(req.Tag); err != nil {
		jsonErr(w, err.Error(), sessionErrCode(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": s.session.Tags()})
}

func (s *Server) handleSessionRemoveTag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if err := s.session.RemoveTag(tag); err != nil {
		jsonErr(w, err.Error(), sessionErrCode(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": s.session.Tags()})
}

func (s *Server) handleSessionSetSheet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SheetID string `json:"sheet_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := s.sheets.Get(r.Context(), req.SheetID); err != nil {
		if errors.Is(err, sheets.ErrNotFound) {
			jsonErr(w, "unknown sheet", http.StatusNotFound)
			return
		}
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := s.session.SetSheet(req.SheetID); err != nil {
		jsonErr(w, err.Error(), sessionErrCode(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sheet_id": s.session.Sheet()})
}

func (s *Server) handleSheetsList(w http.ResponseWriter, r *http.Request) {
	list, err := s.sheets.List(r.Context())
	if err != nil {
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	def, err := s.sheets.DefaultSheet(r.Context())
	if err != nil {
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sheets": list, "default": def})
}

func (s *Server) handleSheetsAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sheet, err := s.sheets.Add(r.Context(), req.Name)
	if err != nil {
		jsonErr(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, sheet)
}

func (s *Server) handleSheetsRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sheets.Remove(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, sheets.ErrNotFound):
			jsonErr(w, "unknown sheet", http.StatusNotFound)
		default:
			jsonErr(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSheetsGetDefault(w http.ResponseWriter, r *http.Request) {
	def, err := s.sheets.DefaultSheet(r.Context())
	if err != nil {
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"default": def})
}

func (s *Server) handleSheetsSetDefault(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SheetID string `json:"sheet_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.sheets.SetDefaultSheet(r.Context(), req.SheetID); err != nil {
		if errors.Is(err, sheets.ErrNotFound) {
			jsonErr(w, "unknown sheet", http.StatusNotFound)
			return
		}
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"default": req.SheetID})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	opts := history.ListOptions{
		SheetID: r.URL.Query().Get("sheet_id"),
		Query:   r.URL.Query().Get("q"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	entries, err := s.history.Recent(r.Context(), opts)
	if err != nil {
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleNotice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"notice": viewNotice(s.notice())})
}

// sessionErrCode maps session errors onto HTTP statuses.
func sessionErrCode(err error) int {
	switch {
	case errors.Is(err, session.ErrNothingPending):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotReviewing):
		return http.StatusConflict
	case errors.Is(err, session.ErrAlreadyActive):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
