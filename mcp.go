package clipwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/clipwatch/internal/history"
	"github.com/hazyhaar/clipwatch/internal/session"
)

// RegisterMCP registers clipwatch tools on an MCP server. The tools give
// an agent the same control surface the HTTP API gives a human: queue
// text, inspect the pending set, submit a batch, manage sheets.
func (w *Watcher) RegisterMCP(srv *mcp.Server) {
	w.registerCaptureTool(srv)
	w.registerPendingTool(srv)
	w.registerSubmitTool(srv)
	w.registerSheetsTool(srv)
	w.registerHistoryTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// registerTool wires a decode+endpoint pair onto the server, reporting
// failures as tool errors and marshalling responses as JSON text.
func registerTool[Req any](srv *mcp.Server, tool *mcp.Tool, endpoint func(context.Context, *Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r Req
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}

		resp, err := endpoint(ctx, &r)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- capture ---

type captureRequest struct {
	Text      string `json:"text"`
	PageURL   string `json:"page_url,omitempty"`
	PageTitle string `json:"page_title,omitempty"`
}

func (w *Watcher) registerCaptureTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "clipwatch_capture",
		Description: "Queue a text highlight for later delivery to a sheet. Blank, oversized or recently duplicated text is ignored.",
		InputSchema: inputSchema(map[string]any{
			"text":       map[string]any{"type": "string", "description": "The selected text to save"},
			"page_url":   map[string]any{"type": "string", "description": "URL of the source page"},
			"page_title": map[string]any{"type": "string", "description": "Title of the source page"},
		}, []string{"text"}),
	}

	registerTool(srv, tool, func(_ context.Context, r *captureRequest) (any, error) {
		rec, ok := w.CaptureText(r.Text, r.PageURL, r.PageTitle)
		if !ok {
			return map[string]any{"captured": false}, nil
		}
		return map[string]any{"captured": true, "id": rec.ID}, nil
	})
}

// --- pending ---

type pendingRequest struct{}

func (w *Watcher) registerPendingTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "clipwatch_pending",
		Description: "List the queued highlights awaiting confirmation, in capture order.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	registerTool(srv, tool, func(_ context.Context, _ *pendingRequest) (any, error) {
		snap := w.store.Snapshot()
		return map[string]any{"count": len(snap), "highlights": snap}, nil
	})
}

// --- submit ---

type submitRequest struct {
	Tags    []string `json:"tags,omitempty"`
	SheetID string   `json:"sheet_id,omitempty"`
}

func (w *Watcher) registerSubmitTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "clipwatch_submit",
		Description: "Submit all queued highlights to the configured endpoint, optionally tagged and targeted at a sheet. Waits for the delivery outcome.",
		InputSchema: inputSchema(map[string]any{
			"tags":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Tags applied to every highlight in the batch"},
			"sheet_id": map[string]any{"type": "string", "description": "Destination sheet (defaults to the registry default)"},
		}, nil),
	}

	registerTool(srv, tool, func(ctx context.Context, r *submitRequest) (any, error) {
		// A failed batch is retried as-is: original items, tags and sheet.
		if w.session.State() == session.StateFailed {
			count := len(w.session.Batch())
			w.session.Confirm()
			return w.settleResponse(ctx, count)
		}

		if err := w.session.Begin(); err != nil {
			return nil, err
		}
		for _, tag := range r.Tags {
			if err := w.session.AddTag(tag); err != nil {
				w.session.Cancel()
				return nil, err
			}
		}
		if r.SheetID != "" {
			if _, err := w.registry.Get(ctx, r.SheetID); err != nil {
				w.session.Cancel()
				return nil, fmt.Errorf("sheet %q: %w", r.SheetID, err)
			}
			if err := w.session.SetSheet(r.SheetID); err != nil {
				w.session.Cancel()
				return nil, err
			}
		}
		count := len(w.session.Batch())
		if !w.session.Confirm() {
			w.session.Cancel()
			return nil, errors.New("nothing to submit")
		}
		return w.settleResponse(ctx, count)
	})
}

func (w *Watcher) settleResponse(ctx context.Context, count int) (any, error) {
	state, err := w.awaitSettle(ctx)
	if err != nil {
		return nil, err
	}
	if state == session.StateFailed {
		return map[string]any{"submitted": false, "state": state,
			"hint": "batch retained; call clipwatch_submit again to retry"}, nil
	}
	return map[string]any{"submitted": true, "count": count}, nil
}

// awaitSettle polls until the delivery attempt resolves. The session is
// left as-is on context expiry so a failed batch stays retryable.
func (w *Watcher) awaitSettle(ctx context.Context) (session.State, error) {
	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()
	for {
		if st := w.session.State(); st != session.StateSubmitting {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return w.session.State(), ctx.Err()
		case <-tick.C:
		}
	}
}

// --- sheets ---

type sheetsRequest struct{}

func (w *Watcher) registerSheetsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "clipwatch_sheets",
		Description: "List the registered destination sheets and the current default.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	registerTool(srv, tool, func(ctx context.Context, _ *sheetsRequest) (any, error) {
		list, err := w.registry.List(ctx)
		if err != nil {
			return nil, err
		}
		def, err := w.registry.DefaultSheet(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"sheets": list, "default": def}, nil
	})
}

// --- history ---

type historyRequest struct {
	SheetID string `json:"sheet_id,omitempty"`
	Query   string `json:"query,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

func (w *Watcher) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "clipwatch_history",
		Description: "List already-delivered highlights, most recent first.",
		InputSchema: inputSchema(map[string]any{
			"sheet_id": map[string]any{"type": "string", "description": "Filter by destination sheet"},
			"query":    map[string]any{"type": "string", "description": "Substring match on the highlight text"},
			"limit":    map[string]any{"type": "integer", "description": "Max results (default 50)"},
		}, nil),
	}

	registerTool(srv, tool, func(ctx context.Context, r *historyRequest) (any, error) {
		entries, err := w.archive.Recent(ctx, history.ListOptions{
			SheetID: r.SheetID,
			Query:   r.Query,
			Limit:   r.Limit,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": len(entries), "entries": entries}, nil
	})
}
