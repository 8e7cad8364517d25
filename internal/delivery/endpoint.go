// Package delivery transmits confirmed highlights to the remote
// spreadsheet endpoint, one JSON object per call, sequentially and in
// batch order, with a bounded flat retry per item.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/clipwatch/highlight"
)

// Mode selects how endpoint success is judged.
type Mode string

const (
	// ModeReadable expects a JSON body {"status":"success",...}; anything
	// else is a failure. Preferred: gives real failure detection.
	ModeReadable Mode = "readable"
	// ModeFireAndForget never reads the response body; success is the
	// absence of a transport error. The remote outcome is unobservable.
	ModeFireAndForget Mode = "fire_and_forget"
)

// Endpoint accepts one highlight payload per call.
type Endpoint interface {
	Send(ctx context.Context, p highlight.Payload) error
}

// HTTPEndpoint POSTs payloads to a webhook URL.
type HTTPEndpoint struct {
	url    string
	mode   Mode
	client *http.Client
	logger *slog.Logger
}

// HTTPOption configures an HTTPEndpoint.
type HTTPOption func(*HTTPEndpoint)

// WithMode sets the success-detection mode. Default: ModeReadable.
func WithMode(m Mode) HTTPOption {
	return func(e *HTTPEndpoint) { e.mode = m }
}

// WithClient replaces the HTTP client. Default: 10s timeout.
func WithClient(c *http.Client) HTTPOption {
	return func(e *HTTPEndpoint) { e.client = c }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(e *HTTPEndpoint) { e.logger = l }
}

// NewHTTPEndpoint creates an endpoint targeting the given URL.
func NewHTTPEndpoint(url string, opts ...HTTPOption) *HTTPEndpoint {
	e := &HTTPEndpoint{
		url:    url,
		mode:   ModeReadable,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// endpointResponse is the readable-mode response contract.
type endpointResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Send transmits one payload. One attempt; retry policy lives in the
// pipeline, not here.
func (e *HTTPEndpoint) Send(ctx context.Context, p highlight.Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("delivery: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("delivery: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery: post: %w", err)
	}
	defer resp.Body.Close()

	if e.mode == ModeFireAndForget {
		// Response unreadable by contract: drain and trust the transport.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delivery: status %d", resp.StatusCode)
	}

	var er endpointResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&er); err != nil {
		return fmt.Errorf("delivery: decode response: %w", err)
	}
	if er.Status != "success" {
		return fmt.Errorf("delivery: endpoint rejected record: status %q message %q", er.Status, er.Message)
	}
	return nil
}
