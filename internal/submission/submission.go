// Package submission delivers completed registration records to an external sink.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/RegFlow/internal/models"
)

// DefaultTimeout bounds a single submission request.
const DefaultTimeout = 15 * time.Second

// ErrSubmissionFailed is wrapped by every error returned from a sink.
var ErrSubmissionFailed = errors.New("submission failed")

// Sink receives flattened registration records.
type Sink interface {
	Submit(ctx context.Context, rec models.Record) error
}

// Error describes a failed delivery. StatusCode is zero for transport failures.
type Error struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v: HTTP %d: %s", ErrSubmissionFailed, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%v: %v", ErrSubmissionFailed, e.Err)
}

// Unwrap lets errors.Is match ErrSubmissionFailed and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSubmissionFailed, e.Err}
	}
	return []error{ErrSubmissionFailed}
}

// HTTPSink posts records as JSON to a form-collection endpoint such as a spreadsheet web app.
type HTTPSink struct {
	url     string
	client  *http.Client
	timeout time.Duration
	headers map[string]string
}

// Option configures an HTTPSink.
type Option func(*HTTPSink)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTPSink) { s.client = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *HTTPSink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithHeader adds a request header, e.g. an API key expected by the endpoint.
func WithHeader(key, value string) Option {
	return func(s *HTTPSink) { s.headers[key] = value }
}

// NewHTTPSink creates a sink posting to url.
func NewHTTPSink(url string, opts ...Option) *HTTPSink {
	s := &HTTPSink{
		url:     url,
		client:  &http.Client{},
		timeout: DefaultTimeout,
		headers: map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit posts rec. Responses with status >= 400 are failures.
func (s *HTTPSink) Submit(ctx context.Context, rec models.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return &Error{Err: fmt.Errorf("marshal record: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return &Error{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Warn("HTTPSink.Submit: request failed", "url", s.url, "error", err)
		return &Error{Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		slog.Warn("HTTPSink.Submit: endpoint rejected record", "url", s.url, "status", resp.StatusCode)
		return &Error{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}
	slog.Debug("HTTPSink.Submit: record delivered", "status", resp.StatusCode, "fields", len(rec))
	return nil
}

// NopSink accepts every record without sending it anywhere. Used when no endpoint is configured.
type NopSink struct{}

func (NopSink) Submit(_ context.Context, rec models.Record) error {
	slog.Debug("NopSink.Submit: no submission endpoint configured, record kept in backup only", "fields", len(rec))
	return nil
}

// New returns an HTTPSink for url, or NopSink when url is empty.
func New(url string, opts ...Option) Sink {
	if url == "" {
		return NopSink{}
	}
	return NewHTTPSink(url, opts...)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
