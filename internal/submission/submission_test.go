package submission

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BTreeMap/RegFlow/internal/models"
)

func TestHTTPSinkPostsJSON(t *testing.T) {
	var got map[string]string
	var contentType, apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		contentType = r.Header.Get("Content-Type")
		apiKey = r.Header.Get("X-Api-Key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, WithHeader("X-Api-Key", "secret"))
	rec := models.Record{"first_name": "Ada", "Timestamp": "2025-10-01T09:00:00Z", "school_other": ""}
	if err := sink.Submit(context.Background(), rec); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("unexpected content type %q", contentType)
	}
	if apiKey != "secret" {
		t.Errorf("custom header not sent")
	}
	if got["first_name"] != "Ada" || got["Timestamp"] == "" {
		t.Errorf("unexpected body %v", got)
	}
	if v, ok := got["school_other"]; !ok || v != "" {
		t.Error("empty fields must be submitted")
	}
}

func TestHTTPSinkRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewHTTPSink(srv.URL).Submit(context.Background(), models.Record{"a": "b"})
	if !errors.Is(err, ErrSubmissionFailed) {
		t.Fatalf("expected ErrSubmissionFailed, got %v", err)
	}
	var subErr *Error
	if !errors.As(err, &subErr) || subErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429 in error, got %v", err)
	}
}

func TestHTTPSinkTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	err := NewHTTPSink(srv.URL, WithTimeout(20*time.Millisecond)).Submit(context.Background(), models.Record{})
	if !errors.Is(err, ErrSubmissionFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped deadline error, got %v", err)
	}
}

func TestNewWithoutURLIsNop(t *testing.T) {
	sink := New("")
	if _, ok := sink.(NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", sink)
	}
	if err := sink.Submit(context.Background(), models.Record{"a": "b"}); err != nil {
		t.Errorf("NopSink returned error: %v", err)
	}
}
