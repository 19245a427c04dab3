// Package testutil provides common test utilities and helpers for RegFlow tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/RegFlow/internal/flow"
	"github.com/BTreeMap/RegFlow/internal/models"
	"github.com/BTreeMap/RegFlow/internal/registration"
	"github.com/BTreeMap/RegFlow/internal/store"
)

// TB is the subset of testing.TB the helpers use, so they can be tested with a fake.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// FixedTime is the clock reading used by NewTestService.
var FixedTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// NewTestService creates a registration service over an in-memory store with a fixed clock.
func NewTestService(t TB, schema models.Schema, opts ...registration.Option) (*registration.Service, store.Store) {
	t.Helper()
	clock := func() time.Time { return FixedTime }
	ctrl, err := flow.NewController(schema, flow.WithClock(clock))
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}
	st := store.NewInMemoryStore()
	opts = append([]registration.Option{registration.WithClock(clock)}, opts...)
	return registration.NewService(ctrl, st, opts...), st
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t TB, rr *httptest.ResponseRecorder, expectedStatus string) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Errorf("response missing or invalid 'status' field")
	}
	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t TB, method, url string, body any) *http.Request {
	t.Helper()
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		reqBody = bytes.NewBuffer(MustMarshalJSON(t, body))
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

// CreateJSONRequest creates an HTTP request from a raw JSON string.
func CreateJSONRequest(t TB, method, url, jsonBody string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(jsonBody))
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertBackupCount validates the number of backup entries in the store.
func AssertBackupCount(t TB, st store.Store, expected int, desc string) {
	t.Helper()
	backups, err := st.ListBackups(context.Background())
	if err != nil {
		t.Fatalf("%s: failed to list backups: %v", desc, err)
	}
	if len(backups) != expected {
		t.Errorf("%s: expected %d backups, got %d", desc, expected, len(backups))
	}
}

// SeedBackups appends n backup entries with records {"n": "<i>"}.
func SeedBackups(t TB, st store.Store, n int) {
	t.Helper()
	for i := range n {
		entry := models.BackupEntry{
			ID:        fmt.Sprintf("seed-%d", i),
			SessionID: "seed-session",
			Timestamp: FixedTime.Add(time.Duration(i) * time.Minute),
			Record:    models.Record{"n": strconv.Itoa(i)},
		}
		if err := st.AppendBackup(context.Background(), entry); err != nil {
			t.Fatalf("failed to seed backup: %v", err)
		}
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t TB, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t TB, data []byte, target any) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}

