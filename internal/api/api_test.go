package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/RegFlow/internal/models"
	"github.com/BTreeMap/RegFlow/internal/registration"
	"github.com/BTreeMap/RegFlow/internal/store"
	"github.com/BTreeMap/RegFlow/internal/testutil"
)

func apiSchema() models.Schema {
	return models.Schema{
		Greeting:   "Hi!",
		Completion: "All done.",
		Questions: []models.Question{
			{ID: "email", Prompt: "Email?", Kind: models.KindText, Required: true,
				Validators: []models.Validator{{Kind: models.ValidatorEmail}}},
			{ID: "days", Prompt: "Days?", Kind: models.KindMultiChoice, Options: []string{"Mon", "Fri"}, Required: true},
			{ID: "notes", Prompt: "Notes?", Kind: models.KindText, Skippable: true},
		},
	}
}

type captureSink struct {
	mu      sync.Mutex
	records []models.Record
	err     error
}

func (c *captureSink) Submit(ctx context.Context, rec models.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return c.err
}

func waitSubmissions(t *testing.T, server *Server) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.reg.Wait(ctx); err != nil {
		t.Fatalf("background submissions did not finish: %v", err)
	}
}

func newTestServer(t *testing.T, opts ...registration.Option) (*Server, store.Store) {
	t.Helper()
	svc, st := testutil.NewTestService(t, apiSchema(), opts...)
	return NewServer(svc), st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.CreateJSONRequest(t, method, path, body)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &env)
	return env
}

func startSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/sessions", "")
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "start session")
	var view registration.View
	testutil.MustUnmarshalJSON(t, decodeEnvelope(t, rr).Result, &view)
	if view.State.SessionID == "" {
		t.Fatal("started session has no id")
	}
	if view.Question == nil || view.Question.ID != "email" {
		t.Fatalf("expected first question email, got %+v", view.Question)
	}
	return view.State.SessionID
}

func TestSessionLifecycle(t *testing.T) {
	sink := &captureSink{}
	server, st := newTestServer(t, registration.WithSink(sink))
	h := server.Handler()
	id := startSession(t, h)

	rr := do(t, h, http.MethodPost, "/sessions/"+id+"/answer", `{"input":"ada@example.com"}`)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "answer email")
	var view registration.View
	testutil.MustUnmarshalJSON(t, decodeEnvelope(t, rr).Result, &view)
	if view.Question == nil || view.Question.ID != "days" {
		t.Fatalf("expected days question, got %+v", view.Question)
	}
	if len(view.Options) != 2 {
		t.Errorf("expected offered options, got %v", view.Options)
	}

	rr = do(t, h, http.MethodPost, "/sessions/"+id+"/select", `{"option":"Fri"}`)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "select Fri")
	rr = do(t, h, http.MethodPost, "/sessions/"+id+"/submit", "")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "submit selection")

	rr = do(t, h, http.MethodPost, "/sessions/"+id+"/skip", "")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "skip notes")
	env := decodeEnvelope(t, rr)
	if env.Status != string(models.APIStatusComplete) || env.Message != "All done." {
		t.Errorf("expected completion envelope, got %s %q", env.Status, env.Message)
	}
	var done completionView
	testutil.MustUnmarshalJSON(t, env.Result, &done)
	if done.Record["email"] != "ada@example.com" || done.Record["days"] != "Fri" || done.Record["notes"] != "" {
		t.Errorf("unexpected record %v", done.Record)
	}
	if !done.Submission.Queued {
		t.Errorf("unexpected submission %+v", done.Submission)
	}
	if !done.State.Complete {
		t.Error("state should be complete")
	}

	testutil.AssertBackupCount(t, st, 1, "after completion")
	waitSubmissions(t, server)
	sink.mu.Lock()
	if len(sink.records) != 1 || sink.records[0][models.TimestampField] == "" {
		t.Errorf("sink should receive one timestamped record, got %v", sink.records)
	}
	sink.mu.Unlock()

	rr = do(t, h, http.MethodPost, "/sessions/"+id+"/answer", `{"input":"again"}`)
	testutil.AssertHTTPStatus(t, http.StatusUnprocessableEntity, rr.Code, "answer after completion")
}

func TestAnswerValidationFailureIs422(t *testing.T) {
	server, _ := newTestServer(t)
	h := server.Handler()
	id := startSession(t, h)

	rr := do(t, h, http.MethodPost, "/sessions/"+id+"/answer", `{"input":"not-an-email"}`)
	testutil.AssertHTTPStatus(t, http.StatusUnprocessableEntity, rr.Code, "invalid email")
	env := decodeEnvelope(t, rr)
	if env.Status != string(models.APIStatusInvalid) || env.Message != "Please enter a valid email address" {
		t.Errorf("unexpected envelope %s %q", env.Status, env.Message)
	}
	var view registration.View
	testutil.MustUnmarshalJSON(t, env.Result, &view)
	if view.State.CurrentIndex != 0 || view.State.ValidationError == "" {
		t.Errorf("state should be unchanged with the message recorded, got %+v", view.State)
	}

	rr = do(t, h, http.MethodGet, "/sessions/"+id, "")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get session")
	testutil.MustUnmarshalJSON(t, decodeEnvelope(t, rr).Result, &view)
	if view.State.ValidationError != "Please enter a valid email address" {
		t.Errorf("validation message should persist, got %q", view.State.ValidationError)
	}
}

func TestSinkFailureStillCompletes(t *testing.T) {
	sink := &captureSink{err: errors.New("sheet unavailable")}
	server, st := newTestServer(t, registration.WithSink(sink))
	h := server.Handler()
	id := startSession(t, h)

	do(t, h, http.MethodPost, "/sessions/"+id+"/answer", `{"input":"ada@example.com"}`)
	do(t, h, http.MethodPost, "/sessions/"+id+"/select", `{"option":"Mon"}`)
	do(t, h, http.MethodPost, "/sessions/"+id+"/submit", "")
	rr := do(t, h, http.MethodPost, "/sessions/"+id+"/answer", `{"input":""}`)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "complete with failing sink")
	var done completionView
	testutil.MustUnmarshalJSON(t, decodeEnvelope(t, rr).Result, &done)
	if !done.State.Complete || !done.Submission.Queued {
		t.Errorf("expected completion with a queued submission, got %+v", done.Submission)
	}
	testutil.AssertBackupCount(t, st, 1, "backup despite sink failure")
	waitSubmissions(t, server)
}

func TestBackAndPendingInput(t *testing.T) {
	server, _ := newTestServer(t)
	h := server.Handler()
	id := startSession(t, h)

	rr := do(t, h, http.MethodPut, "/sessions/"+id+"/input", `{"input":"ada@"}`)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "pending input")
	var view registration.View
	testutil.MustUnmarshalJSON(t, decodeEnvelope(t, rr).Result, &view)
	if view.State.PendingInput != "ada@" {
		t.Errorf("expected pending input mirrored, got %q", view.State.PendingInput)
	}

	do(t, h, http.MethodPost, "/sessions/"+id+"/answer", `{"input":"ada@example.com"}`)
	rr = do(t, h, http.MethodPost, "/sessions/"+id+"/back", "")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "back")
	testutil.MustUnmarshalJSON(t, decodeEnvelope(t, rr).Result, &view)
	if view.State.CurrentIndex != 0 {
		t.Errorf("expected index 0 after back, got %d", view.State.CurrentIndex)
	}
	if _, ok := view.State.Answers["email"]; ok {
		t.Error("back should clear the destination answer")
	}
}

func TestResetAndUnknownSession(t *testing.T) {
	server, _ := newTestServer(t)
	h := server.Handler()
	id := startSession(t, h)

	rr := do(t, h, http.MethodDelete, "/sessions/"+id, "")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "reset")

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/sessions/" + id},
		{http.MethodPost, "/sessions/" + id + "/skip"},
		{http.MethodDelete, "/sessions/missing"},
	} {
		rr = do(t, h, tc.method, tc.path, "")
		testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, tc.method+" "+tc.path)
		testutil.AssertJSONResponse(t, rr, "error")
	}
}

func TestBadRequests(t *testing.T) {
	server, _ := newTestServer(t)
	h := server.Handler()
	id := startSession(t, h)

	tests := []struct {
		name, method, path, body string
	}{
		{"malformed answer", http.MethodPost, "/sessions/" + id + "/answer", `{"input":`},
		{"oversized answer", http.MethodPost, "/sessions/" + id + "/answer", `{"input":"` + strings.Repeat("x", models.MaxInputLength+1) + `"}`},
		{"empty option", http.MethodPost, "/sessions/" + id + "/select", `{"option":" "}`},
		{"unknown channel", http.MethodPost, "/sessions", `{"channel":"fax"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.method, tt.path, tt.body)
			testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, tt.name)
			testutil.AssertJSONResponse(t, rr, "error")
		})
	}

	rr := do(t, h, http.MethodGet, "/sessions/"+id+"/answer", "")
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "GET on answer")
}

func TestSchemaRegistrationsHealthMetrics(t *testing.T) {
	server, st := newTestServer(t)
	h := server.Handler()

	rr := do(t, h, http.MethodGet, "/schema", "")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "schema")
	var schema models.Schema
	testutil.MustUnmarshalJSON(t, decodeEnvelope(t, rr).Result, &schema)
	if len(schema.Questions) != 3 || schema.Questions[0].ID != "email" {
		t.Errorf("unexpected schema %+v", schema)
	}

	rr = do(t, h, http.MethodGet, "/registrations", "")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "empty registrations")
	if env := decodeEnvelope(t, rr); string(env.Result) != "[]" {
		t.Errorf("expected empty list, got %s", env.Result)
	}

	testutil.SeedBackups(t, st, 2)
	rr = do(t, h, http.MethodGet, "/registrations", "")
	var backups []models.BackupEntry
	testutil.MustUnmarshalJSON(t, decodeEnvelope(t, rr).Result, &backups)
	if len(backups) != 2 {
		t.Errorf("expected 2 registrations, got %d", len(backups))
	}

	rr = do(t, h, http.MethodGet, "/healthz", "")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "healthz")

	rr = do(t, h, http.MethodGet, "/metrics", "")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "metrics")
	if !strings.Contains(rr.Body.String(), "regflow_") {
		t.Error("expected regflow metrics in exposition")
	}
}

func TestTwilioWebhookMountedOnlyWhenConfigured(t *testing.T) {
	svc, _ := testutil.NewTestService(t, apiSchema())

	rr := do(t, NewServer(svc).Handler(), http.MethodPost, "/twilio/webhook", "")
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "webhook without twilio")

	called := false
	hook := func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}
	rr = do(t, NewServer(svc, WithTwilioWebhook(hook)).Handler(), http.MethodPost, "/twilio/webhook", "")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "webhook with twilio")
	if !called {
		t.Error("webhook handler not invoked")
	}
}

func TestWithAddr(t *testing.T) {
	svc, _ := testutil.NewTestService(t, apiSchema())
	if got := NewServer(svc).Addr(); got != DefaultAddr {
		t.Errorf("expected default addr, got %q", got)
	}
	if got := NewServer(svc, WithAddr(":9999")).Addr(); got != ":9999" {
		t.Errorf("expected :9999, got %q", got)
	}
	if got := NewServer(svc, WithAddr("")).Addr(); got != DefaultAddr {
		t.Errorf("empty addr should keep default, got %q", got)
	}
}
