// Package flow implements the registration question-flow controller.
//
// The controller is a set of pure transitions over models.FlowState: every operation
// clones its input, applies one respondent action and returns an Outcome. Validation
// failures never escape as Go errors; they come back inside the Outcome together with
// the unchanged state.
package flow

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/RegFlow/internal/models"
)

// Validation messages surfaced to respondents.
const (
	MsgRequired          = "this field is required"
	MsgSelectAtLeastOne  = "select at least one option"
	MsgChooseListed      = "please choose one of the listed options"
	MsgNotSkippable      = "this question cannot be skipped"
	MsgAlreadyComplete   = "registration is already complete"
	MsgExpectsTypedInput = "this question expects a typed answer"
	MsgNotMultiChoice    = "this question takes a single answer"
)

// ValidationError is a recoverable, step-local failure. It never advances the flow.
type ValidationError struct {
	QuestionID string
	Message    string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Outcome is the result of one transition.
// On failure State is the input state with ValidationError set and nothing else changed.
type Outcome struct {
	State     models.FlowState
	Err       *ValidationError
	Completed bool          // true only for the transition that finished the registration
	Record    models.Record // flattened answers, set when Completed
}

// OK reports whether the transition succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source used for transcript timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller drives respondents through a static schema. It holds no per-session state
// and is safe for concurrent use.
type Controller struct {
	schema models.Schema
	now    func() time.Time
}

// NewController validates the schema and returns a controller for it.
func NewController(schema models.Schema, opts ...Option) (*Controller, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	c := &Controller{schema: schema, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	slog.Debug("flow.NewController: controller created", "questions", len(schema.Questions))
	return c, nil
}

// Schema returns the controller's question schema.
func (c *Controller) Schema() models.Schema {
	return c.schema
}

// Start creates the initial state for a new session.
func (c *Controller) Start(sessionID string) models.FlowState {
	now := c.now()
	st := models.FlowState{
		SessionID:    sessionID,
		CurrentIndex: c.ResolveNext(-1, models.AnswerMap{}),
		Answers:      models.AnswerMap{},
		Transcript:   []models.TranscriptEntry{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if c.schema.Greeting != "" {
		st.Transcript = append(st.Transcript, c.entry(models.SpeakerSystem, c.schema.Greeting))
	}
	if q, ok := c.CurrentQuestion(st); ok {
		st.Transcript = append(st.Transcript, c.entry(models.SpeakerSystem, q.Prompt))
	}
	return st
}

// CurrentQuestion returns the question at the state's position, or false past the end.
func (c *Controller) CurrentQuestion(st models.FlowState) (models.Question, bool) {
	if st.Complete || st.CurrentIndex < 0 || st.CurrentIndex >= len(c.schema.Questions) {
		return models.Question{}, false
	}
	return c.schema.Questions[st.CurrentIndex], true
}

func (c *Controller) entry(speaker models.Speaker, text string) models.TranscriptEntry {
	return models.TranscriptEntry{Speaker: speaker, Text: text, At: c.now()}
}

func (c *Controller) fail(st models.FlowState, questionID, msg string) Outcome {
	next := st.Clone()
	next.ValidationError = msg
	return Outcome{State: next, Err: &ValidationError{QuestionID: questionID, Message: msg}}
}
