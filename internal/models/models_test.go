package models

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestStartSessionRequestDefaultsChannel(t *testing.T) {
	r := StartSessionRequest{}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Channel != ChannelWeb {
		t.Errorf("expected channel %q, got %q", ChannelWeb, r.Channel)
	}

	bad := StartSessionRequest{Channel: "fax"}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("expected ErrInvalidChannel, got %v", err)
	}
}

func TestAnswerRequestValidate(t *testing.T) {
	r := AnswerRequest{Input: strings.Repeat("x", MaxInputLength+1)}
	if err := r.Validate(); !errors.Is(err, ErrInputTooLong) {
		t.Errorf("expected ErrInputTooLong, got %v", err)
	}
	ok := AnswerRequest{Input: ""}
	if err := ok.Validate(); err != nil {
		t.Errorf("empty input should be accepted here, got %v", err)
	}
}

func TestSelectRequestValidate(t *testing.T) {
	r := SelectRequest{Option: "  "}
	if err := r.Validate(); !errors.Is(err, ErrEmptyOption) {
		t.Errorf("expected ErrEmptyOption, got %v", err)
	}
}

func TestSchemaValidate(t *testing.T) {
	valid := Schema{Questions: []Question{
		{ID: "name", Prompt: "Name?", Kind: KindText, Required: true},
		{ID: "track", Prompt: "Track?", Kind: KindSingleChoice, Options: []string{"A", "B"}},
		{ID: "track_other", Prompt: "Which?", Kind: KindText, Rule: Equals("track", "Other")},
	}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		schema Schema
		want   error
	}{
		{"empty", Schema{}, ErrEmptySchema},
		{"missing id", Schema{Questions: []Question{{Prompt: "x", Kind: KindText}}}, ErrEmptyQuestionID},
		{"duplicate", Schema{Questions: []Question{
			{ID: "a", Prompt: "x", Kind: KindText},
			{ID: "a", Prompt: "y", Kind: KindText},
		}}, ErrDuplicateQuestionID},
		{"bad kind", Schema{Questions: []Question{{ID: "a", Prompt: "x", Kind: "slider"}}}, ErrInvalidQuestionKind},
		{"choice without options", Schema{Questions: []Question{{ID: "a", Prompt: "x", Kind: KindMultiChoice}}}, ErrMissingOptions},
		{"forward rule", Schema{Questions: []Question{
			{ID: "a", Prompt: "x", Kind: KindText, Rule: Equals("b", "y")},
			{ID: "b", Prompt: "y", Kind: KindText},
		}}, ErrInvalidRule},
		{"range without bounds", Schema{Questions: []Question{
			{ID: "a", Prompt: "x", Kind: KindText, Validators: []Validator{{Kind: ValidatorNumberRange}}},
		}}, ErrInvalidValidator},
		{"regex that does not compile", Schema{Questions: []Question{
			{ID: "a", Prompt: "x", Kind: KindText, Validators: []Validator{{Kind: ValidatorRegex, Pattern: "[a-z"}}},
		}}, ErrInvalidValidator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.schema.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFlowStateCloneDoesNotAlias(t *testing.T) {
	s := FlowState{
		Answers:    AnswerMap{"skills": SelectionAnswer("Photography")},
		Transcript: []TranscriptEntry{{Speaker: SpeakerSystem, Text: "hi"}},
	}
	c := s.Clone()
	c.Answers["skills"] = SelectionAnswer("Other")
	c.Transcript[0].Text = "changed"

	if !s.Answers["skills"].Contains("Photography") {
		t.Error("clone mutated original answers")
	}
	if s.Transcript[0].Text != "hi" {
		t.Error("clone mutated original transcript")
	}
}

func TestBackupEntryWithTimestamp(t *testing.T) {
	e := BackupEntry{
		Timestamp: time.Date(2025, 10, 1, 12, 30, 0, 0, time.UTC),
		Record:    Record{"First Name": "Ada"},
	}
	r := e.WithTimestamp()
	if r[TimestampField] != "2025-10-01T12:30:00Z" {
		t.Errorf("unexpected timestamp %q", r[TimestampField])
	}
	if _, ok := e.Record[TimestampField]; ok {
		t.Error("WithTimestamp must not modify the stored record")
	}
}
