package schema

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BTreeMap/RegFlow/internal/models"
)

func TestDefaultSchemaIsValid(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("built-in schema invalid: %v", err)
	}
	if s.Greeting != DefaultGreeting || s.Completion != DefaultCompletion {
		t.Error("greeting or completion message missing")
	}
	if i := s.Index("secondary_department"); i < 0 || s.Questions[i].ExcludeAnswerOf != "primary_department" {
		t.Error("secondary department must exclude the primary answer")
	}
}

func TestDefaultReturnsFreshCopy(t *testing.T) {
	a := Default()
	a.Questions[0].Prompt = "changed"
	if Default().Questions[0].Prompt == "changed" {
		t.Error("Default shares state between calls")
	}
}

const sampleJSON = `{
  "greeting": "Hi!",
  "completion": "Thanks!",
  "questions": [
    {"id": "name", "prompt": "Name?", "kind": "text", "required": true},
    {"id": "track", "prompt": "Track?", "kind": "single_choice", "options": ["A", "B", "Other"], "required": true},
    {"id": "track_other", "prompt": "Which?", "kind": "text", "required": true,
     "rule": {"kind": "equals", "depends_on": "track", "value": "Other"}},
    {"id": "elo", "prompt": "ELO?", "kind": "text", "skippable": true,
     "validators": [{"kind": "number_range", "min": 0, "max": 3500, "message": "bad elo"}]}
  ]
}`

func TestParse(t *testing.T) {
	s, err := Parse(strings.NewReader(sampleJSON))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(s.Questions) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(s.Questions))
	}
	rule := s.Questions[2].Rule
	if rule == nil || rule.Kind != models.RuleEquals || rule.DependsOn != "track" || rule.Value != "Other" {
		t.Errorf("rule not decoded: %+v", rule)
	}
	v := s.Questions[3].Validators[0]
	if v.Kind != models.ValidatorNumberRange || *v.Min != 0 || *v.Max != 3500 || v.Message != "bad elo" {
		t.Errorf("validator not decoded: %+v", v)
	}
}

func TestParseRejectsInvalidSchemas(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{"empty", `{"questions": []}`, models.ErrEmptySchema},
		{"bad kind", `{"questions": [{"id": "a", "prompt": "A?", "kind": "dropdown"}]}`, models.ErrInvalidQuestionKind},
		{"choice without options", `{"questions": [{"id": "a", "prompt": "A?", "kind": "single_choice"}]}`, models.ErrMissingOptions},
		{"forward rule", `{"questions": [
			{"id": "a", "prompt": "A?", "kind": "text", "rule": {"kind": "equals", "depends_on": "b", "value": "x"}},
			{"id": "b", "prompt": "B?", "kind": "text"}]}`, models.ErrInvalidRule},
		{"uncompilable regex", `{"questions": [{"id": "a", "prompt": "A?", "kind": "text",
			"validators": [{"kind": "regex", "pattern": "(unclosed"}]}]}`, models.ErrInvalidValidator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.json))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"questions": [{"id": "a", "prompt": "A?", "kind": "text", "validation": "x"}]}`))
	if err == nil {
		t.Error("expected unknown field to be rejected")
	}
}

func TestLoad(t *testing.T) {
	s, err := Load("")
	if err != nil || len(s.Questions) != len(Default().Questions) {
		t.Fatalf("empty path should return the built-in schema, err %v", err)
	}

	path := filepath.Join(t.TempDir(), "schema.json")
	if err := os.WriteFile(path, []byte(sampleJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Greeting != "Hi!" {
		t.Errorf("unexpected greeting %q", s.Greeting)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
