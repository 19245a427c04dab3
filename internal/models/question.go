// Package models defines the question schema and answer types shared across RegFlow.
package models

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

// Error variables for schema validation
var (
	ErrEmptySchema         = errors.New("schema has no questions")
	ErrEmptyQuestionID     = errors.New("question id cannot be empty")
	ErrDuplicateQuestionID = errors.New("duplicate question id")
	ErrEmptyPrompt         = errors.New("question prompt cannot be empty")
	ErrInvalidQuestionKind = errors.New("invalid question kind")
	ErrMissingOptions      = errors.New("choice questions require options")
	ErrInvalidRule         = errors.New("invalid conditional rule")
	ErrInvalidValidator    = errors.New("invalid validator")
)

// ConditionalRule gates whether a question is shown, based on a prior answer.
type ConditionalRule struct {
	Kind      RuleKind `json:"kind"`
	DependsOn string   `json:"depends_on"`
	Value     string   `json:"value,omitempty"`  // equals, contains
	Values    []string `json:"values,omitempty"` // one_of
}

// Equals builds a rule that holds when the answer to id is exactly value.
func Equals(id, value string) *ConditionalRule {
	return &ConditionalRule{Kind: RuleEquals, DependsOn: id, Value: value}
}

// OneOf builds a rule that holds when the answer to id is one of values.
func OneOf(id string, values ...string) *ConditionalRule {
	return &ConditionalRule{Kind: RuleOneOf, DependsOn: id, Values: values}
}

// Contains builds a rule that holds when the multi-choice answer to id includes value.
func Contains(id, value string) *ConditionalRule {
	return &ConditionalRule{Kind: RuleContains, DependsOn: id, Value: value}
}

// Validator is one declarative check applied to a free-text answer.
// An empty Message falls back to a kind-specific default.
type Validator struct {
	Kind    ValidatorKind `json:"kind"`
	Pattern string        `json:"pattern,omitempty"`
	Min     *int          `json:"min,omitempty"`
	Max     *int          `json:"max,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Question is a single step of the registration form.
type Question struct {
	ID          string           `json:"id"`
	Prompt      string           `json:"prompt"`
	Label       string           `json:"label,omitempty"` // field label in the submitted record
	Placeholder string           `json:"placeholder,omitempty"`
	Kind        QuestionKind     `json:"kind"`
	Options     []string         `json:"options,omitempty"`
	Required    bool             `json:"required"`
	Skippable   bool             `json:"skippable"`
	Validators  []Validator      `json:"validators,omitempty"`
	Rule        *ConditionalRule `json:"rule,omitempty"`
	// ExcludeAnswerOf names a question whose answer is removed from Options at display time.
	ExcludeAnswerOf string `json:"exclude_answer_of,omitempty"`
}

// FieldLabel returns the label used for this question in a flattened record.
func (q Question) FieldLabel() string {
	if q.Label != "" {
		return q.Label
	}
	return q.ID
}

// HasOption reports whether option is one of the question's declared options.
func (q Question) HasOption(option string) bool {
	return slices.Contains(q.Options, option)
}

// Schema is the ordered, static list of questions plus the fixed system messages.
type Schema struct {
	Greeting   string     `json:"greeting"`
	Completion string     `json:"completion"`
	Questions  []Question `json:"questions"`
}

// Index returns the position of the question with the given id, or -1.
func (s Schema) Index(id string) int {
	for i, q := range s.Questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// Validate checks the structural integrity of the schema.
// Rules referencing unknown questions are reported here; the controller does not recover from them.
func (s Schema) Validate() error {
	if len(s.Questions) == 0 {
		return ErrEmptySchema
	}
	seen := make(map[string]bool, len(s.Questions))
	for i, q := range s.Questions {
		if q.ID == "" {
			return fmt.Errorf("question %d: %w", i, ErrEmptyQuestionID)
		}
		if seen[q.ID] {
			return fmt.Errorf("question %q: %w", q.ID, ErrDuplicateQuestionID)
		}
		if q.Prompt == "" {
			return fmt.Errorf("question %q: %w", q.ID, ErrEmptyPrompt)
		}
		if !IsValidQuestionKind(q.Kind) {
			return fmt.Errorf("question %q: %w: %s", q.ID, ErrInvalidQuestionKind, q.Kind)
		}
		if q.Kind.IsChoice() && len(q.Options) == 0 {
			return fmt.Errorf("question %q: %w", q.ID, ErrMissingOptions)
		}
		if q.Rule != nil {
			if err := validateRule(*q.Rule, seen); err != nil {
				return fmt.Errorf("question %q: %w", q.ID, err)
			}
		}
		if q.ExcludeAnswerOf != "" && !seen[q.ExcludeAnswerOf] {
			return fmt.Errorf("question %q: exclude_answer_of %q must reference an earlier question", q.ID, q.ExcludeAnswerOf)
		}
		for _, v := range q.Validators {
			if err := validateValidator(v); err != nil {
				return fmt.Errorf("question %q: %w", q.ID, err)
			}
		}
		seen[q.ID] = true
	}
	return nil
}

// validateRule requires rules to depend on an earlier question.
func validateRule(r ConditionalRule, earlier map[string]bool) error {
	if !earlier[r.DependsOn] {
		return fmt.Errorf("%w: depends_on %q is not an earlier question", ErrInvalidRule, r.DependsOn)
	}
	switch r.Kind {
	case RuleEquals, RuleContains:
		return nil
	case RuleOneOf:
		if len(r.Values) == 0 {
			return fmt.Errorf("%w: one_of needs values", ErrInvalidRule)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, r.Kind)
	}
}

func validateValidator(v Validator) error {
	switch v.Kind {
	case ValidatorRequired, ValidatorEmail:
		return nil
	case ValidatorRegex:
		if v.Pattern == "" {
			return fmt.Errorf("%w: regex needs a pattern", ErrInvalidValidator)
		}
		if _, err := regexp.Compile(v.Pattern); err != nil {
			return fmt.Errorf("%w: regex %q: %v", ErrInvalidValidator, v.Pattern, err)
		}
		return nil
	case ValidatorNumberRange:
		if v.Min == nil || v.Max == nil || *v.Min > *v.Max {
			return fmt.Errorf("%w: number_range needs min <= max", ErrInvalidValidator)
		}
		return nil
	case ValidatorPhone, ValidatorMinLength:
		if v.Min == nil {
			return fmt.Errorf("%w: %s needs min", ErrInvalidValidator, v.Kind)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidValidator, v.Kind)
	}
}

// IntPtr is a convenience for building validators in Go code.
func IntPtr(v int) *int { return &v }
