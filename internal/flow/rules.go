package flow

import (
	"slices"

	"github.com/BTreeMap/RegFlow/internal/models"
)

// EvaluateRule reports whether rule holds against answers. A nil rule always holds.
// An absent prior answer makes every rule kind false.
func EvaluateRule(rule *models.ConditionalRule, answers models.AnswerMap) bool {
	if rule == nil {
		return true
	}
	prior, ok := answers[rule.DependsOn]
	if !ok {
		return false
	}
	switch rule.Kind {
	case models.RuleContains:
		return prior.Contains(rule.Value)
	case models.RuleOneOf:
		return !prior.Multi && slices.Contains(rule.Values, prior.Text)
	case models.RuleEquals:
		return !prior.Multi && prior.Text == rule.Value
	default:
		return false
	}
}

// IsVisible reports whether the question at index should be presented given answers.
func (c *Controller) IsVisible(index int, answers models.AnswerMap) bool {
	if index < 0 || index >= len(c.schema.Questions) {
		return false
	}
	return EvaluateRule(c.schema.Questions[index].Rule, answers)
}

// ResolveNext returns the first index after fromIndex whose question is visible,
// or len(questions) when none remain.
func (c *Controller) ResolveNext(fromIndex int, answers models.AnswerMap) int {
	i := fromIndex + 1
	for i < len(c.schema.Questions) && !c.IsVisible(i, answers) {
		i++
	}
	return i
}

// resolvePrevious walks back from fromIndex-1 past hidden questions, stopping at 0.
func (c *Controller) resolvePrevious(fromIndex int, answers models.AnswerMap) int {
	i := fromIndex - 1
	for i > 0 && !c.IsVisible(i, answers) {
		i--
	}
	if i < 0 {
		return 0
	}
	return i
}

// OfferedOptions returns the options to display for the question at index.
// Options answered on the question named by ExcludeAnswerOf are filtered out; the schema
// itself is never modified.
func (c *Controller) OfferedOptions(st models.FlowState, index int) []string {
	if index < 0 || index >= len(c.schema.Questions) {
		return nil
	}
	q := c.schema.Questions[index]
	if q.ExcludeAnswerOf == "" {
		return slices.Clone(q.Options)
	}
	prior, ok := st.Answers[q.ExcludeAnswerOf]
	if !ok {
		return slices.Clone(q.Options)
	}
	offered := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		if prior.Multi && slices.Contains(prior.Selected, opt) {
			continue
		}
		if !prior.Multi && prior.Text == opt {
			continue
		}
		offered = append(offered, opt)
	}
	return offered
}
