package flow

import (
	"strings"

	"github.com/BTreeMap/RegFlow/internal/models"
)

// MultiValueSeparator joins multi-choice answers in a flattened record.
const MultiValueSeparator = ", "

// Flatten converts answers into the submission record: one field per schema question,
// keyed by label, multi-choice answers comma-joined and unanswered fields empty.
func (c *Controller) Flatten(answers models.AnswerMap) models.Record {
	rec := make(models.Record, len(c.schema.Questions))
	for _, q := range c.schema.Questions {
		a, ok := answers[q.ID]
		switch {
		case !ok:
			rec[q.FieldLabel()] = ""
		case a.Multi:
			rec[q.FieldLabel()] = strings.Join(a.Selected, MultiValueSeparator)
		default:
			rec[q.FieldLabel()] = a.Text
		}
	}
	return rec
}

// FieldLabels returns the record field labels in schema order.
func (c *Controller) FieldLabels() []string {
	labels := make([]string, 0, len(c.schema.Questions))
	for _, q := range c.schema.Questions {
		labels = append(labels, q.FieldLabel())
	}
	return labels
}
