package flow

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/BTreeMap/RegFlow/internal/models"
)

// Advance submits rawInput as the answer to the current question.
func (c *Controller) Advance(st models.FlowState, rawInput string) Outcome {
	q, ok := c.CurrentQuestion(st)
	if !ok {
		return c.fail(st, "", MsgAlreadyComplete)
	}

	input := strings.TrimSpace(rawInput)
	switch q.Kind {
	case models.KindMultiChoice:
		return c.SubmitSelection(st)
	case models.KindSingleChoice:
		if input == "" {
			break
		}
		for _, opt := range c.OfferedOptions(st, st.CurrentIndex) {
			if strings.EqualFold(opt, input) {
				return c.SelectOption(st, opt)
			}
		}
		return c.fail(st, q.ID, MsgChooseListed)
	}

	if input == "" && q.Required && !q.Skippable {
		return c.fail(st, q.ID, MsgRequired)
	}
	if msg := Validate(q, rawInput); msg != "" {
		slog.Debug("flow.Advance: validation failed", "session", st.SessionID, "question", q.ID, "message", msg)
		return c.fail(st, q.ID, msg)
	}

	display := rawInput
	if input == "" {
		display = models.SkippedText
	}
	return c.commit(st, q, models.TextAnswer(input), display)
}

// Skip records an empty answer for a skippable question and advances, even when the
// question is marked required.
func (c *Controller) Skip(st models.FlowState) Outcome {
	q, ok := c.CurrentQuestion(st)
	if !ok {
		return c.fail(st, "", MsgAlreadyComplete)
	}
	if !q.Skippable {
		return c.fail(st, q.ID, MsgNotSkippable)
	}
	answer := models.TextAnswer("")
	if q.Kind == models.KindMultiChoice {
		answer = models.SelectionAnswer()
	}
	return c.commit(st, q, answer, models.SkippedText)
}

// GoBack returns to the previous visible question and forces it to be re-answered.
// It is a no-op at index 0.
func (c *Controller) GoBack(st models.FlowState) Outcome {
	if st.Complete {
		return c.fail(st, "", MsgAlreadyComplete)
	}
	if st.CurrentIndex <= 0 {
		return Outcome{State: st.Clone()}
	}

	next := st.Clone()
	if cur, ok := c.CurrentQuestion(st); ok {
		// an unsubmitted multi-choice selection for the question being left
		delete(next.Answers, cur.ID)
	}

	dest := c.resolvePrevious(st.CurrentIndex, next.Answers)
	if n := len(next.Transcript); n >= 2 {
		next.Transcript = next.Transcript[:n-2]
	}
	delete(next.Answers, c.schema.Questions[dest].ID)
	next.CurrentIndex = dest
	next.ValidationError = ""
	next.PendingInput = ""
	next.UpdatedAt = c.now()

	slog.Debug("flow.GoBack: moved back", "session", st.SessionID, "from", st.CurrentIndex, "to", dest)
	return Outcome{State: next}
}

// SelectOption handles a click on an option. Single-choice questions are answered and
// advanced; multi-choice questions toggle the option without advancing.
func (c *Controller) SelectOption(st models.FlowState, option string) Outcome {
	q, ok := c.CurrentQuestion(st)
	if !ok {
		return c.fail(st, "", MsgAlreadyComplete)
	}
	if !q.Kind.IsChoice() {
		return c.fail(st, q.ID, MsgExpectsTypedInput)
	}
	if !slices.Contains(c.OfferedOptions(st, st.CurrentIndex), option) {
		return c.fail(st, q.ID, MsgChooseListed)
	}

	if q.Kind == models.KindSingleChoice {
		return c.commit(st, q, models.TextAnswer(option), option)
	}

	next := st.Clone()
	selected := slices.Clone(next.Answers[q.ID].Selected)
	if i := slices.Index(selected, option); i >= 0 {
		selected = slices.Delete(selected, i, i+1)
	} else {
		selected = append(selected, option)
	}
	if len(selected) == 0 {
		delete(next.Answers, q.ID)
	} else {
		next.Answers[q.ID] = models.SelectionAnswer(selected...)
	}
	next.ValidationError = ""
	next.UpdatedAt = c.now()
	return Outcome{State: next}
}

// SubmitSelection advances past a multi-choice question with the current selection.
func (c *Controller) SubmitSelection(st models.FlowState) Outcome {
	q, ok := c.CurrentQuestion(st)
	if !ok {
		return c.fail(st, "", MsgAlreadyComplete)
	}
	if q.Kind != models.KindMultiChoice {
		return c.fail(st, q.ID, MsgNotMultiChoice)
	}
	selected := st.Answers[q.ID].Selected
	if len(selected) == 0 {
		if q.Required {
			return c.fail(st, q.ID, MsgSelectAtLeastOne)
		}
		return c.commit(st, q, models.SelectionAnswer(), models.SkippedText)
	}
	return c.commit(st, q, models.SelectionAnswer(selected...), strings.Join(selected, ", "))
}

// SetPendingInput mirrors the respondent's unsent input.
func (c *Controller) SetPendingInput(st models.FlowState, text string) Outcome {
	if st.Complete {
		return c.fail(st, "", MsgAlreadyComplete)
	}
	next := st.Clone()
	next.PendingInput = text
	return Outcome{State: next}
}

// commit stores the answer, appends the transcript and moves to the next visible question
// or completes the registration.
func (c *Controller) commit(st models.FlowState, q models.Question, answer models.Answer, display string) Outcome {
	next := st.Clone()
	next.Transcript = append(next.Transcript, c.entry(models.SpeakerRespondent, display))
	next.Answers[q.ID] = answer
	next.ValidationError = ""
	next.PendingInput = ""
	next.UpdatedAt = c.now()

	next.CurrentIndex = c.ResolveNext(st.CurrentIndex, next.Answers)
	if next.CurrentIndex < len(c.schema.Questions) {
		next.Transcript = append(next.Transcript, c.entry(models.SpeakerSystem, c.schema.Questions[next.CurrentIndex].Prompt))
		return Outcome{State: next}
	}

	next.Complete = true
	if c.schema.Completion != "" {
		next.Transcript = append(next.Transcript, c.entry(models.SpeakerSystem, c.schema.Completion))
	}
	slog.Info("flow.commit: registration complete", "session", st.SessionID, "answers", len(next.Answers))
	return Outcome{State: next, Completed: true, Record: c.Flatten(next.Answers)}
}
