// Package models defines state management structures for RegFlow sessions.
package models

import (
	"slices"
	"time"
)

// Answer holds either a single string or an ordered set of strings (multi-choice).
type Answer struct {
	Text     string   `json:"text,omitempty"`
	Selected []string `json:"selected,omitempty"`
	Multi    bool     `json:"multi,omitempty"`
}

// TextAnswer builds a single-valued answer.
func TextAnswer(s string) Answer {
	return Answer{Text: s}
}

// SelectionAnswer builds a multi-choice answer.
func SelectionAnswer(values ...string) Answer {
	return Answer{Selected: slices.Clone(values), Multi: true}
}

// Contains reports whether a multi-choice answer includes v.
func (a Answer) Contains(v string) bool {
	return a.Multi && slices.Contains(a.Selected, v)
}

// AnswerMap maps question id to the respondent's answer.
type AnswerMap map[string]Answer

// Clone returns a deep copy of the map.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		v.Selected = slices.Clone(v.Selected)
		out[k] = v
	}
	return out
}

// TranscriptEntry is one chat bubble.
type TranscriptEntry struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// FlowState represents the current state of a respondent in the registration flow.
type FlowState struct {
	SessionID       string            `json:"session_id"`
	Channel         ChannelType       `json:"channel,omitempty"`
	Participant     string            `json:"participant,omitempty"` // canonical phone for chat channels
	CurrentIndex    int               `json:"current_index"`
	Answers         AnswerMap         `json:"answers"`
	Transcript      []TranscriptEntry `json:"transcript"`
	Complete        bool              `json:"complete"`
	ValidationError string            `json:"validation_error,omitempty"`
	PendingInput    string            `json:"pending_input,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Clone returns a deep copy so transitions never alias the caller's state.
func (s FlowState) Clone() FlowState {
	s.Answers = s.Answers.Clone()
	s.Transcript = slices.Clone(s.Transcript)
	return s
}

// Record is the flattened submission: field label to string value.
type Record map[string]string

// BackupEntry is a record appended to the local backup log.
type BackupEntry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Record    Record    `json:"record"`
}

// TimestampField is the field name carrying the ISO-8601 time in submitted and backed-up records.
const TimestampField = "Timestamp"

// WithTimestamp returns a copy of the record with the ISO-8601 timestamp field added.
func (e BackupEntry) WithTimestamp() Record {
	out := make(Record, len(e.Record)+1)
	for k, v := range e.Record {
		out[k] = v
	}
	out[TimestampField] = e.Timestamp.UTC().Format(time.RFC3339)
	return out
}
