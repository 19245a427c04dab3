// Package models defines flow type definitions to avoid circular imports.
package models

// QuestionKind determines how a question is answered.
type QuestionKind string

// Speaker identifies who authored a transcript entry.
type Speaker string

// RuleKind selects the comparison a ConditionalRule performs.
type RuleKind string

// ValidatorKind selects the check a Validator performs.
type ValidatorKind string

// ChannelType identifies the front end a registration session is driven from.
type ChannelType string

// Question kinds.
const (
	KindText         QuestionKind = "text"
	KindSingleChoice QuestionKind = "single_choice"
	KindMultiChoice  QuestionKind = "multi_choice"
)

// Transcript speakers.
const (
	SpeakerSystem     Speaker = "system"
	SpeakerRespondent Speaker = "respondent"
)

// Conditional rule kinds.
const (
	RuleEquals   RuleKind = "equals"   // prior answer equals Value
	RuleOneOf    RuleKind = "one_of"   // prior answer is a member of Values
	RuleContains RuleKind = "contains" // prior multi-choice answer contains Value
)

// Validator kinds.
const (
	ValidatorRequired    ValidatorKind = "required"     // non-blank after trimming
	ValidatorRegex       ValidatorKind = "regex"        // matches Pattern
	ValidatorNumberRange ValidatorKind = "number_range" // integer within [Min, Max]
	ValidatorEmail       ValidatorKind = "email"
	ValidatorPhone       ValidatorKind = "phone"      // digits, spaces, + - ( ) and at least Min digits
	ValidatorMinLength   ValidatorKind = "min_length" // at least Min characters after trimming
)

// Channel types.
const (
	ChannelWeb      ChannelType = "web"
	ChannelWhatsApp ChannelType = "whatsapp"
	ChannelTwilio   ChannelType = "twilio"
)

// SkippedText is the transcript text recorded for an empty or explicitly skipped answer.
const SkippedText = "Skipped"

// IsValidQuestionKind reports whether k is a supported question kind.
func IsValidQuestionKind(k QuestionKind) bool {
	switch k {
	case KindText, KindSingleChoice, KindMultiChoice:
		return true
	default:
		return false
	}
}

// IsChoice reports whether the kind presents a fixed option list.
func (k QuestionKind) IsChoice() bool {
	return k == KindSingleChoice || k == KindMultiChoice
}
