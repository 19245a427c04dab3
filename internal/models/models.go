// Package models defines the core data structures for RegFlow.
//
// It includes chat message types, API envelopes and request payloads shared across modules.
package models

import (
	"errors"
	"strings"
)

// Validation constants for API payloads
const (
	// MaxInputLength bounds a single free-text answer.
	MaxInputLength = 2000
)

// Error variables for request validation
var (
	ErrInputTooLong   = errors.New("input exceeds maximum length")
	ErrEmptyOption    = errors.New("option cannot be empty")
	ErrInvalidChannel = errors.New("invalid channel")
)

// MessageStatus represents the delivery status of a chat message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt records the delivery status of an outbound chat message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an incoming chat message from a respondent.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusInvalid indicates the answer failed validation; the session is unchanged.
	APIStatusInvalid APIStatus = "invalid"
	// APIStatusComplete indicates the registration was completed by this request.
	APIStatusComplete APIStatus = "complete"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result any) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result any) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusOK).WithResult(result).Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusError).WithMessage(message).Build()
}

// Invalid creates a validation-failure response carrying the unchanged session view.
func Invalid(message string, result any) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusInvalid).WithMessage(message).WithResult(result).Build()
}

// Complete creates a response for the request that finished a registration.
func Complete(message string, result any) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusComplete).WithMessage(message).WithResult(result).Build()
}

// StartSessionRequest is the payload for POST /sessions.
type StartSessionRequest struct {
	Channel     ChannelType `json:"channel,omitempty"` // defaults to web
	Participant string      `json:"participant,omitempty"`
}

// Validate validates a StartSessionRequest, defaulting the channel.
func (r *StartSessionRequest) Validate() error {
	if r.Channel == "" {
		r.Channel = ChannelWeb
	}
	switch r.Channel {
	case ChannelWeb, ChannelWhatsApp, ChannelTwilio:
		return nil
	default:
		return ErrInvalidChannel
	}
}

// AnswerRequest is the payload for free-text answers and the pending-input mirror.
type AnswerRequest struct {
	Input string `json:"input"`
}

// Validate validates an AnswerRequest.
func (r *AnswerRequest) Validate() error {
	if len(r.Input) > MaxInputLength {
		return ErrInputTooLong
	}
	return nil
}

// SelectRequest is the payload for POST /sessions/{id}/select.
type SelectRequest struct {
	Option string `json:"option"`
}

// Validate validates a SelectRequest.
func (r *SelectRequest) Validate() error {
	if strings.TrimSpace(r.Option) == "" {
		return ErrEmptyOption
	}
	return nil
}
