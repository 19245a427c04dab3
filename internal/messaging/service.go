package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/BTreeMap/RegFlow/internal/models"
)

// Constants for chat service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for receipt and response channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
	// MinPhoneDigits is the shortest phone number accepted as a chat recipient
	MinPhoneDigits = 6
)

// ErrServiceStopped is returned when sending through a stopped service.
var ErrServiceStopped = errors.New("messaging service stopped")

var phoneNumberRegex = regexp.MustCompile(`\D`)

// Service defines a pluggable chat transport.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates a phone number and returns its digits-only form.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// SendTypingIndicator shows or clears a typing indicator where the transport supports it.
	SendTypingIndicator(ctx context.Context, to string, typing bool) error

	// Start begins any background processing (e.g., event handling).
	Start(ctx context.Context) error

	// Stop stops background processing and closes the event channels.
	Stop() error

	// Receipts returns a channel of delivery receipts.
	Receipts() <-chan models.Receipt

	// Responses returns a channel of incoming respondent messages.
	Responses() <-chan models.Response
}

// canonicalizePhone strips every non-digit and requires at least MinPhoneDigits digits.
func canonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinPhoneDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, MinPhoneDigits)
	}
	if canonical != recipient {
		slog.Debug("messaging.canonicalizePhone: canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}
