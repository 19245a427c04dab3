// Package messaging connects chat transports to registration sessions: inbound messages
// are routed by sender to a response hook, and hooks reply through the same transport.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BTreeMap/RegFlow/internal/metrics"
	"github.com/BTreeMap/RegFlow/internal/models"
)

// ResponseAction processes one inbound message. It receives the sender's canonical phone
// number, the message text and its timestamp, and reports whether it handled the message.
type ResponseAction func(ctx context.Context, from, responseText string, timestamp int64) (handled bool, err error)

// FallbackAction is consulted for senders without a registered hook. It may register a
// hook for the sender (for example by starting a registration) and handle the message.
type FallbackAction func(ctx context.Context, rh *ResponseHandler, from, responseText string) (handled bool, err error)

// HandlerErrorMessage is sent to the sender when a hook fails.
const HandlerErrorMessage = "⚠️ We encountered an issue processing your response. Please try again in a moment."

// ResponseHandler routes incoming responses to per-recipient hooks.
type ResponseHandler struct {
	hooks          map[string]ResponseAction
	mu             sync.RWMutex
	msgService     Service
	defaultMessage string
	fallback       FallbackAction
}

// HandlerOption configures a ResponseHandler.
type HandlerOption func(*ResponseHandler)

// WithFallback sets the action used for senders without a hook.
func WithFallback(fn FallbackAction) HandlerOption {
	return func(rh *ResponseHandler) { rh.fallback = fn }
}

// WithDefaultMessage sets the reply sent when nothing handles a response.
func WithDefaultMessage(msg string) HandlerOption {
	return func(rh *ResponseHandler) { rh.defaultMessage = msg }
}

// NewResponseHandler creates a new ResponseHandler for the given messaging service.
func NewResponseHandler(msgService Service, opts ...HandlerOption) *ResponseHandler {
	rh := &ResponseHandler{
		hooks:          make(map[string]ResponseAction),
		msgService:     msgService,
		defaultMessage: "📝 Your message has been received. Reply 'restart' to begin a new registration.",
	}
	for _, opt := range opts {
		opt(rh)
	}
	return rh
}

// Service returns the transport the handler replies through.
func (rh *ResponseHandler) Service() Service {
	return rh.msgService
}

// RegisterHook registers a response action for a recipient.
func (rh *ResponseHandler) RegisterHook(recipient string, action ResponseAction) error {
	canonical, err := rh.msgService.ValidateAndCanonicalizeRecipient(recipient)
	if err != nil {
		slog.Error("ResponseHandler.RegisterHook: validation failed", "error", err, "recipient", recipient)
		return fmt.Errorf("invalid recipient: %w", err)
	}
	rh.mu.Lock()
	defer rh.mu.Unlock()
	rh.hooks[canonical] = action
	slog.Debug("ResponseHandler.RegisterHook: hook registered", "recipient", canonical)
	return nil
}

// UnregisterHook removes the response action for a recipient.
func (rh *ResponseHandler) UnregisterHook(recipient string) error {
	canonical, err := rh.msgService.ValidateAndCanonicalizeRecipient(recipient)
	if err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	rh.mu.Lock()
	defer rh.mu.Unlock()
	delete(rh.hooks, canonical)
	slog.Debug("ResponseHandler.UnregisterHook: hook removed", "recipient", canonical)
	return nil
}

// IsHookRegistered checks if a hook is registered for the given recipient.
func (rh *ResponseHandler) IsHookRegistered(recipient string) bool {
	canonical, err := rh.msgService.ValidateAndCanonicalizeRecipient(recipient)
	if err != nil {
		return false
	}
	rh.mu.RLock()
	defer rh.mu.RUnlock()
	_, ok := rh.hooks[canonical]
	return ok
}

// GetHookCount returns the number of currently registered hooks.
func (rh *ResponseHandler) GetHookCount() int {
	rh.mu.RLock()
	defer rh.mu.RUnlock()
	return len(rh.hooks)
}

// ProcessResponse runs the sender's hook, then the fallback, then sends the default message.
func (rh *ResponseHandler) ProcessResponse(ctx context.Context, response models.Response) error {
	from, err := rh.msgService.ValidateAndCanonicalizeRecipient(response.From)
	if err != nil {
		slog.Error("ResponseHandler.ProcessResponse: invalid sender", "error", err, "from", response.From)
		return fmt.Errorf("invalid sender: %w", err)
	}
	metrics.ChatMessages.WithLabelValues("inbound").Inc()

	rh.mu.RLock()
	action, hasHook := rh.hooks[from]
	fallback := rh.fallback
	rh.mu.RUnlock()

	var handled bool
	switch {
	case hasHook:
		handled, err = action(ctx, from, response.Body, response.Time)
	case fallback != nil:
		handled, err = fallback(ctx, rh, from, response.Body)
	}
	if err != nil {
		slog.Error("ResponseHandler.ProcessResponse: hook failed", "error", err, "from", from)
		if sendErr := rh.msgService.SendMessage(ctx, from, HandlerErrorMessage); sendErr != nil {
			slog.Error("ResponseHandler.ProcessResponse: failed to send error message", "error", sendErr, "from", from)
		}
		return fmt.Errorf("hook execution failed: %w", err)
	}
	if handled {
		return nil
	}

	if err := rh.msgService.SendMessage(ctx, from, rh.defaultMessage); err != nil {
		return fmt.Errorf("failed to send default response: %w", err)
	}
	return nil
}

// Start consumes responses and receipts from the messaging service until ctx is done or
// the service channels close.
func (rh *ResponseHandler) Start(ctx context.Context) {
	go func() {
		defer slog.Info("ResponseHandler.Start: stopped response processing")
		for {
			select {
			case response, ok := <-rh.msgService.Responses():
				if !ok {
					return
				}
				if err := rh.ProcessResponse(ctx, response); err != nil {
					slog.Error("ResponseHandler.Start: failed to process response", "error", err, "from", response.From)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		for {
			select {
			case receipt, ok := <-rh.msgService.Receipts():
				if !ok {
					return
				}
				if receipt.Status == models.MessageStatusSent {
					metrics.ChatMessages.WithLabelValues("outbound").Inc()
				}
				slog.Debug("ResponseHandler.Start: receipt", "to", receipt.To, "status", receipt.Status)
			case <-ctx.Done():
				return
			}
		}
	}()
	slog.Info("ResponseHandler.Start: response processing started")
}
