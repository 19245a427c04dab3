package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/BTreeMap/RegFlow/internal/models"
	"github.com/BTreeMap/RegFlow/internal/twiliowhatsapp"
)

// TwilioService implements Service using the Twilio API. Inbound messages arrive
// through TwilioWebhookHandler.
type TwilioService struct {
	client    twiliowhatsapp.TwilioWhatsAppSender
	receipts  chan models.Receipt
	responses chan models.Response
	mu        sync.RWMutex
	stopped   bool
}

// NewTwilioService creates a new TwilioService.
func NewTwilioService(client twiliowhatsapp.TwilioWhatsAppSender) *TwilioService {
	return &TwilioService{
		client:    client,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
}

// ValidateAndCanonicalizeRecipient returns the digits-only phone number.
// Twilio "whatsapp:+1555..." addresses are accepted.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// Start is a no-op for Twilio; inbound traffic is pushed to the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes channels and stops the service.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.receipts)
	close(s.responses)
	return nil
}

func (s *TwilioService) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// SendMessage sends a message via Twilio and emits a receipt.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService.SendMessage: invalid recipient", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonical, body); err != nil {
		return err
	}
	s.emitReceipt(models.Receipt{To: canonical, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// SendTypingIndicator forwards to the client, which ignores it for Twilio.
func (s *TwilioService) SendTypingIndicator(ctx context.Context, to string, typing bool) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	return s.client.SendTypingIndicator(ctx, to, typing)
}

// Receipts returns the channel for sent message receipts.
func (s *TwilioService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns the channel for incoming messages.
func (s *TwilioService) Responses() <-chan models.Response {
	return s.responses
}

func (s *TwilioService) emitReceipt(r models.Receipt) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return
	}
	select {
	case s.receipts <- r:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService.emitReceipt: receipts channel blocked, dropping receipt", "to", r.To)
	}
}

func (s *TwilioService) emitResponse(r models.Response) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		slog.Warn("TwilioService.emitResponse: service stopped, dropping message", "from", r.From)
		return
	}
	select {
	case s.responses <- r:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService.emitResponse: responses channel blocked, dropping message", "from", r.From)
	}
}

// TwilioWebhookHandler handles inbound Twilio webhook requests and emits them on Responses().
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("TwilioService.TwilioWebhookHandler: failed to parse form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	from := r.FormValue("From")
	body := r.FormValue("Body")
	if from == "" || body == "" {
		slog.Warn("TwilioService.TwilioWebhookHandler: missing fields", "from_set", from != "", "body_set", body != "")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	if s.isStopped() {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	slog.Debug("TwilioService.TwilioWebhookHandler: inbound message", "from", from, "body_length", len(body))

	s.emitResponse(models.Response{From: from, Body: body, Time: time.Now().Unix()})

	// empty TwiML; replies go out through the REST API
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "<Response></Response>")
}
