package messaging

import (
	"context"
	"testing"

	"github.com/BTreeMap/RegFlow/internal/models"
	"github.com/BTreeMap/RegFlow/internal/whatsapp"
)

// Ensure WhatsAppService implements Service interface
func TestWhatsAppService_ImplementsService(t *testing.T) {
	var _ Service = (*WhatsAppService)(nil)
}

func TestWhatsAppService_SendMessage_Receipt(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient)
	if err := svc.SendMessage(context.Background(), "+1 234 567 890", "hello"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	msgs := mockClient.Messages()
	if len(msgs) != 1 || msgs[0].To != "1234567890" {
		t.Fatalf("expected message to canonical recipient, got %+v", msgs)
	}
	select {
	case receipt := <-svc.Receipts():
		if receipt.To != "1234567890" {
			t.Errorf("expected receipt.To 1234567890, got %s", receipt.To)
		}
		if receipt.Status != models.MessageStatusSent {
			t.Errorf("expected receipt.Status %s, got %s", models.MessageStatusSent, receipt.Status)
		}
	default:
		t.Fatal("expected receipt, got none")
	}
}

func TestWhatsAppService_SendMessage_InvalidRecipient(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient)
	if err := svc.SendMessage(context.Background(), "+123", "hello"); err == nil {
		t.Fatal("expected error for short recipient")
	}
	if len(mockClient.Messages()) != 0 {
		t.Error("nothing should be sent to an invalid recipient")
	}
}

func TestWhatsAppService_TypingIndicator(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient)
	ctx := context.Background()
	svc.SendTypingIndicator(ctx, "1234567890", true)
	svc.SendTypingIndicator(ctx, "1234567890", false)
	if len(mockClient.TypingEvents) != 2 || !mockClient.TypingEvents[0] || mockClient.TypingEvents[1] {
		t.Errorf("expected [true false], got %v", mockClient.TypingEvents)
	}
}

func TestWhatsAppService_StartStop(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("second Stop returned error: %v", err)
	}
	if receipt, ok := <-svc.Receipts(); ok {
		t.Errorf("expected receipts channel closed, got value %v", receipt)
	}
	if response, ok := <-svc.Responses(); ok {
		t.Errorf("expected responses channel closed, got value %v", response)
	}
	if err := svc.SendMessage(context.Background(), "1234567890", "late"); err == nil {
		t.Error("expected error sending after Stop")
	}
}
