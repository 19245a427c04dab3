package twiliowhatsapp

import (
	"context"
	"testing"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	if err := mock.SendMessage(ctx, "12345", "Hello Test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := mock.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Body != "Hello Test" {
		t.Errorf("expected body %q, got %q", "Hello Test", msgs[0].Body)
	}
}

func TestWhatsAppAddress(t *testing.T) {
	tests := map[string]string{
		"+15550001":          "whatsapp:+15550001",
		"15550001":           "whatsapp:+15550001",
		"whatsapp:+15550001": "whatsapp:+15550001",
		" +15550001 ":        "whatsapp:+15550001",
	}
	for in, want := range tests {
		if got := WhatsAppAddress(in); got != want {
			t.Errorf("WhatsAppAddress(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without a sending number")
	}
	c, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok"), WithFromWhats("+15550009"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.fromWhats != "whatsapp:+15550009" {
		t.Errorf("unexpected from address %q", c.fromWhats)
	}
}
