package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/RegFlow/internal/models"
	"github.com/BTreeMap/RegFlow/internal/whatsapp"
)

func TestResponseHandler_RegisterHook(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	handler := NewResponseHandler(NewWhatsAppService(mockClient))

	testHook := func(ctx context.Context, from, responseText string, timestamp int64) (bool, error) {
		return true, nil
	}
	if err := handler.RegisterHook("+1234567890", testHook); err != nil {
		t.Fatalf("RegisterHook failed: %v", err)
	}
	if !handler.IsHookRegistered("1234567890") {
		t.Error("Hook should be registered for canonical phone number")
	}
	if count := handler.GetHookCount(); count != 1 {
		t.Errorf("Expected 1 hook, got %d", count)
	}
	if err := handler.RegisterHook("12", testHook); err == nil {
		t.Error("expected error for too-short recipient")
	}
}

func TestResponseHandler_UnregisterHook(t *testing.T) {
	handler := NewResponseHandler(NewWhatsAppService(whatsapp.NewMockClient()))
	testHook := func(ctx context.Context, from, responseText string, timestamp int64) (bool, error) {
		return true, nil
	}
	if err := handler.RegisterHook("+1234567890", testHook); err != nil {
		t.Fatalf("RegisterHook failed: %v", err)
	}
	if err := handler.UnregisterHook("+1 (234) 567-890"); err != nil {
		t.Fatalf("UnregisterHook failed: %v", err)
	}
	if handler.IsHookRegistered("+1234567890") {
		t.Error("Hook should be unregistered")
	}
	if count := handler.GetHookCount(); count != 0 {
		t.Errorf("Expected 0 hooks, got %d", count)
	}
}

func TestResponseHandler_ProcessResponse_WithHook(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	handler := NewResponseHandler(NewWhatsAppService(mockClient))

	var receivedFrom, receivedText string
	var receivedTimestamp int64
	testHook := func(ctx context.Context, from, responseText string, timestamp int64) (bool, error) {
		receivedFrom, receivedText, receivedTimestamp = from, responseText, timestamp
		return true, nil
	}
	if err := handler.RegisterHook("+1234567890", testHook); err != nil {
		t.Fatalf("RegisterHook failed: %v", err)
	}

	response := models.Response{From: "+1234567890", Body: "test message", Time: time.Now().Unix()}
	if err := handler.ProcessResponse(context.Background(), response); err != nil {
		t.Fatalf("ProcessResponse failed: %v", err)
	}
	if receivedFrom != "1234567890" {
		t.Errorf("Expected from=1234567890, got %s", receivedFrom)
	}
	if receivedText != response.Body {
		t.Errorf("Expected text=%s, got %s", response.Body, receivedText)
	}
	if receivedTimestamp != response.Time {
		t.Errorf("Expected timestamp=%d, got %d", response.Time, receivedTimestamp)
	}
	if n := len(mockClient.Messages()); n != 0 {
		t.Errorf("handled response should not trigger a reply, got %d messages", n)
	}
}

func TestResponseHandler_ProcessResponse_WithoutHook(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	handler := NewResponseHandler(NewWhatsAppService(mockClient), WithDefaultMessage("custom default"))

	response := models.Response{From: "+1234567890", Body: "hi", Time: time.Now().Unix()}
	if err := handler.ProcessResponse(context.Background(), response); err != nil {
		t.Fatalf("ProcessResponse failed: %v", err)
	}
	msgs := mockClient.Messages()
	if len(msgs) != 1 || msgs[0].Body != "custom default" || msgs[0].To != "1234567890" {
		t.Errorf("expected default message to sender, got %+v", msgs)
	}
}

func TestResponseHandler_FallbackRegistersHook(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	calls := 0
	fallback := func(ctx context.Context, rh *ResponseHandler, from, text string) (bool, error) {
		calls++
		return true, rh.RegisterHook(from, func(ctx context.Context, from, text string, ts int64) (bool, error) {
			return true, nil
		})
	}
	handler := NewResponseHandler(NewWhatsAppService(mockClient), WithFallback(fallback))

	ctx := context.Background()
	for range 2 {
		if err := handler.ProcessResponse(ctx, models.Response{From: "+1234567890", Body: "hi"}); err != nil {
			t.Fatalf("ProcessResponse failed: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("fallback should run only before the hook exists, ran %d times", calls)
	}
	if !handler.IsHookRegistered("1234567890") {
		t.Error("fallback should have registered a hook")
	}
}

func TestResponseHandler_HookErrorSendsApology(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	handler := NewResponseHandler(NewWhatsAppService(mockClient))
	boom := errors.New("boom")
	handler.RegisterHook("+1234567890", func(ctx context.Context, from, text string, ts int64) (bool, error) {
		return false, boom
	})

	err := handler.ProcessResponse(context.Background(), models.Response{From: "+1234567890", Body: "hi"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped hook error, got %v", err)
	}
	msgs := mockClient.Messages()
	if len(msgs) != 1 || msgs[0].Body != HandlerErrorMessage {
		t.Errorf("expected error message to sender, got %+v", msgs)
	}
}

func TestResponseHandler_InvalidSender(t *testing.T) {
	handler := NewResponseHandler(NewWhatsAppService(whatsapp.NewMockClient()))
	if err := handler.ProcessResponse(context.Background(), models.Response{From: "abc", Body: "hi"}); err == nil {
		t.Error("expected error for sender without digits")
	}
}

func TestResponseHandler_StartDrainsResponses(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient)
	handler := NewResponseHandler(svc)

	got := make(chan string, 1)
	handler.RegisterHook("+1234567890", func(ctx context.Context, from, text string, ts int64) (bool, error) {
		got <- text
		return true, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler.Start(ctx)
	svc.emitResponse(models.Response{From: "+1234567890", Body: "queued"})

	select {
	case text := <-got:
		if text != "queued" {
			t.Errorf("expected 'queued', got %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("response was not processed")
	}
}
