package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/RegFlow/internal/api"
	"github.com/BTreeMap/RegFlow/internal/flow"
	"github.com/BTreeMap/RegFlow/internal/lockfile"
	"github.com/BTreeMap/RegFlow/internal/messaging"
	"github.com/BTreeMap/RegFlow/internal/models"
	"github.com/BTreeMap/RegFlow/internal/recovery"
	"github.com/BTreeMap/RegFlow/internal/registration"
	"github.com/BTreeMap/RegFlow/internal/scheduler"
	"github.com/BTreeMap/RegFlow/internal/schema"
	"github.com/BTreeMap/RegFlow/internal/store"
	"github.com/BTreeMap/RegFlow/internal/submission"
	"github.com/BTreeMap/RegFlow/internal/twiliowhatsapp"
	"github.com/BTreeMap/RegFlow/internal/whatsapp"
)

// run wires every module and serves the API until ctx is cancelled.
func run(ctx context.Context, f Flags) error {
	lock, err := lockfile.AcquireLock(f.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	sch, err := schema.Load(f.schemaFile)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	ctrl, err := flow.NewController(sch)
	if err != nil {
		return fmt.Errorf("build controller: %w", err)
	}

	st, err := store.Open(f.dbDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	reg := registration.NewService(ctrl, st, registration.WithSink(submission.New(f.submissionURL)))
	defer drainSubmissions(reg)
	apiOpts := []api.Option{api.WithAddr(f.apiAddr)}

	chat, err := startChat(ctx, f, reg)
	if err != nil {
		return err
	}
	if chat != nil {
		defer chat.Stop()
		if tw, ok := chat.(*messaging.TwilioService); ok {
			apiOpts = append(apiOpts, api.WithTwilioWebhook(tw.TwilioWebhookHandler))
		}
	}

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if f.sessionTTL > 0 {
		if err := sched.ScheduleSweep(ctx, f.sweepCron, f.sessionTTL, reg); err != nil {
			return err
		}
	}

	return api.NewServer(reg, apiOpts...).Run(ctx)
}

// drainSubmissions gives in-flight sink deliveries time to finish before the store closes.
func drainSubmissions(reg *registration.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), registration.DefaultSubmitTimeout)
	defer cancel()
	if err := reg.Wait(ctx); err != nil {
		slog.Warn("drainSubmissions: submissions still pending at shutdown, records kept in local backup", "error", err)
	}
}

// newChatService builds the transport selected by -chat-channel, or nil for none.
func newChatService(ctx context.Context, f Flags) (messaging.Service, models.ChannelType, error) {
	switch f.chatChannel {
	case ChatWhatsApp:
		opts := []whatsapp.Option{whatsapp.WithDBDSN(f.whatsappDSN)}
		if f.qrOutput != "" {
			opts = append(opts, whatsapp.WithQRCodeOutput(f.qrOutput))
		}
		if f.numeric {
			opts = append(opts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(ctx, opts...)
		if err != nil {
			return nil, "", fmt.Errorf("whatsapp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), models.ChannelWhatsApp, nil
	case ChatTwilio:
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, "", fmt.Errorf("twilio client: %w", err)
		}
		return messaging.NewTwilioService(client), models.ChannelTwilio, nil
	case ChatNone, "":
		return nil, "", nil
	default:
		return nil, "", fmt.Errorf("%w %q", ErrUnknownChannel, f.chatChannel)
	}
}

// startChat connects the chat transport to registration sessions and restores the hooks
// of participants whose sessions survived a restart.
func startChat(ctx context.Context, f Flags, reg *registration.Service) (messaging.Service, error) {
	svc, channel, err := newChatService(ctx, f)
	if err != nil || svc == nil {
		return nil, err
	}

	chatFlow := messaging.NewChatFlow(reg, svc, channel, messaging.WithComposeDelay(f.composeDelay))
	handler := messaging.NewResponseHandler(svc, messaging.WithFallback(chatFlow.Fallback()))

	rm := recovery.NewRecoveryManager(reg)
	rm.RegisterHandlerRecovery(recovery.CreateResponseHandlerRecoveryHandler(func(info recovery.ResponseHandlerRecoveryInfo) error {
		return handler.RegisterHook(info.Participant, chatFlow.Hook(info.Participant))
	}))
	rm.RegisterRecoverable(recovery.ChatSessionRecovery{Channel: channel})
	if err := rm.RecoverAll(ctx); err != nil {
		// a participant whose hook was lost is picked up by the fallback on their next message
		slog.Warn("startChat: recovery incomplete", "error", err)
	}

	if err := svc.Start(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("start %s service: %w", channel, err), svc.Stop())
	}
	handler.Start(ctx)
	slog.Info("startChat: chat registration enabled", "channel", channel, "compose_delay", f.composeDelay)
	return svc, nil
}
