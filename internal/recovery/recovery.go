// Package recovery restores in-memory chat routing after a restart. Registration sessions
// are persisted by the store, but the response hooks that route a participant's messages
// to their session only live in memory and must be registered again.
package recovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/RegFlow/internal/models"
)

// Recoverable defines the interface for components that can recover their state
type Recoverable interface {
	// RecoverState is called during application startup to restore component state
	RecoverState(ctx context.Context, registry *RecoveryRegistry) error
}

// SessionLister lists the incomplete sessions of a channel.
type SessionLister interface {
	ActiveSessions(ctx context.Context, channel models.ChannelType) ([]models.FlowState, error)
}

// ResponseHandlerRecoveryInfo identifies a chat participant whose hook must be restored.
type ResponseHandlerRecoveryInfo struct {
	Participant string
	SessionID   string
	Channel     models.ChannelType
}

// RecoveryRegistry provides services that components can use during recovery
type RecoveryRegistry struct {
	sessions            SessionLister
	handlerRecoveryFunc func(ResponseHandlerRecoveryInfo) error
}

// NewRecoveryRegistry creates a new recovery registry
func NewRecoveryRegistry(sessions SessionLister) *RecoveryRegistry {
	return &RecoveryRegistry{sessions: sessions}
}

// RegisterHandlerRecovery registers a callback for response handler recovery
func (r *RecoveryRegistry) RegisterHandlerRecovery(fn func(ResponseHandlerRecoveryInfo) error) {
	r.handlerRecoveryFunc = fn
}

// RecoverResponseHandler requests recovery of a response handler
func (r *RecoveryRegistry) RecoverResponseHandler(info ResponseHandlerRecoveryInfo) error {
	if r.handlerRecoveryFunc == nil {
		return fmt.Errorf("no response handler recovery registered")
	}
	return r.handlerRecoveryFunc(info)
}

// Sessions provides access to the session lister for recovery operations
func (r *RecoveryRegistry) Sessions() SessionLister {
	return r.sessions
}

// RecoveryManager orchestrates recovery of all registered components
type RecoveryManager struct {
	registry     *RecoveryRegistry
	recoverables []Recoverable
}

// NewRecoveryManager creates a new recovery manager
func NewRecoveryManager(sessions SessionLister) *RecoveryManager {
	return &RecoveryManager{registry: NewRecoveryRegistry(sessions)}
}

// RegisterRecoverable adds a component that can be recovered
func (rm *RecoveryManager) RegisterRecoverable(r Recoverable) {
	rm.recoverables = append(rm.recoverables, r)
}

// RegisterHandlerRecovery registers the response handler recovery infrastructure
func (rm *RecoveryManager) RegisterHandlerRecovery(fn func(ResponseHandlerRecoveryInfo) error) {
	rm.registry.RegisterHandlerRecovery(fn)
}

// RecoverAll performs recovery of all registered components
func (rm *RecoveryManager) RecoverAll(ctx context.Context) error {
	slog.Info("RecoveryManager.RecoverAll: starting recovery", "components", len(rm.recoverables))

	recoveredCount := 0
	errorCount := 0
	for _, recoverable := range rm.recoverables {
		if err := recoverable.RecoverState(ctx, rm.registry); err != nil {
			slog.Error("RecoveryManager.RecoverAll: component recovery failed", "error", err, "component", fmt.Sprintf("%T", recoverable))
			errorCount++
			continue
		}
		recoveredCount++
	}

	slog.Info("RecoveryManager.RecoverAll: recovery completed", "recovered", recoveredCount, "errors", errorCount)
	if errorCount > 0 {
		return fmt.Errorf("recovery completed with %d errors out of %d components", errorCount, len(rm.recoverables))
	}
	return nil
}

// GetRegistry provides access to the recovery registry for infrastructure setup
func (rm *RecoveryManager) GetRegistry() *RecoveryRegistry {
	return rm.registry
}

// ChatSessionRecovery restores the response hook of every participant with an
// in-progress session on Channel.
type ChatSessionRecovery struct {
	Channel models.ChannelType
}

// RecoverState implements Recoverable.
func (c ChatSessionRecovery) RecoverState(ctx context.Context, registry *RecoveryRegistry) error {
	sessions, err := registry.Sessions().ActiveSessions(ctx, c.Channel)
	if err != nil {
		return fmt.Errorf("list active %s sessions: %w", c.Channel, err)
	}

	failed := 0
	for _, st := range sessions {
		if st.Participant == "" {
			continue
		}
		info := ResponseHandlerRecoveryInfo{Participant: st.Participant, SessionID: st.SessionID, Channel: c.Channel}
		if err := registry.RecoverResponseHandler(info); err != nil {
			slog.Warn("ChatSessionRecovery.RecoverState: hook not restored", "participant", st.Participant, "session", st.SessionID, "error", err)
			failed++
		}
	}
	slog.Info("ChatSessionRecovery.RecoverState: hooks restored", "channel", c.Channel, "sessions", len(sessions), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d %s hooks not restored", failed, len(sessions), c.Channel)
	}
	return nil
}
