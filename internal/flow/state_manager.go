package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/RegFlow/internal/models"
	"github.com/BTreeMap/RegFlow/internal/store"
)

// StoreBasedStateManager implements StateManager using a Store backend.
type StoreBasedStateManager struct {
	store store.Store
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
func NewStoreBasedStateManager(st store.Store) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st}
}

// LoadState retrieves the snapshot for a session.
func (sm *StoreBasedStateManager) LoadState(ctx context.Context, sessionID string) (*models.FlowState, error) {
	st, err := sm.store.GetSession(ctx, sessionID)
	if err != nil {
		slog.Error("StateManager LoadState error", "error", err, "session", sessionID)
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if st == nil {
		slog.Debug("StateManager LoadState not found", "session", sessionID)
	}
	return st, nil
}

// SaveState stores a snapshot for a session.
func (sm *StoreBasedStateManager) SaveState(ctx context.Context, st models.FlowState) error {
	if err := sm.store.SaveSession(ctx, st); err != nil {
		slog.Error("StateManager SaveState error", "error", err, "session", st.SessionID)
		return fmt.Errorf("save session %s: %w", st.SessionID, err)
	}
	slog.Debug("StateManager SaveState succeeded", "session", st.SessionID, "index", st.CurrentIndex, "complete", st.Complete)
	return nil
}

// FindByParticipant returns the newest incomplete session of a chat participant.
func (sm *StoreBasedStateManager) FindByParticipant(ctx context.Context, channel models.ChannelType, participant string) (*models.FlowState, error) {
	st, err := sm.store.GetSessionByParticipant(ctx, channel, participant)
	if err != nil {
		slog.Error("StateManager FindByParticipant error", "error", err, "channel", channel, "participant", participant)
		return nil, fmt.Errorf("find session for %s: %w", participant, err)
	}
	return st, nil
}

// ResetState removes a session.
func (sm *StoreBasedStateManager) ResetState(ctx context.Context, sessionID string) error {
	if err := sm.store.DeleteSession(ctx, sessionID); err != nil {
		slog.Error("StateManager ResetState error", "error", err, "session", sessionID)
		return fmt.Errorf("reset session %s: %w", sessionID, err)
	}
	slog.Debug("StateManager ResetState succeeded", "session", sessionID)
	return nil
}
