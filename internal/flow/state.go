package flow

import (
	"context"
	"time"

	"github.com/BTreeMap/RegFlow/internal/models"
)

// StateManager persists session snapshots between respondent actions.
type StateManager interface {
	// LoadState retrieves a session's state; it returns nil when the session does not exist
	LoadState(ctx context.Context, sessionID string) (*models.FlowState, error)

	// SaveState stores the state, replacing any previous snapshot for the session
	SaveState(ctx context.Context, st models.FlowState) error

	// FindByParticipant returns the in-progress session of a chat participant, or nil
	FindByParticipant(ctx context.Context, channel models.ChannelType, participant string) (*models.FlowState, error)

	// ResetState removes the session
	ResetState(ctx context.Context, sessionID string) error
}

// Timer defines the interface for scheduling delayed actions.
type Timer interface {
	// ScheduleAfter schedules a function to run after a delay and returns its id
	ScheduleAfter(delay time.Duration, fn func()) (string, error)

	// Cancel cancels a scheduled function
	Cancel(id string) error
}
