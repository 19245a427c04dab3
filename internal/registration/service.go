// Package registration owns live registration sessions: it loads and persists each
// session's FlowState, applies controller transitions, and finalizes completed
// registrations by writing the local backup and calling the submission sink.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/RegFlow/internal/flow"
	"github.com/BTreeMap/RegFlow/internal/metrics"
	"github.com/BTreeMap/RegFlow/internal/models"
	"github.com/BTreeMap/RegFlow/internal/store"
	"github.com/BTreeMap/RegFlow/internal/submission"
)

// DefaultSubmitTimeout bounds the background sink call made when a registration completes.
const DefaultSubmitTimeout = 20 * time.Second

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// SubmissionResult reports whether the record was handed to the sink. Delivery runs in
// the background; its outcome goes to the SubmissionObserver, metrics and logs.
// Queued is false when no sink endpoint is configured.
type SubmissionResult struct {
	Queued bool
}

// SubmissionObserver is told the outcome of each background delivery.
type SubmissionObserver func(sessionID string, err error)

// Result is the outcome of one respondent action on a stored session.
type Result struct {
	flow.Outcome
	Submission SubmissionResult // set only when Outcome.Completed
}

// View is a session as presented to a front end: the state, the question being asked
// and the options to display for it.
type View struct {
	State    models.FlowState `json:"state"`
	Question *models.Question `json:"question,omitempty"`
	Options  []string         `json:"options,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithSink sets the submission sink. Defaults to submission.NopSink.
func WithSink(sink submission.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithSubmitTimeout bounds the sink call.
func WithSubmitTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.submitTimeout = d
		}
	}
}

// WithSubmissionObserver registers a callback run after each background delivery.
func WithSubmissionObserver(fn SubmissionObserver) Option {
	return func(s *Service) { s.observer = fn }
}

// WithIDGenerator overrides session and backup id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// WithClock overrides the time source for backup timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service applies controller transitions to persisted sessions. Operations on one session
// are serialized; different sessions proceed concurrently.
type Service struct {
	ctrl          *flow.Controller
	states        flow.StateManager
	store         store.Store
	sink          submission.Sink
	submitTimeout time.Duration
	observer      SubmissionObserver
	newID         func() string
	now           func() time.Time

	locks    sync.Map // session id -> *sync.Mutex
	inflight sync.WaitGroup
}

// NewService creates a registration service over st.
func NewService(ctrl *flow.Controller, st store.Store, opts ...Option) *Service {
	s := &Service{
		ctrl:          ctrl,
		states:        flow.NewStoreBasedStateManager(st),
		store:         st,
		sink:          submission.NopSink{},
		submitTimeout: DefaultSubmitTimeout,
		newID:         uuid.NewString,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Controller returns the flow controller.
func (s *Service) Controller() *flow.Controller {
	return s.ctrl
}

// Start creates and persists a new session.
func (s *Service) Start(ctx context.Context, channel models.ChannelType, participant string) (models.FlowState, error) {
	if channel == "" {
		channel = models.ChannelWeb
	}
	st := s.ctrl.Start(s.newID())
	st.Channel = channel
	st.Participant = participant
	if err := s.states.SaveState(ctx, st); err != nil {
		return models.FlowState{}, err
	}
	metrics.SessionsStarted.WithLabelValues(string(channel)).Inc()
	slog.Info("Service.Start: session started", "session", st.SessionID, "channel", channel, "participant", participant)
	return st, nil
}

// Get loads a session.
func (s *Service) Get(ctx context.Context, sessionID string) (models.FlowState, error) {
	st, err := s.states.LoadState(ctx, sessionID)
	if err != nil {
		return models.FlowState{}, err
	}
	if st == nil {
		return models.FlowState{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return *st, nil
}

// FindByParticipant returns the in-progress session of a chat participant, or nil.
func (s *Service) FindByParticipant(ctx context.Context, channel models.ChannelType, participant string) (*models.FlowState, error) {
	return s.states.FindByParticipant(ctx, channel, participant)
}

// View builds the front-end view of st.
func (s *Service) View(st models.FlowState) View {
	v := View{State: st}
	if q, ok := s.ctrl.CurrentQuestion(st); ok {
		v.Question = &q
		if q.Kind.IsChoice() {
			v.Options = s.ctrl.OfferedOptions(st, st.CurrentIndex)
		}
	}
	return v
}

// Answer submits typed input for the current question.
func (s *Service) Answer(ctx context.Context, sessionID, input string) (Result, error) {
	return s.apply(ctx, sessionID, "answer", func(st models.FlowState) flow.Outcome {
		return s.ctrl.Advance(st, input)
	})
}

// Skip skips the current question.
func (s *Service) Skip(ctx context.Context, sessionID string) (Result, error) {
	return s.apply(ctx, sessionID, "skip", s.ctrl.Skip)
}

// Back returns to the previous visible question.
func (s *Service) Back(ctx context.Context, sessionID string) (Result, error) {
	return s.apply(ctx, sessionID, "back", s.ctrl.GoBack)
}

// Select clicks an option of the current choice question.
func (s *Service) Select(ctx context.Context, sessionID, option string) (Result, error) {
	return s.apply(ctx, sessionID, "select", func(st models.FlowState) flow.Outcome {
		return s.ctrl.SelectOption(st, option)
	})
}

// SubmitSelection confirms the current multi-choice selection.
func (s *Service) SubmitSelection(ctx context.Context, sessionID string) (Result, error) {
	return s.apply(ctx, sessionID, "submit", s.ctrl.SubmitSelection)
}

// SetInput stores the respondent's unsent input.
func (s *Service) SetInput(ctx context.Context, sessionID, text string) (Result, error) {
	return s.apply(ctx, sessionID, "input", func(st models.FlowState) flow.Outcome {
		return s.ctrl.SetPendingInput(st, text)
	})
}

// Reset discards a session. The respondent starts over with a new one.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()
	defer s.locks.Delete(sessionID)

	st, err := s.states.LoadState(ctx, sessionID)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err := s.states.ResetState(ctx, sessionID); err != nil {
		return err
	}
	slog.Info("Service.Reset: session discarded", "session", sessionID)
	return nil
}

// ExpireStale removes incomplete sessions idle for longer than olderThan and returns how
// many were removed. Completed sessions are kept; their record lives in the backup log.
func (s *Service) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	cutoff := s.now().Add(-olderThan)
	removed := 0
	for _, st := range sessions {
		if st.Complete || st.UpdatedAt.After(cutoff) {
			continue
		}
		if s.expire(ctx, st.SessionID, cutoff) {
			removed++
		}
	}
	if removed > 0 {
		metrics.SessionsExpired.Add(float64(removed))
		slog.Info("Service.ExpireStale: removed stale sessions", "count", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// expire removes one session under its lock if it is still stale.
func (s *Service) expire(ctx context.Context, sessionID string, cutoff time.Time) bool {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	st, err := s.states.LoadState(ctx, sessionID)
	if err != nil || st == nil || st.Complete || st.UpdatedAt.After(cutoff) {
		return false
	}
	if err := s.states.ResetState(ctx, sessionID); err != nil {
		slog.Warn("Service.expire: failed to remove session", "session", sessionID, "error", err)
		return false
	}
	s.locks.Delete(sessionID)
	return true
}

// ActiveSessions returns the incomplete sessions of a channel.
func (s *Service) ActiveSessions(ctx context.Context, channel models.ChannelType) ([]models.FlowState, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var out []models.FlowState
	for _, st := range sessions {
		if st.Channel == channel && !st.Complete {
			out = append(out, st)
		}
	}
	return out, nil
}

// Backups returns the local backup log.
func (s *Service) Backups(ctx context.Context) ([]models.BackupEntry, error) {
	return s.store.ListBackups(ctx)
}

func (s *Service) lock(sessionID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// apply runs one transition under the session lock and persists the resulting state,
// including failed outcomes so the validation message survives a reload.
func (s *Service) apply(ctx context.Context, sessionID, op string, transition func(models.FlowState) flow.Outcome) (Result, error) {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	st, err := s.states.LoadState(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if st == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	out := transition(*st)
	metrics.ObserveTransition(op, out.OK())
	if !out.OK() {
		slog.Debug("Service.apply: validation failed", "session", sessionID, "op", op, "message", out.Err.Message)
	}
	if err := s.states.SaveState(ctx, out.State); err != nil {
		return Result{}, err
	}

	res := Result{Outcome: out}
	if out.Completed {
		res.Submission = s.finalize(ctx, out.State, out.Record)
	}
	return res, nil
}

// finalize appends the backup entry, then queues the record for the sink. Neither step can
// undo completion or delay the completion reply; failures are logged and counted.
func (s *Service) finalize(ctx context.Context, st models.FlowState, rec models.Record) SubmissionResult {
	metrics.RegistrationsCompleted.Inc()
	entry := models.BackupEntry{
		ID:        s.newID(),
		SessionID: st.SessionID,
		Timestamp: s.now().UTC(),
		Record:    rec,
	}

	// the respondent's request may already be gone; the record must still be delivered
	detached := context.WithoutCancel(ctx)
	if err := s.store.AppendBackup(detached, entry); err != nil {
		metrics.BackupFailures.Inc()
		slog.Error("Service.finalize: failed to write backup", "session", st.SessionID, "error", err)
	}

	if _, nop := s.sink.(submission.NopSink); nop {
		return SubmissionResult{}
	}
	s.inflight.Add(1)
	go s.submit(detached, st.SessionID, entry.WithTimestamp())
	return SubmissionResult{Queued: true}
}

// submit delivers one record outside the session lock.
func (s *Service) submit(ctx context.Context, sessionID string, rec models.Record) {
	defer s.inflight.Done()
	sctx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	err := s.sink.Submit(sctx, rec)
	metrics.ObserveSubmission(err)
	if err != nil {
		slog.Warn("Service.submit: submission failed, record kept in local backup", "session", sessionID, "error", err)
	} else {
		slog.Info("Service.submit: registration submitted", "session", sessionID)
	}
	if s.observer != nil {
		s.observer(sessionID, err)
	}
}

// Wait blocks until background submissions have finished or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
