// Package store provides storage backends for RegFlow.
//
// It persists registration session snapshots and the local backup log of completed
// registrations. Backends: in-memory, SQLite and PostgreSQL.
package store

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/BTreeMap/RegFlow/internal/models"
)

// ErrDSNNotSet is returned when a persistent backend is created without a DSN.
var ErrDSNNotSet = errors.New("database DSN not set")

// Store persists session snapshots and the backup log.
// GetSession and GetSessionByParticipant return (nil, nil) when nothing matches.
type Store interface {
	SaveSession(ctx context.Context, st models.FlowState) error
	GetSession(ctx context.Context, id string) (*models.FlowState, error)
	GetSessionByParticipant(ctx context.Context, channel models.ChannelType, participant string) (*models.FlowState, error)
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context) ([]models.FlowState, error)
	AppendBackup(ctx context.Context, entry models.BackupEntry) error
	ListBackups(ctx context.Context) ([]models.BackupEntry, error)
	Close() error
}

// Opts holds configuration for persistent stores.
type Opts struct {
	DSN string
}

// Option configures a persistent store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and "sqlite3" otherwise.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// Open creates the backend matching dsn: PostgreSQL, SQLite, or in-memory when dsn is empty.
func Open(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		slog.Info("store.Open: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(dsn) == "postgres" {
		return NewPostgresStore(WithPostgresDSN(dsn))
	}
	return NewSQLiteStore(WithSQLiteDSN(dsn))
}

// InMemoryStore keeps sessions and backups in process memory. Safe for concurrent use.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.FlowState
	backups  []models.BackupEntry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]models.FlowState)}
}

func (s *InMemoryStore) SaveSession(_ context.Context, st models.FlowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[st.SessionID] = st.Clone()
	return nil
}

func (s *InMemoryStore) GetSession(_ context.Context, id string) (*models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	out := st.Clone()
	return &out, nil
}

func (s *InMemoryStore) GetSessionByParticipant(_ context.Context, channel models.ChannelType, participant string) (*models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest *models.FlowState
	for _, st := range s.sessions {
		if st.Channel != channel || st.Participant != participant || st.Complete {
			continue
		}
		if newest == nil || st.UpdatedAt.After(newest.UpdatedAt) {
			c := st.Clone()
			newest = &c
		}
	}
	return newest, nil
}

func (s *InMemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// ListSessions returns all sessions ordered by creation time.
func (s *InMemoryStore) ListSessions(_ context.Context) ([]models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FlowState, 0, len(s.sessions))
	for _, st := range s.sessions {
		out = append(out, st.Clone())
	}
	slices.SortFunc(out, func(a, b models.FlowState) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) AppendBackup(_ context.Context, entry models.BackupEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := make(models.Record, len(entry.Record))
	for k, v := range entry.Record {
		rec[k] = v
	}
	entry.Record = rec
	s.backups = append(s.backups, entry)
	return nil
}

// ListBackups returns the backup log in append order.
func (s *InMemoryStore) ListBackups(_ context.Context) ([]models.BackupEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.backups), nil
}

func (s *InMemoryStore) Close() error { return nil }
