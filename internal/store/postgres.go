package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/RegFlow/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists sessions and backups in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("PostgresStore.New: DSN not set")
		return nil, ErrDSNNotSet
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("PostgresStore.New: failed to open connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("PostgresStore.New: ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("PostgresStore.New: failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore.New: migrations applied")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, st models.FlowState) error {
	raw, err := encodeSession(st)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, channel, participant, complete, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			complete = EXCLUDED.complete,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at`,
		st.SessionID, string(st.Channel), st.Participant, st.Complete, raw, st.CreatedAt.UTC(), st.UpdatedAt.UTC())
	if err != nil {
		slog.Error("PostgresStore.SaveSession: failed", "error", err, "session", st.SessionID)
		return fmt.Errorf("failed to save session %s: %w", st.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*models.FlowState, error) {
	st, err := scanSession(s.db.QueryRowContext(ctx, `SELECT state::text FROM sessions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetSession: failed", "error", err, "session", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return st, nil
}

func (s *PostgresStore) GetSessionByParticipant(ctx context.Context, channel models.ChannelType, participant string) (*models.FlowState, error) {
	st, err := scanSession(s.db.QueryRowContext(ctx, `
		SELECT state::text FROM sessions
		WHERE channel = $1 AND participant = $2 AND NOT complete
		ORDER BY updated_at DESC LIMIT 1`, string(channel), participant))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetSessionByParticipant: failed", "error", err, "participant", participant)
		return nil, fmt.Errorf("failed to find session for %s: %w", participant, err)
	}
	return st, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		slog.Error("PostgresStore.DeleteSession: failed", "error", err, "session", id)
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) ListSessions(ctx context.Context) ([]models.FlowState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state::text FROM sessions ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore.ListSessions: query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	return collectSessions(rows)
}

func (s *PostgresStore) AppendBackup(ctx context.Context, entry models.BackupEntry) error {
	raw, err := encodeRecord(entry.Record)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO backups (id, session_id, timestamp, record) VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.SessionID, entry.Timestamp.UTC(), raw)
	if err != nil {
		slog.Error("PostgresStore.AppendBackup: failed", "error", err, "session", entry.SessionID)
		return fmt.Errorf("failed to append backup for %s: %w", entry.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) ListBackups(ctx context.Context) ([]models.BackupEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, timestamp, record::text FROM backups ORDER BY seq`)
	if err != nil {
		slog.Error("PostgresStore.ListBackups: query failed", "error", err)
		return nil, fmt.Errorf("failed to query backups: %w", err)
	}
	return collectBackups(rows)
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("PostgresStore.Close: failed", "error", err)
	}
	return err
}
