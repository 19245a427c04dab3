package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/RegFlow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists sessions and backups in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store. The DSN is a file path; its directory is
// created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("SQLiteStore.New: DSN not set")
		return nil, ErrDSNNotSet
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("SQLiteStore.New: failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("SQLiteStore.New: failed to open connection", "error", err)
		return nil, err
	}
	// single writer avoids "database is locked" under concurrent sessions
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLiteStore.New: ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("SQLiteStore.New: failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore.New: migrations applied", "dsn", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, st models.FlowState) error {
	raw, err := encodeSession(st)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, channel, participant, complete, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			complete = excluded.complete,
			state = excluded.state,
			updated_at = excluded.updated_at`,
		st.SessionID, string(st.Channel), st.Participant, st.Complete, raw, st.CreatedAt.UTC(), st.UpdatedAt.UTC())
	if err != nil {
		slog.Error("SQLiteStore.SaveSession: failed", "error", err, "session", st.SessionID)
		return fmt.Errorf("failed to save session %s: %w", st.SessionID, err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*models.FlowState, error) {
	st, err := scanSession(s.db.QueryRowContext(ctx, `SELECT state FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetSession: failed", "error", err, "session", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return st, nil
}

func (s *SQLiteStore) GetSessionByParticipant(ctx context.Context, channel models.ChannelType, participant string) (*models.FlowState, error) {
	st, err := scanSession(s.db.QueryRowContext(ctx, `
		SELECT state FROM sessions
		WHERE channel = ? AND participant = ? AND complete = 0
		ORDER BY updated_at DESC LIMIT 1`, string(channel), participant))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetSessionByParticipant: failed", "error", err, "participant", participant)
		return nil, fmt.Errorf("failed to find session for %s: %w", participant, err)
	}
	return st, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		slog.Error("SQLiteStore.DeleteSession: failed", "error", err, "session", id)
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]models.FlowState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state FROM sessions ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore.ListSessions: query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	return collectSessions(rows)
}

func (s *SQLiteStore) AppendBackup(ctx context.Context, entry models.BackupEntry) error {
	raw, err := encodeRecord(entry.Record)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO backups (id, session_id, timestamp, record) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.SessionID, entry.Timestamp.UTC(), raw)
	if err != nil {
		slog.Error("SQLiteStore.AppendBackup: failed", "error", err, "session", entry.SessionID)
		return fmt.Errorf("failed to append backup for %s: %w", entry.SessionID, err)
	}
	slog.Debug("SQLiteStore.AppendBackup: stored", "id", entry.ID, "session", entry.SessionID)
	return nil
}

func (s *SQLiteStore) ListBackups(ctx context.Context) ([]models.BackupEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, timestamp, record FROM backups ORDER BY seq`)
	if err != nil {
		slog.Error("SQLiteStore.ListBackups: query failed", "error", err)
		return nil, fmt.Errorf("failed to query backups: %w", err)
	}
	return collectBackups(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("SQLiteStore.Close: failed", "error", err)
	}
	return err
}
