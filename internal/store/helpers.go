package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/BTreeMap/RegFlow/internal/models"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// encodeSession serializes the full snapshot for the state column.
func encodeSession(st models.FlowState) (string, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("marshal session %s: %w", st.SessionID, err)
	}
	return string(b), nil
}

// scanSession decodes a single state column into a FlowState.
func scanSession(row rowScanner) (*models.FlowState, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		return nil, err
	}
	var st models.FlowState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if st.Answers == nil {
		st.Answers = models.AnswerMap{}
	}
	return &st, nil
}

// collectSessions drains rows of state columns.
func collectSessions(rows *sql.Rows) ([]models.FlowState, error) {
	defer rows.Close()
	var out []models.FlowState
	for rows.Next() {
		st, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return out, nil
}

// scanBackup reads id, session_id, timestamp and record columns.
func scanBackup(row rowScanner) (models.BackupEntry, error) {
	var e models.BackupEntry
	var raw string
	if err := row.Scan(&e.ID, &e.SessionID, &e.Timestamp, &raw); err != nil {
		return e, fmt.Errorf("scan backup row: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &e.Record); err != nil {
		return e, fmt.Errorf("unmarshal backup record %s: %w", e.ID, err)
	}
	return e, nil
}

// collectBackups drains rows of backup entries.
func collectBackups(rows *sql.Rows) ([]models.BackupEntry, error) {
	defer rows.Close()
	var out []models.BackupEntry
	for rows.Next() {
		e, err := scanBackup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup rows: %w", err)
	}
	return out, nil
}

func encodeRecord(r models.Record) (string, error) {
	if r == nil {
		r = models.Record{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(b), nil
}
