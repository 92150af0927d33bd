package state

import (
	"database/sql"
	"time"

	"github.com/kestrelworks/grimoire/internal/errors"
)

// Session is one row of the session-identity mapping table. A session binds an
// opaque ULID to an optional external transcript reference so re-resumed
// transcripts map back to the same session across process restarts.
type Session struct {
	ID           string
	ExternalRef  *string
	StartedAt    int64
	SegmentIndex int
}

// InsertSession stores a new session row.
func InsertSession(db *sql.DB, s *Session) error {
	externalRef := toNullString(s.ExternalRef)

	_, err := db.Exec(
		`INSERT INTO sessions (id, external_ref, started_at, segment_index) VALUES (?, ?, ?, ?)`,
		s.ID, externalRef, s.StartedAt, s.SegmentIndex,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetSessionByID retrieves a session by its ULID.
// Returns nil (no error) if the session is unknown.
func GetSessionByID(db *sql.DB, id string) (*Session, error) {
	row := db.QueryRow(
		`SELECT id, external_ref, started_at, segment_index FROM sessions WHERE id = ?`, id,
	)
	return scanSession(row)
}

// GetSessionByRef retrieves a session by its external transcript reference.
// Returns nil (no error) if no session is bound to the reference.
func GetSessionByRef(db *sql.DB, externalRef string) (*Session, error) {
	row := db.QueryRow(
		`SELECT id, external_ref, started_at, segment_index FROM sessions WHERE external_ref = ?`, externalRef,
	)
	return scanSession(row)
}

// UpdateSegmentIndex records a rotation: the session's current segment index.
func UpdateSegmentIndex(db *sql.DB, id string, index int) error {
	result, err := db.Exec(`UPDATE sessions SET segment_index = ? WHERE id = ?`, index, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewSessionNotFound(id)
	}
	return nil
}

// SetActive persists the process-wide active session pointer.
// The single-row table makes the pointer an explicit piece of persisted state
// rather than an in-memory global, so short-lived hook invocations can find it.
func SetActive(db *sql.DB, sessionID string) error {
	_, err := db.Exec(
		`INSERT INTO active_session (slot, session_id, marked_at) VALUES (1, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET session_id = excluded.session_id, marked_at = excluded.marked_at`,
		sessionID, time.Now().Unix(),
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetActive returns the active session ID, or empty string if none is set.
func GetActive(db *sql.DB) (string, error) {
	var sessionID string
	err := db.QueryRow(`SELECT session_id FROM active_session WHERE slot = 1`).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return sessionID, nil
}

// ClearActive removes the active session pointer. Used at session end.
func ClearActive(db *sql.DB) error {
	if _, err := db.Exec(`DELETE FROM active_session WHERE slot = 1`); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func scanSession(row *sql.Row) (*Session, error) {
	var s Session
	var externalRef sql.NullString
	err := row.Scan(&s.ID, &externalRef, &s.StartedAt, &s.SegmentIndex)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if externalRef.Valid {
		s.ExternalRef = &externalRef.String
	}
	return &s, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
