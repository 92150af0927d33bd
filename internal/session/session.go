// Package session owns conversation log files per session: rotation-bounded
// append-only segments plus the persisted session-identity mapping. Capture is
// a side channel, so reads of missing sessions degrade to empty rather than
// erroring.
package session

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kestrelworks/grimoire/internal/errors"
	"github.com/kestrelworks/grimoire/internal/state"
)

// EntryMarker delimits entries within one log segment.
const EntryMarker = "<<<entry>>>"

// segmentPrefix names segment files by zero-based rotation index:
// segment-0.log is the original, segment-n.log the n-th rotation.
const segmentPrefix = "segment-"

// Entry is one structured capture event appended to a session log.
type Entry struct {
	Actor   string    // "user" or "agent"
	Tool    string    // optional tool name
	Target  string    // optional tool target
	Content string    // free text
	At      time.Time // zero means now
}

// Store manages session log segments and session identity.
type Store struct {
	db               *sql.DB
	dir              string // per-session segment directories live here
	rotationMaxBytes int
}

// NewStore creates a session store writing segments under dir.
func NewStore(db *sql.DB, dir string, rotationMaxBytes int) *Store {
	return &Store{db: db, dir: dir, rotationMaxBytes: rotationMaxBytes}
}

// ResolveSession returns the session bound to externalRef, allocating a new
// session (and persisting the binding) if none exists. An empty externalRef
// always allocates a fresh unbound session.
func (s *Store) ResolveSession(externalRef string) (string, error) {
	externalRef = strings.TrimSpace(externalRef)

	if externalRef != "" {
		existing, err := state.GetSessionByRef(s.db, externalRef)
		if err != nil {
			return "", err
		}
		if existing != nil {
			return existing.ID, nil
		}
	}

	id, err := generateULID()
	if err != nil {
		return "", errors.NewInternal(err)
	}

	sess := &state.Session{ID: id, StartedAt: time.Now().Unix()}
	if externalRef != "" {
		sess.ExternalRef = &externalRef
	}
	if err := state.InsertSession(s.db, sess); err != nil {
		return "", err
	}

	// Open the first log segment
	if err := os.MkdirAll(s.sessionDir(id), 0700); err != nil {
		return "", errors.NewInternal(err)
	}
	if err := touchFile(s.segmentPath(id, 0)); err != nil {
		return "", errors.NewInternal(err)
	}

	return id, nil
}

// AppendEntry appends a structured entry to the session's current segment.
// Fails with SESSION_NOT_FOUND if the session is unknown.
func (s *Store) AppendEntry(sessionID string, e Entry) error {
	sess, err := state.GetSessionByID(s.db, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return errors.NewSessionNotFound(sessionID)
	}

	path := s.segmentPath(sessionID, sess.SegmentIndex)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatEntry(e)); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// CheckRotation opens a new segment when the current one has reached the
// configured size threshold. Invoke after writes that could cross the
// threshold. Returns true if a rotation happened.
func (s *Store) CheckRotation(sessionID string) (bool, error) {
	if s.rotationMaxBytes <= 0 {
		return false, nil
	}

	sess, err := state.GetSessionByID(s.db, sessionID)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, errors.NewSessionNotFound(sessionID)
	}

	info, err := os.Stat(s.segmentPath(sessionID, sess.SegmentIndex))
	if err != nil {
		// Current segment missing: nothing to rotate
		return false, nil
	}
	if info.Size() < int64(s.rotationMaxBytes) {
		return false, nil
	}

	next := sess.SegmentIndex + 1
	if err := touchFile(s.segmentPath(sessionID, next)); err != nil {
		return false, errors.NewInternal(err)
	}
	if err := state.UpdateSegmentIndex(s.db, sessionID, next); err != nil {
		return false, err
	}
	return true, nil
}

// ReadAll concatenates all segments in index order, each preceded by a
// distinguishable boundary marker. Returns empty text if the session has no
// segments; a missing session reads as empty rather than erroring.
func (s *Store) ReadAll(sessionID string) (string, error) {
	entries, err := os.ReadDir(s.sessionDir(sessionID))
	if err != nil {
		return "", nil
	}

	indexes := make([]int, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), ".log"))
		if err != nil {
			continue
		}
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	var b strings.Builder
	for _, idx := range indexes {
		data, err := os.ReadFile(s.segmentPath(sessionID, idx))
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "===== segment %d =====\n", idx)
		b.Write(data)
	}
	return b.String(), nil
}

// MarkActive persists sessionID as the process-wide current session.
func (s *Store) MarkActive(sessionID string) error {
	return state.SetActive(s.db, sessionID)
}

// GetActive returns the persisted active session ID, or empty if none.
func (s *Store) GetActive() (string, error) {
	return state.GetActive(s.db)
}

// ClearActive removes the active-session pointer (session end).
func (s *Store) ClearActive() error {
	return state.ClearActive(s.db)
}

func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.dir, sessionID)
}

func (s *Store) segmentPath(sessionID string, index int) string {
	return filepath.Join(s.sessionDir(sessionID), fmt.Sprintf("%s%d.log", segmentPrefix, index))
}

// formatEntry renders one entry: marker line, tagged header line, free text.
func formatEntry(e Entry) string {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}

	var b strings.Builder
	b.WriteString(EntryMarker)
	b.WriteByte('\n')
	b.WriteString("[" + e.Actor + "] " + at.UTC().Format(time.RFC3339))
	if e.Tool != "" {
		b.WriteString(" tool=" + e.Tool)
		if e.Target != "" {
			b.WriteString(" target=" + e.Target)
		}
	}
	b.WriteByte('\n')
	content := strings.TrimRight(e.Content, "\n")
	if content != "" {
		b.WriteString(content)
		b.WriteByte('\n')
	}
	return b.String()
}

func touchFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	return f.Close()
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
