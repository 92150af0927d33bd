package session

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/kestrelworks/grimoire/internal/errors"
	"github.com/kestrelworks/grimoire/internal/state"
)

func newTestStore(t *testing.T, rotationMaxBytes int) (*Store, *sql.DB) {
	t.Helper()
	tmpDir := t.TempDir()
	db, err := state.Init(tmpDir)
	if err != nil {
		t.Fatalf("state.Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db, state.SessionsDir(tmpDir), rotationMaxBytes), db
}

func TestResolveSession_NewAndBound(t *testing.T) {
	store, _ := newTestStore(t, 1024)

	id1, err := store.ResolveSession("transcript-1")
	if err != nil {
		t.Fatalf("ResolveSession failed: %v", err)
	}
	if id1 == "" {
		t.Fatal("ResolveSession returned empty id")
	}

	// Same external ref resolves to the same session
	id2, err := store.ResolveSession("transcript-1")
	if err != nil {
		t.Fatalf("second ResolveSession failed: %v", err)
	}
	if id2 != id1 {
		t.Errorf("ResolveSession = %q, want %q (stable across calls)", id2, id1)
	}

	// A different ref gets a different session
	id3, err := store.ResolveSession("transcript-2")
	if err != nil {
		t.Fatalf("ResolveSession failed: %v", err)
	}
	if id3 == id1 {
		t.Error("distinct external refs must map to distinct sessions")
	}
}

func TestResolveSession_EmptyRefAlwaysAllocates(t *testing.T) {
	store, _ := newTestStore(t, 1024)

	id1, err := store.ResolveSession("")
	if err != nil {
		t.Fatalf("ResolveSession failed: %v", err)
	}
	id2, err := store.ResolveSession("")
	if err != nil {
		t.Fatalf("ResolveSession failed: %v", err)
	}
	if id1 == id2 {
		t.Error("unbound sessions must not be shared")
	}
}

func TestAppendAndReadAll_SingleSegment(t *testing.T) {
	store, _ := newTestStore(t, 1024*1024)

	id, err := store.ResolveSession("s1")
	if err != nil {
		t.Fatalf("ResolveSession failed: %v", err)
	}

	contents := []string{"first message", "second message", "third message"}
	for _, c := range contents {
		if err := store.AppendEntry(id, Entry{Actor: "user", Content: c}); err != nil {
			t.Fatalf("AppendEntry failed: %v", err)
		}
	}

	text, err := store.ReadAll(id)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	// All three entries in order, delimited, still in segment 0
	if !strings.Contains(text, "===== segment 0 =====") {
		t.Error("ReadAll missing segment 0 boundary marker")
	}
	if strings.Contains(text, "===== segment 1 =====") {
		t.Error("no rotation should have happened below threshold")
	}
	if strings.Count(text, EntryMarker) != 3 {
		t.Errorf("entry marker count = %d, want 3", strings.Count(text, EntryMarker))
	}
	last := 0
	for _, c := range contents {
		idx := strings.Index(text[last:], c)
		if idx < 0 {
			t.Fatalf("entry %q missing or out of order in %q", c, text)
		}
		last += idx
	}
}

func TestAppendEntry_UnknownSession(t *testing.T) {
	store, _ := newTestStore(t, 1024)

	err := store.AppendEntry("01UNKNOWN", Entry{Actor: "user", Content: "hello"})
	if !errors.Is(err, errors.ErrSessionNotFound) {
		t.Errorf("AppendEntry error = %v, want SESSION_NOT_FOUND", err)
	}
}

func TestReadAll_MissingSessionIsEmpty(t *testing.T) {
	store, _ := newTestStore(t, 1024)

	text, err := store.ReadAll("01NOPE")
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if text != "" {
		t.Errorf("ReadAll = %q, want empty for unknown session", text)
	}
}

func TestCheckRotation_Boundary(t *testing.T) {
	// Threshold small enough that one entry crosses it
	store, db := newTestStore(t, 64)

	id, err := store.ResolveSession("rotate-me")
	if err != nil {
		t.Fatalf("ResolveSession failed: %v", err)
	}

	// Below threshold: no rotation
	rotated, err := store.CheckRotation(id)
	if err != nil {
		t.Fatalf("CheckRotation failed: %v", err)
	}
	if rotated {
		t.Error("rotation below threshold")
	}

	big := strings.Repeat("x", 100)
	if err := store.AppendEntry(id, Entry{Actor: "agent", Content: big, At: time.Now()}); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}

	// At/over threshold: exactly one rotation
	rotated, err = store.CheckRotation(id)
	if err != nil {
		t.Fatalf("CheckRotation failed: %v", err)
	}
	if !rotated {
		t.Fatal("expected rotation at threshold")
	}

	sess, err := state.GetSessionByID(db, id)
	if err != nil {
		t.Fatalf("GetSessionByID failed: %v", err)
	}
	if sess.SegmentIndex != 1 {
		t.Errorf("SegmentIndex = %d, want 1", sess.SegmentIndex)
	}

	// New empty segment: immediate re-check must not rotate again
	rotated, err = store.CheckRotation(id)
	if err != nil {
		t.Fatalf("CheckRotation failed: %v", err)
	}
	if rotated {
		t.Error("second CheckRotation rotated an empty segment")
	}

	// Writes now land in segment 1 and ReadAll stitches both in order
	if err := store.AppendEntry(id, Entry{Actor: "user", Content: "after rotation"}); err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}
	text, err := store.ReadAll(id)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	seg0 := strings.Index(text, "===== segment 0 =====")
	seg1 := strings.Index(text, "===== segment 1 =====")
	if seg0 < 0 || seg1 < 0 || seg1 < seg0 {
		t.Fatalf("segments out of order in %q", text)
	}
	if !strings.Contains(text[seg1:], "after rotation") {
		t.Error("post-rotation entry not in segment 1")
	}
}

func TestActivePointer_PersistedAcrossStores(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := state.Init(tmpDir)
	if err != nil {
		t.Fatalf("state.Init failed: %v", err)
	}
	defer db.Close()

	store1 := NewStore(db, state.SessionsDir(tmpDir), 1024)
	id, err := store1.ResolveSession("hooked")
	if err != nil {
		t.Fatalf("ResolveSession failed: %v", err)
	}
	if err := store1.MarkActive(id); err != nil {
		t.Fatalf("MarkActive failed: %v", err)
	}

	// A separate store over the same state dir sees the pointer,
	// mimicking a second short-lived hook invocation.
	store2 := NewStore(db, state.SessionsDir(tmpDir), 1024)
	active, err := store2.GetActive()
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if active != id {
		t.Errorf("GetActive = %q, want %q", active, id)
	}

	if err := store2.ClearActive(); err != nil {
		t.Fatalf("ClearActive failed: %v", err)
	}
	active, err = store2.GetActive()
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if active != "" {
		t.Errorf("GetActive = %q, want empty after clear", active)
	}
}

func TestFormatEntry_ToolTags(t *testing.T) {
	at := time.Date(2026, 2, 14, 10, 30, 0, 0, time.UTC)
	got := formatEntry(Entry{Actor: "agent", Tool: "Edit", Target: "main.go", Content: "patched handler", At: at})

	want := EntryMarker + "\n[agent] 2026-02-14T10:30:00Z tool=Edit target=main.go\npatched handler\n"
	if got != want {
		t.Errorf("formatEntry = %q, want %q", got, want)
	}
}
