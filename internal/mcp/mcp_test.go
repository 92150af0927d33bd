package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kestrelworks/grimoire/internal/config"
	"github.com/kestrelworks/grimoire/internal/pipeline"
	"github.com/kestrelworks/grimoire/internal/session"
	"github.com/kestrelworks/grimoire/internal/state"
	"github.com/kestrelworks/grimoire/internal/vault"
)

// stubGateway returns a fixed response, or the configured error.
type stubGateway struct {
	response string
	err      error
	calls    int
}

func (g *stubGateway) Analyze(_ context.Context, _ string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

const analyzerResponse = `Entities:
- Name: Order
  Attributes: id, total

Knowledge:
- Topic: Build System
  Details: Plain make.
`

// testSetup wires handlers against a temporary state dir and vault.
func testSetup(t *testing.T) (*Handlers, *session.Store, *vault.Store) {
	t.Helper()

	tmpDir := t.TempDir()
	db, err := state.Init(tmpDir)
	if err != nil {
		t.Fatalf("state.Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.DefaultConfig()
	cfg.BatchPacingMS = 0

	sessions := session.NewStore(db, state.SessionsDir(tmpDir), cfg.RotationMaxBytes)
	v := vault.New(filepath.Join(tmpDir, "vault"))
	pipe := pipeline.New(pipeline.Deps{
		Sessions: sessions,
		Gateway:  &stubGateway{response: analyzerResponse},
		Vault:    v,
		Config:   cfg,
	})

	return NewHandlers(sessions, pipe, v, nil), sessions, v
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// resultPayload unmarshals a result's JSON text content.
func resultPayload(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()

	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("content is not TextContent")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	return payload
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	payload := resultPayload(t, result)
	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in payload: %v", payload)
	}
	if code, _ := errorObj["code"].(string); code != expectedCode {
		t.Errorf("error code = %q, want %q", code, expectedCode)
	}
}

func TestHandleCapture(t *testing.T) {
	h, sessions, _ := testSetup(t)
	ctx := context.Background()

	result, err := h.HandleCapture(ctx, makeRequest(map[string]any{
		"external_ref": "transcript-1",
		"actor":        "user",
		"content":      "capture me",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatal("capture must never return an error result")
	}

	payload := resultPayload(t, result)
	id, _ := payload["session_id"].(string)
	if id == "" {
		t.Fatal("no session_id in capture result")
	}

	text, err := sessions.ReadAll(id)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if text == "" {
		t.Error("captured entry not written to session log")
	}
}

func TestHandleCapture_NeverFailsCaller(t *testing.T) {
	h, _, _ := testSetup(t)

	// actor as a non-string makes the arguments undecodable
	result, err := h.HandleCapture(context.Background(), makeRequest(map[string]any{
		"actor":   map[string]any{"bad": true},
		"content": "x",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Error("capture must swallow failures")
	}
	payload := resultPayload(t, result)
	if ok, _ := payload["ok"].(bool); !ok {
		t.Error("capture result should still report ok")
	}
}

func TestHandleCompact(t *testing.T) {
	h, sessions, v := testSetup(t)
	ctx := context.Background()

	id, _, err := session.Capture(sessions, session.CaptureInput{
		ExternalRef: "transcript-2",
		Actor:       "user",
		Content:     "discussing the Order entity",
	})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	result, err := h.HandleCompact(ctx, makeRequest(map[string]any{
		"session_id":   id,
		"clear_active": true,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %v", resultPayload(t, result))
	}

	doc, err := v.ReadDocument("entities/order/overview.md")
	if err != nil {
		t.Fatalf("ReadDocument failed: %v", err)
	}
	if doc == "" {
		t.Error("compaction did not integrate into the vault")
	}

	active, err := sessions.GetActive()
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if active != "" {
		t.Errorf("clear_active left active pointer %q", active)
	}
}

func TestHandleCompact_DefaultsToActiveSession(t *testing.T) {
	h, sessions, _ := testSetup(t)

	id, _, err := session.Capture(sessions, session.CaptureInput{
		ExternalRef: "transcript-3",
		Actor:       "agent",
		Content:     "work",
	})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	result, err := h.HandleCompact(context.Background(), makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %v", resultPayload(t, result))
	}

	payload := resultPayload(t, result)
	if got, _ := payload["session_id"].(string); got != id {
		t.Errorf("session_id = %q, want active %q", got, id)
	}
}

func TestHandleCompact_NoActiveSession(t *testing.T) {
	h, _, _ := testSetup(t)

	result, err := h.HandleCompact(context.Background(), makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleDiscover(t *testing.T) {
	h, _, v := testSetup(t)

	projectRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(projectRoot, "main.go"), []byte("package main\n"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	result, err := h.HandleDiscover(context.Background(), makeRequest(map[string]any{
		"project_root": projectRoot,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %v", resultPayload(t, result))
	}

	doc, err := v.ReadDocument("entities/order/overview.md")
	if err != nil {
		t.Fatalf("ReadDocument failed: %v", err)
	}
	if doc == "" {
		t.Error("discovery did not integrate into the vault")
	}
}

func TestHandleDiscover_MissingRoot(t *testing.T) {
	h, _, _ := testSetup(t)

	result, err := h.HandleDiscover(context.Background(), makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleRead(t *testing.T) {
	h, _, v := testSetup(t)

	if err := v.WriteDocument("architecture.md", "# Architecture\n"); err != nil {
		t.Fatalf("WriteDocument failed: %v", err)
	}

	result, err := h.HandleRead(context.Background(), makeRequest(map[string]any{
		"path": "architecture.md",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	payload := resultPayload(t, result)
	if found, _ := payload["found"].(bool); !found {
		t.Error("existing document reported as not found")
	}
	if content, _ := payload["content"].(string); content != "# Architecture\n" {
		t.Errorf("content = %q", content)
	}

	// Unknown documents are found=false, not an error
	result, err = h.HandleRead(context.Background(), makeRequest(map[string]any{
		"path": "missing.md",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	payload = resultPayload(t, result)
	if found, _ := payload["found"].(bool); found {
		t.Error("missing document reported as found")
	}
}

func TestHandleRead_MissingPath(t *testing.T) {
	h, _, _ := testSetup(t)

	result, err := h.HandleRead(context.Background(), makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleTree(t *testing.T) {
	h, _, v := testSetup(t)

	for _, rel := range []string{"architecture.md", "entities/order/overview.md"} {
		if err := v.WriteDocument(rel, "# doc\n"); err != nil {
			t.Fatalf("WriteDocument failed: %v", err)
		}
	}

	result, err := h.HandleTree(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	payload := resultPayload(t, result)
	if count, _ := payload["count"].(float64); int(count) != 2 {
		t.Errorf("count = %v, want 2", payload["count"])
	}
}

func TestToolRegistry(t *testing.T) {
	names := AllToolNames()
	sort.Strings(names)
	want := []string{"session_capture", "session_compact", "vault_discover", "vault_read", "vault_tree"}
	if len(names) != len(want) {
		t.Fatalf("tool names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tool[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	unknown := ValidateDisabledTools([]string{"vault_read", "bogus_tool"})
	if len(unknown) != 1 || unknown[0] != "bogus_tool" {
		t.Errorf("ValidateDisabledTools = %v, want [bogus_tool]", unknown)
	}
}

func TestNewServer_SkipsDisabledTools(t *testing.T) {
	h, _, _ := testSetup(t)

	cfg := config.DefaultConfig()
	cfg.DisabledTools = []string{"vault_discover"}

	s := NewServer(h, cfg, "test")
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
}
