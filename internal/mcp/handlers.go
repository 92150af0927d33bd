package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/kestrelworks/grimoire/internal/errors"
	"github.com/kestrelworks/grimoire/internal/pipeline"
	"github.com/kestrelworks/grimoire/internal/session"
	"github.com/kestrelworks/grimoire/internal/vault"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	sessions *session.Store
	pipe     *pipeline.Pipeline
	vault    *vault.Store
	log      *zap.Logger
}

// NewHandlers creates a new Handlers instance. A nil logger is replaced with
// a no-op.
func NewHandlers(sessions *session.Store, pipe *pipeline.Pipeline, v *vault.Store, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{sessions: sessions, pipe: pipe, vault: v, log: log}
}

// Request types for each tool

// CaptureRequest represents the arguments for session_capture.
type CaptureRequest struct {
	ExternalRef string `json:"external_ref,omitempty"`
	Actor       string `json:"actor"`
	Content     string `json:"content"`
	Tool        string `json:"tool,omitempty"`
	Target      string `json:"target,omitempty"`
}

// CompactRequest represents the arguments for session_compact.
type CompactRequest struct {
	SessionID   string `json:"session_id,omitempty"`
	ClearActive bool   `json:"clear_active,omitempty"`
}

// DiscoverRequest represents the arguments for vault_discover.
type DiscoverRequest struct {
	ProjectRoot string `json:"project_root"`
}

// ReadRequest represents the arguments for vault_read.
type ReadRequest struct {
	Path string `json:"path"`
}

// Handler implementations

// HandleCapture handles the session_capture tool call. Capture never reports
// failure to the caller; problems are logged and swallowed so hooks firing
// this tool cannot be disrupted.
func (h *Handlers) HandleCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureRequest](req)
	if err != nil {
		h.log.Warn("capture arguments undecodable", zap.Error(err))
		return successResult(map[string]any{"ok": true})
	}

	id, rotated, err := session.Capture(h.sessions, session.CaptureInput{
		ExternalRef: input.ExternalRef,
		Actor:       input.Actor,
		Content:     input.Content,
		Tool:        input.Tool,
		Target:      input.Target,
	})
	if err != nil {
		h.log.Warn("capture failed", zap.Error(err))
		return successResult(map[string]any{"ok": true})
	}

	return successResult(map[string]any{
		"ok":         true,
		"session_id": id,
		"rotated":    rotated,
	})
}

// HandleCompact handles the session_compact tool call.
func (h *Handlers) HandleCompact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CompactRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID, err = h.sessions.GetActive()
		if err != nil {
			return errorResult(err), nil
		}
		if sessionID == "" {
			return errorResult(errors.NewInvalidRequest("no session_id given and no active session")), nil
		}
	}

	report, err := h.pipe.Compact(ctx, sessionID)
	if err != nil {
		return errorResult(err), nil
	}

	if input.ClearActive {
		if err := h.sessions.ClearActive(); err != nil {
			h.log.Warn("clear active failed", zap.Error(err))
		}
	}

	return successResult(map[string]any{
		"session_id": sessionID,
		"report":     report,
	})
}

// HandleDiscover handles the vault_discover tool call.
func (h *Handlers) HandleDiscover(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DiscoverRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ProjectRoot == "" {
		return errorResult(errors.NewInvalidRequest("project_root is required")), nil
	}

	report, err := h.pipe.Discover(ctx, input.ProjectRoot)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"project_root": input.ProjectRoot,
		"report":       report,
	})
}

// HandleRead handles the vault_read tool call.
func (h *Handlers) HandleRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReadRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Path == "" {
		return errorResult(errors.NewInvalidRequest("path is required")), nil
	}

	content, err := h.vault.ReadDocument(input.Path)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"path":    input.Path,
		"content": content,
		"found":   content != "",
	})
}

// HandleTree handles the vault_tree tool call.
func (h *Handlers) HandleTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := h.vault.Tree()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"documents": docs,
		"count":     len(docs),
	})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if gErr, ok := err.(*errors.GrimoireError); ok {
		errorObj := map[string]any{
			"code":    gErr.Code,
			"message": gErr.Message,
			"status":  gErr.Status,
		}
		if gErr.Code != errors.ErrInternal && gErr.Details != nil {
			errorObj["details"] = gErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
