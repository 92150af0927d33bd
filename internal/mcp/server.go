// Package mcp exposes grimoire's capture, compaction, discovery, and vault
// reading operations as MCP tools over stdio.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/kestrelworks/grimoire/internal/config"
	"github.com/kestrelworks/grimoire/internal/pipeline"
	"github.com/kestrelworks/grimoire/internal/session"
	"github.com/kestrelworks/grimoire/internal/vault"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"session_capture": {
		def:     captureToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCapture },
	},
	"session_compact": {
		def:     compactToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCompact },
	},
	"vault_discover": {
		def:     discoverToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDiscover },
	},
	"vault_read": {
		def:     readToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRead },
	},
	"vault_tree": {
		def:     treeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTree },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with grimoire tools registered. Tools
// listed in cfg.DisabledTools are excluded from registration.
func NewServer(h *Handlers, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"grimoire",
		version,
		server.WithToolCapabilities(true),
	)

	disabled := make(map[string]bool)
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(sessions *session.Store, pipe *pipeline.Pipeline, v *vault.Store, cfg *config.Config, log *zap.Logger, version string) error {
	h := NewHandlers(sessions, pipe, v, log)
	return server.ServeStdio(NewServer(h, cfg, version))
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
