package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var captureToolDef = mcp.NewTool("session_capture",
	mcp.WithDescription("Append one capture event to the active session log. Creates the session on first use of an external transcript reference. Never fails the caller."),
	mcp.WithString("external_ref",
		mcp.Description("Stable external transcript reference. Reuses the bound session when seen before; omit to append to the active session."),
	),
	mcp.WithString("actor",
		mcp.Required(),
		mcp.Description("Who produced the content: user or agent."),
	),
	mcp.WithString("content",
		mcp.Required(),
		mcp.Description("Free-text content of the event."),
	),
	mcp.WithString("tool",
		mcp.Description("Tool name associated with the event, if any."),
	),
	mcp.WithString("target",
		mcp.Description("Tool target (file path, command), if any."),
	),
)

var compactToolDef = mcp.NewTool("session_compact",
	mcp.WithDescription("Run extraction over a session's full log and integrate the findings into the vault. Defaults to the active session."),
	mcp.WithString("session_id",
		mcp.Description("Session to compact; omit for the active session."),
	),
	mcp.WithBoolean("clear_active",
		mcp.Description("Clear the active-session pointer after a successful compaction."),
	),
)

var discoverToolDef = mcp.NewTool("vault_discover",
	mcp.WithDescription("Scan a project tree, extract structured knowledge from its files, and integrate the findings into the vault."),
	mcp.WithString("project_root",
		mcp.Required(),
		mcp.Description("Absolute path of the project to scan."),
	),
)

var readToolDef = mcp.NewTool("vault_read",
	mcp.WithDescription("Read one vault document by its vault-relative path."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Vault-relative document path, e.g. entities/order/overview.md."),
	),
)

var treeToolDef = mcp.NewTool("vault_tree",
	mcp.WithDescription("List all vault documents as sorted vault-relative paths."),
)
