package mcp

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/onionskin/onion/internal/config"
	"github.com/onionskin/onion/internal/ops"
)

// KnownTypes lists all valid tool group names.
var KnownTypes = []string{"project", "frame", "scene", "video"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"project_list": {
		def:     projectListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectList },
	},
	"project_new": {
		def:     projectNewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectNew },
	},
	"project_show": {
		def:     projectShowToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectShow },
	},
	"project_title": {
		def:     projectTitleToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectTitle },
	},
	"project_toggle": {
		def:     projectToggleToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectToggle },
	},
	"project_delete": {
		def:     projectDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectDelete },
	},
	"project_export": {
		def:     projectExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectExport },
	},
	"project_import": {
		def:     projectImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectImport },
	},
	"project_storyboard": {
		def:     projectStoryboardToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectStoryboard },
	},
	"frame_add": {
		def:     frameAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFrameAdd },
	},
	"frame_duration": {
		def:     frameDurationToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFrameDuration },
	},
	"frame_remove": {
		def:     frameRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFrameRemove },
	},
	"scene_image": {
		def:     sceneImageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSceneImage },
	},
	"scene_delete": {
		def:     sceneDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSceneDelete },
	},
	"video_render": {
		def:     videoRenderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVideoRender },
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

// GetTypeForTool extracts the group name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "frame_add" → "frame").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// NewServer creates a new MCP server with the editing tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(editor *ops.Editor, db *sql.DB, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"onion",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(editor, db, cfg)

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
func Run(editor *ops.Editor, db *sql.DB, cfg *config.Config, version string) error {
	s := NewServer(editor, db, cfg, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
