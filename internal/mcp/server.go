package mcp

import (
	"context"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/unitdesk/unitdesk/internal/config"
	"github.com/unitdesk/unitdesk/internal/unit"
)

// UnitClient is the remote unit API as the tools use it.
type UnitClient interface {
	List(ctx context.Context, q unit.Query) (*unit.Page, error)
	Create(ctx context.Context, f unit.Fields) (*unit.Outcome, error)
	Apply(ctx context.Context, id string, p unit.Patch) (*unit.Outcome, error)
	Delete(ctx context.Context, id string) (*unit.Outcome, error)
}

type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var toolRegistry = map[string]toolEntry{
	"unit_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"unit_create": {
		def:     createToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreate },
	},
	"unit_update": {
		def:     updateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpdate },
	},
	"unit_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns the names in the list that are not tools.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the unit tools registered, minus
// those listed in cfg.DisabledTools.
func NewServer(client UnitClient, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"unitdesk",
		version,
		server.WithToolCapabilities(true),
	)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	h := NewHandlers(client)
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the tools over stdio until stdin closes.
func Run(client UnitClient, cfg *config.Config, version string) error {
	return server.ServeStdio(NewServer(client, cfg, version))
}
