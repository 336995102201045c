package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/unitdesk/unitdesk/internal/unit"
)

func typeNames() []string {
	names := make([]string, 0, len(unit.Types()))
	for _, t := range unit.Types() {
		names = append(names, string(t))
	}
	return names
}

func statusNames() []string {
	names := make([]string, 0, len(unit.Statuses()))
	for _, s := range unit.Statuses() {
		names = append(names, string(s))
	}
	return names
}

var listToolDef = mcp.NewTool("unit_list",
	mcp.WithDescription("List units one page at a time, in the order the remote API returns them. "+
		"Filter by a name search and by status."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithNumber("page", mcp.Description("1-based page number (default 1)"), mcp.Min(1)),
	mcp.WithNumber("size", mcp.Description("Units per page (default 10, max 100)"), mcp.Min(1), mcp.Max(unit.MaxPageSize)),
	mcp.WithString("name", mcp.Description("Name search text")),
	mcp.WithString("status",
		mcp.Description(`Status filter; "all" or omitted for every status`),
		mcp.Enum(append([]string{unit.StatusFilterAll}, statusNames()...)...),
	),
)

var createToolDef = mcp.NewTool("unit_create",
	mcp.WithDescription("Create a unit. The remote API assigns its id."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Unit name")),
	mcp.WithString("type", mcp.Required(), mcp.Enum(typeNames()...)),
	mcp.WithString("status", mcp.Required(), mcp.Enum(statusNames()...)),
)

var updateToolDef = mcp.NewTool("unit_update",
	mcp.WithDescription("Update a unit. Fields left out keep their current value; at least one is required."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Unit id")),
	mcp.WithString("name", mcp.Description("New name")),
	mcp.WithString("type", mcp.Enum(typeNames()...)),
	mcp.WithString("status", mcp.Enum(statusNames()...)),
)

var deleteToolDef = mcp.NewTool("unit_delete",
	mcp.WithDescription("Delete a unit."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithString("id", mcp.Required(), mcp.Description("Unit id")),
)
