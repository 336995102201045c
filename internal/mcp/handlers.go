package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/unitdesk/unitdesk/internal/errors"
	"github.com/unitdesk/unitdesk/internal/unit"
)

// Handlers contains the MCP tool handlers.
type Handlers struct {
	client UnitClient
}

// NewHandlers creates tool handlers over the given client.
func NewHandlers(client UnitClient) *Handlers {
	return &Handlers{client: client}
}

// ListRequest is the input for unit_list.
type ListRequest struct {
	Page   int    `json:"page,omitempty"`
	Size   int    `json:"size,omitempty"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
}

// ListOutput is the result of unit_list.
type ListOutput struct {
	Units      []unit.Unit `json:"units"`
	Page       int         `json:"page"`
	Size       int         `json:"size"`
	Total      int         `json:"total"`
	TotalPages int         `json:"total_pages"`
	HasNext    bool        `json:"has_next"`
}

// CreateRequest is the input for unit_create.
type CreateRequest struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// UpdateRequest is the input for unit_update.
type UpdateRequest struct {
	ID     string  `json:"id"`
	Name   *string `json:"name,omitempty"`
	Type   *string `json:"type,omitempty"`
	Status *string `json:"status,omitempty"`
}

// DeleteRequest is the input for unit_delete.
type DeleteRequest struct {
	ID string `json:"id"`
}

// DeleteOutput is the result of unit_delete.
type DeleteOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
	Message string `json:"message,omitempty"`
}

// HandleList handles the unit_list tool.
func (h *Handlers) HandleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := decode[ListRequest](request)
	if err != nil {
		return errorResult(err), nil
	}
	if req.Page < 0 {
		return errorResult(errors.NewInvalidRequest("page must be at least 1")), nil
	}
	if req.Size < 0 || req.Size > unit.MaxPageSize {
		return errorResult(errors.NewInvalidRequest("size must be between 1 and 100")), nil
	}
	status, err := unit.NormalizeStatusFilter(req.Status)
	if err != nil {
		return errorResult(err), nil
	}

	q := unit.Query{Page: req.Page, PageSize: req.Size, Name: strings.TrimSpace(req.Name), Status: status}.Normalize()
	page, err := h.client.List(ctx, q)
	if err != nil {
		return errorResult(err), nil
	}

	units := page.Content
	if units == nil {
		units = []unit.Unit{}
	}
	return successResult(ListOutput{
		Units:      units,
		Page:       q.Page,
		Size:       q.PageSize,
		Total:      page.Total,
		TotalPages: page.Pages(),
		HasNext:    page.HasNext(q.Page),
	})
}

// HandleCreate handles the unit_create tool.
func (h *Handlers) HandleCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := decode[CreateRequest](request)
	if err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(req.Name) == "" {
		return errorResult(errors.NewInvalidRequest("name is required")), nil
	}

	out, err := h.client.Create(ctx, unit.Fields{
		Name:   req.Name,
		Type:   unit.Type(req.Type),
		Status: unit.Status(req.Status),
	})
	return outcomeResult(out, err, func() any { return out })
}

// HandleUpdate handles the unit_update tool.
func (h *Handlers) HandleUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := decode[UpdateRequest](request)
	if err != nil {
		return errorResult(err), nil
	}
	if req.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	var p unit.Patch
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return errorResult(errors.NewInvalidRequest("name cannot be empty")), nil
		}
		p.Name = req.Name
	}
	if req.Type != nil {
		t := unit.Type(*req.Type)
		p.Type = &t
	}
	if req.Status != nil {
		s := unit.Status(*req.Status)
		p.Status = &s
	}

	out, err := h.client.Apply(ctx, req.ID, p)
	return outcomeResult(out, err, func() any { return out })
}

// HandleDelete handles the unit_delete tool.
func (h *Handlers) HandleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := decode[DeleteRequest](request)
	if err != nil {
		return errorResult(err), nil
	}
	if req.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	out, err := h.client.Delete(ctx, req.ID)
	return outcomeResult(out, err, func() any {
		return DeleteOutput{ID: req.ID, Deleted: true, Message: out.Message}
	})
}

// outcomeResult turns a mutation's answer into a tool result. A request the
// remote API answered but refused is an APPLICATION_FAILURE error.
func outcomeResult(out *unit.Outcome, err error, success func() any) (*mcp.CallToolResult, error) {
	if err != nil {
		return errorResult(err), nil
	}
	if !out.Success {
		return errorResult(errors.NewApplicationFailure(out.Message)), nil
	}
	return successResult(success())
}

// errorResult creates an MCP error result with a JSON error payload.
func errorResult(err error) *mcp.CallToolResult {
	payload := map[string]any{
		"error": map[string]any{
			"code":    string(errors.ErrInternal),
			"message": "an internal error occurred",
			"status":  500,
		},
	}

	if uErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    string(uErr.Code),
			"message": uErr.Message,
			"status":  uErr.Status,
		}
		// INTERNAL details carry raw causes
		if uErr.Code != errors.ErrInternal && uErr.Details != nil {
			errorObj["details"] = uErr.Details
		}
		payload = map[string]any{"error": errorObj}
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
