package unit

import (
	"github.com/unitdesk/unitdesk/internal/errors"
)

// Page size bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// StatusFilterAll selects every status. It is never sent to the remote API.
const StatusFilterAll = "all"

// PageSizeOptions are the page sizes offered in the UI.
var PageSizeOptions = []int{5, 10, 20, 25, 50, 100}

// Query is a list request.
type Query struct {
	Page     int    `json:"page"`
	PageSize int    `json:"size"`
	Name     string `json:"name,omitempty"`
	Status   Status `json:"status,omitempty"`
}

// Normalize floors the page at 1 and bounds the page size.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// NormalizeStatusFilter maps the UI status filter to a Query status.
// "" and "all" mean no filter; anything else must be a known status.
func NormalizeStatusFilter(s string) (Status, error) {
	if s == "" || s == StatusFilterAll {
		return "", nil
	}
	st, ok := ParseStatus(s)
	if !ok {
		return "", errors.NewInvalidRequest("unknown status filter: " + s)
	}
	return st, nil
}

// Page is one page of units in the order the server returned them.
type Page struct {
	Content    []Unit `json:"content"`
	Page       int    `json:"page"`
	Size       int    `json:"size"`
	Total      int    `json:"total"`
	TotalPages int    `json:"totalPages"`
}

// Pages returns the page count. A server-supplied TotalPages wins;
// otherwise it is derived from Total and Size.
func (p *Page) Pages() int {
	if p.TotalPages > 0 {
		return p.TotalPages
	}
	if p.Size <= 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}

// HasPrev reports whether a page before page exists.
func (p *Page) HasPrev(page int) bool {
	return page > 1
}

// HasNext reports whether a page after page exists.
func (p *Page) HasNext(page int) bool {
	return page < p.Pages()
}

// Outcome is the result of a create, update or delete the server answered.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Unit    *Unit  `json:"data,omitempty"`
}
