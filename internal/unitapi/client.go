// Package unitapi is the HTTP client for the remote unit API.
//
// Every call takes a context and can be cancelled in flight. A call that does
// not complete, or whose response cannot be understood, returns an error with
// code FETCH_FAILURE. A mutation the server answered with success:false is
// not an error: it comes back as an Outcome carrying the server's message.
package unitapi

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/unitdesk/unitdesk/internal/errors"
	"github.com/unitdesk/unitdesk/internal/logging"
	"github.com/unitdesk/unitdesk/internal/metrics"
	"github.com/unitdesk/unitdesk/internal/unit"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Doer sends HTTP requests. *http.Client and *resilience.Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the client dependencies.
type Config struct {
	// BaseURL is the API root; unit routes are {BaseURL}/unit.
	BaseURL string

	// HTTP sends requests. Defaults to http.DefaultClient.
	HTTP Doer

	// UserAgent is sent on every request.
	UserAgent string

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Client talks to the remote unit API.
type Client struct {
	base      *url.URL
	http      Doer
	userAgent string
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// New validates cfg and returns a client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("unitapi: base url must be absolute, got %q", cfg.BaseURL)
	}
	doer := cfg.HTTP
	if doer == nil {
		doer = http.DefaultClient
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "unitdesk"
	}
	return &Client{
		base:      base,
		http:      doer,
		userAgent: ua,
		log:       cfg.Logger.With().Str("component", "unitapi").Logger(),
		metrics:   cfg.Metrics,
	}, nil
}

// envelope is the response wrapper used by every route.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type pagination struct {
	Page       int `json:"page"`
	Size       int `json:"size"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// listData accepts both the nested shape ({content, pagination:{...}})
// and the flat one ({content, page, size, total, totalPages}).
type listData struct {
	Content    []unit.Unit `json:"content"`
	Pagination *pagination `json:"pagination"`
	pagination
}

// response is a completed round-trip.
type response struct {
	status int
	empty  bool
	env    *envelope // nil when the body is not an envelope
}

func (r *response) ok() bool { return r.status >= 200 && r.status < 300 }

// listParams is the list query string. Empty name and status are omitted.
type listParams struct {
	Page   int    `url:"page"`
	Size   int    `url:"size"`
	Name   string `url:"name,omitempty"`
	Status string `url:"status,omitempty"`
}

// List fetches one page of units. The "all" status sentinel and an empty
// status are never sent.
func (c *Client) List(ctx context.Context, q unit.Query) (*unit.Page, error) {
	const op = "list"
	q = q.Normalize()

	lp := listParams{Page: q.Page, Size: q.PageSize, Name: q.Name}
	if string(q.Status) != unit.StatusFilterAll {
		lp.Status = string(q.Status)
	}
	params, err := query.Values(lp)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	start := time.Now()
	resp, err := c.do(ctx, http.MethodGet, "unit", params, nil)
	if err != nil {
		c.observe(ctx, op, err, start)
		return nil, errors.NewFetchFailure("list units", err)
	}
	if !resp.ok() || resp.env == nil || (resp.env.Success != nil && !*resp.env.Success) {
		err := statusError(resp)
		c.observe(ctx, op, err, start)
		return nil, errors.NewFetchFailure("list units", err)
	}

	page, err := decodePage(resp.env.Data, q)
	if err != nil {
		c.observe(ctx, op, err, start)
		return nil, errors.NewFetchFailure("list units", err)
	}
	c.observe(ctx, op, nil, start)
	return page, nil
}

func decodePage(raw json.RawMessage, q unit.Query) (*unit.Page, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("response has no data")
	}
	var d listData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode list data: %w", err)
	}

	meta := d.pagination
	if d.Pagination != nil {
		meta = *d.Pagination
	}
	if meta.Page == 0 {
		meta.Page = q.Page
	}
	if meta.Size == 0 {
		meta.Size = q.PageSize
	}

	content := d.Content
	if content == nil {
		content = []unit.Unit{}
	}
	for _, u := range content {
		if !u.Type.Valid() || !u.Status.Valid() {
			return nil, fmt.Errorf("unit %q has type %q and status %q outside the known values", u.ID, u.Type, u.Status)
		}
	}
	return &unit.Page{
		Content:    content,
		Page:       meta.Page,
		Size:       meta.Size,
		Total:      meta.Total,
		TotalPages: meta.TotalPages,
	}, nil
}

// Get fetches a single unit.
func (c *Client) Get(ctx context.Context, id string) (*unit.Unit, error) {
	const op = "get"
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	start := time.Now()
	resp, err := c.do(ctx, http.MethodGet, "unit/"+url.PathEscape(id), nil, nil)
	if err != nil {
		c.observe(ctx, op, err, start)
		return nil, errors.NewFetchFailure("get unit", err)
	}
	if resp.status == http.StatusNotFound {
		c.observeResult(op, metrics.ResultAppFailure, start)
		return nil, errors.NewNotFound(id)
	}
	if !resp.ok() || resp.env == nil {
		err := statusError(resp)
		c.observe(ctx, op, err, start)
		return nil, errors.NewFetchFailure("get unit", err)
	}

	u := decodeUnit(resp.env.Data)
	if u == nil {
		err := fmt.Errorf("response has no unit")
		c.observe(ctx, op, err, start)
		return nil, errors.NewFetchFailure("get unit", err)
	}
	c.observe(ctx, op, nil, start)
	return u, nil
}

// Create submits a new unit. The server assigns its id.
func (c *Client) Create(ctx context.Context, f unit.Fields) (*unit.Outcome, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return c.mutate(ctx, "create", http.MethodPost, "unit", f)
}

// Update sends the fields present in p to the unit with the given id.
func (c *Client) Update(ctx context.Context, id string, p unit.Patch) (*unit.Outcome, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return c.mutate(ctx, "update", http.MethodPut, "unit/"+url.PathEscape(id), p)
}

// Apply fills the fields p leaves unset from the unit's current values and
// sends the result as a full update. The remote API requires all three.
func (c *Client) Apply(ctx context.Context, id string, p unit.Patch) (*unit.Outcome, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	current, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Update(ctx, id, p.Over(*current))
}

// Delete removes the unit with the given id.
func (c *Client) Delete(ctx context.Context, id string) (*unit.Outcome, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	return c.mutate(ctx, "delete", http.MethodDelete, "unit/"+url.PathEscape(id), nil)
}

func (c *Client) mutate(ctx context.Context, op, method, path string, body any) (*unit.Outcome, error) {
	start := time.Now()
	resp, err := c.do(ctx, method, path, nil, body)
	if err != nil {
		c.observe(ctx, op, err, start)
		return nil, errors.NewFetchFailure(op+" unit", err)
	}

	if resp.env != nil && resp.env.Success != nil {
		out := &unit.Outcome{Success: *resp.env.Success, Message: resp.env.Message}
		if out.Success {
			out.Unit = decodeUnit(resp.env.Data)
			c.observeResult(op, metrics.ResultOK, start)
		} else {
			c.observeResult(op, metrics.ResultAppFailure, start)
			logging.For(ctx, c.log).Info().
				Str("op", op).
				Int("status", resp.status).
				Str("message", out.Message).
				Msg("remote API rejected request")
		}
		return out, nil
	}

	// Only a bodiless 2xx confirms a write without an envelope.
	if resp.ok() && resp.empty {
		c.observeResult(op, metrics.ResultOK, start)
		return &unit.Outcome{Success: true}, nil
	}

	err = statusError(resp)
	c.observe(ctx, op, err, start)
	return nil, errors.NewFetchFailure(op+" unit", err)
}

// decodeUnit returns the unit in raw, or nil when raw is not a unit object.
func decodeUnit(raw json.RawMessage) *unit.Unit {
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var u unit.Unit
	if err := json.Unmarshal(raw, &u); err != nil || u.ID == "" {
		return nil
	}
	return &u
}

// do sends one request and reads the body. Only transport and read errors
// are returned; any HTTP status is a completed round-trip.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any) (*response, error) {
	u := c.base.JoinPath(path)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := logging.RequestID(ctx)
	if requestID == "" {
		requestID = "req_" + uuid.New().String()[:22]
	}
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	out := &response{status: resp.StatusCode, empty: len(bytes.TrimSpace(data)) == 0}
	var env envelope
	if !out.empty && json.Unmarshal(data, &env) == nil {
		out.env = &env
	}
	return out, nil
}

// statusError describes a response that completed but cannot be used.
func statusError(r *response) error {
	if r.env != nil && r.env.Message != "" {
		return fmt.Errorf("unexpected response %d: %s", r.status, r.env.Message)
	}
	if r.env == nil && r.ok() {
		return fmt.Errorf("unexpected response %d: body is not a JSON envelope", r.status)
	}
	if r.env != nil && r.env.Success == nil && r.ok() {
		return fmt.Errorf("unexpected response %d: envelope has no success flag", r.status)
	}
	return fmt.Errorf("unexpected response %d %s", r.status, http.StatusText(r.status))
}

func (c *Client) observe(ctx context.Context, op string, err error, start time.Time) {
	result := metrics.ResultOK
	switch {
	case err == nil:
	case stderrors.Is(err, context.Canceled):
		result = metrics.ResultCanceled
	default:
		result = metrics.ResultTransportFailure
		logging.For(ctx, c.log).Warn().
			Err(err).
			Str("op", op).
			Dur("duration", time.Since(start)).
			Msg("remote API call failed")
	}
	c.observeResult(op, result, start)
}

func (c *Client) observeResult(op, result string, start time.Time) {
	d := time.Since(start)
	c.metrics.ObserveRemote(op, result, d)
	c.log.Debug().Str("op", op).Str("result", result).Dur("duration", d).Msg("remote call")
}
