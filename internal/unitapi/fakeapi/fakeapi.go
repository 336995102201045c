// Package fakeapi is an in-memory stand-in for the remote unit API, served
// under /api. It applies the same validation and ordering rules as the real
// service and can be switched between response shapes or made to fail.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/unitdesk/unitdesk/internal/unit"
)

// Shape selects how list pagination metadata is laid out.
type Shape int

const (
	// Nested puts metadata under data.pagination.
	Nested Shape = iota
	// Flat puts page, size, total and totalPages beside data.content.
	Flat
)

// Server is the fake API. The zero value is not usable; call New.
type Server struct {
	mu      sync.Mutex
	units   map[string]unit.Unit
	shape   Shape
	fail    map[string][]failure
	queries []url.Values
	bodies  []map[string]any
	hook    func(r *http.Request)

	mux *http.ServeMux
}

type failure struct {
	status int
	body   string
}

// New returns an empty fake API.
func New() *Server {
	s := &Server{
		units: make(map[string]unit.Unit),
		fail:  make(map[string][]failure),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/unit", s.handleList)
	mux.HandleFunc("POST /api/unit", s.handleCreate)
	mux.HandleFunc("GET /api/unit/{id}", s.handleGet)
	mux.HandleFunc("PUT /api/unit/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/unit/{id}", s.handleDelete)
	s.mux = mux
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(r)
	}
	s.mux.ServeHTTP(w, r)
}

// SetShape switches the list response layout.
func (s *Server) SetShape(shape Shape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shape = shape
}

// SetHook installs fn to run before every request is routed. Tests use it
// to hold a response back.
func (s *Server) SetHook(fn func(r *http.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

// FailNext makes the next request for op ("list", "get", "create",
// "update", "delete") answer status with body verbatim.
func (s *Server) FailNext(op string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = append(s.fail[op], failure{status: status, body: body})
}

// Seed stores u as is, assigning an id when it has none, and returns it.
func (s *Server) Seed(u unit.Unit) unit.Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.units[u.ID] = u
	return u
}

// Units returns every stored unit in list order.
func (s *Server) Units() []unit.Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(func(unit.Unit) bool { return true })
}

// ListQueries returns the query strings of every list request received.
func (s *Server) ListQueries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.queries...)
}

// Bodies returns the decoded JSON bodies of every create and update received.
func (s *Server) Bodies() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.bodies...)
}

func (s *Server) takeFailure(w http.ResponseWriter, op string) bool {
	s.mu.Lock()
	queue := s.fail[op]
	if len(queue) == 0 {
		s.mu.Unlock()
		return false
	}
	f := queue[0]
	s.fail[op] = queue[1:]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_, _ = w.Write([]byte(f.body))
	return true
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func writeOK(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Message: "OK", Data: data})
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: msg})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()

	if s.takeFailure(w, "list") {
		return
	}

	page, err := intParam(q, "page", 1)
	if err != nil {
		writeFail(w, http.StatusBadRequest, "invalid page parameter, must be number")
		return
	}
	size, err := intParam(q, "size", 10)
	if err != nil {
		writeFail(w, http.StatusBadRequest, "invalid size parameter, must be number")
		return
	}

	status := q.Get("status")
	typ := q.Get("type")
	name := strings.ToLower(q.Get("name"))

	s.mu.Lock()
	matched := s.sortedLocked(func(u unit.Unit) bool {
		if status != "" && string(u.Status) != status {
			return false
		}
		if typ != "" && string(u.Type) != typ {
			return false
		}
		return name == "" || strings.Contains(strings.ToLower(u.Name), name)
	})
	shape := s.shape
	s.mu.Unlock()

	total := len(matched)
	content := []unit.Unit{}
	if size > 0 {
		offset := (page - 1) * size
		if offset < 0 {
			offset = 0
		}
		if offset < total {
			end := offset + size
			if end > total {
				end = total
			}
			content = matched[offset:end]
		}
	}

	totalPages := 0
	if size > 0 {
		totalPages = (total + size - 1) / size
	}
	meta := map[string]int{"page": page, "size": size, "total": total, "totalPages": totalPages}

	data := map[string]any{"content": content}
	if shape == Flat {
		for k, v := range meta {
			data[k] = v
		}
	} else {
		data["pagination"] = meta
	}
	writeOK(w, http.StatusOK, data)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure(w, "get") {
		return
	}
	s.mu.Lock()
	u, ok := s.units[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeFail(w, http.StatusNotFound, "unit with that id was not found")
		return
	}
	writeOK(w, http.StatusOK, u)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if s.takeFailure(w, "create") {
		return
	}

	u, msg := validate(body)
	if msg != "" {
		writeFail(w, http.StatusBadRequest, msg)
		return
	}

	u.ID = uuid.NewString()
	s.mu.Lock()
	s.units[u.ID] = u
	s.mu.Unlock()
	writeOK(w, http.StatusCreated, u)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if s.takeFailure(w, "update") {
		return
	}

	id := r.PathValue("id")
	s.mu.Lock()
	current, found := s.units[id]
	s.mu.Unlock()
	if !found {
		writeFail(w, http.StatusNotFound, "unit with that id was not found")
		return
	}

	u, msg := validate(body)
	if msg != "" {
		writeFail(w, http.StatusBadRequest, msg)
		return
	}
	if current.Status == unit.StatusOccupied && u.Status == unit.StatusAvailable {
		writeFail(w, http.StatusBadRequest, "unit cannot go directly from occupied to available")
		return
	}

	u.ID = id
	s.mu.Lock()
	s.units[id] = u
	s.mu.Unlock()
	writeOK(w, http.StatusOK, u)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if s.takeFailure(w, "delete") {
		return
	}
	id := r.PathValue("id")
	s.mu.Lock()
	_, found := s.units[id]
	delete(s.units, id)
	s.mu.Unlock()
	if !found {
		writeFail(w, http.StatusNotFound, "unit with that id was not found")
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	s.mu.Lock()
	s.bodies = append(s.bodies, body)
	s.mu.Unlock()
	return body, true
}

// validate applies the service's required-field and enumeration checks.
func validate(body map[string]any) (unit.Unit, string) {
	name, _ := body["name"].(string)
	status, _ := body["status"].(string)
	typ, _ := body["type"].(string)

	if strings.TrimSpace(name) == "" {
		return unit.Unit{}, "unit name is required"
	}
	if strings.TrimSpace(status) == "" {
		return unit.Unit{}, "unit status is required"
	}
	if strings.TrimSpace(typ) == "" {
		return unit.Unit{}, "unit type is required"
	}
	st, ok := unit.ParseStatus(status)
	if !ok {
		return unit.Unit{}, "invalid unit status, must be one of 'Available', 'Occupied', 'Cleaning In Progress', 'Maintenance Needed'"
	}
	t, ok := unit.ParseType(typ)
	if !ok {
		return unit.Unit{}, "invalid unit type, must be 'cabin' or 'capsule'"
	}
	return unit.Unit{Name: name, Type: t, Status: st}, ""
}

func (s *Server) sortedLocked(keep func(unit.Unit) bool) []unit.Unit {
	out := make([]unit.Unit, 0, len(s.units))
	for _, u := range s.units {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func intParam(q url.Values, key string, def int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
