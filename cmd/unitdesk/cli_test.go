package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/unitdesk/unitdesk/internal/config"
	"github.com/unitdesk/unitdesk/internal/errors"
	"github.com/unitdesk/unitdesk/internal/unit"
	"github.com/unitdesk/unitdesk/internal/unitapi/fakeapi"
)

// setupTestApp starts a fake remote API and wires an app against it.
func setupTestApp(t *testing.T) (*app, *fakeapi.Server) {
	t.Helper()
	fake := fakeapi.New()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.APIBaseURL = srv.URL + "/api"
	a, err := newApp(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return a, fake
}

// run executes the CLI with args and returns what it printed.
func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cliApp := newCLIApp(a)
	cliApp.Writer = &out
	cliApp.ErrWriter = &out
	err := cliApp.Run(append([]string{"unitdesk"}, args...))
	return out.String(), err
}

func seedN(fake *fakeapi.Server, n int) {
	for i := 1; i <= n; i++ {
		fake.Seed(unit.Unit{Name: fmt.Sprintf("Unit %02d", i), Type: unit.TypeCapsule, Status: unit.StatusAvailable})
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{args: []string{"unitdesk"}, want: false},
		{args: []string{"unitdesk", "serve"}, want: true},
		{args: []string{"unitdesk", "list"}, want: true},
		{args: []string{"unitdesk", "mcp"}, want: true},
		{args: []string{"unitdesk", "--version"}, want: true},
		{args: []string{"unitdesk", "-h"}, want: true},
		{args: []string{"unitdesk", "store"}, want: false},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			if got := isCLIMode(tt.args); got != tt.want {
				t.Errorf("isCLIMode(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	if !isHelpOrVersion([]string{"unitdesk", "help"}) {
		t.Error("help should be recognised")
	}
	if isHelpOrVersion([]string{"unitdesk", "list"}) {
		t.Error("list is not help")
	}
	if isHelpOrVersion([]string{"unitdesk"}) {
		t.Error("no args is not help")
	}
}

func TestHelpWithoutConfig(t *testing.T) {
	out, err := run(t, nil, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, cmd := range []string{"serve", "list", "create", "update", "delete", "mcp"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("help output missing %q", cmd)
		}
	}
}

func TestCLIList(t *testing.T) {
	a, fake := setupTestApp(t)
	seedN(fake, 12)

	out, err := run(t, a, "list", "--page=3", "--size=5")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	var page unit.Page
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("failed to parse output: %v\n%s", err, out)
	}
	if len(page.Content) != 2 {
		t.Errorf("got %d units, want 2", len(page.Content))
	}
	if page.Total != 12 || page.TotalPages != 3 {
		t.Errorf("total=%d totalPages=%d, want 12 and 3", page.Total, page.TotalPages)
	}

	queries := fake.ListQueries()
	if len(queries) != 1 {
		t.Fatalf("got %d list requests, want 1", len(queries))
	}
	if queries[0].Has("status") {
		t.Error(`default status "all" must not be sent`)
	}
}

func TestCLIList_EmptyPrintsArray(t *testing.T) {
	a, _ := setupTestApp(t)

	out, err := run(t, a, "list", "--status=Occupied")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, `"content": []`) {
		t.Errorf("expected empty content array, got:\n%s", out)
	}
}

func TestCLIList_InvalidInput(t *testing.T) {
	a, fake := setupTestApp(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "size too large", args: []string{"list", "--size=500"}},
		{name: "page zero", args: []string{"list", "--page=0"}},
		{name: "unknown status", args: []string{"list", "--status=Vacant"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, a, tt.args...)
			if err == nil || !strings.HasPrefix(err.Error(), "[INVALID_REQUEST]") {
				t.Errorf("expected INVALID_REQUEST, got %v", err)
			}
		})
	}
	if n := len(fake.ListQueries()); n != 0 {
		t.Errorf("invalid input reached the API %d times", n)
	}
}

func TestCLICreate(t *testing.T) {
	a, fake := setupTestApp(t)

	out, err := run(t, a, "create", "--name=Cabin 3", "--type=cabin", "--status=Available")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	var outcome unit.Outcome
	if err := json.Unmarshal([]byte(out), &outcome); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if !outcome.Success || outcome.Unit == nil || outcome.Unit.Name != "Cabin 3" {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	if len(fake.Units()) != 1 {
		t.Error("unit was not stored")
	}
}

func TestCLICreate_MissingFlag(t *testing.T) {
	a, _ := setupTestApp(t)

	_, err := run(t, a, "create", "--name=X", "--type=cabin")
	if err == nil {
		t.Fatal("expected error for missing --status")
	}
}

func TestCLICreate_ApplicationFailure(t *testing.T) {
	a, fake := setupTestApp(t)
	fake.FailNext("create", http.StatusBadRequest, `{"success":false,"message":"unit name already taken"}`)

	_, err := run(t, a, "create", "--name=Dup", "--type=capsule", "--status=Occupied")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "[APPLICATION_FAILURE] unit name already taken" {
		t.Errorf("error = %q", err.Error())
	}
	exit, ok := err.(cli.ExitCoder)
	if !ok || exit.ExitCode() != 1 {
		t.Errorf("expected exit code 1, got %v", err)
	}
}

func TestCLIUpdate(t *testing.T) {
	a, fake := setupTestApp(t)
	u := fake.Seed(unit.Unit{Name: "Pod 1", Type: unit.TypeCapsule, Status: unit.StatusOccupied})

	if _, err := run(t, a, "update", "--status=Cleaning In Progress", u.ID); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got := fake.Units()[0]
	if got.Name != "Pod 1" || got.Type != unit.TypeCapsule || got.Status != unit.StatusCleaning {
		t.Errorf("unit = %+v", got)
	}
}

func TestCLIUpdate_Errors(t *testing.T) {
	a, fake := setupTestApp(t)
	u := fake.Seed(unit.Unit{Name: "Pod 1", Type: unit.TypeCapsule, Status: unit.StatusOccupied})

	tests := []struct {
		name string
		args []string
		code errors.ErrorCode
	}{
		{name: "no id", args: []string{"update", "--name=x"}, code: errors.ErrInvalidRequest},
		{name: "no fields", args: []string{"update", u.ID}, code: errors.ErrInvalidRequest},
		{name: "bad type", args: []string{"update", "--type=tent", u.ID}, code: errors.ErrInvalidRequest},
		{name: "unknown unit", args: []string{"update", "--name=x", "missing"}, code: errors.ErrNotFound},
		{name: "rejected transition", args: []string{"update", "--status=Available", u.ID}, code: errors.ErrApplicationFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, a, tt.args...)
			if err == nil || !strings.HasPrefix(err.Error(), "["+string(tt.code)+"]") {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestCLIDelete(t *testing.T) {
	a, fake := setupTestApp(t)
	u := fake.Seed(unit.Unit{Name: "Pod 1", Type: unit.TypeCapsule, Status: unit.StatusAvailable})

	if _, err := run(t, a, "delete", u.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(fake.Units()) != 0 {
		t.Error("unit should be gone")
	}

	_, err := run(t, a, "delete", u.ID)
	if err == nil || !strings.HasPrefix(err.Error(), "[APPLICATION_FAILURE]") {
		t.Errorf("deleting again: expected APPLICATION_FAILURE, got %v", err)
	}
}

func TestCLI_TransportFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg.APIBaseURL = srv.URL + "/api"
	srv.Close()

	a, err := newApp(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	_, err = run(t, a, "list")
	if err == nil || !strings.HasPrefix(err.Error(), "[FETCH_FAILURE]") {
		t.Errorf("expected FETCH_FAILURE, got %v", err)
	}
}

func TestOutputError(t *testing.T) {
	err := outputError(errors.NewNotFound("u1"))
	if err.Error() != "[NOT_FOUND] unit not found: u1" {
		t.Errorf("got %q", err.Error())
	}
	if err := outputError(fmt.Errorf("plain")); err.Error() != "plain" {
		t.Errorf("got %q", err.Error())
	}
}

func TestCLIList_Table(t *testing.T) {
	a, fake := setupTestApp(t)
	seedN(fake, 3)

	out, err := run(t, a, "list", "--format=table")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, want := range []string{"NAME", "STATUS", "Unit 01", "Capsule", "Available", "Page 1 of 1, 3 units"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, a, "list", "--format=yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
