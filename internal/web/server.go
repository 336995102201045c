package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/unitdesk/unitdesk/internal/listpage"
	"github.com/unitdesk/unitdesk/internal/metrics"
	"github.com/unitdesk/unitdesk/internal/unit"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

//go:embed help.md
var helpMD []byte

// Options configures the web UI.
type Options struct {
	Version           string
	Bind              string
	Port              int
	HTMXSrc           string
	DefaultPageSize   int
	MutationRateLimit int // per client IP per minute; 0 disables

	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	// Health adds fields to the /healthz body.
	Health func() map[string]any
}

// NewServer creates and configures the HTTP server for the unit UI.
func NewServer(views *listpage.Registry, opts Options) (*http.Server, error) {
	handler, err := NewHandler(views, opts)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Bind, opts.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(views *listpage.Registry, opts Options) (http.Handler, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	log := opts.Logger.With().Str("component", "web").Logger()
	renderer := NewRenderer(templateSub, opts.Version, opts.HTMXSrc, log)

	b, err := newBinder()
	if err != nil {
		return nil, err
	}

	pageSize := opts.DefaultPageSize
	if pageSize <= 0 {
		pageSize = unit.DefaultPageSize
	}
	h := &Handlers{
		views:           views,
		renderer:        renderer,
		binder:          b,
		defaultPageSize: pageSize,
		health:          opts.Health,
		help:            helpMD,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/units", http.StatusFound)
	})
	mux.HandleFunc("GET /units", h.HandleOpen)
	mux.HandleFunc("GET /views/{view}", h.HandleView)
	mux.HandleFunc("GET /views/{view}/table", h.HandleTable)

	limit := mutationLimit(opts.MutationRateLimit, renderer)
	post := func(path string, fn http.HandlerFunc) {
		mux.Handle("POST "+path, limit(fn))
	}
	post("/views/{view}/filter", h.HandleFilter)
	post("/views/{view}/size", h.HandleSize)
	post("/views/{view}/prev", h.HandlePrev)
	post("/views/{view}/next", h.HandleNext)
	post("/views/{view}/units/new", h.HandleNew)
	post("/views/{view}/units/{id}/edit", h.HandleEdit)
	post("/views/{view}/units/{id}/delete", h.HandleAskDelete)
	post("/views/{view}/editor", h.HandleSubmit)
	post("/views/{view}/editor/close", h.HandleCloseEditor)
	post("/views/{view}/delete/confirm", h.HandleConfirmDelete)
	post("/views/{view}/delete/cancel", h.HandleCancelDelete)
	post("/views/{view}/status/dismiss", h.HandleDismissStatus)

	mux.HandleFunc("GET /help", h.HandleHelp)
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	// Wrapped inside out: requestID runs first.
	var handler http.Handler = mux
	handler = securityHeaders(scriptOrigin(opts.HTMXSrc))(handler)
	handler = middleware.Recoverer(handler)
	handler = accessLog(log, opts.Metrics)(handler)
	handler = middleware.RealIP(handler)
	handler = requestID(handler)
	return handler, nil
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, log zerolog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info().Str("addr", "http://"+srv.Addr).Msg("unitdesk UI running")

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn().Msg("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
