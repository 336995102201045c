package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/unitdesk/unitdesk/internal/config"
	"github.com/unitdesk/unitdesk/internal/logging"
	"github.com/unitdesk/unitdesk/internal/mcp"
	"github.com/unitdesk/unitdesk/internal/metrics"
	"github.com/unitdesk/unitdesk/internal/resilience"
	"github.com/unitdesk/unitdesk/internal/unitapi"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "list": true, "create": true, "update": true, "delete": true,
	"mcp": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return cliCommands[arg] || arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
              _ _      _           _
  _   _ _ __ (_) |_ __| | ___  ___| | __
 | | | | '_ \| | __/ _' |/ _ \/ __| |/ /
 | |_| | | | | | || (_| |  __/\__ \   <
  \__,_|_| |_|_|\__\__,_|\___||___/_|\_\

  Unit records admin for capsules and cabins

  Usage: unitdesk <command> [options]
         unitdesk serve
         unitdesk --help

  MCP server mode requires piped input.`)
}

// app holds what every command needs: configuration, logging and the
// remote unit API client.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics
	http    *resilience.Client
	client  *unitapi.Client
}

// newApp wires the remote client through the resilient HTTP client. Breaker
// transitions are logged and exported as a gauge.
func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	m := metrics.New()

	cb := resilience.DefaultCircuitBreakerConfig("unitapi")
	cb.OnStateChange = func(name string, from, to gobreaker.State) {
		m.SetCircuitState(int(to))
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
	}
	httpCfg := resilience.DefaultClientConfig("unitapi")
	httpCfg.Timeout = cfg.RequestTimeout.Std()
	httpCfg.MaxRetries = uint64(cfg.ListRetries)
	httpCfg.CircuitBreaker = &cb
	httpClient := resilience.NewClient(httpCfg)

	client, err := unitapi.New(unitapi.Config{
		BaseURL:   cfg.APIBaseURL,
		HTTP:      httpClient,
		UserAgent: "unitdesk/" + Version,
		Logger:    log.With().Str("component", "unitapi").Logger(),
		Metrics:   m,
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, metrics: m, http: httpClient, client: client}, nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// --help/--version need no configuration
	if isHelpOrVersion(os.Args) {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine working directory: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Resolve(filepath.Join(homeDir, ".unitdesk"), cwd, config.DefaultEnvFiles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat, Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	a, err := newApp(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if isCLIMode(os.Args) {
		if err := newCLIApp(a).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'unitdesk --help' for usage.\n")
		os.Exit(1)
	}

	if err := a.runMCP(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runMCP serves the unit tools over stdio.
func (a *app) runMCP() error {
	if unknown := mcp.ValidateDisabledTools(a.cfg.DisabledTools); len(unknown) > 0 {
		a.log.Warn().Strs("tools", unknown).Strs("known", mcp.AllToolNames()).Msg("unknown tools in disabled_tools")
	}
	return mcp.Run(a.client, a.cfg, Version)
}
