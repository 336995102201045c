package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "UNITDESK_"

// DefaultEnvFiles are the dotenv files read by Resolve, if present.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Duration is a time.Duration that reads "30s"-style strings from JSON and env.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds application configuration.
type Config struct {
	// APIBaseURL is the remote unit API root; unit routes hang off {base}/unit.
	APIBaseURL string `json:"api_base_url,omitempty" env:"API_URL"`

	// Bind and Port are the web UI listen address.
	Bind string `json:"bind,omitempty" env:"BIND"`
	Port int    `json:"port,omitempty" env:"PORT"`

	// DefaultPageSize seeds new list views.
	DefaultPageSize int `json:"default_page_size,omitempty" env:"PAGE_SIZE"`

	// RequestTimeout bounds each remote API round-trip. 0 disables it.
	RequestTimeout Duration `json:"request_timeout,omitempty" env:"REQUEST_TIMEOUT"`

	// ListRetries is the number of extra attempts for list requests.
	// Mutations are never retried.
	ListRetries int `json:"list_retries,omitempty" env:"LIST_RETRIES"`

	// ViewTTL is how long an idle list view is kept before it is evicted.
	ViewTTL Duration `json:"view_ttl,omitempty" env:"VIEW_TTL"`

	// MutationRateLimit is the per-IP limit on mutating web routes, per minute.
	MutationRateLimit int `json:"mutation_rate_limit,omitempty" env:"MUTATION_RATE_LIMIT"`

	// HTMXSrc is the script URL for htmx.
	HTMXSrc string `json:"htmx_src,omitempty" env:"HTMX_SRC"`

	LogLevel  string `json:"log_level,omitempty" env:"LOG_LEVEL"`
	LogFormat string `json:"log_format,omitempty" env:"LOG_FORMAT"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:        "http://127.0.0.1:5000/api",
		Bind:              "127.0.0.1",
		Port:              8080,
		DefaultPageSize:   10,
		RequestTimeout:    Duration(30 * time.Second),
		ViewTTL:           Duration(30 * time.Minute),
		MutationRateLimit: 60,
		HTMXSrc:           "https://unpkg.com/htmx.org@2.0.4/dist/htmx.min.js",
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.unitdesk.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithRepo loads configuration from both global (~/.unitdesk) and repo (.unitdesk) directories.
// Repo config is found by walking upward from startDir to find the nearest .unitdesk/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .unitdesk/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".unitdesk", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Resolve layers defaults, the global and repo config files, the dotenv
// files that exist, and UNITDESK_* environment variables, then validates.
func Resolve(globalDir, startDir string, envFiles []string) (*Config, error) {
	cfg, err := LoadWithRepo(globalDir, startDir)
	if err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, fmt.Errorf("env files: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads the dotenv files that exist into the process environment.
// Variables already set are not overridden. Returns the number of files read.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// ApplyEnv overrides cfg with any UNITDESK_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the client cannot work with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("api_base_url must be an absolute URL, got %q", c.APIBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_base_url scheme must be http or https, got %q", u.Scheme)
	}
	if c.DefaultPageSize <= 0 || c.DefaultPageSize > 100 {
		return fmt.Errorf("default_page_size must be between 1 and 100, got %d", c.DefaultPageSize)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	if c.ListRetries < 0 {
		return fmt.Errorf("list_retries must not be negative, got %d", c.ListRetries)
	}
	if c.ViewTTL <= 0 {
		return fmt.Errorf("view_ttl must be positive")
	}
	if c.MutationRateLimit < 0 {
		return fmt.Errorf("mutation_rate_limit must not be negative, got %d", c.MutationRateLimit)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := *base

	if overlay.APIBaseURL != "" {
		result.APIBaseURL = strings.TrimRight(overlay.APIBaseURL, "/")
	}
	if overlay.Bind != "" {
		result.Bind = overlay.Bind
	}
	if overlay.Port != 0 {
		result.Port = overlay.Port
	}
	if overlay.DefaultPageSize != 0 {
		result.DefaultPageSize = overlay.DefaultPageSize
	}
	if overlay.RequestTimeout != 0 {
		result.RequestTimeout = overlay.RequestTimeout
	}
	if overlay.ListRetries != 0 {
		result.ListRetries = overlay.ListRetries
	}
	if overlay.ViewTTL != 0 {
		result.ViewTTL = overlay.ViewTTL
	}
	if overlay.MutationRateLimit != 0 {
		result.MutationRateLimit = overlay.MutationRateLimit
	}
	if overlay.HTMXSrc != "" {
		result.HTMXSrc = overlay.HTMXSrc
	}
	if overlay.LogLevel != "" {
		result.LogLevel = overlay.LogLevel
	}
	if overlay.LogFormat != "" {
		result.LogFormat = overlay.LogFormat
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return &result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string(nil), a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
