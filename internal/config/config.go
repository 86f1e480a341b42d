// Package config loads backlog-mcp configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"git.cscs.ch/openchami/backlog-mcp/internal/guard"
	"git.cscs.ch/openchami/backlog-mcp/internal/policy"
)

const (
	// TransportStdio runs MCP over stdin/stdout.
	TransportStdio = "stdio"
	// TransportHTTP runs MCP over HTTP with SSE tool streaming.
	TransportHTTP = "http"

	defaultListenAddr     = ":27780"
	defaultCLIConfigPath  = "~/.backlog/config.yaml"
	defaultRequestTimeout = 30 * time.Second
	defaultKeyResolveTTL  = 300 * time.Second
)

// Config holds service runtime configuration.
type Config struct {
	ListenAddr string
	LogLevel   string

	Transport   string
	Mode        string
	EnableWrite bool
	// ToolPrefix is prepended to every tool name exposed to clients.
	ToolPrefix string
	// EnableToolsets names the tool groups to expose; "all" exposes every one.
	EnableToolsets []string

	BacklogDomain  string
	RequestTimeout time.Duration

	AllowCLIConfigKey bool
	CLIConfigPath     string
	SessionToken      string

	AllowedProjectIDs  []string
	AllowedProjectKeys []string
	WriteGuard         guard.WritePolicy
	ReadGuard          guard.ReadPolicy
	DefaultProjectID   int
	UnguardedOK        string
	KeyResolveTTL      time.Duration
	Runtime            guard.RuntimeMode

	MetricsEnabled bool
	DevMode        bool
}

// Load returns configuration parsed from environment variables.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:         envOrDefault("BACKLOG_MCP_LISTEN_ADDR", defaultListenAddr),
		LogLevel:           strings.ToLower(strings.TrimSpace(envOrDefault("BACKLOG_MCP_LOG_LEVEL", "info"))),
		Transport:          strings.ToLower(strings.TrimSpace(envOrDefault("BACKLOG_MCP_TRANSPORT", TransportStdio))),
		Mode:               strings.ToLower(strings.TrimSpace(envOrDefault("BACKLOG_MCP_MODE", policy.ModeReadOnly))),
		EnableWrite:        envBool("BACKLOG_MCP_ENABLE_WRITE", false),
		ToolPrefix:         strings.TrimSpace(os.Getenv("BACKLOG_MCP_PREFIX")),
		EnableToolsets:     splitCSV(envOrDefault("BACKLOG_MCP_ENABLE_TOOLSETS", "all")),
		BacklogDomain:      strings.TrimSpace(os.Getenv("BACKLOG_DOMAIN")),
		AllowCLIConfigKey:  envBool("BACKLOG_MCP_ALLOW_CLI_CONFIG_KEY", false),
		CLIConfigPath:      envOrDefault("BACKLOG_MCP_CLI_CONFIG_PATH", defaultCLIConfigPath),
		SessionToken:       strings.TrimSpace(os.Getenv("BACKLOG_MCP_SESSION_TOKEN")),
		AllowedProjectIDs:  splitCSV(os.Getenv("BACKLOG_ALLOWED_PROJECT_IDS")),
		AllowedProjectKeys: splitCSV(os.Getenv("BACKLOG_ALLOWED_PROJECT_KEYS")),
		UnguardedOK:        strings.TrimSpace(os.Getenv("BACKLOG_UNGUARDED_OK")),
		MetricsEnabled:     envBool("BACKLOG_MCP_METRICS_ENABLED", true),
		DevMode:            envBool("BACKLOG_MCP_DEV_MODE", false),
	}

	var err error
	if cfg.RequestTimeout, err = envDuration("BACKLOG_MCP_REQUEST_TIMEOUT", defaultRequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.WriteGuard, err = guard.ParseWritePolicy(os.Getenv("BACKLOG_WRITE_GUARD")); err != nil {
		return Config{}, fmt.Errorf("invalid BACKLOG_WRITE_GUARD: %w", err)
	}
	if cfg.ReadGuard, err = guard.ParseReadPolicy(os.Getenv("BACKLOG_READ_GUARD")); err != nil {
		return Config{}, fmt.Errorf("invalid BACKLOG_READ_GUARD: %w", err)
	}
	if cfg.DefaultProjectID, err = ParseDefaultProjectID(os.Getenv("BACKLOG_DEFAULT_PROJECT_ID")); err != nil {
		return Config{}, err
	}
	ttlSeconds, err := envInt("BACKLOG_KEY_RESOLVE_TTL_SEC", int(defaultKeyResolveTTL/time.Second))
	if err != nil {
		return Config{}, err
	}
	cfg.KeyResolveTTL = time.Duration(ttlSeconds) * time.Second
	if cfg.Runtime, err = ParseRuntime(os.Getenv("BACKLOG_MCP_ENV")); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants that flags may have changed after Load.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("invalid BACKLOG_MCP_TRANSPORT %q (allowed: %s|%s)", c.Transport, TransportStdio, TransportHTTP)
	}
	switch c.Mode {
	case policy.ModeReadOnly, policy.ModeReadWrite:
	default:
		return fmt.Errorf("invalid BACKLOG_MCP_MODE %q (allowed: %s|%s)", c.Mode, policy.ModeReadOnly, policy.ModeReadWrite)
	}
	if c.KeyResolveTTL < 0 {
		return fmt.Errorf("invalid BACKLOG_KEY_RESOLVE_TTL_SEC: must be >= 0")
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = defaultListenAddr
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
	if len(c.EnableToolsets) == 0 {
		c.EnableToolsets = []string{"all"}
	}
	return nil
}

// Guard returns the project guard configuration.
func (c Config) Guard() guard.Config {
	return guard.Config{
		AllowedProjectIDs:  append([]string(nil), c.AllowedProjectIDs...),
		AllowedProjectKeys: append([]string(nil), c.AllowedProjectKeys...),
		WriteGuard:         c.WriteGuard,
		ReadGuard:          c.ReadGuard,
		DefaultProjectID:   c.DefaultProjectID,
		UnguardedOK:        c.UnguardedOK,
		KeyResolveTTL:      c.KeyResolveTTL,
		Runtime:            c.Runtime,
	}
}

// BacklogBaseURL returns the space root for the configured domain.
func (c Config) BacklogBaseURL() string {
	domain := strings.TrimRight(strings.TrimSpace(c.BacklogDomain), "/")
	if domain == "" || strings.Contains(domain, "://") {
		return domain
	}
	return "https://" + domain
}

// ParseDefaultProjectID parses the default project setting. Empty means unset.
func ParseDefaultProjectID(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	id, err := strconv.Atoi(trimmed)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid BACKLOG_DEFAULT_PROJECT_ID %q: must be a positive integer", raw)
	}
	return id, nil
}

// ParseRuntime maps the runtime environment name to a guard runtime mode.
func ParseRuntime(raw string) (guard.RuntimeMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "production", "prod":
		return guard.RuntimeProduction, nil
	case "development", "dev":
		return guard.RuntimeDevelopment, nil
	default:
		return "", fmt.Errorf("invalid BACKLOG_MCP_ENV %q (allowed: production|development)", raw)
	}
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		switch strings.ToLower(value) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		default:
			return defaultVal
		}
	}
	return parsed
}

func envInt(key string, defaultVal int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultVal, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}
