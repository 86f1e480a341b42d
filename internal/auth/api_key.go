// Package auth resolves the Backlog API key used for upstream calls.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeySource identifies where an API key was resolved from.
type KeySource string

const (
	// KeySourceMCPEnv is BACKLOG_MCP_API_KEY.
	KeySourceMCPEnv KeySource = "backlog_mcp_api_key"
	// KeySourceSharedEnv is BACKLOG_API_KEY.
	KeySourceSharedEnv KeySource = "backlog_api_key"
	// KeySourceCLIConfig is ~/.backlog/config.yaml auth.apiKey.
	KeySourceCLIConfig KeySource = "cli_config"
)

// KeyResolution contains the resolved key and its source.
type KeyResolution struct {
	APIKey string
	Source KeySource
}

// KeySourceOptions controls key resolution.
type KeySourceOptions struct {
	AllowCLIConfigKey bool
	CLIConfigPath     string
}

type cliConfigFile struct {
	Auth struct {
		APIKey string `yaml:"apiKey"`
	} `yaml:"auth"`
}

// ResolveAPIKey resolves the key using deterministic precedence:
// 1) BACKLOG_MCP_API_KEY
// 2) BACKLOG_API_KEY
// 3) CLI config auth.apiKey (only when AllowCLIConfigKey=true)
//
// An empty resolution is not an error; callers decide whether a key is required.
func ResolveAPIKey(opts KeySourceOptions) (KeyResolution, error) {
	if key := strings.TrimSpace(os.Getenv("BACKLOG_MCP_API_KEY")); key != "" {
		return KeyResolution{APIKey: key, Source: KeySourceMCPEnv}, nil
	}

	if key := strings.TrimSpace(os.Getenv("BACKLOG_API_KEY")); key != "" {
		return KeyResolution{APIKey: key, Source: KeySourceSharedEnv}, nil
	}

	if !opts.AllowCLIConfigKey {
		return KeyResolution{}, nil
	}

	configPath := expandPath(defaultIfEmpty(strings.TrimSpace(opts.CLIConfigPath), "~/.backlog/config.yaml"))
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		return KeyResolution{}, nil
	default:
		return KeyResolution{}, fmt.Errorf("reading CLI config key source: %w", err)
	}

	var cfg cliConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return KeyResolution{}, fmt.Errorf("decoding CLI config key source: %w", err)
	}

	key := strings.TrimSpace(cfg.Auth.APIKey)
	if key == "" {
		return KeyResolution{}, nil
	}

	return KeyResolution{APIKey: key, Source: KeySourceCLIConfig}, nil
}

func defaultIfEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return filepath.Clean(path)
}
