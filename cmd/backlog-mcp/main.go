// Package main is the entry point for the backlog-mcp server.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"git.cscs.ch/openchami/backlog-mcp/internal/config"
	"git.cscs.ch/openchami/backlog-mcp/internal/guard"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

type flagValues struct {
	transport   string
	mode        string
	enableWrite bool
	listenAddr  string
	logLevel    string
	prefix      string
	toolsets    []string

	backlogDomain      string
	allowedProjectIDs  []string
	allowedProjectKeys []string
	writeGuard         string
	readGuard          string
	defaultProjectID   string
	keyResolveTTLSec   int
	env                string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags flagValues
	cmd := &cobra.Command{
		Use:   "backlog-mcp",
		Short: "MCP server for the Backlog project management API",
		Long: "Exposes Backlog spaces, projects, issues, wikis and documents as MCP tools over stdio or HTTP.\n" +
			"Tool calls can be restricted to an allow-list of projects with BACKLOG_ALLOWED_PROJECT_IDS/KEYS.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
				return err
			}
			if err := applyFlags(cmd, flags, &cfg); err != nil {
				fmt.Fprintf(os.Stderr, "invalid flags: %v\n", err)
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.transport, "transport", config.TransportStdio, "MCP transport (stdio|http); overrides BACKLOG_MCP_TRANSPORT")
	f.StringVar(&flags.mode, "mode", "read-only", "Execution mode (read-only|read-write); overrides BACKLOG_MCP_MODE")
	f.BoolVar(&flags.enableWrite, "enable-write", false, "Allow read-write mode; overrides BACKLOG_MCP_ENABLE_WRITE")
	f.StringVar(&flags.listenAddr, "listen-addr", ":27780", "HTTP listen address; overrides BACKLOG_MCP_LISTEN_ADDR")
	f.StringVar(&flags.logLevel, "log-level", "info", "Log level; overrides BACKLOG_MCP_LOG_LEVEL")
	f.StringVar(&flags.prefix, "prefix", "", "Prefix for exposed tool names; overrides BACKLOG_MCP_PREFIX")
	f.StringSliceVar(&flags.toolsets, "enable-toolsets", []string{"all"}, "Toolsets to expose (all|space|project|issue|document|wiki|watching|git); overrides BACKLOG_MCP_ENABLE_TOOLSETS")

	f.StringVar(&flags.backlogDomain, "backlog-domain", "", "Backlog space domain, e.g. example.backlog.com; overrides BACKLOG_DOMAIN")
	f.StringSliceVar(&flags.allowedProjectIDs, "allowed-project-ids", nil, "Allowed project IDs; overrides BACKLOG_ALLOWED_PROJECT_IDS")
	f.StringSliceVar(&flags.allowedProjectKeys, "allowed-project-keys", nil, "Allowed project keys; overrides BACKLOG_ALLOWED_PROJECT_KEYS")
	f.StringVar(&flags.writeGuard, "write-guard", string(guard.WriteGuardOff), "Write guard (on|off); overrides BACKLOG_WRITE_GUARD")
	f.StringVar(&flags.readGuard, "read-guard", string(guard.ReadGuardOff), "Read guard (off|filter|deny); overrides BACKLOG_READ_GUARD")
	f.StringVar(&flags.defaultProjectID, "default-project-id", "", "Project injected into unscoped writes; overrides BACKLOG_DEFAULT_PROJECT_ID")
	f.IntVar(&flags.keyResolveTTLSec, "key-resolve-ttl-sec", 300, "Project key cache TTL in seconds, 0 disables; overrides BACKLOG_KEY_RESOLVE_TTL_SEC")
	f.StringVar(&flags.env, "env", "production", "Runtime environment (production|development); overrides BACKLOG_MCP_ENV")
	return cmd
}

// applyFlags overlays explicitly set flags on the environment configuration.
func applyFlags(cmd *cobra.Command, flags flagValues, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(flags.transport))
	}
	if f.Changed("mode") {
		cfg.Mode = strings.ToLower(strings.TrimSpace(flags.mode))
	}
	if f.Changed("enable-write") {
		cfg.EnableWrite = flags.enableWrite
	}
	if f.Changed("listen-addr") {
		cfg.ListenAddr = flags.listenAddr
	}
	if f.Changed("log-level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(flags.logLevel))
	}
	if f.Changed("prefix") {
		cfg.ToolPrefix = strings.TrimSpace(flags.prefix)
	}
	if f.Changed("enable-toolsets") {
		cfg.EnableToolsets = trimAll(flags.toolsets)
	}
	if f.Changed("backlog-domain") {
		cfg.BacklogDomain = strings.TrimSpace(flags.backlogDomain)
	}
	if f.Changed("allowed-project-ids") {
		cfg.AllowedProjectIDs = trimAll(flags.allowedProjectIDs)
	}
	if f.Changed("allowed-project-keys") {
		cfg.AllowedProjectKeys = trimAll(flags.allowedProjectKeys)
	}

	var err error
	if f.Changed("write-guard") {
		if cfg.WriteGuard, err = guard.ParseWritePolicy(flags.writeGuard); err != nil {
			return fmt.Errorf("invalid --write-guard: %w", err)
		}
	}
	if f.Changed("read-guard") {
		if cfg.ReadGuard, err = guard.ParseReadPolicy(flags.readGuard); err != nil {
			return fmt.Errorf("invalid --read-guard: %w", err)
		}
	}
	if f.Changed("default-project-id") {
		if cfg.DefaultProjectID, err = config.ParseDefaultProjectID(flags.defaultProjectID); err != nil {
			return err
		}
	}
	if f.Changed("key-resolve-ttl-sec") {
		cfg.KeyResolveTTL = time.Duration(flags.keyResolveTTLSec) * time.Second
	}
	if f.Changed("env") {
		if cfg.Runtime, err = config.ParseRuntime(flags.env); err != nil {
			return err
		}
	}
	return cfg.Validate()
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
