package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/backlog-mcp/internal/guard"
	"git.cscs.ch/openchami/backlog-mcp/internal/policy"
)

var configEnv = []string{
	"BACKLOG_MCP_LISTEN_ADDR",
	"BACKLOG_MCP_LOG_LEVEL",
	"BACKLOG_MCP_TRANSPORT",
	"BACKLOG_MCP_MODE",
	"BACKLOG_MCP_ENABLE_WRITE",
	"BACKLOG_MCP_PREFIX",
	"BACKLOG_MCP_ENABLE_TOOLSETS",
	"BACKLOG_DOMAIN",
	"BACKLOG_MCP_REQUEST_TIMEOUT",
	"BACKLOG_MCP_ALLOW_CLI_CONFIG_KEY",
	"BACKLOG_MCP_CLI_CONFIG_PATH",
	"BACKLOG_MCP_SESSION_TOKEN",
	"BACKLOG_ALLOWED_PROJECT_IDS",
	"BACKLOG_ALLOWED_PROJECT_KEYS",
	"BACKLOG_WRITE_GUARD",
	"BACKLOG_READ_GUARD",
	"BACKLOG_DEFAULT_PROJECT_ID",
	"BACKLOG_UNGUARDED_OK",
	"BACKLOG_KEY_RESOLVE_TTL_SEC",
	"BACKLOG_MCP_ENV",
	"BACKLOG_MCP_METRICS_ENABLED",
	"BACKLOG_MCP_DEV_MODE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, defaultListenAddr, cfg.ListenAddr)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, TransportStdio, cfg.Transport)
	require.Equal(t, policy.ModeReadOnly, cfg.Mode)
	require.False(t, cfg.EnableWrite)
	require.Empty(t, cfg.ToolPrefix)
	require.Equal(t, []string{"all"}, cfg.EnableToolsets)
	require.Equal(t, defaultRequestTimeout, cfg.RequestTimeout)
	require.Equal(t, defaultCLIConfigPath, cfg.CLIConfigPath)
	require.False(t, cfg.AllowCLIConfigKey)
	require.Nil(t, cfg.AllowedProjectIDs)
	require.Nil(t, cfg.AllowedProjectKeys)
	require.Equal(t, guard.WriteGuardOff, cfg.WriteGuard)
	require.Equal(t, guard.ReadGuardOff, cfg.ReadGuard)
	require.Zero(t, cfg.DefaultProjectID)
	require.Equal(t, 300*time.Second, cfg.KeyResolveTTL)
	require.Equal(t, guard.RuntimeProduction, cfg.Runtime)
	require.True(t, cfg.MetricsEnabled)
	require.False(t, cfg.DevMode)
}

func TestLoad_GuardSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKLOG_ALLOWED_PROJECT_IDS", " 12, 34 ,,abc")
	t.Setenv("BACKLOG_ALLOWED_PROJECT_KEYS", "PROJ, OPS")
	t.Setenv("BACKLOG_WRITE_GUARD", "ON")
	t.Setenv("BACKLOG_READ_GUARD", "filter")
	t.Setenv("BACKLOG_DEFAULT_PROJECT_ID", "12")
	t.Setenv("BACKLOG_KEY_RESOLVE_TTL_SEC", "0")
	t.Setenv("BACKLOG_MCP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"12", "34", "abc"}, cfg.AllowedProjectIDs)
	require.Equal(t, []string{"PROJ", "OPS"}, cfg.AllowedProjectKeys)

	g := cfg.Guard()
	require.Equal(t, guard.WriteGuardOn, g.WriteGuard)
	require.Equal(t, guard.ReadGuardFilter, g.ReadGuard)
	require.Equal(t, 12, g.DefaultProjectID)
	require.Zero(t, g.KeyResolveTTL)
	require.Equal(t, guard.RuntimeDevelopment, g.Runtime)
}

func TestLoad_EnableToolsets(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKLOG_MCP_ENABLE_TOOLSETS", "issue, wiki,,")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"issue", "wiki"}, cfg.EnableToolsets)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "transport", key: "BACKLOG_MCP_TRANSPORT", value: "udp", wantErr: "invalid BACKLOG_MCP_TRANSPORT"},
		{name: "mode", key: "BACKLOG_MCP_MODE", value: "full-access", wantErr: "invalid BACKLOG_MCP_MODE"},
		{name: "write guard", key: "BACKLOG_WRITE_GUARD", value: "maybe", wantErr: "invalid BACKLOG_WRITE_GUARD"},
		{name: "read guard", key: "BACKLOG_READ_GUARD", value: "strict", wantErr: "invalid BACKLOG_READ_GUARD"},
		{name: "default project", key: "BACKLOG_DEFAULT_PROJECT_ID", value: "PROJ", wantErr: "invalid BACKLOG_DEFAULT_PROJECT_ID"},
		{name: "negative ttl", key: "BACKLOG_KEY_RESOLVE_TTL_SEC", value: "-1", wantErr: "invalid BACKLOG_KEY_RESOLVE_TTL_SEC"},
		{name: "ttl not a number", key: "BACKLOG_KEY_RESOLVE_TTL_SEC", value: "soon", wantErr: "invalid BACKLOG_KEY_RESOLVE_TTL_SEC"},
		{name: "runtime", key: "BACKLOG_MCP_ENV", value: "staging", wantErr: "invalid BACKLOG_MCP_ENV"},
		{name: "timeout", key: "BACKLOG_MCP_REQUEST_TIMEOUT", value: "thirty", wantErr: "invalid BACKLOG_MCP_REQUEST_TIMEOUT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestBacklogBaseURL(t *testing.T) {
	cases := []struct {
		domain string
		want   string
	}{
		{domain: "", want: ""},
		{domain: "acme.backlog.com", want: "https://acme.backlog.com"},
		{domain: "http://localhost:8080/", want: "http://localhost:8080"},
	}
	for _, tc := range cases {
		t.Run(tc.domain, func(t *testing.T) {
			require.Equal(t, tc.want, Config{BacklogDomain: tc.domain}.BacklogBaseURL())
		})
	}
}
