package server

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/backlog-mcp/internal/audit"
	"git.cscs.ch/openchami/backlog-mcp/internal/guard"
	"git.cscs.ch/openchami/backlog-mcp/internal/metrics"
	"git.cscs.ch/openchami/backlog-mcp/internal/policy"
)

const testContract = `
version: "1.0"
service: "backlog-mcp"
apiVersion: "mcp/v1"
tools:
  - name: get_space
    capability: read
    inputSchema:
      type: object
  - name: get_issues
    capability: read
    projectGuard:
      access: read
      multiProject: true
    inputSchema:
      type: object
  - name: add_issue
    capability: write
    projectGuard:
      access: write
    inputSchema:
      type: object
  - name: delete_issue
    capability: write
    confirmationRequired: true
    requiredScopes: [admin]
    inputSchema:
      type: object
`

type recordedCall struct {
	name string
	args map[string]any
}

// recordingCaller stands in for the Backlog tool runner.
type recordingCaller struct {
	mu    sync.Mutex
	calls []recordedCall
	fn    func(name string, args map[string]any) (map[string]any, error)
}

func (c *recordingCaller) Call(_ context.Context, name string, args map[string]any) (map[string]any, error) {
	c.mu.Lock()
	c.calls = append(c.calls, recordedCall{name: name, args: args})
	c.mu.Unlock()
	if c.fn != nil {
		return c.fn(name, args)
	}
	return map[string]any{"name": name}, nil
}

func (c *recordingCaller) recorded() []recordedCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]recordedCall(nil), c.calls...)
}

func mustTestRegistry(t *testing.T, opts ...RegistryOption) *ToolRegistry {
	t.Helper()
	registry, err := NewToolRegistry([]byte(testContract), opts...)
	require.NoError(t, err)
	return registry
}

func mustModeGuard(t *testing.T, mode string) *policy.ModeGuard {
	t.Helper()
	modeGuard, err := policy.NewModeGuard(mode, mode == policy.ModeReadWrite)
	require.NoError(t, err)
	return modeGuard
}

// mustGate returns a gate allowing only project 1, with both guards enforcing.
func mustGate(t *testing.T) *guard.Gate {
	t.Helper()
	dir := guard.NewDirectory(guard.Config{
		AllowedProjectIDs: []string{"1"},
		WriteGuard:        guard.WriteGuardOn,
		ReadGuard:         guard.ReadGuardDeny,
	}, nil, zerolog.Nop())
	require.NoError(t, dir.Initialize(context.Background()))
	return guard.NewGate(dir, nil, zerolog.Nop())
}

func newTestRuntime(registry *ToolRegistry, authorizer ToolAuthorizer, caller ToolCaller, logs io.Writer) Runtime {
	logger := zerolog.Nop()
	if logs != nil {
		logger = zerolog.New(logs)
	}
	return Runtime{
		Registry:   registry,
		Authorizer: authorizer,
		Caller:     caller,
		Audit:      audit.NewLogger(logger),
		Metrics:    metrics.New(),
		Version:    "test-version",
		Logger:     logger,
	}
}

func auditEventsFromLogs(t *testing.T, payload string) []map[string]any {
	t.Helper()

	events := []map[string]any{}
	for _, line := range strings.Split(strings.TrimSpace(payload), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &decoded))
		if decoded["event"] == "mcp.tool_call.completed" {
			events = append(events, decoded)
		}
	}
	return events
}
