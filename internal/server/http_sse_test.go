package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/backlog-mcp/internal/config"
	"git.cscs.ch/openchami/backlog-mcp/internal/guard"
	"git.cscs.ch/openchami/backlog-mcp/internal/policy"
)

const testSessionToken = "http-session-token"

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestHTTPServer(t *testing.T, rt Runtime, authn SessionAuthenticator, pinger Pinger) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		ListenAddr:     ":27780",
		Transport:      config.TransportHTTP,
		MetricsEnabled: true,
	}
	srv := NewHTTPServer(cfg, BuildInfo{Version: "v-test", Commit: "c-test", BuildDate: "b-test"}, []byte("tools: []"), rt, authn, pinger)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, token, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, string(raw)
}

func getBody(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, string(raw)
}

func TestHTTPServer_OperationalRoutes(t *testing.T) {
	rt := newTestRuntime(mustTestRegistry(t), mustModeGuard(t, policy.ModeReadOnly), nil, nil)
	ts := newTestHTTPServer(t, rt, NewTokenSessionAuthenticator(testSessionToken), pingerFunc(func(context.Context) error { return nil }))

	resp, body := getBody(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, body)
	assert.Equal(t, "mcp/v1", resp.Header.Get("X-API-Version"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, body = getBody(t, ts.URL+"/readiness")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ready"}`, body)

	resp, body = getBody(t, ts.URL+"/version")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"version":"v-test","commit":"c-test","buildDate":"b-test"}`, body)

	resp, body = getBody(t, ts.URL+"/api/tools.yaml")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "tools: []", body)

	resp, body = getBody(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "go_goroutines")
}

func TestHTTPServer_ReadinessFailsWhenBacklogUnreachable(t *testing.T) {
	rt := newTestRuntime(mustTestRegistry(t), nil, nil, nil)
	ts := newTestHTTPServer(t, rt, nil, pingerFunc(func(context.Context) error {
		return errors.New("reaching Backlog space: connection refused")
	}))

	resp, body := getBody(t, ts.URL+"/readiness")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, problemContentType, resp.Header.Get("Content-Type"))
	require.Contains(t, body, "connection refused")
}

func TestHTTPServer_InitializeAndListTools(t *testing.T) {
	rt := newTestRuntime(mustTestRegistry(t), mustModeGuard(t, policy.ModeReadOnly), nil, nil)
	ts := newTestHTTPServer(t, rt, nil, nil)

	resp, body := postJSON(t, ts.URL+"/mcp/v1/initialize", "", `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var initPayload map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &initPayload))
	require.Equal(t, defaultProtocolVersion, initPayload["protocolVersion"])

	resp, body = getBody(t, ts.URL+"/mcp/v1/tools")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed listToolsResult
	require.NoError(t, json.Unmarshal([]byte(body), &listed))
	require.Len(t, listed.Tools, 2)
	for _, tool := range listed.Tools {
		require.NotContains(t, []string{"add_issue", "delete_issue"}, tool.Name)
	}
}

func TestHTTPServer_CallToolSuccess(t *testing.T) {
	caller := &recordingCaller{fn: func(string, map[string]any) (map[string]any, error) {
		return map[string]any{"spaceKey": "DEMO"}, nil
	}}
	logs := &bytes.Buffer{}
	rt := newTestRuntime(mustTestRegistry(t), mustModeGuard(t, policy.ModeReadOnly), caller, logs)
	ts := newTestHTTPServer(t, rt, NewTokenSessionAuthenticator(testSessionToken), nil)

	resp, body := postJSON(t, ts.URL+"/mcp/v1/tools/call", testSessionToken, `{"name":"get_space","arguments":{}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result callToolResult
	require.NoError(t, json.Unmarshal([]byte(body), &result))
	require.False(t, result.IsError)
	require.JSONEq(t, `{"spaceKey":"DEMO"}`, result.Content[0].Text)

	events := auditEventsFromLogs(t, logs.String())
	require.Len(t, events, 1)
	assert.Equal(t, "http", events[0]["transport"])
	assert.Equal(t, "get_space", events[0]["tool"])
	assert.Equal(t, "success", events[0]["result"])
	assert.Equal(t, "mcp-session", events[0]["caller_subject"])
	assert.NotEmpty(t, events[0]["request_id"])
}

func TestHTTPServer_CallToolRejections(t *testing.T) {
	readOnlyJWT := testJWTToken(t, map[string]any{"sub": "agent", "scope": "read:issues"})

	tests := []struct {
		name       string
		mode       string
		token      string
		authn      SessionAuthenticator
		body       string
		wantStatus int
		wantDetail string
	}{
		{
			name:       "no authenticator",
			mode:       policy.ModeReadOnly,
			token:      testSessionToken,
			body:       `{"name":"get_space"}`,
			wantStatus: http.StatusUnauthorized,
			wantDetail: "BACKLOG_MCP_SESSION_TOKEN",
		},
		{
			name:       "missing bearer",
			mode:       policy.ModeReadOnly,
			authn:      NewTokenSessionAuthenticator(testSessionToken),
			body:       `{"name":"get_space"}`,
			wantStatus: http.StatusUnauthorized,
			wantDetail: "Authorization header",
		},
		{
			name:       "unknown field",
			mode:       policy.ModeReadOnly,
			token:      testSessionToken,
			authn:      NewTokenSessionAuthenticator(testSessionToken),
			body:       `{"name":"get_space","extra":true}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "invalid request body",
		},
		{
			name:       "empty name",
			mode:       policy.ModeReadOnly,
			token:      testSessionToken,
			authn:      NewTokenSessionAuthenticator(testSessionToken),
			body:       `{"name":" "}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "tool name is required",
		},
		{
			name:       "unknown tool",
			mode:       policy.ModeReadOnly,
			token:      testSessionToken,
			authn:      NewTokenSessionAuthenticator(testSessionToken),
			body:       `{"name":"nope","arguments":{"apiKey":"super-secret"}}`,
			wantStatus: http.StatusNotFound,
			wantDetail: "unknown tool: nope",
		},
		{
			name:       "write tool in read-only mode",
			mode:       policy.ModeReadOnly,
			token:      testSessionToken,
			authn:      NewTokenSessionAuthenticator(testSessionToken),
			body:       `{"name":"add_issue","arguments":{"projectId":1}}`,
			wantStatus: http.StatusForbidden,
			wantDetail: "requires read-write mode",
		},
		{
			name:       "delete without confirm",
			mode:       policy.ModeReadWrite,
			token:      testSessionToken,
			authn:      NewTokenSessionAuthenticator(testSessionToken),
			body:       `{"name":"delete_issue","arguments":{"issueKey":"ONE-1"}}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "requires confirm=true",
		},
		{
			name:       "missing scope",
			mode:       policy.ModeReadWrite,
			token:      readOnlyJWT,
			authn:      NewTokenSessionAuthenticator(readOnlyJWT),
			body:       `{"name":"delete_issue","arguments":{"issueKey":"ONE-1","confirm":true}}`,
			wantStatus: http.StatusForbidden,
			wantDetail: "missing required scope(s): admin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &recordingCaller{}
			logs := &bytes.Buffer{}
			rt := newTestRuntime(mustTestRegistry(t), mustModeGuard(t, tt.mode), caller, logs)
			ts := newTestHTTPServer(t, rt, tt.authn, nil)

			resp, body := postJSON(t, ts.URL+"/mcp/v1/tools/call", tt.token, tt.body)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			require.Equal(t, problemContentType, resp.Header.Get("Content-Type"))
			require.Contains(t, body, tt.wantDetail)
			require.Empty(t, caller.recorded())

			events := auditEventsFromLogs(t, logs.String())
			require.Len(t, events, 1)
			assert.Equal(t, "rejected", events[0]["result"])
			assert.NotContains(t, logs.String(), "super-secret")
		})
	}
}

func TestHTTPServer_ForbiddenProjectIsProblemWithCode(t *testing.T) {
	registry := mustTestRegistry(t)
	runner := &recordingCaller{}
	rt := newTestRuntime(registry, mustModeGuard(t, policy.ModeReadWrite), NewGuardedCaller(registry, runner, mustGate(t)), nil)
	ts := newTestHTTPServer(t, rt, NewTokenSessionAuthenticator(testSessionToken), nil)

	resp, body := postJSON(t, ts.URL+"/mcp/v1/tools/call", testSessionToken, `{"name":"get_issues","arguments":{"projectId":[1,3]}}`)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	var problem problemDetail
	require.NoError(t, json.Unmarshal([]byte(body), &problem))
	assert.Equal(t, guard.ForbiddenCode, problem.Code)
	assert.Equal(t, "Read operation is not allowed for this project", problem.Detail)
	assert.Equal(t, "/mcp/v1/tools/call", problem.Instance)
	data, ok := problem.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), data["requestedProjectId"])
	assert.Empty(t, runner.recorded())
}

func TestHTTPServer_SSEStreamsResult(t *testing.T) {
	caller := &recordingCaller{}
	logs := &bytes.Buffer{}
	rt := newTestRuntime(mustTestRegistry(t), mustModeGuard(t, policy.ModeReadOnly), caller, logs)
	ts := newTestHTTPServer(t, rt, NewTokenSessionAuthenticator(testSessionToken), nil)

	resp, body := postJSON(t, ts.URL+"/mcp/v1/tools/call/sse", testSessionToken, `{"name":"get_issues","arguments":{"keyword":"x"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	require.Contains(t, body, "event: accepted")
	require.Contains(t, body, "event: result")
	require.Contains(t, body, "event: done")
	require.Less(t, strings.Index(body, "event: accepted"), strings.Index(body, "event: result"))

	events := auditEventsFromLogs(t, logs.String())
	require.Len(t, events, 1)
	assert.Equal(t, "http-sse", events[0]["transport"])
	assert.Equal(t, "success", events[0]["result"])
}

func TestHTTPServer_SSEForbiddenResult(t *testing.T) {
	registry := mustTestRegistry(t)
	rt := newTestRuntime(registry, mustModeGuard(t, policy.ModeReadWrite), NewGuardedCaller(registry, &recordingCaller{}, mustGate(t)), nil)
	ts := newTestHTTPServer(t, rt, NewTokenSessionAuthenticator(testSessionToken), nil)

	resp, body := postJSON(t, ts.URL+"/mcp/v1/tools/call/sse", testSessionToken, `{"name":"add_issue","arguments":{"projectId":5}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `"isError":true`)
	require.Contains(t, body, `"code":-32040`)
}
