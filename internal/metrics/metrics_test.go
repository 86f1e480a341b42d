package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/backlog-mcp/internal/guard"
)

var _ guard.DecisionRecorder = (*Recorder)(nil)

func TestObserveToolCall(t *testing.T) {
	r := New()
	r.ObserveToolCall("get_issues", "success", 20*time.Millisecond)
	r.ObserveToolCall("get_issues", "success", 40*time.Millisecond)
	r.ObserveToolCall("get_issues", "error", time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(r.toolCalls.WithLabelValues("get_issues", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.toolCalls.WithLabelValues("get_issues", "error")))
	require.Equal(t, 1, testutil.CollectAndCount(r.toolDuration))
}

func TestRecordGuardDecision(t *testing.T) {
	r := New()
	r.RecordGuardDecision("add_issue", string(guard.AccessWrite), guard.ResultBlocked)
	r.RecordGuardDecision("get_issues", string(guard.AccessRead), guard.ResultFiltered)
	r.RecordGuardDecision("get_issues", string(guard.AccessRead), guard.ResultFiltered)

	expected := `
# HELP backlog_mcp_guard_decisions_total Project guard decisions by tool, access kind and result.
# TYPE backlog_mcp_guard_decisions_total counter
backlog_mcp_guard_decisions_total{access="read",result="filtered",tool="get_issues"} 2
backlog_mcp_guard_decisions_total{access="write",result="blocked",tool="add_issue"} 1
`
	require.NoError(t, testutil.CollectAndCompare(r.guardDecisions, strings.NewReader(expected)))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.ObserveToolCall("get_space", "success", time.Second)
		r.RecordGuardDecision("get_space", "read", "skipped")
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	r := New()
	r.ObserveToolCall("get_space", "success", time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `backlog_mcp_tool_calls_total{result="success",tool="get_space"} 1`)
	require.Contains(t, string(body), "go_goroutines")
}
