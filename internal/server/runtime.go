package server

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"git.cscs.ch/openchami/backlog-mcp/internal/audit"
	"git.cscs.ch/openchami/backlog-mcp/internal/guard"
	"git.cscs.ch/openchami/backlog-mcp/internal/metrics"
)

// Call outcomes reported to the audit log and metrics.
const (
	resultSuccess   = "success"
	resultError     = "error"
	resultForbidden = "forbidden"
	resultRejected  = "rejected"
)

// Runtime bundles what both transports need to serve tool calls.
type Runtime struct {
	Registry   *ToolRegistry
	Authorizer ToolAuthorizer
	Caller     ToolCaller
	Audit      *audit.Logger
	Metrics    *metrics.Recorder
	Version    string
	Logger     zerolog.Logger
}

func (rt Runtime) mode() string {
	return resolvedMode(rt.Authorizer)
}

func (rt Runtime) initializeResult() initializeResult {
	result := initializeResult{ProtocolVersion: defaultProtocolVersion}
	result.ServerInfo.Name = defaultServerName
	result.ServerInfo.Version = strings.TrimSpace(rt.Version)
	result.Capabilities.Tools.ListChanged = false
	return result
}

func (rt Runtime) listTools() listToolsResult {
	return listToolsResult{Tools: visibleTools(rt.Registry, rt.Authorizer)}
}

// execute runs an authorized tool call and fills the outcome fields of event.
func (rt Runtime) execute(ctx context.Context, tool ToolSpec, args map[string]any, event *audit.ToolCallCompletion) (map[string]any, error) {
	if rt.Caller == nil {
		event.Result = resultSuccess
		return map[string]any{}, nil
	}
	payload, err := rt.Caller.Call(ctx, tool.Name, args)
	if err != nil {
		event.Result = resultError
		if guard.IsForbidden(err) {
			event.Result = resultForbidden
		}
		event.ErrorDetail = toolErrorMessage(err)
		event.ResponseCode = toolErrorStatus(err)
		if code, _, ok := toolErrorCode(err); ok {
			event.ErrorCode = code
		}
		return nil, err
	}
	event.Result = resultSuccess
	return payload, nil
}

// complete records a finished call in the audit log and metrics.
func (rt Runtime) complete(event audit.ToolCallCompletion, started time.Time) {
	event.Duration = time.Since(started)
	rt.Audit.Complete(event)
	tool := event.ToolName
	if _, known := rt.Registry.Lookup(tool); !known {
		tool = "unknown"
	}
	rt.Metrics.ObserveToolCall(tool, event.Result, event.Duration)
}
