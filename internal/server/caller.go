package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"git.cscs.ch/openchami/backlog-mcp/internal/guard"
	"git.cscs.ch/openchami/backlog-mcp/internal/tools"
)

// ToolCaller executes one tool call and returns structured content.
type ToolCaller interface {
	Call(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

// ResourceResolver looks up the project that owns the resource a call
// addresses. The tool runner implements it.
type ResourceResolver interface {
	ResourceProjectID(ctx context.Context, resource string, args map[string]any) (int, error)
}

// GuardedCaller dispatches tool calls through the project guard. Tools whose
// contract entry has no projectGuard block go straight to the runner.
type GuardedCaller struct {
	ops map[string]guard.Operation
}

// NewGuardedCaller builds one operation per registry tool. A nil gate leaves
// every tool unguarded. When runner is also a ResourceResolver, tools with a
// projectGuard resource are checked against the project owning the resource.
func NewGuardedCaller(registry *ToolRegistry, runner ToolCaller, gate *guard.Gate) *GuardedCaller {
	resolver, _ := runner.(ResourceResolver)
	ops := make(map[string]guard.Operation, len(registry.List()))
	for _, tool := range registry.List() {
		name := tool.Name
		var op guard.Operation = func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return runner.Call(ctx, name, args)
		}
		if gate != nil && tool.ProjectGuard != nil {
			scope := tool.ProjectGuard.Scope()
			op = gate.Wrap(op, name, scope)
			if resource := tool.ProjectGuard.Resource; resource != "" && resolver != nil && gate.Enforces(scope.Access) {
				op = pinResourceProject(op, resolver, resource)
			}
		}
		ops[name] = op
	}
	return &GuardedCaller{ops: ops}
}

// pinResourceProject replaces any project the caller supplied with the one
// owning the addressed resource before next runs.
func pinResourceProject(next guard.Operation, resolver ResourceResolver, resource string) guard.Operation {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		projectID, err := resolver.ResourceProjectID(ctx, resource, args)
		if err != nil {
			return nil, err
		}
		pinned := make(map[string]any, len(args)+1)
		for key, value := range args {
			if key == "projectKey" || key == "projectIds" {
				continue
			}
			pinned[key] = value
		}
		pinned["projectId"] = projectID
		return next(ctx, pinned)
	}
}

// Call implements ToolCaller.
func (c *GuardedCaller) Call(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	op, ok := c.ops[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", strings.TrimSpace(name))
	}
	payload, err := op(ctx, args)
	if err != nil {
		return nil, tools.MapError(err)
	}
	return payload, nil
}

type statusCoder interface {
	StatusCode() int
}

// rpcCoder is implemented by errors that carry their own JSON-RPC code,
// such as project access rejections.
type rpcCoder interface {
	Code() int
	ErrorData() any
}

func toolErrorStatus(err error) int {
	var withStatus statusCoder
	if err != nil && errors.As(err, &withStatus) {
		status := withStatus.StatusCode()
		if status >= 400 && status <= 599 {
			return status
		}
	}
	return http.StatusInternalServerError
}

func toolErrorMessage(err error) string {
	if err == nil {
		return "unknown tool execution error"
	}
	message := strings.TrimSpace(err.Error())
	if message == "" {
		return "unknown tool execution error"
	}
	return message
}

// toolErrorCode returns the error's own JSON-RPC code and data, if any.
func toolErrorCode(err error) (int, any, bool) {
	var coded rpcCoder
	if err != nil && errors.As(err, &coded) {
		return coded.Code(), coded.ErrorData(), true
	}
	return 0, nil, false
}

func toolCallResultFromExecution(name, mode string, payload map[string]any) callToolResult {
	text := fmt.Sprintf("tool %s executed", strings.TrimSpace(name))
	if encoded, err := json.Marshal(payload); err == nil {
		text = string(encoded)
	}
	return callToolResult{
		Content: []contentBlock{
			{
				Type: "text",
				Text: text,
			},
		},
		IsError: false,
		StructuredContent: map[string]any{
			"tool":   strings.TrimSpace(name),
			"mode":   strings.TrimSpace(mode),
			"status": "ok",
			"result": payload,
		},
	}
}

func toolCallResultFromError(name, mode string, err error) callToolResult {
	detail := map[string]any{
		"status":  toolErrorStatus(err),
		"message": toolErrorMessage(err),
	}
	if code, data, ok := toolErrorCode(err); ok {
		detail["code"] = code
		if data != nil {
			detail["data"] = data
		}
	}
	return callToolResult{
		Content: []contentBlock{
			{
				Type: "text",
				Text: toolErrorMessage(err),
			},
		},
		IsError: true,
		StructuredContent: map[string]any{
			"tool":   strings.TrimSpace(name),
			"mode":   strings.TrimSpace(mode),
			"status": "error",
			"error":  detail,
		},
	}
}
