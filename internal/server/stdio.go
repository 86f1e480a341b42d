package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"time"

	"git.cscs.ch/openchami/backlog-mcp/internal/audit"
	"git.cscs.ch/openchami/backlog-mcp/internal/policy"
)

const (
	rpcCodeInvalidRequest = -32600
	rpcCodeMethodNotFound = -32601
	rpcCodeInvalidParams  = -32602
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
	Capabilities struct {
		Tools struct {
			ListChanged bool `json:"listChanged"`
		} `json:"tools"`
	} `json:"capabilities"`
}

type listToolsResult struct {
	Tools []toolDescriptor `json:"tools"`
}

type toolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type callToolResult struct {
	Content           []contentBlock `json:"content"`
	IsError           bool           `json:"isError"`
	StructuredContent map[string]any `json:"structuredContent,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// RunStdio handles MCP requests over stdin/stdout using JSON-RPC line-delimited messages.
func RunStdio(ctx context.Context, in io.Reader, out io.Writer, rt Runtime) error {
	scanner := bufio.NewScanner(in)
	// Allow larger requests in stdio mode (up to 4 MiB per message).
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	writer := bufio.NewWriter(out)
	defer writer.Flush()

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			if writeErr := writeRPC(writer, rpcResponse{
				JSONRPC: "2.0",
				Error: &rpcError{
					Code:    rpcCodeInvalidRequest,
					Message: fmt.Sprintf("invalid json-rpc payload: %v", err),
				},
			}); writeErr != nil {
				return writeErr
			}
			continue
		}
		// Notifications such as notifications/initialized get no reply.
		if req.ID == nil && strings.HasPrefix(strings.TrimSpace(req.Method), "notifications/") {
			continue
		}

		resp := handleRPCRequest(ctx, req, rt)
		if err := writeRPC(writer, resp); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdio request: %w", err)
	}
	return nil
}

func writeRPC(w *bufio.Writer, resp rpcResponse) error {
	encoded, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding rpc response: %w", err)
	}
	if _, err := w.Write(encoded); err != nil {
		return fmt.Errorf("writing rpc response: %w", err)
	}
	if err := w.WriteByte('\n'); err != nil {
		return fmt.Errorf("writing rpc newline: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing rpc response: %w", err)
	}
	return nil
}

func handleRPCRequest(ctx context.Context, req rpcRequest, rt Runtime) rpcResponse {
	response := rpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
	}

	if strings.TrimSpace(req.JSONRPC) != "2.0" {
		response.Error = &rpcError{
			Code:    rpcCodeInvalidRequest,
			Message: "jsonrpc must be 2.0",
		}
		return response
	}

	switch strings.TrimSpace(req.Method) {
	case "initialize":
		response.Result = rt.initializeResult()
		return response

	case "ping":
		response.Result = map[string]any{}
		return response

	case "tools/list":
		response.Result = rt.listTools()
		return response

	case "tools/call":
		return handleRPCToolCall(ctx, req, rt, response)

	default:
		response.Error = &rpcError{
			Code:    rpcCodeMethodNotFound,
			Message: fmt.Sprintf("unknown method: %s", strings.TrimSpace(req.Method)),
		}
		return response
	}
}

func handleRPCToolCall(ctx context.Context, req rpcRequest, rt Runtime, response rpcResponse) rpcResponse {
	var params callToolParams
	if len(req.Params) == 0 {
		response.Error = &rpcError{
			Code:    rpcCodeInvalidParams,
			Message: "missing params",
		}
		return response
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		response.Error = &rpcError{
			Code:    rpcCodeInvalidParams,
			Message: fmt.Sprintf("invalid tools/call params: %v", err),
		}
		return response
	}

	started := time.Now()
	name := strings.TrimSpace(params.Name)
	event := audit.ToolCallCompletion{
		RequestID: fmt.Sprint(req.ID),
		Transport: "stdio",
		ToolName:  name,
		Mode:      rt.mode(),
		Arguments: params.Arguments,
		Result:    resultRejected,
	}
	defer func() {
		rt.complete(event, started)
	}()

	tool, ok := rt.Registry.Lookup(name)
	if !ok {
		event.ErrorDetail = fmt.Sprintf("unknown tool: %s", name)
		response.Error = &rpcError{
			Code:    rpcCodeInvalidParams,
			Message: event.ErrorDetail,
		}
		return response
	}
	event.ToolName = tool.Name
	if err := authorizeToolCall(rt.Authorizer, tool); err != nil {
		event.ErrorDetail = err.Error()
		response.Error = &rpcError{
			Code:    rpcCodeInvalidParams,
			Message: err.Error(),
		}
		return response
	}
	if err := policy.RequireConfirmation(tool.Name, tool.ConfirmationRequired, params.Arguments); err != nil {
		event.ErrorDetail = err.Error()
		response.Error = &rpcError{
			Code:    rpcCodeInvalidParams,
			Message: err.Error(),
		}
		return response
	}

	rt.Logger.Info().Str("transport", "stdio").Str("tool", tool.Name).Msg("received tool call")
	payload, err := rt.execute(ctx, tool, params.Arguments, &event)
	if err != nil {
		if code, data, coded := toolErrorCode(err); coded {
			response.Error = &rpcError{
				Code:    code,
				Message: toolErrorMessage(err),
				Data:    data,
			}
			return response
		}
		response.Result = toolCallResultFromError(tool.Name, rt.mode(), err)
		return response
	}
	response.Result = toolCallResultFromExecution(tool.Name, rt.mode(), payload)
	return response
}
