package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"git.cscs.ch/openchami/backlog-mcp/internal/audit"
	"git.cscs.ch/openchami/backlog-mcp/internal/policy"
)

func registerMCPHTTPRoutes(r chi.Router, rt Runtime, sessionAuth SessionAuthenticator) {
	r.Route("/mcp/v1", func(r chi.Router) {
		r.Post("/initialize", handleInitializeHTTP(rt))
		r.Get("/tools", handleListToolsHTTP(rt))
		r.Post("/tools/call", handleCallToolHTTP(rt, sessionAuth))
		r.Post("/tools/call/sse", handleCallToolSSE(rt, sessionAuth))
	})
}

func handleInitializeHTTP(rt Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, rt.initializeResult())
	}
}

func handleListToolsHTTP(rt Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, rt.listTools())
	}
}

func newHTTPAuditEvent(r *http.Request, rt Runtime, transport string) audit.ToolCallCompletion {
	requestID := requestIDFromRequest(r)
	return audit.ToolCallCompletion{
		RequestID: requestID,
		SessionID: sessionIDFromHTTPRequest(r, requestID),
		Transport: transport,
		Mode:      rt.mode(),
		Result:    resultRejected,
	}
}

func handleCallToolHTTP(rt Runtime, sessionAuth SessionAuthenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		event := newHTTPAuditEvent(r, rt, "http")
		defer func() {
			rt.complete(event, started)
		}()

		params, tool, ok := parseCallToolRequest(w, r, rt, sessionAuth, &event)
		if !ok {
			return
		}

		rt.Logger.Info().Str("transport", "http").Str("tool", tool.Name).Msg("received tool call")
		payload, err := rt.execute(r.Context(), tool, params.Arguments, &event)
		if err != nil {
			respondToolError(w, r, err)
			return
		}
		event.ResponseCode = http.StatusOK
		respondJSON(w, http.StatusOK, toolCallResultFromExecution(tool.Name, rt.mode(), payload))
	}
}

func handleCallToolSSE(rt Runtime, sessionAuth SessionAuthenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		event := newHTTPAuditEvent(r, rt, "http-sse")
		defer func() {
			rt.complete(event, started)
		}()

		params, tool, ok := parseCallToolRequest(w, r, rt, sessionAuth, &event)
		if !ok {
			return
		}

		controller := http.NewResponseController(w)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		rt.Logger.Info().Str("transport", "http-sse").Str("tool", tool.Name).Msg("streaming tool call")

		if err := writeSSEEvent(r.Context(), w, "accepted", map[string]any{
			"tool":      tool.Name,
			"status":    "accepted",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		}); err != nil {
			event.Result = resultError
			event.ErrorDetail = err.Error()
			event.ResponseCode = http.StatusInternalServerError
			return
		}
		_ = controller.Flush()

		var result callToolResult
		payload, err := rt.execute(r.Context(), tool, params.Arguments, &event)
		if err != nil {
			result = toolCallResultFromError(tool.Name, rt.mode(), err)
		} else {
			event.ResponseCode = http.StatusOK
			result = toolCallResultFromExecution(tool.Name, rt.mode(), payload)
		}

		if writeErr := writeSSEEvent(r.Context(), w, "result", result); writeErr != nil {
			event.Result = resultError
			event.ErrorDetail = writeErr.Error()
			event.ResponseCode = http.StatusInternalServerError
			return
		}
		_ = controller.Flush()
		_ = writeSSEEvent(r.Context(), w, "done", map[string]any{"status": "done"})
		_ = controller.Flush()
	}
}

// parseCallToolRequest authenticates and validates a tool call. On failure
// it has already written the problem response and filled event.
func parseCallToolRequest(
	w http.ResponseWriter,
	r *http.Request,
	rt Runtime,
	sessionAuth SessionAuthenticator,
	event *audit.ToolCallCompletion,
) (callToolParams, ToolSpec, bool) {
	reject := func(status int, detail string) (callToolParams, ToolSpec, bool) {
		event.ErrorDetail = detail
		event.ResponseCode = status
		respondProblem(w, r, status, detail)
		return callToolParams{}, ToolSpec{}, false
	}

	if sessionAuth == nil {
		return reject(authFailureResponse(ErrSessionTokenMissing))
	}
	principal, err := sessionAuth.AuthenticateHTTP(r)
	if err != nil {
		return reject(authFailureResponse(err))
	}
	event.CallerSub = principal.Subject

	var params callToolParams
	if err := decodeJSONStrict(r, &params); err != nil {
		return reject(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	event.Arguments = params.Arguments

	name := strings.TrimSpace(params.Name)
	event.ToolName = name
	if name == "" {
		return reject(http.StatusBadRequest, "tool name is required")
	}
	tool, ok := rt.Registry.Lookup(name)
	if !ok {
		return reject(http.StatusNotFound, fmt.Sprintf("unknown tool: %s", name))
	}
	event.ToolName = tool.Name
	if err := authorizeToolCall(rt.Authorizer, tool); err != nil {
		return reject(http.StatusForbidden, err.Error())
	}
	if err := policy.RequireConfirmation(tool.Name, tool.ConfirmationRequired, params.Arguments); err != nil {
		return reject(http.StatusBadRequest, err.Error())
	}
	if err := requireToolScopes(tool, principal); err != nil {
		return reject(http.StatusForbidden, err.Error())
	}
	return params, tool, true
}

func writeSSEEvent(ctx context.Context, w http.ResponseWriter, event string, payload any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", strings.TrimSpace(event)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}

func decodeJSONStrict(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if decoder.More() {
		return fmt.Errorf("request must contain exactly one JSON object")
	}
	return nil
}

func sessionIDFromHTTPRequest(r *http.Request, fallback string) string {
	if r == nil {
		return strings.TrimSpace(fallback)
	}
	if sessionID := strings.TrimSpace(r.Header.Get("MCP-Session-ID")); sessionID != "" {
		return sessionID
	}
	if sessionID := strings.TrimSpace(r.Header.Get("X-Session-ID")); sessionID != "" {
		return sessionID
	}
	return strings.TrimSpace(fallback)
}
