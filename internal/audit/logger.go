// Package audit provides structured audit logging for MCP tool calls.
package audit

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	bearerTokenPattern = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-._~+/]+=*`)
	keyValuePattern    = regexp.MustCompile(`(?i)\b(api_?key|token|secret|password|authorization)\s*[:=]\s*([^\s,;&]+)`)
	issueKeyPattern    = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-[0-9]+$`)
)

// ToolCallCompletion captures one finalized tool-call outcome.
type ToolCallCompletion struct {
	RequestID    string
	SessionID    string
	Transport    string
	ToolName     string
	Mode         string
	CallerSub    string
	Arguments    map[string]any
	Result       string
	ErrorDetail  string
	ErrorCode    int
	Duration     time.Duration
	ResponseCode int
}

// TargetSummary is a compact summary of the Backlog objects a call touched.
type TargetSummary struct {
	ProjectIDs  []int    `json:"project_ids,omitempty"`
	ProjectKeys []string `json:"project_keys,omitempty"`
	IssueKeys   []string `json:"issue_keys,omitempty"`
}

// Logger emits structured audit entries.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates an audit logger.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Complete writes a single completion log entry for one tool call.
func (l *Logger) Complete(event ToolCallCompletion) {
	if l == nil {
		return
	}

	result := strings.TrimSpace(event.Result)
	if result == "" {
		result = "error"
	}
	tool := strings.TrimSpace(event.ToolName)
	if tool == "" {
		tool = "unknown"
	}
	mode := strings.TrimSpace(event.Mode)
	if mode == "" {
		mode = "read-only"
	}
	duration := max(event.Duration, 0)

	entry := l.logger.Info().
		Str("event", "mcp.tool_call.completed").
		Str("request_id", strings.TrimSpace(event.RequestID)).
		Str("session_id", strings.TrimSpace(event.SessionID)).
		Str("transport", strings.TrimSpace(event.Transport)).
		Str("tool", tool).
		Str("mode", mode).
		Str("caller_subject", strings.TrimSpace(event.CallerSub)).
		Str("result", result).
		Int64("duration_ms", duration.Milliseconds()).
		Interface("target", SummarizeTargets(event.Arguments))

	if event.ResponseCode > 0 {
		entry = entry.Int("response_code", event.ResponseCode)
	}
	if event.ErrorCode != 0 {
		entry = entry.Int("error_code", event.ErrorCode)
	}
	if redactedError := RedactSensitiveText(event.ErrorDetail); redactedError != "" {
		entry = entry.Str("error_detail", redactedError)
	}

	entry.Msg("tool call completed")
}

// SummarizeTargets extracts project and issue identifiers from tool arguments.
// Argument values are never logged verbatim.
func SummarizeTargets(args map[string]any) TargetSummary {
	if args == nil {
		return TargetSummary{}
	}

	var issueKeys []string
	issueKeys = append(issueKeys, readStrings(args, "issueKey")...)
	for _, candidate := range readStrings(args, "issueIdOrKey") {
		if issueKeyPattern.MatchString(candidate) {
			issueKeys = append(issueKeys, candidate)
		}
	}

	return TargetSummary{
		ProjectIDs:  uniqueInts(readInts(args, "projectId", "projectIds")),
		ProjectKeys: uniqueStrings(readStrings(args, "projectKey")),
		IssueKeys:   uniqueStrings(issueKeys),
	}
}

// RedactSensitiveText removes obvious secrets from free-text error details.
func RedactSensitiveText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	redacted := bearerTokenPattern.ReplaceAllString(trimmed, "Bearer [REDACTED]")
	redacted = keyValuePattern.ReplaceAllStringFunc(redacted, func(match string) string {
		if name, _, ok := strings.Cut(match, ":"); ok {
			return fmt.Sprintf("%s: [REDACTED]", strings.TrimSpace(name))
		}
		if name, _, ok := strings.Cut(match, "="); ok {
			return fmt.Sprintf("%s=[REDACTED]", strings.TrimSpace(name))
		}
		return "[REDACTED]"
	})
	return redacted
}

func readStrings(args map[string]any, keys ...string) []string {
	var values []string
	for _, key := range keys {
		for _, item := range flatten(args[key]) {
			if s, ok := item.(string); ok {
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					values = append(values, trimmed)
				}
			}
		}
	}
	return values
}

func readInts(args map[string]any, keys ...string) []int {
	var values []int
	for _, key := range keys {
		for _, item := range flatten(args[key]) {
			if id, ok := toInt(item); ok {
				values = append(values, id)
			}
		}
	}
	return values
}

func flatten(raw any) []any {
	switch typed := raw.(type) {
	case nil:
		return nil
	case []any:
		return typed
	case []string:
		out := make([]any, len(typed))
		for i, s := range typed {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(typed))
		for i, n := range typed {
			out[i] = n
		}
		return out
	default:
		return []any{raw}
	}
}

func toInt(value any) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, typed > 0
	case int64:
		return int(typed), typed > 0
	case float64:
		if typed <= 0 || typed != float64(int(typed)) {
			return 0, false
		}
		return int(typed), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(typed))
		return n, err == nil && n > 0
	default:
		return 0, false
	}
}

func uniqueInts(values []int) []int {
	if len(values) == 0 {
		return nil
	}
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
