package policy

import (
	"fmt"
	"slices"
	"strings"
)

// AdminScope grants every tool.
const AdminScope = "admin"

// RequireScopes validates that granted scopes satisfy required tool scopes.
//
// Empty required scopes means no scope gate. A granted scope ending in ":*"
// covers every scope sharing its prefix, so "backlog:*" satisfies
// "backlog:issues:write".
func RequireScopes(toolName string, required, granted []string) error {
	requiredScopes := normalizeScopeList(required)
	if len(requiredScopes) == 0 {
		return nil
	}

	grantedScopes := normalizeScopeList(granted)
	if slices.Contains(grantedScopes, AdminScope) {
		return nil
	}

	var missing []string
	for _, scope := range requiredScopes {
		if !scopeGranted(scope, grantedScopes) {
			missing = append(missing, scope)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	tool := strings.TrimSpace(toolName)
	if tool == "" {
		tool = "unknown"
	}
	grantedSummary := "none"
	if len(grantedScopes) > 0 {
		grantedSummary = strings.Join(grantedScopes, ", ")
	}
	return fmt.Errorf("tool %s missing required scope(s): %s (granted: %s)", tool, strings.Join(missing, ", "), grantedSummary)
}

func scopeGranted(required string, granted []string) bool {
	for _, scope := range granted {
		if scope == required {
			return true
		}
		if prefix, ok := strings.CutSuffix(scope, "*"); ok && strings.HasSuffix(prefix, ":") && strings.HasPrefix(required, prefix) {
			return true
		}
	}
	return false
}

func normalizeScopeList(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes))
	result := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		trimmed := strings.TrimSpace(scope)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
