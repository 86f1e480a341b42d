package policy

import (
	"fmt"
	"strings"
)

// RequireConfirmation enforces explicit confirm=true for destructive tools.
// A tool is destructive when its contract says so or its name starts with
// "delete_".
func RequireConfirmation(toolName string, confirmationRequired bool, args map[string]any) error {
	name := strings.TrimSpace(toolName)
	if name == "" {
		return nil
	}
	if !confirmationRequired && !isDeleteTool(name) {
		return nil
	}
	if hasConfirmTrue(args) {
		return nil
	}
	return fmt.Errorf("tool %s requires confirm=true for delete operations", name)
}

func isDeleteTool(name string) bool {
	return strings.HasPrefix(name, "delete_")
}

func hasConfirmTrue(args map[string]any) bool {
	if args == nil {
		return false
	}
	confirm, ok := args["confirm"].(bool)
	return ok && confirm
}
