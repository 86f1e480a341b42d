package server

import "fmt"

// ToolAuthorizer is the central policy gate for all tool executions.
type ToolAuthorizer interface {
	Mode() string
	Visible(capability string) bool
	AuthorizeTool(name, capability string) error
}

func authorizeToolCall(authorizer ToolAuthorizer, tool ToolSpec) error {
	if authorizer == nil {
		return nil
	}
	if err := authorizer.AuthorizeTool(tool.Name, tool.Capability); err != nil {
		return fmt.Errorf("tool authorization denied: %w", err)
	}
	return nil
}

func resolvedMode(authorizer ToolAuthorizer) string {
	if authorizer == nil {
		return "read-only"
	}
	return authorizer.Mode()
}

// visibleTools lists the tools a client may see under the current mode,
// with their exposed names.
func visibleTools(registry *ToolRegistry, authorizer ToolAuthorizer) []toolDescriptor {
	all := registry.List()
	items := make([]toolDescriptor, 0, len(all))
	for _, tool := range all {
		if authorizer != nil && !authorizer.Visible(tool.Capability) {
			continue
		}
		items = append(items, toolDescriptor{
			Name:        registry.ExposedName(tool.Name),
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}
	return items
}
