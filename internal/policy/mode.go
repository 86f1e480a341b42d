// Package policy defines execution guardrails for MCP tool calls.
package policy

import (
	"fmt"
	"strings"
)

const (
	// ModeReadOnly allows only read capability tools.
	ModeReadOnly = "read-only"
	// ModeReadWrite allows read and write capability tools.
	ModeReadWrite = "read-write"

	// CapabilityRead marks tools that never change Backlog state.
	CapabilityRead = "read"
	// CapabilityWrite marks tools that create, update or delete Backlog data.
	CapabilityWrite = "write"
)

// ModeGuard enforces mode-based tool execution policy.
type ModeGuard struct {
	mode string
}

// NewModeGuard validates the mode and returns an execution guard.
// read-write requires enableWrite as a second, independent switch.
func NewModeGuard(mode string, enableWrite bool) (*ModeGuard, error) {
	normalized := strings.ToLower(strings.TrimSpace(mode))
	switch normalized {
	case "", ModeReadOnly:
		return &ModeGuard{mode: ModeReadOnly}, nil
	case ModeReadWrite:
		if !enableWrite {
			return nil, fmt.Errorf("read-write mode requires BACKLOG_MCP_ENABLE_WRITE=true")
		}
		return &ModeGuard{mode: ModeReadWrite}, nil
	default:
		return nil, fmt.Errorf("invalid mode %q (allowed: %s|%s)", normalized, ModeReadOnly, ModeReadWrite)
	}
}

// Mode returns the resolved mode.
func (g *ModeGuard) Mode() string {
	if g == nil {
		return ModeReadOnly
	}
	return g.mode
}

// Visible reports whether tools of the capability are listed to clients.
// Write tools are hidden in read-only mode.
func (g *ModeGuard) Visible(capability string) bool {
	return g.AuthorizeTool("", capability) == nil
}

// AuthorizeTool allows or denies tool execution based on tool capability.
func (g *ModeGuard) AuthorizeTool(name, capability string) error {
	toolName := strings.TrimSpace(name)
	if toolName == "" {
		toolName = "unknown"
	}

	switch strings.ToLower(strings.TrimSpace(capability)) {
	case CapabilityRead:
		return nil
	case CapabilityWrite:
		if g.Mode() == ModeReadWrite {
			return nil
		}
		return fmt.Errorf("tool %s requires read-write mode", toolName)
	default:
		return fmt.Errorf("tool %s has unknown capability %q", toolName, strings.TrimSpace(capability))
	}
}
