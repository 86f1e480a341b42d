package server

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"git.cscs.ch/openchami/backlog-mcp/internal/guard"
	"git.cscs.ch/openchami/backlog-mcp/internal/policy"
	"git.cscs.ch/openchami/backlog-mcp/internal/tools"
)

const (
	defaultProtocolVersion = "2024-11-05"
	defaultServerName      = "backlog-mcp"

	// ToolsetAll enables every toolset.
	ToolsetAll = "all"
)

// Toolsets lists the tool groups a contract entry may belong to.
var Toolsets = []string{"space", "project", "issue", "document", "wiki", "watching", "git"}

// ProjectGuardSpec declares how a tool addresses Backlog projects.
type ProjectGuardSpec struct {
	Access       string `yaml:"access" json:"access"`
	MultiProject bool   `yaml:"multiProject,omitempty" json:"multiProject,omitempty"`
	ListField    string `yaml:"listField,omitempty" json:"listField,omitempty"`
	// Resource names the entry whose owning project is checked instead of
	// any project the caller supplies: issue or wiki.
	Resource string `yaml:"resource,omitempty" json:"resource,omitempty"`
}

// Scope converts the contract entry to a gate scope.
func (p ProjectGuardSpec) Scope() guard.Scope {
	return guard.Scope{
		Access:       guard.Access(p.Access),
		MultiProject: p.MultiProject,
		ListField:    p.ListField,
	}
}

// ToolSpec represents a single MCP tool contract entry.
type ToolSpec struct {
	Name                 string            `yaml:"name" json:"name"`
	Capability           string            `yaml:"capability" json:"capability"`
	Toolset              string            `yaml:"toolset,omitempty" json:"toolset,omitempty"`
	Description          string            `yaml:"description,omitempty" json:"description,omitempty"`
	RequiredScopes       []string          `yaml:"requiredScopes,omitempty" json:"requiredScopes,omitempty"`
	ConfirmationRequired bool              `yaml:"confirmationRequired,omitempty" json:"confirmationRequired,omitempty"`
	ProjectGuard         *ProjectGuardSpec `yaml:"projectGuard,omitempty" json:"projectGuard,omitempty"`
	InputSchema          map[string]any    `yaml:"inputSchema,omitempty" json:"inputSchema,omitempty"`
	OutputSchema         map[string]any    `yaml:"outputSchema,omitempty" json:"outputSchema,omitempty"`
}

type toolContract struct {
	Version    string     `yaml:"version"`
	Service    string     `yaml:"service"`
	APIVersion string     `yaml:"apiVersion"`
	Tools      []ToolSpec `yaml:"tools"`
}

// ToolRegistry provides read-only access to parsed tools. Tool names are
// exposed to clients with an optional prefix; internally they stay bare.
type ToolRegistry struct {
	contract toolContract
	byName   map[string]ToolSpec
	prefix   string
	toolsets []string
}

// RegistryOption configures a ToolRegistry.
type RegistryOption func(*ToolRegistry)

// WithToolPrefix prepends prefix to every exposed tool name.
func WithToolPrefix(prefix string) RegistryOption {
	return func(r *ToolRegistry) {
		r.prefix = strings.TrimSpace(prefix)
	}
}

// WithToolsets keeps only tools in the named toolsets. Tools without a
// toolset are always kept. An empty list or "all" keeps everything.
func WithToolsets(names []string) RegistryOption {
	return func(r *ToolRegistry) {
		r.toolsets = nil
		for _, name := range names {
			if normalized := strings.ToLower(strings.TrimSpace(name)); normalized != "" {
				r.toolsets = append(r.toolsets, normalized)
			}
		}
	}
}

// NewToolRegistry parses tools contract YAML and validates its invariants.
func NewToolRegistry(contractYAML []byte, opts ...RegistryOption) (*ToolRegistry, error) {
	var parsed toolContract
	if err := yaml.Unmarshal(contractYAML, &parsed); err != nil {
		return nil, fmt.Errorf("decoding tool contract: %w", err)
	}
	if len(parsed.Tools) == 0 {
		return nil, fmt.Errorf("tool contract has no tools")
	}

	byName := make(map[string]ToolSpec, len(parsed.Tools))
	for i, tool := range parsed.Tools {
		name := strings.TrimSpace(tool.Name)
		if name == "" {
			return nil, fmt.Errorf("tool contract contains empty tool name")
		}
		if _, exists := byName[name]; exists {
			return nil, fmt.Errorf("tool contract contains duplicate tool %q", name)
		}
		tool.Name = name
		tool.Capability = strings.ToLower(strings.TrimSpace(tool.Capability))
		tool.Toolset = strings.ToLower(strings.TrimSpace(tool.Toolset))
		if tool.Toolset != "" && !slices.Contains(Toolsets, tool.Toolset) {
			return nil, fmt.Errorf("tool %q has unknown toolset %q", name, tool.Toolset)
		}
		switch tool.Capability {
		case policy.CapabilityRead, policy.CapabilityWrite:
		case "":
			return nil, fmt.Errorf("tool %q has empty capability", name)
		default:
			return nil, fmt.Errorf("tool %q has unknown capability %q", name, tool.Capability)
		}
		if err := validateProjectGuard(tool); err != nil {
			return nil, err
		}
		parsed.Tools[i] = tool
		byName[name] = tool
	}

	registry := &ToolRegistry{
		contract: parsed,
		byName:   byName,
	}
	for _, opt := range opts {
		opt(registry)
	}
	if err := registry.selectToolsets(); err != nil {
		return nil, err
	}
	return registry, nil
}

func (r *ToolRegistry) selectToolsets() error {
	if len(r.toolsets) == 0 || slices.Contains(r.toolsets, ToolsetAll) {
		return nil
	}
	for _, name := range r.toolsets {
		if !slices.Contains(Toolsets, name) {
			return fmt.Errorf("unknown toolset %q (allowed: %s|%s)", name, ToolsetAll, strings.Join(Toolsets, "|"))
		}
	}

	kept := r.contract.Tools[:0:0]
	for _, tool := range r.contract.Tools {
		if tool.Toolset == "" || slices.Contains(r.toolsets, tool.Toolset) {
			kept = append(kept, tool)
			continue
		}
		delete(r.byName, tool.Name)
	}
	r.contract.Tools = kept
	return nil
}

func validateProjectGuard(tool ToolSpec) error {
	pg := tool.ProjectGuard
	if pg == nil {
		return nil
	}
	pg.Access = strings.ToLower(strings.TrimSpace(pg.Access))
	pg.ListField = strings.TrimSpace(pg.ListField)
	pg.Resource = strings.ToLower(strings.TrimSpace(pg.Resource))
	switch guard.Access(pg.Access) {
	case guard.AccessRead:
	case guard.AccessWrite:
		if tool.Capability != policy.CapabilityWrite {
			return fmt.Errorf("tool %q has a write project guard but %s capability", tool.Name, tool.Capability)
		}
	default:
		return fmt.Errorf("tool %q has invalid projectGuard access %q", tool.Name, pg.Access)
	}
	if pg.ListField != "" && !pg.MultiProject {
		return fmt.Errorf("tool %q sets projectGuard listField without multiProject", tool.Name)
	}
	switch pg.Resource {
	case "", tools.ResourceIssue, tools.ResourceWiki:
	default:
		return fmt.Errorf("tool %q has unknown projectGuard resource %q", tool.Name, pg.Resource)
	}
	if pg.Resource != "" && pg.MultiProject {
		return fmt.Errorf("tool %q sets projectGuard resource with multiProject", tool.Name)
	}
	return nil
}

// List returns all registered tools in contract order, with bare names.
func (r *ToolRegistry) List() []ToolSpec {
	items := make([]ToolSpec, 0, len(r.contract.Tools))
	items = append(items, r.contract.Tools...)
	return items
}

// ExposedName returns the client-facing name of a tool.
func (r *ToolRegistry) ExposedName(name string) string {
	return r.prefix + name
}

// Lookup returns a tool by its exposed or bare name.
func (r *ToolRegistry) Lookup(name string) (ToolSpec, bool) {
	trimmed := strings.TrimSpace(name)
	if r.prefix != "" {
		trimmed = strings.TrimPrefix(trimmed, r.prefix)
	}
	tool, ok := r.byName[trimmed]
	return tool, ok
}
