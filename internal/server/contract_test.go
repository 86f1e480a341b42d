package server

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/backlog-mcp/api"
	"git.cscs.ch/openchami/backlog-mcp/internal/guard"
)

func TestNewToolRegistry_Success(t *testing.T) {
	contract := []byte(`
version: "1.0"
service: "backlog-mcp"
apiVersion: "mcp/v1"
tools:
  - name: get_issues
    capability: READ
    projectGuard:
      access: read
      multiProject: true
    inputSchema:
      type: object
  - name: get_space
    capability: read
`)
	registry, err := NewToolRegistry(contract)
	require.NoError(t, err)
	require.Len(t, registry.List(), 2)

	tool, ok := registry.Lookup("get_issues")
	require.True(t, ok)
	require.Equal(t, "read", tool.Capability)
	require.NotNil(t, tool.ProjectGuard)
	require.Equal(t, guard.Scope{Access: guard.AccessRead, MultiProject: true}, tool.ProjectGuard.Scope())

	space, ok := registry.Lookup("get_space")
	require.True(t, ok)
	require.Nil(t, space.ProjectGuard)
}

func TestNewToolRegistry_Invalid(t *testing.T) {
	cases := []struct {
		name     string
		contract string
		wantErr  string
	}{
		{
			name: "duplicate name",
			contract: `
tools:
  - name: same
    capability: read
  - name: same
    capability: write
`,
			wantErr: "duplicate tool",
		},
		{name: "empty", contract: "tools: []\n", wantErr: "no tools"},
		{
			name: "unknown guard resource",
			contract: `
tools:
  - name: update_document
    capability: write
    projectGuard:
      access: write
      resource: document
`,
			wantErr: "unknown projectGuard resource",
		},
		{
			name: "missing capability",
			contract: `
tools:
  - name: get_space
`,
			wantErr: "empty capability",
		},
		{
			name: "unknown capability",
			contract: `
tools:
  - name: get_space
    capability: admin
`,
			wantErr: "unknown capability",
		},
		{
			name: "bad guard access",
			contract: `
tools:
  - name: get_project
    capability: read
    projectGuard:
      access: admin
`,
			wantErr: "invalid projectGuard access",
		},
		{
			name: "write guard on read tool",
			contract: `
tools:
  - name: get_project
    capability: read
    projectGuard:
      access: write
`,
			wantErr: "write project guard",
		},
		{
			name: "list field without multi project",
			contract: `
tools:
  - name: get_documents
    capability: read
    projectGuard:
      access: read
      listField: projectIds
`,
			wantErr: "listField without multiProject",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewToolRegistry([]byte(tc.contract))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestToolRegistry_Prefix(t *testing.T) {
	registry, err := NewToolRegistry([]byte(`
tools:
  - name: get_space
    capability: read
`), WithToolPrefix(" backlog_ "))
	require.NoError(t, err)

	require.Equal(t, "backlog_get_space", registry.ExposedName("get_space"))
	tool, ok := registry.Lookup("backlog_get_space")
	require.True(t, ok)
	require.Equal(t, "get_space", tool.Name)

	_, ok = registry.Lookup("get_space")
	require.True(t, ok)
	_, ok = registry.Lookup("backlog_get_myself")
	require.False(t, ok)
}

func TestToolRegistry_Toolsets(t *testing.T) {
	tests := []struct {
		name     string
		toolsets []string
		want     []string
	}{
		{name: "default keeps everything", want: []string{"get_space", "get_issues", "add_issue", "get_wiki", "ping_thing"}},
		{name: "all keeps everything", toolsets: []string{"issue", "ALL"}, want: []string{"get_space", "get_issues", "add_issue", "get_wiki", "ping_thing"}},
		{name: "selected toolsets", toolsets: []string{" Issue ", "wiki"}, want: []string{"get_issues", "add_issue", "get_wiki", "ping_thing"}},
		{name: "single toolset", toolsets: []string{"space"}, want: []string{"get_space", "ping_thing"}},
	}

	contract := []byte(`
tools:
  - name: get_space
    capability: read
    toolset: space
  - name: get_issues
    capability: read
    toolset: issue
  - name: add_issue
    capability: write
    toolset: issue
  - name: get_wiki
    capability: read
    toolset: wiki
  - name: ping_thing
    capability: read
`)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			registry, err := NewToolRegistry(contract, WithToolsets(tc.toolsets))
			require.NoError(t, err)

			names := make([]string, 0, len(tc.want))
			for _, tool := range registry.List() {
				names = append(names, tool.Name)
			}
			require.Equal(t, tc.want, names)
			for _, tool := range []string{"get_space", "get_issues", "get_wiki"} {
				_, ok := registry.Lookup(tool)
				require.Equal(t, slices.Contains(tc.want, tool), ok, tool)
			}
		})
	}
}

func TestToolRegistry_ToolsetErrors(t *testing.T) {
	_, err := NewToolRegistry([]byte(`
tools:
  - name: get_space
    capability: read
    toolset: spaces
`))
	require.ErrorContains(t, err, `unknown toolset "spaces"`)

	_, err = NewToolRegistry([]byte(`
tools:
  - name: get_space
    capability: read
    toolset: space
`), WithToolsets([]string{"space", "pull_requests"}))
	require.ErrorContains(t, err, `unknown toolset "pull_requests"`)
}

func TestEmbeddedContract(t *testing.T) {
	registry, err := NewToolRegistry(api.ToolsContract)
	require.NoError(t, err)

	for _, tool := range registry.List() {
		require.Contains(t, Toolsets, tool.Toolset, tool.Name)
	}
	gitOnly, err := NewToolRegistry(api.ToolsContract, WithToolsets([]string{"git"}))
	require.NoError(t, err)
	require.Len(t, gitOnly.List(), 1)
	require.Equal(t, "add_pull_request", gitOnly.List()[0].Name)

	guarded := map[string]guard.Access{}
	for _, tool := range registry.List() {
		if tool.ProjectGuard != nil {
			guarded[tool.Name] = guard.Access(tool.ProjectGuard.Access)
		}
	}
	require.Equal(t, guard.AccessWrite, guarded["add_issue"])
	require.Equal(t, guard.AccessRead, guarded["get_issues"])
	require.NotContains(t, guarded, "get_space")

	docs, ok := registry.Lookup("get_documents")
	require.True(t, ok)
	require.Equal(t, "projectIds", docs.ProjectGuard.ListField)

	for _, name := range []string{"update_issue", "delete_issue"} {
		tool, ok := registry.Lookup(name)
		require.True(t, ok)
		require.Equal(t, "issue", tool.ProjectGuard.Resource)
	}
	wiki, ok := registry.Lookup("update_wiki")
	require.True(t, ok)
	require.Equal(t, "wiki", wiki.ProjectGuard.Resource)

	del, ok := registry.Lookup("delete_issue")
	require.True(t, ok)
	require.True(t, del.ConfirmationRequired)
	require.Equal(t, "write", del.Capability)
}
