package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequireConfirmation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name                 string
		toolName             string
		confirmationRequired bool
		args                 map[string]any
		wantErr              string
	}{
		{
			name:     "no confirmation needed for read tool",
			toolName: "get_issues",
			args:     map[string]any{},
		},
		{
			name:     "no confirmation needed for create tool",
			toolName: "add_issue",
			args:     map[string]any{"projectId": 1},
		},
		{
			name:     "delete tool requires confirmation",
			toolName: "delete_issue",
			args:     map[string]any{"issueKey": "PROJ-1"},
			wantErr:  "requires confirm=true",
		},
		{
			name:     "delete tool accepts confirm true",
			toolName: "delete_version",
			args: map[string]any{
				"projectId": 1,
				"id":        5,
				"confirm":   true,
			},
		},
		{
			name:     "delete tool rejects confirm false",
			toolName: "delete_watching",
			args: map[string]any{
				"watchId": 8,
				"confirm": false,
			},
			wantErr: "requires confirm=true",
		},
		{
			name:                 "explicit confirmationRequired metadata is honored",
			toolName:             "update_version_milestone",
			confirmationRequired: true,
			args:                 map[string]any{},
			wantErr:              "requires confirm=true",
		},
		{
			name:     "confirm must be boolean true",
			toolName: "delete_issue",
			args: map[string]any{
				"issueId": 1,
				"confirm": "true",
			},
			wantErr: "requires confirm=true",
		},
		{
			name:     "nil arguments on delete tool",
			toolName: "delete_issue",
			wantErr:  "requires confirm=true",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := RequireConfirmation(tc.toolName, tc.confirmationRequired, tc.args)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
