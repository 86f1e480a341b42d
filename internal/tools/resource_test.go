package tools

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/backlog-mcp/internal/backlog"
)

func TestResourceProjectID(t *testing.T) {
	client := newMockBacklog()
	client.getIssueFn = func(_ context.Context, idOrKey string) (*backlog.Issue, error) {
		switch idOrKey {
		case "TWO-3", "42":
			return &backlog.Issue{ID: 42, IssueKey: "TWO-3", ProjectID: 2}, nil
		}
		return nil, &backlog.APIError{StatusCode: http.StatusNotFound}
	}
	client.getWikiFn = func(_ context.Context, id int) (*backlog.Wiki, error) {
		require.Equal(t, 9, id)
		return &backlog.Wiki{ID: 9, ProjectID: 5}, nil
	}
	runner := NewRunner(client)

	tests := []struct {
		name       string
		resource   string
		args       map[string]any
		want       int
		wantStatus int
	}{
		{name: "issue by key", resource: ResourceIssue, args: map[string]any{"issueKey": "TWO-3", "summary": "s"}, want: 2},
		{name: "issue by id", resource: ResourceIssue, args: map[string]any{"issueId": float64(42)}, want: 2},
		{name: "issue missing", resource: ResourceIssue, args: map[string]any{}, wantStatus: http.StatusBadRequest},
		{name: "issue not found", resource: ResourceIssue, args: map[string]any{"issueKey": "NOPE-1"}, wantStatus: http.StatusNotFound},
		{name: "wiki", resource: ResourceWiki, args: map[string]any{"wikiId": 9, "name": "n"}, want: 5},
		{name: "wiki missing", resource: ResourceWiki, args: map[string]any{"wikiId": 0}, wantStatus: http.StatusBadRequest},
		{name: "unknown resource", resource: "document", args: map[string]any{}, wantStatus: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := runner.ResourceProjectID(context.Background(), tc.resource, tc.args)
			if tc.wantStatus != 0 {
				var toolErr *ToolError
				require.ErrorAs(t, err, &toolErr)
				require.Equal(t, tc.wantStatus, toolErr.StatusCode())
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
