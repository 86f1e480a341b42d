package tools

import (
	"context"
	"strings"

	"git.cscs.ch/openchami/backlog-mcp/internal/backlog"
)

func (r *Runner) addPullRequest(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		projectRef
		RepoID         *int   `json:"repoId,omitempty"`
		RepoName       string `json:"repoName,omitempty"`
		Summary        string `json:"summary"`
		Description    string `json:"description"`
		Base           string `json:"base"`
		Branch         string `json:"branch"`
		IssueID        int    `json:"issueId,omitempty"`
		AssigneeID     int    `json:"assigneeId,omitempty"`
		NotifiedUserID []int  `json:"notifiedUserId,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	project, err := req.resolve()
	if err != nil {
		return nil, err
	}
	repo, err := resolveIDOrKey("repo", req.RepoID, req.RepoName)
	if err != nil {
		return nil, validationErrorf("repoId or repoName is required")
	}
	for _, field := range []struct{ name, value string }{
		{"summary", req.Summary},
		{"description", req.Description},
		{"base", req.Base},
		{"branch", req.Branch},
	} {
		if strings.TrimSpace(field.value) == "" {
			return nil, validationErrorf("%s is required", field.name)
		}
	}

	pr, err := r.backlog.AddPullRequest(ctx, project, repo, backlog.PullRequestRequest{
		Summary:         req.Summary,
		Description:     req.Description,
		Base:            req.Base,
		Branch:          req.Branch,
		IssueID:         req.IssueID,
		AssigneeID:      req.AssigneeID,
		NotifiedUserIDs: req.NotifiedUserID,
	})
	if err != nil {
		return nil, mapExecutionError(err, "creating pull request")
	}
	return toMap(pr)
}
