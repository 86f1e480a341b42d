package tools

import (
	"context"
	"strings"

	"git.cscs.ch/openchami/backlog-mcp/internal/backlog"
)

type issueFilterArgs struct {
	ProjectID      idList                      `json:"projectId,omitempty"`
	ProjectIDs     []int                       `json:"projectIds,omitempty"`
	IssueTypeID    []int                       `json:"issueTypeId,omitempty"`
	CategoryID     []int                       `json:"categoryId,omitempty"`
	VersionID      []int                       `json:"versionId,omitempty"`
	MilestoneID    []int                       `json:"milestoneId,omitempty"`
	StatusID       []int                       `json:"statusId,omitempty"`
	PriorityID     []int                       `json:"priorityId,omitempty"`
	AssigneeID     []int                       `json:"assigneeId,omitempty"`
	CreatedUserID  []int                       `json:"createdUserId,omitempty"`
	ResolutionID   []int                       `json:"resolutionId,omitempty"`
	ParentIssueID  []int                       `json:"parentIssueId,omitempty"`
	ParentChild    int                         `json:"parentChild,omitempty"`
	Keyword        string                      `json:"keyword,omitempty"`
	CreatedSince   string                      `json:"createdSince,omitempty"`
	CreatedUntil   string                      `json:"createdUntil,omitempty"`
	UpdatedSince   string                      `json:"updatedSince,omitempty"`
	UpdatedUntil   string                      `json:"updatedUntil,omitempty"`
	StartDateSince string                      `json:"startDateSince,omitempty"`
	StartDateUntil string                      `json:"startDateUntil,omitempty"`
	DueDateSince   string                      `json:"dueDateSince,omitempty"`
	DueDateUntil   string                      `json:"dueDateUntil,omitempty"`
	CustomFields   []backlog.CustomFieldFilter `json:"customFields,omitempty"`
}

func (a issueFilterArgs) options() (backlog.IssueListOptions, error) {
	if a.ParentChild < 0 || a.ParentChild > 4 {
		return backlog.IssueListOptions{}, validationErrorf("parentChild must be between 0 and 4")
	}
	customFields, err := backlog.EncodeCustomFieldFilters(a.CustomFields)
	if err != nil {
		return backlog.IssueListOptions{}, validationErrorf("%v", err)
	}
	projectIDs := append([]int{}, a.ProjectID...)
	if len(projectIDs) == 0 {
		projectIDs = append(projectIDs, a.ProjectIDs...)
	}
	return backlog.IssueListOptions{
		ProjectIDs:     projectIDs,
		IssueTypeIDs:   a.IssueTypeID,
		CategoryIDs:    a.CategoryID,
		VersionIDs:     a.VersionID,
		MilestoneIDs:   a.MilestoneID,
		StatusIDs:      a.StatusID,
		PriorityIDs:    a.PriorityID,
		AssigneeIDs:    a.AssigneeID,
		CreatedUserIDs: a.CreatedUserID,
		ResolutionIDs:  a.ResolutionID,
		ParentIssueIDs: a.ParentIssueID,
		ParentChild:    a.ParentChild,
		Keyword:        a.Keyword,
		CreatedSince:   a.CreatedSince,
		CreatedUntil:   a.CreatedUntil,
		UpdatedSince:   a.UpdatedSince,
		UpdatedUntil:   a.UpdatedUntil,
		StartDateSince: a.StartDateSince,
		StartDateUntil: a.StartDateUntil,
		DueDateSince:   a.DueDateSince,
		DueDateUntil:   a.DueDateUntil,
		CustomFields:   customFields,
	}, nil
}

func (r *Runner) getIssues(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		issueFilterArgs
		Sort   string `json:"sort,omitempty"`
		Order  string `json:"order,omitempty"`
		Offset int    `json:"offset,omitempty"`
		Count  int    `json:"count,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	if req.Offset < 0 || req.Count < 0 || req.Count > 100 {
		return nil, validationErrorf("offset must be >= 0 and count between 0 and 100")
	}
	if order := strings.TrimSpace(req.Order); order != "" && order != "asc" && order != "desc" {
		return nil, validationErrorf("order must be asc or desc")
	}

	opts, err := req.options()
	if err != nil {
		return nil, err
	}
	opts.Sort = req.Sort
	opts.Order = req.Order
	opts.Offset = req.Offset
	opts.Count = req.Count

	issues, err := r.backlog.GetIssues(ctx, opts)
	if err != nil {
		return nil, mapExecutionError(err, "listing issues")
	}
	return listResult(issues)
}

func (r *Runner) countIssues(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req issueFilterArgs
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	opts, err := req.options()
	if err != nil {
		return nil, err
	}
	count, err := r.backlog.CountIssues(ctx, opts)
	if err != nil {
		return nil, mapExecutionError(err, "counting issues")
	}
	return toMap(count)
}

func (r *Runner) getIssue(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		IssueID  *int   `json:"issueId,omitempty"`
		IssueKey string `json:"issueKey,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	idOrKey, err := resolveIDOrKey("issue", req.IssueID, req.IssueKey)
	if err != nil {
		return nil, err
	}
	issue, err := r.backlog.GetIssue(ctx, idOrKey)
	if err != nil {
		return nil, mapExecutionError(err, "getting issue")
	}
	return toMap(issue)
}
