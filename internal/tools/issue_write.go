package tools

import (
	"context"
	"strings"

	"git.cscs.ch/openchami/backlog-mcp/internal/backlog"
)

type issueFieldArgs struct {
	Summary        string                     `json:"summary,omitempty"`
	Description    string                     `json:"description,omitempty"`
	IssueTypeID    int                        `json:"issueTypeId,omitempty"`
	PriorityID     int                        `json:"priorityId,omitempty"`
	ParentIssueID  int                        `json:"parentIssueId,omitempty"`
	AssigneeID     int                        `json:"assigneeId,omitempty"`
	StartDate      string                     `json:"startDate,omitempty"`
	DueDate        string                     `json:"dueDate,omitempty"`
	EstimatedHours *float64                   `json:"estimatedHours,omitempty"`
	ActualHours    *float64                   `json:"actualHours,omitempty"`
	CategoryID     []int                      `json:"categoryId,omitempty"`
	VersionID      []int                      `json:"versionId,omitempty"`
	MilestoneID    []int                      `json:"milestoneId,omitempty"`
	NotifiedUserID []int                      `json:"notifiedUserId,omitempty"`
	AttachmentID   []int                      `json:"attachmentId,omitempty"`
	CustomFields   []backlog.CustomFieldValue `json:"customFields,omitempty"`
}

func (a issueFieldArgs) request() (backlog.IssueRequest, error) {
	customFields, err := backlog.EncodeCustomFieldValues(a.CustomFields)
	if err != nil {
		return backlog.IssueRequest{}, validationErrorf("%v", err)
	}
	return backlog.IssueRequest{
		Summary:         a.Summary,
		Description:     a.Description,
		IssueTypeID:     a.IssueTypeID,
		PriorityID:      a.PriorityID,
		ParentIssueID:   a.ParentIssueID,
		AssigneeID:      a.AssigneeID,
		StartDate:       a.StartDate,
		DueDate:         a.DueDate,
		EstimatedHours:  a.EstimatedHours,
		ActualHours:     a.ActualHours,
		CategoryIDs:     a.CategoryID,
		VersionIDs:      a.VersionID,
		MilestoneIDs:    a.MilestoneID,
		NotifiedUserIDs: a.NotifiedUserID,
		AttachmentIDs:   a.AttachmentID,
		CustomFields:    customFields,
	}, nil
}

func (r *Runner) addIssue(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		projectRef
		issueFieldArgs
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	projectID, err := r.projectID(ctx, req.projectRef)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Summary) == "" {
		return nil, validationErrorf("summary is required")
	}
	if req.IssueTypeID == 0 || req.PriorityID == 0 {
		return nil, validationErrorf("issueTypeId and priorityId are required")
	}

	body, err := req.request()
	if err != nil {
		return nil, err
	}
	body.ProjectID = projectID

	issue, err := r.backlog.AddIssue(ctx, body)
	if err != nil {
		return nil, mapExecutionError(err, "creating issue")
	}
	return toMap(issue)
}

func (r *Runner) updateIssue(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		// The write guard may inject a project; it does not pick the issue.
		projectRef
		IssueID      *int   `json:"issueId,omitempty"`
		IssueKey     string `json:"issueKey,omitempty"`
		StatusID     int    `json:"statusId,omitempty"`
		ResolutionID int    `json:"resolutionId,omitempty"`
		Comment      string `json:"comment,omitempty"`
		issueFieldArgs
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	idOrKey, err := resolveIDOrKey("issue", req.IssueID, req.IssueKey)
	if err != nil {
		return nil, err
	}

	body, err := req.request()
	if err != nil {
		return nil, err
	}
	body.StatusID = req.StatusID
	body.ResolutionID = req.ResolutionID
	body.Comment = req.Comment

	issue, err := r.backlog.UpdateIssue(ctx, idOrKey, body)
	if err != nil {
		return nil, mapExecutionError(err, "updating issue")
	}
	return toMap(issue)
}

func (r *Runner) deleteIssue(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		projectRef
		IssueID  *int   `json:"issueId,omitempty"`
		IssueKey string `json:"issueKey,omitempty"`
		Confirm  *bool  `json:"confirm,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	idOrKey, err := resolveIDOrKey("issue", req.IssueID, req.IssueKey)
	if err != nil {
		return nil, err
	}
	issue, err := r.backlog.DeleteIssue(ctx, idOrKey)
	if err != nil {
		return nil, mapExecutionError(err, "deleting issue")
	}
	return toMap(issue)
}
