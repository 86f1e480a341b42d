package backlog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// IssueListOptions configures GET /issues and GET /issues/count.
type IssueListOptions struct {
	ProjectIDs     []int
	IssueTypeIDs   []int
	CategoryIDs    []int
	VersionIDs     []int
	MilestoneIDs   []int
	StatusIDs      []int
	PriorityIDs    []int
	AssigneeIDs    []int
	CreatedUserIDs []int
	ResolutionIDs  []int
	ParentIssueIDs []int
	ParentChild    int
	Keyword        string
	CreatedSince   string
	CreatedUntil   string
	UpdatedSince   string
	UpdatedUntil   string
	StartDateSince string
	StartDateUntil string
	DueDateSince   string
	DueDateUntil   string
	Sort           string
	Order          string
	Offset         int
	Count          int
	// CustomFields holds pre-encoded customField_* filters.
	CustomFields url.Values
}

func (o IssueListOptions) values(paged bool) url.Values {
	query := url.Values{}
	addInts(query, "projectId[]", o.ProjectIDs)
	addInts(query, "issueTypeId[]", o.IssueTypeIDs)
	addInts(query, "categoryId[]", o.CategoryIDs)
	addInts(query, "versionId[]", o.VersionIDs)
	addInts(query, "milestoneId[]", o.MilestoneIDs)
	addInts(query, "statusId[]", o.StatusIDs)
	addInts(query, "priorityId[]", o.PriorityIDs)
	addInts(query, "assigneeId[]", o.AssigneeIDs)
	addInts(query, "createdUserId[]", o.CreatedUserIDs)
	addInts(query, "resolutionId[]", o.ResolutionIDs)
	addInts(query, "parentIssueId[]", o.ParentIssueIDs)
	setInt(query, "parentChild", o.ParentChild)
	setString(query, "keyword", o.Keyword)
	setString(query, "createdSince", o.CreatedSince)
	setString(query, "createdUntil", o.CreatedUntil)
	setString(query, "updatedSince", o.UpdatedSince)
	setString(query, "updatedUntil", o.UpdatedUntil)
	setString(query, "startDateSince", o.StartDateSince)
	setString(query, "startDateUntil", o.StartDateUntil)
	setString(query, "dueDateSince", o.DueDateSince)
	setString(query, "dueDateUntil", o.DueDateUntil)
	if paged {
		setString(query, "sort", o.Sort)
		setString(query, "order", o.Order)
		setInt(query, "offset", o.Offset)
		setInt(query, "count", o.Count)
	}
	mergeValues(query, o.CustomFields)
	return query
}

// IssueRequest is the form body for creating or updating an issue. Zero
// values are omitted, so an update only touches the fields that are set.
type IssueRequest struct {
	ProjectID       int
	Summary         string
	Description     string
	IssueTypeID     int
	PriorityID      int
	StatusID        int
	ResolutionID    int
	ParentIssueID   int
	AssigneeID      int
	StartDate       string
	DueDate         string
	EstimatedHours  *float64
	ActualHours     *float64
	CategoryIDs     []int
	VersionIDs      []int
	MilestoneIDs    []int
	NotifiedUserIDs []int
	AttachmentIDs   []int
	Comment         string
	// CustomFields holds pre-encoded customField_* values.
	CustomFields url.Values
}

func (r IssueRequest) values() url.Values {
	form := url.Values{}
	setInt(form, "projectId", r.ProjectID)
	setString(form, "summary", r.Summary)
	setString(form, "description", r.Description)
	setInt(form, "issueTypeId", r.IssueTypeID)
	setInt(form, "priorityId", r.PriorityID)
	setInt(form, "statusId", r.StatusID)
	setInt(form, "resolutionId", r.ResolutionID)
	setInt(form, "parentIssueId", r.ParentIssueID)
	setInt(form, "assigneeId", r.AssigneeID)
	setString(form, "startDate", r.StartDate)
	setString(form, "dueDate", r.DueDate)
	setFloat(form, "estimatedHours", r.EstimatedHours)
	setFloat(form, "actualHours", r.ActualHours)
	addInts(form, "categoryId[]", r.CategoryIDs)
	addInts(form, "versionId[]", r.VersionIDs)
	addInts(form, "milestoneId[]", r.MilestoneIDs)
	addInts(form, "notifiedUserId[]", r.NotifiedUserIDs)
	addInts(form, "attachmentId[]", r.AttachmentIDs)
	setString(form, "comment", r.Comment)
	mergeValues(form, r.CustomFields)
	return form
}

// WatchingListOptions configures GET /users/:id/watchings.
type WatchingListOptions struct {
	Order               string
	Sort                string
	Count               int
	Offset              int
	ResourceAlreadyRead *bool
	IssueIDs            []int
}

func (o WatchingListOptions) values(paged bool) url.Values {
	query := url.Values{}
	setBool(query, "resourceAlreadyRead", o.ResourceAlreadyRead)
	if paged {
		setString(query, "order", o.Order)
		setString(query, "sort", o.Sort)
		setInt(query, "count", o.Count)
		setInt(query, "offset", o.Offset)
		addInts(query, "issueId[]", o.IssueIDs)
	}
	return query
}

// PullRequestRequest is the form body for creating a pull request.
type PullRequestRequest struct {
	Summary         string
	Description     string
	Base            string
	Branch          string
	IssueID         int
	AssigneeID      int
	NotifiedUserIDs []int
}

// GetIssues lists issues.
func (c *Client) GetIssues(ctx context.Context, opts IssueListOptions) ([]Issue, error) {
	var result []Issue
	if err := c.get(ctx, "/issues", opts.values(true), &result); err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	return result, nil
}

// CountIssues counts issues matching the filters.
func (c *Client) CountIssues(ctx context.Context, opts IssueListOptions) (*Count, error) {
	var result Count
	if err := c.get(ctx, "/issues/count", opts.values(false), &result); err != nil {
		return nil, fmt.Errorf("counting issues: %w", err)
	}
	return &result, nil
}

// GetIssue returns one issue by numeric ID or key.
func (c *Client) GetIssue(ctx context.Context, issueIDOrKey string) (*Issue, error) {
	idOrKey := strings.TrimSpace(issueIDOrKey)
	if idOrKey == "" {
		return nil, fmt.Errorf("issue id or key is required")
	}
	var result Issue
	if err := c.get(ctx, "/issues/"+escapePath(idOrKey), nil, &result); err != nil {
		return nil, fmt.Errorf("getting issue %q: %w", idOrKey, err)
	}
	return &result, nil
}

// AddIssue creates an issue.
func (c *Client) AddIssue(ctx context.Context, req IssueRequest) (*Issue, error) {
	if req.ProjectID == 0 {
		return nil, fmt.Errorf("project id is required")
	}
	var result Issue
	if err := c.post(ctx, "/issues", req.values(), &result); err != nil {
		return nil, fmt.Errorf("creating issue: %w", err)
	}
	return &result, nil
}

// UpdateIssue patches an issue.
func (c *Client) UpdateIssue(ctx context.Context, issueIDOrKey string, req IssueRequest) (*Issue, error) {
	var result Issue
	if err := c.patch(ctx, "/issues/"+escapePath(issueIDOrKey), req.values(), &result); err != nil {
		return nil, fmt.Errorf("updating issue %q: %w", strings.TrimSpace(issueIDOrKey), err)
	}
	return &result, nil
}

// DeleteIssue deletes an issue and returns it.
func (c *Client) DeleteIssue(ctx context.Context, issueIDOrKey string) (*Issue, error) {
	var result Issue
	if err := c.delete(ctx, "/issues/"+escapePath(issueIDOrKey), &result); err != nil {
		return nil, fmt.Errorf("deleting issue %q: %w", strings.TrimSpace(issueIDOrKey), err)
	}
	return &result, nil
}

// GetWatchingListItems lists the issues a user watches.
func (c *Client) GetWatchingListItems(ctx context.Context, userID int, opts WatchingListOptions) ([]WatchingListItem, error) {
	var result []WatchingListItem
	path := fmt.Sprintf("/users/%d/watchings", userID)
	if err := c.get(ctx, path, opts.values(true), &result); err != nil {
		return nil, fmt.Errorf("listing watchings: %w", err)
	}
	return result, nil
}

// GetWatchingListCount counts the issues a user watches.
func (c *Client) GetWatchingListCount(ctx context.Context, userID int, opts WatchingListOptions) (*Count, error) {
	var result Count
	path := fmt.Sprintf("/users/%d/watchings/count", userID)
	if err := c.get(ctx, path, opts.values(false), &result); err != nil {
		return nil, fmt.Errorf("counting watchings: %w", err)
	}
	return &result, nil
}

// AddWatching starts watching an issue.
func (c *Client) AddWatching(ctx context.Context, issueIDOrKey, note string) (*WatchingListItem, error) {
	form := url.Values{}
	form.Set("issueIdOrKey", strings.TrimSpace(issueIDOrKey))
	setString(form, "note", note)
	var result WatchingListItem
	if err := c.post(ctx, "/watchings", form, &result); err != nil {
		return nil, fmt.Errorf("adding watching: %w", err)
	}
	return &result, nil
}

// UpdateWatching replaces the note of a watch.
func (c *Client) UpdateWatching(ctx context.Context, watchID int, note string) (*WatchingListItem, error) {
	form := url.Values{}
	form.Set("note", note)
	var result WatchingListItem
	if err := c.patch(ctx, "/watchings/"+strconv.Itoa(watchID), form, &result); err != nil {
		return nil, fmt.Errorf("updating watching %d: %w", watchID, err)
	}
	return &result, nil
}

// DeleteWatching stops watching and returns the removed watch.
func (c *Client) DeleteWatching(ctx context.Context, watchID int) (*WatchingListItem, error) {
	var result WatchingListItem
	if err := c.delete(ctx, "/watchings/"+strconv.Itoa(watchID), &result); err != nil {
		return nil, fmt.Errorf("deleting watching %d: %w", watchID, err)
	}
	return &result, nil
}

// MarkWatchingAsRead marks a watch as read.
func (c *Client) MarkWatchingAsRead(ctx context.Context, watchID int) error {
	if err := c.post(ctx, fmt.Sprintf("/watchings/%d/markAsRead", watchID), url.Values{}, nil); err != nil {
		return fmt.Errorf("marking watching %d as read: %w", watchID, err)
	}
	return nil
}

// AddPullRequest opens a pull request in a Git repository of a project.
func (c *Client) AddPullRequest(ctx context.Context, projectIDOrKey, repoIDOrName string, req PullRequestRequest) (*PullRequest, error) {
	form := url.Values{}
	setString(form, "summary", req.Summary)
	setString(form, "description", req.Description)
	setString(form, "base", req.Base)
	setString(form, "branch", req.Branch)
	setInt(form, "issueId", req.IssueID)
	setInt(form, "assigneeId", req.AssigneeID)
	addInts(form, "notifiedUserId[]", req.NotifiedUserIDs)

	var result PullRequest
	path := fmt.Sprintf("/projects/%s/git/repositories/%s/pullRequests", escapePath(projectIDOrKey), escapePath(repoIDOrName))
	if err := c.post(ctx, path, form, &result); err != nil {
		return nil, fmt.Errorf("creating pull request: %w", err)
	}
	return &result, nil
}
