// Package tools provides MCP tool execution backed by the Backlog REST client.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"git.cscs.ch/openchami/backlog-mcp/internal/backlog"
	"git.cscs.ch/openchami/backlog-mcp/internal/guard"
)

// Runner executes MCP tool calls.
type Runner struct {
	backlog BacklogClient
}

// BacklogClient is the subset of the Backlog API the tools use.
type BacklogClient interface {
	GetSpace(ctx context.Context) (*backlog.Space, error)
	GetMyself(ctx context.Context) (*backlog.User, error)

	GetProjects(ctx context.Context, opts backlog.ProjectListOptions) ([]backlog.Project, error)
	GetProject(ctx context.Context, projectIDOrKey string) (*backlog.Project, error)
	GetCustomFields(ctx context.Context, projectIDOrKey string) ([]backlog.CustomField, error)

	GetIssues(ctx context.Context, opts backlog.IssueListOptions) ([]backlog.Issue, error)
	CountIssues(ctx context.Context, opts backlog.IssueListOptions) (*backlog.Count, error)
	GetIssue(ctx context.Context, issueIDOrKey string) (*backlog.Issue, error)
	AddIssue(ctx context.Context, req backlog.IssueRequest) (*backlog.Issue, error)
	UpdateIssue(ctx context.Context, issueIDOrKey string, req backlog.IssueRequest) (*backlog.Issue, error)
	DeleteIssue(ctx context.Context, issueIDOrKey string) (*backlog.Issue, error)

	GetVersions(ctx context.Context, projectIDOrKey string) ([]backlog.Version, error)
	AddVersion(ctx context.Context, projectIDOrKey string, req backlog.VersionRequest) (*backlog.Version, error)
	UpdateVersion(ctx context.Context, projectIDOrKey string, versionID int, req backlog.VersionRequest) (*backlog.Version, error)
	DeleteVersion(ctx context.Context, projectIDOrKey string, versionID int) (*backlog.Version, error)

	GetDocuments(ctx context.Context, opts backlog.DocumentListOptions) ([]backlog.Document, error)
	GetDocument(ctx context.Context, documentID string) (*backlog.Document, error)
	GetDocumentTree(ctx context.Context, projectIDOrKey string) (*backlog.DocumentTree, error)
	AddDocument(ctx context.Context, req backlog.DocumentRequest) (*backlog.Document, error)

	GetWikis(ctx context.Context, opts backlog.WikiListOptions) ([]backlog.Wiki, error)
	GetWiki(ctx context.Context, wikiID int) (*backlog.Wiki, error)
	AddWiki(ctx context.Context, req backlog.WikiRequest) (*backlog.Wiki, error)
	UpdateWiki(ctx context.Context, wikiID int, req backlog.WikiRequest) (*backlog.Wiki, error)

	GetWatchingListItems(ctx context.Context, userID int, opts backlog.WatchingListOptions) ([]backlog.WatchingListItem, error)
	GetWatchingListCount(ctx context.Context, userID int, opts backlog.WatchingListOptions) (*backlog.Count, error)
	AddWatching(ctx context.Context, issueIDOrKey, note string) (*backlog.WatchingListItem, error)
	UpdateWatching(ctx context.Context, watchID int, note string) (*backlog.WatchingListItem, error)
	DeleteWatching(ctx context.Context, watchID int) (*backlog.WatchingListItem, error)
	MarkWatchingAsRead(ctx context.Context, watchID int) error

	AddPullRequest(ctx context.Context, projectIDOrKey, repoIDOrName string, req backlog.PullRequestRequest) (*backlog.PullRequest, error)
}

// ToolError carries an HTTP-style status code and message for tool failures.
type ToolError struct {
	statusCode int
	message    string
}

// Error implements error.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.message)
}

// StatusCode returns the attached status code.
func (e *ToolError) StatusCode() int {
	if e == nil || e.statusCode == 0 {
		return http.StatusInternalServerError
	}
	return e.statusCode
}

// NewRunner creates a tool runner backed by a Backlog client.
func NewRunner(client BacklogClient) *Runner {
	return &Runner{backlog: client}
}

// Call executes one tool by name and returns JSON-like map content.
func (r *Runner) Call(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	switch strings.TrimSpace(name) {
	case "get_space":
		return r.getSpace(ctx, args)
	case "get_myself":
		return r.getMyself(ctx, args)

	case "get_projects":
		return r.getProjects(ctx, args)
	case "get_project":
		return r.getProject(ctx, args)
	case "get_custom_fields":
		return r.getCustomFields(ctx, args)

	case "get_issues":
		return r.getIssues(ctx, args)
	case "count_issues":
		return r.countIssues(ctx, args)
	case "get_issue":
		return r.getIssue(ctx, args)
	case "add_issue":
		return r.addIssue(ctx, args)
	case "update_issue":
		return r.updateIssue(ctx, args)
	case "delete_issue":
		return r.deleteIssue(ctx, args)

	case "get_version_milestone_list":
		return r.getVersionMilestoneList(ctx, args)
	case "add_version_milestone":
		return r.addVersionMilestone(ctx, args)
	case "update_version_milestone":
		return r.updateVersionMilestone(ctx, args)
	case "delete_version":
		return r.deleteVersion(ctx, args)

	case "get_documents":
		return r.getDocuments(ctx, args)
	case "get_document":
		return r.getDocument(ctx, args)
	case "get_document_tree":
		return r.getDocumentTree(ctx, args)
	case "add_document":
		return r.addDocument(ctx, args)

	case "get_wiki_pages":
		return r.getWikiPages(ctx, args)
	case "get_wiki":
		return r.getWiki(ctx, args)
	case "add_wiki":
		return r.addWiki(ctx, args)
	case "update_wiki":
		return r.updateWiki(ctx, args)

	case "get_watching_list_items":
		return r.getWatchingListItems(ctx, args)
	case "get_watching_list_count":
		return r.getWatchingListCount(ctx, args)
	case "add_watching":
		return r.addWatching(ctx, args)
	case "update_watching":
		return r.updateWatching(ctx, args)
	case "delete_watching":
		return r.deleteWatching(ctx, args)
	case "mark_watching_as_read":
		return r.markWatchingAsRead(ctx, args)

	case "add_pull_request":
		return r.addPullRequest(ctx, args)

	default:
		return nil, validationErrorf("tool %s is not implemented", strings.TrimSpace(name))
	}
}

// Ping checks that the Backlog space is reachable with the configured key.
func (r *Runner) Ping(ctx context.Context) error {
	if _, err := r.backlog.GetSpace(ctx); err != nil {
		return mapExecutionError(err, "reaching Backlog space")
	}
	return nil
}

func validationErrorf(format string, args ...any) error {
	return &ToolError{
		statusCode: http.StatusBadRequest,
		message:    fmt.Sprintf(format, args...),
	}
}

func mapExecutionError(err error, fallback string) error {
	if err == nil {
		return nil
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}
	var forbidden *guard.ForbiddenError
	if errors.As(err, &forbidden) {
		return forbidden
	}
	if errors.Is(err, guard.ErrProjectNotSpecified) {
		return &ToolError{
			statusCode: http.StatusBadRequest,
			message:    "Project must be specified",
		}
	}
	var apiErr *backlog.APIError
	if errors.As(err, &apiErr) {
		detail := strings.TrimSpace(apiErr.Error())
		if detail == "" {
			detail = fallback
		}
		return &ToolError{
			statusCode: apiErr.StatusCode,
			message:    detail,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ToolError{
			statusCode: http.StatusGatewayTimeout,
			message:    fallback + ": request timed out",
		}
	}
	if errors.Is(err, context.Canceled) {
		return &ToolError{
			statusCode: http.StatusRequestTimeout,
			message:    fallback + ": request canceled",
		}
	}
	return &ToolError{
		statusCode: http.StatusInternalServerError,
		message:    fmt.Sprintf("%s: %v", fallback, err),
	}
}

// MapError converts any failure into a transport-ready error. Project access
// rejections keep their code and data.
func MapError(err error) error {
	return mapExecutionError(err, "executing tool")
}

func decodeArgsStrict(args map[string]any, out any) error {
	if args == nil {
		args = map[string]any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return validationErrorf("invalid tool arguments: %v", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return validationErrorf("invalid tool arguments: %v", err)
	}
	if decoder.More() {
		return validationErrorf("tool arguments must be a single JSON object")
	}
	return nil
}

func toMap(v any) (map[string]any, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding tool response: %w", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil, fmt.Errorf("decoding tool response: %w", err)
	}
	return decoded, nil
}

func listResult[T any](items []T) (map[string]any, error) {
	if items == nil {
		items = []T{}
	}
	return toMap(map[string]any{
		"items": items,
		"count": len(items),
	})
}

// resolveIDOrKey picks the identifier for a resource addressed by either a
// numeric ID or a key. The ID wins when both are given.
func resolveIDOrKey(kind string, id *int, key string) (string, error) {
	if id != nil && *id != 0 {
		return strconv.Itoa(*id), nil
	}
	if trimmed := strings.TrimSpace(key); trimmed != "" {
		return trimmed, nil
	}
	return "", validationErrorf("%sId or %sKey is required", kind, kind)
}

// projectRef is how project-scoped tools address their project. projectIds
// is accepted so a guarded call can carry its candidate list.
type projectRef struct {
	ProjectID  *int   `json:"projectId,omitempty"`
	ProjectKey string `json:"projectKey,omitempty"`
	ProjectIDs []int  `json:"projectIds,omitempty"`
}

func (p projectRef) resolve() (string, error) {
	if (p.ProjectID == nil || *p.ProjectID == 0) && strings.TrimSpace(p.ProjectKey) == "" && len(p.ProjectIDs) > 0 {
		first := p.ProjectIDs[0]
		return resolveIDOrKey("project", &first, "")
	}
	return resolveIDOrKey("project", p.ProjectID, p.ProjectKey)
}

// projectID returns the numeric project ID, looking keys up in Backlog.
func (r *Runner) projectID(ctx context.Context, p projectRef) (int, error) {
	idOrKey, err := p.resolve()
	if err != nil {
		return 0, err
	}
	if id, convErr := strconv.Atoi(idOrKey); convErr == nil {
		return id, nil
	}
	project, err := r.backlog.GetProject(ctx, idOrKey)
	if err != nil {
		return 0, mapExecutionError(err, "resolving project "+idOrKey)
	}
	return project.ID, nil
}

// idList accepts a single number or an array of numbers.
type idList []int

func (l *idList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var ids []int
		if err := json.Unmarshal(trimmed, &ids); err != nil {
			return err
		}
		*l = ids
		return nil
	}
	var id int
	if err := json.Unmarshal(trimmed, &id); err != nil {
		return err
	}
	*l = idList{id}
	return nil
}
