package tools

import (
	"context"
	"encoding/json"
)

// Resources whose owning project can be looked up before a write.
const (
	ResourceIssue = "issue"
	ResourceWiki  = "wiki"
)

// ResourceProjectID returns the project that owns the issue or wiki page a
// call addresses. Arguments are read leniently; the tool itself still
// decodes them strictly.
func (r *Runner) ResourceProjectID(ctx context.Context, resource string, args map[string]any) (int, error) {
	switch resource {
	case ResourceIssue:
		var ref struct {
			IssueID  *int   `json:"issueId,omitempty"`
			IssueKey string `json:"issueKey,omitempty"`
		}
		if err := decodeArgsLenient(args, &ref); err != nil {
			return 0, err
		}
		idOrKey, err := resolveIDOrKey("issue", ref.IssueID, ref.IssueKey)
		if err != nil {
			return 0, err
		}
		issue, err := r.backlog.GetIssue(ctx, idOrKey)
		if err != nil {
			return 0, mapExecutionError(err, "resolving project of issue "+idOrKey)
		}
		return issue.ProjectID, nil

	case ResourceWiki:
		var ref struct {
			WikiID int `json:"wikiId"`
		}
		if err := decodeArgsLenient(args, &ref); err != nil {
			return 0, err
		}
		if ref.WikiID <= 0 {
			return 0, validationErrorf("wikiId is required")
		}
		wiki, err := r.backlog.GetWiki(ctx, ref.WikiID)
		if err != nil {
			return 0, mapExecutionError(err, "resolving project of wiki page")
		}
		return wiki.ProjectID, nil

	default:
		return 0, validationErrorf("unknown resource %q", resource)
	}
}

func decodeArgsLenient(args map[string]any, out any) error {
	encoded, err := json.Marshal(args)
	if err != nil {
		return validationErrorf("invalid tool arguments: %v", err)
	}
	if err := json.Unmarshal(encoded, out); err != nil {
		return validationErrorf("invalid tool arguments: %v", err)
	}
	return nil
}
