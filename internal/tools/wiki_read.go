package tools

import (
	"context"

	"git.cscs.ch/openchami/backlog-mcp/internal/backlog"
)

func (r *Runner) getWikiPages(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		projectRef
		Keyword string `json:"keyword,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	idOrKey, err := req.resolve()
	if err != nil {
		return nil, err
	}
	wikis, err := r.backlog.GetWikis(ctx, backlog.WikiListOptions{
		ProjectIDOrKey: idOrKey,
		Keyword:        req.Keyword,
	})
	if err != nil {
		return nil, mapExecutionError(err, "listing wiki pages")
	}
	return listResult(wikis)
}

func (r *Runner) getWiki(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		WikiID int `json:"wikiId"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	if req.WikiID <= 0 {
		return nil, validationErrorf("wikiId is required")
	}
	wiki, err := r.backlog.GetWiki(ctx, req.WikiID)
	if err != nil {
		return nil, mapExecutionError(err, "getting wiki")
	}
	return toMap(wiki)
}
