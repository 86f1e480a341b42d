package tools

import (
	"context"
	"strings"

	"git.cscs.ch/openchami/backlog-mcp/internal/backlog"
)

func (r *Runner) addWiki(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		projectRef
		Name       string `json:"name"`
		Content    string `json:"content"`
		MailNotify *bool  `json:"mailNotify,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	projectID, err := r.projectID(ctx, req.projectRef)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, validationErrorf("name is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, validationErrorf("content is required")
	}

	wiki, err := r.backlog.AddWiki(ctx, backlog.WikiRequest{
		ProjectID:  projectID,
		Name:       req.Name,
		Content:    req.Content,
		MailNotify: req.MailNotify,
	})
	if err != nil {
		return nil, mapExecutionError(err, "creating wiki")
	}
	return toMap(wiki)
}

func (r *Runner) updateWiki(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		projectRef
		WikiID     int    `json:"wikiId"`
		Name       string `json:"name,omitempty"`
		Content    string `json:"content,omitempty"`
		MailNotify *bool  `json:"mailNotify,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	if req.WikiID <= 0 {
		return nil, validationErrorf("wikiId is required")
	}
	if strings.TrimSpace(req.Name) == "" && strings.TrimSpace(req.Content) == "" {
		return nil, validationErrorf("at least one of name or content is required")
	}

	wiki, err := r.backlog.UpdateWiki(ctx, req.WikiID, backlog.WikiRequest{
		Name:       req.Name,
		Content:    req.Content,
		MailNotify: req.MailNotify,
	})
	if err != nil {
		return nil, mapExecutionError(err, "updating wiki")
	}
	return toMap(wiki)
}
