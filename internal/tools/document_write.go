package tools

import (
	"context"

	"git.cscs.ch/openchami/backlog-mcp/internal/backlog"
)

func (r *Runner) addDocument(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		projectRef
		Title    string `json:"title,omitempty"`
		Content  string `json:"content,omitempty"`
		Emoji    string `json:"emoji,omitempty"`
		ParentID string `json:"parentId,omitempty"`
		AddLast  *bool  `json:"addLast,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	projectID, err := r.projectID(ctx, req.projectRef)
	if err != nil {
		return nil, err
	}

	document, err := r.backlog.AddDocument(ctx, backlog.DocumentRequest{
		ProjectID: projectID,
		Title:     req.Title,
		Content:   req.Content,
		Emoji:     req.Emoji,
		ParentID:  req.ParentID,
		AddLast:   req.AddLast,
	})
	if err != nil {
		return nil, mapExecutionError(err, "creating document")
	}
	return toMap(document)
}
