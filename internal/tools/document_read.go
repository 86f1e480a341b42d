package tools

import (
	"context"
	"strings"

	"git.cscs.ch/openchami/backlog-mcp/internal/backlog"
)

func (r *Runner) getDocuments(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		ProjectIDs idList `json:"projectIds"`
		Keyword    string `json:"keyword,omitempty"`
		Sort       string `json:"sort,omitempty"`
		Order      string `json:"order,omitempty"`
		Offset     int    `json:"offset,omitempty"`
		Count      int    `json:"count,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	if len(req.ProjectIDs) == 0 {
		return nil, validationErrorf("projectIds must contain at least one project id")
	}
	if req.Offset < 0 || req.Count < 0 || req.Count > 100 {
		return nil, validationErrorf("offset must be >= 0 and count between 0 and 100")
	}

	documents, err := r.backlog.GetDocuments(ctx, backlog.DocumentListOptions{
		ProjectIDs: req.ProjectIDs,
		Keyword:    req.Keyword,
		Sort:       req.Sort,
		Order:      req.Order,
		Offset:     req.Offset,
		Count:      req.Count,
	})
	if err != nil {
		return nil, mapExecutionError(err, "listing documents")
	}
	return listResult(documents)
}

func (r *Runner) getDocument(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		DocumentID string `json:"documentId"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	documentID := strings.TrimSpace(req.DocumentID)
	if documentID == "" {
		return nil, validationErrorf("documentId is required")
	}
	document, err := r.backlog.GetDocument(ctx, documentID)
	if err != nil {
		return nil, mapExecutionError(err, "getting document")
	}
	return toMap(document)
}

func (r *Runner) getDocumentTree(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req projectRef
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	idOrKey, err := req.resolve()
	if err != nil {
		return nil, err
	}
	tree, err := r.backlog.GetDocumentTree(ctx, idOrKey)
	if err != nil {
		return nil, mapExecutionError(err, "getting document tree")
	}
	return toMap(tree)
}
