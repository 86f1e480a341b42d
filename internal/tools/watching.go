package tools

import (
	"context"
	"fmt"
	"strings"

	"git.cscs.ch/openchami/backlog-mcp/internal/backlog"
)

type watchingFilterArgs struct {
	UserID              int   `json:"userId,omitempty"`
	ResourceAlreadyRead *bool `json:"resourceAlreadyRead,omitempty"`
	IssueID             []int `json:"issueId,omitempty"`
}

// userID falls back to the key owner when no user is given.
func (r *Runner) userID(ctx context.Context, requested int) (int, error) {
	if requested > 0 {
		return requested, nil
	}
	user, err := r.backlog.GetMyself(ctx)
	if err != nil {
		return 0, mapExecutionError(err, "getting current user")
	}
	return user.ID, nil
}

func (r *Runner) getWatchingListItems(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		watchingFilterArgs
		Order  string `json:"order,omitempty"`
		Sort   string `json:"sort,omitempty"`
		Offset int    `json:"offset,omitempty"`
		Count  int    `json:"count,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	if req.Offset < 0 || req.Count < 0 || req.Count > 100 {
		return nil, validationErrorf("offset must be >= 0 and count between 0 and 100")
	}
	userID, err := r.userID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	items, err := r.backlog.GetWatchingListItems(ctx, userID, backlog.WatchingListOptions{
		Order:               req.Order,
		Sort:                req.Sort,
		Count:               req.Count,
		Offset:              req.Offset,
		ResourceAlreadyRead: req.ResourceAlreadyRead,
		IssueIDs:            req.IssueID,
	})
	if err != nil {
		return nil, mapExecutionError(err, "listing watching items")
	}
	return listResult(items)
}

func (r *Runner) getWatchingListCount(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req watchingFilterArgs
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	userID, err := r.userID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	count, err := r.backlog.GetWatchingListCount(ctx, userID, backlog.WatchingListOptions{
		ResourceAlreadyRead: req.ResourceAlreadyRead,
		IssueIDs:            req.IssueID,
	})
	if err != nil {
		return nil, mapExecutionError(err, "counting watching items")
	}
	return toMap(count)
}

func (r *Runner) addWatching(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		IssueIDOrKey string `json:"issueIdOrKey"`
		Note         string `json:"note,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	issue := strings.TrimSpace(req.IssueIDOrKey)
	if issue == "" {
		return nil, validationErrorf("issueIdOrKey is required")
	}
	watch, err := r.backlog.AddWatching(ctx, issue, req.Note)
	if err != nil {
		return nil, mapExecutionError(err, "adding watch")
	}
	return toMap(watch)
}

func (r *Runner) updateWatching(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		WatchID int    `json:"watchId"`
		Note    string `json:"note"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	if req.WatchID <= 0 {
		return nil, validationErrorf("watchId is required")
	}
	watch, err := r.backlog.UpdateWatching(ctx, req.WatchID, req.Note)
	if err != nil {
		return nil, mapExecutionError(err, "updating watch")
	}
	return toMap(watch)
}

func (r *Runner) deleteWatching(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		WatchID int   `json:"watchId"`
		Confirm *bool `json:"confirm,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	if req.WatchID <= 0 {
		return nil, validationErrorf("watchId is required")
	}
	watch, err := r.backlog.DeleteWatching(ctx, req.WatchID)
	if err != nil {
		return nil, mapExecutionError(err, "deleting watch")
	}
	return toMap(watch)
}

func (r *Runner) markWatchingAsRead(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		WatchID int `json:"watchId"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	if req.WatchID <= 0 {
		return nil, validationErrorf("watchId is required")
	}
	if err := r.backlog.MarkWatchingAsRead(ctx, req.WatchID); err != nil {
		return nil, mapExecutionError(err, "marking watch as read")
	}
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Watch %d marked as read", req.WatchID),
	}, nil
}
