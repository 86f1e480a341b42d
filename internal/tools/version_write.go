package tools

import (
	"context"
	"strings"

	"git.cscs.ch/openchami/backlog-mcp/internal/backlog"
)

func (r *Runner) addVersionMilestone(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		projectRef
		Name           string `json:"name"`
		Description    string `json:"description,omitempty"`
		StartDate      string `json:"startDate,omitempty"`
		ReleaseDueDate string `json:"releaseDueDate,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	idOrKey, err := req.resolve()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, validationErrorf("name is required")
	}

	version, err := r.backlog.AddVersion(ctx, idOrKey, backlog.VersionRequest{
		Name:           req.Name,
		Description:    req.Description,
		StartDate:      req.StartDate,
		ReleaseDueDate: req.ReleaseDueDate,
	})
	if err != nil {
		return nil, mapExecutionError(err, "creating version")
	}
	return toMap(version)
}

func (r *Runner) updateVersionMilestone(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		projectRef
		ID             int    `json:"id"`
		Name           string `json:"name"`
		Description    string `json:"description,omitempty"`
		StartDate      string `json:"startDate,omitempty"`
		ReleaseDueDate string `json:"releaseDueDate,omitempty"`
		Archived       *bool  `json:"archived,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	idOrKey, err := req.resolve()
	if err != nil {
		return nil, err
	}
	if req.ID <= 0 {
		return nil, validationErrorf("version id is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, validationErrorf("name is required")
	}

	version, err := r.backlog.UpdateVersion(ctx, idOrKey, req.ID, backlog.VersionRequest{
		Name:           req.Name,
		Description:    req.Description,
		StartDate:      req.StartDate,
		ReleaseDueDate: req.ReleaseDueDate,
		Archived:       req.Archived,
	})
	if err != nil {
		return nil, mapExecutionError(err, "updating version")
	}
	return toMap(version)
}

func (r *Runner) deleteVersion(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		projectRef
		ID      int   `json:"id"`
		Confirm *bool `json:"confirm,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	idOrKey, err := req.resolve()
	if err != nil {
		return nil, err
	}
	if req.ID <= 0 {
		return nil, validationErrorf("version id is required")
	}

	version, err := r.backlog.DeleteVersion(ctx, idOrKey, req.ID)
	if err != nil {
		return nil, mapExecutionError(err, "deleting version")
	}
	return toMap(version)
}
