package tools

import (
	"context"

	"git.cscs.ch/openchami/backlog-mcp/internal/backlog"
)

func (r *Runner) getSpace(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct{}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	space, err := r.backlog.GetSpace(ctx)
	if err != nil {
		return nil, mapExecutionError(err, "getting space")
	}
	return toMap(space)
}

func (r *Runner) getMyself(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct{}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	user, err := r.backlog.GetMyself(ctx)
	if err != nil {
		return nil, mapExecutionError(err, "getting current user")
	}
	return toMap(user)
}

func (r *Runner) getProjects(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req struct {
		Archived *bool `json:"archived,omitempty"`
		All      bool  `json:"all,omitempty"`
	}
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	projects, err := r.backlog.GetProjects(ctx, backlog.ProjectListOptions{
		Archived: req.Archived,
		All:      req.All,
	})
	if err != nil {
		return nil, mapExecutionError(err, "listing projects")
	}
	return listResult(projects)
}

func (r *Runner) getProject(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req projectRef
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	idOrKey, err := req.resolve()
	if err != nil {
		return nil, err
	}
	project, err := r.backlog.GetProject(ctx, idOrKey)
	if err != nil {
		return nil, mapExecutionError(err, "getting project")
	}
	return toMap(project)
}

func (r *Runner) getCustomFields(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req projectRef
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	idOrKey, err := req.resolve()
	if err != nil {
		return nil, err
	}
	fields, err := r.backlog.GetCustomFields(ctx, idOrKey)
	if err != nil {
		return nil, mapExecutionError(err, "listing custom fields")
	}
	return listResult(fields)
}
