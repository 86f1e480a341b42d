package tools

import "context"

func (r *Runner) getVersionMilestoneList(ctx context.Context, args map[string]any) (map[string]any, error) {
	var req projectRef
	if err := decodeArgsStrict(args, &req); err != nil {
		return nil, err
	}
	idOrKey, err := req.resolve()
	if err != nil {
		return nil, err
	}
	versions, err := r.backlog.GetVersions(ctx, idOrKey)
	if err != nil {
		return nil, mapExecutionError(err, "listing versions")
	}
	return listResult(versions)
}
