package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Access classifies how a tool touches project-scoped state.
type Access string

const (
	// AccessRead is governed by the read guard.
	AccessRead Access = "read"
	// AccessWrite is governed by the write guard.
	AccessWrite Access = "write"
)

const (
	fieldProjectID  = "projectId"
	fieldProjectKey = "projectKey"
	fieldProjectIDs = "projectIds"
)

// Decision results reported to loggers and recorders.
const (
	ResultSkipped     = "skipped"
	ResultPassthrough = "passthrough"
	ResultAllowed     = "allowed"
	ResultFiltered    = "filtered"
	ResultInjected    = "injected"
	ResultBlocked     = "blocked"
	ResultError       = "error"
)

// Scope describes the project arguments a tool accepts.
type Scope struct {
	Access Access
	// MultiProject marks tools whose project argument is a list of IDs.
	MultiProject bool
	// ListField names the list argument that receives injected or filtered
	// IDs. Defaults to projectId.
	ListField string
}

func (s Scope) listField() string {
	if field := strings.TrimSpace(s.ListField); field != "" {
		return field
	}
	return fieldProjectID
}

// Operation is a tool handler taking and returning JSON-like objects.
type Operation func(ctx context.Context, args map[string]any) (map[string]any, error)

// DecisionRecorder observes guard outcomes, for metrics.
type DecisionRecorder interface {
	RecordGuardDecision(tool, access, result string)
}

// GateOption customizes a Gate.
type GateOption func(*Gate)

// WithDecisionRecorder reports every decision to recorder.
func WithDecisionRecorder(recorder DecisionRecorder) GateOption {
	return func(g *Gate) {
		g.recorder = recorder
	}
}

// Gate applies the directory's read and write policies to tool arguments.
// It holds no per-call state and is safe for concurrent use.
type Gate struct {
	dir      *Directory
	lookup   Lookup
	logger   zerolog.Logger
	recorder DecisionRecorder
}

// NewGate creates a gate backed by an initialized directory.
func NewGate(dir *Directory, lookup Lookup, logger zerolog.Logger, opts ...GateOption) *Gate {
	g := &Gate{
		dir:    dir,
		lookup: lookup,
		logger: logger.With().Str("component", "project_guard").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Wrap returns an operation that applies the policy before delegating. A
// rejected call never reaches op; op's own result and error pass through.
func (g *Gate) Wrap(op Operation, toolName string, scope Scope) Operation {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		rewritten, err := g.Apply(ctx, toolName, scope, args)
		if err != nil {
			return nil, err
		}
		return op(ctx, rewritten)
	}
}

// Enforces reports whether calls with the given access are checked against
// an allow-list.
func (g *Gate) Enforces(access Access) bool {
	if g.dir.Open() {
		return false
	}
	cfg := g.dir.Config()
	switch access {
	case AccessWrite:
		return cfg.WriteGuard == WriteGuardOn
	case AccessRead:
		return cfg.ReadGuard == ReadGuardFilter || cfg.ReadGuard == ReadGuardDeny
	default:
		return false
	}
}

// Apply evaluates the policy for one call. It returns the arguments the
// tool should run with; the caller's map is never modified.
func (g *Gate) Apply(ctx context.Context, toolName string, scope Scope, args map[string]any) (map[string]any, error) {
	out := cloneArgs(args)
	var (
		result string
		err    error
	)
	switch scope.Access {
	case AccessWrite:
		result, err = g.applyWrite(ctx, toolName, out)
	case AccessRead:
		result, err = g.applyRead(ctx, toolName, scope, out)
	default:
		result = ResultSkipped
	}
	g.record(toolName, scope.Access, result, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gate) applyWrite(ctx context.Context, toolName string, args map[string]any) (string, error) {
	cfg := g.dir.Config()
	if cfg.WriteGuard != WriteGuardOn {
		return ResultPassthrough, nil
	}

	if !hasProjectContext(args) && cfg.DefaultProjectID != 0 {
		args[fieldProjectID] = cfg.DefaultProjectID
		g.logger.Debug().
			Str("tool", toolName).
			Int("default_project_id", cfg.DefaultProjectID).
			Msg("Injected default project for write")
	}
	if !hasProjectContext(args) {
		g.logSkipped(toolName, AccessWrite)
		return ResultSkipped, nil
	}

	pc := readProjectContext(args)
	target, fromList, err := g.resolveTarget(ctx, toolName, AccessWrite, pc)
	if err != nil {
		return ResultBlocked, err
	}
	if fromList {
		args[fieldProjectID] = target
	}

	g.logAllowed(toolName, AccessWrite, []int{target})
	return ResultAllowed, nil
}

// applyRead enforces the read policy. Under filter, a supplied list whose
// intersection with the allow-list is empty is rejected rather than passed on
// empty, since Backlog treats an empty project filter as every project.
func (g *Gate) applyRead(ctx context.Context, toolName string, scope Scope, args map[string]any) (string, error) {
	policy := g.dir.Config().ReadGuard
	if policy != ReadGuardFilter && policy != ReadGuardDeny {
		return ResultPassthrough, nil
	}

	if !hasProjectContext(args) {
		return g.scopeUnscopedRead(toolName, scope, policy, args)
	}

	pc := readProjectContext(args)
	targets := make([]int, 0, len(pc.primary)+len(pc.secondary))

	listFields := make([]string, 0, 2)
	if pc.primaryIsList {
		listFields = append(listFields, fieldProjectID)
	}
	if len(pc.secondary) > 0 {
		listFields = append(listFields, fieldProjectIDs)
	}

	if pc.key != "" || (len(pc.primary) > 0 && !pc.primaryIsList) || len(listFields) == 0 {
		single := pc
		single.secondary = nil
		if pc.primaryIsList {
			single.primary = nil
		}
		target, _, err := g.resolveTarget(ctx, toolName, AccessRead, single)
		if err != nil {
			return ResultBlocked, err
		}
		targets = append(targets, target)
	}

	result := ResultAllowed
	for _, field := range listFields {
		candidates := coerceToProjectIDs(args[field])
		if policy == ReadGuardDeny {
			if len(candidates) == 0 {
				return ResultBlocked, g.forbidden(toolName, AccessRead, 0, pc)
			}
			for _, id := range candidates {
				if id == 0 || !g.dir.IsAllowedID(id) {
					return ResultBlocked, g.forbidden(toolName, AccessRead, id, pc)
				}
			}
			targets = append(targets, candidates...)
			continue
		}

		kept := filterAllowed(g.dir, candidates)
		if len(kept) == 0 {
			rejected := 0
			if len(candidates) > 0 {
				rejected = candidates[0]
			}
			return ResultBlocked, g.forbidden(toolName, AccessRead, rejected, pc)
		}
		if len(kept) != len(candidates) {
			result = ResultFiltered
			g.logger.Info().
				Str("tool", toolName).
				Str("field", field).
				Ints("requestedProjectIds", candidates).
				Ints("projectIds", kept).
				Msg("Project read filtered to allowed projects")
		}
		args[field] = kept
		targets = append(targets, kept...)
	}

	g.logAllowed(toolName, AccessRead, targets)
	return result, nil
}

// scopeUnscopedRead narrows a read that named no project. An open
// allow-list leaves it untouched.
func (g *Gate) scopeUnscopedRead(toolName string, scope Scope, policy ReadPolicy, args map[string]any) (string, error) {
	if g.dir.Open() {
		g.logSkipped(toolName, AccessRead)
		return ResultSkipped, nil
	}
	allowed := g.dir.AllowedProjectIDs()

	switch {
	case scope.MultiProject && policy == ReadGuardFilter:
		args[scope.listField()] = allowed
	case len(allowed) == 1 && scope.MultiProject:
		args[scope.listField()] = allowed
	case len(allowed) == 1:
		args[fieldProjectID] = allowed[0]
	default:
		g.logger.Warn().
			Str("tool", toolName).
			Str("result", ResultBlocked).
			Ints("allowedProjectIds", allowed).
			Msg("Project read without project scope blocked")
		return ResultBlocked, ErrProjectNotSpecified
	}

	g.logger.Info().
		Str("tool", toolName).
		Str("result", ResultInjected).
		Ints("projectIds", allowed).
		Msg("Project read scoped to allowed projects")
	return ResultInjected, nil
}

// resolveTarget picks the single project a call addresses: a supplied key
// wins; otherwise the first allowed candidate, or the first candidate so the
// rejection names it. The second result reports whether the target came from
// the projectIds list.
func (g *Gate) resolveTarget(ctx context.Context, toolName string, access Access, pc projectContext) (int, bool, error) {
	var (
		target   int
		fromList bool
	)

	switch {
	case pc.key != "":
		if g.lookup == nil {
			return 0, false, fmt.Errorf("resolving project key %s: no project lookup configured", pc.key)
		}
		ref, err := g.lookup.GetProject(ctx, pc.key)
		if err != nil {
			return 0, false, err
		}
		target = ref.ID
	case len(pc.primary) > 0:
		target = pickCandidate(g.dir, pc.primary)
	case len(pc.secondary) > 0:
		target = pickCandidate(g.dir, pc.secondary)
		fromList = true
	}

	if target == 0 || !g.dir.IsAllowedID(target) {
		return 0, false, g.forbidden(toolName, access, target, pc)
	}
	return target, fromList, nil
}

func (g *Gate) forbidden(toolName string, access Access, rejected int, pc projectContext) error {
	data := ForbiddenData{
		AllowedProjectIDs:   g.dir.AllowedProjectIDs(),
		RequestedProjectID:  rejected,
		RequestedProjectKey: pc.key,
	}
	if len(pc.primary) > 0 || len(pc.secondary) > 0 {
		data.RequestedProjectIDs = append(append([]int{}, pc.primary...), pc.secondary...)
	}

	operation := "Write"
	if access == AccessRead {
		operation = "Read"
	}

	g.logger.Warn().
		Str("tool", toolName).
		Str("result", ResultBlocked).
		Ints("allowedProjectIds", data.AllowedProjectIDs).
		Int("requestedProjectId", data.RequestedProjectID).
		Str("requestedProjectKey", data.RequestedProjectKey).
		Ints("requestedProjectIds", data.RequestedProjectIDs).
		Msgf("Project %s access blocked", strings.ToLower(operation))

	return &ForbiddenError{
		Message: operation + " operation is not allowed for this project",
		Data:    data,
	}
}

func (g *Gate) logSkipped(toolName string, access Access) {
	g.logger.Debug().
		Str("tool", toolName).
		Str("access", string(access)).
		Str("result", ResultSkipped).
		Msg("Project guard skipped (no project context provided)")
}

func (g *Gate) logAllowed(toolName string, access Access, targets []int) {
	g.logger.Info().
		Str("tool", toolName).
		Str("result", ResultAllowed).
		Ints("projectIds", targets).
		Msgf("Project %s access allowed", access)
}

func (g *Gate) record(toolName string, access Access, result string, err error) {
	if g.recorder == nil {
		return
	}
	if err != nil && !IsForbidden(err) && !errors.Is(err, ErrProjectNotSpecified) {
		result = ResultError
	}
	g.recorder.RecordGuardDecision(toolName, string(access), result)
}

type projectContext struct {
	key           string
	primary       []int
	primaryIsList bool
	secondary     []int
}

func readProjectContext(args map[string]any) projectContext {
	pc := projectContext{
		primary:   coerceToProjectIDs(args[fieldProjectID]),
		secondary: coerceToProjectIDs(args[fieldProjectIDs]),
	}
	if key, ok := args[fieldProjectKey].(string); ok {
		pc.key = strings.TrimSpace(key)
	}
	// An empty list addresses nothing and counts as absent.
	items, isList := listValues(args[fieldProjectID])
	pc.primaryIsList = isList && len(items) > 0
	return pc
}

func hasProjectContext(args map[string]any) bool {
	return !isNilOrEmpty(args[fieldProjectID]) ||
		!isNilOrEmpty(args[fieldProjectKey]) ||
		!isNilOrEmpty(args[fieldProjectIDs])
}

func isNilOrEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	if items, ok := listValues(value); ok {
		return len(items) == 0
	}
	return false
}

func listValues(value any) ([]any, bool) {
	switch typed := value.(type) {
	case []any:
		return typed, true
	case []int:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = v
		}
		return out, true
	case []int64:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = v
		}
		return out, true
	case []float64:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = v
		}
		return out, true
	case []string:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = v
		}
		return out, true
	default:
		return nil, false
	}
}

func coerceToProjectIDs(value any) []int {
	if value == nil {
		return nil
	}
	if items, ok := listValues(value); ok {
		ids := make([]int, 0, len(items))
		for _, item := range items {
			if id, ok := coerceProjectID(item); ok {
				ids = append(ids, id)
			}
		}
		return ids
	}
	if id, ok := coerceProjectID(value); ok {
		return []int{id}
	}
	return nil
}

func pickCandidate(dir *Directory, candidates []int) int {
	for _, id := range candidates {
		if id != 0 && dir.IsAllowedID(id) {
			return id
		}
	}
	return candidates[0]
}

func filterAllowed(dir *Directory, ids []int) []int {
	kept := make([]int, 0, len(ids))
	for _, id := range ids {
		if id != 0 && dir.IsAllowedID(id) {
			kept = append(kept, id)
		}
	}
	return kept
}

func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args)+1)
	for key, value := range args {
		out[key] = value
	}
	return out
}
