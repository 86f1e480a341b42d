package guard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"git.cscs.ch/openchami/backlog-mcp/internal/backlog"
)

// ProjectRef is the minimal project identity the guard needs.
type ProjectRef struct {
	ID  int
	Key string
}

// Lookup resolves projects against the remote directory. Failures are not
// retried and propagate to the caller unchanged.
type Lookup interface {
	ListProjects(ctx context.Context) ([]ProjectRef, error)
	GetProject(ctx context.Context, idOrKey string) (ProjectRef, error)
}

type projectClient interface {
	GetProjects(ctx context.Context, opts backlog.ProjectListOptions) ([]backlog.Project, error)
	GetProject(ctx context.Context, projectIDOrKey string) (*backlog.Project, error)
}

type cachedProject struct {
	ref     ProjectRef
	expires time.Time
}

// BacklogLookup adapts the Backlog REST client to Lookup. GetProject answers
// are cached for ttl; a zero ttl disables caching.
type BacklogLookup struct {
	client projectClient
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedProject
}

// NewBacklogLookup creates a lookup backed by the Backlog API.
func NewBacklogLookup(client projectClient, ttl time.Duration) *BacklogLookup {
	if ttl < 0 {
		ttl = 0
	}
	return &BacklogLookup{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		cache:  map[string]cachedProject{},
	}
}

// ListProjects returns every project visible to the API key, archived included.
func (l *BacklogLookup) ListProjects(ctx context.Context) ([]ProjectRef, error) {
	projects, err := l.client.GetProjects(ctx, backlog.ProjectListOptions{All: true})
	if err != nil {
		return nil, err
	}
	refs := make([]ProjectRef, 0, len(projects))
	for _, project := range projects {
		refs = append(refs, ProjectRef{ID: project.ID, Key: project.ProjectKey})
	}
	return refs, nil
}

// GetProject resolves a project ID or key.
func (l *BacklogLookup) GetProject(ctx context.Context, idOrKey string) (ProjectRef, error) {
	key := strings.TrimSpace(idOrKey)
	if key == "" {
		return ProjectRef{}, fmt.Errorf("project id or key is required")
	}

	if ref, ok := l.cached(key); ok {
		return ref, nil
	}

	project, err := l.client.GetProject(ctx, key)
	if err != nil {
		return ProjectRef{}, err
	}
	ref := ProjectRef{ID: project.ID, Key: project.ProjectKey}
	l.store(key, ref)
	return ref, nil
}

func (l *BacklogLookup) cached(key string) (ProjectRef, bool) {
	if l.ttl == 0 {
		return ProjectRef{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.cache[key]
	if !ok {
		return ProjectRef{}, false
	}
	if !l.now().Before(entry.expires) {
		delete(l.cache, key)
		return ProjectRef{}, false
	}
	return entry.ref, true
}

func (l *BacklogLookup) store(key string, ref ProjectRef) {
	if l.ttl == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache[key] = cachedProject{ref: ref, expires: l.now().Add(l.ttl)}
}
