package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/backlog-mcp/internal/backlog"
)

type mockProjectClient struct {
	getProjectsFn func(ctx context.Context, opts backlog.ProjectListOptions) ([]backlog.Project, error)
	getProjectFn  func(ctx context.Context, projectIDOrKey string) (*backlog.Project, error)
}

func (m *mockProjectClient) GetProjects(ctx context.Context, opts backlog.ProjectListOptions) ([]backlog.Project, error) {
	return m.getProjectsFn(ctx, opts)
}

func (m *mockProjectClient) GetProject(ctx context.Context, projectIDOrKey string) (*backlog.Project, error) {
	return m.getProjectFn(ctx, projectIDOrKey)
}

func TestBacklogLookupListProjects(t *testing.T) {
	client := &mockProjectClient{
		getProjectsFn: func(_ context.Context, opts backlog.ProjectListOptions) ([]backlog.Project, error) {
			require.True(t, opts.All)
			return []backlog.Project{{ID: 1, ProjectKey: "ONE"}, {ID: 2, ProjectKey: "TWO", Archived: true}}, nil
		},
	}

	refs, err := NewBacklogLookup(client, 0).ListProjects(context.Background())
	require.NoError(t, err)
	require.Equal(t, []ProjectRef{{ID: 1, Key: "ONE"}, {ID: 2, Key: "TWO"}}, refs)
}

func TestBacklogLookupGetProject_CachesWithinTTL(t *testing.T) {
	calls := 0
	client := &mockProjectClient{
		getProjectFn: func(_ context.Context, key string) (*backlog.Project, error) {
			calls++
			require.Equal(t, "ONE", key)
			return &backlog.Project{ID: 1, ProjectKey: "ONE"}, nil
		},
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lookup := NewBacklogLookup(client, time.Minute)
	lookup.now = func() time.Time { return now }

	for range 3 {
		ref, err := lookup.GetProject(context.Background(), "ONE")
		require.NoError(t, err)
		require.Equal(t, ProjectRef{ID: 1, Key: "ONE"}, ref)
	}
	require.Equal(t, 1, calls)

	now = now.Add(time.Minute)
	_, err := lookup.GetProject(context.Background(), "ONE")
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestBacklogLookupGetProject_ZeroTTLDisablesCache(t *testing.T) {
	calls := 0
	client := &mockProjectClient{
		getProjectFn: func(context.Context, string) (*backlog.Project, error) {
			calls++
			return &backlog.Project{ID: 1, ProjectKey: "ONE"}, nil
		},
	}

	lookup := NewBacklogLookup(client, 0)
	_, _ = lookup.GetProject(context.Background(), "ONE")
	_, _ = lookup.GetProject(context.Background(), "ONE")
	require.Equal(t, 2, calls)
}

func TestBacklogLookupGetProject_ErrorsAreNotCached(t *testing.T) {
	boom := errors.New("No project.")
	calls := 0
	client := &mockProjectClient{
		getProjectFn: func(context.Context, string) (*backlog.Project, error) {
			calls++
			if calls == 1 {
				return nil, boom
			}
			return &backlog.Project{ID: 3, ProjectKey: "THREE"}, nil
		},
	}

	lookup := NewBacklogLookup(client, time.Hour)
	_, err := lookup.GetProject(context.Background(), "THREE")
	require.ErrorIs(t, err, boom)

	ref, err := lookup.GetProject(context.Background(), "THREE")
	require.NoError(t, err)
	require.Equal(t, 3, ref.ID)
	require.Equal(t, 2, calls)
}

func TestBacklogLookupGetProject_RequiresKey(t *testing.T) {
	lookup := NewBacklogLookup(&mockProjectClient{}, time.Minute)
	_, err := lookup.GetProject(context.Background(), "  ")
	require.Error(t, err)
}
