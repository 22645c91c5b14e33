package query

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/taskflow/internal/persistence"
	"github.com/petrijr/taskflow/pkg/api"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name    string
		page    api.Pageable
		want    []int
		wantErr bool
	}{
		{name: "first page", page: api.PageOf(0, 2), want: []int{1, 2}},
		{name: "middle page", page: api.PageOf(2, 2), want: []int{3, 4}},
		{name: "short last page", page: api.PageOf(4, 2), want: []int{5}},
		{name: "whole set", page: api.PageOf(0, 50), want: []int{1, 2, 3, 4, 5}},
		{name: "offset at end", page: api.PageOf(5, 10), want: []int{}},
		{name: "offset past end", page: api.PageOf(99, 10), want: []int{}},
		{name: "max size", page: api.PageOf(1, math.MaxInt), want: []int{2, 3, 4, 5}},
		{name: "max offset and size", page: api.PageOf(math.MaxInt, math.MaxInt), want: []int{}},
		{name: "negative offset", page: api.PageOf(-1, 10), wantErr: true},
		{name: "zero size", page: api.PageOf(0, 0), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Paginate(items, tt.page)
			if tt.wantErr {
				assert.ErrorIs(t, err, api.ErrInvalidPageable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Content)
			assert.Equal(t, len(items), got.TotalItems)
		})
	}
}

func TestPaginate_DoesNotAlias(t *testing.T) {
	items := []string{"a", "b", "c"}
	page, err := Paginate(items, api.PageOf(0, 2))
	require.NoError(t, err)

	page.Content[0] = "z"
	assert.Equal(t, "a", items[0])
}

func newQueries(t *testing.T) (*Queries, *persistence.InMemoryStore) {
	t.Helper()
	store := persistence.NewInMemoryStore()
	return New(store, store), store
}

func saveTask(t *testing.T, store persistence.TaskStore, id, assignee string, status api.TaskStatus) {
	t.Helper()
	require.NoError(t, store.SaveTask(context.Background(), &api.Task{
		ID:                id,
		ProcessInstanceID: "inst-" + id,
		ActivityID:        "review",
		Assignee:          assignee,
		Status:            status,
	}))
}

func TestActorTasks_ScopedAndOrdered(t *testing.T) {
	ctx := context.Background()
	q, store := newQueries(t)

	saveTask(t, store, "03", "user1", api.TaskAssigned)
	saveTask(t, store, "01", "user1", api.TaskAssigned)
	saveTask(t, store, "02", "user2", api.TaskAssigned)
	saveTask(t, store, "04", "", api.TaskCreated)
	saveTask(t, store, "05", "user1", api.TaskCompleted)
	saveTask(t, store, "06", "user1", api.TaskCancelled)

	page, err := q.ActorTasks(ctx, "user1", api.PageOf(0, 50))
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalItems)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "01", page.Content[0].ID)
	assert.Equal(t, "03", page.Content[1].ID)

	page, err = q.ActorTasks(ctx, "user1", api.PageOf(1, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalItems)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "03", page.Content[0].ID)

	page, err = q.ActorTasks(ctx, "nobody", api.PageOf(0, 50))
	require.NoError(t, err)
	assert.Equal(t, 0, page.TotalItems)
	assert.Empty(t, page.Content)

	page, err = q.ActorTasks(ctx, "user1", api.PageOf(1, math.MaxInt))
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalItems)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "03", page.Content[0].ID)

	_, err = q.ActorTasks(ctx, "user1", api.PageOf(0, -1))
	assert.ErrorIs(t, err, api.ErrInvalidPageable)
}

func TestVisibleTask(t *testing.T) {
	ctx := context.Background()
	q, store := newQueries(t)

	saveTask(t, store, "01", "user1", api.TaskAssigned)
	saveTask(t, store, "02", "", api.TaskCreated)
	saveTask(t, store, "03", "user1", api.TaskCompleted)

	got, err := q.VisibleTask(ctx, "user1", "01")
	require.NoError(t, err)
	assert.Equal(t, "01", got.ID)

	// Ended tasks stay visible to their assignee.
	got, err = q.VisibleTask(ctx, "user1", "03")
	require.NoError(t, err)
	assert.Equal(t, api.TaskCompleted, got.Status)

	_, err = q.VisibleTask(ctx, "user2", "01")
	assert.ErrorIs(t, err, api.ErrNotFound)

	_, err = q.VisibleTask(ctx, "user1", "02")
	assert.ErrorIs(t, err, api.ErrNotFound)

	_, err = q.VisibleTask(ctx, "user1", "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestInstances_FilteredAndOrdered(t *testing.T) {
	ctx := context.Background()
	q, store := newQueries(t)

	for _, inst := range []*api.ProcessInstance{
		{ID: "b", DefinitionKey: "approval", Status: api.ProcessRunning},
		{ID: "a", DefinitionKey: "approval", Status: api.ProcessCompleted},
		{ID: "c", DefinitionKey: "other", Status: api.ProcessRunning},
	} {
		require.NoError(t, store.SaveInstance(ctx, inst))
	}

	page, err := q.Instances(ctx, api.PageOf(0, 10), api.ProcessInstanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalItems)
	assert.Equal(t, "a", page.Content[0].ID)
	assert.Equal(t, "b", page.Content[1].ID)
	assert.Equal(t, "c", page.Content[2].ID)

	page, err = q.Instances(ctx, api.PageOf(0, 10), api.ProcessInstanceFilter{DefinitionKey: "approval", Status: api.ProcessRunning})
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalItems)
	assert.Equal(t, "b", page.Content[0].ID)

	_, err = q.Instance(ctx, "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)
}
