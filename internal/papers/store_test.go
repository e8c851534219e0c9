package papers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csheth/papergraph/internal/api"
	"github.com/csheth/papergraph/internal/api/apitest"
)

func TestRefreshReplacesSnapshot(t *testing.T) {
	backend := apitest.New(t)
	backend.AddPaper(api.Paper{ID: "a", Title: "A"})
	backend.AddPaper(api.Paper{ID: "b", Title: "B"})

	store := NewStore(backend.Client())
	require.NoError(t, store.Refresh(context.Background()))
	assert.Equal(t, 2, store.Len())
	assert.True(t, store.Has("a"))

	require.NoError(t, backend.Client().DeletePaper(context.Background(), "a"))
	backend.AddPaper(api.Paper{ID: "b", Title: "B (revised)"})
	require.NoError(t, store.Refresh(context.Background()))

	assert.False(t, store.Has("a"))
	got, ok := store.Get("b")
	require.True(t, ok)
	assert.Equal(t, "B (revised)", got.Title)
}

func TestRefreshFailureKeepsLastGoodSnapshot(t *testing.T) {
	backend := apitest.New(t)
	backend.AddPaper(api.Paper{ID: "a"})

	store := NewStore(backend.Client())
	require.NoError(t, store.Refresh(context.Background()))

	backend.FailNext("GET /papers", 1)
	err := store.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrRequestFailed))
	assert.True(t, store.Has("a"))
}

func TestDeleteRefetches(t *testing.T) {
	backend := apitest.New(t)
	backend.AddPaper(api.Paper{ID: "a"})
	backend.AddPaper(api.Paper{ID: "b"})

	store := NewStore(backend.Client())
	require.NoError(t, store.Refresh(context.Background()))
	require.NoError(t, store.Delete(context.Background(), "a"))

	assert.Equal(t, []string{"b"}, ids(store.All()))
	assert.Equal(t, 2, backend.Calls("GET /papers"))
}

func TestRemoveDoesNotRefetch(t *testing.T) {
	backend := apitest.New(t)
	backend.AddPaper(api.Paper{ID: "a"})

	store := NewStore(backend.Client())
	require.NoError(t, store.Refresh(context.Background()))
	require.NoError(t, store.Remove(context.Background(), "a"))

	assert.True(t, store.Has("a"))
	assert.Equal(t, 1, backend.Calls("GET /papers"))
	assert.False(t, backend.HasPaper("a"))
}

func TestDeleteFailureLeavesSnapshot(t *testing.T) {
	backend := apitest.New(t)
	store := NewStore(backend.Client())

	err := store.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, 0, backend.Calls("GET /papers"))
}

func TestReplaceCollapsesDuplicateIDs(t *testing.T) {
	store := NewStore(nil)
	store.Replace([]api.Paper{{ID: "a", Title: "first"}, {ID: "b"}, {ID: "a", Title: "second"}})

	assert.Equal(t, []string{"a", "b"}, ids(store.All()))
	got, _ := store.Get("a")
	assert.Equal(t, "second", got.Title)
}

func TestAllReturnsCopy(t *testing.T) {
	store := NewStore(nil)
	store.Replace([]api.Paper{{ID: "a", Title: "A"}})

	all := store.All()
	all[0].Title = "mutated"
	got, _ := store.Get("a")
	assert.Equal(t, "A", got.Title)
}

func ids(list []api.Paper) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.ID)
	}
	return out
}
