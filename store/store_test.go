package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chain_of_density/generator"
)

func newChain(t *testing.T, id, article string, state generator.State) *generator.Chain {
	t.Helper()
	raw := map[string]any{
		"id":            id,
		"article":       map[string]any{"id": article},
		"planned_steps": 1,
		"state":         state,
		"steps": []map[string]any{
			{"index": 0, "summary": map[string]any{"text": "first", "tokens": 1, "source": article}, "attempts": 1},
			{"index": 1, "summary": map[string]any{"text": "second", "tokens": 1, "source": article}, "missing": []string{"X"}, "attempts": 2},
		},
	}
	b, err := json.Marshal(raw)
	require.NoError(t, err)
	var c generator.Chain
	require.NoError(t, json.Unmarshal(b, &c))
	return &c
}

func TestPutGet(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	c := newChain(t, "c1", "a1", generator.StateDone)
	require.NoError(t, s.Put(ctx, c))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, c.Steps(), got.Steps())
	assert.Equal(t, generator.StateDone, got.State)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestByArticleIgnoresFailedChains(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newChain(t, "failed", "a1", generator.StateFailed)))
	_, err = s.ByArticle(ctx, "a1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, newChain(t, "done", "a1", generator.StateDone)))
	got, err := s.ByArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "done", got.ID)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, newChain(t, "c1", "a1", generator.StateDone)))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.ByArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
}

func TestList(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, s.Put(ctx, newChain(t, id, "art-"+id, generator.StateDone)))
	}
	ids, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	ids, err = s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestPutRejectsChainWithoutID(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()
	assert.Error(t, s.Put(context.Background(), &generator.Chain{}))
}

func TestDoneChainIsNotRecorded(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newChain(t, "c1", "a1", generator.StateDone)))
	ok, err := s.Recorded(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.MarkRecorded(ctx, "a1", "c1"))
	ok, err = s.Recorded(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Error(t, s.MarkRecorded(ctx, "", "c1"))
}
