package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "memories.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestSQLiteStore(t)
	ids := seedMemories(t, store, "sess-1")
	ctx := context.Background()

	bySession, err := store.RetrieveBySession(ctx, "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, bySession, 3)
	require.Equal(t, 1, bySession[0].Turn.TurnID)
	require.Equal(t, "I propose you give me 60 dollars", bySession[0].Turn.Message)
	require.Equal(t, map[string]float64{"Dollars": 60}, bySession[0].Turn.OfferDetails)
	require.Equal(t, []float64{1, 0, 0}, bySession[0].Embedding)

	recent, err := store.RetrieveRecent(ctx, 2, "sess-1")
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, 3, recent[0].Turn.TurnID)

	byType, err := store.RetrieveByType(ctx, TypeCounteroffer, "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	require.Equal(t, ids[1], byType[0].ID)
}

func TestSQLiteStoreSimilarity(t *testing.T) {
	t.Parallel()

	store := newTestSQLiteStore(t)
	seedMemories(t, store, "sess-1")

	results, err := store.RetrieveBySimilarity(context.Background(), []float64{1, 0, 0}, 2, Filter{SessionID: "sess-1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, 1, results[0].Turn.TurnID)
	require.Equal(t, 2, results[1].Turn.TurnID)
}

func TestSQLiteStoreUpdateDeleteStats(t *testing.T) {
	t.Parallel()

	store := newTestSQLiteStore(t)
	ids := seedMemories(t, store, "sess-1")
	ctx := context.Background()

	critical := true
	ok, err := store.Update(ctx, ids[0], UpdateFields{Critical: &critical, Tags: []string{"pivotal"}})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Update(ctx, "missing", UpdateFields{Critical: &critical})
	require.NoError(t, err)
	require.False(t, ok)

	updated, err := store.RetrieveBySession(ctx, "sess-1", 1)
	require.NoError(t, err)
	require.True(t, updated[0].Critical)
	require.Equal(t, []string{"pivotal"}, updated[0].Tags)

	ok, err = store.Delete(ctx, ids[2])
	require.NoError(t, err)
	require.True(t, ok)

	stats, err := store.Stats(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)

	count, err := store.DeleteSession(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestSQLiteStoreEmptyNeverErrors(t *testing.T) {
	t.Parallel()

	store := newTestSQLiteStore(t)
	ctx := context.Background()

	bySim, err := store.RetrieveBySimilarity(ctx, []float64{1, 0, 0}, 3, Filter{SessionID: "none"})
	require.NoError(t, err)
	require.Empty(t, bySim)

	stats, err := store.Stats(ctx, "none")
	require.NoError(t, err)
	require.Zero(t, stats.Total)

	cleared, err := store.ClearAll(ctx)
	require.NoError(t, err)
	require.Zero(t, cleared)
}
