package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func seedMemories(t *testing.T, store Store, sessionID string) []string {
	t.Helper()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mems := []*Memory{
		{
			Turn: Turn{TurnID: 1, SessionID: sessionID, Timestamp: base, Speaker: "RED",
				Message: "I propose you give me 60 dollars", MessageType: TypeOffer,
				OfferDetails: map[string]float64{"Dollars": 60}},
			Embedding: []float64{1, 0, 0}, Importance: 0.6,
		},
		{
			Turn: Turn{TurnID: 2, SessionID: sessionID, Timestamp: base.Add(time.Minute), Speaker: "BLUE",
				Message: "Too high, how about 45 instead", MessageType: TypeCounteroffer,
				OfferDetails: map[string]float64{"Dollars": 45}},
			Embedding: []float64{0.9, 0.1, 0}, Importance: 0.6,
		},
		{
			Turn: Turn{TurnID: 3, SessionID: sessionID, Timestamp: base.Add(2 * time.Minute), Speaker: "RED",
				Message: "Deal, I accept 55", MessageType: TypeAcceptance},
			Embedding: []float64{0, 1, 0}, Importance: 0.9, Critical: true,
		},
	}
	ids, err := store.StoreBatch(context.Background(), mems)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	return ids
}

func TestDimensionEnforcedOnStoreAndSearch(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore(InMemoryStoreConfig{Dimension: 3}, nil)
	ctx := context.Background()

	_, err := store.Store(ctx, &Memory{
		Turn:      Turn{TurnID: 1, SessionID: "s1", Speaker: "RED", Message: "hello"},
		Embedding: []float64{1, 0},
	})
	require.ErrorIs(t, err, ErrDimension)

	// Embedding-free memories stay storable; critical records without
	// vectors come from the recorder's fallback path.
	_, err = store.Store(ctx, &Memory{
		Turn: Turn{TurnID: 1, SessionID: "s1", Speaker: "RED", Message: "hello"},
	})
	require.NoError(t, err)

	_, err = store.Store(ctx, &Memory{
		Turn:      Turn{TurnID: 2, SessionID: "s1", Speaker: "BLUE", Message: "hi"},
		Embedding: []float64{0, 1, 0},
	})
	require.NoError(t, err)

	_, err = store.RetrieveBySimilarity(ctx, []float64{1, 0, 0, 0}, 3, Filter{SessionID: "s1"})
	require.ErrorIs(t, err, ErrDimension)

	got, err := store.RetrieveBySimilarity(ctx, []float64{0, 1, 0}, 3, Filter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestInMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore(InMemoryStoreConfig{}, nil)
	ids := seedMemories(t, store, "sess-1")

	bySession, err := store.RetrieveBySession(context.Background(), "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, bySession, 3)
	require.Equal(t, 1, bySession[0].Turn.TurnID)
	require.Equal(t, 3, bySession[2].Turn.TurnID)

	recent, err := store.RetrieveRecent(context.Background(), 2, "sess-1")
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, 3, recent[0].Turn.TurnID)
	require.Equal(t, 2, recent[1].Turn.TurnID)

	byType, err := store.RetrieveByType(context.Background(), TypeOffer, "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	require.Equal(t, ids[0], byType[0].ID)
}

func TestInMemoryStoreSimilarityOrdering(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore(InMemoryStoreConfig{}, nil)
	seedMemories(t, store, "sess-1")

	// Query vector closest to the first offer's embedding.
	results, err := store.RetrieveBySimilarity(context.Background(), []float64{1, 0, 0}, 2, Filter{SessionID: "sess-1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, 1, results[0].Turn.TurnID)
	require.Equal(t, 2, results[1].Turn.TurnID)
}

func TestInMemoryStoreEmptyNeverErrors(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore(InMemoryStoreConfig{}, nil)
	ctx := context.Background()

	bySim, err := store.RetrieveBySimilarity(ctx, []float64{1, 0}, 5, Filter{SessionID: "none"})
	require.NoError(t, err)
	require.Empty(t, bySim)

	bySession, err := store.RetrieveBySession(ctx, "none", 0)
	require.NoError(t, err)
	require.Empty(t, bySession)

	recent, err := store.RetrieveRecent(ctx, 5, "none")
	require.NoError(t, err)
	require.Empty(t, recent)

	stats, err := store.Stats(ctx, "none")
	require.NoError(t, err)
	require.Zero(t, stats.Total)
	require.Zero(t, stats.Critical)
}

func TestInMemoryStoreUpdateDelete(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore(InMemoryStoreConfig{}, nil)
	ids := seedMemories(t, store, "sess-1")
	ctx := context.Background()

	importance := 0.95
	critical := true
	ok, err := store.Update(ctx, ids[0], UpdateFields{Importance: &importance, Critical: &critical})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Update(ctx, "missing-id", UpdateFields{Importance: &importance})
	require.NoError(t, err)
	require.False(t, ok)

	updated, err := store.RetrieveBySession(ctx, "sess-1", 1)
	require.NoError(t, err)
	require.Equal(t, 0.95, updated[0].Importance)
	require.True(t, updated[0].Critical)

	ok, err = store.Delete(ctx, ids[1])
	require.NoError(t, err)
	require.True(t, ok)

	count, err := store.DeleteSession(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	stats, err := store.Stats(ctx, "sess-1")
	require.NoError(t, err)
	require.Zero(t, stats.Total)
}

func TestInMemoryStoreStats(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore(InMemoryStoreConfig{}, nil)
	seedMemories(t, store, "sess-1")
	seedMemories(t, store, "sess-2")

	stats, err := store.Stats(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 1, stats.Critical)
	require.Equal(t, 1, stats.ByType[TypeOffer])
	require.Equal(t, 1, stats.ByType[TypeCounteroffer])
	require.Equal(t, 2, stats.BySpeaker["RED"])

	all, err := store.Stats(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 6, all.Total)

	cleared, err := store.ClearAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 6, cleared)
}

func TestInMemoryStoreCloneIsolation(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore(InMemoryStoreConfig{}, nil)
	mem := &Memory{
		Turn:      Turn{TurnID: 1, SessionID: "s", Speaker: "RED", Message: "hi", MessageType: TypeChat},
		Embedding: []float64{1, 2, 3},
	}
	id, err := store.Store(context.Background(), mem)
	require.NoError(t, err)

	// Mutating the caller's copy must not affect the stored one.
	mem.Embedding[0] = 99

	got, err := store.RetrieveBySession(context.Background(), "s", 0)
	require.NoError(t, err)
	require.Equal(t, id, got[0].ID)
	require.Equal(t, []float64{1, 2, 3}, got[0].Embedding)
}
