package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BaSui01/negotiarena/llm/embedding"
	"github.com/BaSui01/negotiarena/memory"
)

func newMemoryAgentFixture(t *testing.T, provider *recordingProvider, embedErr error) (*MemoryAgent, *memory.InMemoryStore) {
	t.Helper()
	store := memory.NewInMemoryStore(memory.InMemoryStoreConfig{}, nil)
	embedder := embedding.NewMockProvider(16)
	embedder.Err = embedErr
	retriever := memory.NewRetriever(store, embedder, memory.DefaultRetrieverConfig(), nil, nil)
	recorder := memory.NewRecorder(store, embedder, memory.RecorderConfig{}, nil)

	a := NewMemoryAgent(MemoryAgentConfig{
		ChatAgentConfig: ChatAgentConfig{Name: "BLUE", Position: PositionSecond},
		SessionID:       "sess-1",
		GameType:        "buy-sell",
		Role:            "buyer",
	}, provider, retriever, recorder, nil)
	return a, store
}

func TestMemoryAgentRecordsInteraction(t *testing.T) {
	t.Parallel()

	provider := newRecordingProvider("I accept your deal")
	a, store := newMemoryAgentFixture(t, provider, nil)
	ctx := context.Background()

	require.NoError(t, a.InitAgent(ctx, "sys", "role"))
	reply, err := a.Step(ctx, "I propose 55 dollars")
	require.NoError(t, err)
	require.Equal(t, "I accept your deal", reply)

	stats, err := store.Stats(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.BySpeaker["opponent"])
	require.Equal(t, 1, stats.BySpeaker["BLUE"])
	require.Equal(t, 1, stats.ByType[memory.TypeOffer])
	require.Equal(t, 1, stats.ByType[memory.TypeAcceptance])
}

func TestMemoryAgentAugmentsWithHistory(t *testing.T) {
	t.Parallel()

	provider := newRecordingProvider("noted", "countering")
	a, _ := newMemoryAgentFixture(t, provider, nil)
	ctx := context.Background()

	require.NoError(t, a.InitAgent(ctx, "sys", "role"))

	_, err := a.Step(ctx, "I propose 70 dollars")
	require.NoError(t, err)
	_, err = a.Step(ctx, "I propose 60 dollars")
	require.NoError(t, err)

	// The second step's user turn carries retrieved history above the
	// current message.
	var userTurn string
	for _, m := range provider.requests[1] {
		if strings.Contains(m.Content, "I propose 60 dollars") {
			userTurn = m.Content
		}
	}
	require.NotEmpty(t, userTurn)
	require.Contains(t, userTurn, "Relevant Past Interactions")
	require.Contains(t, userTurn, "## Current Message:")
}

func TestMemoryAgentSnapshotKeepsTurnCounter(t *testing.T) {
	t.Parallel()

	provider := newRecordingProvider("noted", "countering")
	a, store := newMemoryAgentFixture(t, provider, nil)
	ctx := context.Background()

	require.NoError(t, a.InitAgent(ctx, "sys", "role"))
	_, err := a.Step(ctx, "I propose 70 dollars")
	require.NoError(t, err)

	snap, err := a.Snapshot()
	require.NoError(t, err)

	// A restored agent continues minting fresh turn ids; turn ids 0 and
	// 1 already belong to the first exchange.
	restored, _ := newMemoryAgentFixture(t, newRecordingProvider("still countering"), nil)
	restored.recorder = memory.NewRecorder(store, embedding.NewMockProvider(16), memory.RecorderConfig{}, nil)
	require.NoError(t, restored.Restore(snap))
	require.Equal(t, 1, restored.turnCounter)

	_, err = restored.Step(ctx, "I propose 60 dollars")
	require.NoError(t, err)

	all, err := store.RetrieveBySession(ctx, "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	seen := map[int]bool{}
	for _, m := range all {
		seen[m.Turn.TurnID] = true
	}
	require.Equal(t, map[int]bool{0: true, 1: true, 2: true, 3: true}, seen)
}

func TestMemoryAgentRetrievalFailureFallsBack(t *testing.T) {
	t.Parallel()

	provider := newRecordingProvider("still responding")
	a, store := newMemoryAgentFixture(t, provider, errors.New("embedding service down"))
	ctx := context.Background()

	require.NoError(t, a.InitAgent(ctx, "sys", "role"))

	// Retrieval and recording both fail, yet the step succeeds with the
	// raw observation.
	reply, err := a.Step(ctx, "I propose 55 dollars")
	require.NoError(t, err)
	require.Equal(t, "still responding", reply)

	sent := provider.requests[0]
	require.Equal(t, "I propose 55 dollars", sent[len(sent)-1].Content)

	stats, err := store.Stats(ctx, "sess-1")
	require.NoError(t, err)
	require.Zero(t, stats.Total)
}
