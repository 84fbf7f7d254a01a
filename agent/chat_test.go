package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BaSui01/negotiarena/llm"
)

// recordingProvider captures each request's messages for assertions.
type recordingProvider struct {
	*llm.ScriptedProvider
	requests [][]llm.Message
}

func newRecordingProvider(responses ...string) *recordingProvider {
	return &recordingProvider{ScriptedProvider: llm.NewScriptedProvider(responses...)}
}

func (p *recordingProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req.Messages)
	return p.ScriptedProvider.Completion(ctx, req)
}

func TestChatAgentFirstMoverSeeding(t *testing.T) {
	t.Parallel()

	provider := newRecordingProvider("reply one")
	a := NewChatAgent(ChatAgentConfig{Name: "RED", Position: PositionFirst}, provider, nil)
	ctx := context.Background()

	require.NoError(t, a.InitAgent(ctx, "system text", "role text"))

	reply, err := a.Step(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "reply one", reply)

	// First mover: system and role as separate messages, and the empty
	// opening observation never becomes a user turn.
	sent := provider.requests[0]
	require.Len(t, sent, 2)
	require.Equal(t, llm.RoleSystem, sent[0].Role)
	require.Equal(t, "system text", sent[0].Content)
	require.Equal(t, llm.RoleUser, sent[1].Role)
	require.Equal(t, "role text", sent[1].Content)
}

func TestChatAgentSecondMoverSeeding(t *testing.T) {
	t.Parallel()

	provider := newRecordingProvider("counter")
	a := NewChatAgent(ChatAgentConfig{Name: "BLUE", Position: PositionSecond}, provider, nil)
	ctx := context.Background()

	require.NoError(t, a.InitAgent(ctx, "system text. ", "role text"))

	_, err := a.Step(ctx, "opponent proposal")
	require.NoError(t, err)

	// Second mover: role folded into the system message.
	sent := provider.requests[0]
	require.Len(t, sent, 2)
	require.Equal(t, llm.RoleSystem, sent[0].Role)
	require.Equal(t, "system text. role text", sent[0].Content)
	require.Equal(t, llm.RoleUser, sent[1].Role)
	require.Equal(t, "opponent proposal", sent[1].Content)
}

func TestChatAgentAccumulatesHistory(t *testing.T) {
	t.Parallel()

	provider := newRecordingProvider("first reply", "second reply")
	a := NewChatAgent(ChatAgentConfig{Name: "RED", Position: PositionFirst}, provider, nil)
	ctx := context.Background()

	require.NoError(t, a.InitAgent(ctx, "sys", "role"))

	_, err := a.Step(ctx, "")
	require.NoError(t, err)
	_, err = a.Step(ctx, "their counter")
	require.NoError(t, err)

	// Second request: seed (2) + first assistant reply + new user turn.
	sent := provider.requests[1]
	require.Len(t, sent, 4)
	require.Equal(t, llm.RoleAssistant, sent[2].Role)
	require.Equal(t, "first reply", sent[2].Content)
	require.Equal(t, "their counter", sent[3].Content)
}

func TestChatAgentInitResetsConversation(t *testing.T) {
	t.Parallel()

	provider := newRecordingProvider("r1", "r2")
	a := NewChatAgent(ChatAgentConfig{Name: "RED", Position: PositionFirst}, provider, nil)
	ctx := context.Background()

	require.NoError(t, a.InitAgent(ctx, "sys", "role"))
	_, err := a.Step(ctx, "")
	require.NoError(t, err)

	require.NoError(t, a.InitAgent(ctx, "sys2", "role2"))
	_, err = a.Step(ctx, "")
	require.NoError(t, err)

	sent := provider.requests[1]
	require.Len(t, sent, 2)
	require.Equal(t, "sys2", sent[0].Content)
}

func TestChatAgentSnapshotRestore(t *testing.T) {
	t.Parallel()

	provider := newRecordingProvider("checkpoint reply", "resumed reply")
	a := NewChatAgent(ChatAgentConfig{Name: "RED", Position: PositionFirst}, provider, nil)
	ctx := context.Background()

	require.NoError(t, a.InitAgent(ctx, "sys", "role"))
	_, err := a.Step(ctx, "")
	require.NoError(t, err)

	snap, err := a.Snapshot()
	require.NoError(t, err)

	fresh := NewChatAgent(ChatAgentConfig{Name: "RED", Position: PositionFirst}, provider, nil)
	require.NoError(t, fresh.Restore(snap))

	_, err = fresh.Step(ctx, "next observation")
	require.NoError(t, err)

	// Restored history carries the pre-checkpoint assistant turn.
	sent := provider.requests[1]
	require.Len(t, sent, 4)
	require.Equal(t, "checkpoint reply", sent[2].Content)
}

func TestStatelessAgentDiscardsHistory(t *testing.T) {
	t.Parallel()

	provider := newRecordingProvider("r1", "r2")
	a := NewStatelessAgent(ChatAgentConfig{Name: "BLUE", Position: PositionSecond}, provider, nil)
	ctx := context.Background()

	require.NoError(t, a.InitAgent(ctx, "base ", "prompt"))

	_, err := a.Step(ctx, "first observation")
	require.NoError(t, err)
	_, err = a.Step(ctx, "second observation")
	require.NoError(t, err)

	// Every request carries only the base prompt and the current
	// observation, no accumulated turns.
	for _, sent := range provider.requests {
		require.Len(t, sent, 2)
		require.Equal(t, "base prompt", sent[0].Content)
	}
	require.Equal(t, "second observation", provider.requests[1][1].Content)
}

func TestConversationTokenEstimate(t *testing.T) {
	t.Parallel()

	c := NewConversation()
	require.Zero(t, c.TokenEstimate())

	c.Append(llm.RoleUser, "a somewhat longer negotiation message about prices")
	require.Greater(t, c.TokenEstimate(), 0)
}
