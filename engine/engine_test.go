package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BaSui01/negotiarena/agent"
	"github.com/BaSui01/negotiarena/llm"
	"github.com/BaSui01/negotiarena/protocol"
)

// haggleGame is a minimal two-player trading scenario for exercising the
// turn loop.
type haggleGame struct {
	iterations int
	schema     *protocol.Schema
}

func newHaggleGame(iterations int) *haggleGame {
	s := protocol.NewSchema([2]string{"RED", "BLUE"})
	s.RequiredTags = []string{s.Vocab.Answer}
	return &haggleGame{iterations: iterations, schema: s}
}

func (g *haggleGame) Name() string              { return "haggle" }
func (g *haggleGame) Schema() *protocol.Schema  { return g.schema }
func (g *haggleGame) SystemPrompt(p int) string { return "You are negotiating a trade." }

func (g *haggleGame) RolePrompt(p int) string {
	if p == 0 {
		return "You are RED."
	}
	return "You are BLUE."
}

func (g *haggleGame) Settings() map[string]string {
	return map[string]string{"iterations": strconv.Itoa(g.iterations)}
}

func (g *haggleGame) GameOver(s *State) bool {
	return EndsOnTag{Iterations: g.iterations}.Done(s)
}

func (g *haggleGame) Summarize(s *State) map[string]string {
	last := s.LastTurn()
	if last == nil || last.Message == nil || last.Message.Answer != protocol.AnswerAccept {
		return map[string]string{"result": "no agreement"}
	}
	summary := map[string]string{"result": "agreement"}
	for _, turn := range s.Turns() {
		if turn.Message != nil && turn.Message.Trade != nil {
			summary["final_trade"] = turn.Message.Trade.String()
		}
	}
	return summary
}

func response(name, reasoning, answer, trade, message string) string {
	return fmt.Sprintf(
		"<my name> %s </my name>\n<reason> %s </reason>\n<player answer> %s </player answer>\n<newly proposed trade> %s </newly proposed trade>\n<message> %s </message>",
		name, reasoning, answer, trade, message,
	)
}

func TestCommittedTrade(t *testing.T) {
	t.Parallel()

	schema := protocol.NewSchema([2]string{"RED", "BLUE"})
	turnEntry := func(raw string) Entry {
		msg, err := schema.Parse(raw)
		require.NoError(t, err)
		return Entry{Kind: EntryTurn, Message: msg}
	}

	offer1 := "Player RED Gives X: 1 | Player BLUE Gives Dollars: 60"
	offer2 := "Player RED Gives X: 1 | Player BLUE Gives Dollars: 55"

	t.Run("accept commits most recent standing proposal", func(t *testing.T) {
		t.Parallel()
		s := &State{Entries: []Entry{
			{Kind: EntryStart},
			turnEntry(response("RED", "anchor", protocol.AnswerProposal, offer1, "60 or nothing")),
			turnEntry(response("BLUE", "counter", protocol.AnswerProposal, offer2, "55 is fair")),
			turnEntry(response("RED", "fine", protocol.AnswerAccept, "NONE", "deal")),
		}}
		trade := s.CommittedTrade()
		require.NotNil(t, trade)
		require.Equal(t, offer2, trade.String())
	})

	t.Run("no acceptance commits nothing", func(t *testing.T) {
		t.Parallel()
		s := &State{Entries: []Entry{
			{Kind: EntryStart},
			turnEntry(response("RED", "anchor", protocol.AnswerProposal, offer1, "60 or nothing")),
		}}
		require.Nil(t, s.CommittedTrade())
	})

	t.Run("accept with empty table commits nothing", func(t *testing.T) {
		t.Parallel()
		s := &State{Entries: []Entry{
			{Kind: EntryStart},
			turnEntry(response("BLUE", "eager", protocol.AnswerAccept, "NONE", "I accept")),
		}}
		require.Nil(t, s.CommittedTrade())
	})
}

func newTestPlayer(t *testing.T, name string, pos agent.Position, responses ...string) agent.Agent {
	t.Helper()
	provider := llm.NewScriptedProvider(responses...)
	return agent.NewChatAgent(agent.ChatAgentConfig{
		Name:     name,
		Position: pos,
		Model:    "scripted",
	}, provider, nil)
}

func TestRunTerminatesOnAccept(t *testing.T) {
	t.Parallel()

	red := newTestPlayer(t, "RED", agent.PositionFirst,
		response("RED", "open high", protocol.AnswerProposal,
			"Player RED Gives X: 1 | Player BLUE Gives Dollars: 60", "I want 60 dollars"),
	)
	blue := newTestPlayer(t, "BLUE", agent.PositionSecond,
		response("BLUE", "good enough", protocol.AnswerAccept, "NONE", "Deal."),
	)

	g := newHaggleGame(8)
	eng := New(g, [2]agent.Agent{red, blue}, Config{Iterations: 8}, nil, nil)

	state, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, state.Entries, 4)
	require.Equal(t, EntryStart, state.Entries[0].Kind)
	require.Equal(t, EntryTurn, state.Entries[1].Kind)
	require.Equal(t, EntryTurn, state.Entries[2].Kind)
	require.Equal(t, EntryEnd, state.Entries[3].Kind)

	require.True(t, state.Ended())
	require.Equal(t, "agreement", state.Summary()["result"])
	require.Contains(t, state.Summary()["final_trade"], "Dollars: 60")

	// The opener sees nothing; the responder sees only public fields.
	require.Empty(t, state.Entries[1].Observation)
	require.Contains(t, state.Entries[2].Observation, "Opponent's proposal:")
	require.Contains(t, state.Entries[2].Observation, "I want 60 dollars")
}

func TestSecretFieldsNeverReachOpponent(t *testing.T) {
	t.Parallel()

	secretPlan := "my true floor is 40, never reveal it"
	red := newTestPlayer(t, "RED", agent.PositionFirst,
		response("RED", secretPlan, protocol.AnswerProposal,
			"Player RED Gives X: 1 | Player BLUE Gives Dollars: 60", "Take it or leave it"),
	)
	blue := newTestPlayer(t, "BLUE", agent.PositionSecond,
		response("BLUE", "fine", protocol.AnswerAccept, "NONE", "Agreed"),
	)

	g := newHaggleGame(8)
	eng := New(g, [2]agent.Agent{red, blue}, Config{Iterations: 8}, nil, nil)

	state, err := eng.Run(context.Background())
	require.NoError(t, err)

	responderView := state.Entries[2].Observation
	require.NotContains(t, responderView, secretPlan)
	require.NotContains(t, responderView, "my true floor")

	// The secret group still lands in the state log for the operator.
	require.Contains(t, state.Entries[1].Secret["reason"], "my true floor")
}

func TestIterationCapStopsExactly(t *testing.T) {
	t.Parallel()

	stubborn := func(name string) string {
		return response(name, "hold firm", protocol.AnswerProposal,
			"Player RED Gives X: 1 | Player BLUE Gives Dollars: 99", "no movement")
	}
	red := newTestPlayer(t, "RED", agent.PositionFirst, stubborn("RED"))
	blue := newTestPlayer(t, "BLUE", agent.PositionSecond, stubborn("BLUE"))

	g := newHaggleGame(4)
	eng := New(g, [2]agent.Agent{red, blue}, Config{Iterations: 4}, nil, nil)

	state, err := eng.Run(context.Background())
	require.NoError(t, err)

	turns := state.Turns()
	require.Len(t, turns, 4)
	for i, turn := range turns {
		require.Equal(t, i+1, turn.Iteration)
		require.Equal(t, i%2, turn.Turn)
	}
	require.Equal(t, "no agreement", state.Summary()["result"])
}

func TestGameOverIsIdempotent(t *testing.T) {
	t.Parallel()

	red := newTestPlayer(t, "RED", agent.PositionFirst,
		response("RED", "r", protocol.AnswerProposal, "NONE", "hello"),
	)
	blue := newTestPlayer(t, "BLUE", agent.PositionSecond,
		response("BLUE", "b", protocol.AnswerAccept, "NONE", "done"),
	)

	g := newHaggleGame(8)
	eng := New(g, [2]agent.Agent{red, blue}, Config{Iterations: 8}, nil, nil)

	state, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.True(t, g.GameOver(state))
	require.True(t, g.GameOver(state))
}

func TestUnparseableResponseIsFatal(t *testing.T) {
	t.Parallel()

	red := newTestPlayer(t, "RED", agent.PositionFirst,
		"I refuse to follow any answer format.",
	)
	blue := newTestPlayer(t, "BLUE", agent.PositionSecond, "unused")

	g := newHaggleGame(8)
	eng := New(g, [2]agent.Agent{red, blue}, Config{Iterations: 8}, nil, nil)

	_, err := eng.Run(context.Background())
	require.Error(t, err)

	var parseErr *protocol.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "I refuse to follow any answer format.", parseErr.Raw)

	// No turn was recorded for the bad response.
	require.Nil(t, eng.State().LastTurn())
}

func TestResumeReplaysToSameOutcome(t *testing.T) {
	t.Parallel()

	red := newTestPlayer(t, "RED", agent.PositionFirst,
		response("RED", "open", protocol.AnswerProposal,
			"Player RED Gives X: 1 | Player BLUE Gives Dollars: 60", "60 or nothing"),
		response("RED", "close enough", protocol.AnswerAccept, "NONE", "sold"),
	)
	blue := newTestPlayer(t, "BLUE", agent.PositionSecond,
		response("BLUE", "counter", protocol.AnswerProposal,
			"Player RED Gives X: 1 | Player BLUE Gives Dollars: 55", "55 is fair"),
	)

	g := newHaggleGame(8)
	eng := New(g, [2]agent.Agent{red, blue}, Config{Iterations: 8}, nil, nil)

	state, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "agreement", state.Summary()["result"])

	var originalRaw []string
	for _, turn := range state.Turns() {
		originalRaw = append(originalRaw, turn.Raw)
	}
	require.Len(t, originalRaw, 3)
	originalSummary := state.Summary()

	// Resume from iteration 3: iteration 2 is replayed from the record
	// and only RED's final turn hits the provider again (the script
	// repeats its last response).
	resumed, err := eng.Resume(context.Background(), 3)
	require.NoError(t, err)

	var resumedRaw []string
	for _, turn := range resumed.Turns() {
		resumedRaw = append(resumedRaw, turn.Raw)
	}
	require.Equal(t, originalRaw, resumedRaw)
	require.Equal(t, originalSummary, resumed.Summary())
}

func TestResumeFromSavedState(t *testing.T) {
	t.Parallel()

	script := [][]string{
		{
			response("RED", "open", protocol.AnswerProposal,
				"Player RED Gives X: 1 | Player BLUE Gives Dollars: 60", "60 or nothing"),
			response("RED", "ok", protocol.AnswerAccept, "NONE", "sold"),
		},
		{
			response("BLUE", "counter", protocol.AnswerProposal,
				"Player RED Gives X: 1 | Player BLUE Gives Dollars: 55", "55 is fair"),
		},
	}

	g := newHaggleGame(8)
	first := New(g, [2]agent.Agent{
		newTestPlayer(t, "RED", agent.PositionFirst, script[0]...),
		newTestPlayer(t, "BLUE", agent.PositionSecond, script[1]...),
	}, Config{Iterations: 8}, nil, nil)

	state, err := first.Run(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, state.Save(path))

	loaded, err := LoadState(path)
	require.NoError(t, err)

	// A brand-new engine over fresh agents picks the run back up; agent
	// conversations come from the recorded snapshots, not from replaying
	// the providers.
	second := New(newHaggleGame(8), [2]agent.Agent{
		newTestPlayer(t, "RED", agent.PositionFirst, script[0][1]),
		newTestPlayer(t, "BLUE", agent.PositionSecond, script[1][0]),
	}, Config{Iterations: 8}, nil, nil)
	require.NoError(t, second.Restore(loaded))

	resumed, err := second.Resume(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, "agreement", resumed.Summary()["result"])
	require.Len(t, resumed.Turns(), 3)
	require.Contains(t, resumed.Summary()["final_trade"], "Dollars: 55")
}

func TestInteractionLogWritten(t *testing.T) {
	t.Parallel()

	red := newTestPlayer(t, "RED", agent.PositionFirst,
		response("RED", "secret thinking", protocol.AnswerProposal,
			"Player RED Gives X: 1 | Player BLUE Gives Dollars: 60", "offer"),
	)
	blue := newTestPlayer(t, "BLUE", agent.PositionSecond,
		response("BLUE", "fine", protocol.AnswerAccept, "NONE", "deal"),
	)

	dir := t.TempDir()
	g := newHaggleGame(8)
	eng := New(g, [2]agent.Agent{red, blue}, Config{Iterations: 8, LogDir: dir}, nil, nil)

	_, err := eng.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "interaction.log"))
	require.NoError(t, err)
	log := string(data)

	require.Contains(t, log, "Game: haggle")
	require.Contains(t, log, "Settings")
	require.Contains(t, log, "Iteration 1 (RED)")
	require.Contains(t, log, "secret thinking")
	require.Contains(t, log, "result: agreement")
}

func TestRunRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	stubborn := response("RED", "r", protocol.AnswerProposal, "NONE", "again")
	red := newTestPlayer(t, "RED", agent.PositionFirst, stubborn)
	blue := newTestPlayer(t, "BLUE", agent.PositionSecond, stubborn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := newHaggleGame(8)
	eng := New(g, [2]agent.Agent{red, blue}, Config{Iterations: 8}, nil, nil)

	_, err := eng.Run(ctx)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestObservationRendersOnlyPublicGroup(t *testing.T) {
	t.Parallel()

	red := newTestPlayer(t, "RED", agent.PositionFirst,
		response("RED", "hidden", protocol.AnswerProposal,
			"Player RED Gives X: 1 | Player BLUE Gives Dollars: 60", "public words"),
	)
	blue := newTestPlayer(t, "BLUE", agent.PositionSecond,
		response("BLUE", "b", protocol.AnswerAccept, "NONE", "ok"),
	)

	g := newHaggleGame(8)
	eng := New(g, [2]agent.Agent{red, blue}, Config{Iterations: 8}, nil, nil)

	state, err := eng.Run(context.Background())
	require.NoError(t, err)

	obs := state.Entries[2].Observation
	for _, line := range strings.Split(obs, "\n") {
		require.True(t,
			strings.HasPrefix(line, "Opponent says:") ||
				strings.HasPrefix(line, "Opponent's proposal:") ||
				strings.HasPrefix(line, "Opponent's answer:"),
			"unexpected observation line: %q", line)
	}
}
