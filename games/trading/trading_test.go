package trading

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BaSui01/negotiarena/agent"
	"github.com/BaSui01/negotiarena/engine"
	"github.com/BaSui01/negotiarena/game"
	"github.com/BaSui01/negotiarena/llm"
	"github.com/BaSui01/negotiarena/protocol"
)

func response(name, answer, trade, message string) string {
	return fmt.Sprintf(
		"<my name> %s </my name>\n<reason> thinking </reason>\n<player answer> %s </player answer>\n<newly proposed trade> %s </newly proposed trade>\n<message> %s </message>",
		name, answer, trade, message,
	)
}

func newPlayer(t *testing.T, name string, pos agent.Position, responses ...string) agent.Agent {
	t.Helper()
	return agent.NewChatAgent(agent.ChatAgentConfig{
		Name:     name,
		Position: pos,
		Model:    "scripted",
	}, llm.NewScriptedProvider(responses...), nil)
}

func newTestGame(iterations int) *Game {
	return New(Config{
		PlayerNames: [2]string{"RED", "BLUE"},
		Initial: [2]game.Resources{
			{"Wood": 5, "Stone": 1},
			{"Wood": 1, "Stone": 5},
		},
		Goals: [2]game.ResourceGoal{
			{Target: game.Resources{"Stone": 3}},
			{Target: game.Resources{"Wood": 3}},
		},
		Iterations: iterations,
	})
}

func TestExchangeSatisfiesBothGoals(t *testing.T) {
	t.Parallel()

	g := newTestGame(8)

	red := newPlayer(t, "RED", agent.PositionFirst,
		response("RED", protocol.AnswerProposal,
			"Player RED Gives Wood: 3 | Player BLUE Gives Stone: 3", "wood for stone?"),
	)
	blue := newPlayer(t, "BLUE", agent.PositionSecond,
		response("BLUE", protocol.AnswerAccept, "NONE", "works for me"),
	)

	eng := engine.New(g, [2]agent.Agent{red, blue}, engine.Config{Iterations: 8}, nil, nil)
	state, err := eng.Run(context.Background())
	require.NoError(t, err)

	summary := state.Summary()
	require.Equal(t, "agreement", summary["result"])
	require.Equal(t, "true", summary["goal_satisfied_RED"])
	require.Equal(t, "true", summary["goal_satisfied_BLUE"])

	redFinal, err := game.ParseResources(summary["final_resources_RED"])
	require.NoError(t, err)
	require.True(t, redFinal.Equal(game.Resources{"Wood": 2, "Stone": 4}), "red final: %s", redFinal)
}

func TestNoAgreementReportsGoalFailure(t *testing.T) {
	t.Parallel()

	g := newTestGame(2)

	red := newPlayer(t, "RED", agent.PositionFirst,
		response("RED", protocol.AnswerProposal,
			"Player RED Gives Wood: 1 | Player BLUE Gives Stone: 4", "bad deal for you"),
	)
	blue := newPlayer(t, "BLUE", agent.PositionSecond,
		response("BLUE", protocol.AnswerRefuse, "NONE", "no"),
	)

	eng := engine.New(g, [2]agent.Agent{red, blue}, engine.Config{Iterations: 2}, nil, nil)
	state, err := eng.Run(context.Background())
	require.NoError(t, err)

	summary := state.Summary()
	require.Equal(t, "no agreement", summary["result"])
	require.Equal(t, "false", summary["goal_satisfied_RED"])
	require.Equal(t, "false", summary["goal_satisfied_BLUE"])
}

func TestOverdrawnAcceptanceDoesNotApply(t *testing.T) {
	t.Parallel()

	g := newTestGame(8)

	// RED proposes giving more stone than BLUE holds.
	red := newPlayer(t, "RED", agent.PositionFirst,
		response("RED", protocol.AnswerProposal,
			"Player RED Gives Wood: 1 | Player BLUE Gives Stone: 9", "nine stone"),
	)
	blue := newPlayer(t, "BLUE", agent.PositionSecond,
		response("BLUE", protocol.AnswerAccept, "NONE", "sure, somehow"),
	)

	eng := engine.New(g, [2]agent.Agent{red, blue}, engine.Config{Iterations: 8}, nil, nil)
	state, err := eng.Run(context.Background())
	require.NoError(t, err)

	// The trade cannot be applied, so holdings stay untouched.
	summary := state.Summary()
	require.Equal(t, "no agreement", summary["result"])

	redFinal, err := game.ParseResources(summary["final_resources_RED"])
	require.NoError(t, err)
	require.True(t, redFinal.Equal(game.Resources{"Wood": 5, "Stone": 1}))
}
