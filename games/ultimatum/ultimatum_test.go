package ultimatum

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

func TestAcceptedSplitCommits(t *testing.T) {
	t.Parallel()

	g := New(Config{Pot: 100, Iterations: 8})

	proposer := newPlayer(t, "PROPOSER", agent.PositionFirst,
		response("PROPOSER", protocol.AnswerProposal,
			"Player PROPOSER Gives Dollars: 30 | Player RESPONDER Gives", "30 for you"),
	)
	responder := newPlayer(t, "RESPONDER", agent.PositionSecond,
		response("RESPONDER", protocol.AnswerAccept, "NONE", "fine"),
	)

	eng := engine.New(g, [2]agent.Agent{proposer, responder}, engine.Config{Iterations: 8}, nil, nil)
	state, err := eng.Run(context.Background())
	require.NoError(t, err)

	summary := state.Summary()
	require.Equal(t, "agreement", summary["result"])

	proposerFinal, err := game.ParseResources(summary["final_resources_PROPOSER"])
	require.NoError(t, err)
	require.True(t, proposerFinal.Equal(game.Resources{game.MoneyToken: 70}), "proposer final: %s", proposerFinal)

	responderFinal, err := game.ParseResources(summary["final_resources_RESPONDER"])
	require.NoError(t, err)
	require.True(t, responderFinal.Equal(game.Resources{game.MoneyToken: 30}), "responder final: %s", responderFinal)

	require.Equal(t, "70", summary["payoff_PROPOSER"])
	require.Equal(t, "30", summary["payoff_RESPONDER"])
}

func TestExpiredPotIsForfeit(t *testing.T) {
	t.Parallel()

	g := New(Config{Pot: 100, Iterations: 2})

	proposer := newPlayer(t, "PROPOSER", agent.PositionFirst,
		response("PROPOSER", protocol.AnswerProposal,
			"Player PROPOSER Gives Dollars: 1 | Player RESPONDER Gives", "one dollar, take it"),
	)
	responder := newPlayer(t, "RESPONDER", agent.PositionSecond,
		response("RESPONDER", protocol.AnswerRefuse, "NONE", "insulting"),
	)

	eng := engine.New(g, [2]agent.Agent{proposer, responder}, engine.Config{Iterations: 2}, nil, nil)
	state, err := eng.Run(context.Background())
	require.NoError(t, err)

	summary := state.Summary()
	require.Equal(t, "no agreement", summary["result"])
	// With no accepted split both players walk away with nothing,
	// including the proposer who held the pot.
	require.Equal(t, "0", summary["payoff_PROPOSER"])
	require.Equal(t, "0", summary["payoff_RESPONDER"])
	require.Empty(t, summary["final_resources_PROPOSER"])
	require.Empty(t, summary["final_resources_RESPONDER"])
}
