package buysell

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

func TestSaleCommitsOnAccept(t *testing.T) {
	t.Parallel()

	g := New(Config{
		SellerName:     "SELLER",
		BuyerName:      "BUYER",
		SellerCost:     40,
		BuyerValuation: 60,
		BuyerMoney:     1000,
		Iterations:     8,
	})

	seller := newPlayer(t, "SELLER", agent.PositionFirst,
		response("SELLER", protocol.AnswerProposal,
			"Player SELLER Gives X: 1 | Player BUYER Gives Dollars: 55", "55 and it is yours"),
	)
	buyer := newPlayer(t, "BUYER", agent.PositionSecond,
		response("BUYER", protocol.AnswerAccept, "NONE", "deal"),
	)

	eng := engine.New(g, [2]agent.Agent{seller, buyer}, engine.Config{Iterations: 8}, nil, nil)
	state, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, state.Turns(), 2)
	summary := state.Summary()
	require.Equal(t, "agreement", summary["result"])
	require.Equal(t, "55", summary["price"])

	sellerFinal, err := game.ParseResources(summary["final_resources_SELLER"])
	require.NoError(t, err)
	require.True(t, sellerFinal.Equal(game.Resources{game.MoneyToken: 55}), "seller final: %s", sellerFinal)

	buyerFinal, err := game.ParseResources(summary["final_resources_BUYER"])
	require.NoError(t, err)
	require.True(t, buyerFinal.Equal(game.Resources{"X": 1, game.MoneyToken: 945}), "buyer final: %s", buyerFinal)

	// Seller profit 55-40, buyer surplus 60-55.
	require.Equal(t, "15", summary["payoff_SELLER"])
	require.Equal(t, "5", summary["payoff_BUYER"])
}

func TestNoAgreementAtCapLeavesResourcesUntouched(t *testing.T) {
	t.Parallel()

	g := New(Config{
		SellerCost:     40,
		BuyerValuation: 60,
		Iterations:     4,
	})

	seller := newPlayer(t, "SELLER", agent.PositionFirst,
		response("SELLER", protocol.AnswerProposal,
			"Player SELLER Gives X: 1 | Player BUYER Gives Dollars: 99", "99, final offer"),
	)
	buyer := newPlayer(t, "BUYER", agent.PositionSecond,
		response("BUYER", protocol.AnswerRefuse, "NONE", "far too much"),
	)

	eng := engine.New(g, [2]agent.Agent{seller, buyer}, engine.Config{Iterations: 4}, nil, nil)
	state, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, state.Turns(), 4)
	summary := state.Summary()
	require.Equal(t, "no agreement", summary["result"])

	sellerFinal, err := game.ParseResources(summary["final_resources_SELLER"])
	require.NoError(t, err)
	require.True(t, sellerFinal.Equal(game.Resources{"X": 1}))

	buyerFinal, err := game.ParseResources(summary["final_resources_BUYER"])
	require.NoError(t, err)
	require.True(t, buyerFinal.Equal(game.Resources{game.MoneyToken: 1000}))

	require.Equal(t, "0", summary["payoff_SELLER"])
	require.Equal(t, "0", summary["payoff_BUYER"])
}

func TestAcceptWithoutStandingProposalCommitsNothing(t *testing.T) {
	t.Parallel()

	g := New(Config{SellerCost: 40, BuyerValuation: 60, Iterations: 8})

	// The seller opens with an acceptance of nothing.
	seller := newPlayer(t, "SELLER", agent.PositionFirst,
		response("SELLER", protocol.AnswerAccept, "NONE", "I accept"),
	)
	buyer := newPlayer(t, "BUYER", agent.PositionSecond, "unused")

	eng := engine.New(g, [2]agent.Agent{seller, buyer}, engine.Config{Iterations: 8}, nil, nil)
	state, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, "no agreement", state.Summary()["result"])
}

func TestFractionalPriceRejectedByParser(t *testing.T) {
	t.Parallel()

	g := New(Config{SellerCost: 40, BuyerValuation: 60, Iterations: 8})

	seller := newPlayer(t, "SELLER", agent.PositionFirst,
		response("SELLER", protocol.AnswerProposal,
			"Player SELLER Gives X: 1 | Player BUYER Gives Dollars: 54.5", "fifty four fifty"),
	)
	buyer := newPlayer(t, "BUYER", agent.PositionSecond, "unused")

	eng := engine.New(g, [2]agent.Agent{seller, buyer}, engine.Config{Iterations: 8}, nil, nil)
	_, err := eng.Run(context.Background())
	require.Error(t, err)

	var parseErr *protocol.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestSystemPromptCarriesFormatAndObjective(t *testing.T) {
	t.Parallel()

	g := New(Config{
		SellerCost:     40,
		BuyerValuation: 60,
		Behaviour:      [2]string{"Negotiate aggressively.", ""},
	})

	sellerPrompt := g.SystemPrompt(0)
	require.Contains(t, sellerPrompt, "You are SELLER")
	require.Contains(t, sellerPrompt, "cost you Dollars: 40")
	require.Contains(t, sellerPrompt, "<player answer>")
	require.Contains(t, sellerPrompt, "Negotiate aggressively.")

	buyerPrompt := g.SystemPrompt(1)
	require.Contains(t, buyerPrompt, "worth Dollars: 60")
	require.NotContains(t, buyerPrompt, "Negotiate aggressively.")
	require.NotContains(t, buyerPrompt, "cost you Dollars: 40")
}
