// Package buysell implements the single-item sale scenario: the seller
// (player 0) holds the goods, the buyer (player 1) holds the money, and
// the two haggle over the price until one of them accepts a standing
// proposal or the iteration cap ends the game with no agreement.
package buysell

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BaSui01/negotiarena/engine"
	"github.com/BaSui01/negotiarena/game"
	"github.com/BaSui01/negotiarena/protocol"
)

// Config describes one buy-sell match.
type Config struct {
	SellerName string
	BuyerName  string

	// Item is the traded resource name. Defaults to "X".
	Item string
	// Units is how many units the seller holds. Defaults to 1.
	Units float64

	// SellerCost is the seller's production cost per unit; sales above
	// it are profit.
	SellerCost float64
	// BuyerValuation is the buyer's willingness to pay per unit;
	// purchases below it are profit.
	BuyerValuation float64
	// BuyerMoney is the buyer's starting money. Defaults to 1000.
	BuyerMoney float64

	// Iterations caps the number of turns. Defaults to
	// engine.DefaultIterations.
	Iterations int

	// Behaviour holds optional per-player prompt additions, such as a
	// social stance or a cultural negotiation profile.
	Behaviour [2]string
}

// Game implements engine.Game for the buy-sell scenario.
type Game struct {
	cfg     Config
	schema  *protocol.Schema
	initial [2]game.Resources
	goals   [2]game.Goal
}

// New creates a buy-sell game, applying config defaults.
func New(cfg Config) *Game {
	if cfg.SellerName == "" {
		cfg.SellerName = "SELLER"
	}
	if cfg.BuyerName == "" {
		cfg.BuyerName = "BUYER"
	}
	if cfg.Item == "" {
		cfg.Item = "X"
	}
	if cfg.Units <= 0 {
		cfg.Units = 1
	}
	if cfg.BuyerMoney <= 0 {
		cfg.BuyerMoney = 1000
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = engine.DefaultIterations
	}

	schema := protocol.NewSchema([2]string{cfg.SellerName, cfg.BuyerName})
	schema.RequiredTags = []string{schema.Vocab.Answer}
	// A single item and whole dollars only.
	schema.RequireIntegerAmounts = true

	return &Game{
		cfg:    cfg,
		schema: schema,
		initial: [2]game.Resources{
			game.NewResources(map[string]float64{cfg.Item: cfg.Units}),
			game.NewResources(map[string]float64{game.MoneyToken: cfg.BuyerMoney}),
		},
		goals: [2]game.Goal{
			game.SellerGoal{CostOfProduction: game.NewValuation(map[string]float64{cfg.Item: cfg.SellerCost})},
			game.BuyerGoal{WillingnessToPay: game.NewValuation(map[string]float64{cfg.Item: cfg.BuyerValuation})},
		},
	}
}

func (g *Game) Name() string             { return "buy-sell" }
func (g *Game) Schema() *protocol.Schema { return g.schema }

func (g *Game) playerName(p int) string {
	if p == 0 {
		return g.cfg.SellerName
	}
	return g.cfg.BuyerName
}

// SystemPrompt renders the full game briefing for player p: setup,
// private objective, and the answer format the parser expects.
func (g *Game) SystemPrompt(p int) string {
	name := g.playerName(p)

	var objective string
	if p == 0 {
		objective = fmt.Sprintf(
			"You are the seller. Producing each unit of %s cost you %s. Selling above that cost is profit; never sell below it.",
			g.cfg.Item, game.Resources{game.MoneyToken: g.cfg.SellerCost})
	} else {
		objective = fmt.Sprintf(
			"You are the buyer. Each unit of %s is worth %s to you. Buying below that value is profit; never pay more.",
			g.cfg.Item, game.Resources{game.MoneyToken: g.cfg.BuyerValuation})
	}

	sections := []string{
		fmt.Sprintf("You are %s, playing a negotiation game against one other player.", name),
		"GAME SETUP:\n" +
			fmt.Sprintf("- Resources in the game: %s, %s\n", g.cfg.Item, game.MoneyToken) +
			fmt.Sprintf("- Your initial resources: %s\n", g.initial[p]) +
			fmt.Sprintf("- The game lasts at most %d turns; with no accepted trade by then, nobody trades anything.", g.cfg.Iterations),
		"YOUR OBJECTIVE:\n" + objective,
		"RULES:\n" +
			fmt.Sprintf("- Use %s when suggesting a trade, %s to accept the opponent's standing proposal, %s to reject it.\n",
				protocol.AnswerProposal, protocol.AnswerAccept, protocol.AnswerRefuse) +
			"- A trade happens only when one player explicitly accepts; proposals alone move nothing.\n" +
			"- All quantities are whole numbers.",
		"RESPONSE FORMAT:\nYou must respond using exactly these tags:\n" + g.schema.ResponseFormat(),
	}
	if g.cfg.Behaviour[p] != "" {
		sections = append(sections, g.cfg.Behaviour[p])
	}
	return strings.Join(sections, "\n\n")
}

func (g *Game) RolePrompt(p int) string {
	return fmt.Sprintf("You are Player %s.", g.playerName(p))
}

func (g *Game) Settings() map[string]string {
	return map[string]string{
		"player_0":                              g.cfg.SellerName,
		"player_1":                              g.cfg.BuyerName,
		"initial_resources_" + g.cfg.SellerName: g.initial[0].String(),
		"initial_resources_" + g.cfg.BuyerName:  g.initial[1].String(),
		"seller_cost":                           strconv.FormatFloat(g.cfg.SellerCost, 'f', -1, 64),
		"buyer_valuation":                       strconv.FormatFloat(g.cfg.BuyerValuation, 'f', -1, 64),
		"iterations":                            strconv.Itoa(g.cfg.Iterations),
	}
}

func (g *Game) GameOver(s *engine.State) bool {
	return engine.EndsOnTag{Iterations: g.cfg.Iterations}.Done(s)
}

// Summarize settles the game: an accepting final turn commits the most
// recent standing proposal, anything else leaves both players with
// their initial resources.
func (g *Game) Summarize(s *engine.State) map[string]string {
	final := [2]game.Resources{g.initial[0].Clone(), g.initial[1].Clone()}
	summary := map[string]string{"result": "no agreement"}

	if trade := s.CommittedTrade(); trade != nil {
		if applied, err := trade.Apply(g.initial); err == nil {
			final = applied
			summary["result"] = "agreement"
			summary["trade"] = trade.String()
			summary["price"] = strconv.FormatFloat(trade.Gives[1].Get(game.MoneyToken), 'f', -1, 64)
		}
	}

	for p := 0; p < 2; p++ {
		name := g.playerName(p)
		summary["final_resources_"+name] = final[p].String()
		payoff := g.goals[p].Payoff(final[p].Delta(g.initial[p]))
		summary["payoff_"+name] = strconv.FormatFloat(payoff, 'f', -1, 64)
	}
	return summary
}
