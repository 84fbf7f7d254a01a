// Package ultimatum implements the ultimatum split: the proposer
// (player 0) holds the pot and offers the responder (player 1) a share.
// The responder accepting the standing split commits it; running out of
// turns leaves both players with nothing.
package ultimatum

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BaSui01/negotiarena/engine"
	"github.com/BaSui01/negotiarena/game"
	"github.com/BaSui01/negotiarena/protocol"
)

// Config describes one ultimatum match.
type Config struct {
	ProposerName  string
	ResponderName string

	// Pot is the amount of money being split. Defaults to 100.
	Pot float64

	// Iterations caps the number of turns. Defaults to
	// engine.DefaultIterations.
	Iterations int

	// Behaviour holds optional per-player prompt additions.
	Behaviour [2]string
}

// Game implements engine.Game for the ultimatum scenario.
type Game struct {
	cfg    Config
	schema *protocol.Schema
}

// New creates an ultimatum game, applying config defaults.
func New(cfg Config) *Game {
	if cfg.ProposerName == "" {
		cfg.ProposerName = "PROPOSER"
	}
	if cfg.ResponderName == "" {
		cfg.ResponderName = "RESPONDER"
	}
	if cfg.Pot <= 0 {
		cfg.Pot = 100
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = engine.DefaultIterations
	}

	schema := protocol.NewSchema([2]string{cfg.ProposerName, cfg.ResponderName})
	schema.RequiredTags = []string{schema.Vocab.Answer}
	schema.RequireIntegerAmounts = true

	return &Game{cfg: cfg, schema: schema}
}

func (g *Game) Name() string             { return "ultimatum" }
func (g *Game) Schema() *protocol.Schema { return g.schema }

func (g *Game) playerName(p int) string {
	if p == 0 {
		return g.cfg.ProposerName
	}
	return g.cfg.ResponderName
}

func (g *Game) SystemPrompt(p int) string {
	name := g.playerName(p)

	var role string
	if p == 0 {
		role = fmt.Sprintf(
			"You hold the full pot of %s %.0f. Propose how much of it to give the other player; you keep the rest.",
			game.MoneyToken, g.cfg.Pot)
	} else {
		role = "You hold nothing. You may accept the standing split or refuse and wait for a better one."
	}

	sections := []string{
		fmt.Sprintf("You are %s, playing an ultimatum game against one other player.", name),
		"GAME SETUP:\n" +
			fmt.Sprintf("- The pot is %s: %.0f\n", game.MoneyToken, g.cfg.Pot) +
			fmt.Sprintf("- The game lasts at most %d turns. If no split is accepted by then, BOTH players get nothing.", g.cfg.Iterations),
		"YOUR ROLE:\n" + role,
		"RULES:\n" +
			fmt.Sprintf("- Use %s when suggesting a split, %s to accept the opponent's standing split, %s to reject it.\n",
				protocol.AnswerProposal, protocol.AnswerAccept, protocol.AnswerRefuse) +
			"- A split happens only when one player explicitly accepts.\n" +
			"- All amounts are whole numbers.",
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
		"player_0":   g.cfg.ProposerName,
		"player_1":   g.cfg.ResponderName,
		"pot":        strconv.FormatFloat(g.cfg.Pot, 'f', -1, 64),
		"iterations": strconv.Itoa(g.cfg.Iterations),
	}
}

func (g *Game) GameOver(s *engine.State) bool {
	return engine.EndsOnTag{Iterations: g.cfg.Iterations}.Done(s)
}

// Summarize settles the split. No accepted split means both players end
// with nothing, including the proposer: an expired pot is forfeit, not
// kept.
func (g *Game) Summarize(s *engine.State) map[string]string {
	summary := map[string]string{"result": "no agreement"}
	final := [2]game.Resources{{}, {}}

	initial := [2]game.Resources{
		{game.MoneyToken: g.cfg.Pot},
		{},
	}
	if trade := s.CommittedTrade(); trade != nil {
		if applied, err := trade.Apply(initial); err == nil {
			final = applied
			summary["result"] = "agreement"
			summary["trade"] = trade.String()
		}
	}

	goal := game.UltimatumGoal{}
	for p := 0; p < 2; p++ {
		name := g.playerName(p)
		summary["final_resources_"+name] = final[p].String()
		summary["payoff_"+name] = strconv.FormatFloat(goal.Payoff(final[p]), 'f', -1, 64)
	}
	return summary
}
