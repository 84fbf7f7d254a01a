// Package trading implements the multi-resource exchange scenario: both
// players hold baskets of resources and trade toward private target
// allocations. An accepted proposal commits the exchange; the summary
// records whether each player reached its goal.
package trading

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BaSui01/negotiarena/engine"
	"github.com/BaSui01/negotiarena/game"
	"github.com/BaSui01/negotiarena/protocol"
)

// Config describes one trading match.
type Config struct {
	PlayerNames [2]string

	// Initial holds each player's starting basket.
	Initial [2]game.Resources
	// Goals holds each player's private target allocation.
	Goals [2]game.ResourceGoal

	// Iterations caps the number of turns. Defaults to
	// engine.DefaultIterations.
	Iterations int

	// Behaviour holds optional per-player prompt additions.
	Behaviour [2]string
}

// Game implements engine.Game for the trading scenario.
type Game struct {
	cfg    Config
	schema *protocol.Schema
}

// New creates a trading game, applying config defaults.
func New(cfg Config) *Game {
	if cfg.PlayerNames[0] == "" {
		cfg.PlayerNames[0] = "RED"
	}
	if cfg.PlayerNames[1] == "" {
		cfg.PlayerNames[1] = "BLUE"
	}
	for p := 0; p < 2; p++ {
		if cfg.Initial[p] == nil {
			cfg.Initial[p] = game.Resources{}
		}
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = engine.DefaultIterations
	}

	schema := protocol.NewSchema(cfg.PlayerNames)
	schema.RequiredTags = []string{schema.Vocab.Answer}
	schema.RequireIntegerAmounts = true

	return &Game{cfg: cfg, schema: schema}
}

func (g *Game) Name() string             { return "trading" }
func (g *Game) Schema() *protocol.Schema { return g.schema }

func (g *Game) SystemPrompt(p int) string {
	name := g.cfg.PlayerNames[p]

	seen := map[string]bool{}
	var inGame []string
	for q := 0; q < 2; q++ {
		for _, k := range g.cfg.Initial[q].Keys() {
			if !seen[k] {
				seen[k] = true
				inGame = append(inGame, k)
			}
		}
	}

	sections := []string{
		fmt.Sprintf("You are %s, playing a resource trading game against one other player.", name),
		"GAME SETUP:\n" +
			fmt.Sprintf("- Resources in the game: %s\n", strings.Join(inGame, ", ")) +
			fmt.Sprintf("- Your initial resources: %s\n", g.cfg.Initial[p]) +
			"- The other player holds different resources and has a goal of their own.\n" +
			fmt.Sprintf("- The game lasts at most %d turns; with no accepted trade by then, nobody trades anything.", g.cfg.Iterations),
		"YOUR OBJECTIVE:\n" +
			fmt.Sprintf("End the game holding at least: %s. Your goal is private; reveal it only if that helps you.", g.cfg.Goals[p].Target),
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
	return fmt.Sprintf("You are Player %s.", g.cfg.PlayerNames[p])
}

func (g *Game) Settings() map[string]string {
	settings := map[string]string{
		"player_0":   g.cfg.PlayerNames[0],
		"player_1":   g.cfg.PlayerNames[1],
		"iterations": strconv.Itoa(g.cfg.Iterations),
	}
	for p := 0; p < 2; p++ {
		name := g.cfg.PlayerNames[p]
		settings["initial_resources_"+name] = g.cfg.Initial[p].String()
		settings["goal_"+name] = g.cfg.Goals[p].Target.String()
	}
	return settings
}

func (g *Game) GameOver(s *engine.State) bool {
	return engine.EndsOnTag{Iterations: g.cfg.Iterations}.Done(s)
}

// Summarize settles the exchange and records goal satisfaction per
// player against the final holdings.
func (g *Game) Summarize(s *engine.State) map[string]string {
	final := [2]game.Resources{g.cfg.Initial[0].Clone(), g.cfg.Initial[1].Clone()}
	summary := map[string]string{"result": "no agreement"}

	if trade := s.CommittedTrade(); trade != nil {
		if applied, err := trade.Apply(g.cfg.Initial); err == nil {
			final = applied
			summary["result"] = "agreement"
			summary["trade"] = trade.String()
		}
	}

	for p := 0; p < 2; p++ {
		name := g.cfg.PlayerNames[p]
		summary["final_resources_"+name] = final[p].String()
		summary["goal_satisfied_"+name] = strconv.FormatBool(g.cfg.Goals[p].Satisfied(final[p]))
	}
	return summary
}
