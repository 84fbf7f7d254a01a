// Package agent provides the player shim between the game engine and a
// language model provider. Agents consume free-text observations and
// return free-text responses expected to carry the game's tags; all
// parsing lives with the engine.
package agent

import "context"

// Position says whether an agent moves first or second in the
// alternating-turn loop. The seeding asymmetry depends on it: the first
// mover's opening turn has no opponent text to react to, while the
// second mover's first turn already must react to a proposal.
type Position int

const (
	PositionFirst Position = iota
	PositionSecond
)

func (p Position) String() string {
	if p == PositionFirst {
		return "first"
	}
	return "second"
}

// Agent is the contract the engine drives.
type Agent interface {
	// Name returns the agent's player name.
	Name() string

	// InitAgent resets any existing conversation context and seeds it
	// with the system and role prompts according to the agent's
	// position.
	InitAgent(ctx context.Context, systemPrompt, rolePrompt string) error

	// Step appends the observation as a user turn, invokes the model,
	// records the reply as an assistant turn, and returns the reply
	// verbatim for the engine to parse.
	Step(ctx context.Context, observation string) (string, error)

	// Snapshot serializes the agent's conversation state for
	// checkpoint-restart.
	Snapshot() ([]byte, error)

	// Restore replaces the agent's conversation state from a snapshot.
	Restore(data []byte) error
}
