package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/BaSui01/negotiarena/game"
	"github.com/BaSui01/negotiarena/protocol"
)

// Entry kinds. A game's state is an append-only sequence of entries:
// exactly one START, one TURN per played iteration, and one END once
// the game terminates.
const (
	EntryStart = "START"
	EntryTurn  = "TURN"
	EntryEnd   = "END"
)

// Entry is one element of the game state log. Which fields are populated
// depends on Kind: START carries Settings, TURN carries the played turn,
// END carries the Summary. PlayerStates holds both agents' conversation
// snapshots taken right after the entry was produced, which is what makes
// checkpoint-restart possible from any iteration.
type Entry struct {
	Kind      string    `json:"kind"`
	Iteration int       `json:"iteration,omitempty"`
	Turn      int       `json:"turn"`
	Player    string    `json:"player,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Observation is the text the acting player saw this turn.
	Observation string `json:"observation,omitempty"`
	// Raw is the acting player's complete model output.
	Raw string `json:"raw,omitempty"`
	// Public and Secret are the parsed field groups keyed by tag name.
	// Public is what the opponent may see; Secret never leaves the log.
	Public map[string]string `json:"public,omitempty"`
	Secret map[string]string `json:"secret,omitempty"`
	// PublicText is the rendered opponent-visible projection.
	PublicText string `json:"public_text,omitempty"`

	PlayerStates [][]byte `json:"player_states,omitempty"`

	Settings map[string]string `json:"settings,omitempty"`
	Summary  map[string]string `json:"summary,omitempty"`

	// Message is the parsed form of Raw. It is rebuilt from Raw after a
	// state load, so it is not serialized.
	Message *protocol.Message `json:"-"`
}

// State is the full history of one game run. Entry 0 is always the START
// entry; the entry for iteration i sits at index i.
type State struct {
	GameName string  `json:"game_name"`
	Entries  []Entry `json:"entries"`
}

// Last returns the most recent entry, or nil for an empty state.
func (s *State) Last() *Entry {
	if len(s.Entries) == 0 {
		return nil
	}
	return &s.Entries[len(s.Entries)-1]
}

// LastTurn returns the most recent TURN entry, or nil when no turn has
// been played yet.
func (s *State) LastTurn() *Entry {
	for i := len(s.Entries) - 1; i >= 0; i-- {
		if s.Entries[i].Kind == EntryTurn {
			return &s.Entries[i]
		}
	}
	return nil
}

// Turns returns the TURN entries in play order.
func (s *State) Turns() []*Entry {
	var turns []*Entry
	for i := range s.Entries {
		if s.Entries[i].Kind == EntryTurn {
			turns = append(turns, &s.Entries[i])
		}
	}
	return turns
}

// CommittedTrade returns the proposal a terminal ACCEPT commits: the
// most recent trade standing before the accepting turn. A final turn
// that is not an acceptance, or an acceptance with nothing on the
// table, commits nothing.
func (s *State) CommittedTrade() *game.Trade {
	turns := s.Turns()
	if len(turns) == 0 {
		return nil
	}
	last := turns[len(turns)-1]
	if last.Message == nil || last.Message.Answer != protocol.AnswerAccept {
		return nil
	}
	for i := len(turns) - 2; i >= 0; i-- {
		if turns[i].Message != nil && turns[i].Message.Trade != nil {
			return turns[i].Message.Trade
		}
	}
	return nil
}

// Ended reports whether the state carries an END entry.
func (s *State) Ended() bool {
	last := s.Last()
	return last != nil && last.Kind == EntryEnd
}

// Summary returns the END entry's summary, or nil for a running game.
func (s *State) Summary() map[string]string {
	last := s.Last()
	if last == nil || last.Kind != EntryEnd {
		return nil
	}
	return last.Summary
}

// Save writes the state as JSON to path.
func (s *State) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal game state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write game state: %w", err)
	}
	return nil
}

// LoadState reads a saved state from path. Parsed messages are not part
// of the serialized form; Engine.Restore rebuilds them from each turn's
// raw response.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read game state: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal game state: %w", err)
	}
	return &s, nil
}
