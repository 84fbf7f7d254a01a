package protocol

import (
	"strings"

	"github.com/BaSui01/negotiarena/game"
)

// Message is the structured form of one agent response. Fields split into
// two disjoint groups: the public group is shown to the opponent on the next
// turn, the secret group is retained only for game state and logging and
// must never reach the opponent.
type Message struct {
	vocab Vocabulary

	// Public group.
	Text   string
	Answer string
	Trade  *game.Trade

	// Secret group.
	Reasoning string
	Resources game.Resources
	Name      string

	// Raw is the complete model output the message was parsed from.
	Raw string
}

// ToOtherPlayer renders exactly the text the opponent sees next turn. Only
// public fields appear; leakage of any secret field is a protocol violation
// covered by tests.
func (m *Message) ToOtherPlayer() string {
	var b strings.Builder
	b.WriteString(RenderTag(m.vocab.OtherMessage, m.Text))
	b.WriteString("\n")
	b.WriteString(RenderTag(m.vocab.OtherAnswer, m.Answer))
	b.WriteString("\n")
	b.WriteString(RenderTag(m.vocab.OtherTrade, m.Trade.String()))
	b.WriteString("\n")
	return b.String()
}

// Observation renders the public fields as the plain-text observation given
// to the opponent's next step. Empty and NONE fields are omitted; an
// entirely empty message yields an empty observation.
func (m *Message) Observation() string {
	var parts []string
	if m.Text != "" {
		parts = append(parts, "Opponent says: "+m.Text)
	}
	if m.Trade != nil {
		parts = append(parts, "Opponent's proposal: "+m.Trade.String())
	}
	if m.Answer != "" && m.Answer != AnswerNone {
		parts = append(parts, "Opponent's answer: "+m.Answer)
	}
	return strings.Join(parts, "\n")
}

// Public returns the public field group keyed by tag name, for state
// recording and logs.
func (m *Message) Public() map[string]string {
	return map[string]string{
		m.vocab.Message: m.Text,
		m.vocab.Answer:  m.Answer,
		m.vocab.Trade:   m.Trade.String(),
	}
}

// Secret returns the secret field group keyed by tag name.
func (m *Message) Secret() map[string]string {
	return map[string]string{
		m.vocab.Reasoning: m.Reasoning,
		m.vocab.Resources: m.Resources.String(),
		m.vocab.Name:      m.Name,
	}
}
