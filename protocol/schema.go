package protocol

import (
	"fmt"
	"strings"

	"github.com/BaSui01/negotiarena/game"
)

// ParseError is returned when a response cannot be parsed into a usable
// message. It lists exactly which required tags were missing so callers can
// surface a precise diagnosis alongside the raw model output.
type ParseError struct {
	Missing []string
	Reason  string
	Raw     string
}

func (e *ParseError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("parse response: missing required tags [%s]", strings.Join(e.Missing, ", "))
	}
	return "parse response: " + e.Reason
}

// Schema describes how a game's responses are parsed: the tag vocabulary,
// which tags are required, and the numeric policy for trade quantities.
// Missing optional tags resolve to documented defaults (empty text, NONE
// answer, no trade, empty resources) because model output is inherently
// unreliable; strict parsing would make the game brittle.
type Schema struct {
	Vocab        Vocabulary
	PlayerLabels [2]string

	// RequiredTags lists tags whose absence makes the whole response
	// unusable. Parse returns a *ParseError naming every missing one.
	RequiredTags []string

	// RequireIntegerAmounts rejects trades with fractional quantities.
	// Games that deal in indivisible units set this.
	RequireIntegerAmounts bool
}

// NewSchema returns a schema over the default vocabulary.
func NewSchema(labels [2]string) *Schema {
	return &Schema{
		Vocab:        DefaultVocabulary(),
		PlayerLabels: labels,
	}
}

// Parse extracts every known tag from the raw model output and assembles the
// structured message. Secondary-field failures (malformed resources, trade
// the parser cannot read) fall back to their defaults; missing required tags
// and an entirely tag-free response are fatal, since the caller cannot tell
// a proposal from an acceptance without them.
func (s *Schema) Parse(raw string) (*Message, error) {
	m := &Message{vocab: s.Vocab, Raw: raw}

	var missing []string
	seenAny := false

	lookup := func(tag string) string {
		v, ok := TagContents(raw, tag)
		if ok {
			seenAny = true
		} else if s.required(tag) {
			missing = append(missing, tag)
		}
		return v
	}

	m.Text = lookup(s.Vocab.Message)
	m.Reasoning = lookup(s.Vocab.Reasoning)
	m.Name = lookup(s.Vocab.Name)

	m.Answer = lookup(s.Vocab.Answer)
	if m.Answer == "" {
		m.Answer = AnswerNone
	}

	if rawRes := lookup(s.Vocab.Resources); rawRes != "" {
		res, err := game.ParseResources(rawRes)
		if err != nil {
			// Self-reported resources are bookkeeping, not ground truth.
			res = game.Resources{}
		}
		m.Resources = res
	} else {
		m.Resources = game.Resources{}
	}

	if rawTrade := lookup(s.Vocab.Trade); rawTrade != "" {
		trade, err := game.ParseTrade(rawTrade, s.PlayerLabels)
		if err != nil {
			trade = nil
		}
		if trade != nil && s.RequireIntegerAmounts && !trade.IsInteger() {
			return nil, &ParseError{
				Reason: fmt.Sprintf("trade %q has non-integer quantities", rawTrade),
				Raw:    raw,
			}
		}
		m.Trade = trade
	}

	if len(missing) > 0 {
		return nil, &ParseError{Missing: missing, Raw: raw}
	}
	if !seenAny {
		return nil, &ParseError{Reason: "no recognizable tags in response", Raw: raw}
	}
	return m, nil
}

func (s *Schema) required(tag string) bool {
	for _, r := range s.RequiredTags {
		if r == tag {
			return true
		}
	}
	return false
}

// ResponseFormat renders the answer-format block inserted into game prompts,
// so prompt text and parser always agree on the tag vocabulary.
func (s *Schema) ResponseFormat() string {
	v := s.Vocab
	lines := []string{
		RenderTag(v.Name, "your name"),
		RenderTag(v.Resources, "your current resources"),
		RenderTag(v.Reasoning, "your reasoning for this action"),
		RenderTag(v.Answer, fmt.Sprintf("%s or %s or %s", AnswerProposal, s.Vocab.TerminalAnswer, AnswerRefuse)),
		RenderTag(v.Trade, fmt.Sprintf("Player %s Gives <resource>: <amount> | Player %s Gives <resource>: <amount>, or %s",
			s.PlayerLabels[0], s.PlayerLabels[1], game.NoTradeSentinel)),
		RenderTag(v.Message, "your message to the other player"),
	}
	return strings.Join(lines, "\n")
}
