// Package protocol implements the text-level wire format between a language
// model and a negotiation game: XML-like tag extraction from free-form model
// output, schema-driven parsing into a structured message with disjoint
// public and secret field groups, and rendering of the opponent-visible
// projection.
package protocol

import (
	"fmt"
	"strings"
)

// Answer values carried in the player-answer field.
const (
	AnswerAccept   = "ACCEPT"
	AnswerRefuse   = "REFUSE"
	AnswerProposal = "PROPOSAL"
	AnswerNone     = "NONE"
)

// Vocabulary is the per-game tag configuration. Tag names are configuration,
// not engine constants: each game may rename any of them.
type Vocabulary struct {
	// Tags parsed from the agent's own output.
	Message   string
	Answer    string
	Trade     string
	Reasoning string
	Resources string
	Name      string

	// Tags used to render the opponent-visible projection.
	OtherMessage string
	OtherAnswer  string
	OtherTrade   string

	// TerminalAnswer is the answer value that ends the game.
	TerminalAnswer string
}

// DefaultVocabulary returns the tag set shared by the bundled games.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Message:        "message",
		Answer:         "player answer",
		Trade:          "newly proposed trade",
		Reasoning:      "reason",
		Resources:      "resources",
		Name:           "my name",
		OtherMessage:   "other player message",
		OtherAnswer:    "other player answer",
		OtherTrade:     "other player proposed trade",
		TerminalAnswer: AnswerAccept,
	}
}

// TagContents extracts the text between <tag> and </tag>. The second return
// is false when either delimiter is absent. Model output is unreliable, so
// callers treat a missing tag as "use the documented default", never as a
// reason to fail outright.
func TagContents(s, tag string) (string, bool) {
	open := "<" + tag + ">"
	close := "</" + tag + ">"
	i := strings.Index(s, open)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(open):]
	j := strings.Index(rest, close)
	if j < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:j]), true
}

// RenderTag wraps content in the open/close delimiter pair for tag.
func RenderTag(tag, content string) string {
	return fmt.Sprintf("<%s> %s </%s>", tag, content, tag)
}
