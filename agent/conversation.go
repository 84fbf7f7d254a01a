package agent

import (
	"encoding/json"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/BaSui01/negotiarena/llm"
)

// Conversation is the ordered message history an agent sends with every
// completion request.
type Conversation struct {
	messages []llm.Message
}

func NewConversation() *Conversation {
	return &Conversation{}
}

// Reset discards all accumulated messages.
func (c *Conversation) Reset() {
	c.messages = nil
}

// Append adds one message to the history.
func (c *Conversation) Append(role llm.Role, content string) {
	c.messages = append(c.messages, llm.Message{Role: role, Content: content})
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []llm.Message {
	return append([]llm.Message(nil), c.messages...)
}

func (c *Conversation) Len() int { return len(c.messages) }

// LastAssistant returns the most recent assistant message, or "" when
// none exists.
func (c *Conversation) LastAssistant() string {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == llm.RoleAssistant {
			return c.messages[i].Content
		}
	}
	return ""
}

// Snapshot serializes the history for checkpoint-restart.
func (c *Conversation) Snapshot() ([]byte, error) {
	return json.Marshal(c.messages)
}

// Restore replaces the history from a snapshot.
func (c *Conversation) Restore(data []byte) error {
	var messages []llm.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return err
	}
	c.messages = messages
	return nil
}

var (
	tokenEncOnce sync.Once
	tokenEnc     *tiktoken.Tiktoken
)

// EstimateTokens counts the text's tokens with the cl100k_base encoding,
// falling back to a bytes/4 heuristic when the encoding data is
// unavailable offline.
func EstimateTokens(text string) int {
	tokenEncOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tokenEnc = enc
		}
	})
	if tokenEnc != nil {
		return len(tokenEnc.Encode(text, nil, nil))
	}
	return len(text) / 4
}

// TokenEstimate counts the conversation's tokens.
func (c *Conversation) TokenEstimate() int {
	total := 0
	for _, m := range c.messages {
		total += EstimateTokens(m.Content)
	}
	return total
}
