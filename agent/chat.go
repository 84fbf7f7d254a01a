package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/negotiarena/llm"
)

// ChatAgentConfig configures a conversation-keeping agent.
type ChatAgentConfig struct {
	Name        string
	Position    Position
	Model       string
	Temperature float32
	MaxTokens   int
	Seed        int64

	// TokenBudget warns when the accumulated conversation exceeds this
	// many estimated tokens. Zero disables the check.
	TokenBudget int
}

// ChatAgent keeps the full conversation and replays it to the provider
// on every step.
type ChatAgent struct {
	cfg          ChatAgentConfig
	provider     llm.Provider
	conversation *Conversation
	logger       *zap.Logger
}

func NewChatAgent(cfg ChatAgentConfig, provider llm.Provider, logger *zap.Logger) *ChatAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}
	return &ChatAgent{
		cfg:          cfg,
		provider:     provider,
		conversation: NewConversation(),
		logger: logger.With(
			zap.String("component", "chat_agent"),
			zap.String("player", cfg.Name),
		),
	}
}

func (a *ChatAgent) Name() string { return a.cfg.Name }

// InitAgent seeds the conversation. The first mover gets the role prompt
// as a separate user turn; the second mover gets it folded into the
// system message, because its first turn must already react to the
// opponent's proposal.
func (a *ChatAgent) InitAgent(ctx context.Context, systemPrompt, rolePrompt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.conversation.Reset()

	switch a.cfg.Position {
	case PositionFirst:
		a.conversation.Append(llm.RoleSystem, systemPrompt)
		a.conversation.Append(llm.RoleUser, rolePrompt)
	case PositionSecond:
		a.conversation.Append(llm.RoleSystem, systemPrompt+rolePrompt)
	default:
		return fmt.Errorf("unknown agent position: %d", a.cfg.Position)
	}
	return nil
}

func (a *ChatAgent) Step(ctx context.Context, observation string) (string, error) {
	// The first mover's opening step has no opponent text; skip the
	// empty user turn rather than sending a blank message.
	if observation != "" {
		a.conversation.Append(llm.RoleUser, observation)
	}

	resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
		Model:       a.cfg.Model,
		Messages:    a.conversation.Messages(),
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		Seed:        a.cfg.Seed,
	})
	if err != nil {
		return "", fmt.Errorf("agent %s completion: %w", a.cfg.Name, err)
	}

	reply := resp.Content()
	a.conversation.Append(llm.RoleAssistant, reply)

	estimate := a.conversation.TokenEstimate()
	if a.cfg.TokenBudget > 0 && estimate > a.cfg.TokenBudget {
		a.logger.Warn("conversation over token budget",
			zap.Int("token_estimate", estimate),
			zap.Int("token_budget", a.cfg.TokenBudget),
		)
	}
	a.logger.Debug("step complete",
		zap.Int("messages", a.conversation.Len()),
		zap.Int("token_estimate", estimate),
	)
	return reply, nil
}

func (a *ChatAgent) Snapshot() ([]byte, error) {
	return a.conversation.Snapshot()
}

func (a *ChatAgent) Restore(data []byte) error {
	return a.conversation.Restore(data)
}
