package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/negotiarena/llm"
)

// StatelessAgent discards conversation history between steps: every
// decision sees only the base prompt and the current observation. It is
// the controlled baseline against memory-augmented agents.
type StatelessAgent struct {
	cfg        ChatAgentConfig
	provider   llm.Provider
	basePrompt string
	logger     *zap.Logger
}

func NewStatelessAgent(cfg ChatAgentConfig, provider llm.Provider, logger *zap.Logger) *StatelessAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}
	return &StatelessAgent{
		cfg:      cfg,
		provider: provider,
		logger: logger.With(
			zap.String("component", "stateless_agent"),
			zap.String("player", cfg.Name),
		),
	}
}

func (a *StatelessAgent) Name() string { return a.cfg.Name }

// InitAgent keeps only the combined base prompt; no history accrues.
func (a *StatelessAgent) InitAgent(ctx context.Context, systemPrompt, rolePrompt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.basePrompt = systemPrompt + rolePrompt
	return nil
}

func (a *StatelessAgent) Step(ctx context.Context, observation string) (string, error) {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: a.basePrompt}}
	if observation != "" {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: observation})
	}

	resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
		Model:       a.cfg.Model,
		Messages:    messages,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		Seed:        a.cfg.Seed,
	})
	if err != nil {
		return "", fmt.Errorf("agent %s completion: %w", a.cfg.Name, err)
	}
	return resp.Content(), nil
}

type statelessSnapshot struct {
	BasePrompt string `json:"base_prompt"`
}

func (a *StatelessAgent) Snapshot() ([]byte, error) {
	return json.Marshal(statelessSnapshot{BasePrompt: a.basePrompt})
}

func (a *StatelessAgent) Restore(data []byte) error {
	var snap statelessSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	a.basePrompt = snap.BasePrompt
	return nil
}
