package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/negotiarena/llm"
	"github.com/BaSui01/negotiarena/memory"
)

// MemoryAgentConfig configures the memory-augmented agent.
type MemoryAgentConfig struct {
	ChatAgentConfig

	SessionID string
	GameType  string
	Role      string

	// Strategy and K tune retrieval; zero values take the retriever's
	// defaults.
	Strategy memory.Strategy
	K        int

	// MaxAugmentMemories caps how many retrieved memories enter the
	// prompt. Defaults to 5.
	MaxAugmentMemories int
}

// MemoryAgent augments each step's prompt with relevant history from the
// memory store and records both sides of the exchange afterwards. A
// retrieval-backend failure never crashes a step: the agent falls back
// to the un-augmented observation and logs the condition.
type MemoryAgent struct {
	cfg          MemoryAgentConfig
	provider     llm.Provider
	retriever    *memory.Retriever
	recorder     *memory.Recorder
	conversation *Conversation
	turnCounter  int
	logger       *zap.Logger
}

func NewMemoryAgent(cfg MemoryAgentConfig, provider llm.Provider, retriever *memory.Retriever, recorder *memory.Recorder, logger *zap.Logger) *MemoryAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}
	if cfg.MaxAugmentMemories <= 0 {
		cfg.MaxAugmentMemories = 5
	}
	return &MemoryAgent{
		cfg:          cfg,
		provider:     provider,
		retriever:    retriever,
		recorder:     recorder,
		conversation: NewConversation(),
		logger: logger.With(
			zap.String("component", "memory_agent"),
			zap.String("player", cfg.Name),
			zap.String("session", cfg.SessionID),
		),
	}
}

func (a *MemoryAgent) Name() string { return a.cfg.Name }

func (a *MemoryAgent) InitAgent(ctx context.Context, systemPrompt, rolePrompt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.conversation.Reset()
	a.turnCounter = 0

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

func (a *MemoryAgent) Step(ctx context.Context, observation string) (string, error) {
	augmented := observation
	if observation != "" {
		augmented = a.augment(ctx, observation)
		a.conversation.Append(llm.RoleUser, augmented)
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

	a.record(ctx, observation, reply)
	a.turnCounter++
	return reply, nil
}

// augment prepends relevant past interactions to the observation. On
// retrieval failure it returns the observation untouched.
func (a *MemoryAgent) augment(ctx context.Context, observation string) string {
	res, err := a.retriever.RetrieveRelevant(ctx, observation, a.cfg.SessionID, a.cfg.Strategy, a.cfg.K)
	if err != nil {
		a.logger.Warn("memory retrieval failed, responding without augmentation", zap.Error(err))
		return observation
	}
	if res.Len() == 0 {
		return observation
	}

	var b strings.Builder
	b.WriteString("## Relevant Past Interactions:\n")
	limit := a.cfg.MaxAugmentMemories
	if limit > res.Len() {
		limit = res.Len()
	}
	for i := 0; i < limit; i++ {
		mem := res.Memories[i]
		fmt.Fprintf(&b, "%d. [Turn %d] %s: %s\n", i+1, mem.Turn.TurnID, mem.Turn.Speaker, mem.Turn.Message)
		if len(mem.Turn.OfferDetails) > 0 {
			fmt.Fprintf(&b, "   Offer Details: %v\n", mem.Turn.OfferDetails)
		}
	}
	b.WriteString("\n## Current Message:\n")
	b.WriteString(observation)
	return b.String()
}

// record stores the opponent's message and the agent's reply. Storage
// failures are logged, never surfaced; losing a memory must not end the
// game.
func (a *MemoryAgent) record(ctx context.Context, observation, reply string) {
	if a.recorder == nil {
		return
	}
	inputs := make([]memory.TurnInput, 0, 2)
	if observation != "" {
		inputs = append(inputs, memory.TurnInput{
			SessionID: a.cfg.SessionID,
			TurnID:    a.turnCounter * 2,
			Speaker:   "opponent",
			Role:      "opponent",
			GameType:  a.cfg.GameType,
			Message:   observation,
		})
	}
	inputs = append(inputs, memory.TurnInput{
		SessionID: a.cfg.SessionID,
		TurnID:    a.turnCounter*2 + 1,
		Speaker:   a.cfg.Name,
		Role:      a.cfg.Role,
		GameType:  a.cfg.GameType,
		Message:   reply,
	})
	if _, err := a.recorder.RecordBatch(ctx, inputs); err != nil {
		a.logger.Warn("failed to store interaction memory", zap.Error(err))
	}
}

// memoryAgentSnapshot carries the turn counter alongside the
// conversation so a resumed game keeps minting fresh memory turn ids
// instead of overwriting earlier turns.
type memoryAgentSnapshot struct {
	Conversation json.RawMessage `json:"conversation"`
	TurnCounter  int             `json:"turn_counter"`
}

func (a *MemoryAgent) Snapshot() ([]byte, error) {
	conv, err := a.conversation.Snapshot()
	if err != nil {
		return nil, err
	}
	return json.Marshal(memoryAgentSnapshot{
		Conversation: conv,
		TurnCounter:  a.turnCounter,
	})
}

func (a *MemoryAgent) Restore(data []byte) error {
	var snap memoryAgentSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if err := a.conversation.Restore(snap.Conversation); err != nil {
		return err
	}
	a.turnCounter = snap.TurnCounter
	return nil
}
