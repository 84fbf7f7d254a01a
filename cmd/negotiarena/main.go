// Command negotiarena runs a negotiation match between two model-backed
// agents from a YAML configuration.
//
// Usage:
//
//	negotiarena run                          # run with defaults
//	negotiarena run --config config.yaml     # run a configured match
//	negotiarena run --resume runs/state.json --iteration 3
//	negotiarena version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/negotiarena/agent"
	"github.com/BaSui01/negotiarena/config"
	"github.com/BaSui01/negotiarena/culture"
	"github.com/BaSui01/negotiarena/engine"
	"github.com/BaSui01/negotiarena/game"
	"github.com/BaSui01/negotiarena/games/buysell"
	"github.com/BaSui01/negotiarena/games/trading"
	"github.com/BaSui01/negotiarena/games/ultimatum"
	"github.com/BaSui01/negotiarena/internal/metrics"
	"github.com/BaSui01/negotiarena/internal/telemetry"
	"github.com/BaSui01/negotiarena/llm"
	"github.com/BaSui01/negotiarena/llm/embedding"
	"github.com/BaSui01/negotiarena/llm/providers/anthropic"
	"github.com/BaSui01/negotiarena/llm/providers/openai"
	"github.com/BaSui01/negotiarena/memory"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runMatch(os.Args[2:])
	case "version":
		fmt.Printf("negotiarena %s (built %s)\n", Version, BuildTime)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`negotiarena - multi-agent negotiation simulations

Usage:
  negotiarena run [--config config.yaml] [--resume state.json --iteration N]
  negotiarena version`)
}

func runMatch(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	resumePath := fs.String("resume", "", "Path to a saved game state to resume")
	iteration := fs.Int("iteration", 0, "Iteration to resume from (requires --resume)")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := config.BuildLogger(cfg.Log)
	defer logger.Sync()

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Fatal("telemetry init failed", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := providers.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector("negotiarena", logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, err := buildGame(cfg, logger)
	if err != nil {
		logger.Fatal("game construction failed", zap.Error(err))
	}

	players, cleanup, err := buildPlayers(cfg, collector, logger)
	if err != nil {
		logger.Fatal("agent construction failed", zap.Error(err))
	}
	defer cleanup()

	eng := engine.New(g, players, engine.Config{
		Iterations: cfg.Game.Iterations,
		LogDir:     cfg.Game.LogDir,
	}, collector, logger)

	var state *engine.State
	if *resumePath != "" {
		if *iteration < 1 {
			logger.Fatal("--resume requires --iteration >= 1")
		}
		saved, err := engine.LoadState(*resumePath)
		if err != nil {
			logger.Fatal("state load failed", zap.Error(err))
		}
		if err := eng.Restore(saved); err != nil {
			logger.Fatal("state restore failed", zap.Error(err))
		}
		state, err = eng.Resume(ctx, *iteration)
		if err != nil {
			logger.Fatal("game failed", zap.Error(err))
		}
	} else {
		state, err = eng.Run(ctx)
		if err != nil {
			logger.Fatal("game failed", zap.Error(err))
		}
	}

	if cfg.Game.LogDir != "" {
		if err := os.MkdirAll(cfg.Game.LogDir, 0o755); err != nil {
			logger.Warn("log dir creation failed", zap.Error(err))
		} else {
			statePath := filepath.Join(cfg.Game.LogDir, "state.json")
			if err := state.Save(statePath); err != nil {
				logger.Warn("state save failed", zap.Error(err))
			} else {
				logger.Info("game state saved", zap.String("path", statePath))
			}
		}
	}

	for k, v := range state.Summary() {
		fmt.Printf("%s: %s\n", k, v)
	}
}

// buildGame assembles the configured scenario, including optional
// cultural behaviour fragments.
func buildGame(cfg *config.Config, logger *zap.Logger) (engine.Game, error) {
	var behaviour [2]string
	if len(cfg.Game.Cultures) == 2 {
		manager, err := culture.NewManager(cfg.Game.ProfilesDir, logger)
		if err != nil {
			return nil, fmt.Errorf("load cultural profiles: %w", err)
		}
		for p := 0; p < 2; p++ {
			behaviour[p] = manager.Context(cfg.Game.Cultures[p])
		}
	}

	switch cfg.Game.Type {
	case "buy-sell":
		return buysell.New(buysell.Config{
			SellerName:     cfg.Game.PlayerNames[0],
			BuyerName:      cfg.Game.PlayerNames[1],
			Item:           cfg.Game.Item,
			SellerCost:     cfg.Game.SellerCost,
			BuyerValuation: cfg.Game.BuyerValuation,
			BuyerMoney:     cfg.Game.BuyerMoney,
			Iterations:     cfg.Game.Iterations,
			Behaviour:      behaviour,
		}), nil
	case "ultimatum":
		return ultimatum.New(ultimatum.Config{
			ProposerName:  cfg.Game.PlayerNames[0],
			ResponderName: cfg.Game.PlayerNames[1],
			Pot:           cfg.Game.BuyerMoney,
			Iterations:    cfg.Game.Iterations,
			Behaviour:     behaviour,
		}), nil
	case "trading":
		return trading.New(trading.Config{
			PlayerNames: [2]string{cfg.Game.PlayerNames[0], cfg.Game.PlayerNames[1]},
			Initial: [2]game.Resources{
				{cfg.Game.Item: 5},
				{game.MoneyToken: cfg.Game.BuyerMoney},
			},
			Goals: [2]game.ResourceGoal{
				{Target: game.Resources{game.MoneyToken: cfg.Game.SellerCost}},
				{Target: game.Resources{cfg.Game.Item: 1}},
			},
			Iterations: cfg.Game.Iterations,
			Behaviour:  behaviour,
		}), nil
	default:
		return nil, fmt.Errorf("unknown game type %q", cfg.Game.Type)
	}
}

// buildPlayers wires the completion provider and, when memory is
// enabled, the embedding provider and store behind both agents.
func buildPlayers(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) ([2]agent.Agent, func(), error) {
	cleanup := func() {}

	provider, err := buildProvider(cfg.LLM, logger)
	if err != nil {
		return [2]agent.Agent{}, cleanup, err
	}

	var players [2]agent.Agent
	positions := [2]agent.Position{agent.PositionFirst, agent.PositionSecond}

	if !cfg.Memory.Enabled {
		for p := 0; p < 2; p++ {
			players[p] = agent.NewChatAgent(agent.ChatAgentConfig{
				Name:        cfg.Game.PlayerNames[p],
				Position:    positions[p],
				Model:       cfg.LLM.Model,
				Temperature: float32(cfg.LLM.Temperature),
				MaxTokens:   cfg.LLM.MaxTokens,
			}, provider, logger)
		}
		return players, cleanup, nil
	}

	embedder, err := buildEmbedder(cfg.Embedding)
	if err != nil {
		return players, cleanup, err
	}
	store, closeStore, err := buildStore(cfg, logger)
	if err != nil {
		return players, cleanup, err
	}
	cleanup = closeStore

	retriever := memory.NewRetriever(store, embedder, memory.RetrieverConfig{
		DefaultK:         cfg.Memory.K,
		RecencyWeight:    cfg.Memory.RecencyWeight,
		SimilarityWeight: cfg.Memory.SimilarityWeight,
	}, collector, logger)
	recorder := memory.NewRecorder(store, embedder, memory.RecorderConfig{}, logger)

	sessionID := fmt.Sprintf("%s-%d", cfg.Game.Type, time.Now().Unix())
	for p := 0; p < 2; p++ {
		players[p] = agent.NewMemoryAgent(agent.MemoryAgentConfig{
			ChatAgentConfig: agent.ChatAgentConfig{
				Name:        cfg.Game.PlayerNames[p],
				Position:    positions[p],
				Model:       cfg.LLM.Model,
				Temperature: float32(cfg.LLM.Temperature),
				MaxTokens:   cfg.LLM.MaxTokens,
			},
			SessionID: sessionID,
			GameType:  cfg.Game.Type,
			Role:      cfg.Game.PlayerNames[p],
			Strategy:  memory.Strategy(cfg.Memory.Strategy),
			K:         cfg.Memory.K,
		}, provider, retriever, recorder, logger)
	}
	return players, cleanup, nil
}

func buildProvider(cfg config.LLMConfig, logger *zap.Logger) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(openai.Config{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		}, logger), nil
	case "anthropic":
		return anthropic.NewProvider(anthropic.Config{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func buildEmbedder(cfg config.EmbeddingConfig) (embedding.Provider, error) {
	switch cfg.Provider {
	case "openai":
		ocfg := embedding.DefaultOpenAIConfig()
		ocfg.APIKey = cfg.APIKey
		if cfg.BaseURL != "" {
			ocfg.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			ocfg.Model = cfg.Model
		}
		if cfg.Dimensions > 0 {
			ocfg.Dimensions = cfg.Dimensions
		}
		return embedding.NewOpenAIProvider(ocfg), nil
	case "gemini":
		gcfg := embedding.DefaultGeminiConfig()
		gcfg.APIKey = cfg.APIKey
		if cfg.Model != "" {
			gcfg.Model = cfg.Model
		}
		return embedding.NewGeminiProvider(gcfg), nil
	case "mock":
		return embedding.NewMockProvider(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func buildStore(cfg *config.Config, logger *zap.Logger) (memory.Store, func(), error) {
	noop := func() {}
	switch cfg.Memory.Backend {
	case "memory":
		return memory.NewInMemoryStore(memory.InMemoryStoreConfig{}, logger), noop, nil
	case "sqlite":
		store, err := memory.NewSQLiteStore(cfg.Database.Path, logger)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { store.Close() }, nil
	case "redis":
		store, err := memory.NewRedisStore(memory.RedisStoreConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { store.Close() }, nil
	case "mongo":
		store, err := memory.NewMongoStore(memory.MongoStoreConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { store.Close(context.Background()) }, nil
	default:
		return nil, noop, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
}
