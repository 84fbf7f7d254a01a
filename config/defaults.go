package config

import "time"

// DefaultConfig returns the configuration a bare run starts from.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   400,
			Timeout:     60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: 0,
		},
		Memory: MemoryConfig{
			Enabled:          false,
			Backend:          "memory",
			Strategy:         "hybrid",
			K:                5,
			RecencyWeight:    0.3,
			SimilarityWeight: 0.7,
		},
		Game: GameConfig{
			Type:           "buy-sell",
			Iterations:     8,
			PlayerNames:    []string{"SELLER", "BUYER"},
			Item:           "X",
			SellerCost:     40,
			BuyerValuation: 60,
			BuyerMoney:     1000,
			ProfilesDir:    "profiles",
			LogDir:         "runs",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "negotiarena:",
		},
		Database: DatabaseConfig{
			Path: "negotiarena.db",
		},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "negotiarena",
			Collection: "negotiation_memories",
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "negotiarena",
			SampleRate:   1.0,
		},
	}
}
