// Package config loads the negotiarena configuration from defaults, an
// optional YAML file, and environment variable overrides, in that
// order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete runtime configuration.
type Config struct {
	// LLM configures the completion provider backing the agents.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Embedding configures the embedding provider backing memory.
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Memory configures the retrieval subsystem.
	Memory MemoryConfig `yaml:"memory" env:"MEMORY"`

	// Game configures the scenario being played.
	Game GameConfig `yaml:"game" env:"GAME"`

	// Redis configures the Redis memory backend.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database configures the SQLite memory backend.
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Mongo configures the MongoDB memory backend.
	Mongo MongoConfig `yaml:"mongo" env:"MONGO"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry configures OpenTelemetry export.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	// Provider selects the backend: openai or anthropic.
	Provider string `yaml:"provider" env:"PROVIDER"`
	// APIKey authenticates against the provider.
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// BaseURL overrides the provider endpoint, for proxies and
	// compatible servers.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// Model is the completion model name.
	Model string `yaml:"model" env:"MODEL"`
	// Temperature is passed through to completion requests.
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// MaxTokens caps each completion.
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// Timeout bounds each request.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// RequestsPerSecond enables client-side rate limiting when > 0.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	// Burst is the rate limiter burst size.
	Burst int `yaml:"burst" env:"BURST"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Provider selects the backend: openai, gemini, or mock.
	Provider string `yaml:"provider" env:"PROVIDER"`
	// APIKey authenticates against the provider.
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// Model is the embedding model name.
	Model string `yaml:"model" env:"MODEL"`
	// Dimensions requests a specific output dimensionality when > 0.
	Dimensions int `yaml:"dimensions" env:"DIMENSIONS"`
}

// MemoryConfig configures the retrieval subsystem.
type MemoryConfig struct {
	// Enabled switches memory-augmented agents on.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Backend selects the store: memory, sqlite, redis, or mongo.
	Backend string `yaml:"backend" env:"BACKEND"`
	// Strategy selects the retrieval strategy: hybrid, semantic,
	// recency, or critical.
	Strategy string `yaml:"strategy" env:"STRATEGY"`
	// K is how many memories a retrieval returns.
	K int `yaml:"k" env:"K"`
	// RecencyWeight and SimilarityWeight tune hybrid scoring.
	RecencyWeight    float64 `yaml:"recency_weight" env:"RECENCY_WEIGHT"`
	SimilarityWeight float64 `yaml:"similarity_weight" env:"SIMILARITY_WEIGHT"`
}

// GameConfig configures the scenario.
type GameConfig struct {
	// Type selects the game: buy-sell, ultimatum, or trading.
	Type string `yaml:"type" env:"TYPE"`
	// Iterations caps the number of turns.
	Iterations int `yaml:"iterations" env:"ITERATIONS"`

	// PlayerNames names player 0 and player 1.
	PlayerNames []string `yaml:"player_names" env:"PLAYER_NAMES"`
	// Cultures optionally assigns a country profile per player.
	Cultures []string `yaml:"cultures" env:"CULTURES"`
	// ProfilesDir is the cultural profile directory.
	ProfilesDir string `yaml:"profiles_dir" env:"PROFILES_DIR"`

	// Buy-sell parameters.
	Item           string  `yaml:"item" env:"ITEM"`
	SellerCost     float64 `yaml:"seller_cost" env:"SELLER_COST"`
	BuyerValuation float64 `yaml:"buyer_valuation" env:"BUYER_VALUATION"`
	BuyerMoney     float64 `yaml:"buyer_money" env:"BUYER_MONEY"`

	// LogDir receives the state file and interaction log.
	LogDir string `yaml:"log_dir" env:"LOG_DIR"`
}

// RedisConfig configures the Redis memory backend.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// DatabaseConfig configures the SQLite memory backend.
type DatabaseConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path" env:"PATH"`
}

// MongoConfig configures the MongoDB memory backend.
type MongoConfig struct {
	URI        string `yaml:"uri" env:"URI"`
	Database   string `yaml:"database" env:"DATABASE"`
	Collection string `yaml:"collection" env:"COLLECTION"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths lists zap output sinks.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Validate checks the configuration for values no run can work with.
func (c *Config) Validate() error {
	var errs []string

	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Sprintf("unknown llm provider %q", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm temperature must be between 0 and 2")
	}

	switch c.Embedding.Provider {
	case "openai", "gemini", "mock":
	default:
		errs = append(errs, fmt.Sprintf("unknown embedding provider %q", c.Embedding.Provider))
	}

	switch c.Memory.Backend {
	case "memory", "sqlite", "redis", "mongo":
	default:
		errs = append(errs, fmt.Sprintf("unknown memory backend %q", c.Memory.Backend))
	}
	if c.Memory.K <= 0 {
		errs = append(errs, "memory k must be positive")
	}

	switch c.Game.Type {
	case "buy-sell", "ultimatum", "trading":
	default:
		errs = append(errs, fmt.Sprintf("unknown game type %q", c.Game.Type))
	}
	if c.Game.Iterations <= 0 {
		errs = append(errs, "game iterations must be positive")
	}
	if len(c.Game.PlayerNames) != 2 {
		errs = append(errs, "game needs exactly two player names")
	}
	if len(c.Game.Cultures) != 0 && len(c.Game.Cultures) != 2 {
		errs = append(errs, "game cultures must name both players or neither")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
