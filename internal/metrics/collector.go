// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates the Prometheus collectors used across the
// negotiation engine. All record methods are safe on a nil receiver,
// which lets callers skip metrics entirely by passing a nil Collector.
type Collector struct {
	// Game lifecycle.
	gamesTotal   *prometheus.CounterVec
	gameDuration *prometheus.HistogramVec

	// Per-turn activity.
	turnsTotal         *prometheus.CounterVec
	turnDuration       *prometheus.HistogramVec
	parseFailuresTotal *prometheus.CounterVec

	// LLM usage observed from inside the engine loop.
	llmTokensUsed *prometheus.CounterVec

	// Memory subsystem.
	memoryRetrievalsTotal   *prometheus.CounterVec
	memoryRetrievalDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers the negotiation collectors under the given
// namespace on the default Prometheus registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.gamesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_total",
			Help:      "Total number of completed games",
		},
		[]string{"game", "outcome"},
	)

	c.gameDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "game_duration_seconds",
			Help:      "Wall-clock duration of a full game run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"game"},
	)

	c.turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of played turns",
		},
		[]string{"game", "player"},
	)

	c.turnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of a single turn including the model call",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"game"},
	)

	c.parseFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Total number of responses rejected by the message parser",
		},
		[]string{"game", "player"},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens consumed by agent model calls",
		},
		[]string{"game", "player"},
	)

	c.memoryRetrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_retrievals_total",
			Help:      "Total number of memory retrieval operations",
		},
		[]string{"strategy", "status"},
	)

	c.memoryRetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_retrieval_duration_seconds",
			Help:      "Duration of memory retrieval operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordGame records a finished game with its outcome label.
func (c *Collector) RecordGame(game, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.gamesTotal.WithLabelValues(game, outcome).Inc()
	c.gameDuration.WithLabelValues(game).Observe(duration.Seconds())
}

// RecordTurn records one played turn.
func (c *Collector) RecordTurn(game, player string, duration time.Duration) {
	if c == nil {
		return
	}
	c.turnsTotal.WithLabelValues(game, player).Inc()
	c.turnDuration.WithLabelValues(game).Observe(duration.Seconds())
}

// RecordParseFailure records a response the parser rejected.
func (c *Collector) RecordParseFailure(game, player string) {
	if c == nil {
		return
	}
	c.parseFailuresTotal.WithLabelValues(game, player).Inc()
}

// RecordTokens adds model token usage attributed to a player.
func (c *Collector) RecordTokens(game, player string, tokens int) {
	if c == nil || tokens <= 0 {
		return
	}
	c.llmTokensUsed.WithLabelValues(game, player).Add(float64(tokens))
}

// RecordMemoryRetrieval records one retrieval operation.
func (c *Collector) RecordMemoryRetrieval(strategy, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.memoryRetrievalsTotal.WithLabelValues(strategy, status).Inc()
	c.memoryRetrievalDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}
