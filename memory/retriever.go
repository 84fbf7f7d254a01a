package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/negotiarena/internal/metrics"
	"github.com/BaSui01/negotiarena/llm/embedding"
)

// RetrieverConfig tunes retrieval behavior.
type RetrieverConfig struct {
	// DefaultK is the result count when a call passes k <= 0.
	DefaultK int

	// RecencyWeight and SimilarityWeight blend the hybrid score.
	RecencyWeight    float64
	SimilarityWeight float64
}

// DefaultRetrieverConfig returns the standard hybrid weighting.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		DefaultK:         5,
		RecencyWeight:    0.3,
		SimilarityWeight: 0.7,
	}
}

// Retriever ranks session memories under one of four strategies.
//
// Pure semantic search misses recent context that is topically dissimilar
// but temporally essential, such as the immediately preceding
// counter-offer. Pure recency misses topically relevant but older
// commitments. The hybrid strategy trades these off with tunable weights.
type Retriever struct {
	store    Store
	embedder embedding.Provider
	cfg      RetrieverConfig
	metrics  *metrics.Collector
	tracer   trace.Tracer
	logger   *zap.Logger
}

func NewRetriever(store Store, embedder embedding.Provider, cfg RetrieverConfig, collector *metrics.Collector, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = 5
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		metrics:  collector,
		tracer:   otel.Tracer("negotiarena/memory"),
		logger:   logger.With(zap.String("component", "memory_retriever")),
	}
}

// RetrieveRelevant dispatches to the named strategy. An empty session
// returns an empty result for every strategy without error.
func (r *Retriever) RetrieveRelevant(ctx context.Context, query, sessionID string, strategy Strategy, k int) (*RetrievalResult, error) {
	if k <= 0 {
		k = r.cfg.DefaultK
	}
	if strategy == "" {
		strategy = StrategyHybrid
	}

	ctx, span := r.tracer.Start(ctx, "memory.retrieve", trace.WithAttributes(
		attribute.String("memory.strategy", string(strategy)),
		attribute.String("memory.session", sessionID),
		attribute.Int("memory.k", k),
	))
	defer span.End()

	start := time.Now()
	var (
		memories []*Memory
		err      error
	)
	switch strategy {
	case StrategySemantic:
		memories, err = r.semantic(ctx, query, sessionID, k)
	case StrategyRecency:
		memories, err = r.store.RetrieveRecent(ctx, k, sessionID)
	case StrategyHybrid:
		memories, err = r.hybrid(ctx, query, sessionID, k)
	case StrategyCritical:
		memories, err = r.critical(ctx, sessionID, k)
	default:
		err = fmt.Errorf("unknown retrieval strategy: %q", strategy)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordMemoryRetrieval(string(strategy), status, time.Since(start))
	if err != nil {
		return nil, err
	}

	return &RetrievalResult{
		Memories: memories,
		Query:    query,
		Strategy: strategy,
	}, nil
}

func (r *Retriever) semantic(ctx context.Context, query, sessionID string, k int) ([]*Memory, error) {
	queryEmbedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.store.RetrieveBySimilarity(ctx, queryEmbedding, k, Filter{SessionID: sessionID})
}

// hybrid pulls up to 3k candidates (capped at 50) from both semantic and
// recency retrieval, deduplicates by id, and scores each candidate by a
// weighted blend of turn recency, semantic rank, importance, and the
// critical flag.
func (r *Retriever) hybrid(ctx context.Context, query, sessionID string, k int) ([]*Memory, error) {
	all, err := r.store.RetrieveBySession(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return []*Memory{}, nil
	}

	candidateK := k * 3
	if candidateK > 50 {
		candidateK = 50
	}

	semanticResults, err := r.semantic(ctx, query, sessionID, candidateK)
	if err != nil {
		return nil, err
	}
	recentResults, err := r.store.RetrieveRecent(ctx, candidateK, sessionID)
	if err != nil {
		return nil, err
	}
	if len(semanticResults) == 0 && len(recentResults) == 0 {
		return []*Memory{}, nil
	}

	semanticRank := make(map[string]int, len(semanticResults))
	for i, m := range semanticResults {
		if _, seen := semanticRank[m.ID]; !seen {
			semanticRank[m.ID] = i
		}
	}

	candidates := make(map[string]*Memory)
	for _, m := range append(append([]*Memory{}, semanticResults...), recentResults...) {
		if _, seen := candidates[m.ID]; !seen {
			candidates[m.ID] = m
		}
	}

	maxTurn := 1
	for _, m := range candidates {
		if m.Turn.TurnID > maxTurn {
			maxTurn = m.Turn.TurnID
		}
	}

	type scored struct {
		mem   *Memory
		score float64
	}
	scoredMemories := make([]scored, 0, len(candidates))
	semanticLen := len(semanticResults)
	if semanticLen == 0 {
		semanticLen = 1
	}
	for _, m := range candidates {
		recencyScore := float64(m.Turn.TurnID) / float64(maxTurn)

		rank, inSemantic := semanticRank[m.ID]
		if !inSemantic {
			rank = len(semanticResults)
		}
		semanticScore := 1 - float64(rank)/float64(semanticLen)

		score := r.cfg.RecencyWeight*recencyScore +
			r.cfg.SimilarityWeight*semanticScore +
			0.1*m.Importance
		if m.Critical {
			score += 0.1
		}
		scoredMemories = append(scoredMemories, scored{mem: m, score: score})
	}

	sort.SliceStable(scoredMemories, func(i, j int) bool {
		if scoredMemories[i].score != scoredMemories[j].score {
			return scoredMemories[i].score > scoredMemories[j].score
		}
		return scoredMemories[i].mem.Turn.TurnID > scoredMemories[j].mem.Turn.TurnID
	})

	if k > len(scoredMemories) {
		k = len(scoredMemories)
	}
	out := make([]*Memory, k)
	for i := 0; i < k; i++ {
		out[i] = scoredMemories[i].mem
	}
	return out, nil
}

// critical returns flagged entries first, then backfills with the
// highest-importance non-critical entries above 0.7 until k is reached
// or the session is exhausted.
func (r *Retriever) critical(ctx context.Context, sessionID string, k int) ([]*Memory, error) {
	all, err := r.store.RetrieveBySession(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return []*Memory{}, nil
	}

	critical := make([]*Memory, 0, k)
	for _, m := range all {
		if m.Critical {
			critical = append(critical, m)
		}
	}

	if len(critical) < k {
		important := make([]*Memory, 0)
		for _, m := range all {
			if !m.Critical && m.Importance > 0.7 {
				important = append(important, m)
			}
		}
		sort.SliceStable(important, func(i, j int) bool {
			return important[i].Importance > important[j].Importance
		})
		need := k - len(critical)
		if need > len(important) {
			need = len(important)
		}
		critical = append(critical, important[:need]...)
	}

	if k > len(critical) {
		k = len(critical)
	}
	return critical[:k], nil
}

// OfferHistory returns all offers and counteroffers made during a
// session, ordered by turn id. A non-empty resource restricts the result
// to offers mentioning it.
func (r *Retriever) OfferHistory(ctx context.Context, sessionID, resource string) ([]*Memory, error) {
	offers, err := r.store.RetrieveByType(ctx, TypeOffer, sessionID, 0)
	if err != nil {
		return nil, err
	}
	counteroffers, err := r.store.RetrieveByType(ctx, TypeCounteroffer, sessionID, 0)
	if err != nil {
		return nil, err
	}

	all := append(offers, counteroffers...)
	if resource != "" {
		filtered := all[:0]
		for _, m := range all {
			if _, ok := m.Turn.OfferDetails[resource]; ok {
				filtered = append(filtered, m)
			}
		}
		all = filtered
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Turn.TurnID < all[j].Turn.TurnID
	})
	return all, nil
}

// Phase labels for PhaseMemories.
const (
	PhaseOpening    = "opening"
	PhaseBargaining = "bargaining"
	PhaseClosing    = "closing"
)

// PhaseMemories returns memories from one negotiation phase. Opening is
// the first 20% of turns, closing the last 20%, bargaining the middle.
func (r *Retriever) PhaseMemories(ctx context.Context, sessionID, phase string, k int) ([]*Memory, error) {
	all, err := r.store.RetrieveBySession(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return []*Memory{}, nil
	}
	if k <= 0 {
		k = 10
	}

	totalTurns := 0
	for _, m := range all {
		if m.Turn.TurnID > totalTurns {
			totalTurns = m.Turn.TurnID
		}
	}

	out := make([]*Memory, 0)
	switch phase {
	case PhaseOpening:
		maxTurn := int(float64(totalTurns) * 0.2)
		for _, m := range all {
			if m.Turn.TurnID <= maxTurn {
				out = append(out, m)
			}
		}
	case PhaseBargaining:
		start := int(float64(totalTurns) * 0.2)
		end := int(float64(totalTurns) * 0.8)
		for _, m := range all {
			if m.Turn.TurnID > start && m.Turn.TurnID <= end {
				out = append(out, m)
			}
		}
	case PhaseClosing:
		start := int(float64(totalTurns) * 0.8)
		for _, m := range all {
			if m.Turn.TurnID > start {
				out = append(out, m)
			}
		}
	default:
		return nil, fmt.Errorf("unknown phase: %q", phase)
	}

	if k < len(out) {
		out = out[:k]
	}
	return out, nil
}

// Concession records one offer revision by the same negotiation.
type Concession struct {
	Turn int                `json:"turn"`
	From map[string]float64 `json:"from"`
	To   map[string]float64 `json:"to"`
}

// ConcessionAnalysis summarizes how offers moved over a session.
type ConcessionAnalysis struct {
	TotalOffers int          `json:"total_offers"`
	Concessions []Concession `json:"concessions"`
	Pattern     string       `json:"pattern"`
}

// AnalyzeConcessions inspects the offer history for movement between
// consecutive offers. A non-empty speaker restricts to that speaker's
// offers.
func (r *Retriever) AnalyzeConcessions(ctx context.Context, sessionID, speaker string) (*ConcessionAnalysis, error) {
	offers, err := r.OfferHistory(ctx, sessionID, "")
	if err != nil {
		return nil, err
	}
	if speaker != "" {
		filtered := offers[:0]
		for _, m := range offers {
			if m.Turn.Speaker == speaker {
				filtered = append(filtered, m)
			}
		}
		offers = filtered
	}
	if len(offers) == 0 {
		return &ConcessionAnalysis{Pattern: "no_offers", Concessions: []Concession{}}, nil
	}

	concessions := make([]Concession, 0)
	for i := 1; i < len(offers); i++ {
		prev, curr := offers[i-1], offers[i]
		if len(prev.Turn.OfferDetails) > 0 && len(curr.Turn.OfferDetails) > 0 {
			concessions = append(concessions, Concession{
				Turn: curr.Turn.TurnID,
				From: prev.Turn.OfferDetails,
				To:   curr.Turn.OfferDetails,
			})
		}
	}

	pattern := "rigid"
	if len(concessions) > 0 {
		pattern = "cooperative"
	}
	return &ConcessionAnalysis{
		TotalOffers: len(offers),
		Concessions: concessions,
		Pattern:     pattern,
	}, nil
}
