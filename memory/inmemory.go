package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InMemoryStoreConfig configures the in-process store.
type InMemoryStoreConfig struct {
	// Dimension, when > 0, validates stored and queried embeddings.
	Dimension int

	// Now is for tests. Defaults to time.Now.
	Now func() time.Time
}

// InMemoryStore keeps memories in a mutex-guarded map. It is the default
// backend for single-process runs and tests.
type InMemoryStore struct {
	mu        sync.RWMutex
	items     map[string]*Memory
	dimension int
	now       func() time.Time
	logger    *zap.Logger
}

func NewInMemoryStore(config InMemoryStoreConfig, logger *zap.Logger) *InMemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &InMemoryStore{
		items:     make(map[string]*Memory),
		dimension: config.Dimension,
		now:       now,
		logger:    logger.With(zap.String("component", "memory_store_inmemory")),
	}
}

func (s *InMemoryStore) Store(ctx context.Context, mem *Memory) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if mem == nil {
		return "", ErrInvalidInput
	}
	if s.dimension > 0 && len(mem.Embedding) > 0 && len(mem.Embedding) != s.dimension {
		return "", fmt.Errorf("%w: got %d, want %d", ErrDimension, len(mem.Embedding), s.dimension)
	}
	stored := cloneMemory(mem)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Turn.Timestamp.IsZero() {
		stored.Turn.Timestamp = s.now()
	}

	s.mu.Lock()
	s.items[stored.ID] = stored
	s.mu.Unlock()
	return stored.ID, nil
}

func (s *InMemoryStore) StoreBatch(ctx context.Context, mems []*Memory) ([]string, error) {
	ids := make([]string, 0, len(mems))
	for _, mem := range mems {
		id, err := s.Store(ctx, mem)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *InMemoryStore) RetrieveBySimilarity(ctx context.Context, embedding []float64, k int, filter Filter) ([]*Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 || len(embedding) == 0 {
		return []*Memory{}, nil
	}
	if s.dimension > 0 && len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(embedding), s.dimension)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		mem   *Memory
		score float64
	}
	candidates := make([]scored, 0, len(s.items))
	for _, m := range s.items {
		if !filter.matches(m) {
			continue
		}
		candidates = append(candidates, scored{mem: m, score: CosineSimilarity(embedding, m.Embedding)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if k > len(candidates) {
		k = len(candidates)
	}

	out := make([]*Memory, k)
	for i := 0; i < k; i++ {
		out[i] = cloneMemory(candidates[i].mem)
	}
	return out, nil
}

func (s *InMemoryStore) RetrieveBySession(ctx context.Context, sessionID string, limit int) ([]*Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Memory, 0)
	for _, m := range s.items {
		if m.Turn.SessionID == sessionID {
			out = append(out, cloneMemory(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Turn.TurnID < out[j].Turn.TurnID
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) RetrieveRecent(ctx context.Context, n int, sessionID string) ([]*Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return []*Memory{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Memory, 0)
	for _, m := range s.items {
		if sessionID != "" && m.Turn.SessionID != sessionID {
			continue
		}
		out = append(out, cloneMemory(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Turn.Timestamp.Equal(out[j].Turn.Timestamp) {
			return out[i].Turn.Timestamp.After(out[j].Turn.Timestamp)
		}
		return out[i].Turn.TurnID > out[j].Turn.TurnID
	})
	if n < len(out) {
		out = out[:n]
	}
	return out, nil
}

func (s *InMemoryStore) RetrieveByType(ctx context.Context, messageType MessageType, sessionID string, limit int) ([]*Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Memory, 0)
	for _, m := range s.items {
		if m.Turn.MessageType != messageType {
			continue
		}
		if sessionID != "" && m.Turn.SessionID != sessionID {
			continue
		}
		out = append(out, cloneMemory(m))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Turn.TurnID < out[j].Turn.TurnID
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Update(ctx context.Context, id string, updates UpdateFields) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.items[id]
	if !ok {
		return false, nil
	}
	if updates.Importance != nil {
		m.Importance = *updates.Importance
	}
	if updates.Critical != nil {
		m.Critical = *updates.Critical
	}
	if updates.Tags != nil {
		m.Tags = append([]string(nil), updates.Tags...)
	}
	return true, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *InMemoryStore) DeleteSession(ctx context.Context, sessionID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, m := range s.items {
		if m.Turn.SessionID == sessionID {
			delete(s.items, id)
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) Stats(ctx context.Context, sessionID string) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		ByType:    make(map[MessageType]int),
		BySpeaker: make(map[string]int),
	}
	for _, m := range s.items {
		if sessionID != "" && m.Turn.SessionID != sessionID {
			continue
		}
		stats.Total++
		stats.ByType[m.Turn.MessageType]++
		stats.BySpeaker[m.Turn.Speaker]++
		if m.Critical {
			stats.Critical++
		}
	}
	return stats, nil
}

func (s *InMemoryStore) ClearAll(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.items)
	s.items = make(map[string]*Memory)
	return count, nil
}
