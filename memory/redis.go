package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStoreConfig configures the Redis-backed store.
type RedisStoreConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore persists memories as JSON values with per-session and
// per-type index sets. Suitable for runs that span processes; similarity
// is still scored client-side over the filtered candidates.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

func NewRedisStore(cfg RedisStoreConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "negotiarena:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "mem:",
		logger:    logger.With(zap.String("component", "memory_store_redis")),
	}, nil
}

// NewRedisStoreFromClient wraps an existing client; tests use this with
// miniredis.
func NewRedisStoreFromClient(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keyPrefix == "" {
		keyPrefix = "negotiarena:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "mem:",
		logger:    logger.With(zap.String("component", "memory_store_redis")),
	}
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) dataKey(id string) string    { return s.keyPrefix + "data:" + id }
func (s *RedisStore) sessionKey(id string) string { return s.keyPrefix + "session:" + id }
func (s *RedisStore) allKey() string              { return s.keyPrefix + "all" }

func (s *RedisStore) Store(ctx context.Context, mem *Memory) (string, error) {
	if mem == nil {
		return "", ErrInvalidInput
	}
	stored := cloneMemory(mem)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Turn.Timestamp.IsZero() {
		stored.Turn.Timestamp = time.Now()
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("marshal memory: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.dataKey(stored.ID), data, 0)
	pipe.ZAdd(ctx, s.sessionKey(stored.Turn.SessionID), redis.Z{
		Score:  float64(stored.Turn.TurnID),
		Member: stored.ID,
	})
	pipe.SAdd(ctx, s.allKey(), stored.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}
	return stored.ID, nil
}

func (s *RedisStore) StoreBatch(ctx context.Context, mems []*Memory) ([]string, error) {
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

func (s *RedisStore) load(ctx context.Context, id string) (*Memory, error) {
	data, err := s.client.Get(ctx, s.dataKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load memory %s: %w", id, err)
	}
	var m Memory
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal memory %s: %w", id, err)
	}
	return &m, nil
}

func (s *RedisStore) loadMany(ctx context.Context, ids []string) ([]*Memory, error) {
	out := make([]*Memory, 0, len(ids))
	for _, id := range ids {
		m, err := s.load(ctx, id)
		if err == ErrNotFound {
			// Index entry outlived the data key; skip.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// candidateIDs narrows the scan to a session index when one is set,
// falling back to the all-memories set.
func (s *RedisStore) candidateIDs(ctx context.Context, sessionID string) ([]string, error) {
	if sessionID != "" {
		ids, err := s.client.ZRange(ctx, s.sessionKey(sessionID), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("read session index: %w", err)
		}
		return ids, nil
	}
	ids, err := s.client.SMembers(ctx, s.allKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("read member index: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) RetrieveBySimilarity(ctx context.Context, embedding []float64, k int, filter Filter) ([]*Memory, error) {
	if k <= 0 || len(embedding) == 0 {
		return []*Memory{}, nil
	}
	ids, err := s.candidateIDs(ctx, filter.SessionID)
	if err != nil {
		return nil, err
	}
	mems, err := s.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	type scored struct {
		mem   *Memory
		score float64
	}
	candidates := make([]scored, 0, len(mems))
	for _, m := range mems {
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
		out[i] = candidates[i].mem
	}
	return out, nil
}

func (s *RedisStore) RetrieveBySession(ctx context.Context, sessionID string, limit int) ([]*Memory, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.client.ZRange(ctx, s.sessionKey(sessionID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read session index: %w", err)
	}
	return s.loadMany(ctx, ids)
}

func (s *RedisStore) RetrieveRecent(ctx context.Context, n int, sessionID string) ([]*Memory, error) {
	if n <= 0 {
		return []*Memory{}, nil
	}
	ids, err := s.candidateIDs(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	mems, err := s.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(mems, func(i, j int) bool {
		if !mems[i].Turn.Timestamp.Equal(mems[j].Turn.Timestamp) {
			return mems[i].Turn.Timestamp.After(mems[j].Turn.Timestamp)
		}
		return mems[i].Turn.TurnID > mems[j].Turn.TurnID
	})
	if n < len(mems) {
		mems = mems[:n]
	}
	return mems, nil
}

func (s *RedisStore) RetrieveByType(ctx context.Context, messageType MessageType, sessionID string, limit int) ([]*Memory, error) {
	ids, err := s.candidateIDs(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	mems, err := s.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*Memory, 0, len(mems))
	for _, m := range mems {
		if m.Turn.MessageType == messageType {
			out = append(out, m)
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

func (s *RedisStore) Update(ctx context.Context, id string, updates UpdateFields) (bool, error) {
	m, err := s.load(ctx, id)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
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
	data, err := json.Marshal(m)
	if err != nil {
		return false, fmt.Errorf("marshal memory: %w", err)
	}
	if err := s.client.Set(ctx, s.dataKey(id), data, 0).Err(); err != nil {
		return false, fmt.Errorf("update memory: %w", err)
	}
	return true, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	m, err := s.load(ctx, id)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.dataKey(id))
	pipe.ZRem(ctx, s.sessionKey(m.Turn.SessionID), id)
	pipe.SRem(ctx, s.allKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("delete memory: %w", err)
	}
	return true, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, sessionID string) (int, error) {
	ids, err := s.client.ZRange(ctx, s.sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("read session index: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.dataKey(id))
		pipe.SRem(ctx, s.allKey(), id)
	}
	pipe.Del(ctx, s.sessionKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("delete session: %w", err)
	}
	return len(ids), nil
}

func (s *RedisStore) Stats(ctx context.Context, sessionID string) (*Stats, error) {
	ids, err := s.candidateIDs(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	mems, err := s.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		ByType:    make(map[MessageType]int),
		BySpeaker: make(map[string]int),
	}
	for _, m := range mems {
		stats.Total++
		stats.ByType[m.Turn.MessageType]++
		stats.BySpeaker[m.Turn.Speaker]++
		if m.Critical {
			stats.Critical++
		}
	}
	return stats, nil
}

func (s *RedisStore) ClearAll(ctx context.Context) (int, error) {
	ids, err := s.client.SMembers(ctx, s.allKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("read member index: %w", err)
	}

	sessions := make(map[string]struct{})
	mems, err := s.loadMany(ctx, ids)
	if err != nil {
		return 0, err
	}
	for _, m := range mems {
		sessions[m.Turn.SessionID] = struct{}{}
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.dataKey(id))
	}
	for sessionID := range sessions {
		pipe.Del(ctx, s.sessionKey(sessionID))
	}
	pipe.Del(ctx, s.allKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("clear store: %w", err)
	}
	return len(ids), nil
}
