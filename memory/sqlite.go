package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// memoryRecord is the gorm row backing one Memory. Embeddings and offer
// details are serialized as JSON text; SQLite has no native vector type,
// so similarity is scored in-process over the filtered rows.
type memoryRecord struct {
	ID           string `gorm:"primaryKey;size:64"`
	SessionID    string `gorm:"index;size:128"`
	TurnID       int    `gorm:"index"`
	Timestamp    time.Time
	Speaker      string `gorm:"size:128"`
	Message      string
	MessageType  string `gorm:"index;size:32"`
	OfferDetails string
	GameType     string `gorm:"size:64"`
	Role         string `gorm:"size:64"`
	Embedding    string
	Importance   float64
	Critical     bool
	Tags         string
}

func (memoryRecord) TableName() string { return "negotiation_memories" }

// SQLiteStore persists memories in a SQLite database via gorm.
type SQLiteStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at path and migrates
// the schema. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&memoryRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &SQLiteStore{
		db:     db,
		logger: logger.With(zap.String("component", "memory_store_sqlite")),
	}, nil
}

func toRecord(m *Memory) (*memoryRecord, error) {
	embedding, err := json.Marshal(m.Embedding)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding: %w", err)
	}
	offerDetails, err := json.Marshal(m.Turn.OfferDetails)
	if err != nil {
		return nil, fmt.Errorf("marshal offer details: %w", err)
	}
	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	return &memoryRecord{
		ID:           m.ID,
		SessionID:    m.Turn.SessionID,
		TurnID:       m.Turn.TurnID,
		Timestamp:    m.Turn.Timestamp,
		Speaker:      m.Turn.Speaker,
		Message:      m.Turn.Message,
		MessageType:  string(m.Turn.MessageType),
		OfferDetails: string(offerDetails),
		GameType:     m.Turn.GameType,
		Role:         m.Turn.Role,
		Embedding:    string(embedding),
		Importance:   m.Importance,
		Critical:     m.Critical,
		Tags:         string(tags),
	}, nil
}

func fromRecord(rec *memoryRecord) (*Memory, error) {
	m := &Memory{
		ID: rec.ID,
		Turn: Turn{
			TurnID:      rec.TurnID,
			SessionID:   rec.SessionID,
			Timestamp:   rec.Timestamp,
			Speaker:     rec.Speaker,
			Message:     rec.Message,
			MessageType: MessageType(rec.MessageType),
			GameType:    rec.GameType,
			Role:        rec.Role,
		},
		Importance: rec.Importance,
		Critical:   rec.Critical,
	}
	if rec.Embedding != "" {
		if err := json.Unmarshal([]byte(rec.Embedding), &m.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshal embedding: %w", err)
		}
	}
	if rec.OfferDetails != "" {
		if err := json.Unmarshal([]byte(rec.OfferDetails), &m.Turn.OfferDetails); err != nil {
			return nil, fmt.Errorf("unmarshal offer details: %w", err)
		}
	}
	if rec.Tags != "" {
		if err := json.Unmarshal([]byte(rec.Tags), &m.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return m, nil
}

func (s *SQLiteStore) Store(ctx context.Context, mem *Memory) (string, error) {
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
	rec, err := toRecord(stored)
	if err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}
	return stored.ID, nil
}

func (s *SQLiteStore) StoreBatch(ctx context.Context, mems []*Memory) ([]string, error) {
	ids := make([]string, 0, len(mems))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, mem := range mems {
			if mem == nil {
				return ErrInvalidInput
			}
			stored := cloneMemory(mem)
			if stored.ID == "" {
				stored.ID = uuid.New().String()
			}
			if stored.Turn.Timestamp.IsZero() {
				stored.Turn.Timestamp = time.Now()
			}
			rec, err := toRecord(stored)
			if err != nil {
				return err
			}
			if err := tx.Create(rec).Error; err != nil {
				return err
			}
			ids = append(ids, stored.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store batch: %w", err)
	}
	return ids, nil
}

func (s *SQLiteStore) RetrieveBySimilarity(ctx context.Context, embedding []float64, k int, filter Filter) ([]*Memory, error) {
	if k <= 0 || len(embedding) == 0 {
		return []*Memory{}, nil
	}

	q := s.db.WithContext(ctx).Model(&memoryRecord{})
	if filter.SessionID != "" {
		q = q.Where("session_id = ?", filter.SessionID)
	}
	if filter.MessageType != "" {
		q = q.Where("message_type = ?", string(filter.MessageType))
	}
	if filter.Speaker != "" {
		q = q.Where("speaker = ?", filter.Speaker)
	}

	var recs []memoryRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}

	type scored struct {
		mem   *Memory
		score float64
	}
	candidates := make([]scored, 0, len(recs))
	for i := range recs {
		m, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
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

func (s *SQLiteStore) RetrieveBySession(ctx context.Context, sessionID string, limit int) ([]*Memory, error) {
	q := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("turn_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []memoryRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return recordsToMemories(recs)
}

func (s *SQLiteStore) RetrieveRecent(ctx context.Context, n int, sessionID string) ([]*Memory, error) {
	if n <= 0 {
		return []*Memory{}, nil
	}
	q := s.db.WithContext(ctx).Order("timestamp DESC, turn_id DESC").Limit(n)
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	var recs []memoryRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	return recordsToMemories(recs)
}

func (s *SQLiteStore) RetrieveByType(ctx context.Context, messageType MessageType, sessionID string, limit int) ([]*Memory, error) {
	q := s.db.WithContext(ctx).
		Where("message_type = ?", string(messageType)).
		Order("turn_id ASC")
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []memoryRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query by type: %w", err)
	}
	return recordsToMemories(recs)
}

func (s *SQLiteStore) Update(ctx context.Context, id string, updates UpdateFields) (bool, error) {
	fields := map[string]any{}
	if updates.Importance != nil {
		fields["importance"] = *updates.Importance
	}
	if updates.Critical != nil {
		fields["critical"] = *updates.Critical
	}
	if updates.Tags != nil {
		tags, err := json.Marshal(updates.Tags)
		if err != nil {
			return false, fmt.Errorf("marshal tags: %w", err)
		}
		fields["tags"] = string(tags)
	}
	if len(fields) == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&memoryRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return false, err
		}
		return count > 0, nil
	}

	res := s.db.WithContext(ctx).Model(&memoryRecord{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return false, fmt.Errorf("update memory: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&memoryRecord{})
	if res.Error != nil {
		return false, fmt.Errorf("delete memory: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) (int, error) {
	res := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&memoryRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete session: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *SQLiteStore) Stats(ctx context.Context, sessionID string) (*Stats, error) {
	q := s.db.WithContext(ctx).Model(&memoryRecord{})
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	var recs []memoryRecord
	if err := q.Select("message_type", "speaker", "critical").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}

	stats := &Stats{
		ByType:    make(map[MessageType]int),
		BySpeaker: make(map[string]int),
	}
	for i := range recs {
		stats.Total++
		stats.ByType[MessageType(recs[i].MessageType)]++
		stats.BySpeaker[recs[i].Speaker]++
		if recs[i].Critical {
			stats.Critical++
		}
	}
	return stats, nil
}

func (s *SQLiteStore) ClearAll(ctx context.Context) (int, error) {
	res := s.db.WithContext(ctx).Where("1 = 1").Delete(&memoryRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear store: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func recordsToMemories(recs []memoryRecord) ([]*Memory, error) {
	out := make([]*Memory, 0, len(recs))
	for i := range recs {
		m, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
