package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// MongoStoreConfig configures the MongoDB-backed store.
type MongoStoreConfig struct {
	URI        string
	Database   string
	Collection string
}

// memoryDocument is the MongoDB document representation of a Memory.
type memoryDocument struct {
	ID           string             `bson:"_id"`
	SessionID    string             `bson:"session_id"`
	TurnID       int                `bson:"turn_id"`
	Timestamp    time.Time          `bson:"timestamp"`
	Speaker      string             `bson:"speaker"`
	Message      string             `bson:"message"`
	MessageType  string             `bson:"message_type"`
	OfferDetails map[string]float64 `bson:"offer_details,omitempty"`
	GameType     string             `bson:"game_type,omitempty"`
	Role         string             `bson:"role,omitempty"`
	Embedding    []float64          `bson:"embedding,omitempty"`
	Importance   float64            `bson:"importance"`
	Critical     bool               `bson:"critical"`
	Tags         []string           `bson:"tags,omitempty"`
}

// MongoStore persists memories in a MongoDB collection. Similarity is
// scored client-side over the session's documents; deployments with
// Atlas vector search can replace RetrieveBySimilarity with a pipeline.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

func NewMongoStore(cfg MongoStoreConfig, logger *zap.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "negotiarena"
	}
	collectionName := cfg.Collection
	if collectionName == "" {
		collectionName = "negotiation_memories"
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collectionName),
		logger:     logger.With(zap.String("component", "memory_store_mongo")),
	}, nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toDocument(m *Memory) *memoryDocument {
	return &memoryDocument{
		ID:           m.ID,
		SessionID:    m.Turn.SessionID,
		TurnID:       m.Turn.TurnID,
		Timestamp:    m.Turn.Timestamp,
		Speaker:      m.Turn.Speaker,
		Message:      m.Turn.Message,
		MessageType:  string(m.Turn.MessageType),
		OfferDetails: m.Turn.OfferDetails,
		GameType:     m.Turn.GameType,
		Role:         m.Turn.Role,
		Embedding:    m.Embedding,
		Importance:   m.Importance,
		Critical:     m.Critical,
		Tags:         m.Tags,
	}
}

func fromDocument(doc *memoryDocument) *Memory {
	return &Memory{
		ID: doc.ID,
		Turn: Turn{
			TurnID:       doc.TurnID,
			SessionID:    doc.SessionID,
			Timestamp:    doc.Timestamp,
			Speaker:      doc.Speaker,
			Message:      doc.Message,
			MessageType:  MessageType(doc.MessageType),
			OfferDetails: doc.OfferDetails,
			GameType:     doc.GameType,
			Role:         doc.Role,
		},
		Embedding:  doc.Embedding,
		Importance: doc.Importance,
		Critical:   doc.Critical,
		Tags:       doc.Tags,
	}
}

func (s *MongoStore) Store(ctx context.Context, mem *Memory) (string, error) {
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
	if _, err := s.collection.InsertOne(ctx, toDocument(stored)); err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}
	return stored.ID, nil
}

func (s *MongoStore) StoreBatch(ctx context.Context, mems []*Memory) ([]string, error) {
	if len(mems) == 0 {
		return []string{}, nil
	}
	ids := make([]string, len(mems))
	docs := make([]any, len(mems))
	for i, mem := range mems {
		if mem == nil {
			return nil, ErrInvalidInput
		}
		stored := cloneMemory(mem)
		if stored.ID == "" {
			stored.ID = uuid.New().String()
		}
		if stored.Turn.Timestamp.IsZero() {
			stored.Turn.Timestamp = time.Now()
		}
		ids[i] = stored.ID
		docs[i] = toDocument(stored)
	}
	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return nil, fmt.Errorf("store batch: %w", err)
	}
	return ids, nil
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOptions]) ([]*Memory, error) {
	cursor, err := s.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]*Memory, 0)
	for cursor.Next(ctx) {
		var doc memoryDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode memory: %w", err)
		}
		out = append(out, fromDocument(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return out, nil
}

func (s *MongoStore) RetrieveBySimilarity(ctx context.Context, embedding []float64, k int, filter Filter) ([]*Memory, error) {
	if k <= 0 || len(embedding) == 0 {
		return []*Memory{}, nil
	}
	query := bson.M{}
	if filter.SessionID != "" {
		query["session_id"] = filter.SessionID
	}
	if filter.MessageType != "" {
		query["message_type"] = string(filter.MessageType)
	}
	if filter.Speaker != "" {
		query["speaker"] = filter.Speaker
	}

	mems, err := s.find(ctx, query)
	if err != nil {
		return nil, err
	}

	type scored struct {
		mem   *Memory
		score float64
	}
	candidates := make([]scored, 0, len(mems))
	for _, m := range mems {
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

func (s *MongoStore) RetrieveBySession(ctx context.Context, sessionID string, limit int) ([]*Memory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "turn_id", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	return s.find(ctx, bson.M{"session_id": sessionID}, opts)
}

func (s *MongoStore) RetrieveRecent(ctx context.Context, n int, sessionID string) ([]*Memory, error) {
	if n <= 0 {
		return []*Memory{}, nil
	}
	query := bson.M{}
	if sessionID != "" {
		query["session_id"] = sessionID
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "turn_id", Value: -1}}).
		SetLimit(int64(n))
	return s.find(ctx, query, opts)
}

func (s *MongoStore) RetrieveByType(ctx context.Context, messageType MessageType, sessionID string, limit int) ([]*Memory, error) {
	query := bson.M{"message_type": string(messageType)}
	if sessionID != "" {
		query["session_id"] = sessionID
	}
	opts := options.Find().SetSort(bson.D{{Key: "turn_id", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	return s.find(ctx, query, opts)
}

func (s *MongoStore) Update(ctx context.Context, id string, updates UpdateFields) (bool, error) {
	set := bson.M{}
	if updates.Importance != nil {
		set["importance"] = *updates.Importance
	}
	if updates.Critical != nil {
		set["critical"] = *updates.Critical
	}
	if updates.Tags != nil {
		set["tags"] = updates.Tags
	}
	if len(set) == 0 {
		count, err := s.collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return false, fmt.Errorf("count memory: %w", err)
		}
		return count > 0, nil
	}

	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("update memory: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete memory: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) DeleteSession(ctx context.Context, sessionID string) (int, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("delete session: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (s *MongoStore) Stats(ctx context.Context, sessionID string) (*Stats, error) {
	query := bson.M{}
	if sessionID != "" {
		query["session_id"] = sessionID
	}
	mems, err := s.find(ctx, query)
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

func (s *MongoStore) ClearAll(ctx context.Context) (int, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("clear store: %w", err)
	}
	return int(res.DeletedCount), nil
}
