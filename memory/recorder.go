package memory

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/negotiarena/llm/embedding"
)

// RecorderConfig configures turn recording.
type RecorderConfig struct {
	// MaxConcurrentEmbeds bounds parallel embedding calls in
	// RecordBatch. Defaults to 4.
	MaxConcurrentEmbeds int

	// Now is for tests. Defaults to time.Now.
	Now func() time.Time
}

// Recorder classifies negotiation turns, embeds them, and writes them to
// the store. One record is created per agent turn immediately after a
// response is generated.
type Recorder struct {
	store    Store
	embedder embedding.Provider
	cfg      RecorderConfig
	logger   *zap.Logger
}

func NewRecorder(store Store, embedder embedding.Provider, cfg RecorderConfig, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrentEmbeds <= 0 {
		cfg.MaxConcurrentEmbeds = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Recorder{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "memory_recorder")),
	}
}

// TurnInput is the raw material for one recorded memory.
type TurnInput struct {
	SessionID    string
	TurnID       int
	Speaker      string
	Role         string
	GameType     string
	Message      string
	OfferDetails map[string]float64
}

// Record classifies, embeds, and stores a single turn.
func (r *Recorder) Record(ctx context.Context, in TurnInput) (*Memory, error) {
	vec, err := r.embedder.EmbedQuery(ctx, in.Message)
	if err != nil {
		return nil, err
	}
	mem := r.build(in, vec)
	id, err := r.store.Store(ctx, mem)
	if err != nil {
		return nil, err
	}
	mem.ID = id
	return mem, nil
}

// RecordBatch embeds multiple turns concurrently, then stores them in
// one batch write. Turn order within the batch is preserved.
func (r *Recorder) RecordBatch(ctx context.Context, inputs []TurnInput) ([]*Memory, error) {
	if len(inputs) == 0 {
		return []*Memory{}, nil
	}

	vectors := make([][]float64, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrentEmbeds)
	for i, in := range inputs {
		g.Go(func() error {
			vec, err := r.embedder.EmbedQuery(gctx, in.Message)
			if err != nil {
				return err
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mems := make([]*Memory, len(inputs))
	for i, in := range inputs {
		mems[i] = r.build(in, vectors[i])
	}
	ids, err := r.store.StoreBatch(ctx, mems)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		mems[i].ID = id
	}
	return mems, nil
}

func (r *Recorder) build(in TurnInput, vec []float64) *Memory {
	return &Memory{
		Turn: Turn{
			TurnID:       in.TurnID,
			SessionID:    in.SessionID,
			Timestamp:    r.cfg.Now(),
			Speaker:      in.Speaker,
			Message:      in.Message,
			MessageType:  ClassifyMessage(in.Message),
			OfferDetails: in.OfferDetails,
			GameType:     in.GameType,
			Role:         in.Role,
		},
		Embedding:  vec,
		Importance: ImportanceOf(in.Message),
		Critical:   IsCritical(in.Message),
	}
}
