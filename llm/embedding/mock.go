package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"
)

// MockProvider produces deterministic unit-norm vectors seeded by the
// input text hash. Identical texts always map to identical vectors, so
// similarity comparisons behave sensibly in tests and offline runs.
type MockProvider struct {
	dimensions int

	// Err, when set, is returned by every call.
	Err error
}

func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = 64
	}
	return &MockProvider{dimensions: dimensions}
}

func (p *MockProvider) Name() string      { return "mock-embedding" }
func (p *MockProvider) Dimensions() int   { return p.dimensions }
func (p *MockProvider) MaxBatchSize() int { return 1024 }

func (p *MockProvider) vector(text string) []float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float64, p.dimensions)
	var norm float64
	for i := range vec {
		vec[i] = rng.NormFloat64()
		norm += vec[i] * vec[i]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

func (p *MockProvider) Embed(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	embeddings := make([]Data, len(req.Input))
	for i, text := range req.Input {
		embeddings[i] = Data{Index: i, Embedding: p.vector(text)}
	}
	return &Response{
		Provider:   p.Name(),
		Model:      "mock",
		Embeddings: embeddings,
		CreatedAt:  time.Now(),
	}, nil
}

func (p *MockProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return p.vector(query), nil
}

func (p *MockProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	result := make([][]float64, len(documents))
	for i, doc := range documents {
		result[i] = p.vector(doc)
	}
	return result, nil
}
