package memory

import (
	"context"
	"errors"
	"math"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("memory not found")
	ErrDimension    = errors.New("embedding dimension mismatch")
)

// Store is the abstract persistence contract for negotiation memories.
// Retrieval operations return at most the requested count and never fail
// on an empty store; callers treat "no memories yet" as a normal state
// during a negotiation's opening turns.
type Store interface {
	// Store persists one memory, assigning an ID when absent.
	Store(ctx context.Context, mem *Memory) (string, error)

	// StoreBatch persists multiple memories.
	StoreBatch(ctx context.Context, mems []*Memory) ([]string, error)

	// RetrieveBySimilarity returns the top-k memories by descending
	// cosine similarity to the query embedding.
	RetrieveBySimilarity(ctx context.Context, embedding []float64, k int, filter Filter) ([]*Memory, error)

	// RetrieveBySession returns a session's memories ordered by turn id
	// ascending. A non-positive limit returns all of them.
	RetrieveBySession(ctx context.Context, sessionID string, limit int) ([]*Memory, error)

	// RetrieveRecent returns the n most recently timestamped memories,
	// newest first. An empty sessionID spans all sessions.
	RetrieveRecent(ctx context.Context, n int, sessionID string) ([]*Memory, error)

	// RetrieveByType filters by message type, ordered by turn id
	// ascending.
	RetrieveByType(ctx context.Context, messageType MessageType, sessionID string, limit int) ([]*Memory, error)

	// Update applies metadata changes; reports whether the id existed.
	Update(ctx context.Context, id string, updates UpdateFields) (bool, error)

	// Delete removes one memory; reports whether the id existed.
	Delete(ctx context.Context, id string) (bool, error)

	// DeleteSession removes all of a session's memories and returns the
	// count removed.
	DeleteSession(ctx context.Context, sessionID string) (int, error)

	// Stats summarizes a session.
	Stats(ctx context.Context, sessionID string) (*Stats, error)

	// ClearAll wipes the store and returns the count removed.
	ClearAll(ctx context.Context) (int, error)
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func (f Filter) matches(m *Memory) bool {
	if f.SessionID != "" && m.Turn.SessionID != f.SessionID {
		return false
	}
	if f.MessageType != "" && m.Turn.MessageType != f.MessageType {
		return false
	}
	if f.Speaker != "" && m.Turn.Speaker != f.Speaker {
		return false
	}
	return true
}

func cloneMemory(m *Memory) *Memory {
	if m == nil {
		return nil
	}
	out := *m
	out.Embedding = append([]float64(nil), m.Embedding...)
	out.Tags = append([]string(nil), m.Tags...)
	if m.Turn.OfferDetails != nil {
		out.Turn.OfferDetails = make(map[string]float64, len(m.Turn.OfferDetails))
		for k, v := range m.Turn.OfferDetails {
			out.Turn.OfferDetails[k] = v
		}
	}
	return &out
}
