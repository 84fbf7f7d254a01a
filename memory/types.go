// Package memory persists turn-level negotiation records with vector
// embeddings and retrieves them by semantic similarity, recency, or a
// weighted blend of both.
package memory

import "time"

// MessageType classifies what a negotiation message does.
type MessageType string

const (
	TypeAcceptance   MessageType = "acceptance"
	TypeRejection    MessageType = "rejection"
	TypeAlliance     MessageType = "alliance"
	TypeBetrayal     MessageType = "betrayal"
	TypeOffer        MessageType = "offer"
	TypeCounteroffer MessageType = "counteroffer"
	TypeChat         MessageType = "chat"
)

// Turn is a single utterance within a negotiation session.
type Turn struct {
	TurnID       int                `json:"turn_id"`
	SessionID    string             `json:"session_id"`
	Timestamp    time.Time          `json:"timestamp"`
	Speaker      string             `json:"speaker"`
	Message      string             `json:"message"`
	MessageType  MessageType        `json:"message_type"`
	OfferDetails map[string]float64 `json:"offer_details,omitempty"`
	GameType     string             `json:"game_type,omitempty"`
	Role         string             `json:"role,omitempty"`
}

// Memory pairs a turn with its embedding and retrieval metadata.
// Entries are immutable after creation except for metadata updates.
type Memory struct {
	ID         string    `json:"id"`
	Turn       Turn      `json:"turn"`
	Embedding  []float64 `json:"embedding,omitempty"`
	Importance float64   `json:"importance"`
	Critical   bool      `json:"critical"`
	Tags       []string  `json:"tags,omitempty"`
}

// Filter narrows similarity retrieval.
type Filter struct {
	SessionID   string
	MessageType MessageType
	Speaker     string
}

// UpdateFields are the mutable parts of a stored memory. Nil pointers
// leave the field untouched.
type UpdateFields struct {
	Importance *float64
	Critical   *bool
	Tags       []string
}

// Stats summarizes a session's stored memories. An empty session yields
// all-zero counts, never an error.
type Stats struct {
	Total     int                 `json:"total"`
	Critical  int                 `json:"critical"`
	ByType    map[MessageType]int `json:"by_type"`
	BySpeaker map[string]int      `json:"by_speaker"`
}

// Strategy selects how the retriever ranks session memories.
type Strategy string

const (
	StrategySemantic Strategy = "semantic"
	StrategyRecency  Strategy = "recency"
	StrategyHybrid   Strategy = "hybrid"
	StrategyCritical Strategy = "critical"
)

// RetrievalResult is the outcome of one retrieval call.
type RetrievalResult struct {
	Memories []*Memory
	Query    string
	Strategy Strategy
	Scores   []float64
}

func (r *RetrievalResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Memories)
}
