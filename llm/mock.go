package llm

import (
	"context"
	"sync"
	"time"
)

// ScriptedProvider replays a fixed sequence of responses. It backs tests
// and dry runs where deterministic transcripts matter more than model
// output.
type ScriptedProvider struct {
	mu        sync.Mutex
	responses []string
	next      int

	// Err, when set, is returned by every Completion call.
	Err error
}

func NewScriptedProvider(responses ...string) *ScriptedProvider {
	return &ScriptedProvider{responses: responses}
}

func (p *ScriptedProvider) Name() string { return "scripted" }

// Completion returns the next scripted response, repeating the last one
// once the script runs out.
func (p *ScriptedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	if len(p.responses) == 0 {
		return nil, &Error{Code: ErrProviderUnavailable, Message: "script empty", Provider: p.Name()}
	}
	idx := p.next
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	p.next++

	return &ChatResponse{
		Provider: p.Name(),
		Model:    req.Model,
		Choices: []ChatChoice{{
			FinishReason: "stop",
			Message:      Message{Role: RoleAssistant, Content: p.responses[idx]},
		}},
		CreatedAt: time.Now(),
	}, nil
}

func (p *ScriptedProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: true}, nil
}

// Calls reports how many completions have been served.
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}

// Reset rewinds the script to the beginning.
func (p *ScriptedProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = 0
}
