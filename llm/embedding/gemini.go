package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/negotiarena/llm"
)

// GeminiProvider embeds via the Google Gemini API. Gemini uses a
// per-model endpoint format: /models/{model}:embedContent.
type GeminiProvider struct {
	cfg    GeminiConfig
	client *http.Client
}

// GeminiConfig configures the Gemini embedding provider.
type GeminiConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultGeminiConfig returns the default Gemini embedding config.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		Model:   "gemini-embedding-001",
		Timeout: 30 * time.Second,
	}
}

func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-embedding-001"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &GeminiProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *GeminiProvider) Name() string      { return "gemini-embedding" }
func (p *GeminiProvider) Dimensions() int   { return 3072 }
func (p *GeminiProvider) MaxBatchSize() int { return 100 }

type geminiTaskType string

const (
	geminiTaskRetrievalQuery    geminiTaskType = "RETRIEVAL_QUERY"
	geminiTaskRetrievalDocument geminiTaskType = "RETRIEVAL_DOCUMENT"
)

type geminiEmbedRequest struct {
	Model                string         `json:"model"`
	Content              geminiContent  `json:"content"`
	TaskType             geminiTaskType `json:"taskType,omitempty"`
	OutputDimensionality int            `json:"outputDimensionality,omitempty"`
}

type geminiBatchEmbedRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiEmbedResponse struct {
	Embedding geminiContentEmbedding `json:"embedding"`
}

type geminiBatchEmbedResponse struct {
	Embeddings []geminiContentEmbedding `json:"embeddings"`
}

type geminiContentEmbedding struct {
	Values []float64 `json:"values"`
}

func mapTaskType(inputType InputType) geminiTaskType {
	if inputType == InputTypeQuery {
		return geminiTaskRetrievalQuery
	}
	return geminiTaskRetrievalDocument
}

// Embed generates embeddings using the Gemini API, batching when more
// than one input is given.
func (p *GeminiProvider) Embed(ctx context.Context, req *Request) (*Response, error) {
	model := ChooseModel(req.Model, p.cfg.Model, "gemini-embedding-001")
	taskType := mapTaskType(req.InputType)

	if len(req.Input) > 1 {
		return p.batchEmbed(ctx, req, model, taskType)
	}
	if len(req.Input) == 0 {
		return &Response{Provider: p.Name(), Model: model, CreatedAt: time.Now()}, nil
	}

	body := geminiEmbedRequest{
		Model: fmt.Sprintf("models/%s", model),
		Content: geminiContent{
			Parts: []geminiPart{{Text: req.Input[0]}},
		},
		TaskType: taskType,
	}
	if req.Dimensions > 0 {
		body.OutputDimensionality = req.Dimensions
	}

	endpoint := fmt.Sprintf("%s/models/%s:embedContent", strings.TrimRight(p.cfg.BaseURL, "/"), model)
	respBody, err := p.doRequest(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	var gResp geminiEmbedResponse
	if err := json.Unmarshal(respBody, &gResp); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	return &Response{
		Provider: p.Name(),
		Model:    model,
		Embeddings: []Data{{
			Index:     0,
			Embedding: gResp.Embedding.Values,
		}},
		CreatedAt: time.Now(),
	}, nil
}

func (p *GeminiProvider) batchEmbed(ctx context.Context, req *Request, model string, taskType geminiTaskType) (*Response, error) {
	requests := make([]geminiEmbedRequest, len(req.Input))
	for i, text := range req.Input {
		requests[i] = geminiEmbedRequest{
			Model: fmt.Sprintf("models/%s", model),
			Content: geminiContent{
				Parts: []geminiPart{{Text: text}},
			},
			TaskType: taskType,
		}
		if req.Dimensions > 0 {
			requests[i].OutputDimensionality = req.Dimensions
		}
	}

	endpoint := fmt.Sprintf("%s/models/%s:batchEmbedContents", strings.TrimRight(p.cfg.BaseURL, "/"), model)
	respBody, err := p.doRequest(ctx, endpoint, geminiBatchEmbedRequest{Requests: requests})
	if err != nil {
		return nil, err
	}

	var gResp geminiBatchEmbedResponse
	if err := json.Unmarshal(respBody, &gResp); err != nil {
		return nil, fmt.Errorf("decode gemini batch response: %w", err)
	}

	embeddings := make([]Data, len(gResp.Embeddings))
	for i, emb := range gResp.Embeddings {
		embeddings[i] = Data{Index: i, Embedding: emb.Values}
	}

	return &Response{
		Provider:   p.Name(),
		Model:      model,
		Embeddings: embeddings,
		CreatedAt:  time.Now(),
	}, nil
}

// doRequest performs an HTTP request with Gemini-specific auth headers.
func (p *GeminiProvider) doRequest(ctx context.Context, endpoint string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Gemini authenticates with x-goog-api-key, not a Bearer token.
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, llm.MapHTTPError(resp.StatusCode, string(respBody), p.Name())
	}
	return respBody, nil
}

func (p *GeminiProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	resp, err := p.Embed(ctx, &Request{
		Input:     []string{query},
		InputType: InputTypeQuery,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

func (p *GeminiProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	resp, err := p.Embed(ctx, &Request{
		Input:     documents,
		InputType: InputTypeDocument,
	})
	if err != nil {
		return nil, err
	}
	result := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		result[i] = emb.Embedding
	}
	return result, nil
}
