package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mathsolver/quizrag/internal/config"
	"github.com/mathsolver/quizrag/internal/log"
)

// OpenAIEmbedder generates embeddings from an OpenAI-compatible endpoint.
// The endpoint URL is composed as {modelURL}/engines/{engine}/v1, matching
// model runners that route by serving engine.
//
// Requests are made once with no retries. A failed or slow endpoint
// surfaces as ErrUnavailable so callers can degrade immediately instead
// of stalling the write path.
type OpenAIEmbedder struct {
	enabled   bool
	modelName string
	single    *openai.Client
	batch     *openai.Client
	logger    *log.Logger
}

// NewOpenAIEmbedder creates an embedder from configuration.
func NewOpenAIEmbedder(cfg config.EmbeddingConfig, logger *log.Logger) *OpenAIEmbedder {
	if logger == nil {
		logger = log.Default()
	}

	baseURL := strings.TrimRight(cfg.ModelURL(), "/") + "/engines/" + cfg.Engine() + "/v1"

	singleCfg := openai.DefaultConfig("")
	singleCfg.BaseURL = baseURL
	singleCfg.HTTPClient = &http.Client{Timeout: cfg.SingleTimeout()}

	batchCfg := openai.DefaultConfig("")
	batchCfg.BaseURL = baseURL
	batchCfg.HTTPClient = &http.Client{Timeout: cfg.BatchTimeout()}

	return &OpenAIEmbedder{
		enabled:   cfg.Enabled(),
		modelName: cfg.ModelName(),
		single:    openai.NewClientWithConfig(singleCfg),
		batch:     openai.NewClientWithConfig(batchCfg),
		logger:    logger,
	}
}

// Generate returns the embedding vector for a single text.
func (e *OpenAIEmbedder) Generate(ctx context.Context, text string) ([]float64, error) {
	if !e.enabled {
		return nil, fmt.Errorf("%w: disabled by configuration", ErrUnavailable)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: blank input", ErrUnavailable)
	}

	resp, err := e.single.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.modelName),
		Input: text,
	})
	if err != nil {
		e.logger.Warn("embedding request failed", "model", e.modelName, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Data) != 1 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	return toFloat64(resp.Data[0].Embedding), nil
}

// GenerateBatch returns one vector per input text, in input order. Blank
// texts and a count mismatch in the response both make the whole batch
// unavailable so callers never attribute a vector to the wrong text.
func (e *OpenAIEmbedder) GenerateBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if !e.enabled {
		return nil, fmt.Errorf("%w: disabled by configuration", ErrUnavailable)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrUnavailable)
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: blank input at position %d", ErrUnavailable, i)
		}
	}

	resp, err := e.batch.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.modelName),
		Input: texts,
	})
	if err != nil {
		e.logger.Warn("batch embedding request failed",
			"model", e.modelName, "count", len(texts), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts",
			ErrUnavailable, len(resp.Data), len(texts))
	}

	vectors := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty vector at position %d", ErrUnavailable, i)
		}
		vectors[i] = toFloat64(d.Embedding)
	}
	return vectors, nil
}

// Dimension reports the model's vector dimension by embedding a probe text.
// Never cached: each call hits the endpoint, so the answer always reflects
// its current state.
func (e *OpenAIEmbedder) Dimension(ctx context.Context) (int, error) {
	vec, err := e.Generate(ctx, probeText)
	if err != nil {
		return 0, err
	}
	return len(vec), nil
}

// IsAvailable reports whether the service is enabled and the endpoint
// answers a probe request right now.
func (e *OpenAIEmbedder) IsAvailable(ctx context.Context) bool {
	if !e.enabled {
		return false
	}
	_, err := e.Dimension(ctx)
	return err == nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
