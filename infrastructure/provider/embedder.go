// Package provider implements clients for embedding model endpoints.
package provider

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the embedding service cannot produce a vector.
// It covers the disabled state, blank input, endpoint failures, and
// malformed responses. Callers degrade to exact-match behavior rather
// than failing the surrounding operation.
var ErrUnavailable = errors.New("embedding service unavailable")

// probeText is the input used to discover the model's vector dimension.
const probeText = "dimension probe"

// Embedder generates embedding vectors for text.
type Embedder interface {
	// Generate returns the embedding vector for a single text.
	Generate(ctx context.Context, text string) ([]float64, error)

	// GenerateBatch returns one vector per input text, in input order.
	GenerateBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimension reports the vector dimension of the configured model.
	Dimension(ctx context.Context) (int, error)

	// IsAvailable reports whether the service is enabled and reachable.
	IsAvailable(ctx context.Context) bool
}
