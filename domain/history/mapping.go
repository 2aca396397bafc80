package history

import (
	"errors"
	"fmt"
	"strings"
)

// Mapping construction errors.
var (
	ErrMappingLengthMismatch = errors.New("source and embedding column lists must have the same length")
	ErrMappingEmpty          = errors.New("embedding source mapping must have at least one pair")
)

// ColumnPair maps a source text column to the embedding column that stores
// its vector.
type ColumnPair struct {
	source    string
	embedding string
}

// Source returns the source column name.
func (p ColumnPair) Source() string { return p.source }

// Embedding returns the embedding column name.
func (p ColumnPair) Embedding() string { return p.embedding }

// EmbeddingSourceMapping is an ordered mapping from source text columns to
// embedding columns. Read-only at runtime; source keys and embedding values
// are each unique.
type EmbeddingSourceMapping struct {
	pairs []ColumnPair
}

// NewEmbeddingSourceMapping pairs source columns with embedding columns
// positionally and validates uniqueness on both sides.
func NewEmbeddingSourceMapping(sources, embeddings []string) (EmbeddingSourceMapping, error) {
	if len(sources) != len(embeddings) {
		return EmbeddingSourceMapping{}, fmt.Errorf(
			"%w: %d sources, %d embedding columns",
			ErrMappingLengthMismatch, len(sources), len(embeddings),
		)
	}
	if len(sources) == 0 {
		return EmbeddingSourceMapping{}, ErrMappingEmpty
	}

	seenSource := make(map[string]struct{}, len(sources))
	seenEmbedding := make(map[string]struct{}, len(embeddings))
	pairs := make([]ColumnPair, 0, len(sources))
	for i := range sources {
		src := strings.TrimSpace(sources[i])
		emb := strings.TrimSpace(embeddings[i])
		if src == "" || emb == "" {
			return EmbeddingSourceMapping{}, fmt.Errorf("mapping pair %d has an empty column name", i)
		}
		if _, ok := seenSource[src]; ok {
			return EmbeddingSourceMapping{}, fmt.Errorf("duplicate source column %q", src)
		}
		if _, ok := seenEmbedding[emb]; ok {
			return EmbeddingSourceMapping{}, fmt.Errorf("duplicate embedding column %q", emb)
		}
		seenSource[src] = struct{}{}
		seenEmbedding[emb] = struct{}{}
		pairs = append(pairs, ColumnPair{source: src, embedding: emb})
	}

	return EmbeddingSourceMapping{pairs: pairs}, nil
}

// ParseEmbeddingSourceMapping builds a mapping from two comma-delimited
// column lists, paired positionally. This is the configuration surface form.
func ParseEmbeddingSourceMapping(sourceList, embeddingList string) (EmbeddingSourceMapping, error) {
	return NewEmbeddingSourceMapping(splitColumns(sourceList), splitColumns(embeddingList))
}

// DefaultEmbeddingSourceMapping returns the standard question/equation mapping.
func DefaultEmbeddingSourceMapping() EmbeddingSourceMapping {
	m, err := NewEmbeddingSourceMapping(
		[]string{FieldQuestion, FieldEquation},
		[]string{"question_embedding", "equation_embedding"},
	)
	if err != nil {
		panic(err) // static inputs, cannot fail
	}
	return m
}

// Pairs returns the ordered column pairs.
func (m EmbeddingSourceMapping) Pairs() []ColumnPair {
	out := make([]ColumnPair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// Len returns the number of pairs.
func (m EmbeddingSourceMapping) Len() int { return len(m.pairs) }

// EmbeddingColumns returns the embedding column names in order.
func (m EmbeddingSourceMapping) EmbeddingColumns() []string {
	out := make([]string, len(m.pairs))
	for i, p := range m.pairs {
		out[i] = p.embedding
	}
	return out
}

// SourceColumns returns the source column names in order.
func (m EmbeddingSourceMapping) SourceColumns() []string {
	out := make([]string, len(m.pairs))
	for i, p := range m.pairs {
		out[i] = p.source
	}
	return out
}

func splitColumns(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
