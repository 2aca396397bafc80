package history

import "context"

// Hit is a single search result: the stored fields plus a relevance score.
type Hit struct {
	id     string
	score  float64
	fields Document
}

// NewHit creates a Hit.
func NewHit(id string, score float64, fields Document) Hit {
	cp := make(Document, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Hit{id: id, score: score, fields: cp}
}

// ID returns the backend-issued record identifier.
func (h Hit) ID() string { return h.id }

// Score returns the relevance score (0 for filter-only queries).
func (h Hit) Score() float64 { return h.score }

// Fields returns the stored fields.
func (h Hit) Fields() Document {
	cp := make(Document, len(h.fields))
	for k, v := range h.fields {
		cp[k] = v
	}
	return cp
}

// Store is the uniform storage backend contract. Implementations translate
// schemas and queries to backend-specific syntax but perform no multi-table
// orchestration; that responsibility belongs to the history service.
type Store interface {
	// CreateCollection ensures a collection or table exists with the given
	// schema. Idempotent: a no-op when already present with a compatible
	// schema; a StorageError on schema conflict.
	CreateCollection(ctx context.Context, name string, schema Schema) error

	// Insert persists one document and returns its issued identifier.
	Insert(ctx context.Context, collection string, doc Document) (string, error)

	// Delete removes the record with the given identifier. A no-op when the
	// record does not exist.
	Delete(ctx context.Context, collection string, id string) error

	// Search executes a backend-neutral query and returns ranked hits.
	// Zero matches yield an empty slice, not an error; an error is
	// reported only when the backend is unreachable or rejects the query.
	Search(ctx context.Context, collection string, query SearchQuery) ([]Hit, error)

	// IsConnected is a cheap liveness probe. Never panics.
	IsConnected(ctx context.Context) bool
}
