package history

import (
	"errors"
	"fmt"
)

// Backend identifies the storage backend variant. Selected once at service
// construction; never mixed within a single service instance.
type Backend string

// Backend values.
const (
	// BackendDocument is a document store with native multi-vector support.
	// Embedding columns live on the main document.
	BackendDocument Backend = "mongodb"

	// BackendRelational is a relational store limited to one vector index
	// per table. Embedding columns live in split companion tables.
	BackendRelational Backend = "sql"
)

// ErrUnknownBackend indicates an unrecognized backend selector.
var ErrUnknownBackend = errors.New("unknown storage backend")

// ParseBackend parses a configuration backend selector.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendDocument, BackendRelational:
		return Backend(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// FieldType classifies a schema field. Backend adapters translate types to
// their native column or mapping kinds.
type FieldType string

// FieldType values.
const (
	TypeKeyword   FieldType = "keyword"
	TypeText      FieldType = "text"
	TypeFloat     FieldType = "float"
	TypeBool      FieldType = "bool"
	TypeTimestamp FieldType = "timestamp"
	TypeVector    FieldType = "vector"
	TypeReference FieldType = "reference"
)

// Field is a single schema field. Text fields carry a relevance boost used by
// backends that weight match scoring at index-creation time.
type Field struct {
	name  string
	ftype FieldType
	boost float64
}

// NewField creates a Field with the default boost of 1.
func NewField(name string, ftype FieldType) Field {
	return Field{name: name, ftype: ftype, boost: 1}
}

// WithBoost returns a copy of the field with the given relevance boost.
func (f Field) WithBoost(boost float64) Field {
	f.boost = boost
	return f
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Type returns the field type.
func (f Field) Type() FieldType { return f.ftype }

// Boost returns the relevance boost (1 unless set).
func (f Field) Boost() float64 { return f.boost }

// Schema is an ordered set of fields for one collection or table.
type Schema struct {
	fields []Field
}

// NewSchema creates a Schema from the given fields.
func NewSchema(fields ...Field) Schema {
	out := make([]Field, len(fields))
	copy(out, fields)
	return Schema{fields: out}
}

// Fields returns the ordered fields.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// FieldNames returns the ordered field names.
func (s Schema) FieldNames() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.name
	}
	return out
}

// Field looks up a field by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.name == name {
			return f, true
		}
	}
	return Field{}, false
}

// MainSchema returns the main collection schema for the given backend.
//
// For the document backend, includeEmbeddings=true appends one vector field
// per embedding column. For the relational backend the embedding fields are
// never part of the main schema, even when includeEmbeddings is true: they
// live in companion tables. The asymmetry is deliberate.
func MainSchema(backend Backend, mapping EmbeddingSourceMapping, includeEmbeddings bool) Schema {
	fields := []Field{
		NewField(FieldUsername, TypeKeyword),
		NewField(FieldQuestion, TypeText).WithBoost(2),
		NewField(FieldEquation, TypeText),
		NewField(FieldUserEquation, TypeText),
		NewField(FieldUserAnswer, TypeFloat),
		NewField(FieldCorrectAnswer, TypeFloat),
		NewField(FieldIsCorrect, TypeBool),
		NewField(FieldCategory, TypeKeyword),
		NewField(FieldTimestamp, TypeTimestamp),
		NewField(FieldReviewed, TypeBool),
	}

	if includeEmbeddings && backend == BackendDocument {
		for _, col := range mapping.EmbeddingColumns() {
			fields = append(fields, NewField(col, TypeVector))
		}
	}

	return NewSchema(fields...)
}

// CompanionSchema is the schema of every companion embedding table: a
// reference to the main record and the vector itself.
func CompanionSchema() Schema {
	return NewSchema(
		NewField(FieldRecordID, TypeReference),
		NewField(FieldEmbedding, TypeVector),
	)
}

// CompanionSchemas returns one schema per embedding column, keyed by the
// deterministic companion table name.
func CompanionSchemas(indexName string, mapping EmbeddingSourceMapping) map[string]Schema {
	out := make(map[string]Schema, mapping.Len())
	for _, col := range mapping.EmbeddingColumns() {
		out[CompanionTableName(indexName, col)] = CompanionSchema()
	}
	return out
}

// CompanionTableName derives the companion table name for an embedding
// column. Pure function of its inputs so the name is reproducible across
// restarts without a lookup table.
func CompanionTableName(indexName, embeddingColumn string) string {
	return indexName + "_" + embeddingColumn
}
