// Package history provides the quiz history domain: records, embedding
// source mappings, backend-neutral search queries, schemas, and the storage
// contract shared by all backends.
package history

import (
	"errors"
	"fmt"
	"time"
)

// TimestampLayout is the persisted timestamp format. Fixed-width UTC so that
// lexicographic order matches chronological order in backends that compare
// the stored string directly.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Persisted field names for the main collection.
const (
	FieldUsername      = "username"
	FieldQuestion      = "question"
	FieldEquation      = "equation"
	FieldUserEquation  = "user_equation"
	FieldUserAnswer    = "user_answer"
	FieldCorrectAnswer = "correct_answer"
	FieldIsCorrect     = "is_correct"
	FieldCategory      = "category"
	FieldTimestamp     = "timestamp"
	FieldReviewed      = "reviewed"
)

// Companion table field names.
const (
	FieldRecordID  = "record_id"
	FieldEmbedding = "embedding"
)

// Validation errors. The question and user equation are embedding source
// columns, so an empty value in either is an embedding-source failure and
// matches errors.Is against ErrEmbeddingSourceMissing.
var (
	ErrUsernameRequired     = errors.New("username must not be empty")
	ErrQuestionRequired     = fmt.Errorf("%w: question must not be empty", ErrEmbeddingSourceMissing)
	ErrUserEquationRequired = fmt.Errorf("%w: user equation must not be empty", ErrEmbeddingSourceMissing)
)

// Record is one completed quiz attempt. Immutable once constructed; the
// persisted document and its backend-issued identifier are derived from it
// by the history service.
type Record struct {
	username      string
	question      string
	userEquation  string
	userAnswer    float64
	correctAnswer float64
	isCorrect     bool
	category      string
	timestamp     time.Time
	reviewed      bool
}

// NewRecord creates a Record with the timestamp set to the current time.
func NewRecord(
	username, question, userEquation string,
	userAnswer, correctAnswer float64,
	isCorrect bool,
	category string,
) Record {
	return Record{
		username:      username,
		question:      question,
		userEquation:  userEquation,
		userAnswer:    userAnswer,
		correctAnswer: correctAnswer,
		isCorrect:     isCorrect,
		category:      category,
		timestamp:     time.Now().UTC(),
	}
}

// WithTimestamp returns a copy of the record with an explicit timestamp.
func (r Record) WithTimestamp(t time.Time) Record {
	r.timestamp = t.UTC()
	return r
}

// Username returns the record owner.
func (r Record) Username() string { return r.username }

// Question returns the question text.
func (r Record) Question() string { return r.question }

// UserEquation returns the expression the user entered.
func (r Record) UserEquation() string { return r.userEquation }

// UserAnswer returns the answer the user computed.
func (r Record) UserAnswer() float64 { return r.userAnswer }

// CorrectAnswer returns the expected answer.
func (r Record) CorrectAnswer() float64 { return r.correctAnswer }

// IsCorrect returns whether the user answered correctly.
func (r Record) IsCorrect() bool { return r.isCorrect }

// Category returns the taxonomy tag.
func (r Record) Category() string { return r.category }

// Timestamp returns the record creation time.
func (r Record) Timestamp() time.Time { return r.timestamp }

// Reviewed returns whether the record has been reviewed. Always false for a
// freshly constructed record; review state is updated outside this layer.
func (r Record) Reviewed() bool { return r.reviewed }

// Validate checks the invariants a record must satisfy before it may be
// persisted with embeddings.
func (r Record) Validate() error {
	if r.username == "" {
		return ErrUsernameRequired
	}
	if r.question == "" {
		return ErrQuestionRequired
	}
	if r.userEquation == "" {
		return ErrUserEquationRequired
	}
	return nil
}

// Document is the persisted shape of a record, keyed by field name.
type Document map[string]any

// Document builds the persisted main-collection document. Both "equation" and
// "user_equation" carry the user's expression; readers of the old schema use
// "equation" while current readers use "user_equation". The duplication is a
// stable part of the persisted shape, not a bug.
func (r Record) Document() Document {
	return Document{
		FieldUsername:      r.username,
		FieldQuestion:      r.question,
		FieldEquation:      r.userEquation,
		FieldUserEquation:  r.userEquation,
		FieldUserAnswer:    r.userAnswer,
		FieldCorrectAnswer: r.correctAnswer,
		FieldIsCorrect:     r.isCorrect,
		FieldCategory:      r.category,
		FieldTimestamp:     r.timestamp.Format(TimestampLayout),
		FieldReviewed:      r.reviewed,
	}
}

// SourceText resolves an embedding source column to its text on the record.
// The second return is false for source columns the record does not carry.
func (r Record) SourceText(column string) (string, bool) {
	switch column {
	case FieldQuestion:
		return r.question, true
	case FieldEquation, FieldUserEquation:
		return r.userEquation, true
	default:
		return "", false
	}
}
