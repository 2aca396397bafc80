package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathsolver/quizrag/domain/history"
	"github.com/mathsolver/quizrag/infrastructure/provider"
	"github.com/mathsolver/quizrag/internal/config"
)

type insertCall struct {
	collection string
	doc        history.Document
}

// fakeStore records calls and simulates per-collection failures.
type fakeStore struct {
	connected   bool
	created     []string
	inserts     []insertCall
	deletes     []string
	searches    []history.SearchQuery
	failInserts map[string]error
	searchHits  []history.Hit
	searchErr   error
	nextID      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{connected: true, failInserts: map[string]error{}}
}

func (f *fakeStore) CreateCollection(_ context.Context, name string, _ history.Schema) error {
	f.created = append(f.created, name)
	return nil
}

func (f *fakeStore) Insert(_ context.Context, collection string, doc history.Document) (string, error) {
	if err := f.failInserts[collection]; err != nil {
		return "", err
	}
	f.inserts = append(f.inserts, insertCall{collection: collection, doc: doc})
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID), nil
}

func (f *fakeStore) Delete(_ context.Context, collection string, id string) error {
	f.deletes = append(f.deletes, collection+"/"+id)
	return nil
}

func (f *fakeStore) Search(_ context.Context, _ string, query history.SearchQuery) ([]history.Hit, error) {
	f.searches = append(f.searches, query)
	return f.searchHits, f.searchErr
}

func (f *fakeStore) IsConnected(context.Context) bool {
	return f.connected
}

func (f *fakeStore) insertsInto(collection string) []insertCall {
	var out []insertCall
	for _, c := range f.inserts {
		if c.collection == collection {
			out = append(out, c)
		}
	}
	return out
}

// fakeEmbedder returns a fixed vector and counts calls.
type fakeEmbedder struct {
	vector []float64
	err    error
	calls  int
}

func (f *fakeEmbedder) Generate(context.Context, string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) GenerateBatch(_ context.Context, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range out {
		f.calls++
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension(context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.vector), nil
}

func (f *fakeEmbedder) IsAvailable(context.Context) bool {
	return f.err == nil
}

func newService(store history.Store, backend history.Backend, opts ...HistoryOption) *HistoryService {
	base := []HistoryOption{
		WithEmbedder(&fakeEmbedder{vector: []float64{0.1, 0.2}}),
	}
	return NewHistoryService(store, backend, append(base, opts...)...)
}

func aliceRecord() history.Record {
	return history.NewRecord("alice", "What is 2+2?", "2+2", 4, 4, true, "arithmetic")
}

func TestInitializeDocumentBackend(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, history.BackendDocument)

	require.NoError(t, svc.Initialize(context.Background()))
	assert.Equal(t, []string{"answer_history"}, store.created)
}

func TestInitializeRelationalCreatesCompanionTables(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, history.BackendRelational)

	require.NoError(t, svc.Initialize(context.Background()))
	assert.Len(t, store.created, 3)
	assert.Contains(t, store.created, "answer_history")
	assert.Contains(t, store.created, "answer_history_question_embedding")
	assert.Contains(t, store.created, "answer_history_equation_embedding")
}

func TestInitializeIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, history.BackendDocument)

	require.NoError(t, svc.Initialize(context.Background()))
	require.NoError(t, svc.Initialize(context.Background()))
	assert.Len(t, store.created, 1)
}

func TestInitializeRetriesAfterDisconnect(t *testing.T) {
	store := newFakeStore()
	store.connected = false
	svc := newService(store, history.BackendDocument)

	err := svc.Initialize(context.Background())
	assert.ErrorIs(t, err, history.ErrNotConnected)
	assert.Empty(t, store.created)

	store.connected = true
	require.NoError(t, svc.Initialize(context.Background()))
	assert.Len(t, store.created, 1)
}

func TestAddDocumentBackend(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, history.BackendDocument)

	id, err := svc.Add(context.Background(), aliceRecord())
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)

	inserts := store.insertsInto("answer_history")
	require.Len(t, inserts, 1)

	doc := inserts[0].doc
	assert.Equal(t, "alice", doc[history.FieldUsername])
	assert.Equal(t, []float64{0.1, 0.2}, doc["question_embedding"])
	assert.Equal(t, []float64{0.1, 0.2}, doc["equation_embedding"])
}

func TestAddRelationalBackend(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, history.BackendRelational)

	id, err := svc.Add(context.Background(), aliceRecord())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	main := store.insertsInto("answer_history")
	require.Len(t, main, 1)
	assert.NotContains(t, main[0].doc, "question_embedding")
	assert.NotContains(t, main[0].doc, "equation_embedding")

	for _, table := range []string{
		"answer_history_question_embedding",
		"answer_history_equation_embedding",
	} {
		companion := store.insertsInto(table)
		require.Len(t, companion, 1, table)
		assert.Equal(t, id, companion[0].doc[history.FieldRecordID])
		assert.Equal(t, []float64{0.1, 0.2}, companion[0].doc[history.FieldEmbedding])
	}
}

func TestAddNotConnected(t *testing.T) {
	store := newFakeStore()
	store.connected = false
	embedder := &fakeEmbedder{vector: []float64{0.1}}
	svc := NewHistoryService(store, history.BackendDocument, WithEmbedder(embedder))

	_, err := svc.Add(context.Background(), aliceRecord())
	assert.ErrorIs(t, err, history.ErrNotConnected)
	assert.Empty(t, store.inserts)
	assert.Zero(t, embedder.calls)
}

func TestAddInvalidRecord(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{vector: []float64{0.1}}
	svc := NewHistoryService(store, history.BackendDocument, WithEmbedder(embedder))

	record := history.NewRecord("alice", "", "2+2", 4, 4, true, "arithmetic")
	_, err := svc.Add(context.Background(), record)
	assert.ErrorIs(t, err, history.ErrQuestionRequired)
	assert.ErrorIs(t, err, history.ErrEmbeddingSourceMissing)
	assert.Empty(t, store.inserts)
	assert.Zero(t, embedder.calls)
}

func TestAddEmptyQuestionIsEmbeddingSourceMissing(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, history.BackendDocument)

	record := history.NewRecord("alice", "", "2+2", 4, 4, true, "arithmetic")
	_, err := svc.Add(context.Background(), record)
	assert.ErrorIs(t, err, history.ErrEmbeddingSourceMissing)
	assert.Empty(t, store.inserts)
}

func TestAddSourceColumnMissing(t *testing.T) {
	mapping, err := history.NewEmbeddingSourceMapping(
		[]string{"hint"}, []string{"hint_embedding"})
	require.NoError(t, err)

	store := newFakeStore()
	svc := newService(store, history.BackendDocument, WithMapping(mapping))

	_, err = svc.Add(context.Background(), aliceRecord())
	assert.ErrorIs(t, err, history.ErrEmbeddingSourceMissing)
	assert.Empty(t, store.inserts)
}

func TestAddEmbedderUnavailable(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, history.BackendDocument,
		WithEmbedder(&fakeEmbedder{err: provider.ErrUnavailable}))

	_, err := svc.Add(context.Background(), aliceRecord())
	assert.ErrorIs(t, err, history.ErrEmbeddingUnavailable)
	assert.Empty(t, store.inserts)
}

func TestAddNoEmbedderConfigured(t *testing.T) {
	store := newFakeStore()
	svc := NewHistoryService(store, history.BackendDocument)

	_, err := svc.Add(context.Background(), aliceRecord())
	assert.ErrorIs(t, err, history.ErrEmbeddingUnavailable)
	assert.Empty(t, store.inserts)
}

func TestAddEmptyVector(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, history.BackendDocument,
		WithEmbedder(&fakeEmbedder{vector: []float64{}}))

	_, err := svc.Add(context.Background(), aliceRecord())
	assert.ErrorIs(t, err, history.ErrEmbeddingUnavailable)
	assert.Empty(t, store.inserts)
}

func TestAddCompanionFailureKeepPolicy(t *testing.T) {
	store := newFakeStore()
	store.failInserts["answer_history_equation_embedding"] = errors.New("table locked")
	svc := newService(store, history.BackendRelational)

	id, err := svc.Add(context.Background(), aliceRecord())
	assert.NotEmpty(t, id)

	var partial *history.PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, id, partial.RecordID())
	assert.Equal(t, []string{"equation_embedding"}, partial.FailedColumns())
	assert.False(t, partial.Compensated())
	assert.Empty(t, store.deletes)

	// Main record and the surviving companion row stand.
	assert.Len(t, store.insertsInto("answer_history"), 1)
	assert.Len(t, store.insertsInto("answer_history_question_embedding"), 1)
}

func TestAddCompanionFailureCompensatePolicy(t *testing.T) {
	store := newFakeStore()
	store.failInserts["answer_history_equation_embedding"] = errors.New("table locked")
	svc := newService(store, history.BackendRelational,
		WithCompanionPolicy(config.CompanionPolicyCompensate))

	id, err := svc.Add(context.Background(), aliceRecord())
	assert.Empty(t, id)

	var partial *history.PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.True(t, partial.Compensated())
	assert.Equal(t, []string{"answer_history/" + partial.RecordID()}, store.deletes)
}

func TestSearchRelevantHistoryQueryShape(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, history.BackendDocument)

	svc.SearchRelevantHistory(context.Background(), "alice", "solve 2+2",
		WithCategory("arithmetic"), WithTopK(7))

	require.Len(t, store.searches, 1)
	q := store.searches[0]

	terms := q.Terms()
	require.Len(t, terms, 2)
	assert.Equal(t, history.FieldUsername, terms[0].Field())
	assert.Equal(t, "alice", terms[0].Value())
	assert.Equal(t, history.FieldCategory, terms[1].Field())

	matches := q.Matches()
	require.Len(t, matches, 2)
	assert.Equal(t, history.FieldQuestion, matches[0].Field())
	assert.Equal(t, 2.0, matches[0].Boost())
	assert.Equal(t, history.FieldUserEquation, matches[1].Field())
	assert.Equal(t, 1.0, matches[1].Boost())

	sorts := q.Sorts()
	require.Len(t, sorts, 2)
	assert.Equal(t, history.ScoreField, sorts[0].Field())
	assert.True(t, sorts[0].Descending())
	assert.Equal(t, history.FieldTimestamp, sorts[1].Field())

	assert.Equal(t, 7, q.Limit())
}

func TestSearchRelevantHistoryResults(t *testing.T) {
	store := newFakeStore()
	store.searchHits = []history.Hit{
		history.NewHit("id-1", 3.5, history.Document{
			history.FieldQuestion:     "What is 2+2?",
			history.FieldUserEquation: "2+2",
			history.FieldUserAnswer:   4.0,
			history.FieldIsCorrect:    true,
		}),
	}
	svc := newService(store, history.BackendDocument)

	results := svc.SearchRelevantHistory(context.Background(), "alice", "2+2")
	require.Len(t, results, 1)
	assert.Equal(t, "What is 2+2?", results[0].Question())
	assert.Equal(t, 3.5, results[0].Score())
	assert.True(t, results[0].IsCorrect())
}

func TestSearchRelevantHistoryTopKClamping(t *testing.T) {
	cases := []struct {
		requested int
		want      int
	}{
		{requested: 0, want: 1},
		{requested: -3, want: 1},
		{requested: 100, want: 20},
		{requested: 5, want: 5},
	}
	for _, tc := range cases {
		store := newFakeStore()
		svc := newService(store, history.BackendDocument)

		svc.SearchRelevantHistory(context.Background(), "alice", "2+2", WithTopK(tc.requested))
		require.Len(t, store.searches, 1)
		assert.Equal(t, tc.want, store.searches[0].Limit(), "requested %d", tc.requested)
	}
}

func TestSearchRelevantHistoryDefaultTopK(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, history.BackendDocument)

	svc.SearchRelevantHistory(context.Background(), "alice", "2+2")
	require.Len(t, store.searches, 1)
	assert.Equal(t, DefaultTopK, store.searches[0].Limit())
}

func TestSearchRelevantHistoryDisconnected(t *testing.T) {
	store := newFakeStore()
	store.connected = false
	svc := newService(store, history.BackendDocument)

	results := svc.SearchRelevantHistory(context.Background(), "alice", "2+2")
	assert.Nil(t, results)
	assert.Empty(t, store.searches)
}

func TestSearchRelevantHistorySearchError(t *testing.T) {
	store := newFakeStore()
	store.searchErr = errors.New("index gone")
	svc := newService(store, history.BackendDocument)

	results := svc.SearchRelevantHistory(context.Background(), "alice", "2+2")
	assert.Nil(t, results)
}

func TestGetUserHistoryQueryShape(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, history.BackendDocument)

	svc.GetUserHistory(context.Background(), "alice")

	require.Len(t, store.searches, 1)
	q := store.searches[0]

	terms := q.Terms()
	require.Len(t, terms, 1)
	assert.Equal(t, "alice", terms[0].Value())
	assert.Empty(t, q.Matches())

	sorts := q.Sorts()
	require.Len(t, sorts, 1)
	assert.Equal(t, history.FieldTimestamp, sorts[0].Field())
	assert.True(t, sorts[0].Descending())

	assert.Equal(t, DefaultLimit, q.Limit())
}

func TestGetUserHistoryReturnsStoredFields(t *testing.T) {
	store := newFakeStore()
	store.searchHits = []history.Hit{
		history.NewHit("id-1", 0, history.Document{
			history.FieldUsername:     "alice",
			history.FieldQuestion:     "What is 2+2?",
			history.FieldEquation:     "2+2",
			history.FieldUserEquation: "2+2",
			history.FieldUserAnswer:   4.0,
			history.FieldIsCorrect:    true,
			history.FieldReviewed:     false,
		}),
	}
	svc := newService(store, history.BackendDocument)

	entries := svc.GetUserHistory(context.Background(), "alice")
	require.Len(t, entries, 1)

	// The stored document comes back whole, not a trimmed search view.
	assert.Equal(t, "alice", entries[0][history.FieldUsername])
	assert.Equal(t, "2+2", entries[0][history.FieldEquation])
	assert.Equal(t, false, entries[0][history.FieldReviewed])
	assert.Equal(t, "What is 2+2?", entries[0][history.FieldQuestion])
}

func TestGetUserHistoryLimitClamping(t *testing.T) {
	cases := []struct {
		requested int
		want      int
	}{
		{requested: 0, want: 1},
		{requested: 5000, want: 1000},
		{requested: 50, want: 50},
	}
	for _, tc := range cases {
		store := newFakeStore()
		svc := newService(store, history.BackendDocument)

		svc.GetUserHistory(context.Background(), "alice", WithLimit(tc.requested))
		require.Len(t, store.searches, 1)
		assert.Equal(t, tc.want, store.searches[0].Limit(), "requested %d", tc.requested)
	}
}

func TestGetUserHistoryDisconnected(t *testing.T) {
	store := newFakeStore()
	store.connected = false
	svc := newService(store, history.BackendDocument)

	assert.Nil(t, svc.GetUserHistory(context.Background(), "alice"))
	assert.Empty(t, store.searches)
}

func TestIsConnected(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, history.BackendDocument)
	assert.True(t, svc.IsConnected(context.Background()))

	store.connected = false
	assert.False(t, svc.IsConnected(context.Background()))
}
