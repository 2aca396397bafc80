package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathsolver/quizrag/domain/history"
	"github.com/mathsolver/quizrag/internal/database"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	db, err := database.New(ctx, "sqlite://"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLStore(db, nil)
}

func testRecordDoc(username, question string) history.Document {
	r := history.NewRecord(username, question, "2+2", 4, 4, true, "arithmetic")
	return r.Document()
}

func createMainTable(t *testing.T, store *SQLStore, name string) {
	t.Helper()
	schema := history.MainSchema(history.BackendRelational, history.DefaultEmbeddingSourceMapping(), false)
	require.NoError(t, store.CreateCollection(context.Background(), name, schema))
}

func TestSQLCreateCollectionIdempotent(t *testing.T) {
	store := newSQLiteStore(t)
	createMainTable(t, store, "answer_history")
	createMainTable(t, store, "answer_history")
}

func TestSQLCreateCollectionConflict(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.db.Session(ctx).Exec(
		"CREATE TABLE answer_history (id VARCHAR(64) PRIMARY KEY, username VARCHAR(255))").Error)

	schema := history.MainSchema(history.BackendRelational, history.DefaultEmbeddingSourceMapping(), false)
	err := store.CreateCollection(ctx, "answer_history", schema)

	var storageErr *history.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "answer_history", storageErr.Collection())
}

func TestSQLInsertAndSearchByTerm(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	createMainTable(t, store, "answer_history")

	id, err := store.Insert(ctx, "answer_history", testRecordDoc("alice", "What is 2+2?"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = store.Insert(ctx, "answer_history", testRecordDoc("bob", "What is 3*3?"))
	require.NoError(t, err)

	hits, err := store.Search(ctx, "answer_history", history.NewSearchQuery(
		history.WithTerm(history.FieldUsername, "alice"),
	))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].ID())
	assert.Equal(t, "alice", hits[0].Fields()[history.FieldUsername])
}

func TestSQLSearchNoMatches(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	createMainTable(t, store, "answer_history")

	hits, err := store.Search(ctx, "answer_history", history.NewSearchQuery(
		history.WithTerm(history.FieldUsername, "nobody"),
	))
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSQLSearchRanksBoostedMatches(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	createMainTable(t, store, "answer_history")

	_, err := store.Insert(ctx, "answer_history",
		testRecordDoc("alice", "Solve the quadratic equation"))
	require.NoError(t, err)
	_, err = store.Insert(ctx, "answer_history",
		testRecordDoc("alice", "What is seven plus one?"))
	require.NoError(t, err)

	hits, err := store.Search(ctx, "answer_history", history.NewSearchQuery(
		history.WithMatch(history.FieldQuestion, "quadratic equation", 2),
		history.WithSortByScore(),
	))
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Contains(t, hits[0].Fields()[history.FieldQuestion], "quadratic")
	assert.Greater(t, hits[0].Score(), hits[1].Score())
	assert.Zero(t, hits[1].Score())
}

func TestSQLSearchMatchRanksWithoutFiltering(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	createMainTable(t, store, "answer_history")

	_, err := store.Insert(ctx, "answer_history",
		testRecordDoc("alice", "Solve the quadratic equation"))
	require.NoError(t, err)

	// A question sharing no tokens with the stored one still returns the
	// user's rows, scored zero.
	hits, err := store.Search(ctx, "answer_history", history.NewSearchQuery(
		history.WithTerm(history.FieldUsername, "alice"),
		history.WithMatch(history.FieldQuestion, "integrate sin(x)", 2),
		history.WithSortByScore(),
	))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Zero(t, hits[0].Score())
}

func TestSQLSearchLimit(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	createMainTable(t, store, "answer_history")

	for i := 0; i < 5; i++ {
		_, err := store.Insert(ctx, "answer_history", testRecordDoc("alice", "What is 2+2?"))
		require.NoError(t, err)
	}

	hits, err := store.Search(ctx, "answer_history", history.NewSearchQuery(
		history.WithTerm(history.FieldUsername, "alice"),
		history.WithLimit(3),
	))
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestSQLSearchSortByTimestamp(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	createMainTable(t, store, "answer_history")

	older := history.NewRecord("alice", "first", "1+1", 2, 2, true, "arithmetic")
	newer := older.WithTimestamp(older.Timestamp().Add(time.Second))

	_, err := store.Insert(ctx, "answer_history", older.Document())
	require.NoError(t, err)
	_, err = store.Insert(ctx, "answer_history", newer.Document())
	require.NoError(t, err)

	hits, err := store.Search(ctx, "answer_history", history.NewSearchQuery(
		history.WithTerm(history.FieldUsername, "alice"),
		history.WithSortDesc(history.FieldTimestamp),
	))
	require.NoError(t, err)
	require.Len(t, hits, 2)

	first, _ := hits[0].Fields()[history.FieldTimestamp].(string)
	second, _ := hits[1].Fields()[history.FieldTimestamp].(string)
	assert.Greater(t, first, second)
}

func TestSQLDelete(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	createMainTable(t, store, "answer_history")

	id, err := store.Insert(ctx, "answer_history", testRecordDoc("alice", "What is 2+2?"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "answer_history", id))

	hits, err := store.Search(ctx, "answer_history", history.NewSearchQuery(
		history.WithTerm(history.FieldUsername, "alice"),
	))
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Deleting an unknown id is a no-op.
	require.NoError(t, store.Delete(ctx, "answer_history", "missing"))
}

func TestSQLCompanionTableRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	table := history.CompanionTableName("answer_history", "question_embedding")
	require.NoError(t, store.CreateCollection(ctx, table, history.CompanionSchema()))

	doc := history.Document{
		history.FieldRecordID:  "main-1",
		history.FieldEmbedding: []float64{0.1, 0.2, 0.3},
	}
	_, err := store.Insert(ctx, table, doc)
	require.NoError(t, err)

	hits, err := store.Search(ctx, table, history.NewSearchQuery(
		history.WithTerm(history.FieldRecordID, "main-1"),
	))
	require.NoError(t, err)
	require.Len(t, hits, 1)

	stored, ok := asFloat64Vector(hits[0].Fields()[history.FieldEmbedding])
	require.True(t, ok)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, stored)
}

func TestSQLVectorSearch(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	table := history.CompanionTableName("answer_history", "question_embedding")
	require.NoError(t, store.CreateCollection(ctx, table, history.CompanionSchema()))

	vectors := map[string][]float64{
		"rec-a": {1, 0, 0},
		"rec-b": {0, 1, 0},
		"rec-c": {0.9, 0.1, 0},
	}
	for id, vec := range vectors {
		_, err := store.Insert(ctx, table, history.Document{
			history.FieldRecordID:  id,
			history.FieldEmbedding: vec,
		})
		require.NoError(t, err)
	}

	hits, err := store.Search(ctx, table, history.NewSearchQuery(
		history.WithVector(history.FieldEmbedding, []float64{1, 0, 0}),
		history.WithLimit(2),
	))
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "rec-a", hits[0].Fields()[history.FieldRecordID])
	assert.Equal(t, "rec-c", hits[1].Fields()[history.FieldRecordID])
}

func TestSQLIsConnected(t *testing.T) {
	ctx := context.Background()
	db, err := database.New(ctx, "sqlite://"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	store := NewSQLStore(db, nil)

	assert.True(t, store.IsConnected(ctx))

	require.NoError(t, db.Close())
	assert.False(t, store.IsConnected(ctx))
}
