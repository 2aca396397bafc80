package persistence

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mathsolver/quizrag/domain/history"
	"github.com/mathsolver/quizrag/internal/database"
	"github.com/mathsolver/quizrag/internal/log"
)

// SQLStore implements history.Store on a relational database through GORM.
// Tables are created from schemas at runtime, so table and column names are
// not known at compile time and all queries address them dynamically.
//
// Vectors are stored as JSON text. Similarity scoring for vector queries
// happens in memory after candidate rows are loaded.
type SQLStore struct {
	db     *database.Database
	logger *log.Logger
}

// NewSQLStore creates a SQLStore on an open database connection.
func NewSQLStore(db *database.Database, logger *log.Logger) *SQLStore {
	if logger == nil {
		logger = log.Default()
	}
	return &SQLStore{db: db, logger: logger}
}

// CreateCollection ensures a table exists matching the schema. When the
// table already exists, every schema field must be present as a column;
// a missing column is a schema conflict.
func (s *SQLStore) CreateCollection(ctx context.Context, name string, schema history.Schema) error {
	session := s.db.Session(ctx)

	if session.Migrator().HasTable(name) {
		return s.checkColumns(ctx, name, schema)
	}

	ddl := s.createTableSQL(name, schema)
	if err := session.Exec(ddl).Error; err != nil {
		return history.NewStorageError("create table", name, err)
	}
	s.logger.Debug("table created", "table", name)
	return nil
}

func (s *SQLStore) checkColumns(ctx context.Context, name string, schema history.Schema) error {
	columns, err := s.db.Session(ctx).Migrator().ColumnTypes(name)
	if err != nil {
		return history.NewStorageError("inspect table", name, err)
	}

	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[strings.ToLower(c.Name())] = struct{}{}
	}
	for _, field := range schema.Fields() {
		if _, ok := present[strings.ToLower(field.Name())]; !ok {
			return history.NewStorageError("create table", name,
				fmt.Errorf("existing table is missing column %q", field.Name()))
		}
	}
	return nil
}

func (s *SQLStore) createTableSQL(name string, schema history.Schema) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(quoteIdent(name))
	b.WriteString(" (id VARCHAR(64) PRIMARY KEY")
	for _, field := range schema.Fields() {
		b.WriteString(", ")
		b.WriteString(quoteIdent(field.Name()))
		b.WriteByte(' ')
		b.WriteString(s.columnType(field.Type()))
	}
	b.WriteString(")")
	return b.String()
}

func (s *SQLStore) columnType(t history.FieldType) string {
	switch t {
	case history.TypeKeyword:
		return "VARCHAR(255)"
	case history.TypeText:
		return "TEXT"
	case history.TypeFloat:
		if s.db.IsPostgres() {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case history.TypeBool:
		return "BOOLEAN"
	case history.TypeTimestamp:
		return "VARCHAR(40)"
	case history.TypeVector:
		return "TEXT"
	case history.TypeReference:
		return "VARCHAR(64)"
	default:
		return "TEXT"
	}
}

// Insert persists one document. Identifiers are issued client-side so the
// return value does not depend on dialect-specific RETURNING support.
func (s *SQLStore) Insert(ctx context.Context, collection string, doc history.Document) (string, error) {
	id := uuid.NewString()

	row := make(map[string]any, len(doc)+1)
	row["id"] = id
	for k, v := range doc {
		if vec, ok := v.([]float64); ok {
			row[k] = Float64Slice(vec)
			continue
		}
		row[k] = v
	}

	if err := s.db.Session(ctx).Table(collection).Create(row).Error; err != nil {
		return "", history.NewStorageError("insert", collection, err)
	}
	return id, nil
}

// Delete removes a row by identifier. A no-op when the row does not exist.
func (s *SQLStore) Delete(ctx context.Context, collection string, id string) error {
	err := s.db.Session(ctx).
		Exec("DELETE FROM "+quoteIdent(collection)+" WHERE id = ?", id).Error
	if err != nil {
		return history.NewStorageError("delete", collection, err)
	}
	return nil
}

// Search translates the query to SQL. Text matches are scored per token:
// each token that appears in a matched column contributes that clause's
// boost to the row score.
func (s *SQLStore) Search(ctx context.Context, collection string, query history.SearchQuery) ([]history.Hit, error) {
	if _, _, ok := query.Vector(); ok {
		return s.vectorSearch(ctx, collection, query)
	}

	session := s.db.Session(ctx).Table(collection)

	for _, term := range query.Terms() {
		session = session.Where(quoteIdent(term.Field())+" = ?", term.Value())
	}

	// Match clauses rank rows but never filter them: a row the terms select
	// still comes back with a zero score when no token matches.
	scoreExpr, scoreArgs := matchScoreExpr(query.Matches())
	if scoreExpr != "" {
		session = session.Select("*, ("+scoreExpr+") AS score", scoreArgs...)
	}

	for _, order := range query.Sorts() {
		session = session.Order(sortExpr(order))
	}
	if query.Limit() > 0 {
		session = session.Limit(query.Limit())
	}

	var rows []map[string]any
	if err := session.Find(&rows).Error; err != nil {
		return nil, history.NewStorageError("search", collection, err)
	}
	return rowsToHits(rows), nil
}

// vectorSearch loads candidate rows matching the exact-match terms, scores
// them by cosine similarity against the query vector, and returns the top
// rows. Acceptable for per-user history sizes; a native vector index would
// replace this wholesale.
func (s *SQLStore) vectorSearch(ctx context.Context, collection string, query history.SearchQuery) ([]history.Hit, error) {
	field, queryVec, _ := query.Vector()

	session := s.db.Session(ctx).Table(collection)
	for _, term := range query.Terms() {
		session = session.Where(quoteIdent(term.Field())+" = ?", term.Value())
	}

	var rows []map[string]any
	if err := session.Find(&rows).Error; err != nil {
		return nil, history.NewStorageError("search", collection, err)
	}

	hits := make([]history.Hit, 0, len(rows))
	for _, row := range rows {
		stored, ok := asFloat64Vector(row[field])
		if !ok {
			continue
		}
		row["score"] = CosineSimilarity(queryVec, stored)
		hits = append(hits, rowToHit(row))
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score() > hits[j].Score()
	})
	if limit := query.Limit(); limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// IsConnected reports whether the database answers a ping.
func (s *SQLStore) IsConnected(ctx context.Context) bool {
	return s.db.Ping(ctx) == nil
}

// matchScoreExpr builds the SQL scoring expression for text-match clauses.
// Each clause is tokenized; a token found in the clause's column (case
// insensitive) adds the clause boost to the score.
func matchScoreExpr(matches []history.MatchClause) (string, []any) {
	var parts []string
	var args []any
	for _, m := range matches {
		for _, token := range tokenize(m.Text()) {
			parts = append(parts,
				fmt.Sprintf("CASE WHEN lower(%s) LIKE ? THEN %g ELSE 0 END",
					quoteIdent(m.Field()), m.Boost()))
			args = append(args, "%"+strings.ToLower(token)+"%")
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, " + "), args
}

func tokenize(text string) []string {
	return strings.Fields(text)
}

func sortExpr(order history.SortOrder) string {
	field := order.Field()
	if field == history.ScoreField {
		field = "score"
	} else {
		field = quoteIdent(field)
	}
	if order.Descending() {
		return field + " DESC"
	}
	return field + " ASC"
}

// quoteIdent quotes an identifier with double quotes, valid in both SQLite
// and PostgreSQL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func rowsToHits(rows []map[string]any) []history.Hit {
	hits := make([]history.Hit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, rowToHit(row))
	}
	return hits
}

func rowToHit(row map[string]any) history.Hit {
	id, _ := row["id"].(string)

	var score float64
	if raw, ok := row["score"]; ok {
		score, _ = asFloat64(raw)
	}

	fields := make(history.Document, len(row))
	for k, v := range row {
		if k == "id" || k == "score" {
			continue
		}
		fields[k] = v
	}
	return history.NewHit(id, score, fields)
}
