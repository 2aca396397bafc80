package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mathsolver/quizrag/domain/history"
	"github.com/mathsolver/quizrag/internal/log"
)

// pingTimeout bounds connectivity probes so a dead server does not stall
// callers that only wanted a liveness answer.
const pingTimeout = 2 * time.Second

// MongoStore implements history.Store on MongoDB. Text relevance uses a
// weighted text index built from the schema's text-field boosts; embedding
// vectors live in the main document and vector queries are scored in memory.
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *log.Logger
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, uri, dbName string, logger *log.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = log.Default()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &MongoStore{
		client:   client,
		database: client.Database(dbName),
		logger:   logger,
	}, nil
}

// Close disconnects from the server.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// CreateCollection ensures the collection exists with its indexes: a
// weighted text index over the schema's text fields and single-field
// indexes on keyword and timestamp fields. Index creation is idempotent
// for an unchanged specification.
func (s *MongoStore) CreateCollection(ctx context.Context, name string, schema history.Schema) error {
	models := indexModels(schema)
	if len(models) == 0 {
		// No indexable fields; creating the collection is enough.
		if err := s.database.CreateCollection(ctx, name); err != nil && !isNamespaceExists(err) {
			return history.NewStorageError("create collection", name, err)
		}
		return nil
	}

	if _, err := s.database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return history.NewStorageError("create collection", name, err)
	}
	s.logger.Debug("collection ready", "collection", name)
	return nil
}

func indexModels(schema history.Schema) []mongo.IndexModel {
	var textKeys bson.D
	weights := bson.D{}
	var models []mongo.IndexModel

	for _, field := range schema.Fields() {
		switch field.Type() {
		case history.TypeText:
			textKeys = append(textKeys, bson.E{Key: field.Name(), Value: "text"})
			weights = append(weights, bson.E{Key: field.Name(), Value: int(field.Boost())})
		case history.TypeKeyword, history.TypeTimestamp:
			models = append(models, mongo.IndexModel{
				Keys: bson.D{{Key: field.Name(), Value: 1}},
			})
		}
	}

	if len(textKeys) > 0 {
		models = append(models, mongo.IndexModel{
			Keys:    textKeys,
			Options: options.Index().SetWeights(weights),
		})
	}
	return models
}

func isNamespaceExists(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Name == "NamespaceExists"
	}
	return false
}

// Insert persists one document and returns the hex object id.
func (s *MongoStore) Insert(ctx context.Context, collection string, doc history.Document) (string, error) {
	res, err := s.database.Collection(collection).InsertOne(ctx, bson.M(doc))
	if err != nil {
		return "", history.NewStorageError("insert", collection, err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Sprintf("%v", res.InsertedID), nil
	}
	return oid.Hex(), nil
}

// Delete removes a document by hex object id. A no-op for an unknown or
// malformed id.
func (s *MongoStore) Delete(ctx context.Context, collection string, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	if _, err := s.database.Collection(collection).DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return history.NewStorageError("delete", collection, err)
	}
	return nil
}

// Search translates the query to a MongoDB find. Text-match clauses become
// a single $text search; relevance comes from the weighted text index, so
// per-clause boosts resolve to the weights fixed at index creation.
//
// Match clauses rank rather than filter. $text only returns token matches,
// so when it yields nothing the search falls back to a plain find on the
// exact-match terms and those rows come back with a zero score.
func (s *MongoStore) Search(ctx context.Context, collection string, query history.SearchQuery) ([]history.Hit, error) {
	if _, _, ok := query.Vector(); ok {
		return s.vectorSearch(ctx, collection, query)
	}

	filter := termFilter(query.Terms())
	findOpts := options.Find()

	scored := false
	if matches := query.Matches(); len(matches) > 0 {
		filter["$text"] = bson.M{"$search": searchText(matches)}
		findOpts.SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}})
		scored = true
	}

	if sortDoc := sortDocument(query.Sorts(), scored); len(sortDoc) > 0 {
		findOpts.SetSort(sortDoc)
	}
	if query.Limit() > 0 {
		findOpts.SetLimit(int64(query.Limit()))
	}

	docs, err := s.find(ctx, collection, filter, findOpts)
	if err != nil {
		return nil, err
	}

	if scored && len(docs) == 0 {
		delete(filter, "$text")
		fallbackOpts := options.Find()
		if sortDoc := sortDocument(query.Sorts(), false); len(sortDoc) > 0 {
			fallbackOpts.SetSort(sortDoc)
		}
		if query.Limit() > 0 {
			fallbackOpts.SetLimit(int64(query.Limit()))
		}
		docs, err = s.find(ctx, collection, filter, fallbackOpts)
		if err != nil {
			return nil, err
		}
	}
	return docsToHits(docs), nil
}

func (s *MongoStore) find(ctx context.Context, collection string, filter bson.M, opts *options.FindOptions) ([]bson.M, error) {
	cursor, err := s.database.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, history.NewStorageError("search", collection, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, history.NewStorageError("search", collection, err)
	}
	return docs, nil
}

// vectorSearch loads candidates matching the exact-match terms and scores
// them in memory by cosine similarity against the stored vector field.
func (s *MongoStore) vectorSearch(ctx context.Context, collection string, query history.SearchQuery) ([]history.Hit, error) {
	field, queryVec, _ := query.Vector()

	cursor, err := s.database.Collection(collection).Find(ctx, termFilter(query.Terms()))
	if err != nil {
		return nil, history.NewStorageError("search", collection, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, history.NewStorageError("search", collection, err)
	}

	hits := make([]history.Hit, 0, len(docs))
	for _, doc := range docs {
		stored, ok := asFloat64Vector(normalizeBSONArray(doc[field]))
		if !ok {
			continue
		}
		doc["score"] = CosineSimilarity(queryVec, stored)
		hits = append(hits, docToHit(doc))
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score() > hits[j].Score()
	})
	if limit := query.Limit(); limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// IsConnected reports whether the server answers a ping.
func (s *MongoStore) IsConnected(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.client.Ping(pingCtx, nil) == nil
}

func termFilter(terms []history.Term) bson.M {
	filter := bson.M{}
	for _, t := range terms {
		filter[t.Field()] = t.Value()
	}
	return filter
}

// searchText joins all match clause texts into one $text search string.
// MongoDB has a single text index per collection, so clauses cannot target
// individual fields at query time.
func searchText(matches []history.MatchClause) string {
	seen := make(map[string]struct{}, len(matches))
	var parts []string
	for _, m := range matches {
		if _, ok := seen[m.Text()]; ok {
			continue
		}
		seen[m.Text()] = struct{}{}
		parts = append(parts, m.Text())
	}
	return strings.Join(parts, " ")
}

func sortDocument(sorts []history.SortOrder, scored bool) bson.D {
	var doc bson.D
	for _, order := range sorts {
		if order.Field() == history.ScoreField {
			if scored {
				doc = append(doc, bson.E{Key: "score", Value: bson.M{"$meta": "textScore"}})
			}
			continue
		}
		direction := 1
		if order.Descending() {
			direction = -1
		}
		doc = append(doc, bson.E{Key: order.Field(), Value: direction})
	}
	return doc
}

func docsToHits(docs []bson.M) []history.Hit {
	hits := make([]history.Hit, 0, len(docs))
	for _, doc := range docs {
		hits = append(hits, docToHit(doc))
	}
	return hits
}

func docToHit(doc bson.M) history.Hit {
	var id string
	if oid, ok := doc["_id"].(primitive.ObjectID); ok {
		id = oid.Hex()
	} else if s, ok := doc["_id"].(string); ok {
		id = s
	}

	var score float64
	if raw, ok := doc["score"]; ok {
		score, _ = asFloat64(raw)
	}

	fields := make(history.Document, len(doc))
	for k, v := range doc {
		if k == "_id" || k == "score" {
			continue
		}
		fields[k] = normalizeBSONArray(v)
	}
	return history.NewHit(id, score, fields)
}

// normalizeBSONArray converts bson.A values to []any so callers see plain
// Go types.
func normalizeBSONArray(v any) any {
	if arr, ok := v.(primitive.A); ok {
		return []any(arr)
	}
	return v
}
