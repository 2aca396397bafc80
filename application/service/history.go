// Package service orchestrates quiz history persistence and retrieval.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mathsolver/quizrag/domain/history"
	"github.com/mathsolver/quizrag/infrastructure/provider"
	"github.com/mathsolver/quizrag/internal/config"
	"github.com/mathsolver/quizrag/internal/log"
)

// Retrieval bounds. Requested values outside a range clamp to its edge.
const (
	DefaultTopK     = 5
	MaxTopK         = 20
	DefaultLimit    = 100
	MaxHistoryLimit = 1000
)

// EmbedderFactory constructs the embedding client on first use, keeping
// service construction free of network work.
type EmbedderFactory func() provider.Embedder

// HistoryService persists quiz attempts with embeddings and retrieves
// relevant prior attempts for prompt context.
//
// One service instance targets one backend. For the document backend all
// fields including embeddings live in a single collection; for the
// relational backend each embedding column lives in its own companion
// table keyed by the main record's identifier.
type HistoryService struct {
	store   history.Store
	backend history.Backend
	index   string
	mapping history.EmbeddingSourceMapping
	policy  config.CompanionPolicy
	logger  *log.Logger

	factory      EmbedderFactory
	embedderOnce sync.Once
	embedder     provider.Embedder

	initMu      sync.Mutex
	initialized bool
}

// HistoryOption configures a HistoryService.
type HistoryOption func(*HistoryService)

// WithIndexName sets the main collection or table base name.
func WithIndexName(name string) HistoryOption {
	return func(s *HistoryService) {
		if name != "" {
			s.index = name
		}
	}
}

// WithMapping sets the embedding source mapping.
func WithMapping(mapping history.EmbeddingSourceMapping) HistoryOption {
	return func(s *HistoryService) {
		if mapping.Len() > 0 {
			s.mapping = mapping
		}
	}
}

// WithCompanionPolicy sets the companion-failure policy for the relational
// backend.
func WithCompanionPolicy(policy config.CompanionPolicy) HistoryOption {
	return func(s *HistoryService) { s.policy = policy }
}

// WithLogger sets the service logger.
func WithLogger(logger *log.Logger) HistoryOption {
	return func(s *HistoryService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEmbedderFactory sets the factory that builds the embedding client on
// first use.
func WithEmbedderFactory(factory EmbedderFactory) HistoryOption {
	return func(s *HistoryService) { s.factory = factory }
}

// WithEmbedder sets an already constructed embedding client.
func WithEmbedder(embedder provider.Embedder) HistoryOption {
	return func(s *HistoryService) {
		s.factory = func() provider.Embedder { return embedder }
	}
}

// NewHistoryService creates a HistoryService on a storage backend.
func NewHistoryService(store history.Store, backend history.Backend, opts ...HistoryOption) *HistoryService {
	s := &HistoryService{
		store:   store,
		backend: backend,
		index:   config.DefaultIndexName,
		mapping: history.DefaultEmbeddingSourceMapping(),
		policy:  config.CompanionPolicyKeep,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize ensures the main collection and, for the relational backend,
// the companion tables exist. Idempotent; safe for concurrent callers. A
// failed attempt does not latch: the next call retries.
func (s *HistoryService) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.initialized {
		return nil
	}
	if !s.store.IsConnected(ctx) {
		return history.ErrNotConnected
	}

	main := history.MainSchema(s.backend, s.mapping, true)
	if err := s.store.CreateCollection(ctx, s.index, main); err != nil {
		return err
	}

	if s.backend == history.BackendRelational {
		for table, schema := range history.CompanionSchemas(s.index, s.mapping) {
			if err := s.store.CreateCollection(ctx, table, schema); err != nil {
				return err
			}
		}
	}

	s.initialized = true
	s.logger.Debug("history storage initialized",
		"backend", string(s.backend), "index", s.index)
	return nil
}

// IsConnected reports whether the storage backend is reachable.
func (s *HistoryService) IsConnected(ctx context.Context) bool {
	return s.store.IsConnected(ctx)
}

// Embedder returns the lazily constructed embedding client, or nil when no
// factory was configured.
func (s *HistoryService) Embedder() provider.Embedder {
	s.embedderOnce.Do(func() {
		if s.factory != nil {
			s.embedder = s.factory()
		}
	})
	return s.embedder
}

// Add persists one quiz attempt with its embeddings and returns the issued
// record identifier.
//
// Nothing is written until every embedding source resolves to text and
// every vector is generated, so embedding failures never leave partial
// state. On the relational backend a companion row failure after the main
// insert surfaces as *history.PartialWriteError; the companion policy
// decides whether the main record stands or is deleted.
func (s *HistoryService) Add(ctx context.Context, record history.Record) (string, error) {
	if !s.store.IsConnected(ctx) {
		return "", history.ErrNotConnected
	}
	if err := record.Validate(); err != nil {
		return "", err
	}
	if err := s.Initialize(ctx); err != nil {
		return "", err
	}

	texts, err := s.sourceTexts(record)
	if err != nil {
		return "", err
	}

	embedder := s.Embedder()
	if embedder == nil {
		return "", fmt.Errorf("%w: no embedding client configured", history.ErrEmbeddingUnavailable)
	}

	vectors := make([][]float64, len(texts))
	for i, pair := range s.mapping.Pairs() {
		vec, genErr := embedder.Generate(ctx, texts[i])
		if genErr != nil {
			return "", fmt.Errorf("%w: column %s: %v",
				history.ErrEmbeddingUnavailable, pair.Embedding(), genErr)
		}
		if len(vec) == 0 {
			return "", fmt.Errorf("%w: empty vector for column %s",
				history.ErrEmbeddingUnavailable, pair.Embedding())
		}
		vectors[i] = vec
	}

	if s.backend == history.BackendDocument {
		return s.addDocument(ctx, record, vectors)
	}
	return s.addRelational(ctx, record, vectors)
}

// sourceTexts resolves every embedding source column to non-blank text.
// Checked before any write so a bad record fails whole.
func (s *HistoryService) sourceTexts(record history.Record) ([]string, error) {
	pairs := s.mapping.Pairs()
	texts := make([]string, len(pairs))
	for i, pair := range pairs {
		text, ok := record.SourceText(pair.Source())
		if !ok || strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: %s", history.ErrEmbeddingSourceMissing, pair.Source())
		}
		texts[i] = text
	}
	return texts, nil
}

func (s *HistoryService) addDocument(ctx context.Context, record history.Record, vectors [][]float64) (string, error) {
	doc := record.Document()
	for i, pair := range s.mapping.Pairs() {
		doc[pair.Embedding()] = vectors[i]
	}

	id, err := s.store.Insert(ctx, s.index, doc)
	if err != nil {
		return "", err
	}
	s.logger.Debug("record stored", "index", s.index, "id", id)
	return id, nil
}

func (s *HistoryService) addRelational(ctx context.Context, record history.Record, vectors [][]float64) (string, error) {
	id, err := s.store.Insert(ctx, s.index, record.Document())
	if err != nil {
		return "", err
	}

	var failed []string
	var firstErr error
	for i, pair := range s.mapping.Pairs() {
		table := history.CompanionTableName(s.index, pair.Embedding())
		_, insErr := s.store.Insert(ctx, table, history.Document{
			history.FieldRecordID:  id,
			history.FieldEmbedding: vectors[i],
		})
		if insErr != nil {
			failed = append(failed, pair.Embedding())
			if firstErr == nil {
				firstErr = insErr
			}
		}
	}

	if len(failed) == 0 {
		s.logger.Debug("record stored", "index", s.index, "id", id)
		return id, nil
	}

	partial := history.NewPartialWriteError(id, failed, firstErr)
	if s.policy == config.CompanionPolicyCompensate {
		if delErr := s.store.Delete(ctx, s.index, id); delErr != nil {
			s.logger.Error("compensating delete failed",
				"index", s.index, "id", id, "error", delErr)
			return id, partial
		}
		s.logger.Warn("record rolled back after companion failure",
			"index", s.index, "id", id, "columns", strings.Join(failed, ","))
		return "", partial.WithCompensated()
	}

	s.logger.Warn("record stored without similarity data",
		"index", s.index, "id", id, "columns", strings.Join(failed, ","))
	return id, partial
}

// SearchOption configures a retrieval call.
type SearchOption func(*searchParams)

type searchParams struct {
	category string
	topK     int
	limit    int
}

// WithCategory restricts retrieval to one category.
func WithCategory(category string) SearchOption {
	return func(p *searchParams) { p.category = category }
}

// WithTopK sets the number of relevant attempts to return.
func WithTopK(k int) SearchOption {
	return func(p *searchParams) { p.topK = k }
}

// WithLimit sets the maximum number of history entries to return.
func WithLimit(n int) SearchOption {
	return func(p *searchParams) { p.limit = n }
}

func applySearchOptions(opts []SearchOption) searchParams {
	p := searchParams{topK: DefaultTopK, limit: DefaultLimit}
	for _, opt := range opts {
		opt(&p)
	}
	p.topK = clamp(p.topK, 1, MaxTopK)
	p.limit = clamp(p.limit, 1, MaxHistoryLimit)
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SearchRelevantHistory returns the user's prior attempts most relevant to
// the given question text, best first and newest first among ties.
//
// Retrieval is best-effort context gathering: any failure, including a
// disconnected backend, yields an empty result rather than an error.
func (s *HistoryService) SearchRelevantHistory(ctx context.Context, username, questionText string, opts ...SearchOption) []history.ResultRecord {
	params := applySearchOptions(opts)

	if !s.store.IsConnected(ctx) {
		s.logger.Warn("relevant history skipped", "reason", "not connected")
		return nil
	}

	queryOpts := []history.QueryOption{
		history.WithTerm(history.FieldUsername, username),
		history.WithMatch(history.FieldQuestion, questionText, 2),
		history.WithMatch(history.FieldUserEquation, questionText, 1),
		history.WithSortByScore(),
		history.WithSortDesc(history.FieldTimestamp),
		history.WithLimit(params.topK),
	}
	if params.category != "" {
		queryOpts = append(queryOpts, history.WithTerm(history.FieldCategory, params.category))
	}

	hits, err := s.store.Search(ctx, s.index, history.NewSearchQuery(queryOpts...))
	if err != nil {
		s.logger.Warn("relevant history search failed", "error", err)
		return nil
	}
	return toResults(hits)
}

// GetUserHistory returns the user's stored attempt documents, newest first.
// Every persisted field comes back as written, including username, reviewed,
// and the denormalized equation column. Like retrieval, failures yield an
// empty result rather than an error.
func (s *HistoryService) GetUserHistory(ctx context.Context, username string, opts ...SearchOption) []history.Document {
	params := applySearchOptions(opts)

	if !s.store.IsConnected(ctx) {
		s.logger.Warn("user history skipped", "reason", "not connected")
		return nil
	}

	queryOpts := []history.QueryOption{
		history.WithTerm(history.FieldUsername, username),
		history.WithSortDesc(history.FieldTimestamp),
		history.WithLimit(params.limit),
	}
	if params.category != "" {
		queryOpts = append(queryOpts, history.WithTerm(history.FieldCategory, params.category))
	}

	hits, err := s.store.Search(ctx, s.index, history.NewSearchQuery(queryOpts...))
	if err != nil {
		s.logger.Warn("user history search failed", "error", err)
		return nil
	}
	return toDocuments(hits)
}

func toDocuments(hits []history.Hit) []history.Document {
	if len(hits) == 0 {
		return nil
	}
	out := make([]history.Document, len(hits))
	for i, hit := range hits {
		out[i] = hit.Fields()
	}
	return out
}

func toResults(hits []history.Hit) []history.ResultRecord {
	if len(hits) == 0 {
		return nil
	}
	out := make([]history.ResultRecord, len(hits))
	for i, hit := range hits {
		out[i] = history.ResultFromHit(hit)
	}
	return out
}
