// Package quizrag persists math-quiz attempt history and retrieves
// relevant prior attempts for prompt context, with embedding vectors for
// similarity-based recall.
//
// Basic usage:
//
//	client, err := quizrag.New(ctx, quizrag.WithSQLite(".quizrag/quizrag.db"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	record := history.NewRecord("alice", "What is 2+2?", "2+2", 4, 4, true, "arithmetic")
//	id, err := client.History.Add(ctx, record)
//
//	results := client.History.SearchRelevantHistory(ctx, "alice", "What is 3+3?",
//	    service.WithTopK(5),
//	)
package quizrag

import (
	"context"
	"errors"
	"fmt"

	"github.com/mathsolver/quizrag/application/service"
	"github.com/mathsolver/quizrag/domain/history"
	"github.com/mathsolver/quizrag/infrastructure/persistence"
	"github.com/mathsolver/quizrag/infrastructure/provider"
	"github.com/mathsolver/quizrag/internal/database"
	"github.com/mathsolver/quizrag/internal/log"
)

// Client is the main entry point for the quizrag library.
type Client struct {
	// History provides quiz attempt persistence and retrieval.
	History *service.HistoryService

	db     *database.Database
	mongo  *persistence.MongoStore
	logger *log.Logger
}

// New creates a Client for the configured backend. Storage initialization
// is attempted once here; if the backend schema cannot be set up yet the
// client still works and retries on first write.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = log.NewLogger(cfg.app)
	}

	backend, err := history.ParseBackend(cfg.app.Backend())
	if err != nil {
		return nil, err
	}

	mapping, err := history.ParseEmbeddingSourceMapping(
		cfg.app.SourceColumns(), cfg.app.EmbeddingColumns())
	if err != nil {
		return nil, fmt.Errorf("embedding source mapping: %w", err)
	}

	client := &Client{logger: logger}

	var store history.Store
	switch backend {
	case history.BackendDocument:
		mongoStore, err := persistence.NewMongoStore(
			ctx, cfg.app.MongoURL(), cfg.app.MongoDatabase(), logger)
		if err != nil {
			return nil, err
		}
		client.mongo = mongoStore
		store = mongoStore
	default:
		if err := cfg.app.EnsureDataDir(); err != nil {
			return nil, err
		}
		db, err := database.New(ctx, cfg.app.DBURL())
		if err != nil {
			return nil, err
		}
		client.db = db
		store = persistence.NewSQLStore(db, logger)
	}

	factory := cfg.factory
	if factory == nil {
		embedder := cfg.embedder
		if embedder == nil {
			embCfg := cfg.app.Embedding()
			factory = func() provider.Embedder {
				return provider.NewOpenAIEmbedder(embCfg, logger)
			}
		} else {
			factory = func() provider.Embedder { return embedder }
		}
	}

	client.History = service.NewHistoryService(store, backend,
		service.WithIndexName(cfg.app.IndexName()),
		service.WithMapping(mapping),
		service.WithCompanionPolicy(cfg.app.CompanionPolicy()),
		service.WithLogger(logger),
		service.WithEmbedderFactory(factory),
	)

	if err := client.History.Initialize(ctx); err != nil {
		if !errors.Is(err, history.ErrNotConnected) {
			_ = client.Close(ctx)
			return nil, err
		}
		logger.Warn("storage initialization deferred", "error", err)
	}

	return client, nil
}

// Close releases the backend connection.
func (c *Client) Close(ctx context.Context) error {
	if c.mongo != nil {
		return c.mongo.Close(ctx)
	}
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
