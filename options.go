package quizrag

import (
	"github.com/mathsolver/quizrag/application/service"
	"github.com/mathsolver/quizrag/infrastructure/provider"
	"github.com/mathsolver/quizrag/internal/config"
	"github.com/mathsolver/quizrag/internal/log"
)

// clientConfig holds configuration for Client construction.
type clientConfig struct {
	app      config.AppConfig
	logger   *log.Logger
	embedder provider.Embedder
	factory  service.EmbedderFactory
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		app: config.NewAppConfig(),
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithConfig replaces the whole application configuration.
func WithConfig(app config.AppConfig) Option {
	return func(c *clientConfig) { c.app = app }
}

// WithSQLite stores quiz history in a SQLite database at the given path.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(
			config.WithBackend("sql"),
			config.WithDBURL("sqlite://"+path),
		)
	}
}

// WithPostgres stores quiz history in PostgreSQL.
func WithPostgres(url string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(
			config.WithBackend("sql"),
			config.WithDBURL(url),
		)
	}
}

// WithMongo stores quiz history in MongoDB.
func WithMongo(uri, database string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(
			config.WithBackend("mongodb"),
			config.WithMongoURL(uri),
			config.WithMongoDatabase(database),
		)
	}
}

// WithIndexName sets the main collection or table base name.
func WithIndexName(name string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithIndexName(name))
	}
}

// WithCompanionPolicy sets the companion-failure policy for SQL backends.
func WithCompanionPolicy(policy config.CompanionPolicy) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithCompanionPolicy(policy))
	}
}

// WithEmbeddingConfig sets the embedding endpoint configuration.
func WithEmbeddingConfig(e config.EmbeddingConfig) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithEmbedding(e))
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *log.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithEmbedder sets a custom embedding client, bypassing the configured
// endpoint.
func WithEmbedder(e provider.Embedder) Option {
	return func(c *clientConfig) { c.embedder = e }
}

// WithEmbedderFactory sets a factory that builds the embedding client on
// first use.
func WithEmbedderFactory(f service.EmbedderFactory) Option {
	return func(c *clientConfig) { c.factory = f }
}
