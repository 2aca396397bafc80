// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultLogLevel           = "INFO"
	DefaultIndexName          = "answer_history"
	DefaultBackend            = "sql"
	DefaultMongoURL           = "mongodb://localhost:27017"
	DefaultMongoDatabase      = "quizrag"
	DefaultSourceColumns      = "question,equation"
	DefaultEmbeddingColumns   = "question_embedding,equation_embedding"
	DefaultEmbeddingModelURL  = "http://localhost:12434"
	DefaultEmbeddingModelName = "ai/mxbai-embed-large"
	DefaultEmbeddingEngine    = "llama.cpp"
	DefaultSingleTimeout      = 30 * time.Second
	DefaultBatchTimeout       = 60 * time.Second
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// CompanionPolicy selects the behavior when companion embedding rows fail
// after the main record was written.
type CompanionPolicy string

// CompanionPolicy values.
const (
	// CompanionPolicyKeep leaves the main record standing; it stays
	// queryable by exact-match fields without similarity data.
	CompanionPolicyKeep CompanionPolicy = "keep"

	// CompanionPolicyCompensate issues a best-effort delete of the main
	// record so no record exists without its full similarity data.
	CompanionPolicyCompensate CompanionPolicy = "compensate"
)

// EmbeddingConfig configures the embedding endpoint.
type EmbeddingConfig struct {
	enabled       bool
	modelURL      string
	modelName     string
	engine        string
	singleTimeout time.Duration
	batchTimeout  time.Duration
}

// NewEmbeddingConfig creates an EmbeddingConfig with defaults.
func NewEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		enabled:       true,
		modelURL:      DefaultEmbeddingModelURL,
		modelName:     DefaultEmbeddingModelName,
		engine:        DefaultEmbeddingEngine,
		singleTimeout: DefaultSingleTimeout,
		batchTimeout:  DefaultBatchTimeout,
	}
}

// Enabled returns whether the embedding service is enabled.
func (e EmbeddingConfig) Enabled() bool { return e.enabled }

// ModelURL returns the embedding endpoint base URL.
func (e EmbeddingConfig) ModelURL() string { return e.modelURL }

// ModelName returns the embedding model identifier.
func (e EmbeddingConfig) ModelName() string { return e.modelName }

// Engine returns the serving engine path segment.
func (e EmbeddingConfig) Engine() string { return e.engine }

// SingleTimeout returns the timeout for single-text requests.
func (e EmbeddingConfig) SingleTimeout() time.Duration { return e.singleTimeout }

// BatchTimeout returns the timeout for batch requests.
func (e EmbeddingConfig) BatchTimeout() time.Duration { return e.batchTimeout }

// EmbeddingOption is a functional option for EmbeddingConfig.
type EmbeddingOption func(*EmbeddingConfig)

// WithEmbeddingEnabled sets the enabled flag.
func WithEmbeddingEnabled(enabled bool) EmbeddingOption {
	return func(e *EmbeddingConfig) { e.enabled = enabled }
}

// WithModelURL sets the endpoint base URL.
func WithModelURL(url string) EmbeddingOption {
	return func(e *EmbeddingConfig) { e.modelURL = url }
}

// WithModelName sets the model identifier.
func WithModelName(name string) EmbeddingOption {
	return func(e *EmbeddingConfig) { e.modelName = name }
}

// WithEngine sets the serving engine.
func WithEngine(engine string) EmbeddingOption {
	return func(e *EmbeddingConfig) { e.engine = engine }
}

// WithSingleTimeout sets the single-text timeout.
func WithSingleTimeout(d time.Duration) EmbeddingOption {
	return func(e *EmbeddingConfig) {
		if d > 0 {
			e.singleTimeout = d
		}
	}
}

// WithBatchTimeout sets the batch timeout.
func WithBatchTimeout(d time.Duration) EmbeddingOption {
	return func(e *EmbeddingConfig) {
		if d > 0 {
			e.batchTimeout = d
		}
	}
}

// NewEmbeddingConfigWithOptions creates an EmbeddingConfig with options.
func NewEmbeddingConfigWithOptions(opts ...EmbeddingOption) EmbeddingConfig {
	e := NewEmbeddingConfig()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	dataDir          string
	backend          string
	dbURL            string
	mongoURL         string
	mongoDatabase    string
	indexName        string
	sourceColumns    string
	embeddingColumns string
	companionPolicy  CompanionPolicy
	embedding        EmbeddingConfig
	logLevel         string
	logFormat        LogFormat
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quizrag"
	}
	return filepath.Join(home, ".quizrag")
}

// NewAppConfig creates an AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		dataDir:          dataDir,
		backend:          DefaultBackend,
		dbURL:            "sqlite://" + filepath.Join(dataDir, "quizrag.db"),
		mongoURL:         DefaultMongoURL,
		mongoDatabase:    DefaultMongoDatabase,
		indexName:        DefaultIndexName,
		sourceColumns:    DefaultSourceColumns,
		embeddingColumns: DefaultEmbeddingColumns,
		companionPolicy:  CompanionPolicyKeep,
		embedding:        NewEmbeddingConfig(),
		logLevel:         DefaultLogLevel,
		logFormat:        LogFormatPretty,
	}
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// Backend returns the storage backend selector (mongodb or sql).
func (c AppConfig) Backend() string { return c.backend }

// DBURL returns the relational database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// MongoURL returns the MongoDB connection URI.
func (c AppConfig) MongoURL() string { return c.mongoURL }

// MongoDatabase returns the MongoDB database name.
func (c AppConfig) MongoDatabase() string { return c.mongoDatabase }

// IndexName returns the main collection or table base name.
func (c AppConfig) IndexName() string { return c.indexName }

// SourceColumns returns the comma-delimited embedding source column list.
func (c AppConfig) SourceColumns() string { return c.sourceColumns }

// EmbeddingColumns returns the comma-delimited embedding column list,
// positionally paired with SourceColumns.
func (c AppConfig) EmbeddingColumns() string { return c.embeddingColumns }

// CompanionPolicy returns the companion-failure policy.
func (c AppConfig) CompanionPolicy() CompanionPolicy { return c.companionPolicy }

// Embedding returns the embedding endpoint config.
func (c AppConfig) Embedding() EmbeddingConfig { return c.embedding }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// EnsureDataDir creates the data directory if it does not exist.
func (c AppConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithDataDir sets the data directory and repoints a default sqlite path.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		c.dataDir = dir
		if strings.HasSuffix(c.dbURL, "quizrag.db") {
			c.dbURL = "sqlite://" + filepath.Join(dir, "quizrag.db")
		}
	}
}

// WithBackend sets the storage backend selector.
func WithBackend(backend string) AppConfigOption {
	return func(c *AppConfig) { c.backend = backend }
}

// WithDBURL sets the relational database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithMongoURL sets the MongoDB connection URI.
func WithMongoURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.mongoURL = url }
}

// WithMongoDatabase sets the MongoDB database name.
func WithMongoDatabase(name string) AppConfigOption {
	return func(c *AppConfig) { c.mongoDatabase = name }
}

// WithIndexName sets the main collection or table base name.
func WithIndexName(name string) AppConfigOption {
	return func(c *AppConfig) { c.indexName = name }
}

// WithSourceColumns sets the embedding source column list.
func WithSourceColumns(columns string) AppConfigOption {
	return func(c *AppConfig) { c.sourceColumns = columns }
}

// WithEmbeddingColumns sets the embedding column list.
func WithEmbeddingColumns(columns string) AppConfigOption {
	return func(c *AppConfig) { c.embeddingColumns = columns }
}

// WithCompanionPolicy sets the companion-failure policy.
func WithCompanionPolicy(policy CompanionPolicy) AppConfigOption {
	return func(c *AppConfig) { c.companionPolicy = policy }
}

// WithEmbedding sets the embedding endpoint config.
func WithEmbedding(e EmbeddingConfig) AppConfigOption {
	return func(c *AppConfig) { c.embedding = e }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a copy of the config with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes describing the configuration. Connection
// credentials are masked.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("backend", c.backend),
		slog.String("index_name", c.indexName),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("source_columns", c.sourceColumns),
		slog.String("embedding_columns", c.embeddingColumns),
		slog.String("companion_policy", string(c.companionPolicy)),
		slog.Bool("embedding_enabled", c.embedding.Enabled()),
		slog.String("embedding_model", c.embedding.ModelName()),
		slog.String("log_level", c.logLevel),
	}
}

func (c AppConfig) maskedDBURL() string {
	if c.backend == "mongodb" {
		return maskURL(c.mongoURL)
	}
	if strings.HasPrefix(c.dbURL, "sqlite:") {
		return c.dbURL
	}
	return maskURL(c.dbURL)
}

func maskURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	scheme := strings.Index(url, "://")
	if scheme < 0 {
		return "***" + url[at:]
	}
	return url[:scheme+3] + "***" + url[at:]
}

// ParseLogFormat parses a log format string.
func ParseLogFormat(s string) LogFormat {
	if strings.EqualFold(s, "json") {
		return LogFormatJSON
	}
	return LogFormatPretty
}

// ParseCompanionPolicy parses a companion-failure policy string, falling
// back to keep for unrecognized values.
func ParseCompanionPolicy(s string) CompanionPolicy {
	if strings.EqualFold(s, string(CompanionPolicyCompensate)) {
		return CompanionPolicyCompensate
	}
	return CompanionPolicyKeep
}
