package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig maps environment variables onto configuration values. All
// variables share the QUIZRAG_ prefix.
type EnvConfig struct {
	DataDir          string        `envconfig:"DATA_DIR"`
	Backend          string        `envconfig:"BACKEND"`
	DBURL            string        `envconfig:"DB_URL"`
	MongoURL         string        `envconfig:"MONGO_URL"`
	MongoDatabase    string        `envconfig:"MONGO_DATABASE"`
	IndexName        string        `envconfig:"INDEX_NAME"`
	SourceColumns    string        `envconfig:"SOURCE_COLUMNS"`
	EmbeddingColumns string        `envconfig:"EMBEDDING_COLUMNS"`
	CompanionPolicy  string        `envconfig:"COMPANION_POLICY"`
	LogLevel         string        `envconfig:"LOG_LEVEL"`
	LogFormat        string        `envconfig:"LOG_FORMAT"`
	EmbeddingEnabled *bool         `envconfig:"EMBEDDING_ENABLED"`
	EmbeddingURL     string        `envconfig:"EMBEDDING_URL"`
	EmbeddingModel   string        `envconfig:"EMBEDDING_MODEL"`
	EmbeddingEngine  string        `envconfig:"EMBEDDING_ENGINE"`
	EmbeddingTimeout time.Duration `envconfig:"EMBEDDING_TIMEOUT"`
	EmbeddingBatch   time.Duration `envconfig:"EMBEDDING_BATCH_TIMEOUT"`
}

// LoadEnv reads QUIZRAG_-prefixed environment variables.
func LoadEnv() (*EnvConfig, error) {
	var env EnvConfig
	if err := envconfig.Process("QUIZRAG", &env); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	return &env, nil
}

// ToAppConfig converts the environment values to an AppConfig, filling in
// defaults for anything unset.
func (e *EnvConfig) ToAppConfig() AppConfig {
	var opts []AppConfigOption
	if e.DataDir != "" {
		opts = append(opts, WithDataDir(e.DataDir))
	}
	if e.Backend != "" {
		opts = append(opts, WithBackend(e.Backend))
	}
	if e.DBURL != "" {
		opts = append(opts, WithDBURL(e.DBURL))
	}
	if e.MongoURL != "" {
		opts = append(opts, WithMongoURL(e.MongoURL))
	}
	if e.MongoDatabase != "" {
		opts = append(opts, WithMongoDatabase(e.MongoDatabase))
	}
	if e.IndexName != "" {
		opts = append(opts, WithIndexName(e.IndexName))
	}
	if e.SourceColumns != "" {
		opts = append(opts, WithSourceColumns(e.SourceColumns))
	}
	if e.EmbeddingColumns != "" {
		opts = append(opts, WithEmbeddingColumns(e.EmbeddingColumns))
	}
	if e.CompanionPolicy != "" {
		opts = append(opts, WithCompanionPolicy(ParseCompanionPolicy(e.CompanionPolicy)))
	}
	if e.LogLevel != "" {
		opts = append(opts, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		opts = append(opts, WithLogFormat(ParseLogFormat(e.LogFormat)))
	}

	var embedOpts []EmbeddingOption
	if e.EmbeddingEnabled != nil {
		embedOpts = append(embedOpts, WithEmbeddingEnabled(*e.EmbeddingEnabled))
	}
	if e.EmbeddingURL != "" {
		embedOpts = append(embedOpts, WithModelURL(e.EmbeddingURL))
	}
	if e.EmbeddingModel != "" {
		embedOpts = append(embedOpts, WithModelName(e.EmbeddingModel))
	}
	if e.EmbeddingEngine != "" {
		embedOpts = append(embedOpts, WithEngine(e.EmbeddingEngine))
	}
	if e.EmbeddingTimeout > 0 {
		embedOpts = append(embedOpts, WithSingleTimeout(e.EmbeddingTimeout))
	}
	if e.EmbeddingBatch > 0 {
		embedOpts = append(embedOpts, WithBatchTimeout(e.EmbeddingBatch))
	}
	if len(embedOpts) > 0 {
		opts = append(opts, WithEmbedding(NewEmbeddingConfigWithOptions(embedOpts...)))
	}

	return NewAppConfigWithOptions(opts...)
}

// FromEnv loads the dotenv file if present, then reads the environment
// into an AppConfig.
func FromEnv() (AppConfig, error) {
	LoadDotEnv()
	env, err := LoadEnv()
	if err != nil {
		return AppConfig{}, err
	}
	return env.ToAppConfig(), nil
}
