package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvDefaults(t *testing.T) {
	env, err := LoadEnv()
	require.NoError(t, err)

	c := env.ToAppConfig()
	assert.Equal(t, "sql", c.Backend())
	assert.Equal(t, "answer_history", c.IndexName())
	assert.True(t, c.Embedding().Enabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("QUIZRAG_BACKEND", "mongodb")
	t.Setenv("QUIZRAG_MONGO_URL", "mongodb://db:27017")
	t.Setenv("QUIZRAG_INDEX_NAME", "practice_log")
	t.Setenv("QUIZRAG_SOURCE_COLUMNS", "question")
	t.Setenv("QUIZRAG_EMBEDDING_COLUMNS", "question_embedding")
	t.Setenv("QUIZRAG_COMPANION_POLICY", "compensate")
	t.Setenv("QUIZRAG_EMBEDDING_ENABLED", "false")
	t.Setenv("QUIZRAG_EMBEDDING_TIMEOUT", "10s")

	env, err := LoadEnv()
	require.NoError(t, err)

	c := env.ToAppConfig()
	assert.Equal(t, "mongodb", c.Backend())
	assert.Equal(t, "mongodb://db:27017", c.MongoURL())
	assert.Equal(t, "practice_log", c.IndexName())
	assert.Equal(t, "question", c.SourceColumns())
	assert.Equal(t, "question_embedding", c.EmbeddingColumns())
	assert.Equal(t, CompanionPolicyCompensate, c.CompanionPolicy())
	assert.False(t, c.Embedding().Enabled())
	assert.Equal(t, 10*time.Second, c.Embedding().SingleTimeout())
	assert.Equal(t, 60*time.Second, c.Embedding().BatchTimeout())
}

func TestLoadEnvInvalidDuration(t *testing.T) {
	t.Setenv("QUIZRAG_EMBEDDING_TIMEOUT", "not-a-duration")

	_, err := LoadEnv()
	assert.Error(t, err)
}
