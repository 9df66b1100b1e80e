package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsApplyWithNoEnv(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Contains(t, cfg.PIIEntities, "EMAIL")
	assert.NotEmpty(t, cfg.PostgresDSN)
}

func TestLoad_ClampsOverlapWhenItExceedsChunkSize(t *testing.T) {
	t.Setenv("DOCRAG_CHUNK_SIZE", "100")
	t.Setenv("DOCRAG_CHUNK_OVERLAP", "500")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.ChunkSize)
	assert.Equal(t, 20, cfg.ChunkOverlap)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("DOCRAG_EMBEDDING_MODEL", "custom-model")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "custom-model", cfg.EmbeddingModel)
}
