package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 512, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 1.2, cfg.BM25K1)
	assert.Equal(t, 0.75, cfg.BM25B)
	assert.Equal(t, 60, cfg.FusionK)
	assert.Equal(t, 20, cfg.TopK)
	assert.InDelta(t, 0.40, cfg.FusionWeights["exact"], 1e-9)
	assert.InDelta(t, 0.10, cfg.FusionWeights["symbol"], 1e-9)
}

func TestValidate_RejectsOverlapGEChunkSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkOverlap = cfg.ChunkSize
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsMissingFusionWeight(t *testing.T) {
	cfg := DefaultConfig()
	delete(cfg.FusionWeights, "symbol")
	assert.Error(t, cfg.Validate())
}

func TestLoadYAML_PartialDocumentKeepsDefaults(t *testing.T) {
	cfg, err := LoadYAML([]byte("chunk_size: 256\nchunk_overlap: 32\n"))
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.ChunkSize)
	assert.Equal(t, 32, cfg.ChunkOverlap)
	// untouched fields keep their defaults
	assert.Equal(t, 1.2, cfg.BM25K1)
	assert.Equal(t, 20, cfg.TopK)
}

func TestLoadYAML_InvalidDocumentFails(t *testing.T) {
	_, err := LoadYAML([]byte("chunk_size: 10\nchunk_overlap: 10\n"))
	assert.Error(t, err)
}
