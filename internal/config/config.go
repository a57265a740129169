// Package config defines the in-memory configuration schema the core
// consumes. Loading a config file from disk and wiring it to a CLI is an
// external collaborator's job; this package only defines, defaults, and
// validates the struct.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config mirrors the external configuration schema. Every field has a
// documented default matching the schema table; a zero-value Config is not
// meaningful on its own — callers should start from DefaultConfig().
type Config struct {
	ChunkSize    int   `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int   `yaml:"chunk_overlap" json:"chunk_overlap"`
	MaxFileSize  int64 `yaml:"max_file_size" json:"max_file_size"`

	BM25K1             float64  `yaml:"bm25_k1" json:"bm25_k1"`
	BM25B              float64  `yaml:"bm25_b" json:"bm25_b"`
	BM25MinTermLength  int      `yaml:"bm25_min_term_length" json:"bm25_min_term_length"`
	BM25MaxTermLength  int      `yaml:"bm25_max_term_length" json:"bm25_max_term_length"`
	BM25StopWords      []string `yaml:"bm25_stop_words" json:"bm25_stop_words"`
	EnableStemming     bool     `yaml:"enable_stemming" json:"enable_stemming"`
	EnableNgrams       bool     `yaml:"enable_ngrams" json:"enable_ngrams"`
	MaxNgramSize       int      `yaml:"max_ngram_size" json:"max_ngram_size"`

	EmbeddingDim        int `yaml:"embedding_dim" json:"embedding_dim"`
	EmbeddingCacheSize  int `yaml:"embedding_cache_size" json:"embedding_cache_size"`
	EmbeddingCacheTTLS  int `yaml:"embedding_cache_ttl_s" json:"embedding_cache_ttl_s"` // 0 = infinite

	SearchCacheSize int `yaml:"search_cache_size" json:"search_cache_size"`
	SearchCacheTTLS int `yaml:"search_cache_ttl_s" json:"search_cache_ttl_s"`

	FusionK       int                `yaml:"fusion_k" json:"fusion_k"`
	FusionWeights map[string]float64 `yaml:"fusion_weights" json:"fusion_weights"`

	TopK             int  `yaml:"top_k" json:"top_k"`
	IncludeTestFiles bool `yaml:"include_test_files" json:"include_test_files"`
}

// IndexableExtensions is the default extension allow-list (§6).
var IndexableExtensions = []string{
	".rs", ".py", ".js", ".ts", ".jsx", ".tsx", ".go", ".java",
	".cpp", ".cc", ".cxx", ".c", ".h", ".hpp", ".rb", ".php",
	".swift", ".kt", ".scala", ".cs", ".sql", ".md",
}

// DefaultFusionWeights are the §4.8 RRF source weights.
func DefaultFusionWeights() map[string]float64 {
	return map[string]float64{
		"exact":       0.40,
		"statistical": 0.25,
		"semantic":    0.25,
		"symbol":      0.10,
	}
}

// DefaultStopWords is a minimal English/code stop-word set, in the spirit
// of the teacher's DefaultCodeStopWords.
var DefaultStopWords = []string{
	"the", "a", "an", "and", "or", "of", "to", "in", "is", "it",
	"for", "on", "with", "as", "at", "by", "this", "that", "be",
}

// DefaultConfig returns the schema's documented defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:          512,
		ChunkOverlap:       50,
		MaxFileSize:        10_000_000,
		BM25K1:             1.2,
		BM25B:              0.75,
		BM25MinTermLength:  2,
		BM25MaxTermLength:  32,
		BM25StopWords:      append([]string(nil), DefaultStopWords...),
		EnableStemming:     true,
		EnableNgrams:       false,
		MaxNgramSize:       1,
		EmbeddingDim:       768,
		EmbeddingCacheSize: 100_000,
		EmbeddingCacheTTLS: 0,
		SearchCacheSize:    100,
		SearchCacheTTLS:    300,
		FusionK:            60,
		FusionWeights:      DefaultFusionWeights(),
		TopK:               20,
		IncludeTestFiles:   false,
	}
}

// Validate checks invariants the rest of the core assumes hold (chunk_overlap
// strictly less than chunk_size, positive sizes, etc). Callers should call
// this once after loading a config from any source before constructing a
// UnifiedSearcher.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must be non-negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be strictly less than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got %d", c.MaxFileSize)
	}
	if c.BM25MinTermLength <= 0 || c.BM25MaxTermLength < c.BM25MinTermLength {
		return fmt.Errorf("invalid bm25 term length bounds: min=%d max=%d", c.BM25MinTermLength, c.BM25MaxTermLength)
	}
	if c.MaxNgramSize < 1 {
		return fmt.Errorf("max_ngram_size must be >= 1, got %d", c.MaxNgramSize)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding_dim must be positive, got %d", c.EmbeddingDim)
	}
	if c.FusionK < 0 {
		return fmt.Errorf("fusion_k must be non-negative, got %d", c.FusionK)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	for _, src := range []string{"exact", "statistical", "semantic", "symbol"} {
		if _, ok := c.FusionWeights[src]; !ok {
			return fmt.Errorf("fusion_weights missing source %q", src)
		}
	}
	return nil
}

// LoadYAML parses a YAML document into a Config seeded with defaults, so a
// partial document still yields a valid, fully-populated Config. Discovering
// and reading the file itself is the external loader's responsibility.
func LoadYAML(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
