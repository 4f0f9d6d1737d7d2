package embed

import (
	"github.com/gokmengokhan/endnote-mcp/internal/config"
	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
)

// NewFromConfig builds the configured embedder wrapped in the LRU cache.
// Returns (nil, nil) when embeddings are disabled; callers treat a nil
// embedder as "semantic indexing off".
func NewFromConfig(cfg *config.Config) (Embedder, error) {
	switch cfg.Embeddings.Provider {
	case "", config.EmbeddingProviderNone:
		return nil, nil
	case config.EmbeddingProviderStatic:
		return NewCachedEmbedder(NewStaticEmbedder(), DefaultEmbeddingCacheSize), nil
	case config.EmbeddingProviderOllama:
		inner := NewOllamaEmbedder(OllamaConfig{
			Host:       cfg.Embeddings.OllamaHost,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			BatchSize:  cfg.Embeddings.BatchSize,
		})
		return NewCachedEmbedder(inner, DefaultEmbeddingCacheSize), nil
	default:
		return nil, enerr.Newf(enerr.ErrCodeConfigInvalid,
			"unknown embeddings provider %q", cfg.Embeddings.Provider)
	}
}
