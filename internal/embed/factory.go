package embed

import (
	"context"
	"fmt"
	"strings"
)

// Provider names the embedder backend to construct.
type Provider string

const (
	// ProviderOllama calls a local Ollama HTTP embeddings endpoint.
	ProviderOllama Provider = "ollama"

	// ProviderStatic uses the dependency-free hash embedder.
	ProviderStatic Provider = "static"
)

// Config selects and configures an embedder.
type Config struct {
	Provider Provider

	// Dimensions is required for ProviderStatic and optional (auto-detect)
	// for ProviderOllama.
	Dimensions int

	// CacheSize bounds the LRU wrapper; <= 0 uses DefaultEmbeddingCacheSize.
	// A negative value of exactly NoCacheSize disables caching entirely.
	CacheSize int

	Ollama OllamaConfig
}

// NoCacheSize disables the embedding cache when set as Config.CacheSize.
const NoCacheSize = -1

// New constructs the configured embedder, wrapped in a CachedEmbedder
// unless CacheSize is NoCacheSize.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var (
		e   Embedder
		err error
	)

	switch strings.ToLower(string(cfg.Provider)) {
	case string(ProviderStatic), "":
		e = NewStaticEmbedder(cfg.Dimensions)
	case string(ProviderOllama):
		ollamaCfg := cfg.Ollama
		if ollamaCfg.Dimensions <= 0 {
			ollamaCfg.Dimensions = cfg.Dimensions
		}
		e, err = NewOllamaEmbedder(ctx, ollamaCfg)
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize == NoCacheSize {
		return e, nil
	}
	return NewCachedEmbedder(e, cfg.CacheSize), nil
}
