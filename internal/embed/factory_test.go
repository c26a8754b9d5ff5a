package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StaticProvider_ReturnsCachedStaticEmbedder(t *testing.T) {
	// Given a config selecting the static provider
	cfg := Config{Provider: ProviderStatic, Dimensions: 32}

	// When constructing the embedder
	e, err := New(context.Background(), cfg)

	// Then it's a cached wrapper over a static embedder of the right dimension
	require.NoError(t, err)
	assert.Equal(t, 32, e.Dimensions())
	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	_, ok = cached.Inner().(*StaticEmbedder)
	assert.True(t, ok)
}

func TestNew_NoCacheSize_SkipsCaching(t *testing.T) {
	// Given a config that opts out of caching
	cfg := Config{Provider: ProviderStatic, Dimensions: 32, CacheSize: NoCacheSize}

	// When constructing the embedder
	e, err := New(context.Background(), cfg)

	// Then the returned embedder is the static embedder directly
	require.NoError(t, err)
	_, ok := e.(*StaticEmbedder)
	assert.True(t, ok)
}

func TestNew_UnknownProvider_Errors(t *testing.T) {
	// Given a config with an unrecognized provider
	cfg := Config{Provider: "bogus"}

	// When constructing the embedder
	_, err := New(context.Background(), cfg)

	// Then it fails clearly instead of silently falling back
	require.Error(t, err)
}

func TestNew_EmptyProvider_DefaultsToStatic(t *testing.T) {
	// Given a config with no provider set
	cfg := Config{Dimensions: 16}

	// When constructing the embedder
	e, err := New(context.Background(), cfg)

	// Then it defaults to the static embedder
	require.NoError(t, err)
	assert.Equal(t, 16, e.Dimensions())
}
