// Package embed maps text to fixed-dimension vectors for the chunk store.
package embed

import (
	"context"
	"errors"
	"math"
	"time"
)

const (
	// MinBatchSize is the minimum allowed batch size.
	MinBatchSize = 1
	// MaxBatchSize bounds a single EmbedBatch call to prevent memory
	// exhaustion from a runaway ingestion request.
	MaxBatchSize = 256
	// DefaultBatchSize is used when the caller doesn't override it.
	DefaultBatchSize = 32

	// DefaultTimeout bounds a single embedding HTTP call.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the retry count for transient embedder failures.
	DefaultMaxRetries = 3
)

// StaticDimensions is the embedding dimension produced by StaticEmbedder
// when no explicit dimension is configured.
const StaticDimensions = 256

// ErrEmbedderUnavailable indicates a transient failure (network error,
// upstream 5xx, connection refused). The ingestion pipeline retries these
// with bounded exponential backoff.
var ErrEmbedderUnavailable = errors.New("embed: embedder unavailable")

// ErrEmbedderInputRejected indicates a permanent failure (bad encoding,
// oversize input when truncation is disabled). The ingestion pipeline
// aborts the affected document without retrying.
var ErrEmbedderInputRejected = errors.New("embed: input rejected")

// Embedder maps text to vectors with a fixed output dimension.
type Embedder interface {
	// EmbedBatch embeds texts in order; every returned vector has the same
	// length, Dimensions().
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed output width D.
	Dimensions() int

	// ModelName identifies the embedder (used in index compatibility checks).
	ModelName() string

	// Available reports whether the embedder is presently able to serve
	// requests (e.g. an Ollama health check).
	Available(ctx context.Context) bool

	Close() error
}

// Embed is a convenience wrapper around EmbedBatch for a single text.
func Embed(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ErrEmbedderInputRejected
	}
	return vectors[0], nil
}

// normalizeVector returns a unit-length copy of v, or v itself if it has
// zero magnitude.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
