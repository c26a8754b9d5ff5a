// Package store provides durable storage for libraries and chunks: an HNSW
// vector index over chunk embeddings, a SQLite-backed scalar/relational
// store, and a bleve-backed text index for library name/alias lookups.
package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// LibraryStatus is the lifecycle state of a Library.
type LibraryStatus string

const (
	LibraryStatusActive     LibraryStatus = "active"
	LibraryStatusDeprecated LibraryStatus = "deprecated"
	LibraryStatusArchived   LibraryStatus = "archived"
)

// context7IDPattern matches "/<segment>/<segment>(/<segment>)?".
var context7IDPattern = regexp.MustCompile(`^/[^/]+/[^/]+(/[^/]+)?$`)

// ValidContext7ID reports whether id matches the canonical context7_id shape.
func ValidContext7ID(id string) bool {
	return context7IDPattern.MatchString(id)
}

var context7Sanitizer = regexp.MustCompile(`[^a-z0-9]+`)

// DeriveContext7ID builds "/<ecosystem>/<normalized-name>" per spec §3.1
// when a caller doesn't supply a context7_id explicitly. Shared by the REST
// library handlers and the create-library CLI command so both derive the
// same id from the same inputs.
func DeriveContext7ID(ecosystem, name string) string {
	slug := context7Sanitizer.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	slug = strings.Trim(slug, "-")
	return "/" + strings.ToLower(strings.TrimSpace(ecosystem)) + "/" + slug
}

// Library is a logical grouping of documentation for one piece of software.
type Library struct {
	ID               string
	Name             string
	Context7ID       string
	Language         string
	Ecosystem        string
	Description      string
	ShortDescription string
	Aliases          []string
	Keywords         []string
	Category         string
	HomepageURL      string
	RepositoryURL    string
	Author           string
	License          string
	Status           LibraryStatus
	PopularityScore  int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ChunkStatus marks a chunk row as not yet visible to queries (pending, the
// ingestion pipeline is still writing its siblings) or fully committed.
type ChunkStatus string

const (
	ChunkStatusPending ChunkStatus = "pending"
	ChunkStatusActive  ChunkStatus = "active"
)

// Chunk is the unit of storage and retrieval.
type Chunk struct {
	ID           string
	DocumentID   string
	LibraryID    string
	Title        string
	Text         string
	Vector       []float32
	ChunkIndex   int
	ChunkTotal   int
	Source       string
	SourceType   string
	Status       ChunkStatus
	CreatedAt    time.Time
	MetadataJSON string
}

// LibraryFilter narrows ListLibraries to libraries matching every non-zero
// field. An empty filter matches all libraries.
type LibraryFilter struct {
	Ecosystem string
	Status    LibraryStatus
}

// ChunkFilter narrows DeleteChunksWhere/ScanChunksWhere by equality on
// scalar columns. Zero-value fields are ignored. CreatedBefore, when
// non-zero, matches rows strictly older than the given time (used by the
// stale-pending-row sweep).
type ChunkFilter struct {
	LibraryID     string
	DocumentID    string
	Status        ChunkStatus
	CreatedBefore time.Time
}

// VectorSearchResult pairs a chunk ID with its distance from a query vector.
type VectorSearchResult struct {
	ChunkID  string
	Distance float32
}

// Errors returned by Store operations. Callers in internal/docerrors map
// these to the spec's error taxonomy; nothing here leaks driver-specific
// detail across the package boundary.
var (
	ErrNotFound         = fmt.Errorf("store: not found")
	ErrDuplicateLibrary = fmt.Errorf("store: duplicate library")
	ErrLibraryInUse     = fmt.Errorf("store: library in use")
	ErrClosed           = fmt.Errorf("store: closed")
)

// ErrDimensionMismatch indicates a vector's width didn't match the index's
// configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("store: dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// VectorIndex is an approximate-nearest-neighbor index over chunk vectors.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]VectorSearchResult, error)
	Delete(ctx context.Context, ids []string) error
	Contains(id string) bool
	Count() int
	Dimensions() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// MetadataStore persists library records and chunk scalar columns (every
// Chunk field except Vector, which lives in the VectorIndex).
type MetadataStore interface {
	UpsertLibrary(ctx context.Context, lib *Library) error
	GetLibrary(ctx context.Context, id string) (*Library, error)
	GetLibraryByContext7ID(ctx context.Context, context7ID string) (*Library, error)
	// GetLibrariesByName returns every library whose name matches (case-
	// insensitively) exactly, used by resolve-library-id's exact-name
	// candidate pass.
	GetLibrariesByName(ctx context.Context, name string) ([]*Library, error)
	ListLibraries(ctx context.Context, filter LibraryFilter, limit, offset int) ([]*Library, error)
	DeleteLibrary(ctx context.Context, id string) error
	CountChunksForLibrary(ctx context.Context, libraryID string) (int, error)
	// CountDocumentsForLibrary counts distinct active documents, computed on
	// demand rather than persisted (spec §4.D stage 7).
	CountDocumentsForLibrary(ctx context.Context, libraryID string) (int, error)

	AppendChunks(ctx context.Context, chunks []*Chunk) error
	// UpdateChunksStatus flips every chunk row for documentID to status,
	// used to finalize a document's pending rows to active at the end of
	// ingestion.
	UpdateChunksStatus(ctx context.Context, documentID string, status ChunkStatus) error
	DeleteChunksWhere(ctx context.Context, filter ChunkFilter) (int, error)
	ScanChunksWhere(ctx context.Context, filter ChunkFilter) ([]*Chunk, error)
	GetChunksByID(ctx context.Context, ids []string) ([]*Chunk, error)

	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, key, value string) error

	Close() error
}

// TextIndex supports keyword/substring search over library names, aliases
// and keywords, used by resolve-library-id's candidate-gathering step.
type TextIndex interface {
	IndexLibrary(ctx context.Context, lib *Library) error
	DeleteLibrary(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit int) ([]TextSearchResult, error)
	Close() error
}

// TextSearchResult is one keyword-search hit against the library text index.
type TextSearchResult struct {
	LibraryID string
	Score     float64
}
