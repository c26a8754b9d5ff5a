package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// Store composes a VectorIndex, a MetadataStore and a TextIndex into the
// single public contract spec.md §4.A describes: upsert/get/list/delete on
// libraries, append/delete/scan on chunks, and vector search. Callers never
// touch the three sub-stores directly, which keeps the "all three agree"
// invariant (chunk present in metadata ⇒ present in vector index ⇒
// library present in text index) inside one file.
type Store struct {
	vector VectorIndex
	meta   MetadataStore
	text   TextIndex
	lock   *dirLock
}

// Config locates the three on-disk stores under one base directory,
// mirroring the teacher's convention of keeping vector/BM25/metadata files
// side by side under a single index directory.
type Config struct {
	BaseDir    string
	Dimensions int
	Metric     string // "cos" or "l2"
}

func (c Config) vectorPath() string { return filepath.Join(c.BaseDir, "vectors.hnsw") }
func (c Config) metaPath() string   { return filepath.Join(c.BaseDir, "metadata.db") }
func (c Config) textPath() string   { return filepath.Join(c.BaseDir, "textindex.bleve") }

// Open constructs a Store, loading any existing on-disk vector index and
// validating its dimension against cfg.Dimensions (Open Question 1: the
// embedder dimension is pinned per store at creation time; a mismatch is a
// startup error, not a silent migration).
func Open(cfg Config) (*Store, error) {
	lock := newDirLock(cfg.BaseDir)
	acquired, err := lock.tryLock()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("store: %s is locked by another process", cfg.BaseDir)
	}

	existingDim, err := ReadVectorIndexDimensions(cfg.vectorPath())
	if err != nil {
		_ = lock.unlock()
		return nil, fmt.Errorf("store: read existing vector dimensions: %w", err)
	}
	if existingDim != 0 && existingDim != cfg.Dimensions {
		_ = lock.unlock()
		return nil, ErrDimensionMismatch{Expected: existingDim, Got: cfg.Dimensions}
	}

	vec, err := NewVectorIndex(cfg.Dimensions, cfg.Metric)
	if err != nil {
		_ = lock.unlock()
		return nil, fmt.Errorf("store: create vector index: %w", err)
	}
	if existingDim != 0 {
		if err := vec.Load(cfg.vectorPath()); err != nil {
			_ = lock.unlock()
			return nil, fmt.Errorf("store: load vector index: %w", err)
		}
	}

	meta, err := NewSQLiteMetadataStore(cfg.metaPath())
	if err != nil {
		_ = lock.unlock()
		return nil, fmt.Errorf("store: open metadata store: %w", err)
	}

	text, err := NewBleveTextIndex(cfg.textPath())
	if err != nil {
		meta.Close()
		_ = lock.unlock()
		return nil, fmt.Errorf("store: open text index: %w", err)
	}

	return &Store{vector: vec, meta: meta, text: text, lock: lock}, nil
}

// OpenInMemory builds a Store entirely in memory, used by tests and by
// ephemeral CLI subcommands that don't need persistence.
func OpenInMemory(dimensions int, metric string) (*Store, error) {
	vec, err := NewVectorIndex(dimensions, metric)
	if err != nil {
		return nil, err
	}
	meta, err := NewSQLiteMetadataStore("")
	if err != nil {
		return nil, err
	}
	text, err := NewBleveTextIndex("")
	if err != nil {
		meta.Close()
		return nil, err
	}
	return &Store{vector: vec, meta: meta, text: text}, nil
}

// UpsertLibrary validates invariants 1-2 and 7 from spec §3.2 before
// delegating to the metadata and text stores: (ecosystem, name) and
// context7_id uniqueness is enforced by the metadata store's UNIQUE
// constraints, surfaced here as ErrDuplicateLibrary.
func (s *Store) UpsertLibrary(ctx context.Context, lib *Library) error {
	if !ValidContext7ID(lib.Context7ID) {
		return fmt.Errorf("store: invalid context7_id %q: must match /<segment>/<segment>(/<segment>)?", lib.Context7ID)
	}
	now := time.Now().UTC()
	if lib.CreatedAt.IsZero() {
		lib.CreatedAt = now
	}
	if lib.UpdatedAt.IsZero() || lib.UpdatedAt.Before(lib.CreatedAt) {
		lib.UpdatedAt = now
	}
	if lib.Status == "" {
		lib.Status = LibraryStatusActive
	}

	if err := s.meta.UpsertLibrary(ctx, lib); err != nil {
		return err
	}
	if err := s.text.IndexLibrary(ctx, lib); err != nil {
		return fmt.Errorf("store: index library in text store: %w", err)
	}
	return nil
}

func (s *Store) GetLibrary(ctx context.Context, id string) (*Library, error) {
	return s.meta.GetLibrary(ctx, id)
}

func (s *Store) GetLibraryByContext7ID(ctx context.Context, context7ID string) (*Library, error) {
	return s.meta.GetLibraryByContext7ID(ctx, context7ID)
}

// GetLibrariesByName returns every library whose name matches exactly
// (case-insensitively), for resolve-library-id's exact-name candidate pass.
func (s *Store) GetLibrariesByName(ctx context.Context, name string) ([]*Library, error) {
	return s.meta.GetLibrariesByName(ctx, name)
}

func (s *Store) ListLibraries(ctx context.Context, filter LibraryFilter, limit, offset int) ([]*Library, error) {
	return s.meta.ListLibraries(ctx, filter, limit, offset)
}

// DeleteLibrary refuses to delete a library any chunk still references
// (invariant 6), surfaced as ErrLibraryInUse by the metadata store.
func (s *Store) DeleteLibrary(ctx context.Context, id string) error {
	if err := s.meta.DeleteLibrary(ctx, id); err != nil {
		return err
	}
	return s.text.DeleteLibrary(ctx, id)
}

// SearchLibrariesByText runs resolve-library-id's keyword candidate pass.
func (s *Store) SearchLibrariesByText(ctx context.Context, query string, limit int) ([]TextSearchResult, error) {
	return s.text.Search(ctx, query, limit)
}

// AppendChunks writes chunk vectors to the vector index and scalar columns
// to the metadata store. If the vector write succeeds but the metadata
// write fails, the vector rows are rolled back so the two stores never
// silently diverge — approximating the "all appended atomically from the
// caller's viewpoint" contract spec §4.A requires, given the underlying
// stores support append and delete but not a shared transaction.
func (s *Store) AppendChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		vectors[i] = c.Vector
	}

	if err := s.vector.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("store: append chunk vectors: %w", err)
	}

	if err := s.meta.AppendChunks(ctx, chunks); err != nil {
		_ = s.vector.Delete(ctx, ids)
		return fmt.Errorf("store: append chunk metadata: %w", err)
	}

	return nil
}

// DeleteChunksWhere removes matching rows from both the metadata store and
// the vector index, returning the count of rows deleted.
func (s *Store) DeleteChunksWhere(ctx context.Context, filter ChunkFilter) (int, error) {
	matched, err := s.meta.ScanChunksWhere(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("store: scan chunks for delete: %w", err)
	}
	if len(matched) == 0 {
		return 0, nil
	}

	ids := make([]string, len(matched))
	for i, c := range matched {
		ids[i] = c.ID
	}

	if err := s.vector.Delete(ctx, ids); err != nil {
		return 0, fmt.Errorf("store: delete chunk vectors: %w", err)
	}

	n, err := s.meta.DeleteChunksWhere(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("store: delete chunk metadata: %w", err)
	}
	return n, nil
}

func (s *Store) ScanChunksWhere(ctx context.Context, filter ChunkFilter) ([]*Chunk, error) {
	return s.meta.ScanChunksWhere(ctx, filter)
}

// FinalizeDocument flips every pending chunk row for documentID to active,
// the last step of the ingestion pipeline's persistence stage.
func (s *Store) FinalizeDocument(ctx context.Context, documentID string) error {
	return s.meta.UpdateChunksStatus(ctx, documentID, ChunkStatusActive)
}

// VectorSearch runs an ANN search and hydrates results with the chunk rows
// needed by query-docs, optionally narrowed by a scalar filter applied
// after the ANN pass (a post-filter, not a pre-filter — acceptable given
// the store's intended corpus size per spec §9's sizing note).
func (s *Store) VectorSearch(ctx context.Context, queryVector []float32, filter ChunkFilter, k int) ([]*Chunk, []float32, error) {
	// Over-fetch when a filter is active since the post-filter may discard hits.
	fetchK := k
	if filter.LibraryID != "" || filter.DocumentID != "" {
		fetchK = k * 4
		if fetchK < 50 {
			fetchK = 50
		}
	}

	hits, err := s.vector.Search(ctx, queryVector, fetchK)
	if err != nil {
		return nil, nil, fmt.Errorf("store: vector search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, len(hits))
	distanceByID := make(map[string]float32, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
		distanceByID[h.ChunkID] = h.Distance
	}

	rows, err := s.meta.GetChunksByID(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("store: hydrate vector search hits: %w", err)
	}

	byID := make(map[string]*Chunk, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	chunks := make([]*Chunk, 0, k)
	distances := make([]float32, 0, k)
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			continue // metadata row deleted after the vector index was searched
		}
		if c.Status == ChunkStatusPending {
			continue // pending rows aren't visible to queries until finalized
		}
		if filter.LibraryID != "" && c.LibraryID != filter.LibraryID {
			continue
		}
		if filter.DocumentID != "" && c.DocumentID != filter.DocumentID {
			continue
		}
		chunks = append(chunks, c)
		distances = append(distances, distanceByID[id])
		if len(chunks) == k {
			break
		}
	}

	return chunks, distances, nil
}

func (s *Store) CountChunksForLibrary(ctx context.Context, libraryID string) (int, error) {
	return s.meta.CountChunksForLibrary(ctx, libraryID)
}

func (s *Store) CountDocumentsForLibrary(ctx context.Context, libraryID string) (int, error) {
	return s.meta.CountDocumentsForLibrary(ctx, libraryID)
}

func (s *Store) GetState(ctx context.Context, key string) (string, bool, error) {
	return s.meta.GetState(ctx, key)
}

func (s *Store) SetState(ctx context.Context, key, value string) error {
	return s.meta.SetState(ctx, key, value)
}

// VectorDimensions returns the dimension the vector index was opened with.
func (s *Store) VectorDimensions() int {
	return s.vector.Dimensions()
}

// Save persists the vector index to disk. The metadata and text stores are
// already durable (SQLite WAL, bleve segment files); only the in-memory
// HNSW graph needs an explicit flush.
func (s *Store) Save(baseDir string) error {
	return s.vector.Save(filepath.Join(baseDir, "vectors.hnsw"))
}

func (s *Store) Close() error {
	var firstErr error
	if err := s.vector.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.meta.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.text.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.lock != nil {
		if err := s.lock.unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
