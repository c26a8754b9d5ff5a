package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// hnswVectorIndex implements VectorIndex using coder/hnsw, a pure-Go HNSW
// graph. IDs are chunk IDs; the graph itself only knows uint64 keys, so a
// bidirectional mapping is kept alongside it.
type hnswVectorIndex struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dimensions int
	metric     string

	idToKey map[string]uint64
	keyToID map[uint64]string
	nextKey uint64

	closed bool
}

// vectorIndexMeta is the gob-encoded sidecar persisted next to the graph
// export, carrying the ID mapping and the dimension the graph was built
// with (checked against EMBEDDING_DIM at startup).
type vectorIndexMeta struct {
	IDToKey    map[string]uint64
	NextKey    uint64
	Dimensions int
	Metric     string
}

// NewVectorIndex creates an empty vector index for the given dimension.
// metric is "cos" (cosine, the default) or "l2" (euclidean).
func NewVectorIndex(dimensions int, metric string) (VectorIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("store: dimensions must be positive, got %d", dimensions)
	}
	if metric == "" {
		metric = "cos"
	}

	graph := hnsw.NewGraph[uint64]()
	switch metric {
	case "cos":
		graph.Distance = hnsw.CosineDistance
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		return nil, fmt.Errorf("store: unknown metric %q", metric)
	}
	graph.M = 16
	graph.EfSearch = 64
	graph.Ml = 0.25

	return &hnswVectorIndex{
		graph:      graph,
		dimensions: dimensions,
		metric:     metric,
		idToKey:    make(map[string]uint64),
		keyToID:    make(map[uint64]string),
	}, nil
}

func (s *hnswVectorIndex) Dimensions() int { return s.dimensions }

// Add inserts vectors keyed by chunk ID. Re-adding an existing ID replaces
// it via lazy deletion: the stale node is orphaned in the graph (never
// physically removed) to avoid a known coder/hnsw issue where deleting the
// last remaining node corrupts the graph. Orphaned nodes stay in the graph
// and are skipped by Search; nothing in this package removes them.
func (s *hnswVectorIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("store: ids/vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	for _, v := range vectors {
		if len(v) != s.dimensions {
			return ErrDimensionMismatch{Expected: s.dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if oldKey, exists := s.idToKey[id]; exists {
			delete(s.keyToID, oldKey)
			delete(s.idToKey, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if s.metric == "cos" {
			normalizeVectorInPlace(vec)
		}

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idToKey[id] = key
		s.keyToID[key] = id
	}

	return nil
}

// Search returns the k nearest chunk IDs to query, ordered by ascending
// distance.
func (s *hnswVectorIndex) Search(ctx context.Context, query []float32, k int) ([]VectorSearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if len(query) != s.dimensions {
		return nil, ErrDimensionMismatch{Expected: s.dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return nil, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if s.metric == "cos" {
		normalizeVectorInPlace(q)
	}

	nodes := s.graph.Search(q, k)
	results := make([]VectorSearchResult, 0, len(nodes))
	for _, node := range nodes {
		id, ok := s.keyToID[node.Key]
		if !ok {
			continue // orphaned / lazily-deleted node
		}
		results = append(results, VectorSearchResult{
			ChunkID:  id,
			Distance: s.graph.Distance(q, node.Value),
		})
	}
	return results, nil
}

// Delete lazily removes IDs: mappings are dropped so the node no longer
// surfaces in search results, but the underlying graph node is left in
// place.
func (s *hnswVectorIndex) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, id := range ids {
		if key, exists := s.idToKey[id]; exists {
			delete(s.keyToID, key)
			delete(s.idToKey, id)
		}
	}
	return nil
}

func (s *hnswVectorIndex) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	_, ok := s.idToKey[id]
	return ok
}

func (s *hnswVectorIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return len(s.idToKey)
}

// Save persists the graph export and its ID-map sidecar atomically
// (temp file, then rename).
func (s *hnswVectorIndex) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: create vector index dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("store: create vector index file: %w", err)
	}
	if err := s.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("store: export vector graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: close vector index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: rename vector index file: %w", err)
	}

	return s.saveMeta(path + ".meta")
}

func (s *hnswVectorIndex) saveMeta(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("store: create vector meta file: %w", err)
	}
	meta := vectorIndexMeta{
		IDToKey:    s.idToKey,
		NextKey:    s.nextKey,
		Dimensions: s.dimensions,
		Metric:     s.metric,
	}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("store: encode vector meta: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: close vector meta file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores a previously-saved graph and ID map from disk, overwriting
// this index's in-memory state.
func (s *hnswVectorIndex) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.loadMeta(path + ".meta"); err != nil {
		return fmt.Errorf("store: load vector meta: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("store: open vector index file: %w", err)
	}
	defer f.Close()

	if err := s.graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("store: import vector graph: %w", err)
	}
	return nil
}

func (s *hnswVectorIndex) loadMeta(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("vector index meta close failed", slog.String("error", cerr.Error()))
		}
	}()

	var meta vectorIndexMeta
	if err := gob.NewDecoder(f).Decode(&meta); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	s.idToKey = meta.IDToKey
	s.keyToID = make(map[uint64]string, len(meta.IDToKey))
	for id, key := range s.idToKey {
		s.keyToID[key] = id
	}
	s.nextKey = meta.NextKey
	s.dimensions = meta.Dimensions
	s.metric = meta.Metric

	return nil
}

func (s *hnswVectorIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// ReadVectorIndexDimensions reads the dimension recorded in a persisted
// index's sidecar without loading the full graph, so the server can verify
// EMBEDDING_DIM compatibility at startup before committing to a load.
// Returns 0 with a nil error if no index has been persisted yet.
func ReadVectorIndexDimensions(path string) (int, error) {
	f, err := os.Open(path + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("store: open vector meta: %w", err)
	}
	defer f.Close()

	var meta vectorIndexMeta
	if err := gob.NewDecoder(f).Decode(&meta); err != nil {
		return 0, fmt.Errorf("store: decode vector meta: %w", err)
	}
	return meta.Dimensions, nil
}

var _ VectorIndex = (*hnswVectorIndex)(nil)

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
