package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// bleveTextIndex backs resolve-library-id's candidate-gathering step: a
// substring/keyword search over library name, aliases and keywords. This
// reuses bleve the way the teacher's BleveBM25Index does (same corruption
// detection and in-memory-for-tests pattern) but with bleve's stock
// standard analyzer rather than the teacher's code-identifier tokenizer —
// library names are natural-language strings ("react", "next.js"), not
// camelCase/snake_case symbols, so the code-aware tokenizer doesn't apply.
type bleveTextIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// textDoc is the bleve document shape indexed per library.
type textDoc struct {
	Name     string `json:"name"`
	Aliases  string `json:"aliases"`
	Keywords string `json:"keywords"`
}

func validateTextIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}
	return nil
}

func buildTextIndexMapping() *mapping.IndexMappingImpl {
	docMapping := bleve.NewDocumentMapping()

	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = "standard"
	docMapping.AddFieldMappingsAt("name", nameField)

	aliasField := bleve.NewTextFieldMapping()
	aliasField.Analyzer = "standard"
	docMapping.AddFieldMappingsAt("aliases", aliasField)

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = "standard"
	docMapping.AddFieldMappingsAt("keywords", keywordField)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = docMapping
	return im
}

// NewBleveTextIndex opens (or creates) the library text index at path. An
// empty path creates an in-memory index, used by tests.
func NewBleveTextIndex(path string) (TextIndex, error) {
	im := buildTextIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("store: create text index dir: %w", mkErr)
		}
		if validErr := validateTextIndexIntegrity(path); validErr != nil {
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, fmt.Errorf("store: text index corrupted at %s and cannot remove: %w (original: %v)", path, rmErr, validErr)
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			idx, err = bleve.New(path, im)
		} else {
			idx, err = bleve.Open(path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("store: open text index: %w", err)
	}

	return &bleveTextIndex{index: idx, path: path}, nil
}

func (t *bleveTextIndex) IndexLibrary(ctx context.Context, lib *Library) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	doc := textDoc{
		Name:     lib.Name,
		Aliases:  strings.Join(lib.Aliases, " "),
		Keywords: strings.Join(lib.Keywords, " "),
	}
	if err := t.index.Index(lib.ID, doc); err != nil {
		return fmt.Errorf("store: index library %s: %w", lib.ID, err)
	}
	return nil
}

func (t *bleveTextIndex) DeleteLibrary(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if err := t.index.Delete(id); err != nil {
		return fmt.Errorf("store: delete library %s from text index: %w", id, err)
	}
	return nil
}

func (t *bleveTextIndex) Search(ctx context.Context, query string, limit int) ([]TextSearchResult, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil, ErrClosed
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	nameQuery := bleve.NewMatchQuery(query)
	nameQuery.SetField("name")
	nameQuery.SetBoost(3.0)

	aliasQuery := bleve.NewMatchQuery(query)
	aliasQuery.SetField("aliases")
	aliasQuery.SetBoost(2.0)

	keywordQuery := bleve.NewMatchQuery(query)
	keywordQuery.SetField("keywords")
	keywordQuery.SetBoost(1.0)

	disjunct := bleve.NewDisjunctionQuery(nameQuery, aliasQuery, keywordQuery)

	req := bleve.NewSearchRequest(disjunct)
	req.Size = limit
	if req.Size <= 0 {
		req.Size = 20
	}

	result, err := t.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("store: text search: %w", err)
	}

	out := make([]TextSearchResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		out = append(out, TextSearchResult{LibraryID: hit.ID, Score: hit.Score})
	}
	return out, nil
}

func (t *bleveTextIndex) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.index.Close()
}

var _ TextIndex = (*bleveTextIndex)(nil)
