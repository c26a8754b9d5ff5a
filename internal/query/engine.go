package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/docserver/docserver/internal/docerrors"
	"github.com/docserver/docserver/internal/embed"
	"github.com/docserver/docserver/internal/store"
)

// DefaultLimit is the number of chunks QueryDocs returns when the caller
// doesn't specify a positive limit.
const DefaultLimit = 5

// UpstreamResolver looks up a library definition from an external registry
// (e.g. Context7) when ResolveLibraryID finds no local candidates and the
// caller opted in via fetchIfMissing. Implemented by internal/mcp's
// Context7 client; nil here means "no upstream configured."
type UpstreamResolver interface {
	ResolveLibrary(ctx context.Context, name string) (*store.Library, error)
}

// Engine is the single entry point for both read-side operations, wiring
// an embedder and a store together the way the teacher's search.Engine
// wires an embedder and a store for code search.
type Engine struct {
	store    *store.Store
	embedder embed.Embedder
	upstream UpstreamResolver
}

// Config wires an Engine's collaborators.
type Config struct {
	Store    *store.Store
	Embedder embed.Embedder
	Upstream UpstreamResolver // optional
}

func New(cfg Config) *Engine {
	return &Engine{store: cfg.Store, embedder: cfg.Embedder, upstream: cfg.Upstream}
}

// QueryDocs implements spec §4.E.1: resolve libraryRef (accepts either a
// context7_id or an internal id), embed queryText, run a library-scoped
// vector search, and render both the structured hits and a markdown
// summary. An existing library with zero matching chunks is not an error —
// it returns an explanatory note instead.
func (e *Engine) QueryDocs(ctx context.Context, libraryRef, queryText string, limit int) (*QueryDocsResult, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	lib, err := e.resolveLibraryRef(ctx, libraryRef)
	if err != nil {
		return nil, err
	}

	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, docerrors.Validation("query text is required", nil)
	}

	vectors, err := e.embedder.EmbedBatch(ctx, []string{queryText})
	if err != nil {
		return nil, docerrors.UpstreamUnavailable("failed to embed query", err)
	}
	if len(vectors) == 0 {
		return nil, docerrors.Store("embedder returned no vector for query", nil)
	}

	chunks, distances, err := e.store.VectorSearch(ctx, vectors[0], store.ChunkFilter{LibraryID: lib.ID}, limit)
	if err != nil {
		return nil, docerrors.Store("vector search failed", err)
	}

	if len(chunks) == 0 {
		return &QueryDocsResult{
			Markdown: fmt.Sprintf("No documentation chunks found for %s (%s). The library exists but has no ingested content yet.", lib.Name, lib.Context7ID),
		}, nil
	}

	results := rankChunks(chunks, distances)
	return &QueryDocsResult{Results: results, Markdown: renderMarkdown(results)}, nil
}

// resolveLibraryRef accepts either an internal library id or a context7_id,
// trying the id lookup first since it's the cheaper indexed path.
func (e *Engine) resolveLibraryRef(ctx context.Context, ref string) (*store.Library, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, docerrors.Validation("library reference is required", nil)
	}

	if store.ValidContext7ID(ref) {
		lib, err := e.store.GetLibraryByContext7ID(ctx, ref)
		if err == nil {
			return lib, nil
		}
		return nil, errLibraryNotFound(ref, err)
	}

	lib, err := e.store.GetLibrary(ctx, ref)
	if err != nil {
		return nil, errLibraryNotFound(ref, err)
	}
	return lib, nil
}

// rankChunks pairs each hit with its distance, already ascending from
// store.VectorSearch, and breaks exact distance ties by (document_id,
// chunk_index) for a deterministic order.
func rankChunks(chunks []*store.Chunk, distances []float32) []DocResult {
	results := make([]DocResult, len(chunks))
	for i, c := range chunks {
		results[i] = DocResult{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Title:      c.Title,
			Text:       c.Text,
			Source:     c.Source,
			ChunkIndex: c.ChunkIndex,
			ChunkTotal: c.ChunkTotal,
			Distance:   distances[i],
			CreatedAt:  c.CreatedAt,
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID < results[j].DocumentID
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})
	return results
}

// renderMarkdown formats results the way spec §4.E.1 specifies: one
// heading plus source line per chunk.
func renderMarkdown(results []DocResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "### %s (section %d/%d)\n%s\n\nSource: %s", r.Title, r.ChunkIndex+1, r.ChunkTotal, r.Text, r.Source)
	}
	return b.String()
}
