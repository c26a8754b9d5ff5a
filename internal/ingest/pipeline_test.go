package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docserver/docserver/internal/embed"
	"github.com/docserver/docserver/internal/fetch"
	"github.com/docserver/docserver/internal/store"
)

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store, *store.Library) {
	t.Helper()
	s, err := store.OpenInMemory(embed.StaticDimensions, "cos")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	lib := &store.Library{ID: "lib-1", Name: "react", Context7ID: "/npm/react", Ecosystem: "npm"}
	require.NoError(t, s.UpsertLibrary(context.Background(), lib))

	p := New(Config{
		Fetcher:  fetch.New(fetch.Config{}),
		Embedder: embed.NewStaticEmbedder(embed.StaticDimensions),
		Store:    s,
	})
	return p, s, lib
}

func TestIngest_DirectContent_PersistsActiveChunks(t *testing.T) {
	// Given: a pipeline and a short markdown document
	p, s, lib := newTestPipeline(t)
	ctx := context.Background()

	// When: ingesting it directly
	doc, err := p.Ingest(ctx, Request{
		LibraryID:  lib.ID,
		Content:    "### Hooks\n\nuseState lets you add state.\n",
		SourceName: "hooks.md",
	})

	// Then: the document is created and its chunks are immediately visible
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, 1, doc.ChunkCount)

	chunks, err := s.ScanChunksWhere(ctx, store.ChunkFilter{DocumentID: doc.ID})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, store.ChunkStatusActive, chunks[0].Status)
}

func TestIngest_ReingestingSameSource_ReplacesPriorChunksAndKeepsCreatedAt(t *testing.T) {
	// Given: a document ingested once
	p, s, lib := newTestPipeline(t)
	ctx := context.Background()
	first, err := p.Ingest(ctx, Request{
		LibraryID:  lib.ID,
		Content:    "### Hooks\n\nuseState lets you add state.\n",
		SourceName: "hooks.md",
	})
	require.NoError(t, err)
	firstChunks, err := s.ScanChunksWhere(ctx, store.ChunkFilter{DocumentID: first.ID})
	require.NoError(t, err)
	originalCreatedAt := firstChunks[0].CreatedAt

	// When: the same source is ingested again with different content
	second, err := p.Ingest(ctx, Request{
		LibraryID:  lib.ID,
		Content:    "### Hooks\n\nuseEffect lets you run side effects.\n",
		SourceName: "hooks.md",
	})
	require.NoError(t, err)

	// Then: the document_id is stable, only the new chunk survives, and the
	// original created_at is preserved
	assert.Equal(t, first.ID, second.ID)
	chunks, err := s.ScanChunksWhere(ctx, store.ChunkFilter{DocumentID: second.ID})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "useEffect")
	assert.Equal(t, originalCreatedAt, chunks[0].CreatedAt)
}

func TestIngest_FromURL_ConvertsHTMLAndRecordsSourceType(t *testing.T) {
	// Given: a server serving an HTML page
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<h1>Title</h1><p>Body text.</p>"))
	}))
	defer srv.Close()
	p, _, lib := newTestPipeline(t)

	// When: ingesting its URL
	doc, err := p.Ingest(context.Background(), Request{LibraryID: lib.ID, URL: srv.URL})

	// Then: it's tagged markdown (converted from HTML) and sourced from the URL
	require.NoError(t, err)
	assert.Equal(t, fetch.SourceTypeMarkdown, doc.SourceType)
	assert.Equal(t, srv.URL, doc.Source)
}

func TestIngest_UnknownLibrary_ReturnsNotFound(t *testing.T) {
	// Given: a pipeline with no libraries registered
	p, _, _ := newTestPipeline(t)

	// When: ingesting against a nonexistent library
	_, err := p.Ingest(context.Background(), Request{LibraryID: "missing", Content: "# doc"})

	// Then: it's rejected
	require.Error(t, err)
}

func TestRequest_Validate_RejectsMissingOrConflictingSource(t *testing.T) {
	assert.Error(t, Request{LibraryID: "lib-1"}.validate())
	assert.Error(t, Request{LibraryID: "lib-1", URL: "http://x", Content: "y"}.validate())
	assert.Error(t, Request{URL: "http://x"}.validate())
	assert.NoError(t, Request{LibraryID: "lib-1", URL: "http://x"}.validate())
}
