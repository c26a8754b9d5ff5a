package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/docserver/docserver/internal/chunk"
	"github.com/docserver/docserver/internal/docerrors"
	"github.com/docserver/docserver/internal/embed"
	"github.com/docserver/docserver/internal/fetch"
	"github.com/docserver/docserver/internal/store"
)

// DefaultConcurrency bounds how many documents Pipeline.Ingest runs at once
// when callers share one Pipeline across goroutines (INGESTION_CONCURRENCY).
const DefaultConcurrency = 8

// Config wires a Pipeline's collaborators and concurrency limits.
type Config struct {
	Fetcher     *fetch.Fetcher
	Embedder    embed.Embedder
	Store       *store.Store
	Concurrency int // 0 defaults to DefaultConcurrency
}

// Pipeline runs the ingestion stages described in SPEC_FULL §4.D: source
// acquisition, normalization, chunking, embedding and persistence, with
// provisional/pending-row tagging bridging stages 4-6 so a reader never
// observes a half-written document.
//
// Grounded structurally on the teacher's index.Coordinator.indexFile: a
// sequential method orchestrating scan -> chunk -> embed -> persist as
// discrete phases, generalized here from "reindex a changed file" to
// "ingest one remote or uploaded document."
type Pipeline struct {
	fetcher  *fetch.Fetcher
	embedder embed.Embedder
	store    *store.Store

	sem      *semaphore.Weighted
	docLocks docLockTable
}

// New builds a Pipeline. cfg.Fetcher may be nil if the caller never ingests
// by URL (direct-upload-only deployments).
func New(cfg Config) *Pipeline {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Pipeline{
		fetcher:  cfg.Fetcher,
		embedder: cfg.Embedder,
		store:    cfg.Store,
		sem:      semaphore.NewWeighted(int64(concurrency)),
		docLocks: newDocLockTable(),
	}
}

// Ingest runs req through all seven stages and returns the resulting
// Document. Concurrent calls are bounded by Config.Concurrency; calls
// sharing the same (LibraryID, SourceName) content-replacement target are
// additionally serialized so delete-then-append never interleaves.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Document, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("ingest: acquire concurrency slot: %w", err)
	}
	defer p.sem.Release(1)

	lib, err := p.store.GetLibrary(ctx, req.LibraryID)
	if err != nil {
		return nil, docerrors.NotFound("library not found", err)
	}

	text, sourceType, source, err := p.acquire(ctx, req)
	if err != nil {
		return nil, err
	}
	text = fetch.Normalize(text)

	chunks, err := chunk.Chunk(text, req.Strategy, req.Params)
	if err != nil {
		return nil, docerrors.Validation("chunking failed", err)
	}
	if len(chunks) == 0 {
		return nil, docerrors.Validation("document produced no chunks", nil)
	}

	// document_id is derived deterministically from (library, source) so
	// re-ingesting the same URL or upload name always targets the same
	// logical document, matching the teacher's generateFileID(projectID,
	// relPath) scheme (stage 6, content replacement).
	docID := documentID(lib.ID, source)

	unlock := p.docLocks.lock(lib.ID, source)
	defer unlock()

	createdAt, err := p.priorCreatedAtOrNow(ctx, docID)
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = source
	}

	storeChunks, err := p.embedChunks(ctx, docID, lib.ID, title, source, sourceType, chunks, createdAt)
	if err != nil {
		return nil, err
	}

	if _, err := p.store.DeleteChunksWhere(ctx, store.ChunkFilter{DocumentID: docID}); err != nil {
		return nil, docerrors.Store("failed to delete prior chunks before replacement", err)
	}

	if err := p.store.AppendChunks(ctx, storeChunks); err != nil {
		return nil, docerrors.Store("failed to persist chunks", err)
	}

	if err := p.store.FinalizeDocument(ctx, docID); err != nil {
		return nil, docerrors.Store("failed to finalize document", err)
	}

	slog.Info("ingest: document ingested",
		slog.String("library_id", lib.ID), slog.String("document_id", docID),
		slog.Int("chunk_count", len(storeChunks)), slog.String("source_type", string(sourceType)))

	return &Document{
		ID:         docID,
		LibraryID:  lib.ID,
		Title:      title,
		Source:     source,
		SourceType: sourceType,
		ChunkCount: len(storeChunks),
		CreatedAt:  createdAt,
	}, nil
}

// acquire runs stage 1 (source acquisition): URL fetch, or the no-op direct
// upload path when req.Content is already populated.
func (p *Pipeline) acquire(ctx context.Context, req Request) (text string, sourceType fetch.SourceType, source string, err error) {
	if req.Content != "" {
		source = req.SourceName
		if source == "" {
			source = "upload"
		}
		return req.Content, fetch.SourceTypeMarkdown, source, nil
	}

	if p.fetcher == nil {
		return "", "", "", docerrors.Validation("URL ingestion is not configured", nil)
	}
	result, err := p.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return "", "", "", docerrors.UpstreamUnavailable("failed to fetch document", err)
	}
	return result.Markdown, result.SourceType, req.URL, nil
}

// priorCreatedAtOrNow reads the earliest created_at among chunks already
// sharing docID, so a content-replacement keeps the document's original
// creation timestamp instead of resetting it; a never-seen docID gets the
// current time.
func (p *Pipeline) priorCreatedAtOrNow(ctx context.Context, docID string) (time.Time, error) {
	existing, err := p.store.ScanChunksWhere(ctx, store.ChunkFilter{DocumentID: docID})
	if err != nil {
		return time.Time{}, docerrors.Store("failed to scan existing chunks", err)
	}
	var earliest time.Time
	for _, c := range existing {
		if earliest.IsZero() || c.CreatedAt.Before(earliest) {
			earliest = c.CreatedAt
		}
	}
	if earliest.IsZero() {
		return time.Now().UTC(), nil
	}
	return earliest, nil
}

// documentID deterministically derives a document_id from the library and
// source so the same logical document always maps to the same chunk rows.
func documentID(libraryID, source string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(libraryID+"\x00"+source)).String()
}

// embedChunks runs stages 4-5: batches chunk text through the embedder
// (batch size from embed.DefaultBatchSize) and assembles pending store rows.
// title is stamped identically on every chunk (spec §3.1's denormalized
// document title); chunk.Result.SectionPath remains available for callers
// that want the finer-grained H3 breadcrumb but isn't part of the stored row.
func (p *Pipeline) embedChunks(ctx context.Context, docID, libraryID, title, source string, sourceType fetch.SourceType, chunks []chunk.Result, createdAt time.Time) ([]*store.Chunk, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embed.DefaultBatchSize {
		end := start + embed.DefaultBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, docerrors.UpstreamUnavailable("embedding failed", err)
		}
		vectors = append(vectors, batch...)
	}
	if len(vectors) != len(chunks) {
		return nil, docerrors.Store("embedder returned an unexpected vector count", nil)
	}

	out := make([]*store.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = &store.Chunk{
			ID:         uuid.NewString(),
			DocumentID: docID,
			LibraryID:  libraryID,
			Title:      title,
			Text:       c.Text,
			Vector:     vectors[i],
			ChunkIndex: c.Ordinal,
			ChunkTotal: len(chunks),
			Source:     source,
			SourceType: string(sourceType),
			Status:     store.ChunkStatusPending,
			CreatedAt:  createdAt,
		}
	}
	return out, nil
}

// docLockTable serializes delete-then-append for a given (library, source)
// pair without serializing unrelated documents, a sharded-mutex pattern
// grounded on the mutex-guarded shared state seen across internal/store.
type docLockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDocLockTable() docLockTable {
	return docLockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *docLockTable) lock(libraryID, source string) (unlock func()) {
	key := libraryID + "\x00" + source

	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}
