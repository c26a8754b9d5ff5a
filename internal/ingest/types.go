// Package ingest drives the seven-stage pipeline that turns a URL or a
// direct content upload into chunk rows in the store: acquire, normalize,
// resolve the owning library, chunk, embed, persist, and recount.
package ingest

import (
	"time"

	"github.com/docserver/docserver/internal/chunk"
	"github.com/docserver/docserver/internal/fetch"
)

// Document is a transient grouping over the chunks produced by one ingestion
// call. It is never persisted as its own row — spec §3.3 identifies a
// document only by the document_id shared across its chunk rows.
type Document struct {
	ID         string
	LibraryID  string
	Title      string
	Source     string
	SourceType fetch.SourceType
	ChunkCount int
	CreatedAt  time.Time
}

// Request describes one ingestion call. Exactly one of URL or Content must
// be set.
type Request struct {
	LibraryID string

	// Title is the document-level title stamped on every resulting chunk
	// row (spec §3.1: "title: document title, identical across chunks of
	// one document"). Defaults to the source label when empty.
	Title string

	// URL triggers source acquisition via internal/fetch.
	URL string

	// Content is used directly when set, skipping source acquisition
	// (the "direct upload" path spec §4.D stage 1 calls a no-op).
	Content    string
	SourceName string // Source label stored on each chunk row (e.g. filename)

	Strategy chunk.Strategy
	Params   chunk.Params
}

func (r Request) validate() error {
	if r.LibraryID == "" {
		return errRequired("library_id")
	}
	if r.URL == "" && r.Content == "" {
		return errRequired("url or content")
	}
	if r.URL != "" && r.Content != "" {
		return errMutuallyExclusive("url", "content")
	}
	return nil
}
