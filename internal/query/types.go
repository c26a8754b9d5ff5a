// Package query implements the two read-side operations of the retrieval
// service: QueryDocs (semantic search scoped to one library) and
// ResolveLibraryID (name-to-library-id resolution with weighted scoring).
//
// Both are grounded structurally on the teacher's search.Engine: a single
// entry point wiring an embedder and a store together, embedding the
// query, searching, ranking and formatting results — re-targeted here from
// whole-repo code search to library-scoped documentation search, and
// stripped of the teacher's query classification, decomposition,
// multi-query fan-out and reranking machinery, none of which the spec
// calls for.
package query

import "time"

// DocResult is one chunk returned by QueryDocs, ordered ascending by
// distance (nearest first).
type DocResult struct {
	ChunkID     string
	DocumentID  string
	Title       string
	Text        string
	Source      string
	ChunkIndex  int
	ChunkTotal  int
	Distance    float32
	CreatedAt   time.Time
}

// QueryDocsResult bundles the structured hits with the rendered markdown
// spec §4.E.1 asks for alongside them.
type QueryDocsResult struct {
	Results  []DocResult
	Markdown string
}

// LibraryCandidate is one scored candidate returned by ResolveLibraryID.
type LibraryCandidate struct {
	LibraryID  string
	Name       string
	Context7ID string
	Score      float64
}

// ResolveResult is ResolveLibraryID's response: a single best match plus,
// when other candidates tie closely enough, a short list of alternatives.
type ResolveResult struct {
	Best         LibraryCandidate
	Alternatives []LibraryCandidate
}
