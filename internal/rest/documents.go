package rest

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docserver/docserver/internal/docerrors"
	"github.com/docserver/docserver/internal/ingest"
	"github.com/docserver/docserver/internal/store"
)

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	doc, err := s.pipeline.Ingest(r.Context(), ingest.Request{
		LibraryID:  req.LibraryID,
		Title:      req.Title,
		Content:    req.Content,
		SourceName: req.Title,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (s *Server) fetchDocument(w http.ResponseWriter, r *http.Request) {
	var req FetchDocumentRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	doc, err := s.pipeline.Ingest(r.Context(), ingest.Request{
		LibraryID: req.LibraryID,
		URL:       req.URL,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	libraryID := r.URL.Query().Get("library_id")
	if libraryID == "" {
		respondError(w, docerrors.Validation("library_id query parameter is required", nil))
		return
	}

	chunks, err := s.store.ScanChunksWhere(r.Context(), store.ChunkFilter{
		LibraryID: libraryID, Status: store.ChunkStatusActive,
	})
	if err != nil {
		respondError(w, docerrors.Store("failed to list documents", err))
		return
	}

	respondJSON(w, http.StatusOK, groupIntoDocuments(chunks))
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chunks, err := s.documentChunks(r, id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, groupIntoDocuments(chunks)[0])
}

func (s *Server) getDocumentContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chunks, err := s.documentChunks(r, id)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(concatenateChunks(chunks)))
}

func (s *Server) replaceDocumentContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := s.documentChunks(r, id)
	if err != nil {
		respondError(w, err)
		return
	}

	var req ReplaceContentRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	first := existing[0]
	doc, err := s.pipeline.Ingest(r.Context(), ingest.Request{
		LibraryID:  first.LibraryID,
		Title:      first.Title,
		Content:    req.Content,
		SourceName: first.Source,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := s.store.DeleteChunksWhere(r.Context(), store.ChunkFilter{DocumentID: id})
	if err != nil {
		respondError(w, docerrors.Store("failed to delete document", err))
		return
	}
	if n == 0 {
		respondError(w, docerrors.NotFound("document not found", nil).WithCode("document.not_found"))
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// documentChunks fetches every chunk sharing id as its document_id, failing
// with NotFound when none exist (a document is never its own row, so
// "not found" means "zero matching chunks").
func (s *Server) documentChunks(r *http.Request, id string) ([]*store.Chunk, error) {
	chunks, err := s.store.ScanChunksWhere(r.Context(), store.ChunkFilter{DocumentID: id, Status: store.ChunkStatusActive})
	if err != nil {
		return nil, docerrors.Store("failed to read document", err)
	}
	if len(chunks) == 0 {
		return nil, docerrors.NotFound("document not found", errors.New("no chunks for document id")).WithCode("document.not_found")
	}
	orderChunksByIndex(chunks)
	return chunks, nil
}

func orderChunksByIndex(chunks []*store.Chunk) {
	for i := 1; i < len(chunks); i++ {
		for j := i; j > 0 && chunks[j].ChunkIndex < chunks[j-1].ChunkIndex; j-- {
			chunks[j], chunks[j-1] = chunks[j-1], chunks[j]
		}
	}
}

// concatenateChunks joins chunk texts in chunk_index order. Re-chunking
// this output with the same strategy reproduces the original boundaries
// (spec §8 property 5's round-trip fixed point), even though it need not
// be byte-identical to the originally ingested markdown.
func concatenateChunks(chunks []*store.Chunk) string {
	var out string
	for i, c := range chunks {
		if i > 0 {
			out += "\n\n"
		}
		out += c.Text
	}
	return out
}

func groupIntoDocuments(chunks []*store.Chunk) []DocumentResponse {
	type agg struct {
		doc   DocumentResponse
		count int
	}
	order := make([]string, 0)
	byID := make(map[string]*agg)

	for _, c := range chunks {
		a, ok := byID[c.DocumentID]
		if !ok {
			a = &agg{doc: DocumentResponse{
				ID: c.DocumentID, LibraryID: c.LibraryID, Source: c.Source,
				SourceType: c.SourceType, CreatedAt: c.CreatedAt,
			}}
			byID[c.DocumentID] = a
			order = append(order, c.DocumentID)
		}
		a.count++
		if c.CreatedAt.Before(a.doc.CreatedAt) {
			a.doc.CreatedAt = c.CreatedAt
		}
	}

	out := make([]DocumentResponse, len(order))
	for i, id := range order {
		a := byID[id]
		a.doc.ChunkCount = a.count
		out[i] = a.doc
	}
	return out
}

func toDocumentResponse(doc *ingest.Document) DocumentResponse {
	return DocumentResponse{
		ID: doc.ID, LibraryID: doc.LibraryID, Source: doc.Source,
		SourceType: string(doc.SourceType), ChunkCount: doc.ChunkCount, CreatedAt: doc.CreatedAt,
	}
}
