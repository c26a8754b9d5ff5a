package rest

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDocument_ChunksAndStampsDocumentLevelTitle(t *testing.T) {
	srv := newTestServer(t)
	createTestLibrary(t, srv)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/documents/", CreateDocumentRequest{
		LibraryID: "lib-test", Title: "Hooks",
		Content: "# Hooks\n\nUse hooks to manage state.\n\n## useState\n\nHolds local state.",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var doc DocumentResponse
	decodeBody(t, rec, &doc)
	assert.Equal(t, "lib-test", doc.LibraryID)
	assert.Greater(t, doc.ChunkCount, 0)

	contentRec := doRequest(t, srv, http.MethodGet, "/api/v1/documents/"+doc.ID+"/content", nil)
	require.Equal(t, http.StatusOK, contentRec.Code)
	assert.Contains(t, contentRec.Body.String(), "useState")
}

func TestCreateDocument_MissingContentAndURL_ReturnsBadRequest(t *testing.T) {
	srv := newTestServer(t)
	createTestLibrary(t, srv)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/documents/", CreateDocumentRequest{LibraryID: "lib-test"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDocument_UnknownID_ReturnsNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/documents/does-not-exist", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var errResp ErrorResponse
	decodeBody(t, rec, &errResp)
	assert.Equal(t, "document.not_found", errResp.Code)
}

func TestListDocuments_RequiresLibraryIDQueryParam(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/documents/", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDocuments_GroupsChunksByDocument(t *testing.T) {
	srv := newTestServer(t)
	createTestLibrary(t, srv)
	doRequest(t, srv, http.MethodPost, "/api/v1/documents/", CreateDocumentRequest{
		LibraryID: "lib-test", Title: "Hooks", Content: "# Hooks\n\nBody text here.",
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/documents/?library_id=lib-test", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var docs []DocumentResponse
	decodeBody(t, rec, &docs)
	require.Len(t, docs, 1)
	assert.Equal(t, "lib-test", docs[0].LibraryID)
}

func TestReplaceDocumentContent_ReingestsUnderSameDocumentID(t *testing.T) {
	srv := newTestServer(t)
	createTestLibrary(t, srv)
	createRec := doRequest(t, srv, http.MethodPost, "/api/v1/documents/", CreateDocumentRequest{
		LibraryID: "lib-test", Title: "Hooks", Content: "# Hooks\n\nOld body.",
	})
	var created DocumentResponse
	decodeBody(t, createRec, &created)

	rec := doRequest(t, srv, http.MethodPatch, "/api/v1/documents/"+created.ID+"/content", ReplaceContentRequest{
		Content: "# Hooks\n\nNew body entirely.",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var replaced DocumentResponse
	decodeBody(t, rec, &replaced)
	assert.Equal(t, created.ID, replaced.ID)

	contentRec := doRequest(t, srv, http.MethodGet, "/api/v1/documents/"+created.ID+"/content", nil)
	assert.Contains(t, contentRec.Body.String(), "New body entirely")
	assert.NotContains(t, contentRec.Body.String(), "Old body")
}

func TestDeleteDocument_RemovesAllItsChunks(t *testing.T) {
	srv := newTestServer(t)
	createTestLibrary(t, srv)
	createRec := doRequest(t, srv, http.MethodPost, "/api/v1/documents/", CreateDocumentRequest{
		LibraryID: "lib-test", Title: "Hooks", Content: "# Hooks\n\nBody.",
	})
	var created DocumentResponse
	decodeBody(t, createRec, &created)

	rec := doRequest(t, srv, http.MethodDelete, "/api/v1/documents/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	getRec := doRequest(t, srv, http.MethodGet, "/api/v1/documents/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, getRec.Code)
}

func TestDeleteDocument_UnknownID_ReturnsNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodDelete, "/api/v1/documents/does-not-exist", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
