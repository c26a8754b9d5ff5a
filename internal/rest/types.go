package rest

import (
	"time"

	"github.com/docserver/docserver/internal/store"
)

// LibraryRequest is the body of POST/PUT /libraries and the partial body
// of PATCH /libraries/{id}; spec §6's example request shape.
type LibraryRequest struct {
	Name             string   `json:"name" validate:"required"`
	Language         string   `json:"language"`
	Ecosystem        string   `json:"ecosystem" validate:"required"`
	Description      string   `json:"description"`
	ShortDescription string   `json:"short_description"`
	Keywords         []string `json:"keywords"`
	Aliases          []string `json:"aliases"`
	License          string   `json:"license"`
	HomepageURL      string   `json:"homepage_url"`
	RepositoryURL    string   `json:"repository_url"`
	Author           string   `json:"author"`
	Context7ID       string   `json:"context7_id"`
}

// LibraryResponse is a Library plus the document_count spec §6 requires in
// every library response.
type LibraryResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Context7ID       string    `json:"context7_id"`
	Language         string    `json:"language,omitempty"`
	Ecosystem        string    `json:"ecosystem"`
	Description      string    `json:"description,omitempty"`
	ShortDescription string    `json:"short_description,omitempty"`
	Keywords         []string  `json:"keywords,omitempty"`
	Aliases          []string  `json:"aliases,omitempty"`
	License          string    `json:"license,omitempty"`
	HomepageURL      string    `json:"homepage_url,omitempty"`
	RepositoryURL    string    `json:"repository_url,omitempty"`
	Author           string    `json:"author,omitempty"`
	Status           string    `json:"status"`
	PopularityScore  int       `json:"popularity_score"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	DocumentCount    int       `json:"document_count"`
}

func toLibraryResponse(lib *store.Library, documentCount int) LibraryResponse {
	return LibraryResponse{
		ID: lib.ID, Name: lib.Name, Context7ID: lib.Context7ID, Language: lib.Language,
		Ecosystem: lib.Ecosystem, Description: lib.Description, ShortDescription: lib.ShortDescription,
		Keywords: lib.Keywords, Aliases: lib.Aliases, License: lib.License,
		HomepageURL: lib.HomepageURL, RepositoryURL: lib.RepositoryURL, Author: lib.Author,
		Status: string(lib.Status), PopularityScore: lib.PopularityScore,
		CreatedAt: lib.CreatedAt, UpdatedAt: lib.UpdatedAt, DocumentCount: documentCount,
	}
}

// CreateDocumentRequest is the body of POST /documents.
type CreateDocumentRequest struct {
	LibraryID string `json:"library_id" validate:"required"`
	Title     string `json:"title"`
	Content   string `json:"content" validate:"required"`
}

// FetchDocumentRequest is the body of POST /documents/fetch.
type FetchDocumentRequest struct {
	LibraryID      string `json:"library_id" validate:"required"`
	URL            string `json:"url" validate:"required,url"`
	FetchIfMissing bool   `json:"fetch_if_missing"`
}

// ReplaceContentRequest is the body of PATCH /documents/{id}/content.
type ReplaceContentRequest struct {
	Content string `json:"content" validate:"required"`
}

// DocumentResponse is document metadata without chunk bodies, the shape
// GET /documents and GET /documents/{id} return.
type DocumentResponse struct {
	ID         string    `json:"id"`
	LibraryID  string    `json:"library_id"`
	Source     string    `json:"source"`
	SourceType string    `json:"source_type"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ErrorResponse is the error envelope spec §7 requires verbatim at the
// top level of the body (not nested under an "error" key).
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
}
