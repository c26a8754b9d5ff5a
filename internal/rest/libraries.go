package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/docserver/docserver/internal/docerrors"
	"github.com/docserver/docserver/internal/store"
)

func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, docerrors.Validation("malformed JSON body", err))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		respondError(w, docerrors.Validation(err.Error(), nil).WithCode("request.invalid"))
		return false
	}
	return true
}

func (s *Server) createLibrary(w http.ResponseWriter, r *http.Request) {
	var req LibraryRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	lib := &store.Library{
		Name: req.Name, Language: req.Language, Ecosystem: req.Ecosystem,
		Description: req.Description, ShortDescription: req.ShortDescription,
		Keywords: req.Keywords, Aliases: req.Aliases, License: req.License,
		HomepageURL: req.HomepageURL, RepositoryURL: req.RepositoryURL, Author: req.Author,
	}
	lib.ID = newLibraryID()
	lib.Context7ID = req.Context7ID
	if lib.Context7ID == "" {
		lib.Context7ID = store.DeriveContext7ID(req.Ecosystem, req.Name)
	}

	if err := s.store.UpsertLibrary(r.Context(), lib); err != nil {
		respondError(w, mapLibraryWriteErr(err))
		return
	}

	respondJSON(w, http.StatusCreated, toLibraryResponse(lib, 0))
}

func (s *Server) listLibraries(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)
	filter := store.LibraryFilter{Ecosystem: r.URL.Query().Get("ecosystem")}

	libs, err := s.store.ListLibraries(r.Context(), filter, limit, offset)
	if err != nil {
		respondError(w, docerrors.Store("failed to list libraries", err))
		return
	}

	out := make([]LibraryResponse, len(libs))
	for i, lib := range libs {
		out[i] = s.toLibraryResponseWithCount(r, lib)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) getLibrary(w http.ResponseWriter, r *http.Request) {
	lib, err := s.store.GetLibrary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, mapLibraryReadErr(err))
		return
	}
	respondJSON(w, http.StatusOK, s.toLibraryResponseWithCount(r, lib))
}

func (s *Server) patchLibrary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lib, err := s.store.GetLibrary(r.Context(), id)
	if err != nil {
		respondError(w, mapLibraryReadErr(err))
		return
	}

	var req LibraryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, docerrors.Validation("malformed JSON body", err))
		return
	}
	applyLibraryPatch(lib, req)

	if err := s.store.UpsertLibrary(r.Context(), lib); err != nil {
		respondError(w, mapLibraryWriteErr(err))
		return
	}
	respondJSON(w, http.StatusOK, s.toLibraryResponseWithCount(r, lib))
}

func (s *Server) putLibrary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := s.store.GetLibrary(r.Context(), id)
	if err != nil {
		respondError(w, mapLibraryReadErr(err))
		return
	}

	var req LibraryRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	lib := &store.Library{
		ID: id, Name: req.Name, Language: req.Language, Ecosystem: req.Ecosystem,
		Description: req.Description, ShortDescription: req.ShortDescription,
		Keywords: req.Keywords, Aliases: req.Aliases, License: req.License,
		HomepageURL: req.HomepageURL, RepositoryURL: req.RepositoryURL, Author: req.Author,
		Context7ID: req.Context7ID, Status: existing.Status, PopularityScore: existing.PopularityScore,
		CreatedAt: existing.CreatedAt,
	}
	if lib.Context7ID == "" {
		lib.Context7ID = store.DeriveContext7ID(req.Ecosystem, req.Name)
	}

	if err := s.store.UpsertLibrary(r.Context(), lib); err != nil {
		respondError(w, mapLibraryWriteErr(err))
		return
	}
	respondJSON(w, http.StatusOK, s.toLibraryResponseWithCount(r, lib))
}

func (s *Server) deleteLibrary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteLibrary(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrLibraryInUse) {
			respondError(w, docerrors.Conflict("library has documents; delete them first", err).WithCode("library.in_use"))
			return
		}
		respondError(w, mapLibraryReadErr(err))
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) toLibraryResponseWithCount(r *http.Request, lib *store.Library) LibraryResponse {
	count, err := s.store.CountDocumentsForLibrary(r.Context(), lib.ID)
	if err != nil {
		count = 0
	}
	return toLibraryResponse(lib, count)
}

func applyLibraryPatch(lib *store.Library, req LibraryRequest) {
	if req.Name != "" {
		lib.Name = req.Name
	}
	if req.Language != "" {
		lib.Language = req.Language
	}
	if req.Ecosystem != "" {
		lib.Ecosystem = req.Ecosystem
	}
	if req.Description != "" {
		lib.Description = req.Description
	}
	if req.ShortDescription != "" {
		lib.ShortDescription = req.ShortDescription
	}
	if req.Keywords != nil {
		lib.Keywords = req.Keywords
	}
	if req.Aliases != nil {
		lib.Aliases = req.Aliases
	}
	if req.License != "" {
		lib.License = req.License
	}
	if req.HomepageURL != "" {
		lib.HomepageURL = req.HomepageURL
	}
	if req.RepositoryURL != "" {
		lib.RepositoryURL = req.RepositoryURL
	}
	if req.Author != "" {
		lib.Author = req.Author
	}
	if req.Context7ID != "" {
		lib.Context7ID = req.Context7ID
	}
}

func mapLibraryWriteErr(err error) error {
	if errors.Is(err, store.ErrDuplicateLibrary) {
		return docerrors.Conflict("a library with this name or context7_id already exists", err).WithCode("library.duplicate_name")
	}
	return docerrors.Store("failed to persist library", err)
}

func mapLibraryReadErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return docerrors.NotFound("library not found", err).WithCode("library.not_found")
	}
	return docerrors.Store("failed to read library", err)
}

func paginationParams(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
