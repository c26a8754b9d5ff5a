// Package rest implements spec §4.F.1's REST surface over the same
// ingest/query engine the MCP transport uses, grounded structurally on
// fredcamaral-mcp-alfarrabio's chi-based router (recovery + request-size
// middleware, versioned route groups, a dedicated health endpoint) since
// the teacher repo itself has no REST layer to adapt.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/docserver/docserver/internal/ingest"
	"github.com/docserver/docserver/internal/store"
)

// maxRequestBytes bounds ingestion payloads per spec §5's backpressure
// policy (10 MiB).
const maxRequestBytes = 10 << 20

// Server wires the HTTP surface to the store and ingestion pipeline.
type Server struct {
	store    *store.Store
	pipeline *ingest.Pipeline
	validate *validator.Validate
}

// Config wires a Server's collaborators.
type Config struct {
	Store    *store.Store
	Pipeline *ingest.Pipeline
}

func New(cfg Config) *Server {
	return &Server{store: cfg.Store, pipeline: cfg.Pipeline, validate: validator.New()}
}

// Router builds the chi.Mux serving every endpoint in spec §4.F.1's table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(maxRequestBytes))
	// serve.go mounts this router at /api/v1/ on a plain http.ServeMux, which
	// does not strip that prefix, so the liveness probe has to live under it
	// too rather than at a bare /health.
	r.Use(middleware.Heartbeat("/api/v1/health"))

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/libraries", func(lr chi.Router) {
			lr.Post("/", s.createLibrary)
			lr.Get("/", s.listLibraries)
			lr.Route("/{id}", func(lir chi.Router) {
				lir.Get("/", s.getLibrary)
				lir.Patch("/", s.patchLibrary)
				lir.Put("/", s.putLibrary)
				lir.Delete("/", s.deleteLibrary)
			})
		})

		api.Route("/documents", func(dr chi.Router) {
			dr.Post("/", s.createDocument)
			dr.Post("/fetch", s.fetchDocument)
			dr.Get("/", s.listDocuments)
			dr.Route("/{id}", func(dir chi.Router) {
				dir.Get("/", s.getDocument)
				dir.Get("/content", s.getDocumentContent)
				dir.Patch("/content", s.replaceDocumentContent)
				dir.Delete("/", s.deleteDocument)
			})
		})
	})

	return r
}
