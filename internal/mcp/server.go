package mcp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/docserver/docserver/internal/ingest"
	"github.com/docserver/docserver/internal/query"
	"github.com/docserver/docserver/internal/store"
	"github.com/docserver/docserver/pkg/version"
)

// maxBodyBytes bounds a single /mcp request body, matching the REST
// layer's 10 MiB ingestion ceiling.
const maxBodyBytes = 10 << 20

// Server is the MCP Streamable HTTP server: one /mcp endpoint dispatching
// JSON-RPC requests against the shared query engine and ingestion
// pipeline, grounded structurally on the teacher's mcp.Server (engine +
// metadata store + embedder wiring, a single CallTool dispatch switch)
// but re-targeted from the SDK's stdio transport to a hand-rolled
// Streamable HTTP transport per spec §4.F.2.
type Server struct {
	engine   *query.Engine
	store    *store.Store
	pipeline *ingest.Pipeline
	sessions *SessionManager

	upstreamBaseURL string
}

// Config wires a Server's collaborators.
type Config struct {
	Engine          *query.Engine
	Store           *store.Store
	Pipeline        *ingest.Pipeline
	UpstreamBaseURL string // UPSTREAM_CONTEXT7_URL, optional
}

func New(cfg Config) *Server {
	return &Server{
		engine:          cfg.Engine,
		store:           cfg.Store,
		pipeline:        cfg.Pipeline,
		sessions:        NewSessionManager(),
		upstreamBaseURL: cfg.UpstreamBaseURL,
	}
}

// Sessions exposes the session table so internal/gc can wire it in as a
// gc.SessionPruner without internal/gc importing internal/mcp.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Handler builds the http.Handler serving POST/GET/DELETE /mcp.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleMCP)
	return mux
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		s.handleGet(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, GET, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handlePost dispatches one JSON-RPC request, handling the initialize
// handshake's session creation and every other method's session
// validation per spec §4.F.2.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeJSONRPCError(w, nil, newParseError("failed to read request body"), acceptsSSE(r))
		return
	}
	if int64(len(body)) > maxBodyBytes {
		writeJSONRPCError(w, nil, newInvalidRequestError("request body too large"), acceptsSSE(r))
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONRPCError(w, nil, newParseError("invalid JSON-RPC envelope"), acceptsSSE(r))
		return
	}

	if req.Method != "initialize" {
		sessionID := r.Header.Get(SessionHeader)
		if sessionID == "" || !s.sessions.Touch(sessionID) {
			writeJSONRPCError(w, req.ID, newInvalidRequestError("unknown or missing Mcp-Session-Id"), acceptsSSE(r))
			return
		}
	}

	resp, sessionID := s.dispatch(r, req)

	if sessionID != "" {
		w.Header().Set(SessionHeader, sessionID)
	}
	writeJSONRPCResponse(w, resp, acceptsSSE(r))
}

// dispatch runs one JSON-RPC method, returning the response and (for
// initialize only) the freshly created session id to stamp on the
// response header.
func (s *Server) dispatch(r *http.Request, req Request) (*Response, string) {
	switch req.Method {
	case "initialize":
		var params InitializeParams
		_ = json.Unmarshal(req.Params, &params)
		protocolVersion := params.ProtocolVersion
		if protocolVersion == "" {
			protocolVersion = ProtocolVersion
		}
		sess := s.sessions.Open(protocolVersion)
		return successResponse(req.ID, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      Implementation{Name: "docserver", Version: version.Version},
		}), sess.ID

	case "tools/list":
		return successResponse(req.ID, ToolsListResult{Tools: toolDefinitions()}), ""

	case "tools/call":
		var params ToolsCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, newInvalidParamsError("malformed tools/call params")), ""
		}
		result, mcpErr := s.callTool(r.Context(), params.Name, params.Arguments)
		if mcpErr != nil {
			return errorResponse(req.ID, mcpErr), ""
		}
		return successResponse(req.ID, result), ""

	default:
		return errorResponse(req.ID, newMethodNotFoundError(req.Method)), ""
	}
}

// handleGet opens the long-lived server-initiated SSE stream spec §4.F.2
// requires. This service never pushes unsolicited messages, so the stream
// stays open, idle, until the client disconnects or the request context
// is canceled.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" || !s.sessions.Exists(sessionID) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	<-r.Context().Done()
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" || !s.sessions.Close(sessionID) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func acceptsSSE(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func writeJSONRPCResponse(w http.ResponseWriter, resp *Response, sse bool) {
	writeFramed(w, resp, sse)
}

func writeJSONRPCError(w http.ResponseWriter, id json.RawMessage, mcpErr *MCPError, sse bool) {
	writeFramed(w, errorResponse(id, mcpErr), sse)
}

// writeFramed serializes resp either as plain JSON or as a single
// `event: message` SSE frame, per the client's Accept header (spec
// §4.F.2's framing: "event: message\ndata: <json>\n\n").
func writeFramed(w http.ResponseWriter, resp *Response, sse bool) {
	body, err := json.Marshal(resp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if sse {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "event: message\ndata: %s\n\n", body)
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
