package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docserver/docserver/internal/embed"
	"github.com/docserver/docserver/internal/ingest"
	"github.com/docserver/docserver/internal/query"
	"github.com/docserver/docserver/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.OpenInMemory(embed.StaticDimensions, "cos")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	embedder := embed.NewStaticEmbedder(embed.StaticDimensions)
	pipeline := ingest.New(ingest.Config{Embedder: embedder, Store: s})
	engine := query.New(query.Config{Store: s, Embedder: embedder})

	return New(Config{Engine: engine, Store: s, Pipeline: pipeline})
}

func createTestLibrary(t *testing.T, srv *Server) *store.Library {
	t.Helper()
	lib := &store.Library{ID: "lib-react", Name: "react", Ecosystem: "npm", Context7ID: "/npm/react"}
	require.NoError(t, srv.store.UpsertLibrary(context.Background(), lib))
	return lib
}

func postMCP(t *testing.T, srv *Server, req Request, sessionID string) (*Response, string) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if sessionID != "" {
		httpReq.Header.Set(SessionHeader, sessionID)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httpReq)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return &resp, rec.Header().Get(SessionHeader)
}

func TestInitialize_ReturnsProtocolVersionAndSessionHeader(t *testing.T) {
	srv := newTestServer(t)

	resp, sessionID := postMCP(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "initialize"}, "")

	require.Nil(t, resp.Error)
	require.NotEmpty(t, sessionID)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result InitializeResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Equal(t, ProtocolVersion, result.ProtocolVersion)
}

func TestToolsList_IncludesAllThreeTools(t *testing.T) {
	srv := newTestServer(t)
	_, sessionID := postMCP(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "initialize"}, "")

	resp, _ := postMCP(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`2`), Method: "tools/list"}, sessionID)

	require.Nil(t, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result ToolsListResult
	require.NoError(t, json.Unmarshal(raw, &result))

	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	require.Contains(t, names, "resolve-library-id")
	require.Contains(t, names, "query-docs")
	require.Contains(t, names, "fetch-library-docs")
}

func TestNonInitializeMethod_UnknownSession_ReturnsInvalidRequest(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := postMCP(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "tools/list"}, "does-not-exist")

	require.NotNil(t, resp.Error)
	require.Equal(t, -32600, resp.Error.Code)
}

func TestToolsCall_ResolveLibraryID_ReturnsTextContent(t *testing.T) {
	srv := newTestServer(t)
	createTestLibrary(t, srv)
	_, sessionID := postMCP(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "initialize"}, "")

	params, err := json.Marshal(ToolsCallParams{
		Name:      "resolve-library-id",
		Arguments: json.RawMessage(`{"libraryName":"react","query":"hooks"}`),
	})
	require.NoError(t, err)

	resp, _ := postMCP(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`2`), Method: "tools/call", Params: params}, sessionID)

	require.Nil(t, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result ToolsCallResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Len(t, result.Content, 1)
	require.Contains(t, result.Content[0].Text, "react")
}

func TestToolsCall_UnknownTool_ReturnsMethodNotFound(t *testing.T) {
	srv := newTestServer(t)
	_, sessionID := postMCP(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "initialize"}, "")

	params, err := json.Marshal(ToolsCallParams{Name: "not-a-tool", Arguments: json.RawMessage(`{}`)})
	require.NoError(t, err)

	resp, _ := postMCP(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`2`), Method: "tools/call", Params: params}, sessionID)

	require.NotNil(t, resp.Error)
	require.Equal(t, -32601, resp.Error.Code)
}

func TestDelete_TerminatesSession(t *testing.T) {
	srv := newTestServer(t)
	_, sessionID := postMCP(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "initialize"}, "")
	require.True(t, srv.sessions.Exists(sessionID))

	req := httptest.NewRequest("DELETE", "/mcp", nil)
	req.Header.Set(SessionHeader, sessionID)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, 204, rec.Code)
	require.False(t, srv.sessions.Exists(sessionID))
}
