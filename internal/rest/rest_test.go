package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docserver/docserver/internal/embed"
	"github.com/docserver/docserver/internal/ingest"
	"github.com/docserver/docserver/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.OpenInMemory(embed.StaticDimensions, "cos")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	pipeline := ingest.New(ingest.Config{
		Embedder: embed.NewStaticEmbedder(embed.StaticDimensions),
		Store:    s,
	})
	return New(Config{Store: s, Pipeline: pipeline})
}

func createTestLibrary(t *testing.T, srv *Server) store.Library {
	t.Helper()
	lib := &store.Library{
		ID: "lib-test", Name: "react", Ecosystem: "npm", Context7ID: "/npm/react",
	}
	require.NoError(t, srv.store.UpsertLibrary(context.Background(), lib))
	return *lib
}

func doRequest(t *testing.T, srv *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}
