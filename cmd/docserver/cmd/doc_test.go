package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestLibrary registers a library under dir's store and returns its
// generated lib-<uuid> id, parsed out of create-library's "created library
// <id> (<context7-id>)" confirmation line.
func createTestLibrary(t *testing.T, dir, name string) string {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"create-library", "--config-dir", dir, "--name", name})
	require.NoError(t, cmd.Execute())

	fields := strings.Fields(buf.String())
	require.GreaterOrEqual(t, len(fields), 3, "unexpected create-library output: %s", buf.String())
	return fields[2]
}

func TestUploadDocCmd_RequiresLibraryIDAndFile(t *testing.T) {
	// Given: upload-doc with neither flag set
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"upload-doc"})

	// When: executing it
	err := root.Execute()

	// Then: it should fail before touching any store
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--library-id and --file are required")
}

func TestUploadDocCmd_IngestsFileContent(t *testing.T) {
	// Given: a temp config dir with a library already registered, and a
	// markdown file to ingest
	tmpDir := t.TempDir()
	writeTestConfig(t, tmpDir)
	libID := createTestLibrary(t, tmpDir, "react")

	docPath := filepath.Join(tmpDir, "react.md")
	content := "# React\n\nReact is a library for building user interfaces.\n"
	require.NoError(t, os.WriteFile(docPath, []byte(content), 0o644))

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetArgs([]string{
		"upload-doc",
		"--config-dir", tmpDir,
		"--library-id", libID,
		"--title", "React",
		"--file", docPath,
	})

	// When: running upload-doc
	err := root.Execute()

	// Then: it should report the ingested document and its chunk count
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "ingested document")
	assert.Contains(t, buf.String(), "chunks")
}

func TestFetchDocCmd_RequiresLibraryIDAndURL(t *testing.T) {
	// Given: fetch-doc with neither flag set
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"fetch-doc"})

	// When: executing it
	err := root.Execute()

	// Then: it should fail before making any network call
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--library-id and --url are required")
}

func TestFetchDocCmd_IngestsFetchedURL(t *testing.T) {
	// Given: an HTTP server serving a small markdown page, and a temp config dir
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/markdown")
		_, _ = w.Write([]byte("# FastAPI\n\nFastAPI is a modern web framework.\n"))
	}))
	defer server.Close()

	tmpDir := t.TempDir()
	writeTestConfig(t, tmpDir)
	libID := createTestLibrary(t, tmpDir, "fastapi")

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetArgs([]string{
		"fetch-doc",
		"--config-dir", tmpDir,
		"--library-id", libID,
		"--url", server.URL,
	})

	// When: running fetch-doc against the test server
	err := root.Execute()

	// Then: it should report the ingested document and the fetched URL
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "ingested document")
	assert.Contains(t, output, server.URL)
}
