package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_HTML_ConvertsToMarkdown(t *testing.T) {
	// Given a server serving an HTML page
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<h1>Title</h1><p>Some <strong>text</strong>.</p>"))
	}))
	defer srv.Close()
	f := New(Config{})

	// When fetching it
	result, err := f.Fetch(context.Background(), srv.URL)

	// Then the body is converted to markdown and tagged accordingly
	require.NoError(t, err)
	assert.Equal(t, SourceTypeMarkdown, result.SourceType)
	assert.Contains(t, result.Markdown, "Title")
	assert.Contains(t, result.Markdown, "text")
}

func TestFetch_PlainMarkdown_PassesThroughUnchanged(t *testing.T) {
	// Given a server serving raw markdown
	const body = "# Heading\n\nSome body text.\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/markdown")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	f := New(Config{})

	// When fetching it
	result, err := f.Fetch(context.Background(), srv.URL)

	// Then the markdown passes through unchanged
	require.NoError(t, err)
	assert.Equal(t, SourceTypeMarkdown, result.SourceType)
	assert.Equal(t, body, result.Markdown)
}

func TestFetch_FallsBackToURLExtensionWhenContentTypeMissing(t *testing.T) {
	// Given a server that serves markdown without a Content-Type header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# doc"))
	}))
	defer srv.Close()
	f := New(Config{})

	// When fetching a URL ending in .md
	result, err := f.Fetch(context.Background(), srv.URL+"/readme.md")

	// Then the extension drives source type detection
	require.NoError(t, err)
	assert.Equal(t, SourceTypeMarkdown, result.SourceType)
}

func TestFetch_OversizedBody_ReturnsErrContentTooLarge(t *testing.T) {
	// Given a server serving a body larger than the configured ceiling
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer srv.Close()
	f := New(Config{MaxContentBytes: 10})

	// When fetching it
	_, err := f.Fetch(context.Background(), srv.URL)

	// Then it's rejected as too large
	require.ErrorIs(t, err, ErrContentTooLarge)
}

func TestFetch_NonOKStatus_ReturnsError(t *testing.T) {
	// Given a server returning 404
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	f := New(Config{})

	// When fetching it
	_, err := f.Fetch(context.Background(), srv.URL)

	// Then it errors
	require.Error(t, err)
}

func TestNormalize_StripsLeadingBOM(t *testing.T) {
	// Given text with a leading UTF-8 BOM
	input := "\xef\xbb\xbf# Title\n"

	// When normalizing
	out := Normalize(input)

	// Then the BOM is gone but the rest survives
	assert.Equal(t, "# Title\n", out)
}

func TestNormalize_RepairsInvalidUTF8(t *testing.T) {
	// Given a string with an invalid UTF-8 byte sequence embedded
	input := "valid" + string([]byte{0xff, 0xfe}) + "text"

	// When normalizing
	out := Normalize(input)

	// Then the result is valid UTF-8 and the surrounding text is preserved
	assert.Contains(t, out, "valid")
	assert.Contains(t, out, "text")
}
