// Package fetch acquires document content from a URL and normalizes it to
// markdown before it reaches the chunker.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// DefaultTimeout bounds a single fetch when the caller doesn't override it.
const DefaultTimeout = 30 * time.Second

// DefaultMaxContentBytes caps a fetched response body (10 MiB).
const DefaultMaxContentBytes = 10 << 20

// ErrContentTooLarge indicates the response body exceeded MaxContentBytes.
var ErrContentTooLarge = errors.New("fetch: content exceeds maximum size")

// SourceType classifies fetched content for storage and rendering.
type SourceType string

const (
	SourceTypeMarkdown SourceType = "markdown"
	SourceTypeHTML     SourceType = "html"
	SourceTypeText     SourceType = "text"
	SourceTypeUnknown  SourceType = "unknown"
)

// Config bounds a Fetcher's network behavior.
type Config struct {
	Timeout        time.Duration
	MaxContentBytes int64
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxContentBytes <= 0 {
		c.MaxContentBytes = DefaultMaxContentBytes
	}
	return c
}

// Result is a fetched document already normalized to markdown.
type Result struct {
	Markdown   string
	SourceType SourceType
	SourceURL  string
}

// Fetcher retrieves a URL and normalizes its body to markdown.
type Fetcher struct {
	client *http.Client
	cfg    Config
}

// New builds a Fetcher with the given Config (zero-value fields default).
func New(cfg Config) *Fetcher {
	cfg = cfg.withDefaults()
	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

// Fetch retrieves url, determines its source type from Content-Type (falling
// back to the URL's file extension, then to SourceTypeUnknown), and
// normalizes HTML bodies to markdown via html-to-markdown. Non-HTML bodies
// pass through unchanged except for BOM stripping and UTF-8 repair.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: request %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: %s returned status %d", url, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, f.cfg.MaxContentBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}
	if int64(len(body)) > f.cfg.MaxContentBytes {
		return nil, ErrContentTooLarge
	}

	sourceType := detectSourceType(resp.Header.Get("Content-Type"), url)
	text := Normalize(string(body))

	if sourceType == SourceTypeHTML {
		converter := md.NewConverter(url, true, nil)
		converted, err := converter.ConvertString(text)
		if err != nil {
			return nil, fmt.Errorf("fetch: convert html to markdown: %w", err)
		}
		text = converted
		sourceType = SourceTypeMarkdown
	}

	return &Result{Markdown: text, SourceType: sourceType, SourceURL: url}, nil
}

// Normalize strips a leading UTF-8 BOM and repairs invalid UTF-8 by
// dropping each byte that does not decode, so downstream chunking never
// trips over malformed input. A U+FFFD already present in valid input is
// kept.
func Normalize(body string) string {
	body = strings.TrimPrefix(body, "\xef\xbb\xbf")
	if utf8.ValidString(body) {
		return body
	}
	var b strings.Builder
	b.Grow(len(body))
	for i, r := range body {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(body[i:])
			if size == 1 {
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// detectSourceType classifies content by Content-Type header first, falling
// back to the URL's file extension, and finally to SourceTypeUnknown.
func detectSourceType(contentType, url string) SourceType {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			switch {
			case mediaType == "text/html" || mediaType == "application/xhtml+xml":
				return SourceTypeHTML
			case mediaType == "text/markdown":
				return SourceTypeMarkdown
			case mediaType == "text/plain":
				return SourceTypeText
			}
		}
	}

	switch strings.ToLower(path.Ext(url)) {
	case ".md", ".markdown":
		return SourceTypeMarkdown
	case ".html", ".htm":
		return SourceTypeHTML
	case ".txt":
		return SourceTypeText
	}

	return SourceTypeUnknown
}
