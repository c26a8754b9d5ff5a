package mcp

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/docserver/docserver/internal/store"
)

// Context7Resolver implements query.UpstreamResolver: when ResolveLibraryID
// finds no local candidates and the caller opted into fetchIfMissing, it
// creates the "minimal library record" spec §4.D stage 3 calls for. It
// never calls out over the network itself — the only documented upstream
// wire contract (spec §6) is the llms.txt content mirror, consulted later
// by fetch-library-docs's ingestion step, not by resolution.
type Context7Resolver struct {
	defaultEcosystem string
}

// NewContext7Resolver builds a resolver that stamps defaultEcosystem on
// every minimal record it creates (the service has no way to discover a
// library's real ecosystem from its name alone without a resolve-by-name
// upstream endpoint, which spec §6 doesn't define).
func NewContext7Resolver(defaultEcosystem string) *Context7Resolver {
	if defaultEcosystem == "" {
		defaultEcosystem = "npm"
	}
	return &Context7Resolver{defaultEcosystem: defaultEcosystem}
}

var librarySlug = regexp.MustCompile(`[^a-z0-9]+`)

// ResolveLibrary builds a minimal library record for a name with no local
// match. It performs no I/O; actual content arrives later when
// fetch-library-docs ingests the upstream llms.txt mirror.
func (r *Context7Resolver) ResolveLibrary(_ context.Context, name string) (*store.Library, error) {
	slug := strings.Trim(librarySlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-"), "-")
	now := time.Now().UTC()
	return &store.Library{
		ID:         "lib-" + slug,
		Name:       name,
		Ecosystem:  r.defaultEcosystem,
		Context7ID: fmt.Sprintf("/%s/%s", r.defaultEcosystem, slug),
		Status:     store.LibraryStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// llmsTxtURL builds the upstream content-mirror URL spec §6 documents:
// "https://<host>/<context7_id>/llms.txt?topic=<query>&tokens=<N>".
// baseURL already carries the scheme and host (UPSTREAM_CONTEXT7_URL).
func llmsTxtURL(baseURL, context7ID, topic string) string {
	trimmedBase := strings.TrimRight(baseURL, "/")
	path := strings.TrimLeft(context7ID, "/")
	u := fmt.Sprintf("%s/%s/llms.txt", trimmedBase, path)

	q := url.Values{}
	if topic != "" {
		q.Set("topic", topic)
	}
	q.Set("tokens", "5000")
	return u + "?" + q.Encode()
}
