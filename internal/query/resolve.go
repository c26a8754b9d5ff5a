package query

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/docserver/docserver/internal/docerrors"
	"github.com/docserver/docserver/internal/store"
)

// tieThreshold is how close a candidate's score must be to the top score
// to surface as an alternative (spec §4.E.2).
const tieThreshold = 0.02

// maxAlternatives bounds how many tied candidates ResolveLibraryID returns
// alongside the best match.
const maxAlternatives = 5

const candidatePoolSize = 20

// ResolveLibraryID implements spec §4.E.2: normalize name, gather
// candidates via two routes (exact name, alias/keyword text search), and
// score them by a weighted formula (name proximity 0.5, query relevance
// 0.3, popularity 0.2). query is the caller's actual question, used only
// as the disambiguation signal for query relevance — it plays no part in
// candidate gathering or name proximity. When no local candidate exists
// and fetchIfMissing is set, it delegates to the configured UpstreamResolver.
func (e *Engine) ResolveLibraryID(ctx context.Context, name, query string, fetchIfMissing bool) (*ResolveResult, error) {
	normalized := normalizeName(name)
	if normalized == "" {
		return nil, docerrors.Validation("library name is required", nil)
	}
	if strings.TrimSpace(query) == "" {
		query = normalized
	}

	candidates, err := e.gatherCandidates(ctx, normalized)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		if fetchIfMissing && e.upstream != nil {
			lib, err := e.upstream.ResolveLibrary(ctx, normalized)
			if err != nil {
				return nil, docerrors.UpstreamUnavailable("upstream library lookup failed", err)
			}
			if err := e.store.UpsertLibrary(ctx, lib); err != nil {
				return nil, docerrors.Store("failed to persist resolved library", err)
			}
			candidates = []*store.Library{lib}
		} else {
			return nil, docerrors.NotFound("no library matches "+name, nil)
		}
	}

	scored, err := e.scoreCandidates(ctx, normalized, query, candidates)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	best := scored[0]
	var alternatives []LibraryCandidate
	for _, c := range scored[1:] {
		if best.Score-c.Score > tieThreshold {
			break
		}
		alternatives = append(alternatives, c)
		if len(alternatives) == maxAlternatives {
			break
		}
	}

	return &ResolveResult{Best: best, Alternatives: alternatives}, nil
}

// gatherCandidates runs the exact-name and alias/substring passes and
// dedupes by library ID, preserving the exact-name matches first.
func (e *Engine) gatherCandidates(ctx context.Context, normalized string) ([]*store.Library, error) {
	seen := make(map[string]bool)
	var out []*store.Library

	exact, err := e.store.GetLibrariesByName(ctx, normalized)
	if err != nil {
		return nil, docerrors.Store("exact-name lookup failed", err)
	}
	for _, lib := range exact {
		if !seen[lib.ID] {
			seen[lib.ID] = true
			out = append(out, lib)
		}
	}

	hits, err := e.store.SearchLibrariesByText(ctx, normalized, candidatePoolSize)
	if err != nil {
		return nil, docerrors.Store("text search failed", err)
	}
	for _, hit := range hits {
		if seen[hit.LibraryID] {
			continue
		}
		lib, err := e.store.GetLibrary(ctx, hit.LibraryID)
		if err != nil {
			continue // text index referenced a library metadata no longer has
		}
		seen[hit.LibraryID] = true
		out = append(out, lib)
	}

	return out, nil
}

// normalizeName implements spec §4.E.2 step 1: lowercase, collapse any run
// of whitespace, join the remaining words with a hyphen, then strip
// surrounding punctuation so "  Next.js  " and "Next JS" both settle near
// the same stored form.
func normalizeName(name string) string {
	joined := strings.Join(strings.Fields(strings.ToLower(name)), "-")
	return strings.TrimFunc(joined, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}
