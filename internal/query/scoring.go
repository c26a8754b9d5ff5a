package query

import (
	"context"
	"strings"

	"github.com/docserver/docserver/internal/docerrors"
	"github.com/docserver/docserver/internal/store"
)

const (
	weightNameProximity = 0.5
	weightQueryRelevance = 0.3
	weightPopularity     = 0.2
)

// scoreCandidates computes the weighted formula for every candidate:
// name proximity (spec §4.E.2 step 4's exact/alias/substring tiers, 0.5),
// query relevance (cosine similarity between the caller's disambiguation
// query and the library's profile embedding, 0.3), and popularity scaled to
// a fixed /100 range (0.2).
func (e *Engine) scoreCandidates(ctx context.Context, normalizedName, query string, candidates []*store.Library) ([]LibraryCandidate, error) {
	profiles := make([]string, len(candidates))
	for i, c := range candidates {
		profiles[i] = libraryProfile(c)
	}

	vectors, err := e.embedder.EmbedBatch(ctx, append([]string{query}, profiles...))
	if err != nil {
		return nil, docerrors.UpstreamUnavailable("failed to embed candidate profiles", err)
	}
	queryVector, profileVectors := vectors[0], vectors[1:]

	out := make([]LibraryCandidate, len(candidates))
	for i, c := range candidates {
		proximity := nameProximity(normalizedName, c)
		queryRelevance := cosineSimilarity(queryVector, profileVectors[i])
		popularity := popularityScore(c.PopularityScore)

		score := weightNameProximity*proximity + weightQueryRelevance*queryRelevance + weightPopularity*popularity
		out[i] = LibraryCandidate{
			LibraryID:  c.ID,
			Name:       c.Name,
			Context7ID: c.Context7ID,
			Score:      score,
		}
	}
	return out, nil
}

// popularityScore implements spec §4.E.2 step 4's popularity term: a fixed
// /100 scale clamped to [0, 1], not a pool-relative rank, so a library's
// score doesn't shift depending on who else happened to be a candidate.
func popularityScore(popularity int) float64 {
	score := float64(popularity) / 100.0
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// libraryProfile concatenates the text an embedder should judge relevance
// against: name, short description and keywords.
func libraryProfile(lib *store.Library) string {
	parts := []string{lib.Name, lib.ShortDescription}
	parts = append(parts, lib.Keywords...)
	return strings.Join(parts, " ")
}

// nameProximity implements spec §4.E.2 step 4's name-proximity tiers:
// an exact normalized-name match scores 1.0, a match against any of the
// library's aliases scores 0.9, and a substring match against the name or
// keywords scores by how much of the longer string the shorter one covers.
func nameProximity(normalizedQuery string, lib *store.Library) float64 {
	if normalizeName(lib.Name) == normalizedQuery {
		return 1.0
	}
	for _, alias := range lib.Aliases {
		if normalizeName(alias) == normalizedQuery {
			return 0.9
		}
	}
	if ratio, ok := substringCoverage(normalizedQuery, normalizeName(lib.Name)); ok {
		return ratio
	}
	for _, keyword := range lib.Keywords {
		if ratio, ok := substringCoverage(normalizedQuery, normalizeName(keyword)); ok {
			return ratio
		}
	}
	return 0
}

// substringCoverage reports whether one of query/target is a substring of
// the other, scaled by the coverage ratio of the shorter string's length
// over the longer string's length (an exact-length substring scores 1.0,
// a short fragment inside a long name scores close to 0).
func substringCoverage(query, target string) (float64, bool) {
	if query == "" || target == "" {
		return 0, false
	}
	if !strings.Contains(target, query) && !strings.Contains(query, target) {
		return 0, false
	}
	shorter, longer := len(query), len(target)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	return float64(shorter) / float64(longer), true
}

// cosineSimilarity assumes both vectors are already unit-normalized (every
// embed.Embedder implementation returns normalized vectors), so the
// similarity is a plain dot product.
func cosineSimilarity(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
