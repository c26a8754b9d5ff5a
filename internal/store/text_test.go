package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextIndex_Search_MatchesByNameAliasAndKeyword(t *testing.T) {
	// Given: a few libraries indexed by name, alias and keyword
	idx, err := NewBleveTextIndex("")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.IndexLibrary(ctx, &Library{ID: "lib-react", Name: "react"}))
	require.NoError(t, idx.IndexLibrary(ctx, &Library{ID: "lib-preact", Name: "preact", Aliases: []string{"react-like"}}))
	require.NoError(t, idx.IndexLibrary(ctx, &Library{ID: "lib-vue", Name: "vue", Keywords: []string{"frontend", "reactive"}}))

	// When: searching for "react"
	results, err := idx.Search(ctx, "react", 10)

	// Then: the exact name match ranks first, and the alias/keyword hits are included
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "lib-react", results[0].LibraryID)

	var ids []string
	for _, r := range results {
		ids = append(ids, r.LibraryID)
	}
	assert.Contains(t, ids, "lib-preact")
}

func TestTextIndex_DeleteLibrary_RemovesFromResults(t *testing.T) {
	// Given: one indexed library
	idx, err := NewBleveTextIndex("")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.IndexLibrary(ctx, &Library{ID: "lib-react", Name: "react"}))

	// When: deleting it
	require.NoError(t, idx.DeleteLibrary(ctx, "lib-react"))

	// Then: it no longer appears in search results
	results, err := idx.Search(ctx, "react", 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "lib-react", r.LibraryID)
	}
}

func TestTextIndex_Search_EmptyQueryReturnsNoResults(t *testing.T) {
	// Given: an index with one library
	idx, err := NewBleveTextIndex("")
	require.NoError(t, err)
	defer idx.Close()
	require.NoError(t, idx.IndexLibrary(context.Background(), &Library{ID: "lib-react", Name: "react"}))

	// When: searching with a blank query
	results, err := idx.Search(context.Background(), "   ", 10)

	// Then: no results are returned, and no error is raised
	require.NoError(t, err)
	assert.Empty(t, results)
}
