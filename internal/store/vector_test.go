package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorIndex_Search_ReturnsNearestFirst(t *testing.T) {
	// Given: a 3-dimensional index with three well-separated vectors
	idx, err := NewVectorIndex(3, "cos")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	err = idx.Add(ctx, []string{"a", "b", "c"}, [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	})
	require.NoError(t, err)

	// When: searching near vector "a"
	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)

	// Then: "a" and its near neighbor "c" come back ahead of "b"
	require.NoError(t, err)
	require.Len(t, results, 2)
	ids := []string{results[0].ChunkID, results[1].ChunkID}
	assert.ElementsMatch(t, []string{"a", "c"}, ids)
}

func TestVectorIndex_Add_RejectsDimensionMismatch(t *testing.T) {
	// Given: a 3-dimensional index
	idx, err := NewVectorIndex(3, "cos")
	require.NoError(t, err)
	defer idx.Close()

	// When: adding a vector with the wrong width
	err = idx.Add(context.Background(), []string{"x"}, [][]float32{{1, 2}})

	// Then: a typed dimension mismatch error is returned
	var mismatch ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Got)
}

func TestVectorIndex_Delete_RemovesFromSearchResults(t *testing.T) {
	// Given: an index with two vectors
	idx, err := NewVectorIndex(2, "cos")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}))

	// When: deleting one of them
	require.NoError(t, idx.Delete(ctx, []string{"a"}))

	// Then: it no longer appears, and Contains/Count reflect the removal
	assert.False(t, idx.Contains("a"))
	assert.True(t, idx.Contains("b"))
	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a", r.ChunkID)
	}
}

func TestVectorIndex_Add_ReplacesExistingID(t *testing.T) {
	// Given: an index with one vector at ID "a"
	idx, err := NewVectorIndex(2, "cos")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}}))

	// When: re-adding "a" with a different vector
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{0, 1}}))

	// Then: the count stays at one (lazy delete orphans, doesn't duplicate)
	assert.Equal(t, 1, idx.Count())
}

func TestVectorIndex_SaveLoad_RoundTrips(t *testing.T) {
	// Given: a populated index persisted to a temp directory
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")

	idx, err := NewVectorIndex(2, "cos")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, idx.Save(path))
	require.NoError(t, idx.Close())

	// When: loading a fresh index from that path
	loaded, err := NewVectorIndex(2, "cos")
	require.NoError(t, err)
	defer loaded.Close()
	require.NoError(t, loaded.Load(path))

	// Then: the restored index reports the same vectors
	assert.Equal(t, 2, loaded.Count())
	assert.True(t, loaded.Contains("a"))
	assert.True(t, loaded.Contains("b"))
}

func TestReadVectorIndexDimensions_FreshPathReturnsZero(t *testing.T) {
	// Given: a path with no persisted index
	dir := t.TempDir()

	// When: reading its dimensions
	dim, err := ReadVectorIndexDimensions(filepath.Join(dir, "missing.hnsw"))

	// Then: zero is returned without error, signaling a fresh start
	require.NoError(t, err)
	assert.Equal(t, 0, dim)
	_, statErr := os.Stat(dir)
	require.NoError(t, statErr)
}
