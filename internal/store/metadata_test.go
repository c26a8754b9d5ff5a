package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetadataStore(t *testing.T) MetadataStore {
	t.Helper()
	s, err := NewSQLiteMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleLibrary(id, ecosystem, name string) *Library {
	now := time.Now().UTC()
	return &Library{
		ID:         id,
		Name:       name,
		Context7ID: "/" + ecosystem + "/" + name,
		Language:   "javascript",
		Ecosystem:  ecosystem,
		Status:     LibraryStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestMetadataStore_UpsertAndGetLibrary(t *testing.T) {
	// Given: an empty metadata store
	s := newTestMetadataStore(t)
	ctx := context.Background()
	lib := sampleLibrary("lib-npm-react-abcd", "npm", "react")

	// When: upserting then fetching the library
	require.NoError(t, s.UpsertLibrary(ctx, lib))
	got, err := s.GetLibrary(ctx, lib.ID)

	// Then: the stored record round-trips
	require.NoError(t, err)
	assert.Equal(t, lib.Name, got.Name)
	assert.Equal(t, lib.Context7ID, got.Context7ID)
}

func TestMetadataStore_GetLibrary_NotFound(t *testing.T) {
	// Given: an empty store
	s := newTestMetadataStore(t)

	// When: fetching a library that was never created
	_, err := s.GetLibrary(context.Background(), "does-not-exist")

	// Then: ErrNotFound is returned
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMetadataStore_UpsertLibrary_DuplicateEcosystemName(t *testing.T) {
	// Given: a library already stored under (npm, react)
	s := newTestMetadataStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertLibrary(ctx, sampleLibrary("lib-1", "npm", "react")))

	// When: upserting a second library with the same (ecosystem, name) but a new id
	err := s.UpsertLibrary(ctx, sampleLibrary("lib-2", "npm", "react"))

	// Then: the unique constraint surfaces as ErrDuplicateLibrary
	assert.ErrorIs(t, err, ErrDuplicateLibrary)
}

func TestMetadataStore_ListLibraries_FiltersByEcosystem(t *testing.T) {
	// Given: libraries in two ecosystems
	s := newTestMetadataStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertLibrary(ctx, sampleLibrary("lib-1", "npm", "react")))
	require.NoError(t, s.UpsertLibrary(ctx, sampleLibrary("lib-2", "pypi", "flask")))

	// When: listing with an ecosystem filter
	results, err := s.ListLibraries(ctx, LibraryFilter{Ecosystem: "npm"}, 0, 0)

	// Then: only the matching ecosystem's library is returned
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "react", results[0].Name)
}

func TestMetadataStore_DeleteLibrary_BlockedWhileChunksReference(t *testing.T) {
	// Given: a library with one chunk
	s := newTestMetadataStore(t)
	ctx := context.Background()
	lib := sampleLibrary("lib-1", "npm", "react")
	require.NoError(t, s.UpsertLibrary(ctx, lib))
	require.NoError(t, s.AppendChunks(ctx, []*Chunk{
		{ID: "c1", DocumentID: "d1", LibraryID: lib.ID, Text: "hello", ChunkTotal: 1, CreatedAt: time.Now()},
	}))

	// When: attempting to delete the library
	err := s.DeleteLibrary(ctx, lib.ID)

	// Then: deletion is refused
	assert.ErrorIs(t, err, ErrLibraryInUse)

	// And: after the chunk is gone, deletion succeeds
	_, delErr := s.DeleteChunksWhere(ctx, ChunkFilter{LibraryID: lib.ID})
	require.NoError(t, delErr)
	assert.NoError(t, s.DeleteLibrary(ctx, lib.ID))
}

func TestMetadataStore_AppendChunks_IsAllOrNothing(t *testing.T) {
	// Given: a library to attach chunks to
	s := newTestMetadataStore(t)
	ctx := context.Background()
	lib := sampleLibrary("lib-1", "npm", "react")
	require.NoError(t, s.UpsertLibrary(ctx, lib))

	chunks := []*Chunk{
		{ID: "c1", DocumentID: "d1", LibraryID: lib.ID, Text: "one", ChunkIndex: 0, ChunkTotal: 2, CreatedAt: time.Now()},
		{ID: "c2", DocumentID: "d1", LibraryID: lib.ID, Text: "two", ChunkIndex: 1, ChunkTotal: 2, CreatedAt: time.Now()},
	}

	// When: appending both chunks
	require.NoError(t, s.AppendChunks(ctx, chunks))

	// Then: scanning by document_id returns both, in chunk_index order
	rows, err := s.ScanChunksWhere(ctx, ChunkFilter{DocumentID: "d1"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].ChunkIndex)
	assert.Equal(t, 1, rows[1].ChunkIndex)
}

func TestMetadataStore_DeleteChunksWhere_ByDocumentID(t *testing.T) {
	// Given: chunks from two different documents in one library
	s := newTestMetadataStore(t)
	ctx := context.Background()
	lib := sampleLibrary("lib-1", "npm", "react")
	require.NoError(t, s.UpsertLibrary(ctx, lib))
	require.NoError(t, s.AppendChunks(ctx, []*Chunk{
		{ID: "c1", DocumentID: "d1", LibraryID: lib.ID, Text: "a", ChunkTotal: 1, CreatedAt: time.Now()},
		{ID: "c2", DocumentID: "d2", LibraryID: lib.ID, Text: "b", ChunkTotal: 1, CreatedAt: time.Now()},
	}))

	// When: deleting chunks belonging to d1
	n, err := s.DeleteChunksWhere(ctx, ChunkFilter{DocumentID: "d1"})

	// Then: only d1's chunk is removed
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	remaining, err := s.ScanChunksWhere(ctx, ChunkFilter{LibraryID: lib.ID})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "d2", remaining[0].DocumentID)
}

func TestMetadataStore_StateRoundTrips(t *testing.T) {
	// Given: an empty store
	s := newTestMetadataStore(t)
	ctx := context.Background()

	// When: a key has never been set
	_, ok, err := s.GetState(ctx, "index_embedding_dimension")
	require.NoError(t, err)
	assert.False(t, ok)

	// Then: after SetState, GetState returns the stored value
	require.NoError(t, s.SetState(ctx, "index_embedding_dimension", "768"))
	value, ok, err := s.GetState(ctx, "index_embedding_dimension")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "768", value)
}
