package gc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docserver/docserver/internal/embed"
	"github.com/docserver/docserver/internal/store"
)

type fakeSessionPruner struct {
	prunedOnCall []time.Duration
	toReturn     int
}

func (f *fakeSessionPruner) PruneIdleSessions(olderThan time.Duration) int {
	f.prunedOnCall = append(f.prunedOnCall, olderThan)
	return f.toReturn
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenInMemory(embed.StaticDimensions, "cos")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSweep_DeletesPendingChunksOlderThanTTLOnly(t *testing.T) {
	// Given: one stale pending chunk, one fresh pending chunk, one active chunk
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertLibrary(ctx, &store.Library{ID: "lib-1", Name: "lib1", Context7ID: "/npm/lib1"}))

	vector := make([]float32, embed.StaticDimensions)
	require.NoError(t, s.AppendChunks(ctx, []*store.Chunk{
		{ID: "c-stale", DocumentID: "d-1", LibraryID: "lib-1", Text: "stale", Vector: vector, Status: store.ChunkStatusPending, CreatedAt: time.Now().Add(-2 * time.Hour)},
		{ID: "c-fresh", DocumentID: "d-2", LibraryID: "lib-1", Text: "fresh", Vector: vector, Status: store.ChunkStatusPending, CreatedAt: time.Now()},
		{ID: "c-active", DocumentID: "d-3", LibraryID: "lib-1", Text: "active", Vector: vector, Status: store.ChunkStatusActive, CreatedAt: time.Now().Add(-2 * time.Hour)},
	}))

	sweeper := New(Config{Store: s})

	// When: sweeping
	result := sweeper.RunNow(ctx)

	// Then: only the stale pending chunk is deleted
	assert.Equal(t, 1, result.ChunksDeleted)
	assert.NoError(t, result.Err)

	remaining, err := s.ScanChunksWhere(ctx, store.ChunkFilter{LibraryID: "lib-1"})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestSweep_PrunesSessionsViaConfiguredPruner(t *testing.T) {
	s := newTestStore(t)
	pruner := &fakeSessionPruner{toReturn: 3}
	sweeper := New(Config{Store: s, Sessions: pruner})

	result := sweeper.RunNow(context.Background())

	assert.Equal(t, 3, result.SessionsPruned)
	require.Len(t, pruner.prunedOnCall, 1)
	assert.Equal(t, SessionIdleTTL, pruner.prunedOnCall[0])
}

func TestSweep_NoSessionPruner_SkipsSessionSweepWithoutError(t *testing.T) {
	s := newTestStore(t)
	sweeper := New(Config{Store: s})

	result := sweeper.RunNow(context.Background())

	assert.Equal(t, 0, result.SessionsPruned)
	assert.NoError(t, result.Err)
}

func TestStartStop_RegistersAndStopsCronWithoutError(t *testing.T) {
	s := newTestStore(t)
	sweeper := New(Config{Store: s})

	require.NoError(t, sweeper.Start("0 0 0 31 2 *")) // never fires (Feb 31)
	sweeper.Stop()
}
