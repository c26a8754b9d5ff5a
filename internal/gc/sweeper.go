// Package gc runs the periodic background sweeps documented in SPEC_FULL
// §4.D/§4.F.2: clearing stale provisional chunk rows an interrupted
// ingestion left behind, and pruning idle MCP sessions. Both run on the
// same cron schedule, grounded on the teacher's corpus neighbor
// ternarybob-quaero's robfig/cron-backed processing scheduler.
package gc

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/docserver/docserver/internal/store"
)

// PendingChunkTTL is how long a chunk may sit in "pending" status before
// the sweep considers its ingestion abandoned and deletes it (SPEC_FULL
// §4.D stage 7: "status = 'pending' AND created_at < now - 1h").
const PendingChunkTTL = time.Hour

// SessionIdleTTL is how long an MCP session may sit unused before the
// sweep evicts it (SPEC_FULL §4.F.2).
const SessionIdleTTL = time.Hour

// DefaultSchedule runs the sweep every 15 minutes.
const DefaultSchedule = "0 */15 * * * *"

// SessionPruner is implemented by internal/mcp's session table; kept as an
// interface here so internal/gc doesn't import internal/mcp.
type SessionPruner interface {
	PruneIdleSessions(olderThan time.Duration) int
}

// Sweeper owns a cron schedule that periodically deletes stale pending
// chunks and idle MCP sessions.
type Sweeper struct {
	store    *store.Store
	sessions SessionPruner
	cron     *cron.Cron
	now      func() time.Time
}

// Config wires a Sweeper's collaborators. Sessions is optional; when nil,
// only the pending-chunk sweep runs.
type Config struct {
	Store    *store.Store
	Sessions SessionPruner
}

// New builds a Sweeper. It does not start the cron schedule; call Start.
func New(cfg Config) *Sweeper {
	return &Sweeper{
		store:    cfg.Store,
		sessions: cfg.Sessions,
		cron:     cron.New(cron.WithSeconds()),
		now:      time.Now,
	}
}

// Start registers the sweep on schedule and starts the cron scheduler in
// its own goroutine. An empty schedule falls back to DefaultSchedule.
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := s.cron.AddFunc(schedule, s.runSweep); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("gc: sweeper started", slog.String("schedule", schedule))
	return nil
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("gc: sweeper stopped")
}

// RunNow runs one sweep immediately and returns its result.
func (s *Sweeper) RunNow(ctx context.Context) SweepResult {
	return s.sweep(ctx)
}

func (s *Sweeper) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	s.sweep(ctx)
}

// SweepResult reports what one sweep pass cleaned up.
type SweepResult struct {
	ChunksDeleted  int
	SessionsPruned int
	Err            error
}

func (s *Sweeper) sweep(ctx context.Context) SweepResult {
	var result SweepResult

	deleted, err := s.store.DeleteChunksWhere(ctx, store.ChunkFilter{
		Status:        store.ChunkStatusPending,
		CreatedBefore: s.now().Add(-PendingChunkTTL),
	})
	if err != nil {
		slog.Error("gc: pending chunk sweep failed", slog.String("error", err.Error()))
		result.Err = err
	} else {
		result.ChunksDeleted = deleted
	}

	if s.sessions != nil {
		result.SessionsPruned = s.sessions.PruneIdleSessions(SessionIdleTTL)
	}

	slog.Info("gc: sweep completed",
		slog.Int("chunks_deleted", result.ChunksDeleted),
		slog.Int("sessions_pruned", result.SessionsPruned))
	return result
}
