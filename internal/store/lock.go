package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// dirLock is an exclusive cross-process lock over a store's base
// directory, preventing two processes from opening the same on-disk
// store (and corrupting the HNSW graph or SQLite file) concurrently.
type dirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newDirLock(baseDir string) *dirLock {
	lockPath := filepath.Join(baseDir, ".store.lock")
	return &dirLock{path: lockPath, flock: flock.New(lockPath)}
}

// tryLock acquires the lock without blocking, returning false if another
// process already holds it.
func (l *dirLock) tryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("store: create lock directory: %w", err)
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("store: acquire lock %s: %w", l.path, err)
	}
	l.locked = ok
	return ok, nil
}

func (l *dirLock) unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	return l.flock.Unlock()
}
