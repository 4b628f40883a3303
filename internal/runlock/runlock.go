// Package runlock enforces "one submission run at a time" with a file lock,
// so a second invocation cannot start a concurrent run for the same user
// while one is in flight.
package runlock

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"entryway/internal/config"
)

// ErrBusy indicates another run already holds the lock.
var ErrBusy = errors.New("another submission run is already in progress")

// Lock guards a single in-flight run.
type Lock struct {
	path string
	lock *flock.Flock
}

// New builds the lock under the configured data directory.
func New(cfg *config.Config) *Lock {
	path := filepath.Join(cfg.Paths.DataDir, "run.lock")
	return &Lock{path: path, lock: flock.New(path)}
}

// Acquire takes the lock without blocking. ErrBusy means a run is in flight.
func (l *Lock) Acquire() error {
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return ErrBusy
	}
	return nil
}

// Release frees the lock.
func (l *Lock) Release() error {
	return l.lock.Unlock()
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}
