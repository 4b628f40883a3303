package runlock_test

import (
	"errors"
	"testing"

	"entryway/internal/config"
	"entryway/internal/runlock"
)

func TestAcquireRefusesSecondHolder(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()

	first := runlock.New(&cfg)
	if err := first.Acquire(); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer first.Release()

	second := runlock.New(&cfg)
	if err := second.Acquire(); !errors.Is(err, runlock.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()

	lock := runlock.New(&cfg)
	if err := lock.Acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := lock.Acquire(); err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	_ = lock.Release()
}
