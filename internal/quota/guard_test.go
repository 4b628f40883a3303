package quota_test

import (
	"context"
	"errors"
	"testing"

	"entryway/internal/quota"
	"entryway/internal/services"
)

type fakeCounter struct {
	count int
	err   error
	calls int
}

func (f *fakeCounter) CountSubmissions(ctx context.Context, userID, contestID string) (int, error) {
	f.calls++
	return f.count, f.err
}

func TestCheckUnderLimitPasses(t *testing.T) {
	guard := quota.NewGuard(&fakeCounter{count: 0}, nil)
	if err := guard.Check(context.Background(), "user-9", "contest-1", 1); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
}

func TestCheckAtLimitIsDuplicate(t *testing.T) {
	guard := quota.NewGuard(&fakeCounter{count: 1}, nil)
	err := guard.Check(context.Background(), "user-9", "contest-1", 1)
	if !errors.Is(err, services.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestCheckAboveLimitIsDuplicate(t *testing.T) {
	guard := quota.NewGuard(&fakeCounter{count: 3}, nil)
	err := guard.Check(context.Background(), "user-9", "contest-1", 2)
	if !errors.Is(err, services.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestCheckNoLimitSkipsQuery(t *testing.T) {
	counter := &fakeCounter{count: 99}
	guard := quota.NewGuard(counter, nil)
	if err := guard.Check(context.Background(), "user-9", "contest-1", 0); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if counter.calls != 0 {
		t.Fatalf("expected no count query, got %d", counter.calls)
	}
}

func TestCheckQueryFailureIsAdvisory(t *testing.T) {
	guard := quota.NewGuard(&fakeCounter{err: errors.New("count backend down")}, nil)
	if err := guard.Check(context.Background(), "user-9", "contest-1", 1); err != nil {
		t.Fatalf("advisory check must not fail the run: %v", err)
	}
}
