// Package quota implements the advisory pre-flight check limiting
// submissions per user per contest.
//
// The check here is a UX optimization only: the registration stage's
// server-side 409 mapping is the sole correctness guarantee under concurrent
// submission attempts (two clients can both pass this guard).
package quota

import (
	"context"
	"fmt"
	"log/slog"

	"entryway/internal/logging"
	"entryway/internal/services"
)

// Counter is the read-only submission count query the guard consumes.
type Counter interface {
	CountSubmissions(ctx context.Context, userID, contestID string) (int, error)
}

// Guard refuses to start a run when the caller is at or above the contest's
// per-user maximum.
type Guard struct {
	counter Counter
	logger  *slog.Logger
}

// NewGuard constructs a quota guard.
func NewGuard(counter Counter, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Guard{counter: counter, logger: logger}
}

// Check compares the caller's existing submission count against maxPerUser.
// At or above the maximum it returns a duplicate classification before any
// upload endpoint is touched. A failed count query is logged and waved
// through: the guard is advisory, and the registration stage still enforces
// the limit authoritatively.
func (g *Guard) Check(ctx context.Context, userID, contestID string, maxPerUser int) error {
	if maxPerUser <= 0 {
		return nil
	}
	if g == nil || g.counter == nil {
		return nil
	}

	count, err := g.counter.CountSubmissions(ctx, userID, contestID)
	if err != nil {
		logging.WithContext(ctx, g.logger).Warn(
			"quota pre-check unavailable; deferring to the server-side check",
			logging.Error(err),
			logging.String(logging.FieldEventType, "quota_check_failed"),
		)
		return nil
	}
	if count >= maxPerUser {
		return services.Wrap(services.ErrDuplicate, "preparing", "quota",
			fmt.Sprintf("you already have %d of %d allowed submissions for this contest", count, maxPerUser), nil)
	}
	return nil
}
