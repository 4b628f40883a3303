// Package session supplies the credential provider abstraction and the guard
// that runs best-effort refreshes and hard identity resolution for
// identity-scoped writes.
package session

import (
	"context"
	"log/slog"
	"time"

	"entryway/internal/logging"
	"entryway/internal/services"
)

// Identity is the resolved current user.
type Identity struct {
	UserID      string
	DisplayName string
}

// Provider is the session abstraction the pipeline consumes. Implementations
// own token storage and renewal; the pipeline never mutates session state
// beyond asking for a refresh.
type Provider interface {
	Refresh(ctx context.Context) error
	Identity(ctx context.Context) (Identity, error)
	Token(ctx context.Context) (string, error)
}

// Guard wraps a Provider with the pipeline's credential-freshness semantics.
type Guard struct {
	provider       Provider
	refreshTimeout time.Duration
	logger         *slog.Logger
}

// NewGuard constructs a session guard. refreshTimeoutSeconds bounds the
// best-effort refresh; zero disables the bound.
func NewGuard(provider Provider, refreshTimeoutSeconds int, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Guard{
		provider:       provider,
		refreshTimeout: time.Duration(refreshTimeoutSeconds) * time.Second,
		logger:         logger,
	}
}

// RefreshBestEffort attempts a credential refresh bounded by the configured
// timeout. Failure or timeout does not abort the run; the subsequent
// authenticated call fails naturally if the credential is truly invalid.
func (g *Guard) RefreshBestEffort(ctx context.Context) {
	if g == nil || g.provider == nil {
		return
	}
	if g.refreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.refreshTimeout)
		defer cancel()
	}
	if err := g.provider.Refresh(ctx); err != nil {
		logging.WithContext(ctx, g.logger).Warn(
			"session refresh failed; proceeding with the current credential",
			logging.Error(err),
			logging.String(logging.FieldEventType, "session_refresh_failed"),
		)
	}
}

// ResolveIdentity re-resolves the current user. Inability to resolve it is a
// hard stop classified auth_expired, distinct from a mid-upload 401.
func (g *Guard) ResolveIdentity(ctx context.Context) (Identity, error) {
	if g == nil || g.provider == nil {
		return Identity{}, services.Wrap(services.ErrAuthExpired, "session", "identity", "no session provider configured", nil)
	}
	identity, err := g.provider.Identity(ctx)
	if err != nil {
		return Identity{}, services.Wrap(services.ErrAuthExpired, "session", "identity", "could not resolve the current user", err)
	}
	if identity.UserID == "" {
		return Identity{}, services.Wrap(services.ErrAuthExpired, "session", "identity", "session has no user", nil)
	}
	return identity, nil
}

// Token returns the current bearer credential.
func (g *Guard) Token(ctx context.Context) (string, error) {
	if g == nil || g.provider == nil {
		return "", services.Wrap(services.ErrAuthExpired, "session", "token", "no session provider configured", nil)
	}
	token, err := g.provider.Token(ctx)
	if err != nil {
		return "", services.Wrap(services.ErrAuthExpired, "session", "token", "could not read the session credential", err)
	}
	return token, nil
}
