package ports

import (
	"context"
	"time"

	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
)

// LockoutState is the current lockout envelope for a login key.
// It is cache-backed to avoid hot writes on every failed login.
type LockoutState struct {
	FailedCount int
	LockedUntil *time.Time
}

// LockoutStore handles short-lived brute-force protection state.
type LockoutStore interface {
	Get(ctx context.Context, key string) (LockoutState, error)
	RecordFailure(ctx context.Context, key string, now time.Time, threshold int, lockoutWindow time.Duration) (LockoutState, error)
	Clear(ctx context.Context, key string) error
}

// PendingTwoFactorStore holds pending second-factor sessions keyed by an opaque token.
// Entries expire with their TTL; nothing here is written to durable storage.
type PendingTwoFactorStore interface {
	Put(ctx context.Context, token string, session domain.PendingTwoFactorSession, ttl time.Duration) error
	// Get returns nil when the token is unknown or already expired.
	Get(ctx context.Context, token string) (*domain.PendingTwoFactorSession, error)
	// RecordFailure increments the attempt counter; it returns 0 when the session is gone.
	RecordFailure(ctx context.Context, token string) (int, error)
	// Consume removes the session and reports true only to the caller that removed it.
	Consume(ctx context.Context, token string) (bool, error)
}
