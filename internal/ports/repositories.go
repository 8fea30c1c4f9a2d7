package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
)

// SecurityRecordRepository reads and mutates per-user security state.
// Every mutation is a single-row statement so fields change atomically per user.
type SecurityRecordRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (domain.UserSecurityRecord, error)
	// GetByLogin resolves an email or user name, case-insensitively.
	GetByLogin(ctx context.Context, identifier string) (domain.UserSecurityRecord, error)
	GetByEmail(ctx context.Context, email string) (domain.UserSecurityRecord, error)
	// SetTOTPSecretIfEmpty stores secret only when none exists and reports whether it won.
	SetTOTPSecretIfEmpty(ctx context.Context, userID uuid.UUID, secret string, updatedAt time.Time) (bool, error)
	ReplaceTOTPSecret(ctx context.Context, userID uuid.UUID, secret, securityStamp string, updatedAt time.Time) error
	SetTwoFactorEnabled(ctx context.Context, userID uuid.UUID, enabled bool, updatedAt time.Time) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash, securityStamp string, updatedAt time.Time) error
}

// RecoveryCodeRepository stores hashed single-use recovery codes.
type RecoveryCodeRepository interface {
	// Replace swaps the whole code set in one transaction.
	Replace(ctx context.Context, userID uuid.UUID, codeHashes []string, createdAt time.Time) error
	// Consume marks one unused code as used and reports whether this call did it.
	Consume(ctx context.Context, userID uuid.UUID, codeHash string, usedAt time.Time) (bool, error)
	CountRemaining(ctx context.Context, userID uuid.UUID) (int, error)
}

// RememberedDeviceRepository keeps the server-side list behind client-held device stamps.
type RememberedDeviceRepository interface {
	Put(ctx context.Context, device domain.RememberedDevice) error
	Get(ctx context.Context, userID, deviceID uuid.UUID) (domain.RememberedDevice, error)
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

// PasswordResetRepository owns the reset-token lifecycle.
// Separate methods for create/consume keep one-time-token invariants explicit.
type PasswordResetRepository interface {
	CreatePasswordResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, createdAt, expiresAt time.Time) error
	ConsumePasswordResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, usedAt time.Time) error
}

// OutboxEvent is the write-side event payload prior to storage.
// It is adapter-neutral to keep application code independent of broker specifics.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	FirstSeenAt    time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls publish-retry workflow for domain events.
// This explicit contract enables transactional outbox patterns without leaking DB details.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
