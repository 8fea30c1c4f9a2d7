package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
)

const serviceName = "two-factor-auth-service"

// normalizeEmail canonicalizes and validates email format before comparison.
func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return trimmed, nil
}

// hashToken stores one-way token fingerprints instead of raw secrets.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a cryptographically random hex token.
func randomHex(bytesLen int) (string, error) {
	raw := make([]byte, bytesLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// newSecurityStamp returns a fresh opaque stamp; rotating it revokes trust bound to the old one.
func newSecurityStamp() (string, error) {
	return randomHex(16)
}

// formatSharedKey renders a TOTP secret in lowercase groups of four for manual entry.
func formatSharedKey(secret string) string {
	secret = strings.ToLower(strings.TrimSpace(secret))
	var b strings.Builder
	for i, r := range secret {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// enforceRateLimit counts one hit against key and reports domain.ErrRateLimited once the window is full.
// Cache failures fail open so an unavailable Redis does not block account recovery.
func (s *Service) enforceRateLimit(ctx context.Context, key string, threshold int, window time.Duration) error {
	if s.lockouts == nil || threshold <= 0 || window <= 0 || strings.TrimSpace(key) == "" {
		return nil
	}

	now := s.nowFn()
	state, err := s.lockouts.Get(ctx, key)
	if err == nil && state.LockedUntil != nil && state.LockedUntil.After(now) {
		return domain.ErrRateLimited
	}

	updated, err := s.lockouts.RecordFailure(ctx, key, now, threshold, window)
	if err != nil {
		slog.Default().WarnContext(ctx, "rate-limit state unavailable",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "rate_limit",
			"outcome", "warning",
			"key", key,
			"error", err,
		)
		return nil
	}
	if updated.LockedUntil != nil && updated.LockedUntil.After(now) {
		return domain.ErrRateLimited
	}
	return nil
}
