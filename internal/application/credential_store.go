package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/ports"
)

// CredentialStore owns the per-user security record: primary credentials,
// the TOTP secret, the 2FA flag, the security stamp and remembered devices.
type CredentialStore struct {
	cfg      Config
	records  ports.SecurityRecordRepository
	devices  ports.RememberedDeviceRepository
	lockouts ports.LockoutStore
	hasher   ports.PasswordHasher
	totp     ports.TOTPEngine
	stamps   ports.DeviceStampSigner
	nowFn    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// VerifyPrimaryCredentials checks an email or user name and password.
// Unknown users and wrong passwords fail identically with domain.ErrInvalidCredentials,
// and both pay for one hash comparison.
func (c *CredentialStore) VerifyPrimaryCredentials(ctx context.Context, identifier, secret string) (uuid.UUID, error) {
	identifier = strings.TrimSpace(identifier)
	lockKey := "login:" + strings.ToLower(identifier)

	if c.lockouts != nil {
		state, err := c.lockouts.Get(ctx, lockKey)
		if err != nil {
			logCredentialWarning(ctx, "lockout_get", err)
		} else if state.LockedUntil != nil && state.LockedUntil.After(c.nowFn()) {
			return uuid.Nil, domain.ErrAccountLocked
		}
	}

	rec, err := c.records.GetByLogin(ctx, identifier)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("load security record: %w", err)
	}
	if errors.Is(err, domain.ErrNotFound) || rec.PasswordHash == "" {
		c.compareDummy(secret)
		c.recordFailure(ctx, lockKey)
		return uuid.Nil, domain.ErrInvalidCredentials
	}

	if err := c.hasher.Compare(rec.PasswordHash, secret); err != nil {
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			logCredentialWarning(ctx, "password_compare", err)
		}
		c.recordFailure(ctx, lockKey)
		return uuid.Nil, domain.ErrInvalidCredentials
	}

	if c.lockouts != nil {
		if err := c.lockouts.Clear(ctx, lockKey); err != nil {
			logCredentialWarning(ctx, "lockout_clear", err)
		}
	}
	return rec.UserID, nil
}

func (c *CredentialStore) IsTwoFactorEnabled(ctx context.Context, userID uuid.UUID) (bool, error) {
	rec, err := c.records.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return rec.TwoFactorEnabled, nil
}

// GetOrCreateTotpSecret returns the existing shared secret or atomically provisions one.
// A concurrent creator that loses the race reads back the winner's secret.
func (c *CredentialStore) GetOrCreateTotpSecret(ctx context.Context, userID uuid.UUID) (string, error) {
	rec, err := c.records.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if rec.HasAuthenticator() {
		return rec.TOTPSecret, nil
	}

	secret, err := c.totp.GenerateSecret()
	if err != nil {
		return "", err
	}
	won, err := c.records.SetTOTPSecretIfEmpty(ctx, userID, secret, c.nowFn())
	if err != nil {
		return "", fmt.Errorf("store totp secret: %w", err)
	}
	if won {
		return secret, nil
	}

	rec, err = c.records.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !rec.HasAuthenticator() {
		return "", fmt.Errorf("totp secret vanished for user %s", userID)
	}
	return rec.TOTPSecret, nil
}

// ResetTotpSecret replaces the secret and rotates the security stamp, which revokes
// every remembered device; the device rows are deleted as well.
func (c *CredentialStore) ResetTotpSecret(ctx context.Context, userID uuid.UUID) (string, error) {
	secret, err := c.totp.GenerateSecret()
	if err != nil {
		return "", err
	}
	stamp, err := newSecurityStamp()
	if err != nil {
		return "", err
	}
	if err := c.records.ReplaceTOTPSecret(ctx, userID, secret, stamp, c.nowFn()); err != nil {
		return "", err
	}
	if err := c.devices.DeleteAllForUser(ctx, userID); err != nil {
		return "", fmt.Errorf("revoke remembered devices: %w", err)
	}
	return secret, nil
}

func (c *CredentialStore) SetTwoFactorEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error {
	return c.records.SetTwoFactorEnabled(ctx, userID, enabled, c.nowFn())
}

// MarkDeviceRemembered records a new trusted device and returns its signed client stamp.
func (c *CredentialStore) MarkDeviceRemembered(ctx context.Context, userID uuid.UUID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.cfg.DeviceTrustTTL
	}
	rec, err := c.records.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	now := c.nowFn()
	device := domain.RememberedDevice{
		DeviceID:      uuid.New(),
		UserID:        userID,
		SecurityStamp: rec.SecurityStamp,
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
	}
	if err := c.devices.Put(ctx, device); err != nil {
		return "", fmt.Errorf("store remembered device: %w", err)
	}
	return c.stamps.Sign(ports.DeviceStamp{
		UserID:        userID,
		DeviceID:      device.DeviceID,
		SecurityStamp: device.SecurityStamp,
		ExpiresAt:     device.ExpiresAt,
	})
}

// IsDeviceRemembered verifies a client stamp against the stored device and the current security stamp.
// A missing, forged, expired or foreign stamp is simply not remembered.
func (c *CredentialStore) IsDeviceRemembered(ctx context.Context, userID uuid.UUID, rawStamp string) (bool, error) {
	rec, err := c.records.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(rawStamp) == "" {
		return false, nil
	}
	stamp, err := c.stamps.Parse(rawStamp)
	if err != nil || stamp.UserID != userID || stamp.SecurityStamp != rec.SecurityStamp {
		return false, nil
	}

	device, err := c.devices.Get(ctx, userID, stamp.DeviceID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load remembered device: %w", err)
	}
	return device.TrustedAt(c.nowFn(), rec.SecurityStamp), nil
}

// ForgetDevices revokes every remembered device of the user.
func (c *CredentialStore) ForgetDevices(ctx context.Context, userID uuid.UUID) error {
	if _, err := c.records.GetByID(ctx, userID); err != nil {
		return err
	}
	return c.devices.DeleteAllForUser(ctx, userID)
}

func (c *CredentialStore) SecurityStamp(ctx context.Context, userID uuid.UUID) (string, error) {
	rec, err := c.records.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return rec.SecurityStamp, nil
}

// SetPassword hashes and stores a new password and rotates the security stamp.
func (c *CredentialStore) SetPassword(ctx context.Context, userID uuid.UUID, password string) error {
	hash, err := c.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	stamp, err := newSecurityStamp()
	if err != nil {
		return err
	}
	return c.records.UpdatePassword(ctx, userID, hash, stamp, c.nowFn())
}

func (c *CredentialStore) recordFailure(ctx context.Context, lockKey string) {
	if c.lockouts == nil {
		return
	}
	if _, err := c.lockouts.RecordFailure(ctx, lockKey, c.nowFn(), c.cfg.FailedLoginThreshold, c.cfg.LockoutDuration); err != nil {
		logCredentialWarning(ctx, "lockout_record", err)
	}
}

// compareDummy spends one hash comparison so unknown identifiers take as long as wrong passwords.
func (c *CredentialStore) compareDummy(secret string) {
	c.dummyOnce.Do(func() {
		c.dummyHash, _ = c.hasher.Hash("dummy-password-for-timing")
	})
	if c.dummyHash != "" {
		_ = c.hasher.Compare(c.dummyHash, secret)
	}
}

func logCredentialWarning(ctx context.Context, operation string, err error) {
	slog.Default().WarnContext(ctx, "credential store degraded",
		"service", serviceName,
		"module", "credential_store",
		"layer", "application",
		"operation", operation,
		"outcome", "warning",
		"error", err,
	)
}
