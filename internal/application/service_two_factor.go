package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
)

// VerifyTwoFactorToken checks a TOTP code against the user's stored secret.
func (s *Service) VerifyTwoFactorToken(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	if err := requireUserID(userID); err != nil {
		return false, err
	}
	rec, err := s.records.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if !rec.HasAuthenticator() {
		return false, nil
	}
	return s.totp.ValidateCode(rec.TOTPSecret, domain.NormalizeTwoFactorCode(code), s.nowFn()), nil
}

// RedeemTwoFactorRecoveryCode burns one recovery code. An unknown or used code is
// reported as false, not as an error.
func (s *Service) RedeemTwoFactorRecoveryCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	if err := requireUserID(userID); err != nil {
		return false, err
	}
	if strings.TrimSpace(code) == "" {
		return false, fmt.Errorf("%w: code is required", domain.ErrInvalidInput)
	}
	err := s.vault.Redeem(ctx, userID, code)
	if errors.Is(err, domain.ErrInvalidOrUsedCode) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.events.record(ctx, eventTypeRecoveryRedeemed, userID, map[string]any{"context": "manage"})
	return true, nil
}

func (s *Service) RememberClient(ctx context.Context, userID uuid.UUID) (RememberClientResponse, error) {
	if err := requireUserID(userID); err != nil {
		return RememberClientResponse{}, err
	}
	stamp, err := s.credentials.SecurityStamp(ctx, userID)
	if err != nil {
		return RememberClientResponse{}, err
	}
	return RememberClientResponse{SecurityStamp: stamp, SupportsStamp: true}, nil
}

// LoadSharedKeyAndQrCodeUri returns the authenticator key for manual entry and the
// otpauth:// URI for QR rendering, provisioning a secret on first use.
func (s *Service) LoadSharedKeyAndQrCodeUri(ctx context.Context, userID uuid.UUID) (AuthenticatorSetup, error) {
	if err := requireUserID(userID); err != nil {
		return AuthenticatorSetup{}, err
	}
	secret, err := s.credentials.GetOrCreateTotpSecret(ctx, userID)
	if err != nil {
		return AuthenticatorSetup{}, err
	}
	rec, err := s.records.GetByID(ctx, userID)
	if err != nil {
		return AuthenticatorSetup{}, err
	}
	uri, err := s.totp.ProvisioningURI(s.cfg.AuthenticatorIssuer, rec.Email, secret)
	if err != nil {
		return AuthenticatorSetup{}, fmt.Errorf("build provisioning uri: %w", err)
	}
	return AuthenticatorSetup{SharedKey: formatSharedKey(secret), AuthenticatorURI: uri}, nil
}

// VerifyAuthenticator confirms the user's app produces valid codes and switches 2FA on.
// A fresh code batch is returned only when the user has none left.
func (s *Service) VerifyAuthenticator(ctx context.Context, userID uuid.UUID, code string) (VerifyAuthenticatorResult, error) {
	if err := requireUserID(userID); err != nil {
		return VerifyAuthenticatorResult{}, err
	}
	attempt := domain.TOTPAttempt(code)
	if err := attempt.Validate(); err != nil {
		return VerifyAuthenticatorResult{}, err
	}
	rec, err := s.records.GetByID(ctx, userID)
	if err != nil {
		return VerifyAuthenticatorResult{}, err
	}
	if !rec.HasAuthenticator() {
		return VerifyAuthenticatorResult{}, fmt.Errorf("%w: no authenticator provisioned", domain.ErrInvalidState)
	}
	if !s.totp.ValidateCode(rec.TOTPSecret, attempt.Code, s.nowFn()) {
		return VerifyAuthenticatorResult{}, domain.ErrInvalidTwoFactorCode
	}

	if err := s.credentials.SetTwoFactorEnabled(ctx, userID, true); err != nil {
		return VerifyAuthenticatorResult{}, err
	}
	s.events.record(ctx, eventTypeTwoFactorEnabled, userID, nil)

	remaining, err := s.vault.RemainingCount(ctx, userID)
	if err != nil {
		return VerifyAuthenticatorResult{}, err
	}
	result := VerifyAuthenticatorResult{Enabled: true}
	if remaining == 0 {
		codes, err := s.vault.GenerateBatch(ctx, userID, 0)
		if err != nil {
			return VerifyAuthenticatorResult{}, err
		}
		result.RecoveryCodes = codes
	}
	return result, nil
}

func (s *Service) SetTwoFactorEnabled(ctx context.Context, userID uuid.UUID, enabled bool) (SetTwoFactorResult, error) {
	if err := requireUserID(userID); err != nil {
		return SetTwoFactorResult{}, err
	}
	rec, err := s.records.GetByID(ctx, userID)
	if err != nil {
		return SetTwoFactorResult{}, err
	}
	switch {
	case !enabled && !rec.TwoFactorEnabled:
		return SetTwoFactorResult{}, fmt.Errorf("%w: two-factor authentication is not enabled", domain.ErrInvalidState)
	case enabled && !rec.HasAuthenticator():
		return SetTwoFactorResult{}, fmt.Errorf("%w: no authenticator provisioned", domain.ErrInvalidState)
	}

	if err := s.credentials.SetTwoFactorEnabled(ctx, userID, enabled); err != nil {
		return SetTwoFactorResult{}, err
	}
	if enabled {
		s.events.record(ctx, eventTypeTwoFactorEnabled, userID, nil)
	} else {
		s.events.record(ctx, eventTypeTwoFactorDisabled, userID, nil)
	}
	return SetTwoFactorResult{Succeeded: true, UserID: userID}, nil
}

func (s *Service) GetTwoFactorEnabled(ctx context.Context, userID uuid.UUID) (bool, error) {
	if err := requireUserID(userID); err != nil {
		return false, err
	}
	return s.credentials.IsTwoFactorEnabled(ctx, userID)
}

// GenerateRecoveryCodes replaces every outstanding code with a new batch.
func (s *Service) GenerateRecoveryCodes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	if err := s.requireTwoFactorEnabled(ctx, userID); err != nil {
		return nil, err
	}
	return s.vault.GenerateBatch(ctx, userID, 0)
}

func (s *Service) CheckRecoveryCodesStatus(ctx context.Context, userID uuid.UUID) (RecoveryCodesStatus, error) {
	if err := s.requireTwoFactorEnabled(ctx, userID); err != nil {
		return RecoveryCodesStatus{}, err
	}
	remaining, err := s.vault.RemainingCount(ctx, userID)
	if err != nil {
		return RecoveryCodesStatus{}, err
	}
	if remaining > 0 {
		return RecoveryCodesStatus{Remaining: remaining}, nil
	}

	codes, err := s.vault.GenerateBatch(ctx, userID, 0)
	if err != nil {
		return RecoveryCodesStatus{}, err
	}
	return RecoveryCodesStatus{NeededReset: true, Remaining: len(codes), RecoveryCodes: codes}, nil
}

func (s *Service) TwoFactorStatus(ctx context.Context, userID uuid.UUID, deviceStamp string) (TwoFactorStatus, error) {
	if err := requireUserID(userID); err != nil {
		return TwoFactorStatus{}, err
	}
	rec, err := s.records.GetByID(ctx, userID)
	if err != nil {
		return TwoFactorStatus{}, err
	}
	remaining, err := s.vault.RemainingCount(ctx, userID)
	if err != nil {
		return TwoFactorStatus{}, err
	}
	remembered, err := s.credentials.IsDeviceRemembered(ctx, userID, deviceStamp)
	if err != nil {
		return TwoFactorStatus{}, err
	}
	return TwoFactorStatus{
		HasAuthenticator:    rec.HasAuthenticator(),
		RecoveryCodesLeft:   remaining,
		IsTwoFactorEnabled:  rec.TwoFactorEnabled,
		IsMachineRemembered: remembered,
	}, nil
}

func (s *Service) ForgetTwoFactorClient(ctx context.Context, userID uuid.UUID) error {
	if err := requireUserID(userID); err != nil {
		return err
	}
	return s.credentials.ForgetDevices(ctx, userID)
}

// ResetAuthenticator rotates the TOTP secret and switches 2FA off until the new
// authenticator is verified. Remembered devices are revoked with the old stamp.
func (s *Service) ResetAuthenticator(ctx context.Context, userID uuid.UUID) error {
	if err := requireUserID(userID); err != nil {
		return err
	}
	if _, err := s.credentials.ResetTotpSecret(ctx, userID); err != nil {
		return err
	}
	if err := s.credentials.SetTwoFactorEnabled(ctx, userID, false); err != nil {
		return err
	}
	s.events.record(ctx, eventTypeAuthenticatorReset, userID, nil)
	return nil
}

func (s *Service) requireTwoFactorEnabled(ctx context.Context, userID uuid.UUID) error {
	if err := requireUserID(userID); err != nil {
		return err
	}
	enabled, err := s.credentials.IsTwoFactorEnabled(ctx, userID)
	if err != nil {
		return err
	}
	if !enabled {
		return fmt.Errorf("%w: two-factor authentication is not enabled", domain.ErrInvalidState)
	}
	return nil
}
