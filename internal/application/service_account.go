package application

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
)

const (
	resetPasswordSubject    = "Reset Password"
	invalidResetCodeMessage = "invalid or expired reset code"
)

// ForgotPassword starts the reset flow. The caller gets the same nil result whether
// or not the address belongs to a confirmed account.
func (s *Service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return err
	}
	baseURL, err := parseCallbackBase(req.BaseURL)
	if err != nil {
		return err
	}
	if err := s.enforceRateLimit(ctx, "forgot:"+email, s.cfg.ForgotPasswordLimit, s.cfg.ForgotPasswordWindow); err != nil {
		logAccountOutcome(ctx, "forgot_password", "rate_limited", err)
		return nil
	}

	rec, err := s.records.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logAccountOutcome(ctx, "forgot_password", "failure", err)
		}
		return nil
	}
	if !rec.EmailConfirmed {
		return nil
	}

	if err := s.sendResetLink(ctx, rec, baseURL); err != nil {
		logAccountOutcome(ctx, "forgot_password", "failure", err)
	}
	return nil
}

func (s *Service) sendResetLink(ctx context.Context, rec domain.UserSecurityRecord, baseURL *url.URL) error {
	raw, err := randomHex(32)
	if err != nil {
		return err
	}
	now := s.nowFn()
	if err := s.resets.CreatePasswordResetToken(ctx, rec.UserID, hashToken(raw), now, now.Add(s.cfg.PasswordResetTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	callback := *baseURL
	query := callback.Query()
	query.Set("userId", rec.UserID.String())
	query.Set("code", base64.RawURLEncoding.EncodeToString([]byte(raw)))
	callback.RawQuery = query.Encode()

	body := fmt.Sprintf("Please reset your password by opening this link: %s", callback.String())
	if err := s.email.SendEmail(ctx, rec.Email, resetPasswordSubject, body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset code and sets the new password. Unknown emails and
// user id mismatches report success so the endpoint cannot be used to probe accounts.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (ResetPasswordResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return ResetPasswordResult{}, err
	}
	if strings.TrimSpace(req.Code) == "" {
		return ResetPasswordResult{}, fmt.Errorf("%w: code is required", domain.ErrInvalidInput)
	}

	rec, err := s.records.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return ResetPasswordResult{Succeeded: true}, nil
	}
	if err != nil {
		return ResetPasswordResult{}, err
	}
	if id := strings.TrimSpace(req.UserID); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil || parsed != rec.UserID {
			return ResetPasswordResult{Succeeded: true}, nil
		}
	}

	if violations := domain.PasswordPolicyViolations(req.Password); len(violations) > 0 {
		return ResetPasswordResult{Errors: violations}, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(req.Code))
	if err != nil {
		return ResetPasswordResult{Errors: []string{invalidResetCodeMessage}}, nil
	}
	err = s.resets.ConsumePasswordResetToken(ctx, rec.UserID, hashToken(string(raw)), s.nowFn())
	if errors.Is(err, domain.ErrNotFound) {
		return ResetPasswordResult{Errors: []string{invalidResetCodeMessage}}, nil
	}
	if err != nil {
		return ResetPasswordResult{}, fmt.Errorf("consume reset token: %w", err)
	}

	if err := s.credentials.SetPassword(ctx, rec.UserID, req.Password); err != nil {
		return ResetPasswordResult{}, err
	}
	if s.lockouts != nil {
		if err := s.lockouts.Clear(ctx, "login:"+email); err != nil {
			logAccountOutcome(ctx, "reset_password", "warning", err)
		}
	}
	s.events.record(ctx, eventTypePasswordReset, rec.UserID, nil)
	return ResetPasswordResult{Succeeded: true}, nil
}

// ChangePassword replaces the password of a signed-in user after re-checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error {
	if err := requireUserID(userID); err != nil {
		return err
	}
	if req.CurrentPassword == "" {
		return fmt.Errorf("%w: current_password is required", domain.ErrInvalidInput)
	}
	if err := domain.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	rec, err := s.records.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(rec.PasswordHash, req.CurrentPassword); err != nil {
		return domain.ErrInvalidCredentials
	}
	if err := s.credentials.SetPassword(ctx, userID, req.NewPassword); err != nil {
		return err
	}
	s.events.record(ctx, eventTypePasswordChanged, userID, nil)
	return nil
}

func parseCallbackBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: base_url must be an absolute http(s) url", domain.ErrInvalidInput)
	}
	return u, nil
}

func logAccountOutcome(ctx context.Context, operation, outcome string, err error) {
	slog.Default().WarnContext(ctx, "account recovery degraded",
		"service", serviceName,
		"module", "account",
		"layer", "application",
		"operation", operation,
		"outcome", outcome,
		"error", err,
	)
}
