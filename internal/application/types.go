package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
)

type Config struct {
	PendingTwoFactorTTL     time.Duration
	MaxSecondFactorAttempts int
	DeviceTrustTTL          time.Duration
	AuthenticatorIssuer     string
	RecoveryCodeCount       int
	FailedLoginThreshold    int
	LockoutDuration         time.Duration
	PasswordResetTTL        time.Duration
	ForgotPasswordLimit     int
	ForgotPasswordWindow    time.Duration
}

// withDefaults fills zero values so tests and partial configs behave like production.
func (c Config) withDefaults() Config {
	if c.PendingTwoFactorTTL <= 0 {
		c.PendingTwoFactorTTL = 5 * time.Minute
	}
	if c.MaxSecondFactorAttempts <= 0 {
		c.MaxSecondFactorAttempts = 5
	}
	if c.DeviceTrustTTL <= 0 {
		c.DeviceTrustTTL = 30 * 24 * time.Hour
	}
	if c.AuthenticatorIssuer == "" {
		c.AuthenticatorIssuer = "Pegasus"
	}
	if c.RecoveryCodeCount <= 0 {
		c.RecoveryCodeCount = 10
	}
	if c.FailedLoginThreshold <= 0 {
		c.FailedLoginThreshold = 5
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = 15 * time.Minute
	}
	if c.PasswordResetTTL <= 0 {
		c.PasswordResetTTL = time.Hour
	}
	if c.ForgotPasswordLimit <= 0 {
		c.ForgotPasswordLimit = 3
	}
	if c.ForgotPasswordWindow <= 0 {
		c.ForgotPasswordWindow = time.Hour
	}
	return c
}

type LoginRequest struct {
	Identifier      string `json:"identifier"`
	Password        string `json:"password"`
	RememberMachine bool   `json:"remember_machine"`
	DeviceStamp     string `json:"device_stamp,omitempty"`
}

type SecondFactorRequest struct {
	PendingToken    string `json:"pending_token"`
	Code            string `json:"code"`
	RememberMachine bool   `json:"remember_machine"`
}

// SignInResult reports where a login attempt stands after one transition.
// Token fields are set only in the Authenticated state.
type SignInResult struct {
	State             domain.SignInState             `json:"state"`
	PendingToken      string                         `json:"pending_token,omitempty"`
	PendingExpiresAt  *time.Time                     `json:"pending_expires_at,omitempty"`
	AttemptsRemaining int                            `json:"attempts_remaining,omitempty"`
	AccessToken       string                         `json:"access_token,omitempty"`
	ExpiresAt         *time.Time                     `json:"expires_at,omitempty"`
	Principal         *domain.AuthenticatedPrincipal `json:"principal,omitempty"`
	DeviceStamp       string                         `json:"device_stamp,omitempty"`
}

type RememberClientResponse struct {
	SecurityStamp string `json:"security_stamp"`
	SupportsStamp bool   `json:"supports_user_security_stamp"`
}

type ForgotPasswordRequest struct {
	Email   string `json:"email"`
	BaseURL string `json:"base_url"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email"`
	UserID   string `json:"user_id,omitempty"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

type ResetPasswordResult struct {
	Succeeded bool     `json:"succeeded"`
	Errors    []string `json:"errors,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type AuthenticatorSetup struct {
	SharedKey        string `json:"shared_key"`
	AuthenticatorURI string `json:"authenticator_uri"`
}

type VerifyAuthenticatorResult struct {
	Enabled       bool     `json:"enabled"`
	RecoveryCodes []string `json:"recovery_codes,omitempty"`
}

type SetTwoFactorResult struct {
	Succeeded bool      `json:"succeeded"`
	UserID    uuid.UUID `json:"user_id"`
}

type RecoveryCodesStatus struct {
	NeededReset   bool     `json:"needed_reset"`
	Remaining     int      `json:"remaining"`
	RecoveryCodes []string `json:"recovery_codes,omitempty"`
}

type TwoFactorStatus struct {
	HasAuthenticator    bool `json:"has_authenticator"`
	RecoveryCodesLeft   int  `json:"recovery_codes_left"`
	IsTwoFactorEnabled  bool `json:"is_2fa_enabled"`
	IsMachineRemembered bool `json:"is_machine_remembered"`
}
