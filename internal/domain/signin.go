package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SignInState is the position of one login attempt in the sign-in state machine.
type SignInState string

const (
	SignInAwaitingPrimary      SignInState = "awaiting_primary"
	SignInPrimaryVerified      SignInState = "primary_verified"
	SignInAwaitingSecondFactor SignInState = "awaiting_second_factor"
	SignInAuthenticated        SignInState = "authenticated"
	SignInFailed               SignInState = "failed"
)

// Terminal reports whether no further transition is possible from s.
func (s SignInState) Terminal() bool {
	return s == SignInAuthenticated || s == SignInFailed
}

// SecondFactorKind tags which verifier handles a SecondFactorAttempt.
type SecondFactorKind string

const (
	SecondFactorTOTP     SecondFactorKind = "totp"
	SecondFactorRecovery SecondFactorKind = "recovery"
)

// SecondFactorAttempt is the code a client submits to leave AwaitingSecondFactor.
// Build it with TOTPAttempt or RecoveryAttempt.
type SecondFactorAttempt struct {
	Kind SecondFactorKind
	Code string
}

func TOTPAttempt(code string) SecondFactorAttempt {
	return SecondFactorAttempt{Kind: SecondFactorTOTP, Code: NormalizeTwoFactorCode(code)}
}

func RecoveryAttempt(code string) SecondFactorAttempt {
	return SecondFactorAttempt{Kind: SecondFactorRecovery, Code: strings.TrimSpace(code)}
}

// Validate checks the attempt shape only; it never verifies the code itself.
func (a SecondFactorAttempt) Validate() error {
	switch a.Kind {
	case SecondFactorTOTP, SecondFactorRecovery:
	default:
		return fmt.Errorf("%w: unsupported second factor %q", ErrInvalidInput, a.Kind)
	}
	if a.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	return nil
}

// NormalizeTwoFactorCode strips the spaces and hyphens authenticator apps display inside codes.
func NormalizeTwoFactorCode(code string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(code))
}

// PendingTwoFactorSession is the transient slot created after primary credentials pass
// and a second factor is still owed. It lives only in the short-TTL cache.
type PendingTwoFactorSession struct {
	UserID          uuid.UUID `json:"user_id"`
	RememberMachine bool      `json:"remember_machine"`
	Attempts        int       `json:"attempts"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

func (p PendingTwoFactorSession) ExpiredAt(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
