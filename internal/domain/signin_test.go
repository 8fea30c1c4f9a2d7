package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
)

func TestNormalizeTwoFactorCode(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"123456":     "123456",
		" 123 456 ":  "123456",
		"123-456":    "123456",
		"1 2-3 4-56": "123456",
	}
	for in, want := range cases {
		if got := domain.NormalizeTwoFactorCode(in); got != want {
			t.Fatalf("NormalizeTwoFactorCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSecondFactorAttemptValidate(t *testing.T) {
	t.Parallel()

	if err := domain.TOTPAttempt("123 456").Validate(); err != nil {
		t.Fatalf("totp attempt should be valid: %v", err)
	}
	if err := domain.RecoveryAttempt("ABCDE-FGHJK").Validate(); err != nil {
		t.Fatalf("recovery attempt should be valid: %v", err)
	}
	if err := domain.TOTPAttempt("  ").Validate(); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty code, got %v", err)
	}
	bogus := domain.SecondFactorAttempt{Kind: "sms", Code: "123456"}
	if err := bogus.Validate(); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown kind, got %v", err)
	}
}

func TestSignInStateTerminal(t *testing.T) {
	t.Parallel()

	for _, s := range []domain.SignInState{domain.SignInAuthenticated, domain.SignInFailed} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []domain.SignInState{domain.SignInAwaitingPrimary, domain.SignInPrimaryVerified, domain.SignInAwaitingSecondFactor} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestRememberedDeviceTrustedAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	device := domain.RememberedDevice{SecurityStamp: "stamp-1", ExpiresAt: now.Add(time.Hour)}
	if !device.TrustedAt(now, "stamp-1") {
		t.Fatalf("device should be trusted before expiry with matching stamp")
	}
	if device.TrustedAt(now, "stamp-2") {
		t.Fatalf("rotated security stamp must revoke device trust")
	}
	if device.TrustedAt(now.Add(2*time.Hour), "stamp-1") {
		t.Fatalf("expired device must not be trusted")
	}
}
