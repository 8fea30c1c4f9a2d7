package domain_test

import (
	"errors"
	"testing"

	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		password  string
		wantError bool
	}{
		{name: "valid", password: "StrongPass123!", wantError: false},
		{name: "too short", password: "Ab1!", wantError: true},
		{name: "no symbol", password: "StrongPass1234", wantError: true},
		{name: "weak pattern", password: "Password123!", wantError: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := domain.ValidatePassword(tc.password)
			if tc.wantError && !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input error, got %v", err)
			}
			if !tc.wantError && err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
		})
	}
}

func TestPasswordPolicyViolationsListsEveryRule(t *testing.T) {
	t.Parallel()

	violations := domain.PasswordPolicyViolations("qwerty")
	if len(violations) != 3 {
		t.Fatalf("expected length, composition and weak-pattern violations, got %v", violations)
	}
	if got := domain.PasswordPolicyViolations("StrongPass123!"); len(got) != 0 {
		t.Fatalf("expected no violations, got %v", got)
	}
}
