package domain

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	minPasswordLength = 12
	// bcrypt rejects inputs longer than 72 bytes.
	maxPasswordLength = 72
)

// ValidatePassword enforces the baseline password policy and reports the first violation.
func ValidatePassword(password string) error {
	violations := PasswordPolicyViolations(password)
	if len(violations) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, violations[0])
}

// PasswordPolicyViolations lists every policy rule the password breaks.
// Reset flows return the whole list so the client can show all problems at once.
func PasswordPolicyViolations(password string) []string {
	var violations []string
	if len(password) < minPasswordLength {
		violations = append(violations, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordLength {
		violations = append(violations, fmt.Sprintf("password must be <= %d characters", maxPasswordLength))
	}

	var (
		hasUpper bool
		hasLower bool
		hasDigit bool
		hasPunct bool
	)

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasPunct = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit || !hasPunct {
		violations = append(violations, "password must include upper, lower, digit, and symbol")
	}

	lowered := strings.ToLower(password)
	for _, banned := range []string{"password", "qwerty", "123456", "letmein"} {
		if strings.Contains(lowered, banned) {
			violations = append(violations, "password includes weak pattern")
			break
		}
	}

	return violations
}
