package security

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
)

const (
	totpPeriodSeconds = 30
	totpSecretBytes   = 20
)

var totpSecretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTPEngine implements RFC 6238 codes with a 30 second step, six digits and SHA1,
// accepting one step of clock skew either side. It holds no per-user state.
type TOTPEngine struct {
	validateOpts totp.ValidateOpts
}

func NewTOTPEngine() *TOTPEngine {
	return &TOTPEngine{validateOpts: totp.ValidateOpts{
		Period:    totpPeriodSeconds,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}}
}

// GenerateSecret returns a fresh unpadded base32 shared secret.
func (e *TOTPEngine) GenerateSecret() (string, error) {
	buf := make([]byte, totpSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return totpSecretEncoding.EncodeToString(buf), nil
}

// ProvisioningURI builds the otpauth:// URI authenticator apps scan.
// The same inputs always produce the same URI.
func (e *TOTPEngine) ProvisioningURI(issuerLabel, accountLabel, secret string) (string, error) {
	issuerLabel = strings.TrimSpace(issuerLabel)
	accountLabel = strings.TrimSpace(accountLabel)
	if issuerLabel == "" || accountLabel == "" {
		return "", fmt.Errorf("%w: issuer and account labels are required", domain.ErrInvalidInput)
	}
	raw, err := decodeTOTPSecret(secret)
	if err != nil {
		return "", err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuerLabel,
		AccountName: accountLabel,
		Period:      e.validateOpts.Period,
		Secret:      raw,
		Digits:      e.validateOpts.Digits,
		Algorithm:   e.validateOpts.Algorithm,
	})
	if err != nil {
		return "", fmt.Errorf("build provisioning uri: %w", err)
	}
	return key.URL(), nil
}

// ValidateCode reports whether code matches secret at, or one step either side of, at.
// Malformed codes and secrets yield false.
func (e *TOTPEngine) ValidateCode(secret, code string, at time.Time) bool {
	code = domain.NormalizeTwoFactorCode(code)
	if len(code) != e.validateOpts.Digits.Length() || !isDigits(code) {
		return false
	}
	if _, err := decodeTOTPSecret(secret); err != nil {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), e.validateOpts)
	return err == nil && ok
}

func decodeTOTPSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "="))
	if normalized == "" {
		return nil, fmt.Errorf("%w: totp secret is required", domain.ErrInvalidInput)
	}
	raw, err := totpSecretEncoding.DecodeString(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: totp secret is not base32", domain.ErrInvalidInput)
	}
	return raw, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
