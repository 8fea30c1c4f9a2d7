package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/ports"
)

const (
	// recoveryCodeAlphabet drops 0/O and 1/I so codes survive being read aloud.
	recoveryCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	recoveryCodeLength   = 10
)

// RecoveryCodeVault issues and redeems single-use recovery codes. Only hashes are
// stored, so a batch is visible exactly once, when it is generated.
type RecoveryCodeVault struct {
	cfg     Config
	records ports.SecurityRecordRepository
	codes   ports.RecoveryCodeRepository
	nowFn   func() time.Time
}

// GenerateBatch replaces the user's whole code set; count <= 0 uses the configured size.
func (v *RecoveryCodeVault) GenerateBatch(ctx context.Context, userID uuid.UUID, count int) ([]string, error) {
	if count <= 0 {
		count = v.cfg.RecoveryCodeCount
	}
	if _, err := v.records.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	codes := make([]string, 0, count)
	hashes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for len(codes) < count {
		code, err := newRecoveryCode()
		if err != nil {
			return nil, err
		}
		canonical := canonicalRecoveryCode(code)
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		codes = append(codes, code)
		hashes = append(hashes, hashRecoveryCode(canonical))
	}

	if err := v.codes.Replace(ctx, userID, hashes, v.nowFn()); err != nil {
		return nil, fmt.Errorf("replace recovery codes: %w", err)
	}
	return codes, nil
}

// Redeem consumes code at most once, even under concurrent calls.
// Case, spaces and hyphens are ignored.
func (v *RecoveryCodeVault) Redeem(ctx context.Context, userID uuid.UUID, code string) error {
	canonical := canonicalRecoveryCode(code)
	if len(canonical) != recoveryCodeLength {
		return domain.ErrInvalidOrUsedCode
	}
	ok, err := v.codes.Consume(ctx, userID, hashRecoveryCode(canonical), v.nowFn())
	if err != nil {
		return fmt.Errorf("consume recovery code: %w", err)
	}
	if !ok {
		return domain.ErrInvalidOrUsedCode
	}
	return nil
}

func (v *RecoveryCodeVault) RemainingCount(ctx context.Context, userID uuid.UUID) (int, error) {
	if _, err := v.records.GetByID(ctx, userID); err != nil {
		return 0, err
	}
	return v.codes.CountRemaining(ctx, userID)
}

// newRecoveryCode draws ten symbols and formats them as XXXXX-XXXXX.
// The alphabet has 32 symbols, so masking a random byte keeps the draw uniform.
func newRecoveryCode() (string, error) {
	raw := make([]byte, recoveryCodeLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	var b strings.Builder
	for i, r := range raw {
		if i == recoveryCodeLength/2 {
			b.WriteByte('-')
		}
		b.WriteByte(recoveryCodeAlphabet[int(r)&(len(recoveryCodeAlphabet)-1)])
	}
	return b.String(), nil
}

func canonicalRecoveryCode(code string) string {
	return strings.ToUpper(domain.NormalizeTwoFactorCode(code))
}

func hashRecoveryCode(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
