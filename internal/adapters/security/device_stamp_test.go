package security

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/ports"
)

func TestDeviceStampRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	signer, err := NewDeviceStampSigner("https://auth.example.test", testSigningKey, func() time.Time { return now })
	require.NoError(t, err)

	in := ports.DeviceStamp{
		UserID:        uuid.New(),
		DeviceID:      uuid.New(),
		SecurityStamp: "stamp-1",
		ExpiresAt:     now.Add(30 * 24 * time.Hour),
	}
	raw, err := signer.Sign(in)
	require.NoError(t, err)

	out, err := signer.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDeviceStampRejectsExpiredAndForeign(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	signer, err := NewDeviceStampSigner("https://auth.example.test", testSigningKey, func() time.Time { return now })
	require.NoError(t, err)

	expired, err := signer.Sign(ports.DeviceStamp{UserID: uuid.New(), DeviceID: uuid.New(), ExpiresAt: now.Add(-time.Minute)})
	require.NoError(t, err)
	_, err = signer.Parse(expired)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	// An access token signed with the same key must not pass as a device stamp.
	opts, err := NewTokenOptions("https://auth.example.test", "tasks-api", testSigningKey, 5)
	require.NoError(t, err)
	access, _, err := IssueAccessToken(uuid.New(), "", nil, opts, now)
	require.NoError(t, err)
	_, err = signer.Parse(access)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = NewDeviceStampSigner("", testSigningKey, nil)
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestBcryptHasherCompare(t *testing.T) {
	t.Parallel()

	hasher := NewBcryptHasher(4)
	hash, err := hasher.Hash("StrongPass123!")
	require.NoError(t, err)
	require.NoError(t, hasher.Compare(hash, "StrongPass123!"))
	require.ErrorIs(t, hasher.Compare(hash, "WrongPass123!"), domain.ErrInvalidCredentials)
}
