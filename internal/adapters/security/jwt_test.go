package security

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
)

const testSigningKey = "0123456789abcdef0123456789abcdef-test"

func testTokenOptions(t *testing.T) TokenOptions {
	t.Helper()
	opts, err := NewTokenOptions("https://auth.example.test", "tasks-api", testSigningKey, 0)
	require.NoError(t, err)
	return opts
}

func TestNewTokenOptionsRejectsMissingTrustParameters(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		issuer   string
		audience string
		key      string
		expiry   int
	}{
		{name: "empty issuer", issuer: "", audience: "aud", key: testSigningKey},
		{name: "whitespace issuer", issuer: "   ", audience: "aud", key: testSigningKey},
		{name: "empty audience", issuer: "iss", audience: "", key: testSigningKey},
		{name: "whitespace key", issuer: "iss", audience: "aud", key: strings.Repeat(" ", 40)},
		{name: "short key", issuer: "iss", audience: "aud", key: "short"},
		{name: "negative expiry", issuer: "iss", audience: "aud", key: testSigningKey, expiry: -1},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewTokenOptions(tc.issuer, tc.audience, tc.key, tc.expiry)
			require.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestIssueRejectsUnvalidatedOptions(t *testing.T) {
	t.Parallel()

	_, _, err := IssueAccessToken(uuid.New(), "", nil, TokenOptions{Audience: "aud", SigningKey: []byte(testSigningKey), ExpiryMinutes: 5}, time.Now())
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestIssueValidateRoundTrip(t *testing.T) {
	t.Parallel()

	opts := testTokenOptions(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	subject := uuid.New()

	token, issued, err := IssueAccessToken(subject, "alice@example.com", []string{"member", "admin"}, opts, now)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, now.Add(5*time.Minute), issued.ExpiresAt)

	claims, err := ValidateAccessToken(token, opts, now.Add(4*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, issued, claims)
}

func TestValidateExpiredToken(t *testing.T) {
	t.Parallel()

	opts := testTokenOptions(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	token, _, err := IssueAccessToken(uuid.New(), "", nil, opts, now)
	require.NoError(t, err)

	_, err = ValidateAccessToken(token, opts, now.Add(5*time.Minute))
	require.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestValidateDetectsEveryAlteredByte(t *testing.T) {
	t.Parallel()

	opts := testTokenOptions(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	token, _, err := IssueAccessToken(uuid.New(), "bob@example.com", []string{"member"}, opts, now)
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		replacement := byte('A')
		if token[i] == 'A' {
			replacement = 'B'
		}
		tampered := token[:i] + string(replacement) + token[i+1:]
		_, err := ValidateAccessToken(tampered, opts, now)
		require.ErrorIs(t, err, domain.ErrTokenBadSignature, "byte %d", i)
	}
}

func TestValidateRejectsWrongKeyAndAudience(t *testing.T) {
	t.Parallel()

	opts := testTokenOptions(t)
	now := time.Now().UTC()
	token, _, err := IssueAccessToken(uuid.New(), "", nil, opts, now)
	require.NoError(t, err)

	otherKey := opts
	otherKey.SigningKey = []byte("another-signing-key-with-32-bytes!!")
	_, err = ValidateAccessToken(token, otherKey, now)
	require.ErrorIs(t, err, domain.ErrTokenBadSignature)

	otherAudience := opts
	otherAudience.Audience = "billing-api"
	_, err = ValidateAccessToken(token, otherAudience, now)
	require.ErrorIs(t, err, domain.ErrTokenMalformed)
}

func TestValidateMalformedToken(t *testing.T) {
	t.Parallel()

	opts := testTokenOptions(t)
	for _, raw := range []string{"", "abc", "a.b", "a..c", "a.b.c.d"} {
		_, err := ValidateAccessToken(raw, opts, time.Now())
		require.ErrorIs(t, err, domain.ErrTokenMalformed, raw)
	}
}

func TestJWTIssuerUsesClock(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	issuer, err := NewJWTIssuer(testTokenOptions(t), func() time.Time { return now })
	require.NoError(t, err)

	token, issued, err := issuer.Issue(uuid.New(), "carol@example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, now, issued.IssuedAt)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, issued.Subject, claims.Subject)

	_, err = NewJWTIssuer(TokenOptions{}, nil)
	require.ErrorIs(t, err, domain.ErrConfiguration)
}
