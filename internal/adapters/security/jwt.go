package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/ports"
)

const (
	// DefaultTokenExpiryMinutes applies when no expiry is configured.
	DefaultTokenExpiryMinutes = 5
	minSigningKeyBytes        = 32
)

// TokenOptions are the trust-boundary parameters for access-token issuance.
// Build them with NewTokenOptions so a missing issuer, audience or key never reaches Issue.
type TokenOptions struct {
	Issuer        string
	Audience      string
	SigningKey    []byte
	ExpiryMinutes int
}

// NewTokenOptions validates issuance settings; zero expiry means the 5 minute default.
func NewTokenOptions(issuer, audience, signingKey string, expiryMinutes int) (TokenOptions, error) {
	if expiryMinutes == 0 {
		expiryMinutes = DefaultTokenExpiryMinutes
	}
	opts := TokenOptions{
		Issuer:        strings.TrimSpace(issuer),
		Audience:      strings.TrimSpace(audience),
		SigningKey:    []byte(signingKey),
		ExpiryMinutes: expiryMinutes,
	}
	if err := opts.validate(); err != nil {
		return TokenOptions{}, err
	}
	return opts, nil
}

func (o TokenOptions) validate() error {
	switch {
	case o.Issuer == "":
		return fmt.Errorf("%w: token issuer is required", domain.ErrConfiguration)
	case o.Audience == "":
		return fmt.Errorf("%w: token audience is required", domain.ErrConfiguration)
	case strings.TrimSpace(string(o.SigningKey)) == "":
		return fmt.Errorf("%w: token signing key is required", domain.ErrConfiguration)
	case len(o.SigningKey) < minSigningKeyBytes:
		return fmt.Errorf("%w: token signing key must be at least %d bytes", domain.ErrConfiguration, minSigningKeyBytes)
	case o.ExpiryMinutes < 1:
		return fmt.Errorf("%w: token expiry must be at least 1 minute", domain.ErrConfiguration)
	}
	return nil
}

type accessJWTClaims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// IssueAccessToken signs an HS256 access token for subject; exp is always iat + ExpiryMinutes.
func IssueAccessToken(subject uuid.UUID, email string, roles []string, opts TokenOptions, now time.Time) (string, ports.AccessClaims, error) {
	if err := opts.validate(); err != nil {
		return "", ports.AccessClaims{}, err
	}
	if subject == uuid.Nil {
		return "", ports.AccessClaims{}, fmt.Errorf("%w: token subject is required", domain.ErrInvalidInput)
	}

	issuedAt := now.UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(time.Duration(opts.ExpiryMinutes) * time.Minute)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessJWTClaims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			Issuer:    opts.Issuer,
			Audience:  jwt.ClaimStrings{opts.Audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(opts.SigningKey)
	if err != nil {
		return "", ports.AccessClaims{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, ports.AccessClaims{
		Subject:   subject,
		Email:     email,
		Issuer:    opts.Issuer,
		Audience:  opts.Audience,
		Roles:     roles,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateAccessToken checks structure, then signature, then claims.
// Any altered byte therefore fails as a bad signature before claims are read.
func ValidateAccessToken(raw string, opts TokenOptions, now time.Time) (ports.AccessClaims, error) {
	if err := opts.validate(); err != nil {
		return ports.AccessClaims{}, err
	}

	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ports.AccessClaims{}, fmt.Errorf("%w: expected three segments", domain.ErrTokenMalformed)
	}
	sig, err := base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil {
		return ports.AccessClaims{}, domain.ErrTokenBadSignature
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, opts.SigningKey); err != nil {
		return ports.AccessClaims{}, domain.ErrTokenBadSignature
	}

	parsed, err := jwt.ParseWithClaims(strings.Join(parts, "."), &accessJWTClaims{}, func(*jwt.Token) (any, error) {
		return opts.SigningKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(opts.Issuer),
		jwt.WithAudience(opts.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ports.AccessClaims{}, domain.ErrTokenExpired
		}
		return ports.AccessClaims{}, fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
	}
	claims, ok := parsed.Claims.(*accessJWTClaims)
	if !ok || !parsed.Valid || claims.IssuedAt == nil {
		return ports.AccessClaims{}, fmt.Errorf("%w: invalid token claims", domain.ErrTokenMalformed)
	}
	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ports.AccessClaims{}, fmt.Errorf("%w: parse sub: %v", domain.ErrTokenMalformed, err)
	}

	return ports.AccessClaims{
		Subject:   subject,
		Email:     claims.Email,
		Issuer:    claims.Issuer,
		Audience:  opts.Audience,
		Roles:     claims.Roles,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// JWTIssuer binds validated TokenOptions to a clock and implements ports.TokenIssuer.
type JWTIssuer struct {
	opts  TokenOptions
	nowFn func() time.Time
}

// NewJWTIssuer fails with domain.ErrConfiguration on unusable options; nil nowFn means wall clock.
func NewJWTIssuer(opts TokenOptions, nowFn func() time.Time) (*JWTIssuer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &JWTIssuer{opts: opts, nowFn: nowFn}, nil
}

func (i *JWTIssuer) Issue(subject uuid.UUID, email string, roles []string) (string, ports.AccessClaims, error) {
	return IssueAccessToken(subject, email, roles, i.opts, i.nowFn())
}

func (i *JWTIssuer) Validate(token string) (ports.AccessClaims, error) {
	return ValidateAccessToken(token, i.opts, i.nowFn())
}
