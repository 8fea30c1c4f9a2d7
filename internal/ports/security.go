package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// AccessClaims is the verified-identity claim set carried by an access token.
type AccessClaims struct {
	Subject   uuid.UUID `json:"sub"`
	Email     string    `json:"email"`
	Issuer    string    `json:"iss"`
	Audience  string    `json:"aud"`
	Roles     []string  `json:"roles"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// TokenIssuer mints and validates signed, time-limited access tokens.
// Issuer, audience and key are bound when the implementation is built.
type TokenIssuer interface {
	Issue(subject uuid.UUID, email string, roles []string) (token string, claims AccessClaims, err error)
	Validate(token string) (AccessClaims, error)
}

// TOTPEngine is the stateless time-based one-time-password engine.
type TOTPEngine interface {
	GenerateSecret() (string, error)
	ProvisioningURI(issuerLabel, accountLabel, secret string) (string, error)
	ValidateCode(secret, code string, at time.Time) bool
}

// DeviceStamp is the payload of a client-held remembered-device credential.
type DeviceStamp struct {
	UserID        uuid.UUID
	DeviceID      uuid.UUID
	SecurityStamp string
	ExpiresAt     time.Time
}

// DeviceStampSigner signs and verifies remembered-device stamps.
type DeviceStampSigner interface {
	Sign(stamp DeviceStamp) (string, error)
	Parse(raw string) (DeviceStamp, error)
}

// EmailSender hands an email to the delivery collaborator.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}
