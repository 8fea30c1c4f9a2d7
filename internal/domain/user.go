package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserSecurityRecord is the per-account security state owned by the credential store.
// It never crosses the service boundary whole; callers only see projections of it.
type UserSecurityRecord struct {
	UserID           uuid.UUID
	Email            string
	UserName         string
	PasswordHash     string
	SecurityStamp    string
	EmailConfirmed   bool
	TwoFactorEnabled bool
	TOTPSecret       string
	Roles            []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasAuthenticator reports whether a TOTP shared secret has been provisioned.
func (r UserSecurityRecord) HasAuthenticator() bool {
	return r.TOTPSecret != ""
}

// Principal projects the record into the identity handed to callers after sign-in.
func (r UserSecurityRecord) Principal() AuthenticatedPrincipal {
	roles := make([]string, len(r.Roles))
	copy(roles, r.Roles)
	return AuthenticatedPrincipal{
		UserID:   r.UserID,
		Email:    r.Email,
		UserName: r.UserName,
		Roles:    roles,
	}
}

// AuthenticatedPrincipal is the verified identity returned with an access token.
type AuthenticatedPrincipal struct {
	UserID   uuid.UUID
	Email    string
	UserName string
	Roles    []string
}

// RememberedDevice is a client exempted from the second factor until ExpiresAt.
// SecurityStamp pins the trust to the account state it was granted under.
type RememberedDevice struct {
	DeviceID      uuid.UUID
	UserID        uuid.UUID
	SecurityStamp string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

func (d RememberedDevice) TrustedAt(now time.Time, currentStamp string) bool {
	return d.SecurityStamp == currentStamp && now.Before(d.ExpiresAt)
}
