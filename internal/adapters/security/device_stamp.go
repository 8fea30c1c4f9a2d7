package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/ports"
)

const deviceStampAudience = "remembered-device"

// DeviceStampSigner issues the client-held remembered-device credential.
// The server still checks the stamp against its device list and the user's security stamp.
type DeviceStampSigner struct {
	issuer string
	key    []byte
	nowFn  func() time.Time
}

func NewDeviceStampSigner(issuer, key string, nowFn func() time.Time) (*DeviceStampSigner, error) {
	if strings.TrimSpace(issuer) == "" || len(key) < minSigningKeyBytes {
		return nil, fmt.Errorf("%w: device stamp issuer and a %d byte key are required", domain.ErrConfiguration, minSigningKeyBytes)
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &DeviceStampSigner{issuer: strings.TrimSpace(issuer), key: []byte(key), nowFn: nowFn}, nil
}

type deviceStampClaims struct {
	DeviceID      string `json:"did"`
	SecurityStamp string `json:"sst"`
	jwt.RegisteredClaims
}

func (s *DeviceStampSigner) Sign(stamp ports.DeviceStamp) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, deviceStampClaims{
		DeviceID:      stamp.DeviceID.String(),
		SecurityStamp: stamp.SecurityStamp,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   stamp.UserID.String(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{deviceStampAudience},
			IssuedAt:  jwt.NewNumericDate(s.nowFn()),
			ExpiresAt: jwt.NewNumericDate(stamp.ExpiresAt),
		},
	})
	return token.SignedString(s.key)
}

// Parse verifies signature and expiry; every failure is domain.ErrUnauthorized.
func (s *DeviceStampSigner) Parse(raw string) (ports.DeviceStamp, error) {
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &deviceStampClaims{}, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(deviceStampAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.nowFn),
	)
	if err != nil {
		return ports.DeviceStamp{}, fmt.Errorf("%w: device stamp: %v", domain.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*deviceStampClaims)
	if !ok || !parsed.Valid {
		return ports.DeviceStamp{}, fmt.Errorf("%w: device stamp claims", domain.ErrUnauthorized)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ports.DeviceStamp{}, fmt.Errorf("%w: device stamp subject", domain.ErrUnauthorized)
	}
	deviceID, err := uuid.Parse(claims.DeviceID)
	if err != nil {
		return ports.DeviceStamp{}, fmt.Errorf("%w: device stamp id", domain.ErrUnauthorized)
	}
	return ports.DeviceStamp{
		UserID:        userID,
		DeviceID:      deviceID,
		SecurityStamp: claims.SecurityStamp,
		ExpiresAt:     claims.ExpiresAt.Time.UTC(),
	}, nil
}
