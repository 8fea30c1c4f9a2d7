package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Only authenticated-context operations surface it; anonymous flows answer success-shaped instead.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials hides whether the identifier or the password failed.
	// The reason is to prevent account-enumeration side channels.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidTwoFactorCode is returned when a TOTP or recovery code does not verify during sign-in.
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	// ErrInvalidOrUsedCode is returned when a recovery code is unknown or already redeemed.
	ErrInvalidOrUsedCode = errors.New("invalid or used recovery code")
	// ErrAccountLocked signals temporary lockout after repeated failed attempts.
	// This supports brute-force mitigation and a predictable user-facing response.
	ErrAccountLocked     = errors.New("account locked")
	ErrSessionExpired    = errors.New("session expired")
	ErrSessionConsumed   = errors.New("session already completed")
	ErrTooManyAttempts   = errors.New("too many second-factor attempts")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidState      = errors.New("invalid state")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limited")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
	// ErrConfiguration marks token-issuance settings that cannot be used safely.
	// Startup aborts on it because the service could not mint trustworthy tokens.
	ErrConfiguration = errors.New("configuration error")
)
