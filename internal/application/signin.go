package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/ports"
)

type SignInInput struct {
	Identifier      string
	Password        string
	RememberMachine bool
	DeviceStamp     string
}

// SignInOrchestrator drives one login attempt through
// AwaitingPrimary -> PrimaryVerified -> [AwaitingSecondFactor ->] Authenticated | Failed.
type SignInOrchestrator struct {
	cfg         Config
	credentials *CredentialStore
	vault       *RecoveryCodeVault
	records     ports.SecurityRecordRepository
	pending     ports.PendingTwoFactorStore
	totp        ports.TOTPEngine
	tokens      ports.TokenIssuer
	events      *eventRecorder
	nowFn       func() time.Time
}

// SignIn verifies primary credentials. It authenticates directly when 2FA is off or the
// device stamp is still trusted; otherwise it opens a pending second-factor session.
func (o *SignInOrchestrator) SignIn(ctx context.Context, in SignInInput) (SignInResult, error) {
	userID, err := o.credentials.VerifyPrimaryCredentials(ctx, in.Identifier, in.Password)
	if err != nil {
		logSignIn(ctx, "verify_primary", "failure", uuid.Nil, err)
		return SignInResult{State: domain.SignInAwaitingPrimary}, err
	}

	rec, err := o.records.GetByID(ctx, userID)
	if err != nil {
		return SignInResult{State: domain.SignInPrimaryVerified}, fmt.Errorf("load security record: %w", err)
	}
	if !rec.TwoFactorEnabled {
		return o.authenticate(ctx, rec, false, "password")
	}

	remembered, err := o.credentials.IsDeviceRemembered(ctx, userID, in.DeviceStamp)
	if err != nil {
		return SignInResult{State: domain.SignInPrimaryVerified}, err
	}
	if remembered {
		res, err := o.authenticate(ctx, rec, false, "remembered_device")
		if err == nil {
			res.DeviceStamp = in.DeviceStamp
		}
		return res, err
	}

	now := o.nowFn()
	token := uuid.NewString()
	session := domain.PendingTwoFactorSession{
		UserID:          userID,
		RememberMachine: in.RememberMachine,
		CreatedAt:       now,
		ExpiresAt:       now.Add(o.cfg.PendingTwoFactorTTL),
	}
	if err := o.pending.Put(ctx, token, session, o.cfg.PendingTwoFactorTTL); err != nil {
		return SignInResult{State: domain.SignInPrimaryVerified}, fmt.Errorf("store pending two-factor session: %w", err)
	}

	o.events.record(ctx, eventTypeTwoFactorRequired, userID, nil)
	logSignIn(ctx, "verify_primary", "second_factor_required", userID, nil)
	expiresAt := session.ExpiresAt
	return SignInResult{
		State:             domain.SignInAwaitingSecondFactor,
		PendingToken:      token,
		PendingExpiresAt:  &expiresAt,
		AttemptsRemaining: o.cfg.MaxSecondFactorAttempts,
	}, nil
}

// CompleteSecondFactor validates a TOTP or recovery code against a pending session.
// The session is consumed atomically only after a code verifies, so of several
// concurrent correct submissions exactly one reaches Authenticated.
func (o *SignInOrchestrator) CompleteSecondFactor(ctx context.Context, pendingToken string, attempt domain.SecondFactorAttempt, rememberMachine bool) (SignInResult, error) {
	session, err := o.pending.Get(ctx, pendingToken)
	if err != nil {
		return SignInResult{State: domain.SignInAwaitingSecondFactor}, fmt.Errorf("load pending two-factor session: %w", err)
	}
	if session == nil {
		return SignInResult{State: domain.SignInFailed}, domain.ErrSessionExpired
	}
	if session.ExpiredAt(o.nowFn()) {
		o.discard(ctx, pendingToken)
		return SignInResult{State: domain.SignInFailed}, domain.ErrSessionExpired
	}
	if err := attempt.Validate(); err != nil {
		return o.rejectAttempt(ctx, pendingToken, *session, attempt, err)
	}

	rec, err := o.records.GetByID(ctx, session.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		o.discard(ctx, pendingToken)
		return SignInResult{State: domain.SignInFailed}, domain.ErrSessionExpired
	}
	if err != nil {
		return SignInResult{State: domain.SignInAwaitingSecondFactor}, fmt.Errorf("load security record: %w", err)
	}

	valid, err := o.verifyAttempt(ctx, rec, attempt)
	if err != nil {
		return SignInResult{State: domain.SignInAwaitingSecondFactor}, err
	}
	if !valid {
		return o.rejectAttempt(ctx, pendingToken, *session, attempt, domain.ErrInvalidTwoFactorCode)
	}

	consumed, err := o.pending.Consume(ctx, pendingToken)
	if err != nil {
		return SignInResult{State: domain.SignInAwaitingSecondFactor}, fmt.Errorf("consume pending two-factor session: %w", err)
	}
	if !consumed {
		return SignInResult{State: domain.SignInFailed}, domain.ErrSessionConsumed
	}
	return o.authenticate(ctx, rec, rememberMachine || session.RememberMachine, string(attempt.Kind))
}

// Abandon destroys a pending session; unknown tokens are ignored.
func (o *SignInOrchestrator) Abandon(ctx context.Context, pendingToken string) error {
	if _, err := o.pending.Consume(ctx, pendingToken); err != nil {
		return fmt.Errorf("abandon pending two-factor session: %w", err)
	}
	return nil
}

func (o *SignInOrchestrator) verifyAttempt(ctx context.Context, rec domain.UserSecurityRecord, attempt domain.SecondFactorAttempt) (bool, error) {
	switch attempt.Kind {
	case domain.SecondFactorTOTP:
		if !rec.HasAuthenticator() {
			return false, nil
		}
		return o.totp.ValidateCode(rec.TOTPSecret, attempt.Code, o.nowFn()), nil
	case domain.SecondFactorRecovery:
		err := o.vault.Redeem(ctx, rec.UserID, attempt.Code)
		if errors.Is(err, domain.ErrInvalidOrUsedCode) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		o.events.record(ctx, eventTypeRecoveryRedeemed, rec.UserID, map[string]any{"context": "sign_in"})
		return true, nil
	default:
		return false, fmt.Errorf("%w: unsupported second factor %q", domain.ErrInvalidInput, attempt.Kind)
	}
}

// rejectAttempt counts a failed code. The session survives until the attempt bound,
// after which it is destroyed and the login fails.
func (o *SignInOrchestrator) rejectAttempt(ctx context.Context, pendingToken string, session domain.PendingTwoFactorSession, attempt domain.SecondFactorAttempt, cause error) (SignInResult, error) {
	attempts, err := o.pending.RecordFailure(ctx, pendingToken)
	if err != nil {
		return SignInResult{State: domain.SignInAwaitingSecondFactor}, fmt.Errorf("record second-factor failure: %w", err)
	}
	if attempts == 0 {
		return SignInResult{State: domain.SignInFailed}, domain.ErrSessionExpired
	}

	o.events.record(ctx, eventTypeSecondFactorFailed, session.UserID, map[string]any{
		"method":   string(attempt.Kind),
		"attempts": attempts,
	})
	logSignIn(ctx, "complete_second_factor", "failure", session.UserID, cause)

	if attempts >= o.cfg.MaxSecondFactorAttempts {
		o.discard(ctx, pendingToken)
		return SignInResult{State: domain.SignInFailed}, domain.ErrTooManyAttempts
	}
	return SignInResult{
		State:             domain.SignInAwaitingSecondFactor,
		AttemptsRemaining: o.cfg.MaxSecondFactorAttempts - attempts,
	}, cause
}

func (o *SignInOrchestrator) authenticate(ctx context.Context, rec domain.UserSecurityRecord, rememberMachine bool, method string) (SignInResult, error) {
	token, claims, err := o.tokens.Issue(rec.UserID, rec.Email, rec.Roles)
	if err != nil {
		return SignInResult{State: domain.SignInFailed}, fmt.Errorf("issue access token: %w", err)
	}

	principal := rec.Principal()
	expiresAt := claims.ExpiresAt
	res := SignInResult{
		State:       domain.SignInAuthenticated,
		AccessToken: token,
		ExpiresAt:   &expiresAt,
		Principal:   &principal,
	}
	if rememberMachine {
		stamp, err := o.credentials.MarkDeviceRemembered(ctx, rec.UserID, o.cfg.DeviceTrustTTL)
		if err != nil {
			// The login already succeeded; the client just has to pass 2FA next time.
			logSignIn(ctx, "remember_device", "failure", rec.UserID, err)
		} else {
			res.DeviceStamp = stamp
		}
	}

	o.events.record(ctx, eventTypeSignInSucceeded, rec.UserID, map[string]any{"method": method})
	logSignIn(ctx, "authenticate", "success", rec.UserID, nil)
	return res, nil
}

func (o *SignInOrchestrator) discard(ctx context.Context, pendingToken string) {
	if _, err := o.pending.Consume(ctx, pendingToken); err != nil {
		logSignIn(ctx, "discard_pending", "failure", uuid.Nil, err)
	}
}

func logSignIn(ctx context.Context, operation, outcome string, userID uuid.UUID, err error) {
	attrs := []any{
		"service", serviceName,
		"module", "signin",
		"layer", "application",
		"operation", operation,
		"outcome", outcome,
	}
	if userID != uuid.Nil {
		attrs = append(attrs, "user_id", userID.String())
	}
	if err != nil {
		attrs = append(attrs, "error", err)
		slog.Default().WarnContext(ctx, "sign-in transition", attrs...)
		return
	}
	slog.Default().InfoContext(ctx, "sign-in transition", attrs...)
}
