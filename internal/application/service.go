package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/ports"
)

// Service is the externally reachable operation set. It validates input shape,
// forwards to the credential store, recovery vault and sign-in orchestrator, and
// keeps no business rules of its own.
type Service struct {
	cfg         Config
	records     ports.SecurityRecordRepository
	resets      ports.PasswordResetRepository
	outbox      ports.OutboxRepository
	lockouts    ports.LockoutStore
	hasher      ports.PasswordHasher
	totp        ports.TOTPEngine
	tokens      ports.TokenIssuer
	email       ports.EmailSender
	credentials *CredentialStore
	vault       *RecoveryCodeVault
	signIn      *SignInOrchestrator
	events      *eventRecorder
	nowFn       func() time.Time
}

type Dependencies struct {
	Config            Config
	SecurityRecords   ports.SecurityRecordRepository
	RecoveryCodes     ports.RecoveryCodeRepository
	RememberedDevices ports.RememberedDeviceRepository
	PasswordResets    ports.PasswordResetRepository
	Outbox            ports.OutboxRepository
	Lockouts          ports.LockoutStore
	PendingSessions   ports.PendingTwoFactorStore
	Hasher            ports.PasswordHasher
	TOTP              ports.TOTPEngine
	Tokens            ports.TokenIssuer
	DeviceStamps      ports.DeviceStampSigner
	Email             ports.EmailSender
	// Clock overrides the UTC wall clock; tests use it to move across TOTP steps.
	Clock func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config.withDefaults()
	nowFn := deps.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}

	credentials := &CredentialStore{
		cfg:      cfg,
		records:  deps.SecurityRecords,
		devices:  deps.RememberedDevices,
		lockouts: deps.Lockouts,
		hasher:   deps.Hasher,
		totp:     deps.TOTP,
		stamps:   deps.DeviceStamps,
		nowFn:    nowFn,
	}
	vault := &RecoveryCodeVault{
		cfg:     cfg,
		records: deps.SecurityRecords,
		codes:   deps.RecoveryCodes,
		nowFn:   nowFn,
	}
	events := &eventRecorder{outbox: deps.Outbox, nowFn: nowFn}

	return &Service{
		cfg:         cfg,
		records:     deps.SecurityRecords,
		resets:      deps.PasswordResets,
		outbox:      deps.Outbox,
		lockouts:    deps.Lockouts,
		hasher:      deps.Hasher,
		totp:        deps.TOTP,
		tokens:      deps.Tokens,
		email:       deps.Email,
		credentials: credentials,
		vault:       vault,
		signIn: &SignInOrchestrator{
			cfg:         cfg,
			credentials: credentials,
			vault:       vault,
			records:     deps.SecurityRecords,
			pending:     deps.PendingSessions,
			totp:        deps.TOTP,
			tokens:      deps.Tokens,
			events:      events,
			nowFn:       nowFn,
		},
		events: events,
		nowFn:  nowFn,
	}
}

func (s *Service) RecoveryCodes() *RecoveryCodeVault {
	return s.vault
}

func (s *Service) SignIn(ctx context.Context, req LoginRequest) (SignInResult, error) {
	if strings.TrimSpace(req.Identifier) == "" {
		return SignInResult{State: domain.SignInAwaitingPrimary}, fmt.Errorf("%w: identifier is required", domain.ErrInvalidInput)
	}
	if req.Password == "" {
		return SignInResult{State: domain.SignInAwaitingPrimary}, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	return s.signIn.SignIn(ctx, SignInInput{
		Identifier:      req.Identifier,
		Password:        req.Password,
		RememberMachine: req.RememberMachine,
		DeviceStamp:     req.DeviceStamp,
	})
}

func (s *Service) CompleteTwoFactorSignIn(ctx context.Context, req SecondFactorRequest) (SignInResult, error) {
	if strings.TrimSpace(req.PendingToken) == "" {
		return SignInResult{State: domain.SignInFailed}, fmt.Errorf("%w: pending_token is required", domain.ErrInvalidInput)
	}
	return s.signIn.CompleteSecondFactor(ctx, req.PendingToken, domain.TOTPAttempt(req.Code), req.RememberMachine)
}

func (s *Service) CompleteRecoveryCodeSignIn(ctx context.Context, req SecondFactorRequest) (SignInResult, error) {
	if strings.TrimSpace(req.PendingToken) == "" {
		return SignInResult{State: domain.SignInFailed}, fmt.Errorf("%w: pending_token is required", domain.ErrInvalidInput)
	}
	return s.signIn.CompleteSecondFactor(ctx, req.PendingToken, domain.RecoveryAttempt(req.Code), req.RememberMachine)
}

func (s *Service) AbandonSignIn(ctx context.Context, pendingToken string) error {
	if strings.TrimSpace(pendingToken) == "" {
		return fmt.Errorf("%w: pending_token is required", domain.ErrInvalidInput)
	}
	return s.signIn.Abandon(ctx, pendingToken)
}

// ValidateToken verifies an access token for resource servers.
func (s *Service) ValidateToken(_ context.Context, token string) (ports.AccessClaims, error) {
	if strings.TrimSpace(token) == "" {
		return ports.AccessClaims{}, fmt.Errorf("%w: token is required", domain.ErrTokenMalformed)
	}
	return s.tokens.Validate(token)
}

func requireUserID(userID uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	return nil
}
