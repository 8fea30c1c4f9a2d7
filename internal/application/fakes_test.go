package application_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/adapters/security"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/ports"
)

const (
	testSigningKey = "0123456789abcdef0123456789abcdef-test"
	testPassword   = "CorrectHorse42!"
)

type fixture struct {
	service  *application.Service
	clock    *testClock
	records  *fakeRecords
	codes    *fakeRecoveryCodes
	devices  *fakeDevices
	resets   *fakeResets
	outbox   *fakeOutbox
	pending  *fakePending
	email    *fakeEmail
	lockouts *fakeLockouts
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithConfig(t, application.Config{})
}

func newFixtureWithConfig(t *testing.T, cfg application.Config) *fixture {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 5, 4, 8, 30, 15, 0, time.UTC)}
	opts, err := security.NewTokenOptions("https://auth.test", "mesh-api", testSigningKey, 5)
	if err != nil {
		t.Fatalf("token options: %v", err)
	}
	issuer, err := security.NewJWTIssuer(opts, clock.Now)
	if err != nil {
		t.Fatalf("jwt issuer: %v", err)
	}
	stamps, err := security.NewDeviceStampSigner("https://auth.test", testSigningKey, clock.Now)
	if err != nil {
		t.Fatalf("device stamp signer: %v", err)
	}

	f := &fixture{
		clock:    clock,
		records:  &fakeRecords{byID: map[uuid.UUID]domain.UserSecurityRecord{}},
		codes:    &fakeRecoveryCodes{byUser: map[uuid.UUID][]fakeCode{}},
		devices:  &fakeDevices{byUser: map[uuid.UUID]map[uuid.UUID]domain.RememberedDevice{}},
		resets:   &fakeResets{byHash: map[string]fakeReset{}},
		outbox:   &fakeOutbox{},
		pending:  &fakePending{items: map[string]domain.PendingTwoFactorSession{}},
		email:    &fakeEmail{},
		lockouts: &fakeLockouts{state: map[string]ports.LockoutState{}},
	}
	f.service = application.NewService(application.Dependencies{
		Config:            cfg,
		SecurityRecords:   f.records,
		RecoveryCodes:     f.codes,
		RememberedDevices: f.devices,
		PasswordResets:    f.resets,
		Outbox:            f.outbox,
		Lockouts:          f.lockouts,
		PendingSessions:   f.pending,
		Hasher:            fakeHasher{},
		TOTP:              security.NewTOTPEngine(),
		Tokens:            issuer,
		DeviceStamps:      stamps,
		Email:             f.email,
		Clock:             clock.Now,
	})
	return f
}

// addUser seeds a confirmed account; a non-empty secret provisions an authenticator and enables 2FA.
func (f *fixture) addUser(email, userName, secret string) domain.UserSecurityRecord {
	rec := domain.UserSecurityRecord{
		UserID:           uuid.New(),
		Email:            email,
		UserName:         userName,
		PasswordHash:     fakeHash(testPassword),
		SecurityStamp:    uuid.NewString(),
		EmailConfirmed:   true,
		TwoFactorEnabled: secret != "",
		TOTPSecret:       secret,
		Roles:            []string{"member"},
		CreatedAt:        f.clock.Now(),
		UpdatedAt:        f.clock.Now(),
	}
	f.records.put(rec)
	return rec
}

func newTOTPSecret(t *testing.T) string {
	t.Helper()
	secret, err := security.NewTOTPEngine().GenerateSecret()
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	return secret
}

func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	return code
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeHasher struct{}

func fakeHash(password string) string { return "hashed:" + password }

func (fakeHasher) Hash(password string) (string, error) { return fakeHash(password), nil }

func (fakeHasher) Compare(hash, password string) error {
	if hash != fakeHash(password) {
		return domain.ErrInvalidCredentials
	}
	return nil
}

type fakeRecords struct {
	mu   sync.Mutex
	byID map[uuid.UUID]domain.UserSecurityRecord
}

func (f *fakeRecords) put(rec domain.UserSecurityRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[rec.UserID] = rec
}

func (f *fakeRecords) get(userID uuid.UUID) domain.UserSecurityRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[userID]
}

func (f *fakeRecords) GetByID(_ context.Context, userID uuid.UUID) (domain.UserSecurityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[userID]
	if !ok {
		return domain.UserSecurityRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRecords) GetByLogin(_ context.Context, identifier string) (domain.UserSecurityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.byID {
		if strings.EqualFold(rec.Email, identifier) || strings.EqualFold(rec.UserName, identifier) {
			return rec, nil
		}
	}
	return domain.UserSecurityRecord{}, domain.ErrNotFound
}

func (f *fakeRecords) GetByEmail(_ context.Context, email string) (domain.UserSecurityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.byID {
		if strings.EqualFold(rec.Email, email) {
			return rec, nil
		}
	}
	return domain.UserSecurityRecord{}, domain.ErrNotFound
}

func (f *fakeRecords) SetTOTPSecretIfEmpty(_ context.Context, userID uuid.UUID, secret string, updatedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[userID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if rec.TOTPSecret != "" {
		return false, nil
	}
	rec.TOTPSecret = secret
	rec.UpdatedAt = updatedAt
	f.byID[userID] = rec
	return true, nil
}

func (f *fakeRecords) ReplaceTOTPSecret(_ context.Context, userID uuid.UUID, secret, securityStamp string, updatedAt time.Time) error {
	return f.update(userID, func(rec *domain.UserSecurityRecord) {
		rec.TOTPSecret = secret
		rec.SecurityStamp = securityStamp
		rec.UpdatedAt = updatedAt
	})
}

func (f *fakeRecords) SetTwoFactorEnabled(_ context.Context, userID uuid.UUID, enabled bool, updatedAt time.Time) error {
	return f.update(userID, func(rec *domain.UserSecurityRecord) {
		rec.TwoFactorEnabled = enabled
		rec.UpdatedAt = updatedAt
	})
}

func (f *fakeRecords) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash, securityStamp string, updatedAt time.Time) error {
	return f.update(userID, func(rec *domain.UserSecurityRecord) {
		rec.PasswordHash = passwordHash
		rec.SecurityStamp = securityStamp
		rec.UpdatedAt = updatedAt
	})
}

func (f *fakeRecords) update(userID uuid.UUID, mutate func(*domain.UserSecurityRecord)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[userID]
	if !ok {
		return domain.ErrNotFound
	}
	mutate(&rec)
	f.byID[userID] = rec
	return nil
}

type fakeCode struct {
	hash string
	used bool
}

type fakeRecoveryCodes struct {
	mu     sync.Mutex
	byUser map[uuid.UUID][]fakeCode
}

func (f *fakeRecoveryCodes) Replace(_ context.Context, userID uuid.UUID, codeHashes []string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	codes := make([]fakeCode, 0, len(codeHashes))
	for _, h := range codeHashes {
		codes = append(codes, fakeCode{hash: h})
	}
	f.byUser[userID] = codes
	return nil
}

func (f *fakeRecoveryCodes) Consume(_ context.Context, userID uuid.UUID, codeHash string, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	codes := f.byUser[userID]
	for i := range codes {
		if codes[i].hash == codeHash && !codes[i].used {
			codes[i].used = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRecoveryCodes) CountRemaining(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.byUser[userID] {
		if !c.used {
			n++
		}
	}
	return n, nil
}

type fakeDevices struct {
	mu     sync.Mutex
	byUser map[uuid.UUID]map[uuid.UUID]domain.RememberedDevice
}

func (f *fakeDevices) Put(_ context.Context, device domain.RememberedDevice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byUser[device.UserID] == nil {
		f.byUser[device.UserID] = map[uuid.UUID]domain.RememberedDevice{}
	}
	f.byUser[device.UserID][device.DeviceID] = device
	return nil
}

func (f *fakeDevices) Get(_ context.Context, userID, deviceID uuid.UUID) (domain.RememberedDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	device, ok := f.byUser[userID][deviceID]
	if !ok {
		return domain.RememberedDevice{}, domain.ErrNotFound
	}
	return device, nil
}

func (f *fakeDevices) DeleteAllForUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byUser, userID)
	return nil
}

func (f *fakeDevices) count(userID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byUser[userID])
}

type fakeReset struct {
	userID    uuid.UUID
	expiresAt time.Time
	used      bool
}

type fakeResets struct {
	mu     sync.Mutex
	byHash map[string]fakeReset
}

func (f *fakeResets) CreatePasswordResetToken(_ context.Context, userID uuid.UUID, tokenHash string, _, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byHash[tokenHash] = fakeReset{userID: userID, expiresAt: expiresAt}
	return nil
}

func (f *fakeResets) ConsumePasswordResetToken(_ context.Context, userID uuid.UUID, tokenHash string, usedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byHash[tokenHash]
	if !ok || r.used || r.userID != userID || !usedAt.Before(r.expiresAt) {
		return domain.ErrNotFound
	}
	r.used = true
	f.byHash[tokenHash] = r
	return nil
}

func (f *fakeResets) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byHash)
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []ports.OutboxEvent
}

func (f *fakeOutbox) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}
func (f *fakeOutbox) ClaimUnpublished(context.Context, int, string, time.Time) ([]ports.OutboxRecord, error) {
	return nil, nil
}
func (f *fakeOutbox) MarkPublished(context.Context, uuid.UUID, string, time.Time) error { return nil }
func (f *fakeOutbox) MarkFailed(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}
func (f *fakeOutbox) MarkDeadLettered(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}

func (f *fakeOutbox) count(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type fakeLockouts struct {
	mu    sync.Mutex
	state map[string]ports.LockoutState
}

func (f *fakeLockouts) Get(_ context.Context, key string) (ports.LockoutState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[key], nil
}

func (f *fakeLockouts) RecordFailure(_ context.Context, key string, now time.Time, threshold int, lockoutWindow time.Duration) (ports.LockoutState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.state[key]
	st.FailedCount++
	if st.FailedCount >= threshold {
		lockUntil := now.Add(lockoutWindow)
		st.LockedUntil = &lockUntil
	}
	f.state[key] = st
	return st, nil
}

func (f *fakeLockouts) Clear(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.state, key)
	return nil
}

type fakePending struct {
	mu    sync.Mutex
	items map[string]domain.PendingTwoFactorSession
}

func (f *fakePending) Put(_ context.Context, token string, session domain.PendingTwoFactorSession, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[token] = session
	return nil
}

func (f *fakePending) Get(_ context.Context, token string) (*domain.PendingTwoFactorSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.items[token]
	if !ok {
		return nil, nil
	}
	cp := v
	return &cp, nil
}

func (f *fakePending) RecordFailure(_ context.Context, token string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.items[token]
	if !ok {
		return 0, nil
	}
	v.Attempts++
	f.items[token] = v
	return v.Attempts, nil
}

func (f *fakePending) Consume(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[token]; !ok {
		return false, nil
	}
	delete(f.items, token)
	return true, nil
}

func (f *fakePending) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (f *fakeEmail) SendEmail(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeEmail) messages() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail(nil), f.sent...)
}
