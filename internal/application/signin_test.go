package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
)

func TestSignInWithoutTwoFactorIssuesToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser("alice@example.com", "alice", "")

	res, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "alice@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if res.State != domain.SignInAuthenticated {
		t.Fatalf("expected authenticated, got %s", res.State)
	}
	if res.AccessToken == "" || res.ExpiresAt == nil {
		t.Fatalf("expected access token with expiry")
	}
	if want := f.clock.Now().Add(5 * time.Minute); !res.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, res.ExpiresAt)
	}
	if res.Principal == nil || res.Principal.UserID != alice.UserID {
		t.Fatalf("unexpected principal %+v", res.Principal)
	}

	claims, err := f.service.ValidateToken(ctx, res.AccessToken)
	if err != nil {
		t.Fatalf("validate token failed: %v", err)
	}
	if claims.Subject != alice.UserID || claims.Email != alice.Email {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if f.outbox.count("auth.signin.succeeded") != 1 {
		t.Fatalf("expected one sign-in audit event")
	}
}

func TestSignInAcceptsUserNameCaseInsensitively(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addUser("carol@example.com", "Carol", "")

	res, err := f.service.SignIn(context.Background(), application.LoginRequest{Identifier: "CAROL", Password: testPassword})
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if res.State != domain.SignInAuthenticated {
		t.Fatalf("expected authenticated, got %s", res.State)
	}
}

func TestSignInUnknownUserAndWrongPasswordLookAlike(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.addUser("alice@example.com", "alice", "")

	_, errWrong := f.service.SignIn(ctx, application.LoginRequest{Identifier: "alice@example.com", Password: "WrongHorse42!"})
	_, errUnknown := f.service.SignIn(ctx, application.LoginRequest{Identifier: "nobody@example.com", Password: testPassword})
	if !errors.Is(errWrong, domain.ErrInvalidCredentials) || !errors.Is(errUnknown, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for both, got %v and %v", errWrong, errUnknown)
	}
	if errWrong.Error() != errUnknown.Error() {
		t.Fatalf("error messages differ: %q vs %q", errWrong, errUnknown)
	}
}

func TestSignInLocksIdentifierAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	f := newFixtureWithConfig(t, application.Config{FailedLoginThreshold: 3, LockoutDuration: 15 * time.Minute})
	ctx := context.Background()
	f.addUser("alice@example.com", "alice", "")

	for i := 0; i < 3; i++ {
		if _, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "alice@example.com", Password: "WrongHorse42!"}); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i, err)
		}
	}
	if _, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "alice@example.com", Password: testPassword}); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected account locked, got %v", err)
	}

	f.clock.Advance(16 * time.Minute)
	if _, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "alice@example.com", Password: testPassword}); err != nil {
		t.Fatalf("expected sign in after lockout window, got %v", err)
	}
}

func TestSignInWithTOTPRejectsReplayAfterTwoSteps(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	secret := newTOTPSecret(t)
	f.addUser("bob@example.com", "bob", secret)

	first, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "bob@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if first.State != domain.SignInAwaitingSecondFactor || first.PendingToken == "" {
		t.Fatalf("expected pending second factor, got %+v", first)
	}
	if f.outbox.count("auth.2fa.required") != 1 {
		t.Fatalf("expected 2fa required event")
	}

	code := totpCode(t, secret, f.clock.Now())
	done, err := f.service.CompleteTwoFactorSignIn(ctx, application.SecondFactorRequest{PendingToken: first.PendingToken, Code: code})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if done.State != domain.SignInAuthenticated || done.AccessToken == "" {
		t.Fatalf("expected authenticated, got %+v", done)
	}

	f.clock.Advance(60 * time.Second)
	if totpCode(t, secret, f.clock.Now().Add(-30*time.Second)) == code ||
		totpCode(t, secret, f.clock.Now()) == code ||
		totpCode(t, secret, f.clock.Now().Add(30*time.Second)) == code {
		t.Skip("code collision across steps")
	}
	second, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "bob@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("second sign in failed: %v", err)
	}
	res, err := f.service.CompleteTwoFactorSignIn(ctx, application.SecondFactorRequest{PendingToken: second.PendingToken, Code: code})
	if !errors.Is(err, domain.ErrInvalidTwoFactorCode) {
		t.Fatalf("expected invalid code for stale code, got %v", err)
	}
	if res.State != domain.SignInAwaitingSecondFactor {
		t.Fatalf("expected to remain awaiting second factor, got %s", res.State)
	}
}

func TestWrongCodeKeepsSessionAndCountsAttempts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	secret := newTOTPSecret(t)
	f.addUser("bob@example.com", "bob", secret)

	pending, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "bob", Password: testPassword})
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	wrong := wrongCode(t, secret, f.clock.Now())

	res, err := f.service.CompleteTwoFactorSignIn(ctx, application.SecondFactorRequest{PendingToken: pending.PendingToken, Code: wrong})
	if !errors.Is(err, domain.ErrInvalidTwoFactorCode) {
		t.Fatalf("expected invalid code, got %v", err)
	}
	if res.State != domain.SignInAwaitingSecondFactor || res.AttemptsRemaining != 4 {
		t.Fatalf("unexpected result %+v", res)
	}

	ok, err := f.service.CompleteTwoFactorSignIn(ctx, application.SecondFactorRequest{
		PendingToken: pending.PendingToken,
		Code:         totpCode(t, secret, f.clock.Now()),
	})
	if err != nil || ok.State != domain.SignInAuthenticated {
		t.Fatalf("expected success after retry, got %+v, %v", ok, err)
	}
	if f.outbox.count("auth.2fa.failed") != 1 {
		t.Fatalf("expected one failure event")
	}
}

func TestAttemptBoundDestroysSession(t *testing.T) {
	t.Parallel()

	f := newFixtureWithConfig(t, application.Config{MaxSecondFactorAttempts: 3})
	ctx := context.Background()
	secret := newTOTPSecret(t)
	f.addUser("bob@example.com", "bob", secret)

	pending, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "bob", Password: testPassword})
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	wrong := wrongCode(t, secret, f.clock.Now())
	for i := 0; i < 2; i++ {
		if _, err := f.service.CompleteTwoFactorSignIn(ctx, application.SecondFactorRequest{PendingToken: pending.PendingToken, Code: wrong}); !errors.Is(err, domain.ErrInvalidTwoFactorCode) {
			t.Fatalf("attempt %d: expected invalid code, got %v", i, err)
		}
	}
	res, err := f.service.CompleteTwoFactorSignIn(ctx, application.SecondFactorRequest{PendingToken: pending.PendingToken, Code: wrong})
	if !errors.Is(err, domain.ErrTooManyAttempts) || res.State != domain.SignInFailed {
		t.Fatalf("expected too many attempts, got %+v, %v", res, err)
	}

	_, err = f.service.CompleteTwoFactorSignIn(ctx, application.SecondFactorRequest{
		PendingToken: pending.PendingToken,
		Code:         totpCode(t, secret, f.clock.Now()),
	})
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected destroyed session, got %v", err)
	}
}

func TestExpiredPendingSessionFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	secret := newTOTPSecret(t)
	f.addUser("bob@example.com", "bob", secret)

	pending, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "bob", Password: testPassword})
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	f.clock.Advance(5*time.Minute + time.Second)

	res, err := f.service.CompleteTwoFactorSignIn(ctx, application.SecondFactorRequest{
		PendingToken: pending.PendingToken,
		Code:         totpCode(t, secret, f.clock.Now()),
	})
	if !errors.Is(err, domain.ErrSessionExpired) || res.State != domain.SignInFailed {
		t.Fatalf("expected expired session, got %+v, %v", res, err)
	}
	if f.pending.size() != 0 {
		t.Fatalf("expected expired session to be discarded")
	}
}

func TestConcurrentCompletionAuthenticatesOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	secret := newTOTPSecret(t)
	f.addUser("bob@example.com", "bob", secret)

	pending, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "bob", Password: testPassword})
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	code := totpCode(t, secret, f.clock.Now())

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		consumed int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.service.CompleteTwoFactorSignIn(ctx, application.SecondFactorRequest{PendingToken: pending.PendingToken, Code: code})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && res.State == domain.SignInAuthenticated:
				success++
			case errors.Is(err, domain.ErrSessionConsumed), errors.Is(err, domain.ErrSessionExpired):
				consumed++
			default:
				t.Errorf("unexpected outcome %+v, %v", res, err)
			}
		}()
	}
	wg.Wait()

	if success != 1 || consumed != workers-1 {
		t.Fatalf("expected exactly one success, got success=%d consumed=%d", success, consumed)
	}
}

func TestRememberedDeviceSkipsSecondFactor(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	secret := newTOTPSecret(t)
	bob := f.addUser("bob@example.com", "bob", secret)

	pending, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "bob", Password: testPassword})
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	done, err := f.service.CompleteTwoFactorSignIn(ctx, application.SecondFactorRequest{
		PendingToken:    pending.PendingToken,
		Code:            totpCode(t, secret, f.clock.Now()),
		RememberMachine: true,
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if done.DeviceStamp == "" {
		t.Fatalf("expected a device stamp")
	}

	again, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "bob", Password: testPassword, DeviceStamp: done.DeviceStamp})
	if err != nil {
		t.Fatalf("remembered sign in failed: %v", err)
	}
	if again.State != domain.SignInAuthenticated || again.DeviceStamp != done.DeviceStamp {
		t.Fatalf("expected direct authentication, got %+v", again)
	}

	status, err := f.service.TwoFactorStatus(ctx, bob.UserID, done.DeviceStamp)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !status.IsMachineRemembered {
		t.Fatalf("expected machine to be remembered")
	}

	if err := f.service.ForgetTwoFactorClient(ctx, bob.UserID); err != nil {
		t.Fatalf("forget client failed: %v", err)
	}
	after, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "bob", Password: testPassword, DeviceStamp: done.DeviceStamp})
	if err != nil {
		t.Fatalf("sign in after forget failed: %v", err)
	}
	if after.State != domain.SignInAwaitingSecondFactor {
		t.Fatalf("expected second factor after forgetting device, got %s", after.State)
	}
}

func TestRememberMachineFlagFromPrimaryStepIsHonoured(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	secret := newTOTPSecret(t)
	bob := f.addUser("bob@example.com", "bob", secret)

	pending, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "bob", Password: testPassword, RememberMachine: true})
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	done, err := f.service.CompleteTwoFactorSignIn(ctx, application.SecondFactorRequest{
		PendingToken: pending.PendingToken,
		Code:         totpCode(t, secret, f.clock.Now()),
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if done.DeviceStamp == "" || f.devices.count(bob.UserID) != 1 {
		t.Fatalf("expected remembered device to be stored")
	}
}

func TestRecoveryCodeCompletesSignIn(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	bob := f.addUser("bob@example.com", "bob", newTOTPSecret(t))

	codes, err := f.service.GenerateRecoveryCodes(ctx, bob.UserID)
	if err != nil {
		t.Fatalf("generate codes failed: %v", err)
	}
	pending, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "bob", Password: testPassword})
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}

	res, err := f.service.CompleteRecoveryCodeSignIn(ctx, application.SecondFactorRequest{PendingToken: pending.PendingToken, Code: codes[0]})
	if err != nil || res.State != domain.SignInAuthenticated {
		t.Fatalf("expected authenticated, got %+v, %v", res, err)
	}

	again, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "bob", Password: testPassword})
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if _, err := f.service.CompleteRecoveryCodeSignIn(ctx, application.SecondFactorRequest{PendingToken: again.PendingToken, Code: codes[0]}); !errors.Is(err, domain.ErrInvalidTwoFactorCode) {
		t.Fatalf("expected used code to be rejected, got %v", err)
	}
}

func TestAbandonDestroysPendingSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	secret := newTOTPSecret(t)
	f.addUser("bob@example.com", "bob", secret)

	pending, err := f.service.SignIn(ctx, application.LoginRequest{Identifier: "bob", Password: testPassword})
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if err := f.service.AbandonSignIn(ctx, pending.PendingToken); err != nil {
		t.Fatalf("abandon failed: %v", err)
	}
	_, err = f.service.CompleteTwoFactorSignIn(ctx, application.SecondFactorRequest{
		PendingToken: pending.PendingToken,
		Code:         totpCode(t, secret, f.clock.Now()),
	})
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected abandoned session to be gone, got %v", err)
	}
}

// wrongCode returns a six-digit code that is valid in none of the accepted steps.
func wrongCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	valid := map[string]bool{}
	for _, offset := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		valid[totpCode(t, secret, at.Add(offset))] = true
	}
	for _, candidate := range []string{"000000", "111111", "222222", "333333"} {
		if !valid[candidate] {
			return candidate
		}
	}
	t.Fatalf("could not find an invalid code")
	return ""
}
