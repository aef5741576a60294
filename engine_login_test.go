package postAuth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginAndVerifyIssuesSession(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	if err := env.engine.Login(context.Background(), "alice", testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	msg := env.gateway.next(t)
	if msg.phoneNumber != testPhone {
		t.Fatalf("sms sent to %q, want %q", msg.phoneNumber, testPhone)
	}
	code := smsCodePattern.FindString(msg.message)
	if msg.message != "Your sms token is: "+code+"." {
		t.Fatalf("unexpected sms body %q", msg.message)
	}

	pending := env.account(t, "alice").PendingOTP
	if pending == nil || pending.Code != code || !pending.IssuedAt.Equal(env.clock.Now()) {
		t.Fatalf("unexpected pending otp %+v", pending)
	}

	res, err := env.engine.Verify(context.Background(), "alice", code)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.SessionToken == "" || res.Role != RoleUser || res.UsedRecoveryCode {
		t.Fatalf("unexpected verify result %+v", res)
	}
	if want := env.clock.Now().Add(env.config.Session.TTL); !res.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", res.ExpiresAt, want)
	}

	id, err := env.engine.Authenticate(context.Background(), res.SessionToken)
	if err != nil || id.Username != "alice" {
		t.Fatalf("Authenticate = %+v, %v", id, err)
	}
	if env.account(t, "alice").PendingOTP != nil {
		t.Fatal("expected pending otp to be cleared")
	}

	if _, err := env.engine.Verify(context.Background(), "alice", code); !errors.Is(err, ErrNoPendingCode) {
		t.Fatalf("expected ErrNoPendingCode on replay, got %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "bob")

	unknown := env.engine.Login(context.Background(), "nobody", testPassword)
	wrong := env.engine.Login(context.Background(), "bob", "Wrong-Password-1!")
	if !errors.Is(unknown, ErrInvalidCredentials) || !errors.Is(wrong, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v and %v", unknown, wrong)
	}
	if unknown.Error() != wrong.Error() {
		t.Fatalf("messages differ: %q vs %q", unknown, wrong)
	}

	// Lock bob, then a correct password must look the same.
	env.engine.Login(context.Background(), "bob", "Wrong-Password-1!")
	env.engine.Login(context.Background(), "bob", "Wrong-Password-1!")
	locked := env.engine.Login(context.Background(), "bob", testPassword)
	if !errors.Is(locked, ErrInvalidCredentials) || locked.Error() != unknown.Error() {
		t.Fatalf("expected uniform error for locked account, got %v", locked)
	}
	env.gateway.expectNone(t)

	events := env.auditEvents(t)
	var codes []string
	for _, ev := range events {
		if ev.EventType == auditEventLoginFailure {
			codes = append(codes, ev.Error)
		}
	}
	want := []string{"user_not_found", "password_mismatch", "password_mismatch", "password_mismatch", "account_locked"}
	if len(codes) != len(want) {
		t.Fatalf("login failure audit codes = %v, want %v", codes, want)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("login failure audit codes = %v, want %v", codes, want)
		}
	}
}

func TestLoginPasswordFailuresLockAccount(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "carol")

	for i := 0; i < 3; i++ {
		env.engine.Login(context.Background(), "carol", "Wrong-Password-1!")
	}
	a := env.account(t, "carol")
	if a.FailedAttempts != 0 {
		t.Fatalf("FailedAttempts = %d, want 0 after lock", a.FailedAttempts)
	}
	if want := env.clock.Now().Add(5 * time.Minute); !a.LockedUntil.Equal(want) {
		t.Fatalf("LockedUntil = %v, want %v", a.LockedUntil, want)
	}

	// Failures while locked are not counted.
	env.engine.Login(context.Background(), "carol", "Wrong-Password-1!")
	if got := env.account(t, "carol").FailedAttempts; got != 0 {
		t.Fatalf("FailedAttempts = %d while locked, want 0", got)
	}

	env.clock.Advance(5 * time.Minute)
	if err := env.engine.Login(context.Background(), "carol", testPassword); err != nil {
		t.Fatalf("Login after lock expiry failed: %v", err)
	}
	env.gateway.nextCode(t)
}

func TestFailuresAcrossPhasesShareOneCounter(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "dave")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := env.engine.Login(ctx, "dave", "Wrong-Password-1!"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	code := env.login(t, "dave")
	if got := env.account(t, "dave").FailedAttempts; got != 2 {
		t.Fatalf("a correct password must not reset the counter: FailedAttempts = %d, want 2", got)
	}

	if _, err := env.engine.Verify(ctx, "dave", wrongCode(code)); !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("expected ErrInvalidSecondFactor, got %v", err)
	}
	a := env.account(t, "dave")
	if a.FailedAttempts != 0 || !a.LockedUntil.Equal(env.clock.Now().Add(5*time.Minute)) {
		t.Fatalf("expected the third mixed failure to lock, got %+v", a.State)
	}
	if _, err := env.engine.Verify(ctx, "dave", code); !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("expected locked account to reject the correct code, got %v", err)
	}
}

func TestSecondFactorFailuresLockPhaseOne(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "erin")
	ctx := context.Background()

	code := env.login(t, "erin")
	for i := 0; i < 2; i++ {
		if _, err := env.engine.Verify(ctx, "erin", wrongCode(code)); !errors.Is(err, ErrInvalidSecondFactor) {
			t.Fatalf("attempt %d: expected ErrInvalidSecondFactor, got %v", i, err)
		}
	}
	if err := env.engine.Login(ctx, "erin", "Wrong-Password-1!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := env.engine.Login(ctx, "erin", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected locked account to reject the correct password, got %v", err)
	}
	env.gateway.expectNone(t)
}

func TestLoginRequiresParameters(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.Login(context.Background(), "", testPassword); !errors.Is(err, ErrMissingParameters) {
		t.Fatalf("expected ErrMissingParameters, got %v", err)
	}
	if err := env.engine.Login(context.Background(), "alice", ""); !errors.Is(err, ErrMissingParameters) {
		t.Fatalf("expected ErrMissingParameters, got %v", err)
	}
}

func TestAuthenticatedCallersAreRejected(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "dave")
	token := env.session(t, "dave")
	ctx := WithSessionToken(context.Background(), token)

	if _, err := env.engine.Register(ctx, registerInput("erin")); !errors.Is(err, ErrAlreadyAuthenticated) {
		t.Fatalf("Register: expected ErrAlreadyAuthenticated, got %v", err)
	}
	if err := env.engine.Login(ctx, "dave", testPassword); !errors.Is(err, ErrAlreadyAuthenticated) {
		t.Fatalf("Login: expected ErrAlreadyAuthenticated, got %v", err)
	}
	if _, err := env.engine.Verify(ctx, "dave", "123456"); !errors.Is(err, ErrAlreadyAuthenticated) {
		t.Fatalf("Verify: expected ErrAlreadyAuthenticated, got %v", err)
	}

	// A stale token does not count as a session.
	env.clock.Advance(env.config.Session.TTL + time.Second)
	if err := env.engine.Login(ctx, "dave", testPassword); err != nil {
		t.Fatalf("Login with expired token failed: %v", err)
	}
}
