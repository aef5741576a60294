package postAuth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/postAuth/internal/codes"
	"github.com/MrEthical07/postAuth/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestVerifyWithoutLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	if _, err := env.engine.Verify(context.Background(), "alice", "123456"); !errors.Is(err, ErrNoPendingCode) {
		t.Fatalf("expected ErrNoPendingCode, got %v", err)
	}
	if _, err := env.engine.Verify(context.Background(), "ghost", "123456"); !errors.Is(err, ErrNoPendingCode) {
		t.Fatalf("expected ErrNoPendingCode for unknown user, got %v", err)
	}
	if got := env.account(t, "alice").FailedAttempts; got != 0 {
		t.Fatalf("FailedAttempts = %d, want 0", got)
	}
}

func TestVerifyLockoutRejectsCorrectCode(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	code := env.login(t, "alice")

	for i := 1; i <= 3; i++ {
		_, err := env.engine.Verify(context.Background(), "alice", wrongCode(code))
		if !errors.Is(err, ErrInvalidSecondFactor) {
			t.Fatalf("attempt %d: expected ErrInvalidSecondFactor, got %v", i, err)
		}
		a := env.account(t, "alice")
		if i < 3 && a.FailedAttempts != i {
			t.Fatalf("attempt %d: FailedAttempts = %d", i, a.FailedAttempts)
		}
	}

	a := env.account(t, "alice")
	if a.FailedAttempts != 0 || !a.LockedUntil.Equal(env.clock.Now().Add(5*time.Minute)) {
		t.Fatalf("unexpected lockout state %+v", a.State)
	}

	env.clock.Advance(time.Minute)
	_, err := env.engine.Verify(context.Background(), "alice", code)
	if !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("expected ErrInvalidSecondFactor while locked, got %v", err)
	}
	if err.Error() != ErrInvalidSecondFactor.Error() {
		t.Fatalf("locked error message %q differs", err)
	}
}

func TestVerifySuccessResetsFailures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	code := env.login(t, "alice")

	for i := 0; i < 2; i++ {
		env.engine.Verify(context.Background(), "alice", wrongCode(code))
	}
	if got := env.account(t, "alice").FailedAttempts; got != 2 {
		t.Fatalf("FailedAttempts = %d, want 2", got)
	}
	if _, err := env.engine.Verify(context.Background(), "alice", code); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	a := env.account(t, "alice")
	if a.FailedAttempts != 0 || !a.LockedUntil.IsZero() || a.PendingOTP != nil {
		t.Fatalf("expected clean state after success, got %+v pending=%v", a.State, a.PendingOTP)
	}
}

func TestVerifyExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	code := env.login(t, "alice")
	env.clock.Advance(5*time.Minute - time.Millisecond)
	if _, err := env.engine.Verify(context.Background(), "alice", code); err != nil {
		t.Fatalf("Verify just inside TTL failed: %v", err)
	}

	code = env.login(t, "alice")
	env.clock.Advance(5 * time.Minute)
	if _, err := env.engine.Verify(context.Background(), "alice", code); !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("expected ErrInvalidSecondFactor at TTL, got %v", err)
	}
	if got := env.account(t, "alice").FailedAttempts; got != 1 {
		t.Fatalf("FailedAttempts = %d, want 1", got)
	}
}

func TestRecoveryCodeIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	recovery := env.register(t, "alice")

	env.login(t, "alice")
	// Expired SMS code does not block the recovery path.
	env.clock.Advance(10 * time.Minute)
	res, err := env.engine.Verify(context.Background(), "alice", recovery[3])
	if err != nil {
		t.Fatalf("Verify with recovery code failed: %v", err)
	}
	if !res.UsedRecoveryCode || res.RecoveryCodesRemaining != len(recovery)-1 {
		t.Fatalf("unexpected result %+v", res)
	}

	a := env.account(t, "alice")
	if codes.MatchRecoveryCode("alice", recovery[3], a.RecoveryCodes) >= 0 {
		t.Fatal("used recovery code still stored")
	}
	if codes.MatchRecoveryCode("alice", recovery[4], a.RecoveryCodes) < 0 {
		t.Fatal("unused recovery code missing")
	}

	env.login(t, "alice")
	if _, err := env.engine.Verify(context.Background(), "alice", recovery[3]); !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("expected reused recovery code to fail, got %v", err)
	}
	if _, err := env.engine.Verify(context.Background(), "alice", recovery[4]); err != nil {
		t.Fatalf("second recovery code failed: %v", err)
	}

	var used int
	for _, ev := range env.auditEvents(t) {
		if ev.EventType == auditEventRecoveryCodeUsed {
			used++
		}
	}
	if used != 2 {
		t.Fatalf("recovery_code_used events = %d, want 2", used)
	}
}

func TestVerifyConcurrentFailuresAreCounted(t *testing.T) {
	cfg := testConfig()
	cfg.Lockout.Threshold = 100
	env := newTestEnvWith(t, cfg, store.NewMemoryStore())
	env.register(t, "alice")
	code := env.login(t, "alice")

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.engine.Verify(context.Background(), "alice", wrongCode(code))
		}()
	}
	wg.Wait()

	if got := env.account(t, "alice").FailedAttempts; got != workers {
		t.Fatalf("FailedAttempts = %d, want %d", got, workers)
	}
}

func TestVerifyConcurrentFailuresOnRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	env := newTestEnvWith(t, testConfig(), store.NewRedisStore(rdb, "test"))
	env.register(t, "alice")
	code := env.login(t, "alice")

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.engine.Verify(context.Background(), "alice", wrongCode(code))
		}()
	}
	wg.Wait()

	a := env.account(t, "alice")
	if a.FailedAttempts != 0 || a.LockedUntil.IsZero() {
		t.Fatalf("expected exactly one lock from three failures, got %+v", a.State)
	}
	if _, err := env.engine.Verify(context.Background(), "alice", code); !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("expected locked account to reject code, got %v", err)
	}
}

func TestConcurrentFailuresOnRedisAreAllCounted(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := testConfig()
	cfg.Lockout.Threshold = 1000
	env := newTestEnvWith(t, cfg, store.NewRedisStore(rdb, "test"))
	env.register(t, "alice")
	code := env.login(t, "alice")

	// Login workers each run argon2, so fewer of them.
	const workers, loginWorkers = 64, 24
	run := func(n int, attempt func() error) []error {
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = attempt()
			}(i)
		}
		wg.Wait()
		return errs
	}

	for i, err := range run(workers, func() error {
		_, err := env.engine.Verify(context.Background(), "alice", wrongCode(code))
		return err
	}) {
		if !errors.Is(err, ErrInvalidSecondFactor) {
			t.Fatalf("verify worker %d: expected ErrInvalidSecondFactor, got %v", i, err)
		}
	}
	if got := env.account(t, "alice").FailedAttempts; got != workers {
		t.Fatalf("FailedAttempts after verify = %d, want %d", got, workers)
	}

	for i, err := range run(loginWorkers, func() error {
		return env.engine.Login(context.Background(), "alice", "Wrong-Horse-9!")
	}) {
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("login worker %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if got := env.account(t, "alice").FailedAttempts; got != workers+loginWorkers {
		t.Fatalf("FailedAttempts after login = %d, want %d", got, workers+loginWorkers)
	}
}
