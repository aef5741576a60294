package postAuth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/postAuth/internal/lockout"
	"github.com/MrEthical07/postAuth/store"
	"go.uber.org/zap"
)

// Login describes the login operation and its observable behavior.
//
// Login is phase one of the two-phase protocol. On a correct password for an
// Open account it persists a fresh SMS code with its issue time, queues the
// SMS, and returns nil without waiting for delivery.
//
// Unknown username, wrong password, and locked account all return
// ErrInvalidCredentials. Existence and password correctness are both
// computed on one snapshot of the account before either is consulted. A
// wrong password for an existing account counts toward lockout.
//
// When the per-IP throttle is enabled, every phase-one failure counts against
// the caller's IP and an exhausted budget returns ErrRateLimited before the
// store is read.
//
// Login may also return ErrAlreadyAuthenticated, ErrMissingParameters, or ErrInternal.
func (e *Engine) Login(ctx context.Context, username, pass string) error {
	if e.hasValidSession(ctx) {
		e.emitAudit(ctx, auditEventLoginFailure, false, username, ErrAlreadyAuthenticated, nil)
		return ErrAlreadyAuthenticated
	}
	if username == "" || pass == "" {
		return ErrMissingParameters
	}
	if err := e.checkThrottle(ctx, throttleScopeLogin, username); err != nil {
		return err
	}

	account, err := e.store.Get(ctx, username)
	exists := true
	switch {
	case errors.Is(err, store.ErrNotFound):
		exists = false
	case err != nil:
		return e.internal("login", err, zap.String("username", username))
	}

	var storedHash string
	if exists {
		storedHash = account.PasswordHash
	}
	passwordOK := e.hasher.Check(pass, storedHash)

	now := e.now()
	if exists && e.lockout.IsLocked(account.State, now) {
		e.hitThrottle(ctx, throttleScopeLogin)
		e.emitAudit(ctx, auditEventLoginFailure, false, username, ErrAccountLocked, nil)
		return ErrInvalidCredentials
	}

	if !exists || !passwordOK {
		e.hitThrottle(ctx, throttleScopeLogin)
		cause := errUserNotFound
		if exists {
			cause = errPasswordMismatch
			if _, err := e.recordFailure(ctx, username, now, "login"); err != nil {
				return err
			}
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, username, cause, nil)
		return ErrInvalidCredentials
	}

	code, err := e.codes.SMSCode()
	if err != nil {
		return e.internal("login", err)
	}

	updated, err := e.store.Update(ctx, username, func(a *store.Account) error {
		// A concurrent request may have locked the account since the snapshot.
		if e.lockout.IsLocked(a.State, now) {
			return ErrAccountLocked
		}
		a.PendingOTP = &store.PendingOTP{Code: code, IssuedAt: now}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAccountLocked) {
			e.emitAudit(ctx, auditEventLoginFailure, false, username, ErrAccountLocked, nil)
			return ErrInvalidCredentials
		}
		return e.internal("login", err, zap.String("username", username))
	}

	e.sendSMS(ctx, username, updated.PhoneNumber, code, "login")
	e.emitAudit(ctx, auditEventLoginChallengeIssued, true, username, nil, nil)
	return nil
}

// recordFailure counts one failed credential check inside an atomic update
// and audits a resulting lock.
func (e *Engine) recordFailure(ctx context.Context, username string, now time.Time, phase string) (lockout.Outcome, error) {
	var out lockout.Outcome
	_, err := e.store.Update(ctx, username, func(a *store.Account) error {
		out = e.lockout.RecordFailure(&a.State, now)
		return nil
	})
	if err != nil {
		return out, e.internal("record failure", err, zap.String("username", username))
	}
	if out.Locked {
		e.auditLocked(ctx, username, phase, out)
	}
	return out, nil
}

func (e *Engine) auditLocked(ctx context.Context, username, phase string, out lockout.Outcome) {
	e.logger.Warn("account locked", zap.String("username", username), zap.Time("until", out.LockedUntil))
	e.emitAudit(ctx, auditEventAccountLocked, false, username, ErrAccountLocked, func() map[string]string {
		return map[string]string{
			"phase":        phase,
			"locked_until": strconv.FormatInt(out.LockedUntil.Unix(), 10),
		}
	})
}
