package postAuth

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/postAuth/internal/codes"
	"github.com/MrEthical07/postAuth/internal/lockout"
	"github.com/MrEthical07/postAuth/store"
	"go.uber.org/zap"
)

type verifyOutcome struct {
	matched      bool
	viaRecovery  bool
	smsExpired   bool
	failure      lockout.Outcome
	role         Role
	totpSecret   string
	recoveryLeft int
}

// Verify describes the verify operation and its observable behavior.
//
// Verify is phase two. The candidate is checked against the pending SMS code
// (accepted only within the OTP TTL of issue) and against the recovery code
// list; either match completes login. On a match the pending code is cleared,
// a used recovery code is removed, the lockout state is reset, and a session
// token is issued. The whole check-and-consume runs inside one atomic update.
//
// Verify returns ErrNoPendingCode when login was not completed first, and
// ErrInvalidSecondFactor for a wrong code, an expired code, a wrong recovery
// code, or a locked account. A miss counts toward lockout.
//
// Verify may also return ErrRateLimited, ErrAlreadyAuthenticated,
// ErrMissingParameters, or ErrInternal.
func (e *Engine) Verify(ctx context.Context, username, code string) (*VerifyResult, error) {
	if e.hasValidSession(ctx) {
		e.emitAudit(ctx, auditEventVerifyFailure, false, username, ErrAlreadyAuthenticated, nil)
		return nil, ErrAlreadyAuthenticated
	}
	if username == "" || code == "" {
		return nil, ErrMissingParameters
	}
	if err := e.checkThrottle(ctx, throttleScopeVerify, username); err != nil {
		return nil, err
	}

	now := e.now()
	var out verifyOutcome
	_, err := e.store.Update(ctx, username, func(a *store.Account) error {
		out = verifyOutcome{}
		if a.PendingOTP == nil {
			return ErrNoPendingCode
		}
		if e.lockout.IsLocked(a.State, now) {
			return ErrAccountLocked
		}

		age := now.Sub(a.PendingOTP.IssuedAt)
		fresh := age >= 0 && age < e.config.OTP.TTL
		smsMatch := codes.MatchSMSCode(a.PendingOTP.Code, code)
		recoveryIdx := codes.MatchRecoveryCode(a.Username, code, a.RecoveryCodes)
		out.smsExpired = !fresh

		switch {
		case smsMatch && fresh:
			out.matched = true
		case recoveryIdx >= 0:
			out.matched = true
			out.viaRecovery = true
			a.RecoveryCodes = append(a.RecoveryCodes[:recoveryIdx], a.RecoveryCodes[recoveryIdx+1:]...)
		default:
			out.failure = e.lockout.RecordFailure(&a.State, now)
			return nil
		}

		a.PendingOTP = nil
		e.lockout.Reset(&a.State)
		out.role = a.Role
		out.totpSecret = a.TOTPSecret
		out.recoveryLeft = len(a.RecoveryCodes)
		return nil
	})

	switch {
	case errors.Is(err, ErrNoPendingCode), errors.Is(err, store.ErrNotFound):
		e.emitAudit(ctx, auditEventVerifyFailure, false, username, ErrNoPendingCode, nil)
		return nil, ErrNoPendingCode
	case errors.Is(err, ErrAccountLocked):
		e.hitThrottle(ctx, throttleScopeVerify)
		e.emitAudit(ctx, auditEventVerifyFailure, false, username, ErrAccountLocked, nil)
		return nil, ErrInvalidSecondFactor
	case err != nil:
		return nil, e.internal("verify", err, zap.String("username", username))
	}

	if !out.matched {
		e.hitThrottle(ctx, throttleScopeVerify)
		if out.failure.Locked {
			e.auditLocked(ctx, username, "verify", out.failure)
		}
		e.emitAudit(ctx, auditEventVerifyFailure, false, username, ErrInvalidSecondFactor, func() map[string]string {
			return map[string]string{"sms_expired": strconv.FormatBool(out.smsExpired)}
		})
		return nil, ErrInvalidSecondFactor
	}

	token, expiresAt, err := e.sessions.Issue(username)
	if err != nil {
		return nil, e.internal("verify", err, zap.String("username", username))
	}

	if out.viaRecovery {
		e.emitAudit(ctx, auditEventRecoveryCodeUsed, true, username, nil, func() map[string]string {
			return map[string]string{"remaining": strconv.Itoa(out.recoveryLeft)}
		})
	}
	e.emitAudit(ctx, auditEventVerifySuccess, true, username, nil, func() map[string]string {
		method := "sms"
		if out.viaRecovery {
			method = "recovery_code"
		}
		return map[string]string{"method": method}
	})

	return &VerifyResult{
		SessionToken:           token,
		ExpiresAt:              expiresAt,
		Role:                   out.role,
		TOTPSecret:             out.totpSecret,
		UsedRecoveryCode:       out.viaRecovery,
		RecoveryCodesRemaining: out.recoveryLeft,
	}, nil
}
