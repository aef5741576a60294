package postAuth

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/postAuth/store"
	"go.uber.org/zap"
)

// TOTPSetup describes the totpsetup operation and its observable behavior.
//
// TOTPSetup generates a candidate secret and its QR provisioning payload for
// the session's account. Nothing is persisted until TOTPVerify succeeds.
// Non-admin accounts get ErrAdminRequired before any secret is generated,
// and accounts that already enrolled get ErrTOTPAlreadyEnrolled.
//
// TOTPSetup may also return ErrUnauthenticated or ErrInternal.
func (e *Engine) TOTPSetup(ctx context.Context, token string) (*TOTPSetup, error) {
	account, err := e.sessionAccount(ctx, token)
	if err != nil {
		return nil, err
	}
	if account.Role != RoleAdmin {
		e.emitAudit(ctx, auditEventAuthorizationRejected, false, account.Username, ErrAdminRequired, func() map[string]string {
			return map[string]string{"operation": "totp_setup"}
		})
		return nil, ErrAdminRequired
	}
	if account.TOTPSecret != "" {
		e.emitAudit(ctx, auditEventTOTPSetupRequested, false, account.Username, ErrTOTPAlreadyEnrolled, nil)
		return nil, ErrTOTPAlreadyEnrolled
	}

	enrollment, err := e.totp.Enroll(account.Username)
	if err != nil {
		return nil, e.internal("totp setup", err, zap.String("username", account.Username))
	}

	e.emitAudit(ctx, auditEventTOTPSetupRequested, true, account.Username, nil, nil)
	return &TOTPSetup{
		Secret:     enrollment.Secret,
		QRPayload:  enrollment.QRPayload,
		OTPAuthURL: enrollment.URL,
	}, nil
}

// TOTPVerify describes the totpverify operation and its observable behavior.
//
// When the account has no secret, TOTPVerify checks totpToken against
// candidateSecret and, on success, persists it as the account's secret.
// Once a secret is set the candidate is ignored and totpToken is checked
// against the stored secret only. Checks accept only the current time step.
//
// TOTPVerify may return ErrUnauthenticated, ErrAdminRequired,
// ErrMissingParameters, ErrTOTPSecretRequired, ErrInvalidTOTP,
// ErrTOTPAlreadyEnrolled, or ErrInternal. Failures do not count toward lockout.
func (e *Engine) TOTPVerify(ctx context.Context, token, totpToken, candidateSecret string) (*TOTPVerifyResult, error) {
	account, err := e.sessionAccount(ctx, token)
	if err != nil {
		return nil, err
	}
	if account.Role != RoleAdmin {
		e.emitAudit(ctx, auditEventAuthorizationRejected, false, account.Username, ErrAdminRequired, func() map[string]string {
			return map[string]string{"operation": "totp_verify"}
		})
		return nil, ErrAdminRequired
	}
	totpToken = strings.TrimSpace(totpToken)
	if totpToken == "" {
		return nil, ErrMissingParameters
	}

	if account.TOTPSecret != "" {
		if !e.totp.VerifyToken(account.TOTPSecret, totpToken) {
			e.emitAudit(ctx, auditEventTOTPFailure, false, account.Username, ErrInvalidTOTP, nil)
			return nil, ErrInvalidTOTP
		}
		e.emitAudit(ctx, auditEventTOTPSuccess, true, account.Username, nil, nil)
		return &TOTPVerifyResult{Verified: true}, nil
	}

	candidateSecret = strings.TrimSpace(candidateSecret)
	if candidateSecret == "" {
		return nil, ErrTOTPSecretRequired
	}
	if !e.totp.VerifyEnrollment(candidateSecret, totpToken) {
		e.emitAudit(ctx, auditEventTOTPFailure, false, account.Username, ErrInvalidTOTP, func() map[string]string {
			return map[string]string{"stage": "enrollment"}
		})
		return nil, ErrInvalidTOTP
	}

	_, err = e.store.Update(ctx, account.Username, func(a *store.Account) error {
		if a.Role != RoleAdmin {
			return ErrAdminRequired
		}
		if a.TOTPSecret != "" {
			return ErrTOTPAlreadyEnrolled
		}
		a.TOTPSecret = candidateSecret
		return nil
	})
	switch {
	case errors.Is(err, ErrAdminRequired), errors.Is(err, ErrTOTPAlreadyEnrolled):
		e.emitAudit(ctx, auditEventTOTPFailure, false, account.Username, err, nil)
		return nil, err
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrUnauthenticated
	case err != nil:
		return nil, e.internal("totp enroll", err, zap.String("username", account.Username))
	}

	e.emitAudit(ctx, auditEventTOTPEnrolled, true, account.Username, nil, nil)
	return &TOTPVerifyResult{Verified: true, Enrolled: true}, nil
}
