package postAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/postAuth/internal/audit"
)

const (
	auditEventRegisterSuccess       = "register_success"
	auditEventRegisterDuplicate     = "register_duplicate"
	auditEventRegisterFailure       = "register_failure"
	auditEventLoginChallengeIssued  = "login_challenge_issued"
	auditEventLoginFailure          = "login_failure"
	auditEventAccountLocked         = "account_locked"
	auditEventVerifySuccess         = "verify_success"
	auditEventVerifyFailure         = "verify_failure"
	auditEventRecoveryCodeUsed      = "recovery_code_used"
	auditEventTOTPSetupRequested    = "totp_setup_requested"
	auditEventTOTPEnrolled          = "totp_enrolled"
	auditEventTOTPSuccess           = "totp_success"
	auditEventTOTPFailure           = "totp_failure"
	auditEventLogout                = "logout"
	auditEventPhoneChangeRequested  = "phone_change_requested"
	auditEventPhoneChangeConfirmed  = "phone_change_confirmed"
	auditEventPhoneChangeFailure    = "phone_change_failure"
	auditEventAccountSeeded         = "account_seeded"
	auditEventSMSDispatchRejected   = "sms_dispatch_rejected"
	auditEventAuthorizationRejected = "authorization_rejected"
	auditEventRateLimited           = "rate_limited"
)

// AuditErrorCode is the stable failure label written to audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrUserNotFound        AuditErrorCode = "user_not_found"
	auditErrPasswordMismatch    AuditErrorCode = "password_mismatch"
	auditErrAccountLocked       AuditErrorCode = "account_locked"
	auditErrSecondFactorInvalid AuditErrorCode = "second_factor_invalid"
	auditErrNoPendingCode       AuditErrorCode = "no_pending_code"
	auditErrAlreadyAuth         AuditErrorCode = "already_authenticated"
	auditErrUnauthenticated     AuditErrorCode = "unauthenticated"
	auditErrAdminRequired       AuditErrorCode = "admin_required"
	auditErrTOTPInvalid         AuditErrorCode = "totp_invalid"
	auditErrTOTPEnrolled        AuditErrorCode = "totp_already_enrolled"
	auditErrValidation          AuditErrorCode = "validation"
	auditErrDuplicate           AuditErrorCode = "duplicate"
	auditErrPhoneCodeInvalid    AuditErrorCode = "phone_code_invalid"
	auditErrNoPendingPhone      AuditErrorCode = "no_pending_phone_change"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrInternal            AuditErrorCode = "internal_error"
)

var (
	errUserNotFound     = errors.New("user not found")
	errPasswordMismatch = errors.New("password mismatch")
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	username string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil {
		return
	}
	e.metrics.event(eventType)
	if e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := audit.Event{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Username:  username,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, errPasswordMismatch):
		return auditErrPasswordMismatch
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidSecondFactor):
		return auditErrSecondFactorInvalid
	case errors.Is(err, ErrNoPendingCode):
		return auditErrNoPendingCode
	case errors.Is(err, ErrAlreadyAuthenticated):
		return auditErrAlreadyAuth
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrAdminRequired):
		return auditErrAdminRequired
	case errors.Is(err, ErrInvalidTOTP):
		return auditErrTOTPInvalid
	case errors.Is(err, ErrTOTPAlreadyEnrolled):
		return auditErrTOTPEnrolled
	case errors.Is(err, ErrInvalidPhoneCode):
		return auditErrPhoneCodeInvalid
	case errors.Is(err, ErrNoPendingPhoneChange):
		return auditErrNoPendingPhone
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case KindOf(err) == KindValidation:
		return auditErrValidation
	case KindOf(err) == KindConflict:
		return auditErrDuplicate
	default:
		return auditErrInternal
	}
}
