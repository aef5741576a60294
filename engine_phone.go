package postAuth

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/postAuth/internal/codes"
	"github.com/MrEthical07/postAuth/store"
	"go.uber.org/zap"
)

// RequestPhoneChange stores an unconfirmed new phone number on the session's
// account and texts a confirmation code to that number. A second request
// replaces the first.
func (e *Engine) RequestPhoneChange(ctx context.Context, token, phoneNumber string) error {
	id, err := e.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	phoneNumber = strings.TrimSpace(phoneNumber)
	if err := e.validatePhoneNumber(phoneNumber); err != nil {
		return err
	}

	code, err := e.codes.SMSCode()
	if err != nil {
		return e.internal("phone change", err)
	}
	now := e.now()
	_, err = e.store.Update(ctx, id.Username, func(a *store.Account) error {
		a.PendingPhone = &store.PendingPhone{Number: phoneNumber, Code: code, IssuedAt: now}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnauthenticated
		}
		return e.internal("phone change", err, zap.String("username", id.Username))
	}

	e.sendSMS(ctx, id.Username, phoneNumber, code, "phone_change")
	e.emitAudit(ctx, auditEventPhoneChangeRequested, true, id.Username, nil, nil)
	return nil
}

// ConfirmPhoneChange applies the pending phone number when code matches
// within the OTP TTL. Reaching the lockout threshold of wrong codes discards
// the pending change.
func (e *Engine) ConfirmPhoneChange(ctx context.Context, token, code string) error {
	id, err := e.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if strings.TrimSpace(code) == "" {
		return ErrMissingParameters
	}

	now := e.now()
	var matched, discarded bool
	_, err = e.store.Update(ctx, id.Username, func(a *store.Account) error {
		matched, discarded = false, false
		p := a.PendingPhone
		if p == nil {
			return ErrNoPendingPhoneChange
		}
		age := now.Sub(p.IssuedAt)
		if codes.MatchSMSCode(p.Code, code) && age >= 0 && age < e.config.OTP.TTL {
			a.PhoneNumber = p.Number
			a.PendingPhone = nil
			matched = true
			return nil
		}
		p.Attempts++
		if p.Attempts >= e.config.Lockout.Threshold {
			a.PendingPhone = nil
			discarded = true
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrNoPendingPhoneChange):
		e.emitAudit(ctx, auditEventPhoneChangeFailure, false, id.Username, err, nil)
		return err
	case errors.Is(err, store.ErrNotFound):
		return ErrUnauthenticated
	case err != nil:
		return e.internal("phone confirm", err, zap.String("username", id.Username))
	}

	if !matched {
		e.emitAudit(ctx, auditEventPhoneChangeFailure, false, id.Username, ErrInvalidPhoneCode, func() map[string]string {
			if discarded {
				return map[string]string{"discarded": "true"}
			}
			return nil
		})
		return ErrInvalidPhoneCode
	}
	e.emitAudit(ctx, auditEventPhoneChangeConfirmed, true, id.Username, nil, nil)
	return nil
}
