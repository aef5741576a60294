package postAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/postAuth/internal/codes"
	"github.com/MrEthical07/postAuth/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Register describes the register operation and its observable behavior.
//
// Register creates a role=user account with freshly generated recovery codes
// and returns the plaintext codes once. It does not start a session; the new
// account must complete the two-phase login like any other.
//
// Register may return ErrAlreadyAuthenticated, a validation error, one of the
// conflict errors, or ErrInternal.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if e.hasValidSession(ctx) {
		e.emitAudit(ctx, auditEventRegisterFailure, false, in.Username, ErrAlreadyAuthenticated, nil)
		return nil, ErrAlreadyAuthenticated
	}

	list, err := e.createAccount(ctx, in, RoleUser)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{Username: normalizeRegistration(in).Username, RecoveryCodes: list}, nil
}

// SeedAccount creates an account with an explicit role. It exists for
// startup bootstrapping of administrators; no request path can reach it.
func (e *Engine) SeedAccount(ctx context.Context, in RegisterInput, role Role) ([]string, error) {
	if !role.Valid() {
		return nil, ErrMissingParameters
	}
	list, err := e.createAccount(ctx, in, role)
	if err != nil {
		return nil, err
	}
	e.emitAudit(ctx, auditEventAccountSeeded, true, in.Username, nil, func() map[string]string {
		return map[string]string{"role": string(role)}
	})
	return list, nil
}

func (e *Engine) createAccount(ctx context.Context, raw RegisterInput, role Role) ([]string, error) {
	in := normalizeRegistration(raw)
	if err := e.validateRegistration(in); err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, in.Username, err, nil)
		return nil, err
	}

	// Both uniqueness checks are evaluated before either is reported.
	usernameTaken, emailTaken, err := e.store.Exists(ctx, in.Username, in.Email)
	if err != nil {
		return nil, e.internal("register", err)
	}
	if conflict := conflictError(usernameTaken, emailTaken); conflict != nil {
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, in.Username, conflict, nil)
		return nil, conflict
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, e.internal("register", err)
	}
	plain, err := e.codes.RecoveryCodes(e.config.Recovery.Count, e.config.Recovery.Length)
	if err != nil {
		return nil, e.internal("register", err)
	}

	account := &store.Account{
		ID:            uuid.NewString(),
		Username:      in.Username,
		Email:         in.Email,
		PasswordHash:  hash,
		PhoneNumber:   in.PhoneNumber,
		Role:          role,
		RecoveryCodes: codes.HashRecoveryCodes(in.Username, plain),
	}
	if err := e.store.Create(ctx, account); err != nil {
		var ce *store.ConflictError
		if errors.As(err, &ce) {
			conflict := conflictError(ce.UsernameTaken, ce.EmailTaken)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, in.Username, conflict, nil)
			return nil, conflict
		}
		return nil, e.internal("register", err, zap.String("username", in.Username))
	}

	e.emitAudit(ctx, auditEventRegisterSuccess, true, in.Username, nil, func() map[string]string {
		return map[string]string{"role": string(role)}
	})
	return plain, nil
}

func conflictError(usernameTaken, emailTaken bool) error {
	switch {
	case usernameTaken && emailTaken:
		return ErrEmailAndUsernameTaken
	case emailTaken:
		return ErrEmailTaken
	case usernameTaken:
		return ErrUsernameTaken
	default:
		return nil
	}
}
