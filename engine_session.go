package postAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/postAuth/store"
	"go.uber.org/zap"
)

// Authenticate resolves a session token to an identity. Invalid, expired,
// and missing tokens all return ErrUnauthenticated. It never touches the store.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Identity, error) {
	s, err := e.sessions.Validate(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return &Identity{Username: s.Username, ExpiresAt: s.ExpiresAt}, nil
}

// IsAuthenticated reports whether token is a valid session. It has no side effects.
func (e *Engine) IsAuthenticated(ctx context.Context, token string) bool {
	_, err := e.Authenticate(ctx, token)
	return err == nil
}

// IsAdmin reports whether the session's account currently holds the admin
// role. The role is read from the store, never from the token.
func (e *Engine) IsAdmin(ctx context.Context, token string) (bool, error) {
	account, err := e.sessionAccount(ctx, token)
	if err != nil {
		return false, err
	}
	return account.Role == RoleAdmin, nil
}

// Profile returns the public view of the session's account.
func (e *Engine) Profile(ctx context.Context, token string) (*Profile, error) {
	account, err := e.sessionAccount(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Profile{
		Username:    account.Username,
		Email:       account.Email,
		PhoneNumber: account.PhoneNumber,
	}, nil
}

// Logout records the end of a session. Tokens are stateless; the caller
// clears the cookie.
func (e *Engine) Logout(ctx context.Context, token string) {
	var username string
	if id, err := e.Authenticate(ctx, token); err == nil {
		username = id.Username
	}
	e.emitAudit(ctx, auditEventLogout, true, username, nil, nil)
}

// sessionAccount validates token and loads a fresh account snapshot. A
// session for an account that no longer exists is unauthenticated.
func (e *Engine) sessionAccount(ctx context.Context, token string) (*store.Account, error) {
	id, err := e.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	account, err := e.store.Get(ctx, id.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, e.internal("load session account", err, zap.String("username", id.Username))
	}
	return account, nil
}
