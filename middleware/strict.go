package middleware

import (
	"context"
	"net/http"

	postAuth "github.com/MrEthical07/postAuth"
)

// AdminChecker resolves session tokens and reports the stored role.
type AdminChecker interface {
	Authenticator
	IsAdmin(ctx context.Context, token string) (bool, error)
}

// RequireAdmin is RequireSession plus a role lookup in the store. Non-admins
// get ErrAdminRequired.
func RequireAdmin(engine AdminChecker, opts Options) func(http.Handler) http.Handler {
	onError := opts.onError()
	session := RequireSession(engine, opts)
	return func(next http.Handler) http.Handler {
		return session(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin, err := engine.IsAdmin(r.Context(), TokenFromContext(r.Context()))
			if err != nil {
				onError(w, r, err)
				return
			}
			if !admin {
				onError(w, r, postAuth.ErrAdminRequired)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
