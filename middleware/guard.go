package middleware

import (
	"context"
	"errors"
	"net/http"

	postAuth "github.com/MrEthical07/postAuth"
)

type identityContextKey struct{}
type tokenContextKey struct{}

// Authenticator resolves session tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*postAuth.Identity, error)
}

// ErrorWriter renders a rejected request.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Options configures the guards. Zero values select the session cookie name
// "jwt" and a plain-text error response that also expires a rejected
// session cookie.
type Options struct {
	CookieName string
	OnError    ErrorWriter
}

func (o Options) onError() ErrorWriter {
	if o.OnError != nil {
		return o.OnError
	}
	cookieName := o.CookieName
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return func(w http.ResponseWriter, r *http.Request, err error) {
		if errors.Is(err, postAuth.ErrUnauthenticated) {
			ExpireCookie(w, r, cookieName)
		}
		status := http.StatusUnauthorized
		if postAuth.KindOf(err) == postAuth.KindAuthorization {
			status = http.StatusForbidden
		}
		http.Error(w, err.Error(), status)
	}
}

// IdentityFromContext returns the identity injected by a guard.
func IdentityFromContext(ctx context.Context) (*postAuth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*postAuth.Identity)
	return id, ok
}

// TokenFromContext returns the session token accepted by a guard.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey{}).(string)
	return token
}

// RequireSession rejects requests whose session token does not validate.
func RequireSession(engine Authenticator, opts Options) func(http.Handler) http.Handler {
	onError := opts.onError()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				onError(w, r, postAuth.ErrUnauthenticated)
				return
			}

			token := TokenFromRequest(r, opts.CookieName)
			if token == "" {
				onError(w, r, postAuth.ErrUnauthenticated)
				return
			}

			id, err := engine.Authenticate(r.Context(), token)
			if err != nil {
				onError(w, r, postAuth.ErrUnauthenticated)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, id)
			ctx = context.WithValue(ctx, tokenContextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
