package middleware

import (
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName is the session cookie set on successful verification.
const DefaultCookieName = "jwt"

// TokenFromRequest returns the session token carried by r: the named cookie
// first, then a Bearer Authorization header.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	token, _ := bearerToken(r.Header.Get("Authorization"))
	return token
}

// ExpireCookie tells the client to drop the named cookie when r carried one.
func ExpireCookie(w http.ResponseWriter, r *http.Request, cookieName string) {
	if c, err := r.Cookie(cookieName); err != nil || c.Value == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
