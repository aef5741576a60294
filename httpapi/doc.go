// Package httpapi serves the postAuth engine over HTTP.
//
// Routes live under /api/auth. The session token travels in an HttpOnly,
// SameSite=Strict cookie; JSON bodies are limited to 1 MiB. Error responses
// are {"error": "..."} with the status chosen by postAuth.KindOf, and internal
// failures never expose their cause.
package httpapi
