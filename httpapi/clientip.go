package httpapi

import (
	"net"
	"net/http"
)

// clientIP returns the remote host of r. With Options.TrustProxy,
// handlers.ProxyHeaders has already rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
