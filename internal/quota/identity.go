package quota

import (
	"net"
	"net/http"
	"strings"
)

// Key returns the stable identity used to track free usage: the lowercased
// signed-in email when present, otherwise the caller's network address. The
// forwarded-for header is trusted as-is; this is an anti-abuse signal, not a
// security boundary.
func Key(email string, r *http.Request) string {
	if email != "" {
		return "email:" + strings.ToLower(email)
	}
	return "ip:" + clientAddr(r)
}

// clientAddr extracts the client address: first X-Forwarded-For entry, then
// the direct peer address.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs: client, proxy1, proxy2
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "0.0.0.0"
}
