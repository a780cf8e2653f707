package middleware

import (
	"net"
	"net/http"
)

// ClientIP returns the peer address of the request without the port.
// X-Forwarded-For and X-Real-IP are ignored.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
