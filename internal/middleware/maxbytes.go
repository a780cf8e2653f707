package middleware

import (
	"net/http"
)

// DefaultMaxBodyBytes bounds request bodies. Login forms are tiny.
const DefaultMaxBodyBytes = 64 << 10

// MaxBytes limits the request body size on methods that carry one. Oversized
// bodies fail to parse and the handler answers 400.
func MaxBytes(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
			default:
				if r.Body != nil {
					r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
