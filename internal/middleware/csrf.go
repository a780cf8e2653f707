package middleware

import (
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/gorilla/securecookie"
)

const (
	CSRFCookieName = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
	csrfFormField  = "csrf_token"
	csrfCookieKey  = "csrf"
)

// CSRF implements double-submit protection. Every response carries a signed
// csrf_token cookie readable by page scripts; unsafe requests must echo its
// exact value in the X-CSRF-Token header or a csrf_token form field.
type CSRF struct {
	codec  *securecookie.SecureCookie
	secure bool
	exempt map[string]bool
	log    *slog.Logger
}

// NewCSRF keys the cookie signature with secret. Requests to exempt paths are
// never checked.
func NewCSRF(secret []byte, secure bool, log *slog.Logger, exempt ...string) *CSRF {
	codec := securecookie.New(secret, nil)
	codec.MaxAge(0)
	ex := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		ex[p] = true
	}
	return &CSRF{codec: codec, secure: secure, exempt: ex, log: log}
}

// valid reports whether cookie value v was produced by this codec.
func (c *CSRF) valid(v string) bool {
	var token string
	return c.codec.Decode(csrfCookieKey, v, &token) == nil && token != ""
}

func (c *CSRF) issue(w http.ResponseWriter) error {
	raw := securecookie.GenerateRandomKey(32)
	v, err := c.codec.Encode(csrfCookieKey, hex.EncodeToString(raw))
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    v,
		Path:     "/",
		HttpOnly: false,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func (c *CSRF) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		cookie := ""
		if ck, err := r.Cookie(CSRFCookieName); err == nil && c.valid(ck.Value) {
			cookie = ck.Value
		}

		if isSafeMethod(r.Method) {
			if cookie == "" {
				if err := c.issue(w); err != nil {
					c.log.ErrorContext(r.Context(), "csrf cookie", "error", err)
				}
			}
			next.ServeHTTP(w, r)
			return
		}

		submitted := r.Header.Get(CSRFHeaderName)
		if submitted == "" {
			submitted = r.PostFormValue(csrfFormField)
		}
		if cookie == "" || subtle.ConstantTimeCompare([]byte(cookie), []byte(submitted)) != 1 {
			c.log.WarnContext(r.Context(), "csrf check failed", "method", r.Method, "path", r.URL.Path)
			writeJSONError(w, "CSRF token verification failed", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
