package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/crucial707/adhoc-web/internal/auth"
	"github.com/crucial707/adhoc-web/internal/metrics"
	"github.com/crucial707/adhoc-web/internal/models"
)

type key string

const userKey key = "user"

// AuthCookieName carries the access token between browser and server.
const AuthCookieName = "access_token"

// ErrMessageUnauthorized is the single body for every token rejection.
const ErrMessageUnauthorized = "Could not validate credentials"

// TokenValidator resolves an access token to a live user.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*models.User, error)
}

// Auth gates handlers behind a valid access token.
type Auth struct {
	Validator TokenValidator
	Log       *slog.Logger
	Metrics   *metrics.Metrics
}

// TokenFromRequest returns the access token from the auth cookie, falling back
// to an "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AuthCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// resolve validates the request's token. A nil user with a nil error never happens.
func (a *Auth) resolve(r *http.Request) (*models.User, error) {
	token := TokenFromRequest(r)
	if token == "" {
		a.Metrics.IncTokenValidation("missing")
		return nil, &auth.ValidationError{Reason: auth.ReasonMalformed}
	}
	user, err := a.Validator.Validate(r.Context(), token)
	if err != nil {
		if reason := auth.ReasonOf(err); reason != "" {
			a.Metrics.IncTokenValidation(string(reason))
			a.Log.WarnContext(r.Context(), "token rejected", "reason", reason, "path", r.URL.Path)
		} else {
			a.Metrics.IncTokenValidation("error")
			a.Log.ErrorContext(r.Context(), "token validation failed", "error", err)
		}
		return nil, err
	}
	a.Metrics.IncTokenValidation("ok")
	return user, nil
}

// RequireAPI rejects unauthenticated requests with 401 JSON.
func (a *Auth) RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.resolve(r)
		if err != nil {
			if auth.ReasonOf(err) == "" {
				writeJSONError(w, "internal server error", http.StatusInternalServerError)
				return
			}
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSONError(w, ErrMessageUnauthorized, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequirePage sends unauthenticated browsers to the login page.
func (a *Auth) RequirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.resolve(r)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// Authenticated reports whether the request carries a valid token, without
// rejecting it.
func (a *Auth) Authenticated(r *http.Request) bool {
	token := TokenFromRequest(r)
	if token == "" {
		return false
	}
	_, err := a.Validator.Validate(r.Context(), token)
	return err == nil
}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the user set by RequireAPI or RequirePage.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}
