package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/crucial707/adhoc-web/internal/auth"
	"github.com/crucial707/adhoc-web/internal/metrics"
	"github.com/crucial707/adhoc-web/internal/middleware"
	"github.com/crucial707/adhoc-web/internal/models"
)

// ErrMessageBadCredentials is the only body a failed login ever gets.
const ErrMessageBadCredentials = "Incorrect username or password"

type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
}

type TokenIssuer interface {
	Issue(userID int64, ttl time.Duration) (string, time.Time, error)
}

// LoginRecorder stores login metadata after a successful login.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, id int64, at time.Time, from string) error
}

// ==========================
// Auth Handler
// ==========================
type AuthHandler struct {
	Authenticator Authenticator
	Issuer        TokenIssuer
	Logins        LoginRecorder
	TTL           time.Duration
	SecureCookies bool
	Log           *slog.Logger
	Metrics       *metrics.Metrics
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// ==========================
// Login (form-encoded username and password)
// ==========================
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		JSONError(w, "invalid form body", http.StatusBadRequest)
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	fields := make(map[string]string)
	if username == "" {
		fields["username"] = "required"
	}
	if password == "" {
		fields["password"] = "required"
	}
	if len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusUnprocessableEntity)
		return
	}

	user, err := h.Authenticator.Authenticate(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.Metrics.IncLogin("invalid")
			w.Header().Set("WWW-Authenticate", "Bearer")
			JSONError(w, ErrMessageBadCredentials, http.StatusUnauthorized)
			return
		}
		h.Metrics.IncLogin("error")
		h.Log.ErrorContext(r.Context(), "login", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	token, _, err := h.Issuer.Issue(user.ID, h.TTL)
	if err != nil {
		h.Metrics.IncLogin("error")
		h.Log.ErrorContext(r.Context(), "issue token", "user_id", user.ID, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	if err := h.Logins.RecordLogin(r.Context(), user.ID, time.Now(), middleware.ClientIP(r)); err != nil {
		h.Log.WarnContext(r.Context(), "record login", "user_id", user.ID, "error", err)
	}

	http.SetCookie(w, h.authCookie(token, int(h.TTL.Seconds())))
	h.Metrics.IncLogin("success")
	JSON(w, tokenResponse{AccessToken: token, TokenType: "bearer"}, http.StatusOK)
}

// ==========================
// Logout (expire the auth cookie)
// ==========================
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.authCookie("", -1))
	if user, ok := middleware.UserFromContext(r.Context()); ok {
		h.Log.InfoContext(r.Context(), "logout", "username", user.Username)
	}
	JSON(w, map[string]string{"message": "Successfully logged out"}, http.StatusOK)
}

// ==========================
// Me (current user)
// ==========================
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		JSONError(w, middleware.ErrMessageUnauthorized, http.StatusUnauthorized)
		return
	}
	JSON(w, user.Public(), http.StatusOK)
}

// authCookie builds the access token cookie. maxAge < 0 deletes it.
func (h *AuthHandler) authCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
