package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/crucial707/adhoc-web/internal/auth"
	"github.com/crucial707/adhoc-web/internal/middleware"
	"github.com/crucial707/adhoc-web/internal/models"
	"github.com/crucial707/adhoc-web/internal/repo"
)

var userCols = []string{"id", "username", "password_hash", "is_active", "created_at", "last_logged_in", "last_logged_from"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuthHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock, *auth.TokenValidator) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	users := repo.NewUserRepo(sqlx.NewDb(conn, "postgres"))
	secret := []byte("test-secret")
	h := &AuthHandler{
		Authenticator: auth.NewAuthenticator(users, discardLogger()),
		Issuer:        auth.NewTokenIssuer(secret),
		Logins:        users,
		TTL:           30 * time.Minute,
		Log:           discardLogger(),
	}
	return h, mock, auth.NewTokenValidator(secret, users)
}

func loginRequest(username, password string) *http.Request {
	form := url.Values{}
	if username != "" {
		form.Set("username", username)
	}
	if password != "" {
		form.Set("password", password)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "203.0.113.7:5555"
	return req
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Login(t *testing.T) {
	h, mock, validator := newAuthHandler(t)
	hash, err := auth.HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	mock.ExpectQuery(`SELECT id, username, password_hash, is_active, created_at, last_logged_in, last_logged_from FROM users WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "alice", hash, true, time.Now(), nil, nil))
	mock.ExpectExec(`UPDATE users SET last_logged_in = \$1, last_logged_from = \$2 WHERE id = \$3`).
		WithArgs(sqlmock.AnyArg(), "203.0.113.7", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rr := httptest.NewRecorder()
	h.Login(rr, loginRequest("alice", "secret"))

	if rr.Code != http.StatusOK {
		t.Fatalf("Login status: got %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.AccessToken == "" || out.TokenType != "bearer" {
		t.Errorf("unexpected response: %+v", out)
	}

	c := findCookie(rr, middleware.AuthCookieName)
	if c == nil {
		t.Fatal("access_token cookie not set")
	}
	if c.Value != out.AccessToken || !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.MaxAge != 1800 || c.Path != "/" {
		t.Errorf("unexpected cookie: %+v", c)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}

	// The issued token resolves back to alice.
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "alice", hash, true, time.Now(), nil, nil))
	user, err := validator.Validate(context.Background(), out.AccessToken)
	if err != nil || user.Username != "alice" {
		t.Errorf("Validate: user=%v err=%v", user, err)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h, mock, _ := newAuthHandler(t)
	hash, _ := auth.HashPassword("secret")

	mock.ExpectQuery(`FROM users WHERE username = \$1`).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(userCols))
	mock.ExpectQuery(`FROM users WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "alice", hash, true, time.Now(), nil, nil))

	var bodies []string
	for _, name := range []string{"nobody", "alice"} {
		rr := httptest.NewRecorder()
		h.Login(rr, loginRequest(name, "wrong"))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: status got %d, want 401", name, rr.Code)
		}
		if got := rr.Header().Get("WWW-Authenticate"); got != "Bearer" {
			t.Errorf("%s: WWW-Authenticate got %q", name, got)
		}
		if findCookie(rr, middleware.AuthCookieName) != nil {
			t.Errorf("%s: cookie set on failed login", name)
		}
		bodies = append(bodies, rr.Body.String())
	}
	if bodies[0] != bodies[1] {
		t.Errorf("unknown user and wrong password must look identical: %q vs %q", bodies[0], bodies[1])
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(bodies[0]), &out); err != nil || out["error"] != ErrMessageBadCredentials {
		t.Errorf("unexpected body %q", bodies[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAuthHandler_Login_MissingFields(t *testing.T) {
	h, _, _ := newAuthHandler(t)
	rr := httptest.NewRecorder()
	h.Login(rr, loginRequest("", ""))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want 422", rr.Code)
	}
	var out struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Fields["username"] == "" || out.Fields["password"] == "" {
		t.Errorf("fields: %+v", out.Fields)
	}
}

func TestAuthHandler_Login_StoreError(t *testing.T) {
	h, mock, _ := newAuthHandler(t)
	mock.ExpectQuery(`FROM users WHERE username = \$1`).
		WithArgs("alice").
		WillReturnError(errors.New("connection refused"))

	rr := httptest.NewRecorder()
	h.Login(rr, loginRequest("alice", "secret"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "connection refused") {
		t.Error("internal error leaked to client")
	}
}

func TestAuthHandler_Login_RecordLoginFailureIsNotFatal(t *testing.T) {
	h, mock, _ := newAuthHandler(t)
	hash, _ := auth.HashPassword("secret")
	mock.ExpectQuery(`FROM users WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "alice", hash, true, time.Now(), nil, nil))
	mock.ExpectExec(`UPDATE users SET last_logged_in`).WillReturnError(errors.New("disk full"))

	rr := httptest.NewRecorder()
	h.Login(rr, loginRequest("alice", "secret"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	h, _, _ := newAuthHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), &models.User{ID: 1, Username: "alice", IsActive: true}))
	rr := httptest.NewRecorder()
	h.Logout(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	c := findCookie(rr, middleware.AuthCookieName)
	if c == nil || c.MaxAge >= 0 || c.Value != "" {
		t.Errorf("cookie not cleared: %+v", c)
	}
	if !strings.Contains(rr.Header().Get("Set-Cookie"), "Max-Age=0") {
		t.Errorf("Set-Cookie: %q", rr.Header().Get("Set-Cookie"))
	}
	if !strings.Contains(rr.Body.String(), "Successfully logged out") {
		t.Errorf("body: %s", rr.Body.String())
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h, _, _ := newAuthHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), &models.User{ID: 7, Username: "alice", PasswordHash: "hash", IsActive: true}))
	rr := httptest.NewRecorder()
	h.Me(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["id"] != float64(7) || out["username"] != "alice" || out["is_active"] != true {
		t.Errorf("unexpected body: %v", out)
	}
	if _, ok := out["password_hash"]; ok {
		t.Error("password hash exposed")
	}
}
