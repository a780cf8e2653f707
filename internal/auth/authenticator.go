package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/crucial707/adhoc-web/internal/models"
	"github.com/crucial707/adhoc-web/internal/repo"
)

// UserStore is the slice of the credential store the auth core needs.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// Authenticator checks a username/password pair against the store.
type Authenticator struct {
	users UserStore
	log   *slog.Logger
}

func NewAuthenticator(users UserStore, log *slog.Logger) *Authenticator {
	return &Authenticator{users: users, log: log}
}

// Authenticate returns the user on success and ErrInvalidCredentials for any
// credential problem. Other errors are store failures.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			a.log.WarnContext(ctx, "login failed", "username", username)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !VerifyPassword(user.PasswordHash, password) || !user.IsActive {
		a.log.WarnContext(ctx, "login failed", "username", username)
		return nil, ErrInvalidCredentials
	}

	a.log.InfoContext(ctx, "login succeeded", "username", user.Username, "user_id", user.ID)
	return user, nil
}
