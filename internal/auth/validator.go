package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crucial707/adhoc-web/internal/models"
	"github.com/crucial707/adhoc-web/internal/repo"
)

// TokenValidator verifies access tokens and resolves them to a live account.
type TokenValidator struct {
	secret []byte
	users  UserStore
	now    func() time.Time
}

func NewTokenValidator(secret []byte, users UserStore) *TokenValidator {
	return &TokenValidator{secret: append([]byte(nil), secret...), users: users, now: time.Now}
}

// Validate checks signature, then expiry, then that the subject is an existing
// active user. Every rejection is a *ValidationError.
func (v *TokenValidator) Validate(ctx context.Context, tokenString string) (*models.User, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, &ValidationError{Reason: classify(err), Err: err}
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, &ValidationError{Reason: ReasonMalformed, Err: fmt.Errorf("subject %q: %w", claims.Subject, err)}
	}

	user, err := v.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, &ValidationError{Reason: ReasonUnknownSubject, Err: err}
		}
		return nil, fmt.Errorf("lookup subject: %w", err)
	}
	if !user.IsActive {
		return nil, &ValidationError{Reason: ReasonUnknownSubject, Err: errors.New("user inactive")}
	}
	return user, nil
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	default:
		return ReasonMalformed
	}
}
