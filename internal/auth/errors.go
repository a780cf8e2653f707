package auth

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials is returned for an unknown username, a wrong password
// and an inactive account alike. Callers must not be able to tell them apart.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUnauthorized matches every ValidationError via errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// Reason says why a token was rejected. It is for logs and metrics only.
type Reason string

const (
	ReasonMalformed      Reason = "malformed"
	ReasonBadSignature   Reason = "bad_signature"
	ReasonExpired        Reason = "expired"
	ReasonUnknownSubject Reason = "unknown_subject"
)

// ValidationError is returned by TokenValidator.Validate.
type ValidationError struct {
	Reason Reason
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token %s: %v", e.Reason, e.Err)
	}
	return "token " + string(e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrUnauthorized }

// ReasonOf extracts the rejection reason, or "" if err is not a ValidationError.
func ReasonOf(err error) Reason {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return ""
}
