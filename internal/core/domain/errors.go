package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrAccountLocked        = errors.New("account temporarily locked")
	ErrRateLimited          = errors.New("too many requests")
	ErrTokenInvalid         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenRevoked         = errors.New("token revoked")
	ErrDuplicateAccount     = errors.New("account already exists")
	ErrMalformedRequest     = errors.New("malformed request")
	ErrUserNotFound         = errors.New("user not found")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrForbidden            = errors.New("access forbidden")
)

// TokenErrorKind classifies why an access token was rejected.
type TokenErrorKind string

const (
	TokenMalformed      TokenErrorKind = "malformed"
	TokenBadSignature   TokenErrorKind = "signature"
	TokenClaimsMismatch TokenErrorKind = "claims_mismatch"
	TokenLifetime       TokenErrorKind = "expired"
)

// TokenError is returned by access token validation.
type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("token %s", e.Kind)
	}
	return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

// Is lets callers match a TokenError against ErrTokenExpired or
// ErrTokenInvalid without inspecting Kind.
func (e *TokenError) Is(target error) bool {
	switch target {
	case ErrTokenExpired:
		return e.Kind == TokenLifetime
	case ErrTokenInvalid:
		return e.Kind != TokenLifetime
	}
	return false
}

// LockoutError carries the remaining lockout so the HTTP layer can emit
// Retry-After when lockouts are disclosed. It matches ErrAccountLocked.
type LockoutError struct {
	Remaining time.Duration
}

func (e *LockoutError) Error() string { return ErrAccountLocked.Error() }

func (e *LockoutError) Is(target error) bool { return target == ErrAccountLocked }
