package handler

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/clipper/clipper-api/internal/api/middleware"
	"github.com/clipper/clipper-api/internal/core/domain"
)

// principal extracts the principal injected by the Authenticate middleware.
// A missing principal means the route was registered without it.
func principal(c echo.Context) (*domain.Principal, error) {
	p := middleware.Principal(c)
	if p == nil {
		return nil, domain.ErrUnauthenticated
	}
	return p, nil
}

// outcome is the metrics label for a failed session operation.
func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrAccountLocked):
		return "locked"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrDuplicateAccount):
		return "duplicate"
	case errors.Is(err, domain.ErrMalformedRequest):
		return "invalid"
	case errors.Is(err, domain.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrTokenInvalid):
		return "invalid"
	default:
		return "error"
	}
}
