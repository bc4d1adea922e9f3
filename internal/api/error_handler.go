package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clipper/clipper-api/internal/core/domain"
)

// problemResponse is the error envelope for every API error.
type problemResponse struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// ErrorOptions tunes how sensitive errors are rendered.
type ErrorOptions struct {
	// RevealLockout answers locked logins with 429 and Retry-After instead
	// of the generic credentials failure.
	RevealLockout bool
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain errors to status codes with errors.Is.
//   - Logs unexpected errors without leaking details to the client.
//   - Renders {"status", "title", "detail"}.
func NewHTTPErrorHandler(log zerolog.Logger, opts ErrorOptions) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		p := resolveError(err, opts, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(p.Status)
			return
		}
		_ = c.JSON(p.Status, p)
	}
}

func problem(status int, detail string) problemResponse {
	return problemResponse{Status: status, Title: http.StatusText(status), Detail: detail}
}

func resolveError(err error, opts ErrorOptions, log zerolog.Logger, c echo.Context) problemResponse {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return problem(he.Code, fmt.Sprintf("%v", he.Message))
	}

	var locked *domain.LockoutError
	if errors.As(err, &locked) {
		if !opts.RevealLockout {
			return problem(http.StatusUnauthorized, "invalid email or password")
		}
		secs := max(int(math.Ceil(locked.Remaining.Seconds())), 1)
		c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
		return problem(http.StatusTooManyRequests, "account temporarily locked, try again later")
	}

	switch {
	case errors.Is(err, domain.ErrMalformedRequest):
		return problem(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		return problem(http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, domain.ErrAccountLocked):
		if opts.RevealLockout {
			return problem(http.StatusTooManyRequests, "account temporarily locked, try again later")
		}
		return problem(http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, domain.ErrTokenExpired):
		return problem(http.StatusUnauthorized, "token expired")
	case errors.Is(err, domain.ErrTokenRevoked):
		return problem(http.StatusUnauthorized, "token revoked")
	case errors.Is(err, domain.ErrTokenInvalid):
		return problem(http.StatusUnauthorized, "invalid token")
	case errors.Is(err, domain.ErrUnauthenticated):
		return problem(http.StatusUnauthorized, "authentication required")
	case errors.Is(err, domain.ErrForbidden):
		return problem(http.StatusForbidden, "access forbidden")
	case errors.Is(err, domain.ErrDuplicateAccount):
		return problem(http.StatusConflict, "an account with this email already exists")
	case errors.Is(err, domain.ErrRateLimited):
		return problem(http.StatusTooManyRequests, "too many requests, try again later")
	case errors.Is(err, domain.ErrUserNotFound):
		return problem(http.StatusNotFound, "user not found")
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return problem(http.StatusInternalServerError, "internal server error")
}
