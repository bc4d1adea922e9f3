package middleware

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/service"
)

const (
	// PrincipalKey is the echo.Context key holding the *domain.Principal.
	PrincipalKey = "principal"

	HeaderTokenExpired = "Token-Expired"
)

// TokenValidator decodes bearer access tokens.
type TokenValidator interface {
	ValidateAndDecode(token string, opts service.ValidateOptions) (*domain.Principal, error)
}

// Authenticate validates the bearer token and stores the principal in the
// context. Requests without a valid token are rejected with an error the
// HTTP error handler renders as 401; an expired token also gets the
// Token-Expired header.
func Authenticate(v TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c)
			if !ok {
				return domain.ErrUnauthenticated
			}

			p, err := v.ValidateAndDecode(token, service.ValidateOptions{})
			if err != nil {
				if errors.Is(err, domain.ErrTokenExpired) {
					c.Response().Header().Set(HeaderTokenExpired, "true")
				}
				return err
			}

			c.Set(PrincipalKey, p)
			return next(c)
		}
	}
}

// Principal returns the authenticated principal, or nil for anonymous
// requests.
func Principal(c echo.Context) *domain.Principal {
	p, _ := c.Get(PrincipalKey).(*domain.Principal)
	return p
}

func bearerToken(c echo.Context) (string, bool) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
