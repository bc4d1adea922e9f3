package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/clipper/clipper-api/internal/api/metrics"
	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/ports"
)

// Authorizer evaluates route requirements.
type Authorizer interface {
	Evaluate(ctx context.Context, p *domain.Principal, req domain.Requirement, params ports.RouteParams) bool
}

// Authorize enforces req on the route. It must run after Authenticate: an
// anonymous request is unauthenticated, an authenticated one that fails the
// requirement is forbidden.
func Authorize(a Authorizer, req domain.Requirement) echo.MiddlewareFunc {
	label := requirementLabel(req)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := Principal(c)
			if p == nil {
				return domain.ErrUnauthenticated
			}
			if !a.Evaluate(c.Request().Context(), p, req, c) {
				metrics.AccessDeniedTotal.WithLabelValues(label).Inc()
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}

// RequireRoles is shorthand for Authorize with a RoleRequirement matching
// any of roles.
func RequireRoles(a Authorizer, roles ...string) echo.MiddlewareFunc {
	return Authorize(a, domain.RoleRequirement{Roles: roles})
}

func requirementLabel(req domain.Requirement) string {
	switch req.(type) {
	case domain.OwnershipRequirement, *domain.OwnershipRequirement:
		return "ownership"
	default:
		return "role"
	}
}
