package service

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/ports"
)

// Evaluator decides whether a principal satisfies a route requirement.
// Evaluation is a pure predicate: it never writes state.
type Evaluator struct {
	resolvers map[string]ports.OwnershipResolver
	log       zerolog.Logger
}

// NewEvaluator returns an evaluator with the built-in "user" resolver, which
// treats a principal as owner of its own account.
func NewEvaluator(log zerolog.Logger) *Evaluator {
	e := &Evaluator{
		resolvers: make(map[string]ports.OwnershipResolver),
		log:       log,
	}
	e.Register(domain.ResourceUser, ports.OwnershipResolverFunc(func(_ context.Context, userID, resourceID int64) (bool, error) {
		return userID == resourceID, nil
	}))
	return e
}

// Register installs the ownership resolver for resourceType. It is meant to
// be called during startup, before requests are served.
func (e *Evaluator) Register(resourceType string, r ports.OwnershipResolver) {
	e.resolvers[resourceType] = r
}

// Evaluate reports whether p satisfies req for the request described by params.
func (e *Evaluator) Evaluate(ctx context.Context, p *domain.Principal, req domain.Requirement, params ports.RouteParams) bool {
	if p == nil {
		return false
	}

	switch r := req.(type) {
	case domain.RoleRequirement:
		return evaluateRoles(p, r)
	case *domain.RoleRequirement:
		return r != nil && evaluateRoles(p, *r)
	case domain.OwnershipRequirement:
		return e.evaluateOwnership(ctx, p, r, params)
	case *domain.OwnershipRequirement:
		return r != nil && e.evaluateOwnership(ctx, p, *r, params)
	default:
		return false
	}
}

func evaluateRoles(p *domain.Principal, r domain.RoleRequirement) bool {
	if len(r.Roles) == 0 {
		return false
	}
	for _, role := range r.Roles {
		has := p.HasRole(role)
		if r.MatchAll && !has {
			return false
		}
		if !r.MatchAll && has {
			return true
		}
	}
	return r.MatchAll
}

func (e *Evaluator) evaluateOwnership(ctx context.Context, p *domain.Principal, r domain.OwnershipRequirement, params ports.RouteParams) bool {
	if p.IsAdmin() {
		return true
	}
	if params == nil {
		return false
	}

	raw := params.Param(r.ResourceIDParam)
	resourceID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}

	resolver, ok := e.resolvers[r.ResourceType]
	if !ok {
		e.log.Warn().Str("resource_type", r.ResourceType).Msg("no ownership resolver registered")
		return false
	}

	owner, err := resolver.IsOwner(ctx, p.ID, resourceID)
	if err != nil {
		e.log.Error().Err(err).
			Str("resource_type", r.ResourceType).
			Int64("resource_id", resourceID).
			Int64("user_id", p.ID).
			Msg("ownership lookup failed")
		return false
	}
	return owner
}
