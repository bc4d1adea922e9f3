package ports

import "context"

// OwnershipResolver answers whether userID owns the resource resourceID of a
// single resource type.
type OwnershipResolver interface {
	IsOwner(ctx context.Context, userID, resourceID int64) (bool, error)
}

// OwnershipResolverFunc adapts a plain function to OwnershipResolver.
type OwnershipResolverFunc func(ctx context.Context, userID, resourceID int64) (bool, error)

func (f OwnershipResolverFunc) IsOwner(ctx context.Context, userID, resourceID int64) (bool, error) {
	return f(ctx, userID, resourceID)
}

// RouteParams exposes named path parameters of the current request.
// echo.Context satisfies it.
type RouteParams interface {
	Param(name string) string
}
