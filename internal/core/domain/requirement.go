package domain

// Requirement is an authorization rule attached to a route at registration
// time. The set of implementations is closed: RoleRequirement and
// OwnershipRequirement.
type Requirement interface {
	requirement()
}

// RoleRequirement passes when the principal holds any (or, with MatchAll,
// every) role in Roles. Comparison ignores case.
type RoleRequirement struct {
	Roles    []string
	MatchAll bool
}

// OwnershipRequirement passes when the principal owns the resource whose id
// is found in the route parameter ResourceIDParam. Admins always pass.
type OwnershipRequirement struct {
	ResourceIDParam string
	ResourceType    string
}

func (RoleRequirement) requirement()      {}
func (OwnershipRequirement) requirement() {}

// Resource types understood by the ownership resolvers.
const (
	ResourceUser    = "user"
	ResourceChannel = "channel"
	ResourceVideo   = "video"
	ResourceClip    = "clip"
)

// Named policies.
var (
	RequireAdmin       = RoleRequirement{Roles: []string{RoleAdmin}}
	RequireUser        = RoleRequirement{Roles: []string{RoleUser}}
	RequireUserOrAdmin = RoleRequirement{Roles: []string{RoleUser, RoleAdmin}}
)
