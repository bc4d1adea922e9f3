package domain

import "strings"

// Principal is the authenticated identity rebuilt from an access token on
// every request. It is never persisted.
type Principal struct {
	ID    int64
	Email string
	Name  string
	Roles []string
}

// HasRole reports whether the principal carries role, ignoring case.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IsAdmin is shorthand for HasRole(RoleAdmin).
func (p *Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}
