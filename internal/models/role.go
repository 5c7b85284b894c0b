package models

import "strings"

// Role is a user's privilege level inside an organization.
// Roles are ordered: admin ⊇ manager ⊇ member.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleManager:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.rank() > 0
}

// Permits reports whether r carries at least the privileges of required.
func (r Role) Permits(required Role) bool {
	return r.Valid() && required.Valid() && r.rank() >= required.rank()
}

// ParseRole normalizes s into a Role.
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	return role, role.Valid()
}
