package types

import "fmt"

// Role is the reviewer role supplied by the authentication collaborator
type Role string

const (
	RoleInspector Role = "Inspector"
	RoleReviewer  Role = "Reviewer"
	RoleAdmin     Role = "Admin"
)

// AllRoles returns all valid roles
func AllRoles() []Role {
	return []Role{RoleInspector, RoleReviewer, RoleAdmin}
}

// IsValid checks if the role is valid
func (r Role) IsValid() bool {
	switch r {
	case RoleInspector, RoleReviewer, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanUpdateRecords reports whether the role may edit outputs and change status.
// Inspectors are read-only.
func (r Role) CanUpdateRecords() bool {
	return r == RoleReviewer || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

// ParseRole parses a string into a Role
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid role: %s", s)
	}
	return role, nil
}
