package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin       UserRole = "ADMIN"
	RoleCoordinator UserRole = "COORDINATOR"
	RoleInstructor  UserRole = "INSTRUCTOR"
	RoleStudent     UserRole = "STUDENT"
)

// Valid reports whether the role is known.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleCoordinator, RoleInstructor, RoleStudent:
		return true
	default:
		return false
	}
}

// Staff reports whether the role may mutate class records.
func (r UserRole) Staff() bool {
	return r == RoleAdmin || r == RoleCoordinator || r == RoleInstructor
}
