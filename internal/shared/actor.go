package shared

import "strings"

// Role is the coarse account role carried in every credential.
type Role string

const (
	RoleUser       Role = "user"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

// ParseRole normalises a role name, reporting whether it is known.
func ParseRole(raw string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleUser, RoleTechnician, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// Actor describes the principal on whose behalf a request runs.
type Actor struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// IsAdmin reports whether the actor holds the universal admin override.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
