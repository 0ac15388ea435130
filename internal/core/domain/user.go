package domain

import "time"

// Role is the closed set of roles known to the backend. Unrecognised role
// strings are preserved as-is; permission resolution falls back to the member
// defaults for them.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
	RoleViewer  Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember, RoleViewer:
		return true
	}
	return false
}

// User models the hydrated profile of the authenticated actor.
type User struct {
	ID          string        `json:"id"`
	Email       string        `json:"email"`
	FullName    string        `json:"full_name,omitempty"`
	Role        Role          `json:"role"`
	Permissions PermissionMap `json:"permissions,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
