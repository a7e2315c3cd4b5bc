package domain

import "slices"

// Principal represents the authenticated user as last reported by the backend.
// Roles and Permissions are plain name strings; the backend is authoritative
// for the catalog and may add names independently of this client.
type Principal struct {
	ID          string
	Name        string
	Email       string
	Roles       []string
	Permissions []string
}

// HasRole reports whether the principal carries the given role name.
func (p Principal) HasRole(name string) bool {
	return slices.Contains(p.Roles, name)
}

// HasPermission reports whether the principal carries the given permission name.
func (p Principal) HasPermission(name string) bool {
	return slices.Contains(p.Permissions, name)
}
