package domain

import "strconv"

// NameRef is the backend's wrapper for a named role or permission.
type NameRef struct {
	Name string `json:"name"`
}

// UserPayload is the user record as the backend serializes it.
type UserPayload struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Roles       []NameRef `json:"roles"`
	Permissions []NameRef `json:"permissions"`
}

// Principal converts the wire payload into the flat principal used locally.
func (u UserPayload) Principal() Principal {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = r.Name
	}
	perms := make([]string, len(u.Permissions))
	for i, p := range u.Permissions {
		perms[i] = p.Name
	}
	return Principal{
		ID:          strconv.FormatInt(u.ID, 10),
		Name:        u.Name,
		Email:       u.Email,
		Roles:       roles,
		Permissions: perms,
	}
}

// AuthResponse is returned by the login and register endpoints.
type AuthResponse struct {
	Token string      `json:"token"`
	User  UserPayload `json:"user"`
}

// ProfileResponse is returned by the profile endpoint.
type ProfileResponse struct {
	User UserPayload `json:"user"`
}

// LoginRequest is the body sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body sent to the register endpoint.
type RegisterRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// BackendError is the error envelope the backend returns on non-2xx statuses.
type BackendError struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}
