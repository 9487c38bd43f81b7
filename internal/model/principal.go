package model

import "fmt"

// Role discriminates the kind of account a principal belongs to.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// UserID identifies a backend account. Like booking ids it may arrive as a
// JSON number or a JSON string.
type UserID string

// UnmarshalJSON accepts 7, 7.0 and "7".
func (id *UserID) UnmarshalJSON(data []byte) error {
	s, err := decodeID(data)
	if err != nil {
		return fmt.Errorf("decoding user id: %w", err)
	}
	*id = UserID(s)
	return nil
}

// Principal is the identity returned by the backend for a bearer token.
type Principal struct {
	// ID is the backend's identifier for the account.
	ID UserID `json:"id"`

	// Email is the login identifier of the account.
	Email string `json:"email"`

	// Name is the display name shown in the console header.
	Name string `json:"name"`

	// Role determines whether this principal may use the admin console.
	Role Role `json:"role"`
}

// IsAdmin reports whether the principal carries the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Session is the in-memory view of the operator's authentication state.
// Token is empty exactly when Principal is nil.
type Session struct {
	Principal *Principal
	Token     string
}

// Authenticated reports whether the session carries a verified principal.
func (s Session) Authenticated() bool {
	return s.Principal != nil
}
