package user

import "errors"

var ErrUserNotFound = errors.New("user not found")

type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a token claim to a Role. Unknown values fall back to customer,
// the least privileged role.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleVendor:
		return RoleVendor
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleCustomer
	}
}

// User is the read-only profile supplied by the identity collaborator.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
