package jwt

import (
	"slices"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Roles emitidos por el sistema de identidad del hostel.
const (
	RoleGuard   = "guard"
	RoleWarden  = "warden"
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Permisos de portería.
const (
	PermRequestOTP = "canRequestOTP"
	PermVerifyOTP  = "canVerifyOTP"
	PermCheckout   = "canCheckout"
	PermOverride   = "canOverride"
)

// Claims del access token. Subject es el id del guardia/warden/residente.
type Claims struct {
	jwtv5.RegisteredClaims
	Role  string   `json:"role"`
	Perms []string `json:"perms,omitempty"`
	Name  string   `json:"name,omitempty"`
}

// HasPerm indica si el token trae el permiso. admin tiene todos.
func (c *Claims) HasPerm(p string) bool {
	if c == nil {
		return false
	}
	if c.Role == RoleAdmin {
		return true
	}
	return slices.Contains(c.Perms, p)
}

// HasRole indica si el rol del token es alguno de roles. admin pasa siempre.
func (c *Claims) HasRole(roles ...string) bool {
	if c == nil {
		return false
	}
	if c.Role == RoleAdmin {
		return true
	}
	return slices.Contains(roles, c.Role)
}

// DefaultPerms retorna los permisos por defecto de un rol (usado por `hostelgate token`).
func DefaultPerms(role string) []string {
	switch role {
	case RoleGuard:
		return []string{PermRequestOTP, PermVerifyOTP, PermCheckout}
	case RoleWarden:
		return []string{PermOverride}
	default:
		return nil
	}
}
