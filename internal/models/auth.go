package models

import "github.com/golang-jwt/jwt/v5"

// Role grants access to groups of endpoints.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleViewer  Role = "VIEWER"
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTeacher || r == RoleViewer
}

// Claims is the access token payload. Subject identifies the operator or staff member.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}
