package models

import "strings"

// Role determines what an account may do: Teachers and Admins can mark
// attendance on behalf of others, and only the Admin can read the full daily
// report. Roles are immutable after registration.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ParseRole normalizes a wire-level role string. Returns false for anything
// outside the known set.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleTeacher:
		return RoleTeacher, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// SelfRegisterable reports whether the role may be chosen at registration
// time. The Admin role exists only through ledger initialization.
func (r Role) SelfRegisterable() bool {
	return r == RoleStudent || r == RoleTeacher
}

func (r Role) String() string { return string(r) }
