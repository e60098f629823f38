package auth

import "strings"

type Role string

const (
	RoleStudent Role = "student"
	RoleTPO     Role = "tpo"
	RoleAdmin   Role = "admin"
)

// NormalizeRole maps free-form role strings ("STUDENT", " Tpo ") onto the
// known roles. Unknown values fall back to student, the least privileged role.
func NormalizeRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(RoleAdmin):
		return RoleAdmin
	case string(RoleTPO):
		return RoleTPO
	default:
		return RoleStudent
	}
}

// ParseRole is NormalizeRole without the fallback.
func ParseRole(role string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(RoleAdmin):
		return RoleAdmin, true
	case string(RoleTPO):
		return RoleTPO, true
	case string(RoleStudent):
		return RoleStudent, true
	default:
		return "", false
	}
}

func HasRole(role string, allowed ...Role) bool {
	if len(allowed) == 0 {
		return false
	}
	current := NormalizeRole(role)
	for _, candidate := range allowed {
		if current == candidate {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role may use placement-office endpoints.
func IsStaff(role string) bool {
	return HasRole(role, RoleTPO, RoleAdmin)
}
