package helper

import (
	"errors"

	"hvac-dispatch/internal/models"
)

var (
	ErrUserBanned  = errors.New("user is blocked")
	ErrInvalidRole = errors.New("role not allowed")
)

// CheckUserRole rejects blocked users and users outside allowedRoles.
// No roles means any role.
func CheckUserRole(u *models.User, allowedRoles ...string) error {
	if u.IsBanned == "y" {
		return ErrUserBanned
	}
	if len(allowedRoles) == 0 {
		return nil
	}
	for _, allowedRole := range allowedRoles {
		if u.Role == allowedRole {
			return nil
		}
	}
	return ErrInvalidRole
}

func ValidRole(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleDispatcher, models.RoleTechnician:
		return true
	}
	return false
}
