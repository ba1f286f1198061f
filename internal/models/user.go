package models

import (
	"database/sql"
	"time"
)

const (
	RoleAdmin      = "admin"
	RoleDispatcher = "dispatcher"
	RoleTechnician = "technician"
)

/*
|--------------------------------------------------------------------------
| DATABASE MODEL (INTERNAL)
|--------------------------------------------------------------------------
*/
type User struct {
	ID        int64
	TenantID  int64
	Name      string
	Email     string
	Password  string
	Phone     sql.NullString
	Role      string
	IsBanned  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

/*
|--------------------------------------------------------------------------
| REQUEST
|--------------------------------------------------------------------------
*/
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

/*
|--------------------------------------------------------------------------
| RESPONSE DTO
|--------------------------------------------------------------------------
*/
type UserResponse struct {
	ID       int64   `json:"id"`
	TenantID int64   `json:"tenant_id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Role     string  `json:"role"`
	Phone    *string `json:"phone,omitempty"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func ToUserResponse(u User) UserResponse {
	var phone *string
	if u.Phone.Valid {
		phone = &u.Phone.String
	}

	return UserResponse{
		ID:       u.ID,
		TenantID: u.TenantID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		Phone:    phone,
	}
}

// Actor is the authenticated caller of a dispatch operation. It is passed
// explicitly into every engine call instead of being read from ambient state.
type Actor struct {
	UserID   int64
	TenantID int64
	Role     string
	Name     string
}

func (a Actor) IsDispatcher() bool {
	return a.Role == RoleDispatcher || a.Role == RoleAdmin
}

func (a Actor) IsTechnician() bool {
	return a.Role == RoleTechnician
}
