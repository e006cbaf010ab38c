package domain

import (
	"time"
)

// Role represents user role
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPERADMIN"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether r may manage other users
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User represents a user entity
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Password  string     `json:"-"` // bcrypt hash
	Fullname  string     `json:"fullname"`
	Photo     *string    `json:"photo"`
	Role      Role       `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// IsDeleted reports whether the user was soft deleted
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// UserSortField is a column users can be ordered by
type UserSortField string

const (
	SortByCreatedAt UserSortField = "createdAt"
	SortByFullname  UserSortField = "fullname"
	SortByEmail     UserSortField = "email"
)

// UserFilter describes a page of the user listing
type UserFilter struct {
	Page     int
	Limit    int
	Search   string
	Role     Role
	SortBy   UserSortField
	SortDesc bool
}

// Offset returns the number of rows to skip
func (f UserFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}
