package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/domain"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// CreateUserRequest represents a registration or admin-created user
type CreateUserRequest struct {
	Email    string       `json:"email" binding:"required,email"`
	Password string       `json:"password" binding:"required"`
	Fullname string       `json:"fullname" binding:"required,min=1,max=255"`
	Photo    *string      `json:"photo" binding:"omitempty,max=255"`
	Role     *domain.Role `json:"role"`
}

// UpdateUserRequest replaces the editable fields of a user
type UpdateUserRequest struct {
	Email    string       `json:"email" binding:"required,email"`
	Fullname string       `json:"fullname" binding:"required,min=1,max=255"`
	Photo    *string      `json:"photo" binding:"omitempty,max=255"`
	Role     *domain.Role `json:"role"`
}

// PatchUserRequest updates only the fields present
type PatchUserRequest struct {
	Email    *string      `json:"email" binding:"omitempty,email"`
	Fullname *string      `json:"fullname" binding:"omitempty,min=1,max=255"`
	Photo    *string      `json:"photo" binding:"omitempty,max=255"`
	Role     *domain.Role `json:"role"`
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	Password    string `json:"password" binding:"required"`
}

// ListUsersQuery is the query string of GET /users
type ListUsersQuery struct {
	Page      int    `form:"page"`
	Limit     int    `form:"limit"`
	Search    string `form:"search"`
	Role      string `form:"role"`
	SortBy    string `form:"sortBy"`
	SortOrder string `form:"sortOrder"`
}

// ToFilter applies defaults and rejects out-of-range values
func (q *ListUsersQuery) ToFilter() (domain.UserFilter, error) {
	f := domain.UserFilter{
		Page:     q.Page,
		Limit:    q.Limit,
		Search:   strings.TrimSpace(q.Search),
		SortBy:   domain.SortByCreatedAt,
		SortDesc: true,
	}

	if f.Page == 0 {
		f.Page = 1
	}
	if f.Page < 1 {
		return f, errors.New("page must be at least 1")
	}
	if f.Limit == 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit < 1 || f.Limit > MaxPageLimit {
		return f, fmt.Errorf("limit must be between 1 and %d", MaxPageLimit)
	}

	if q.Role != "" {
		f.Role = domain.Role(strings.ToUpper(q.Role))
		if !f.Role.Valid() {
			return f, errors.New("Invalid role value provided")
		}
	}

	switch domain.UserSortField(q.SortBy) {
	case "":
	case domain.SortByCreatedAt, domain.SortByFullname, domain.SortByEmail:
		f.SortBy = domain.UserSortField(q.SortBy)
	default:
		return f, errors.New("sortBy must be one of createdAt, fullname, email")
	}

	switch strings.ToLower(q.SortOrder) {
	case "", "desc":
	case "asc":
		f.SortDesc = false
	default:
		return f, errors.New("sortOrder must be asc or desc")
	}

	return f, nil
}
