package dto

import (
	"time"

	"github.com/itsm-platform/ticketing-service/internal/domain"
)

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        UserResponse `json:"user"`
}

// RegisterRequest payload for self-service signup. Roles are not accepted.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	FullName string `json:"fullName" validate:"required,max=255"`
}

// CreateUserRequest payload for privileged user creation.
type CreateUserRequest struct {
	Email         string         `json:"email" validate:"required,email,max=255"`
	Password      string         `json:"password" validate:"required,min=6,max=128"`
	FullName      string         `json:"fullName" validate:"required,max=255"`
	RoleIDs       []string       `json:"roleIds" validate:"omitempty,dive,required"`
	DepartmentIDs []string       `json:"departmentIds" validate:"omitempty,dive,required"`
	TeamID        *string        `json:"teamId"`
	Skills        map[string]any `json:"skills"`
	IsAvailable   *bool          `json:"isAvailable"`
}

// UserListQuery filters GET /users and GET /admin/users.
type UserListQuery struct {
	RoleID       string `query:"roleId"`
	DepartmentID string `query:"departmentId"`
	CategoryID   string `query:"categoryId"`
	Search       string `query:"search" validate:"max=255"`
	Page         int    `query:"page" validate:"omitempty,min=1"`
	Limit        int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// RoleResponse is a role as exposed by the API.
type RoleResponse struct {
	ID   string         `json:"id"`
	Key  domain.RoleKey `json:"key"`
	Name string         `json:"name"`
}

// DepartmentResponse is a department as exposed by the API.
type DepartmentResponse struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId,omitempty"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	IsActive       bool   `json:"isActive"`
}

// UserResponse never includes the password hash.
type UserResponse struct {
	ID          string               `json:"id"`
	Email       string               `json:"email"`
	FullName    string               `json:"fullName"`
	UniqueKey   string               `json:"uniqueKey"`
	TeamID      *string              `json:"teamId"`
	Skills      map[string]any       `json:"skills,omitempty"`
	IsAvailable bool                 `json:"isAvailable"`
	Roles       []RoleResponse       `json:"roles"`
	Departments []DepartmentResponse `json:"departments"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// NewRoleResponse maps a role.
func NewRoleResponse(r domain.Role) RoleResponse {
	return RoleResponse{ID: r.ID, Key: r.Key, Name: r.Name}
}

// NewDepartmentResponse maps a department.
func NewDepartmentResponse(d domain.Department) DepartmentResponse {
	return DepartmentResponse{
		ID:             d.ID,
		OrganizationID: d.OrganizationID,
		Name:           d.Name,
		Description:    d.Description,
		IsActive:       d.IsActive,
	}
}

// NewUserResponse maps a user.
func NewUserResponse(u *domain.User) UserResponse {
	resp := UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		UniqueKey:   u.UniqueKey,
		TeamID:      u.TeamID,
		Skills:      u.Skills,
		IsAvailable: u.IsAvailable,
		Roles:       make([]RoleResponse, 0, len(u.Roles)),
		Departments: make([]DepartmentResponse, 0, len(u.Departments)),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
	for _, r := range u.Roles {
		resp.Roles = append(resp.Roles, NewRoleResponse(r))
	}
	for _, d := range u.Departments {
		resp.Departments = append(resp.Departments, NewDepartmentResponse(d))
	}
	return resp
}

// NewUserResponses maps a page of users.
func NewUserResponses(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}
