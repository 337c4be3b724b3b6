package domain

import "time"

// RoleKey is the machine identifier of a role.
type RoleKey string

const (
	RoleEmployee    RoleKey = "employee"
	RoleManager     RoleKey = "manager"
	RoleITExecutive RoleKey = "it_executive"
	RoleSuperAdmin  RoleKey = "super_admin"
)

// Role is a grantable permission set.
type Role struct {
	ID        string
	Key       RoleKey
	Name      string
	CreatedAt time.Time
}

// User is an authenticated actor of the system.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	UniqueKey    string
	TeamID       *string
	Skills       map[string]any
	IsAvailable  bool
	Roles        []Role
	Departments  []Department
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the user holds key.
func (u *User) HasRole(key RoleKey) bool {
	for _, r := range u.Roles {
		if r.Key == key {
			return true
		}
	}
	return false
}

// RoleKeys lists the keys of the user's roles.
func (u *User) RoleKeys() []RoleKey {
	keys := make([]RoleKey, 0, len(u.Roles))
	for _, r := range u.Roles {
		keys = append(keys, r.Key)
	}
	return keys
}

// InDepartment reports whether departmentID is among the user's departments.
func (u *User) InDepartment(departmentID string) bool {
	for _, d := range u.Departments {
		if d.ID == departmentID {
			return true
		}
	}
	return false
}

// UniqueKeyPrefix derives the user key prefix from the highest role held.
func UniqueKeyPrefix(roles []RoleKey) string {
	has := func(k RoleKey) bool {
		for _, r := range roles {
			if r == k {
				return true
			}
		}
		return false
	}
	switch {
	case has(RoleSuperAdmin):
		return "ADMIN-USR"
	case has(RoleITExecutive):
		return "EXC-USR"
	case has(RoleManager):
		return "MGR-USR"
	default:
		return "EMP-USR"
	}
}

// UserCategory maps a manager to a ticket category they may receive.
type UserCategory struct {
	ID         string
	UserID     string
	CategoryID string
	CreatedAt  time.Time
}
