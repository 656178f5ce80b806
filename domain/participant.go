// Package domain contains core concepts of the messaging system.
// This file defines User entities and the role rules built on them.
// No runtime, network, or UI logic should be added here.
package domain

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User is immutable once registered in the directory.
type User struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"display_name" json:"displayName"`
	Role        Role   `yaml:"role" json:"role"`
	Email       string `yaml:"email" json:"email"`
	Avatar      string `yaml:"avatar" json:"avatar"`
	Department  string `yaml:"department,omitempty" json:"department,omitempty"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
