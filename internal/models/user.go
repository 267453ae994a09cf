package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role values recognised by the API.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
)

// User is an administrator or teacher account.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:16;index;not null" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeSave keeps stored emails and roles in their canonical form.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	u.Role = strings.ToLower(strings.TrimSpace(u.Role))
	return nil
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidRole reports whether role is one of the two supported roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTeacher:
		return true
	default:
		return false
	}
}
