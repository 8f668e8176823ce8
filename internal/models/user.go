package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role identifies what a caller is allowed to do in the chat core.
type Role string

const (
	RoleUser           Role = "USER"
	RoleCompanyManager Role = "COMPANY_MANAGER"
	RoleAdmin          Role = "ADMIN"
)

// ParseRole normalises a raw role claim. Unknown values yield false.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	switch role {
	case RoleUser, RoleCompanyManager, RoleAdmin:
		return role, true
	default:
		return "", false
	}
}

// Caller is the authenticated identity bound to a connection at handshake time.
type Caller struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the caller belongs to the admin pool.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// User is a platform account. Only the public profile fields are exposed over chat.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex" json:"-"`
	FirstName string    `gorm:"size:128" json:"first_name"`
	LastName  string    `gorm:"size:128" json:"last_name"`
	AvatarURL string    `gorm:"size:512" json:"avatar_url"`
	Role      Role      `gorm:"size:32;default:USER" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
