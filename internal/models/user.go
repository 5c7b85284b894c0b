package models

import (
	"strings"
	"time"
)

type User struct {
	ID             uint64     `gorm:"primarykey" json:"id"`
	Email          string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash   string     `gorm:"type:varchar(255);not null" json:"-"`
	FirstName      string     `gorm:"type:varchar(100)" json:"first_name"`
	LastName       string     `gorm:"type:varchar(100)" json:"last_name"`
	Role           Role       `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	OrganizationID *uint64    `gorm:"index" json:"organization_id"`
	IsActive       bool       `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt    *time.Time `json:"last_login_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Relations
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

// FullName joins first and last name, falling back to the email address.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// BelongsTo reports whether the user is a member of the organization.
func (u User) BelongsTo(organizationID uint64) bool {
	return u.OrganizationID != nil && *u.OrganizationID == organizationID
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
