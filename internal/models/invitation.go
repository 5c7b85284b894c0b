package models

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

type Invitation struct {
	ID             uint64           `gorm:"primarykey" json:"id"`
	Token          string           `gorm:"type:varchar(128);uniqueIndex;not null" json:"-"`
	Email          string           `gorm:"type:varchar(255);not null;index:idx_invitations_email_org" json:"email"`
	OrganizationID uint64           `gorm:"not null;index:idx_invitations_email_org" json:"organization_id"`
	Role           Role             `gorm:"type:varchar(20);not null" json:"role"`
	Status         InvitationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ExpiresAt      time.Time        `gorm:"not null;index" json:"expires_at"`
	CreatedByID    uint64           `gorm:"not null" json:"created_by_id"`
	AcceptedAt     *time.Time       `json:"accepted_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`

	// Relations
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	CreatedBy    User         `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
}

// IsRedeemable reports whether the invitation is still pending and unexpired at now.
func (i Invitation) IsRedeemable(now time.Time) bool {
	return i.Status == InvitationPending && i.ExpiresAt.After(now)
}
