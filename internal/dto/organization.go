package dto

import (
	"time"

	"github.com/yukikurage/taskflow-api/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID             uint64      `json:"id"`
	Email          string      `json:"email"`
	FirstName      string      `json:"first_name"`
	LastName       string      `json:"last_name"`
	Role           models.Role `json:"role"`
	OrganizationID *uint64     `json:"organization_id"`
	IsActive       bool        `json:"is_active"`
	LastLoginAt    *time.Time  `json:"last_login_at"`
	CreatedAt      time.Time   `json:"created_at"`
}

// UserSummaryDTO is the short form of a user embedded in other resources
type UserSummaryDTO struct {
	ID        uint64 `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// OrganizationDTO represents an organization in API responses
type OrganizationDTO struct {
	ID          uint64                      `json:"id"`
	Name        string                      `json:"name"`
	Slug        string                      `json:"slug"`
	Description string                      `json:"description"`
	Settings    models.OrganizationSettings `json:"settings"`
	IsActive    bool                        `json:"is_active"`
	CreatedAt   time.Time                   `json:"created_at"`
}

// ProfileDTO is the authenticated user with their organization
type ProfileDTO struct {
	User         UserDTO          `json:"user"`
	Organization *OrganizationDTO `json:"organization"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserDTO   `json:"user"`
}

// InvitationDTO represents an invitation in API responses. The token is never exposed here.
type InvitationDTO struct {
	ID        uint64                  `json:"id"`
	Email     string                  `json:"email"`
	Role      models.Role             `json:"role"`
	Status    models.InvitationStatus `json:"status"`
	ExpiresAt time.Time               `json:"expires_at"`
	CreatedBy *UserSummaryDTO         `json:"created_by,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// InviteResponse is returned after creating an invitation
type InviteResponse struct {
	Invitation InvitationDTO `json:"invitation"`
	InviteLink string        `json:"invite_link"`
}

// InvitationPreviewDTO is the public view of an invitation
type InvitationPreviewDTO struct {
	Email            string      `json:"email"`
	OrganizationName string      `json:"organization_name"`
	Role             models.Role `json:"role"`
	ExpiresAt        time.Time   `json:"expires_at"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:             user.ID,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
		IsActive:       user.IsActive,
		LastLoginAt:    user.LastLoginAt,
		CreatedAt:      user.CreatedAt,
	}
}

// ToUserDTOs converts users to DTOs
func ToUserDTOs(users []models.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i, user := range users {
		dtos[i] = ToUserDTO(user)
	}
	return dtos
}

// ToUserSummaryDTO converts a User model to its summary
func ToUserSummaryDTO(user models.User) UserSummaryDTO {
	return UserSummaryDTO{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

// ToOrganizationDTO converts an Organization model to OrganizationDTO
func ToOrganizationDTO(org models.Organization) OrganizationDTO {
	return OrganizationDTO{
		ID:          org.ID,
		Name:        org.Name,
		Slug:        org.Slug,
		Description: org.Description,
		Settings:    org.Settings.Data(),
		IsActive:    org.IsActive,
		CreatedAt:   org.CreatedAt,
	}
}

// ToProfileDTO converts a user with its optional organization
func ToProfileDTO(user models.User) ProfileDTO {
	profile := ProfileDTO{User: ToUserDTO(user)}
	if user.Organization != nil {
		org := ToOrganizationDTO(*user.Organization)
		profile.Organization = &org
	}
	return profile
}

// ToInvitationDTO converts an Invitation model to InvitationDTO
func ToInvitationDTO(invitation models.Invitation) InvitationDTO {
	dto := InvitationDTO{
		ID:        invitation.ID,
		Email:     invitation.Email,
		Role:      invitation.Role,
		Status:    invitation.Status,
		ExpiresAt: invitation.ExpiresAt,
		CreatedAt: invitation.CreatedAt,
	}
	if invitation.CreatedBy.ID != 0 {
		creator := ToUserSummaryDTO(invitation.CreatedBy)
		dto.CreatedBy = &creator
	}
	return dto
}

// ToInvitationDTOs converts invitations to DTOs
func ToInvitationDTOs(invitations []models.Invitation) []InvitationDTO {
	dtos := make([]InvitationDTO, len(invitations))
	for i, invitation := range invitations {
		dtos[i] = ToInvitationDTO(invitation)
	}
	return dtos
}
