package repository

import (
	"time"

	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvitationRepository is a GORM implementation of InvitationRepository
type GormInvitationRepository struct {
	db *gorm.DB
}

// NewInvitationRepository creates a new InvitationRepository
func NewInvitationRepository(db *gorm.DB) InvitationRepository {
	return &GormInvitationRepository{db: db}
}

// Create creates a new invitation
func (r *GormInvitationRepository) Create(invitation *models.Invitation) error {
	return r.db.Omit(clause.Associations).Create(invitation).Error
}

// FindByToken finds an invitation by token with its organization preloaded
func (r *GormInvitationRepository) FindByToken(token string) (*models.Invitation, error) {
	var invitation models.Invitation
	if err := r.db.Preload("Organization").Where("token = ?", token).First(&invitation).Error; err != nil {
		return nil, err
	}
	return &invitation, nil
}

// FindByID finds an invitation inside an organization
func (r *GormInvitationRepository) FindByID(organizationID, id uint64) (*models.Invitation, error) {
	var invitation models.Invitation
	err := r.db.Scopes(database.InOrganization("invitations", organizationID)).First(&invitation, id).Error
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

// FindPending finds the pending invitation for an email inside an organization
func (r *GormInvitationRepository) FindPending(organizationID uint64, email string) (*models.Invitation, error) {
	var invitation models.Invitation
	err := r.db.Scopes(database.InOrganization("invitations", organizationID)).
		Where("email = ? AND status = ?", models.NormalizeEmail(email), models.InvitationPending).
		First(&invitation).Error
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

// ListPending lists pending invitations of an organization
func (r *GormInvitationRepository) ListPending(organizationID uint64) ([]models.Invitation, error) {
	var invitations []models.Invitation
	err := r.db.Scopes(database.InOrganization("invitations", organizationID)).
		Preload("CreatedBy").
		Where("status = ?", models.InvitationPending).
		Order("created_at DESC").
		Find(&invitations).Error
	return invitations, err
}

// Update saves an invitation
func (r *GormInvitationRepository) Update(invitation *models.Invitation) error {
	return r.db.Omit(clause.Associations).Save(invitation).Error
}

// Redeem marks a pending invitation accepted and saves (or creates) the user in one transaction
func (r *GormInvitationRepository) Redeem(invitation *models.Invitation, user *models.User, at time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Invitation{}).
			Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
			Updates(map[string]interface{}{
				"status":      models.InvitationAccepted,
				"accepted_at": at,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInvitationNotPending
		}

		user.OrganizationID = &invitation.OrganizationID
		user.Role = invitation.Role

		var err error
		if user.ID == 0 {
			err = tx.Omit(clause.Associations).Create(user).Error
		} else {
			err = tx.Omit(clause.Associations).Save(user).Error
		}
		if err != nil {
			return err
		}

		invitation.Status = models.InvitationAccepted
		invitation.AcceptedAt = &at
		return nil
	})
}
