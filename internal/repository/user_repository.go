package repository

import (
	"errors"
	"fmt"

	"github.com/yukikurage/taskflow-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

var (
	// ErrCreateUser is returned when creating a user fails inside the signup transaction.
	ErrCreateUser = errors.New("user repository: create user failed")
	// ErrCreateOrganization is returned when creating an organization fails inside the signup transaction.
	ErrCreateOrganization = errors.New("user repository: create organization failed")
)

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

// Create creates a new user
func (r *GormUserRepository) Create(user *models.User) error {
	return r.db.Omit(clause.Associations).Create(user).Error
}

// CreateWithOrganization creates an organization and its first admin within a single transaction.
func (r *GormUserRepository) CreateWithOrganization(user *models.User, org *models.Organization) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(org).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrCreateOrganization, err)
		}

		user.OrganizationID = &org.ID
		user.Role = models.RoleAdmin

		if err := tx.Omit(clause.Associations).Create(user).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrCreateUser, err)
		}

		return nil
	})
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(id uint64) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindActiveByID finds an active user by ID
func (r *GormUserRepository) FindActiveByID(id uint64) (*models.User, error) {
	var user models.User
	if err := r.db.Where("is_active = ?", true).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail finds a user by normalized email
func (r *GormUserRepository) FindByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", models.NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDsInOrganization returns the active users of an organization among ids
func (r *GormUserRepository) FindByIDsInOrganization(organizationID uint64, ids []uint64) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}

	err := r.db.
		Where("organization_id = ? AND is_active = ?", organizationID, true).
		Where("id IN ?", ids).
		Find(&users).Error
	return users, err
}

// FindMember finds a user inside an organization
func (r *GormUserRepository) FindMember(organizationID, userID uint64) (*models.User, error) {
	var user models.User
	if err := r.db.Where("organization_id = ?", organizationID).First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListByOrganization lists the members of an organization ordered by role then first name
func (r *GormUserRepository) ListByOrganization(organizationID uint64) ([]models.User, error) {
	var users []models.User
	// admin < manager < member sorts alphabetically in privilege order
	err := r.db.
		Where("organization_id = ?", organizationID).
		Order("role ASC").
		Order("first_name ASC").
		Find(&users).Error
	return users, err
}

// CountByOrganization counts the active members of an organization
func (r *GormUserRepository) CountByOrganization(organizationID uint64) (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).
		Where("organization_id = ? AND is_active = ?", organizationID, true).
		Count(&count).Error
	return count, err
}

// Update saves a user
func (r *GormUserRepository) Update(user *models.User) error {
	return r.db.Omit(clause.Associations).Save(user).Error
}
