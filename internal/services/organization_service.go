package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/taskflow-api/internal/logs"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/policy"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxDefaultDueDays = 365

var (
	ErrOrganizationNotFound       = newError(ErrNotFound, "organization not found")
	ErrOrganizationMemberNotFound = newError(ErrNotFound, "organization member not found")
	ErrCannotManageYourself       = newError(ErrForbidden, "you cannot change your own role or remove yourself")
	ErrInvalidRole                = newError(ErrValidation, "role must be admin, manager or member")
	ErrInvalidTheme               = newError(ErrValidation, "theme must be light or dark")
	ErrInvalidCategories          = newError(ErrValidation, "at least one non-empty task category is required")
	ErrInvalidDueDays             = newError(ErrValidation, fmt.Sprintf("default task due days must be between 1 and %d", maxDefaultDueDays))
	ErrInvalidReminderHours       = newError(ErrValidation, "reminder hours must be positive")
	ErrEmptyOrganizationUpdate    = newError(ErrValidation, "no updatable fields provided")
)

// OrganizationService provides business logic for organization operations.
type OrganizationService struct {
	orgRepo  repository.OrganizationRepository
	userRepo repository.UserRepository
}

// NewOrganizationService creates a new OrganizationService.
func NewOrganizationService(orgRepo repository.OrganizationRepository, userRepo repository.UserRepository) *OrganizationService {
	return &OrganizationService{
		orgRepo:  orgRepo,
		userRepo: userRepo,
	}
}

// OrganizationPatch is the set of organization fields an admin may change.
type OrganizationPatch struct {
	Name     *string        `json:"name"`
	Settings *SettingsPatch `json:"settings"`
}

// SettingsPatch updates individual settings, leaving the others untouched.
type SettingsPatch struct {
	Theme              *models.Theme              `json:"theme"`
	TaskCategories     []string                   `json:"task_categories"`
	DefaultTaskDueDays *int                       `json:"default_task_due_days"`
	Notifications      *NotificationSettingsPatch `json:"notification_settings"`
}

// NotificationSettingsPatch updates individual notification toggles.
type NotificationSettingsPatch struct {
	EmailNotifications *bool `json:"email_notifications"`
	TaskReminders      *bool `json:"task_reminders"`
	ReminderHours      *int  `json:"reminder_hours"`
}

// GetOrganization returns the actor's organization.
func (s *OrganizationService) GetOrganization(actor policy.Actor) (*models.Organization, error) {
	if !policy.Can(actor, policy.ActionViewOrganization) {
		return nil, ErrPermissionDenied
	}
	return s.findOrganization(actor.OrganizationID)
}

// UpdateOrganization applies an admin's patch to the organization.
// Renaming re-derives the slug; names compare case-insensitively.
func (s *OrganizationService) UpdateOrganization(actor policy.Actor, patch OrganizationPatch) (*models.Organization, error) {
	if !policy.Can(actor, policy.ActionUpdateOrganization) {
		return nil, ErrPermissionDenied
	}
	if patch.Name == nil && patch.Settings == nil {
		return nil, ErrEmptyOrganizationUpdate
	}

	org, err := s.findOrganization(actor.OrganizationID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		renamed, err := newOrganization(*patch.Name)
		if err != nil {
			return nil, err
		}
		taken, err := s.orgRepo.NameOrSlugTaken(renamed.NameKey, renamed.Slug, org.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check organization name: %w", err)
		}
		if taken {
			return nil, ErrOrganizationExists
		}
		org.Name, org.NameKey, org.Slug = renamed.Name, renamed.NameKey, renamed.Slug
	}

	if patch.Settings != nil {
		settings, err := mergeSettings(org.Settings.Data(), *patch.Settings)
		if err != nil {
			return nil, err
		}
		org.Settings = datatypes.NewJSONType(settings)
	}

	if err := s.orgRepo.Update(org); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	logs.Logger.WithFields(logrus.Fields{
		"organization_id": org.ID,
		"user_id":         actor.UserID,
	}).Info("Organization updated")
	return org, nil
}

func mergeSettings(current models.OrganizationSettings, patch SettingsPatch) (models.OrganizationSettings, error) {
	next := current

	if patch.Theme != nil {
		if *patch.Theme != models.ThemeLight && *patch.Theme != models.ThemeDark {
			return current, ErrInvalidTheme
		}
		next.Theme = *patch.Theme
	}

	if patch.TaskCategories != nil {
		categories := make([]string, 0, len(patch.TaskCategories))
		seen := make(map[string]struct{}, len(patch.TaskCategories))
		for _, c := range patch.TaskCategories {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			categories = append(categories, c)
		}
		if len(categories) == 0 {
			return current, ErrInvalidCategories
		}
		next.TaskCategories = categories
	}

	if patch.DefaultTaskDueDays != nil {
		if *patch.DefaultTaskDueDays < 1 || *patch.DefaultTaskDueDays > maxDefaultDueDays {
			return current, ErrInvalidDueDays
		}
		next.DefaultTaskDueDays = *patch.DefaultTaskDueDays
	}

	if n := patch.Notifications; n != nil {
		if n.EmailNotifications != nil {
			next.Notifications.EmailNotifications = *n.EmailNotifications
		}
		if n.TaskReminders != nil {
			next.Notifications.TaskReminders = *n.TaskReminders
		}
		if n.ReminderHours != nil {
			if *n.ReminderHours < 1 {
				return current, ErrInvalidReminderHours
			}
			next.Notifications.ReminderHours = *n.ReminderHours
		}
	}

	return next, nil
}

// ListMembers returns the members of the actor's organization ordered by role then first name.
func (s *OrganizationService) ListMembers(actor policy.Actor) ([]models.User, error) {
	if !policy.Can(actor, policy.ActionViewOrganization) {
		return nil, ErrPermissionDenied
	}

	members, err := s.userRepo.ListByOrganization(actor.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// ChangeMemberRole sets another member's role.
func (s *OrganizationService) ChangeMemberRole(actor policy.Actor, memberID uint64, rawRole string) (*models.User, error) {
	role, ok := models.ParseRole(rawRole)
	if !ok {
		return nil, ErrInvalidRole
	}

	member, err := s.authorizeMemberAction(actor, policy.ActionChangeMemberRole, memberID)
	if err != nil {
		return nil, err
	}

	member.Role = role
	if err := s.userRepo.Update(member); err != nil {
		return nil, fmt.Errorf("failed to update member role: %w", err)
	}

	logs.Logger.WithFields(logrus.Fields{
		"organization_id": actor.OrganizationID,
		"member_id":       member.ID,
		"role":            role,
	}).Info("Member role changed")
	return member, nil
}

// RemoveMember detaches another member from the organization and resets their role.
func (s *OrganizationService) RemoveMember(actor policy.Actor, memberID uint64) error {
	member, err := s.authorizeMemberAction(actor, policy.ActionRemoveMember, memberID)
	if err != nil {
		return err
	}

	member.OrganizationID = nil
	member.Role = models.RoleMember
	if err := s.userRepo.Update(member); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	logs.Logger.WithFields(logrus.Fields{
		"organization_id": actor.OrganizationID,
		"member_id":       member.ID,
	}).Info("Member removed")
	return nil
}

func (s *OrganizationService) authorizeMemberAction(actor policy.Actor, action policy.Action, memberID uint64) (*models.User, error) {
	if !policy.Can(actor, action) {
		return nil, ErrPermissionDenied
	}
	if memberID == actor.UserID {
		return nil, ErrCannotManageYourself
	}

	member, err := s.userRepo.FindMember(actor.OrganizationID, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationMemberNotFound
		}
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	if !policy.CanManageMember(actor, action, member) {
		return nil, ErrPermissionDenied
	}
	return member, nil
}

func (s *OrganizationService) findOrganization(id uint64) (*models.Organization, error) {
	org, err := s.orgRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}
	return org, nil
}
