package models

import (
	"time"

	"github.com/yukikurage/taskflow-api/internal/constants"
	"gorm.io/datatypes"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// NotificationSettings toggles the mails sent for an organization's tasks.
type NotificationSettings struct {
	EmailNotifications bool `json:"email_notifications"`
	TaskReminders      bool `json:"task_reminders"`
	// ReminderHours is stored for clients only. The reminder sweep always uses constants.ReminderWindow.
	ReminderHours int `json:"reminder_hours"`
}

// OrganizationSettings is stored as a single JSON document on the organization row.
type OrganizationSettings struct {
	Theme              Theme                `json:"theme"`
	TaskCategories     []string             `json:"task_categories"`
	DefaultTaskDueDays int                  `json:"default_task_due_days"`
	Notifications      NotificationSettings `json:"notification_settings"`
}

// DefaultOrganizationSettings returns the settings a new organization starts with.
func DefaultOrganizationSettings() OrganizationSettings {
	categories := make([]string, len(constants.DefaultTaskCategories))
	copy(categories, constants.DefaultTaskCategories)

	return OrganizationSettings{
		Theme:              ThemeLight,
		TaskCategories:     categories,
		DefaultTaskDueDays: constants.DefaultDueDays,
		Notifications: NotificationSettings{
			EmailNotifications: true,
			TaskReminders:      true,
			ReminderHours:      constants.DefaultReminderHour,
		},
	}
}

type Organization struct {
	ID          uint64                                   `gorm:"primarykey" json:"id"`
	Name        string                                   `gorm:"type:varchar(255);not null" json:"name"`
	NameKey     string                                   `gorm:"type:varchar(255);uniqueIndex;not null" json:"-"`
	Slug        string                                   `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"`
	Description string                                   `gorm:"type:text" json:"description"`
	Settings    datatypes.JSONType[OrganizationSettings] `json:"settings"`
	IsActive    bool                                     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time                                `json:"created_at"`
	UpdatedAt   time.Time                                `json:"updated_at"`

	// Relations
	Members []User `gorm:"foreignKey:OrganizationID" json:"-"`
	Tasks   []Task `gorm:"foreignKey:OrganizationID" json:"-"`
}

// HasCategory reports whether category is one of the organization's configured task categories.
func (o Organization) HasCategory(category string) bool {
	for _, c := range o.Settings.Data().TaskCategories {
		if c == category {
			return true
		}
	}
	return false
}

// EmailNotificationsEnabled reports whether task emails go out for this organization.
func (o Organization) EmailNotificationsEnabled() bool {
	return o.Settings.Data().Notifications.EmailNotifications
}

// RemindersEnabled reports whether the reminder sweep covers this organization.
func (o Organization) RemindersEnabled() bool {
	n := o.Settings.Data().Notifications
	return n.EmailNotifications && n.TaskReminders
}
