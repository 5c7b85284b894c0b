package constants

import "time"

// Context keys
const (
	ContextKeyUserID         = "user_id"
	ContextKeyUser           = "current_user"
	ContextKeyOrganizationID = "organization_id"
	ContextKeyTask           = "task"
	ContextKeyRequestID      = "request_id"
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
	RecentTaskLimit = 5
)

// Authentication
const (
	MinPasswordLength = 8
	DefaultTokenTTL   = 24 * time.Hour
	BearerPrefix      = "Bearer "
)

// Invitations
const (
	InviteTokenBytes = 32
	InviteTTL        = 24 * time.Hour
)

// Tasks
const (
	ReminderWindow      = 24 * time.Hour
	DefaultDueDays      = 7
	DefaultReminderHour = 24
	MaxAIGeneratedTasks = 20
	ExpiryComment       = "Task automatically marked as expired due to passing due date"
)

// DefaultTaskCategories seeds new organizations.
var DefaultTaskCategories = []string{"General", "Development", "Design", "Marketing"}
