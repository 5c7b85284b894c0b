package repository

import (
	"errors"
	"time"

	"github.com/yukikurage/taskflow-api/internal/models"
)

// ErrInvitationNotPending is returned when an invitation was redeemed or cancelled concurrently.
var ErrInvitationNotPending = errors.New("invitation repository: invitation is no longer pending")

// TaskRepository defines the interface for task data access.
// Every method except the sweep queries is scoped to one organization.
type TaskRepository interface {
	// Create creates a task and its initial assignments
	Create(task *models.Task, assigneeIDs []uint64, assignedBy uint64) error

	// FindByID finds a task inside an organization with optional preloading
	FindByID(organizationID, id uint64, preload ...string) (*models.Task, error)

	// List retrieves tasks with filtering and pagination
	List(filter TaskFilter) ([]models.Task, int64, error)

	// Stats aggregates task counts for the filter
	Stats(filter TaskFilter, now time.Time) (*TaskStats, error)

	// Recent lists the most recently updated tasks for the filter
	Recent(filter TaskFilter, limit int) ([]models.Task, error)

	// Update saves task columns, including the embedded histories
	Update(task *models.Task) error

	// UpdateWithAssignees saves task columns and replaces its assignees in one transaction
	UpdateWithAssignees(task *models.Task, userIDs []uint64, assignedBy uint64) error

	// Delete soft deletes a task inside an organization
	Delete(organizationID, id uint64) error

	// ListOpenDueBefore lists tasks of every organization that are past due and still open
	ListOpenDueBefore(t time.Time) ([]models.Task, error)

	// ListOpenDueBetween lists open tasks of every organization due strictly inside (from, to)
	ListOpenDueBetween(from, to time.Time) ([]models.Task, error)
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	OrganizationID uint64
	Status         *models.TaskStatus
	Category       *string
	Priority       *models.TaskPriority
	AssignedUserID *uint64
	Search         string
	DueDateFrom    *time.Time
	DueDateTo      *time.Time
	OverdueAt      *time.Time
	Page           int
	PageSize       int
}

// GroupCount is a count of tasks sharing one value of a column.
type GroupCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// TaskStats summarises the tasks matched by a filter.
type TaskStats struct {
	Total      int64
	Completed  int64
	Overdue    int64
	ByCategory []GroupCount
	ByPriority []GroupCount
}

// OrganizationRepository defines the interface for organization data access
type OrganizationRepository interface {
	// Create creates a new organization
	Create(org *models.Organization) error

	// FindByID finds an organization by ID
	FindByID(id uint64) (*models.Organization, error)

	// NameOrSlugTaken reports whether another organization already uses the name key or slug
	NameOrSlugTaken(nameKey, slug string, excludeID uint64) (bool, error)

	// Update updates an organization
	Update(org *models.Organization) error
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// CreateWithOrganization creates an organization and its first admin within a single transaction.
	CreateWithOrganization(user *models.User, org *models.Organization) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindActiveByID finds an active user by ID
	FindActiveByID(id uint64) (*models.User, error)

	// FindByEmail finds a user by normalized email
	FindByEmail(email string) (*models.User, error)

	// FindByIDsInOrganization returns the active users of an organization among ids
	FindByIDsInOrganization(organizationID uint64, ids []uint64) ([]models.User, error)

	// FindMember finds a user inside an organization
	FindMember(organizationID, userID uint64) (*models.User, error)

	// ListByOrganization lists the members of an organization ordered by role then first name
	ListByOrganization(organizationID uint64) ([]models.User, error)

	// CountByOrganization counts the active members of an organization
	CountByOrganization(organizationID uint64) (int64, error)

	// Update saves a user
	Update(user *models.User) error
}

// InvitationRepository defines the interface for invitation data access
type InvitationRepository interface {
	// Create creates a new invitation
	Create(invitation *models.Invitation) error

	// FindByToken finds an invitation by token with its organization preloaded
	FindByToken(token string) (*models.Invitation, error)

	// FindByID finds an invitation inside an organization
	FindByID(organizationID, id uint64) (*models.Invitation, error)

	// FindPending finds the pending invitation for an email inside an organization
	FindPending(organizationID uint64, email string) (*models.Invitation, error)

	// ListPending lists pending invitations of an organization
	ListPending(organizationID uint64) ([]models.Invitation, error)

	// Update saves an invitation
	Update(invitation *models.Invitation) error

	// Redeem marks a pending invitation accepted and saves (or creates) the user in one transaction
	Redeem(invitation *models.Invitation, user *models.User, at time.Time) error
}
