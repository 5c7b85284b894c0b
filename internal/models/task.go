package models

import (
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusExpired    TaskStatus = "expired"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusCompleted, TaskStatusExpired:
		return true
	}
	return false
}

// Open reports whether a task in status s is still subject to expiry and reminders.
func (s TaskStatus) Open() bool {
	return s != TaskStatusCompleted && s != TaskStatusExpired
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// StatusChange is one entry of a task's status history.
// ChangedBy is nil for system transitions.
type StatusChange struct {
	Status    TaskStatus `json:"status"`
	ChangedAt time.Time  `json:"changed_at"`
	ChangedBy *uint64    `json:"changed_by"`
	Comment   string     `json:"comment"`
}

// AssignmentRecord is one entry of a task's assignment history.
type AssignmentRecord struct {
	UserID     uint64    `json:"user_id"`
	AssignedAt time.Time `json:"assigned_at"`
	AssignedBy uint64    `json:"assigned_by"`
}

type Task struct {
	ID                uint64                                `gorm:"primarykey" json:"id"`
	Title             string                                `gorm:"not null" json:"title"`
	Description       string                                `gorm:"type:text" json:"description"`
	Status            TaskStatus                            `gorm:"type:varchar(20);not null;default:'todo'" json:"status"`
	Category          string                                `gorm:"type:varchar(100);not null" json:"category"`
	Priority          TaskPriority                          `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`
	DueDate           time.Time                             `gorm:"not null" json:"due_date"`
	CreatorID         uint64                                `gorm:"not null" json:"creator_id"`
	OrganizationID    uint64                                `gorm:"not null" json:"organization_id"`
	CompletedAt       *time.Time                            `json:"completed_at"`
	CompletedByID     *uint64                               `json:"completed_by_id"`
	StatusHistory     datatypes.JSONSlice[StatusChange]     `json:"status_history"`
	AssignmentHistory datatypes.JSONSlice[AssignmentRecord] `json:"assignment_history"`
	CreatedAt         time.Time                             `json:"created_at"`
	UpdatedAt         time.Time                             `json:"updated_at"`
	DeletedAt         gorm.DeletedAt                        `gorm:"index" json:"-"`

	// Relations
	Creator      User             `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Organization Organization     `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Assignments  []TaskAssignment `gorm:"foreignKey:TaskID" json:"assignments,omitempty"`
}

// AssigneeIDs returns the current assignees in assignment order.
func (t Task) AssigneeIDs() []uint64 {
	assignments := make([]TaskAssignment, len(t.Assignments))
	copy(assignments, t.Assignments)
	sort.SliceStable(assignments, func(i, j int) bool {
		return assignments[i].Position < assignments[j].Position
	})

	ids := make([]uint64, len(assignments))
	for i, a := range assignments {
		ids[i] = a.UserID
	}
	return ids
}

// IsAssignedTo reports whether userID is among the current assignees.
func (t Task) IsAssignedTo(userID uint64) bool {
	for _, a := range t.Assignments {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// IsOverdue reports whether the due date has passed without completion.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate.Before(now) && t.Status != TaskStatusCompleted
}
