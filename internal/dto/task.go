package dto

import (
	"time"

	"github.com/yukikurage/taskflow-api/internal/lifecycle"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/utils"
)

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID                uint64                    `json:"id"`
	Title             string                    `json:"title"`
	Description       string                    `json:"description"`
	Status            models.TaskStatus         `json:"status"`
	NextStatuses      []models.TaskStatus       `json:"next_statuses"`
	Category          string                    `json:"category"`
	Priority          models.TaskPriority       `json:"priority"`
	DueDate           time.Time                 `json:"due_date"`
	IsOverdue         bool                      `json:"is_overdue"`
	OrganizationID    uint64                    `json:"organization_id"`
	CreatorID         uint64                    `json:"creator_id"`
	Creator           *UserSummaryDTO           `json:"creator,omitempty"`
	Assignees         []UserSummaryDTO          `json:"assigned_to"`
	CompletedAt       *time.Time                `json:"completed_at"`
	CompletedByID     *uint64                   `json:"completed_by_id"`
	StatusHistory     []models.StatusChange     `json:"status_history"`
	AssignmentHistory []models.AssignmentRecord `json:"assignment_history"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

// TaskListItemDTO represents a task in list responses (no histories)
type TaskListItemDTO struct {
	ID          uint64              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Category    string              `json:"category"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     time.Time           `json:"due_date"`
	IsOverdue   bool                `json:"is_overdue"`
	CreatorID   uint64              `json:"creator_id"`
	Creator     *UserSummaryDTO     `json:"creator,omitempty"`
	Assignees   []UserSummaryDTO    `json:"assigned_to"`
	UpdatedAt   time.Time           `json:"updated_at"`
	CreatedAt   time.Time           `json:"created_at"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskListItemDTO        `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task, now time.Time) TaskDTO {
	dto := TaskDTO{
		ID:                task.ID,
		Title:             task.Title,
		Description:       task.Description,
		Status:            task.Status,
		NextStatuses:      lifecycle.AllowedTransitions(task.Status),
		Category:          task.Category,
		Priority:          task.Priority,
		DueDate:           task.DueDate,
		IsOverdue:         task.IsOverdue(now),
		OrganizationID:    task.OrganizationID,
		CreatorID:         task.CreatorID,
		Creator:           creatorSummary(task),
		Assignees:         assigneeSummaries(task),
		CompletedAt:       task.CompletedAt,
		CompletedByID:     task.CompletedByID,
		StatusHistory:     task.StatusHistory,
		AssignmentHistory: task.AssignmentHistory,
		CreatedAt:         task.CreatedAt,
		UpdatedAt:         task.UpdatedAt,
	}
	if dto.NextStatuses == nil {
		dto.NextStatuses = []models.TaskStatus{}
	}
	if dto.StatusHistory == nil {
		dto.StatusHistory = []models.StatusChange{}
	}
	if dto.AssignmentHistory == nil {
		dto.AssignmentHistory = []models.AssignmentRecord{}
	}
	return dto
}

// ToTaskListItemDTO converts a Task model to TaskListItemDTO
func ToTaskListItemDTO(task models.Task, now time.Time) TaskListItemDTO {
	return TaskListItemDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Category:    task.Category,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		IsOverdue:   task.IsOverdue(now),
		CreatorID:   task.CreatorID,
		Creator:     creatorSummary(task),
		Assignees:   assigneeSummaries(task),
		UpdatedAt:   task.UpdatedAt,
		CreatedAt:   task.CreatedAt,
	}
}

// ToTaskListItems converts tasks to list items
func ToTaskListItems(tasks []models.Task, now time.Time) []TaskListItemDTO {
	items := make([]TaskListItemDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskListItemDTO(task, now)
	}
	return items
}

// ToTaskListResponse converts tasks to a paginated list response
func ToTaskListResponse(tasks []models.Task, params utils.PaginationParams, total int64, now time.Time) TaskListResponse {
	return TaskListResponse{
		Tasks:      ToTaskListItems(tasks, now),
		Pagination: utils.NewPaginationResponse(params, total),
	}
}

func creatorSummary(task models.Task) *UserSummaryDTO {
	if task.Creator.ID == 0 {
		return nil
	}
	summary := ToUserSummaryDTO(task.Creator)
	return &summary
}

// assigneeSummaries lists assignees in assignment order. Unloaded users keep only their id.
func assigneeSummaries(task models.Task) []UserSummaryDTO {
	ids := task.AssigneeIDs()
	byID := make(map[uint64]models.User, len(task.Assignments))
	for _, a := range task.Assignments {
		byID[a.UserID] = a.User
	}

	summaries := make([]UserSummaryDTO, len(ids))
	for i, id := range ids {
		user := byID[id]
		user.ID = id
		summaries[i] = ToUserSummaryDTO(user)
	}
	return summaries
}
