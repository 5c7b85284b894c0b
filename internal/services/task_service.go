package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/lifecycle"
	"github.com/yukikurage/taskflow-api/internal/logs"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/notify"
	"github.com/yukikurage/taskflow-api/internal/policy"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound           = newError(ErrNotFound, "task not found")
	ErrTitleRequired          = newError(ErrValidation, "title is required")
	ErrInvalidCategory        = newError(ErrValidation, "category is not configured for this organization")
	ErrInvalidPriority        = newError(ErrValidation, "priority must be low, medium or high")
	ErrInvalidStatus          = newError(ErrValidation, "status must be todo, in_progress, completed or expired")
	ErrInvalidAssignee        = newError(ErrValidation, "one or more assignees are not active members of the organization")
	ErrInvalidDateRange       = newError(ErrValidation, "date range start must not be after its end")
	ErrAIServiceNotConfigured = newError(ErrUnavailable, "AI service is not configured")
	ErrAINoTasksGenerated     = newError(ErrValidation, "AI did not generate any tasks")
	ErrAITooManyTasks         = newError(ErrValidation, fmt.Sprintf("AI generated too many tasks (max %d)", constants.MaxAIGeneratedTasks))
	ErrTextRequired           = newError(ErrValidation, "text is required")
)

// taskDetailPreloads are the relations returned with a single task.
var taskDetailPreloads = []string{"Creator", "Assignments.User"}

// TaskService handles task business logic
type TaskService struct {
	taskRepo  repository.TaskRepository
	orgRepo   repository.OrganizationRepository
	userRepo  repository.UserRepository
	notifier  notify.Notifier
	aiService *AIService
	now       func() time.Time
}

// NewTaskService creates a new TaskService
func NewTaskService(
	taskRepo repository.TaskRepository,
	orgRepo repository.OrganizationRepository,
	userRepo repository.UserRepository,
	notifier notify.Notifier,
	aiService *AIService,
) *TaskService {
	return &TaskService{
		taskRepo:  taskRepo,
		orgRepo:   orgRepo,
		userRepo:  userRepo,
		notifier:  notifier,
		aiService: aiService,
		now:       time.Now,
	}
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	Status     *models.TaskStatus
	Category   *string
	Priority   *models.TaskPriority
	AssignedTo *uint64
	Search     string
	DueFrom    *time.Time
	DueTo      *time.Time
	Expired    bool
	Page       int
	PageSize   int
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title       string
	Description string
	Category    string
	Priority    models.TaskPriority
	DueDate     *time.Time
	AssignedTo  []uint64
}

// UpdateStatusInput represents a status change request
type UpdateStatusInput struct {
	Status  models.TaskStatus
	Comment string
}

// TaskStats summarises the tasks visible to the actor
type TaskStats struct {
	TotalTasks     int64                   `json:"total_tasks"`
	CompletedTasks int64                   `json:"completed_tasks"`
	OverdueTasks   int64                   `json:"overdue_tasks"`
	TeamMembers    int64                   `json:"team_members"`
	CategoryStats  []repository.GroupCount `json:"category_stats"`
	PriorityStats  []repository.GroupCount `json:"priority_stats"`
}

// ListTasks returns the tasks of the actor's organization matching the filters.
// Members only ever see tasks assigned to them.
func (s *TaskService) ListTasks(actor policy.Actor, input ListTasksInput) ([]models.Task, int64, error) {
	filter, err := s.visibleFilter(actor, input)
	if err != nil {
		return nil, 0, err
	}
	filter.Page = input.Page
	filter.PageSize = input.PageSize

	tasks, total, err := s.taskRepo.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, total, nil
}

// GetStats aggregates the tasks visible to the actor
func (s *TaskService) GetStats(actor policy.Actor) (*TaskStats, error) {
	filter, err := s.visibleFilter(actor, ListTasksInput{})
	if err != nil {
		return nil, err
	}

	stats, err := s.taskRepo.Stats(filter, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tasks: %w", err)
	}

	members, err := s.userRepo.CountByOrganization(actor.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}

	return &TaskStats{
		TotalTasks:     stats.Total,
		CompletedTasks: stats.Completed,
		OverdueTasks:   stats.Overdue,
		TeamMembers:    members,
		CategoryStats:  nonNilCounts(stats.ByCategory),
		PriorityStats:  nonNilCounts(stats.ByPriority),
	}, nil
}

// RecentTasks returns the most recently updated tasks visible to the actor
func (s *TaskService) RecentTasks(actor policy.Actor) ([]models.Task, error) {
	filter, err := s.visibleFilter(actor, ListTasksInput{})
	if err != nil {
		return nil, err
	}

	tasks, err := s.taskRepo.Recent(filter, constants.RecentTaskLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent tasks: %w", err)
	}
	return tasks, nil
}

// GetTask returns a task with related data
func (s *TaskService) GetTask(actor policy.Actor, taskID uint64) (*models.Task, error) {
	task, err := s.findTask(actor.OrganizationID, taskID, taskDetailPreloads...)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewTask(actor, task) {
		return nil, ErrPermissionDenied
	}
	return task, nil
}

// CreateTask validates and creates a task in the actor's organization, then notifies its assignees
func (s *TaskService) CreateTask(ctx context.Context, actor policy.Actor, input CreateTaskInput) (*models.Task, error) {
	if !policy.Can(actor, policy.ActionCreateTask) {
		return nil, ErrPermissionDenied
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	org, err := s.findOrganization(actor.OrganizationID)
	if err != nil {
		return nil, err
	}

	category := strings.TrimSpace(input.Category)
	if !org.HasCategory(category) {
		return nil, ErrInvalidCategory
	}

	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, ErrInvalidPriority
	}

	assigneeIDs := uniqueUint64(input.AssignedTo)
	assignees, err := s.resolveAssignees(actor.OrganizationID, assigneeIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	dueDate := now.AddDate(0, 0, org.Settings.Data().DefaultTaskDueDays)
	if input.DueDate != nil {
		dueDate = *input.DueDate
	}

	task := &models.Task{
		Title:          title,
		Description:    strings.TrimSpace(input.Description),
		Status:         models.TaskStatusTodo,
		Category:       category,
		Priority:       priority,
		DueDate:        dueDate,
		CreatorID:      actor.UserID,
		OrganizationID: actor.OrganizationID,
	}
	lifecycle.RecordAssignments(task, nil, assigneeIDs, actor.UserID, now)

	if err := s.taskRepo.Create(task, assigneeIDs, actor.UserID); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	logs.Logger.WithFields(logrus.Fields{
		"task_id":         task.ID,
		"organization_id": task.OrganizationID,
		"assignees":       len(assigneeIDs),
	}).Info("Task created")

	if len(assignees) > 0 && org.EmailNotificationsEnabled() {
		s.deliver(task, "task_assigned", func() error {
			return s.notifier.TaskAssigned(ctx, task, assignees, s.actorUser(actor))
		})
	}

	return s.findTask(actor.OrganizationID, task.ID, taskDetailPreloads...)
}

// UpdateTaskStatus moves a task along the transition table on behalf of an assignee, manager or admin.
// Other assignees are notified; delivery failures never fail the update.
func (s *TaskService) UpdateTaskStatus(ctx context.Context, actor policy.Actor, taskID uint64, input UpdateStatusInput) (*models.Task, error) {
	if !input.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	task, err := s.findTask(actor.OrganizationID, taskID, append(taskDetailPreloads, "Organization")...)
	if err != nil {
		return nil, err
	}
	if !policy.CanModifyTask(actor, task) {
		return nil, ErrPermissionDenied
	}

	comment := strings.TrimSpace(input.Comment)
	if err := lifecycle.Transition(task, input.Status, actor.UserID, comment, s.now()); err != nil {
		return nil, err
	}
	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	logs.Logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"status":  task.Status,
		"user_id": actor.UserID,
	}).Info("Task status changed")

	recipients := assigneesExcept(task, actor.UserID)
	if len(recipients) > 0 && task.Organization.EmailNotificationsEnabled() {
		historyComment := task.StatusHistory[len(task.StatusHistory)-1].Comment
		s.deliver(task, "status_changed", func() error {
			return s.notifier.StatusChanged(ctx, task, recipients, s.actorUser(actor), historyComment)
		})
	}

	return task, nil
}

// UpdateTaskDetails applies an admin or manager's patch. Only newly added assignees get
// assignment history entries and notifications.
func (s *TaskService) UpdateTaskDetails(ctx context.Context, actor policy.Actor, taskID uint64, patch TaskPatch) (*models.Task, error) {
	if !policy.Can(actor, policy.ActionEditTask) {
		return nil, ErrPermissionDenied
	}

	task, err := s.findTask(actor.OrganizationID, taskID, append(taskDetailPreloads, "Organization")...)
	if err != nil {
		return nil, err
	}
	org := task.Organization

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		task.Title = title
	}
	if patch.Description != nil {
		task.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		category := strings.TrimSpace(*patch.Category)
		if !org.HasCategory(category) {
			return nil, ErrInvalidCategory
		}
		task.Category = category
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return nil, ErrInvalidPriority
		}
		task.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		task.DueDate = *patch.DueDate
	}

	var added []models.User
	if patch.AssignedTo != nil {
		nextIDs := uniqueUint64(*patch.AssignedTo)
		assignees, err := s.resolveAssignees(actor.OrganizationID, nextIDs)
		if err != nil {
			return nil, err
		}

		addedIDs := lifecycle.RecordAssignments(task, task.AssigneeIDs(), nextIDs, actor.UserID, s.now())
		added = usersWithIDs(assignees, addedIDs)

		err = s.taskRepo.UpdateWithAssignees(task, nextIDs, actor.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to update task: %w", err)
		}
	} else if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	updated, err := s.findTask(actor.OrganizationID, task.ID, taskDetailPreloads...)
	if err != nil {
		return nil, err
	}

	if len(added) > 0 && org.EmailNotificationsEnabled() {
		s.deliver(updated, "task_assigned", func() error {
			return s.notifier.TaskAssigned(ctx, updated, added, s.actorUser(actor))
		})
	}

	return updated, nil
}

// DeleteTask soft deletes a task of the actor's organization
func (s *TaskService) DeleteTask(actor policy.Actor, taskID uint64) error {
	if !policy.Can(actor, policy.ActionDeleteTask) {
		return ErrPermissionDenied
	}

	if err := s.taskRepo.Delete(actor.OrganizationID, taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	logs.Logger.WithFields(logrus.Fields{
		"task_id": taskID,
		"user_id": actor.UserID,
	}).Info("Task deleted")
	return nil
}

// GenerateTasks uses AI to draft tasks from text. Drafts use the organization's categories.
func (s *TaskService) GenerateTasks(ctx context.Context, actor policy.Actor, text string) ([]GeneratedTask, error) {
	if !policy.Can(actor, policy.ActionCreateTask) {
		return nil, ErrPermissionDenied
	}
	if s.aiService == nil {
		return nil, ErrAIServiceNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrTextRequired
	}

	org, err := s.findOrganization(actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	categories := org.Settings.Data().TaskCategories

	now := s.now()
	aiTasks, err := s.aiService.GenerateTasksFromText(ctx, text, categories, now)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tasks: %w", err)
	}

	if len(aiTasks) == 0 {
		return nil, ErrAINoTasksGenerated
	}
	if len(aiTasks) > constants.MaxAIGeneratedTasks {
		return nil, ErrAITooManyTasks
	}

	validTasks := make([]GeneratedTask, 0, len(aiTasks))
	cutoff := now.Add(-24 * time.Hour)
	for _, aiTask := range aiTasks {
		aiTask.Title = strings.TrimSpace(aiTask.Title)
		if aiTask.Title == "" {
			continue
		}

		if !org.HasCategory(aiTask.Category) && len(categories) > 0 {
			aiTask.Category = categories[0]
		}
		if !models.TaskPriority(aiTask.Priority).Valid() {
			aiTask.Priority = string(models.PriorityMedium)
		}
		if aiTask.DueDate != nil && aiTask.DueDate.Before(cutoff) {
			aiTask.DueDate = nil
		}

		validTasks = append(validTasks, aiTask)
	}

	if len(validTasks) == 0 {
		return nil, ErrAINoTasksGenerated
	}

	return validTasks, nil
}

// visibleFilter builds the repository filter for the actor, forcing members onto their own tasks.
func (s *TaskService) visibleFilter(actor policy.Actor, input ListTasksInput) (repository.TaskFilter, error) {
	filter := repository.TaskFilter{
		OrganizationID: actor.OrganizationID,
		Category:       input.Category,
		AssignedUserID: input.AssignedTo,
		Search:         input.Search,
		DueDateFrom:    input.DueFrom,
		DueDateTo:      input.DueTo,
	}

	if input.Status != nil {
		if !input.Status.Valid() {
			return filter, ErrInvalidStatus
		}
		filter.Status = input.Status
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return filter, ErrInvalidPriority
		}
		filter.Priority = input.Priority
	}
	if input.DueFrom != nil && input.DueTo != nil && input.DueFrom.After(*input.DueTo) {
		return filter, ErrInvalidDateRange
	}
	if input.Expired {
		now := s.now()
		filter.OverdueAt = &now
	}

	if !policy.Can(actor, policy.ActionViewAllTasks) {
		self := actor.UserID
		filter.AssignedUserID = &self
	}
	return filter, nil
}

// resolveAssignees loads ids as active users of the organization, failing if any is missing.
func (s *TaskService) resolveAssignees(orgID uint64, ids []uint64) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	users, err := s.userRepo.FindByIDsInOrganization(orgID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to verify assignees: %w", err)
	}
	if len(users) != len(ids) {
		return nil, ErrInvalidAssignee
	}
	return usersWithIDs(users, ids), nil
}

// deliver runs a notification and logs its failure. Notifications never fail the request.
func (s *TaskService) deliver(task *models.Task, kind string, send func() error) {
	if s.notifier == nil {
		return
	}
	if err := send(); err != nil {
		logs.Logger.WithError(err).WithFields(logrus.Fields{
			"task_id":      task.ID,
			"notification": kind,
		}).Warn("Task notification failed")
	}
}

// actorUser loads the acting user for notification copy; nil when it cannot be loaded.
func (s *TaskService) actorUser(actor policy.Actor) *models.User {
	user, err := s.userRepo.FindByID(actor.UserID)
	if err != nil {
		return nil
	}
	return user
}

func (s *TaskService) findTask(orgID, taskID uint64, preload ...string) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(orgID, taskID, preload...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

func (s *TaskService) findOrganization(id uint64) (*models.Organization, error) {
	org, err := s.orgRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}
	return org, nil
}

// assigneesExcept returns the loaded assignees of task other than userID.
func assigneesExcept(task *models.Task, userID uint64) []models.User {
	users := make([]models.User, 0, len(task.Assignments))
	for _, a := range task.Assignments {
		if a.UserID == userID {
			continue
		}
		users = append(users, a.User)
	}
	return users
}

// usersWithIDs picks users by id, in the order of ids.
func usersWithIDs(users []models.User, ids []uint64) []models.User {
	byID := make(map[uint64]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	result := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			result = append(result, u)
		}
	}
	return result
}

func nonNilCounts(counts []repository.GroupCount) []repository.GroupCount {
	if counts == nil {
		return []repository.GroupCount{}
	}
	return counts
}

// uniqueUint64 removes duplicate values from a slice of uint64
func uniqueUint64(values []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(values))
	result := make([]uint64, 0, len(values))

	for _, v := range values {
		if _, exists := seen[v]; exists {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}

	return result
}
