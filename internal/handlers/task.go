package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/dto"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/middleware"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/services"
	"github.com/yukikurage/taskflow-api/internal/utils"
)

const dateOnlyLayout = "2006-01-02"

type TaskHandler struct {
	taskService *services.TaskService
	now         func() time.Time
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		now:         time.Now,
	}
}

// ListTasks returns the tasks of the caller's organization.
// Filters: status, category, priority, assigned_to, search, date_range=start,end, is_expired=true
func (h *TaskHandler) ListTasks(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	input, ok := bindListTasksQuery(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	input.Page = params.Page
	input.PageSize = params.Limit

	tasks, total, err := h.taskService.ListTasks(actor, input)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch tasks")
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, params, total, h.now()))
}

// GetStats returns dashboard counters for the tasks visible to the caller
func (h *TaskHandler) GetStats(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	stats, err := h.taskService.GetStats(actor)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch task stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// RecentTasks returns the most recently updated tasks visible to the caller
func (h *TaskHandler) RecentTasks(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.RecentTasks(actor)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch recent tasks")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": dto.ToTaskListItems(tasks, h.now()),
	})
}

// GetTask returns a specific task by ID
// Task is already loaded with relations by RequireTaskAccess middleware
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task, h.now()))
}

// CreateTask creates a new task
func (h *TaskHandler) CreateTask(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	type CreateTaskRequest struct {
		Title       string              `json:"title" binding:"required"`
		Description string              `json:"description"`
		Category    string              `json:"category" binding:"required"`
		Priority    models.TaskPriority `json:"priority"`
		DueDate     *time.Time          `json:"due_date"`
		AssignedTo  []uint64            `json:"assigned_to"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), actor, services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		respondServiceError(c, err, "Failed to create task")
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task, h.now()))
}

// UpdateTask applies a partial update of the task details.
// Status is not accepted here; it changes only through UpdateTaskStatus.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}
	patch, err := services.DecodeTaskPatch(body)
	if err != nil {
		respondServiceError(c, err, "Failed to update task")
		return
	}

	updated, err := h.taskService.UpdateTaskDetails(c.Request.Context(), actor, task.ID, patch)
	if err != nil {
		respondServiceError(c, err, "Failed to update task")
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated, h.now()))
}

// UpdateTaskStatus moves the task along its status lifecycle
func (h *TaskHandler) UpdateTaskStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	type UpdateStatusRequest struct {
		Status  models.TaskStatus `json:"status" binding:"required"`
		Comment string            `json:"comment" binding:"max=1000"`
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.taskService.UpdateTaskStatus(c.Request.Context(), actor, task.ID, services.UpdateStatusInput{
		Status:  req.Status,
		Comment: req.Comment,
	})
	if err != nil {
		respondServiceError(c, err, "Failed to update task status")
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated, h.now()))
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	if err := h.taskService.DeleteTask(actor, task.ID); err != nil {
		respondServiceError(c, err, "Failed to delete task")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
	})
}

// GenerateTasks drafts tasks from free text with AI. Drafts are not saved.
func (h *TaskHandler) GenerateTasks(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	type GenerateTasksRequest struct {
		Text string `json:"text" binding:"required"`
	}

	var req GenerateTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	tasks, err := h.taskService.GenerateTasks(c.Request.Context(), actor, req.Text)
	if err != nil {
		respondServiceError(c, err, "Failed to generate tasks")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
	})
}

func bindListTasksQuery(c *gin.Context) (services.ListTasksInput, bool) {
	var input services.ListTasksInput

	if v := c.Query("status"); v != "" {
		status := models.TaskStatus(v)
		input.Status = &status
	}
	if v := c.Query("category"); v != "" {
		input.Category = &v
	}
	if v := c.Query("priority"); v != "" {
		priority := models.TaskPriority(v)
		input.Priority = &priority
	}
	if v := c.Query("assigned_to"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid assigned_to")
			return input, false
		}
		input.AssignedTo = &id
	}
	input.Search = strings.TrimSpace(c.Query("search"))

	if v := c.Query("date_range"); v != "" {
		from, to, err := parseDateRange(v)
		if err != nil {
			apierrors.BadRequest(c, "date_range must be start,end (RFC3339 or YYYY-MM-DD)")
			return input, false
		}
		input.DueFrom, input.DueTo = &from, &to
	}
	input.Expired = c.Query("is_expired") == "true"

	return input, true
}

func parseDateRange(value string) (time.Time, time.Time, error) {
	start, end, found := strings.Cut(value, ",")
	if !found {
		return time.Time{}, time.Time{}, &time.ParseError{Value: value, Message: ": missing end date"}
	}
	from, err := parseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse(dateOnlyLayout, value)
}
