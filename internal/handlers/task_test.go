package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/taskflow-api/internal/dto"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/middleware"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/policy"
	"github.com/yukikurage/taskflow-api/internal/services"
)

// TaskHandlerTestSuite defines the test suite for TaskHandler
type TaskHandlerTestSuite struct {
	suite.Suite
	env    *handlerTestEnv
	router *gin.Engine

	org          *models.Organization
	manager      *models.User
	managerToken string
	alice        *models.User
	aliceToken   string
	bob          *models.User
	bobToken     string
	outsider     *models.User
	outsiderTok  string
}

// SetupTest runs before each test
func (suite *TaskHandlerTestSuite) SetupTest() {
	t := suite.T()
	suite.env = setupHandlerTestEnv(t)

	suite.org = suite.env.createOrganization(t, "Acme")
	suite.env.createUser(t, suite.org, "admin@acme.test", models.RoleAdmin)
	suite.manager, suite.managerToken = suite.env.createUser(t, suite.org, "manager@acme.test", models.RoleManager)
	suite.alice, suite.aliceToken = suite.env.createUser(t, suite.org, "alice@acme.test", models.RoleMember)
	suite.bob, suite.bobToken = suite.env.createUser(t, suite.org, "bob@acme.test", models.RoleMember)

	other := suite.env.createOrganization(t, "Globex")
	suite.outsider, suite.outsiderTok = suite.env.createUser(t, other, "boss@globex.test", models.RoleAdmin)

	h := suite.env.taskHandler
	requireTask := middleware.RequireTaskAccess(suite.env.taskService)

	r := gin.New()
	tasks := r.Group("/api/tasks", middleware.RequireAuth(suite.env.authService), middleware.RequireOrganization())
	tasks.GET("", h.ListTasks)
	tasks.POST("", middleware.RequireRole(models.RoleManager), h.CreateTask)
	tasks.GET("/stats", h.GetStats)
	tasks.GET("/recent", h.RecentTasks)
	tasks.POST("/generate", middleware.RequireRole(models.RoleManager), h.GenerateTasks)
	tasks.GET("/:id", requireTask, h.GetTask)
	tasks.PUT("/:id", requireTask, h.UpdateTask)
	tasks.PATCH("/:id", requireTask, h.UpdateTask)
	tasks.PATCH("/:id/status", requireTask, h.UpdateTaskStatus)
	tasks.DELETE("/:id", middleware.RequireRole(models.RoleManager), requireTask, h.DeleteTask)
	suite.router = r
}

// createTask creates a task through the service as the manager
func (suite *TaskHandlerTestSuite) createTask(title string, priority models.TaskPriority, assignees ...uint64) *models.Task {
	actor, ok := policy.NewActor(suite.manager)
	suite.Require().True(ok)

	task, err := suite.env.taskService.CreateTask(context.Background(), actor, services.CreateTaskInput{
		Title:      title,
		Category:   "Development",
		Priority:   priority,
		AssignedTo: assignees,
	})
	suite.Require().NoError(err)
	return task
}

func (suite *TaskHandlerTestSuite) taskPath(id uint64) string {
	return fmt.Sprintf("/api/tasks/%d", id)
}

func (suite *TaskHandlerTestSuite) TestCreateTask() {
	due := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	w := performRequest(suite.router, http.MethodPost, "/api/tasks", suite.managerToken, map[string]interface{}{
		"title":       "Design homepage",
		"category":    "Design",
		"priority":    "high",
		"due_date":    due,
		"assigned_to": []uint64{suite.alice.ID, suite.alice.ID},
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var task dto.TaskDTO
	decodeBody(suite.T(), w, &task)
	suite.Equal(models.TaskStatusTodo, task.Status)
	suite.Equal(models.PriorityHigh, task.Priority)
	suite.True(task.DueDate.Equal(due))
	suite.Require().Len(task.Assignees, 1)
	suite.Equal(suite.alice.ID, task.Assignees[0].ID)
	suite.Equal("alice@acme.test", task.Assignees[0].Email)
	suite.Require().Len(task.AssignmentHistory, 1)
	suite.Equal(suite.manager.ID, task.AssignmentHistory[0].AssignedBy)
	suite.Empty(task.StatusHistory)
	suite.Equal([]string{"alice@acme.test"}, suite.env.mail.recipients())
}

func (suite *TaskHandlerTestSuite) TestCreateTask_DefaultsDueDate() {
	before := time.Now()
	w := performRequest(suite.router, http.MethodPost, "/api/tasks", suite.managerToken, map[string]interface{}{
		"title":    "Write docs",
		"category": "General",
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var task dto.TaskDTO
	decodeBody(suite.T(), w, &task)
	suite.Equal(models.PriorityMedium, task.Priority)
	suite.WithinDuration(before.AddDate(0, 0, 7), task.DueDate, time.Minute)
	suite.Empty(suite.env.mail.recipients())
}

func (suite *TaskHandlerTestSuite) TestCreateTask_Rejected() {
	cases := []struct {
		name   string
		token  string
		body   map[string]interface{}
		status int
	}{
		{"member", suite.aliceToken, map[string]interface{}{"title": "x", "category": "General"}, http.StatusForbidden},
		{"unknown category", suite.managerToken, map[string]interface{}{"title": "x", "category": "Sales"}, http.StatusBadRequest},
		{"bad priority", suite.managerToken, map[string]interface{}{"title": "x", "category": "General", "priority": "urgent"}, http.StatusBadRequest},
		{"foreign assignee", suite.managerToken, map[string]interface{}{"title": "x", "category": "General", "assigned_to": []uint64{suite.outsider.ID}}, http.StatusBadRequest},
		{"blank title", suite.managerToken, map[string]interface{}{"title": "   ", "category": "General"}, http.StatusBadRequest},
	}

	for _, tc := range cases {
		w := performRequest(suite.router, http.MethodPost, "/api/tasks", tc.token, tc.body)
		suite.Equal(tc.status, w.Code, tc.name)
	}

	var count int64
	suite.Require().NoError(suite.env.db.Model(&models.Task{}).Count(&count).Error)
	suite.Zero(count)
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_RejectsStatusField() {
	task := suite.createTask("Ship it", models.PriorityLow, suite.alice.ID)

	w := performRequest(suite.router, http.MethodPatch, suite.taskPath(task.ID), suite.managerToken, map[string]string{
		"status": "completed",
	})
	suite.Require().Equal(http.StatusBadRequest, w.Code)

	apiErr := decodeAPIError(suite.T(), w)
	suite.Equal(apierrors.ErrCodeInvalidUpdate, apiErr.Code)
	details, ok := apiErr.Details.(map[string]interface{})
	suite.Require().True(ok)
	suite.Equal([]interface{}{"status"}, details["fields"])

	var stored models.Task
	suite.Require().NoError(suite.env.db.First(&stored, task.ID).Error)
	suite.Equal(models.TaskStatusTodo, stored.Status)
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_AddsOnlyNewAssignees() {
	task := suite.createTask("Refactor", models.PriorityMedium, suite.alice.ID)
	suite.env.mail.reset()

	w := performRequest(suite.router, http.MethodPut, suite.taskPath(task.ID), suite.managerToken, map[string]interface{}{
		"title":       "Refactor billing",
		"assigned_to": []uint64{suite.alice.ID, suite.bob.ID},
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var updated dto.TaskDTO
	decodeBody(suite.T(), w, &updated)
	suite.Equal("Refactor billing", updated.Title)
	suite.Require().Len(updated.Assignees, 2)
	suite.Equal(suite.alice.ID, updated.Assignees[0].ID)
	suite.Equal(suite.bob.ID, updated.Assignees[1].ID)
	suite.Len(updated.AssignmentHistory, 2)
	suite.Equal([]string{"bob@acme.test"}, suite.env.mail.recipients())

	// Members cannot edit details even when assigned
	w = performRequest(suite.router, http.MethodPatch, suite.taskPath(task.ID), suite.aliceToken, map[string]string{"title": "mine"})
	suite.Equal(http.StatusForbidden, w.Code)

	w = performRequest(suite.router, http.MethodPatch, suite.taskPath(task.ID), suite.managerToken, "{}")
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestUpdateTaskStatus_Lifecycle() {
	task := suite.createTask("Implement login", models.PriorityHigh, suite.alice.ID, suite.bob.ID)
	suite.env.mail.reset()
	statusPath := suite.taskPath(task.ID) + "/status"

	w := performRequest(suite.router, http.MethodPatch, statusPath, suite.aliceToken, map[string]string{"status": "in_progress"})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal([]string{"bob@acme.test"}, suite.env.mail.recipients())

	w = performRequest(suite.router, http.MethodPatch, statusPath, suite.aliceToken, map[string]string{
		"status":  "completed",
		"comment": "done and dusted",
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var completed dto.TaskDTO
	decodeBody(suite.T(), w, &completed)
	suite.Equal(models.TaskStatusCompleted, completed.Status)
	suite.Equal([]models.TaskStatus{models.TaskStatusInProgress}, completed.NextStatuses)
	suite.NotNil(completed.CompletedAt)
	suite.Require().NotNil(completed.CompletedByID)
	suite.Equal(suite.alice.ID, *completed.CompletedByID)
	suite.Require().Len(completed.StatusHistory, 2)
	suite.Equal("Status changed to in_progress", completed.StatusHistory[0].Comment)
	suite.Equal("done and dusted", completed.StatusHistory[1].Comment)
	suite.Require().NotNil(completed.StatusHistory[1].ChangedBy)
	suite.Equal(suite.alice.ID, *completed.StatusHistory[1].ChangedBy)
}

func (suite *TaskHandlerTestSuite) TestUpdateTaskStatus_InvalidTransition() {
	task := suite.createTask("Skip ahead", models.PriorityLow, suite.alice.ID)

	w := performRequest(suite.router, http.MethodPatch, suite.taskPath(task.ID)+"/status", suite.aliceToken, map[string]string{"status": "completed"})
	suite.Require().Equal(http.StatusBadRequest, w.Code)

	apiErr := decodeAPIError(suite.T(), w)
	suite.Equal(apierrors.ErrCodeInvalidTransition, apiErr.Code)
	suite.Equal(map[string]interface{}{"from": "todo", "to": "completed"}, apiErr.Details)

	w = performRequest(suite.router, http.MethodPatch, suite.taskPath(task.ID)+"/status", suite.managerToken, map[string]string{"status": "expired"})
	suite.Equal(http.StatusBadRequest, w.Code, "expiry is reserved for the scheduler")

	w = performRequest(suite.router, http.MethodPatch, suite.taskPath(task.ID)+"/status", suite.managerToken, map[string]string{"status": "archived"})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestTaskAccess() {
	task := suite.createTask("Private", models.PriorityLow, suite.alice.ID)

	w := performRequest(suite.router, http.MethodGet, suite.taskPath(task.ID), suite.aliceToken, nil)
	suite.Equal(http.StatusOK, w.Code)

	w = performRequest(suite.router, http.MethodGet, suite.taskPath(task.ID), suite.bobToken, nil)
	suite.Equal(http.StatusForbidden, w.Code, "unassigned member")

	w = performRequest(suite.router, http.MethodPatch, suite.taskPath(task.ID)+"/status", suite.bobToken, map[string]string{"status": "in_progress"})
	suite.Equal(http.StatusForbidden, w.Code, "unassigned member status change")

	w = performRequest(suite.router, http.MethodGet, suite.taskPath(task.ID), suite.outsiderTok, nil)
	suite.Equal(http.StatusNotFound, w.Code, "other organization")

	w = performRequest(suite.router, http.MethodGet, "/api/tasks/abc", suite.managerToken, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestListTasks() {
	suite.createTask("Alpha", models.PriorityHigh, suite.alice.ID)
	suite.createTask("Beta", models.PriorityLow, suite.bob.ID)
	suite.createTask("Gamma", models.PriorityHigh)

	var list dto.TaskListResponse

	w := performRequest(suite.router, http.MethodGet, "/api/tasks", suite.managerToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	decodeBody(suite.T(), w, &list)
	suite.EqualValues(3, list.Pagination.Total)
	suite.Len(list.Tasks, 3)

	w = performRequest(suite.router, http.MethodGet, "/api/tasks?priority=high&limit=1&page=2", suite.managerToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	decodeBody(suite.T(), w, &list)
	suite.EqualValues(2, list.Pagination.Total)
	suite.Equal(2, list.Pagination.Pages)
	suite.Len(list.Tasks, 1)

	w = performRequest(suite.router, http.MethodGet, "/api/tasks", suite.aliceToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	decodeBody(suite.T(), w, &list)
	suite.Require().Len(list.Tasks, 1)
	suite.Equal("Alpha", list.Tasks[0].Title)

	w = performRequest(suite.router, http.MethodGet, "/api/tasks?search=BET", suite.managerToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	decodeBody(suite.T(), w, &list)
	suite.Require().Len(list.Tasks, 1)
	suite.Equal("Beta", list.Tasks[0].Title)

	w = performRequest(suite.router, http.MethodGet, "/api/tasks?date_range=2020-01-01", suite.managerToken, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = performRequest(suite.router, http.MethodGet, "/api/tasks?status=archived", suite.managerToken, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = performRequest(suite.router, http.MethodGet, "/api/tasks?is_expired=true", suite.managerToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	decodeBody(suite.T(), w, &list)
	suite.Empty(list.Tasks)
}

func (suite *TaskHandlerTestSuite) TestStatsAndRecent() {
	first := suite.createTask("One", models.PriorityHigh, suite.alice.ID)
	suite.createTask("Two", models.PriorityLow)

	var stats services.TaskStats
	w := performRequest(suite.router, http.MethodGet, "/api/tasks/stats", suite.managerToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	decodeBody(suite.T(), w, &stats)
	suite.EqualValues(2, stats.TotalTasks)
	suite.EqualValues(4, stats.TeamMembers)
	suite.Len(stats.PriorityStats, 2)

	w = performRequest(suite.router, http.MethodGet, "/api/tasks/stats", suite.aliceToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	decodeBody(suite.T(), w, &stats)
	suite.EqualValues(1, stats.TotalTasks)

	var recent struct {
		Tasks []dto.TaskListItemDTO `json:"tasks"`
	}
	w = performRequest(suite.router, http.MethodGet, "/api/tasks/recent", suite.aliceToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	decodeBody(suite.T(), w, &recent)
	suite.Require().Len(recent.Tasks, 1)
	suite.Equal(first.ID, recent.Tasks[0].ID)
}

func (suite *TaskHandlerTestSuite) TestDeleteTask() {
	task := suite.createTask("Obsolete", models.PriorityLow, suite.alice.ID)

	w := performRequest(suite.router, http.MethodDelete, suite.taskPath(task.ID), suite.aliceToken, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w = performRequest(suite.router, http.MethodDelete, suite.taskPath(task.ID), suite.managerToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = performRequest(suite.router, http.MethodGet, suite.taskPath(task.ID), suite.managerToken, nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *TaskHandlerTestSuite) TestGenerateTasks_NotConfigured() {
	w := performRequest(suite.router, http.MethodPost, "/api/tasks/generate", suite.managerToken, map[string]string{
		"text": "Plan the launch party",
	})
	suite.Require().Equal(http.StatusServiceUnavailable, w.Code)
	suite.Equal(apierrors.ErrCodeServiceUnavailable, decodeAPIError(suite.T(), w).Code)
}

// TestTaskHandlerTestSuite runs the test suite
func TestTaskHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TaskHandlerTestSuite))
}
