package middleware

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/constants"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/logs"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/policy"
	"github.com/yukikurage/taskflow-api/internal/services"
)

// TaskReader loads a task the actor is allowed to see
type TaskReader interface {
	GetTask(actor policy.Actor, taskID uint64) (*models.Task, error)
}

// RequireTaskAccess loads the task named by the :id parameter inside the actor's organization.
// Tasks of other organizations are reported as not found; members not assigned to the task get 403.
func RequireTaskAccess(tasks TaskReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid task ID")
			return
		}

		actor, ok := GetActor(c)
		if !ok {
			apierrors.Forbidden(c, "Organization access required")
			return
		}

		task, err := tasks.GetTask(actor, taskID)
		switch {
		case err == nil:
		case errors.Is(err, services.ErrNotFound):
			apierrors.NotFound(c, "Task not found")
			return
		case errors.Is(err, services.ErrForbidden):
			apierrors.Forbidden(c, "You do not have access to this task")
			return
		default:
			logs.Logger.WithError(err).WithField("task_id", taskID).Error("Failed to load task")
			apierrors.InternalError(c, "Failed to load task")
			return
		}

		c.Set(constants.ContextKeyTask, task)
		c.Next()
	}
}

// GetTask retrieves the task stored by RequireTaskAccess
func GetTask(c *gin.Context) (*models.Task, bool) {
	value, exists := c.Get(constants.ContextKeyTask)
	if !exists {
		return nil, false
	}
	task, ok := value.(*models.Task)
	return task, ok && task != nil
}
