package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/database"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/logs"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health reports that the process is serving requests
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Task Management API is running",
	})
}

// Ready reports whether the database is reachable
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := database.Ping(h.db); err != nil {
		logs.Logger.WithError(err).Warn("Readiness check failed")
		apierrors.ServiceUnavailable(c, "Database unavailable")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
