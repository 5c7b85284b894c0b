package middleware

import (
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/taskflow-api/internal/constants"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/logs"
)

const requestIDHeader = "X-Request-Id"

// RequestID propagates the caller's request id or assigns a new one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set(constants.ContextKeyRequestID, id)
		c.Next()
	}
}

// GetRequestID retrieves the request id assigned by RequestID
func GetRequestID(c *gin.Context) string {
	return c.GetString(constants.ContextKeyRequestID)
}

// AccessLogger logs one structured line per request
func AccessLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logs.Logger.WithFields(logrus.Fields{
			"reqid":    GetRequestID(c),
			"method":   c.Request.Method,
			"uri":      c.Request.RequestURI,
			"status":   c.Writer.Status(),
			"bytes":    c.Writer.Size(),
			"duration": time.Since(start).String(),
			"ip":       c.ClientIP(),
		})
		if userID, ok := GetUserID(c); ok {
			entry = entry.WithField("user_id", userID)
		}

		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request")
		case c.Writer.Status() >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

// Recoverer turns a handler panic into a logged 500 response
func Recoverer() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logs.Logger.WithFields(logrus.Fields{
					"reqid":  GetRequestID(c),
					"uri":    c.Request.RequestURI,
					"method": c.Request.Method,
				}).Errorf("panic: %v\nstack:\n%s", rec, debug.Stack())
				apierrors.InternalError(c, "Unexpected server error")
			}
		}()
		c.Next()
	}
}
