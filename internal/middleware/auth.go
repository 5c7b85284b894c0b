package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/auth"
	"github.com/yukikurage/taskflow-api/internal/constants"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/logs"
	"github.com/yukikurage/taskflow-api/internal/models"
)

// Authenticator resolves a bearer token to an active user
type Authenticator interface {
	Authenticate(token string) (*models.User, error)
}

// RequireAuth checks the bearer token and loads the active user it belongs to
func RequireAuth(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}

		user, err := authenticator.Authenticate(token)
		if err != nil {
			logs.Logger.WithError(err).WithField(constants.ContextKeyRequestID, GetRequestID(c)).Debug("Authentication failed")
			apierrors.Unauthorized(c, "Invalid or expired token")
			return
		}

		// Store user in context for easy access in handlers
		c.Set(constants.ContextKeyUser, user)
		c.Set(constants.ContextKeyUserID, user.ID)
		if user.OrganizationID != nil {
			c.Set(constants.ContextKeyOrganizationID, *user.OrganizationID)
		}
		c.Next()
	}
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}

	switch v := userID.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

// GetCurrentUser retrieves the authenticated user from context
func GetCurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(constants.ContextKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}
