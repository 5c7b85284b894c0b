package middleware

import (
	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/policy"
)

const contextKeyActor = "actor"

// RequireOrganization rejects users that do not belong to an organization
// and stores the policy actor for the request
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetCurrentUser(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}

		actor, ok := policy.NewActor(user)
		if !ok {
			apierrors.Forbidden(c, "You must belong to an organization")
			return
		}

		c.Set(contextKeyActor, actor)
		c.Next()
	}
}

// RequireRole rejects actors whose role does not carry the required privileges.
// It must run after RequireOrganization.
func RequireRole(required models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			apierrors.Forbidden(c, "Organization access required")
			return
		}

		if !actor.Role.Permits(required) {
			apierrors.Forbidden(c, "Insufficient permissions")
			return
		}

		c.Next()
	}
}

// GetActor retrieves the policy actor stored by RequireOrganization
func GetActor(c *gin.Context) (policy.Actor, bool) {
	value, exists := c.Get(contextKeyActor)
	if !exists {
		return policy.Actor{}, false
	}
	actor, ok := value.(policy.Actor)
	return actor, ok
}
