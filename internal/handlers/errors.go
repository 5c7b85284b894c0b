package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/lifecycle"
	"github.com/yukikurage/taskflow-api/internal/logs"
	"github.com/yukikurage/taskflow-api/internal/middleware"
	"github.com/yukikurage/taskflow-api/internal/services"
)

// respondServiceError maps a service error to its HTTP status by kind.
// Unexpected errors are logged and reported as fallback.
func respondServiceError(c *gin.Context, err error, fallback string) {
	var transition *lifecycle.TransitionError
	var fields *services.FieldsError

	switch {
	case errors.As(err, &transition):
		apierrors.BadRequestWithCode(c, apierrors.ErrCodeInvalidTransition, transition.Error(), gin.H{
			"from": transition.From,
			"to":   transition.To,
		})
	case errors.Is(err, services.ErrInvalidUpdate) && errors.As(err, &fields):
		apierrors.BadRequestWithCode(c, apierrors.ErrCodeInvalidUpdate, services.ErrInvalidUpdate.Error(), gin.H{
			"fields": fields.Fields,
		})
	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.RespondWithError(c, http.StatusUnauthorized,
			apierrors.NewAPIError(apierrors.ErrCodeInvalidCredentials, err.Error()))
	}
	if c.IsAborted() {
		return
	}

	switch services.Kind(err) {
	case services.ErrValidation:
		apierrors.BadRequest(c, err.Error())
	case services.ErrUnauthenticated:
		apierrors.Unauthorized(c, err.Error())
	case services.ErrForbidden:
		apierrors.Forbidden(c, err.Error())
	case services.ErrNotFound:
		apierrors.NotFound(c, err.Error())
	case services.ErrConflict:
		apierrors.Conflict(c, err.Error())
	case services.ErrUnavailable:
		apierrors.ServiceUnavailable(c, err.Error())
	default:
		logs.Logger.WithError(err).
			WithField("reqid", middleware.GetRequestID(c)).
			Error(fallback)
		apierrors.InternalError(c, fallback)
	}
}
