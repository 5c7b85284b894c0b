package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/policy"
	"github.com/yukikurage/taskflow-api/internal/services"
)

type stubAuthenticator struct {
	users map[string]*models.User
}

func (a stubAuthenticator) Authenticate(token string) (*models.User, error) {
	if user, ok := a.users[token]; ok {
		return user, nil
	}
	return nil, services.ErrInvalidToken
}

type stubTaskReader struct {
	task *models.Task
	err  error
}

func (r stubTaskReader) GetTask(policy.Actor, uint64) (*models.Task, error) {
	return r.task, r.err
}

func serve(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := serve(r, "/", "")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	assert.Equal(t, w.Header().Get(requestIDHeader), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestRecoverer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), AccessLogger(), Recoverer())
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := serve(r, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestAuthChain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	orgID := uint64(7)
	authenticator := stubAuthenticator{users: map[string]*models.User{
		"admin":    {ID: 1, Role: models.RoleAdmin, OrganizationID: &orgID},
		"member":   {ID: 2, Role: models.RoleMember, OrganizationID: &orgID},
		"homeless": {ID: 3, Role: models.RoleMember},
	}}

	r := gin.New()
	r.GET("/admin", RequireAuth(authenticator), RequireOrganization(), RequireRole(models.RoleAdmin), func(c *gin.Context) {
		actor, ok := GetActor(c)
		require.True(t, ok)
		assert.Equal(t, orgID, actor.OrganizationID)
		assert.Equal(t, orgID, c.MustGet(constants.ContextKeyOrganizationID))
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, "/admin", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/admin", "forged").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, "/admin", "homeless").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, "/admin", "member").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, "/admin", "admin").Code)
}

func TestRequireTaskAccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	orgID := uint64(7)
	authenticator := stubAuthenticator{users: map[string]*models.User{
		"member": {ID: 2, Role: models.RoleMember, OrganizationID: &orgID},
	}}

	route := func(reader TaskReader) *gin.Engine {
		r := gin.New()
		r.GET("/tasks/:id", RequireAuth(authenticator), RequireOrganization(), RequireTaskAccess(reader), func(c *gin.Context) {
			task, ok := GetTask(c)
			require.True(t, ok)
			c.JSON(http.StatusOK, gin.H{"id": task.ID})
		})
		return r
	}

	assert.Equal(t, http.StatusOK, serve(route(stubTaskReader{task: &models.Task{ID: 5}}), "/tasks/5", "member").Code)
	assert.Equal(t, http.StatusBadRequest, serve(route(stubTaskReader{}), "/tasks/x", "member").Code)
	assert.Equal(t, http.StatusNotFound, serve(route(stubTaskReader{err: services.ErrTaskNotFound}), "/tasks/5", "member").Code)
	assert.Equal(t, http.StatusForbidden, serve(route(stubTaskReader{err: services.ErrPermissionDenied}), "/tasks/5", "member").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(route(stubTaskReader{err: errors.New("db down")}), "/tasks/5", "member").Code)
}
