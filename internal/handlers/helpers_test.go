package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskflow-api/internal/auth"
	"github.com/yukikurage/taskflow-api/internal/database"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/notify"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"github.com/yukikurage/taskflow-api/internal/services"
	"github.com/yukikurage/taskflow-api/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	testFrontendURL = "http://app.test"
	testPassword    = "supersecret"
)

type sentMail struct {
	To      string
	Subject string
}

// capturingClient records mail instead of sending it
type capturingClient struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (c *capturingClient) Send(_ context.Context, _, to, subject, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentMail{To: to, Subject: subject})
	return nil
}

func (c *capturingClient) recipients() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, m := range c.sent {
		out[i] = m.To
	}
	return out
}

func (c *capturingClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}

type handlerTestEnv struct {
	db                *gorm.DB
	mail              *capturingClient
	tokens            *auth.TokenManager
	authService       *services.AuthService
	orgService        *services.OrganizationService
	invitationService *services.InvitationService
	taskService       *services.TaskService
	authHandler       *AuthHandler
	orgHandler        *OrganizationHandler
	taskHandler       *TaskHandler
}

func setupHandlerTestEnv(t *testing.T) *handlerTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})
	require.NoError(t, database.MigrateDatabase(db))

	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	mail := &capturingClient{}
	mailer := notify.NewMailer(mail, "no-reply@taskflow.test")
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	invitationService := services.NewInvitationService(invitationRepo, orgRepo, userRepo, mailer, services.InvitationConfig{
		FrontendURL: testFrontendURL,
	})
	authService := services.NewAuthService(userRepo, orgRepo, invitationService, tokens)
	orgService := services.NewOrganizationService(orgRepo, userRepo)
	taskService := services.NewTaskService(taskRepo, orgRepo, userRepo, mailer, nil)

	return &handlerTestEnv{
		db:                db,
		mail:              mail,
		tokens:            tokens,
		authService:       authService,
		orgService:        orgService,
		invitationService: invitationService,
		taskService:       taskService,
		authHandler:       NewAuthHandler(authService),
		orgHandler:        NewOrganizationHandler(orgService, invitationService),
		taskHandler:       NewTaskHandler(taskService),
	}
}

func (e *handlerTestEnv) createOrganization(t *testing.T, name string) *models.Organization {
	t.Helper()

	org := &models.Organization{
		Name:     name,
		NameKey:  strings.ToLower(name),
		Slug:     utils.Slugify(name),
		Settings: datatypes.NewJSONType(models.DefaultOrganizationSettings()),
		IsActive: true,
	}
	require.NoError(t, e.db.Create(org).Error)
	return org
}

// createUser stores an active user and returns it with a valid bearer token
func (e *handlerTestEnv) createUser(t *testing.T, org *models.Organization, email string, role models.Role) (*models.User, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    email[:1],
		Role:         role,
		IsActive:     true,
	}
	if org != nil {
		user.OrganizationID = &org.ID
	}
	require.NoError(t, e.db.Create(user).Error)

	token, _, err := e.tokens.Issue(user.ID)
	require.NoError(t, err)
	return user, token
}

func performRequest(r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func decodeAPIError(t *testing.T, w *httptest.ResponseRecorder) apierrors.APIError {
	t.Helper()
	var apiErr apierrors.APIError
	decodeBody(t, w, &apiErr)
	return apiErr
}
