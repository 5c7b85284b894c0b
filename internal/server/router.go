package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/handlers"
	"github.com/yukikurage/taskflow-api/internal/middleware"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/services"
	"gorm.io/gorm"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	DB                  *gorm.DB
	FrontendURL         string
	AuthService         *services.AuthService
	OrganizationService *services.OrganizationService
	InvitationService   *services.InvitationService
	TaskService         *services.TaskService
}

// NewRouter wires middleware and routes.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.AccessLogger(), middleware.Recoverer())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{deps.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authHandler := handlers.NewAuthHandler(deps.AuthService)
	orgHandler := handlers.NewOrganizationHandler(deps.OrganizationService, deps.InvitationService)
	taskHandler := handlers.NewTaskHandler(deps.TaskService)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)

	requireAuth := middleware.RequireAuth(deps.AuthService)
	requireOrg := middleware.RequireOrganization()
	requireTask := middleware.RequireTaskAccess(deps.TaskService)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/profile", requireAuth, authHandler.Profile)
		}

		// Invitation routes that work without an organization
		invites := api.Group("/organizations/invites")
		{
			invites.GET("/verify/:token", orgHandler.VerifyInvitation)
			invites.POST("/accept/:token", requireAuth, orgHandler.AcceptInvitation)
		}

		orgs := api.Group("/organizations")
		orgs.Use(requireAuth, requireOrg)
		{
			orgs.GET("", orgHandler.GetOrganization)
			orgs.PATCH("", middleware.RequireRole(models.RoleAdmin), orgHandler.UpdateOrganization)
			orgs.GET("/members", orgHandler.ListMembers)
			orgs.POST("/members/invite", middleware.RequireRole(models.RoleManager), orgHandler.InviteMember)
			orgs.PATCH("/members/:id/role", middleware.RequireRole(models.RoleAdmin), orgHandler.ChangeMemberRole)
			orgs.DELETE("/members/:id", middleware.RequireRole(models.RoleAdmin), orgHandler.RemoveMember)
			orgs.GET("/invites", middleware.RequireRole(models.RoleManager), orgHandler.ListInvitations)
			orgs.DELETE("/invites/:id", middleware.RequireRole(models.RoleManager), orgHandler.CancelInvitation)
		}

		tasks := api.Group("/tasks")
		tasks.Use(requireAuth, requireOrg)
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", middleware.RequireRole(models.RoleManager), taskHandler.CreateTask)
			tasks.GET("/stats", taskHandler.GetStats)
			tasks.GET("/recent", taskHandler.RecentTasks)
			tasks.POST("/generate", middleware.RequireRole(models.RoleManager), taskHandler.GenerateTasks)
			tasks.GET("/:id", requireTask, taskHandler.GetTask)
			tasks.PUT("/:id", requireTask, taskHandler.UpdateTask)
			tasks.PATCH("/:id", requireTask, taskHandler.UpdateTask)
			tasks.PATCH("/:id/status", requireTask, taskHandler.UpdateTaskStatus)
			tasks.DELETE("/:id", middleware.RequireRole(models.RoleManager), requireTask, taskHandler.DeleteTask)
		}
	}

	return r
}
