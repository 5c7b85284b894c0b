package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/auth"
	"github.com/yukikurage/taskflow-api/internal/config"
	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/logs"
	"github.com/yukikurage/taskflow-api/internal/notify"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"github.com/yukikurage/taskflow-api/internal/scheduler"
	"github.com/yukikurage/taskflow-api/internal/server"
	"github.com/yukikurage/taskflow-api/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logs.Logger.Fatalf("Failed to load config: %v", err)
	}

	logs.Init(logs.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	gin.SetMode(cfg.Server.GinMode)

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		logs.Logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.MigrateDatabase(db); err != nil {
		logs.Logger.Fatalf("Failed to run migrations: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	mailer := notify.NewMailer(notify.NewClient(cfg.Mail.SendGridAPIKey), cfg.Mail.From)

	// Initialize AI service
	var aiService *services.AIService
	if cfg.AI.OpenAIAPIKey != "" {
		aiService = services.NewAIService(cfg.AI.OpenAIAPIKey)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	invitationService := services.NewInvitationService(invitationRepo, orgRepo, userRepo, mailer, services.InvitationConfig{
		FrontendURL:       cfg.Server.FrontendURL,
		RequireEmailMatch: cfg.Invites.RequireEmailMatch,
	})
	authService := services.NewAuthService(userRepo, orgRepo, invitationService, tokens)
	orgService := services.NewOrganizationService(orgRepo, userRepo)
	taskService := services.NewTaskService(taskRepo, orgRepo, userRepo, mailer, aiService)

	router := server.NewRouter(server.Deps{
		DB:                  db,
		FrontendURL:         cfg.Server.FrontendURL,
		AuthService:         authService,
		OrganizationService: orgService,
		InvitationService:   invitationService,
		TaskService:         taskService,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var background sync.WaitGroup
	if cfg.Scheduler.Enabled {
		sched := scheduler.New(taskRepo, mailer, scheduler.Config{
			ExpiryInterval:   cfg.Scheduler.ExpiryInterval,
			ReminderInterval: cfg.Scheduler.ReminderInterval,
			ReminderOffset:   cfg.Scheduler.ReminderOffset,
		})
		background.Add(1)
		go func() {
			defer background.Done()
			sched.Run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logs.Logger.Infof("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logs.Logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logs.Logger.WithError(err).Error("Server shutdown failed")
	}
	background.Wait()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logs.Logger.Info("Server stopped")
}
