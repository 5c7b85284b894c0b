package database

import (
	"fmt"
	"time"

	"github.com/yukikurage/taskflow-api/internal/config"
	"github.com/yukikurage/taskflow-api/internal/logs"
	"github.com/yukikurage/taskflow-api/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the database configured in cfg.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logs.Logger.WithField("driver", cfg.Database.Driver).Info("Database connection established")
	return db, nil
}

// Open connects to driver ("postgres" | "mysql" | "sqlite") with dsn.
func Open(driver, dsn string) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.New(logs.Logger, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	switch driver {
	case "postgres":
		// host=localhost user=... password=... dbname=... port=5432 sslmode=disable
		return gorm.Open(postgres.Open(dsn), gormCfg)
	case "mysql":
		// user:pass@tcp(127.0.0.1:3306)/tasks?parseTime=true&charset=utf8mb4&loc=Local
		return gorm.Open(mysql.Open(dsn), gormCfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Migrate creates or updates the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	logs.Logger.Info("Running database migrations...")
	err := db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Invitation{},
		&models.Task{},
		&models.TaskAssignment{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logs.Logger.Info("Database migrations completed")
	return nil
}

// Ping checks that the underlying connection pool can reach the database.
func Ping(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle error: %w", err)
	}
	return sqlDB.Ping()
}
