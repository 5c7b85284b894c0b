package database

import (
	"fmt"

	"github.com/yukikurage/taskflow-api/internal/logs"
	"github.com/yukikurage/taskflow-api/internal/models"
	"gorm.io/gorm"
)

// AddIndexes adds the composite indexes used by tenant-scoped task queries and the scheduler sweeps.
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		model   interface{}
		table   string
		name    string
		columns string
	}{
		// Tenant listing filtered by status
		{&models.Task{}, "tasks", "idx_tasks_organization_status", "organization_id, status"},
		// Expiry and reminder sweeps
		{&models.Task{}, "tasks", "idx_tasks_due_date_status", "due_date, status"},
		{&models.Task{}, "tasks", "idx_tasks_category", "category"},
		{&models.Task{}, "tasks", "idx_tasks_priority", "priority"},
		{&models.Task{}, "tasks", "idx_tasks_created_at", "created_at"},

		{&models.TaskAssignment{}, "task_assignments", "idx_task_assignments_user_id", "user_id"},
		{&models.User{}, "users", "idx_users_organization_role", "organization_id, role"},
	}

	for _, idx := range indexes {
		if db.Migrator().HasIndex(idx.model, idx.name) {
			logs.Logger.Debugf("Index %s already exists, skipping", idx.name)
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		logs.Logger.Infof("Created index %s on %s(%s)", idx.name, idx.table, idx.columns)
	}

	return nil
}

// MigrateDatabase runs schema migrations followed by index creation.
func MigrateDatabase(db *gorm.DB) error {
	if err := Migrate(db); err != nil {
		return err
	}

	if err := AddIndexes(db); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}

	return nil
}
