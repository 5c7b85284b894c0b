package repository

import (
	"strings"
	"time"

	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

var openStatuses = []models.TaskStatus{models.TaskStatusTodo, models.TaskStatusInProgress}

// Create creates a task and its initial assignments
func (r *GormTaskRepository) Create(task *models.Task, assigneeIDs []uint64, assignedBy uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(task).Error; err != nil {
			return err
		}

		if len(assigneeIDs) == 0 {
			return nil
		}
		return upsertAssignments(tx, task.ID, assigneeIDs, assignedBy)
	})
}

// FindByID finds a task inside an organization with optional preloading
func (r *GormTaskRepository) FindByID(organizationID, id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db.Scopes(database.InOrganization("tasks", organizationID))

	// Apply preloading if specified
	for _, p := range preload {
		query = preloadOrdered(query, p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(filter TaskFilter) ([]models.Task, int64, error) {
	var tasks []models.Task

	var total int64
	if err := r.filtered(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := r.filtered(filter).Order("tasks.created_at DESC")
	if filter.Page > 0 && filter.PageSize > 0 {
		listQuery = listQuery.Scopes(database.Paginate(utils.NewPaginationParams(filter.Page, filter.PageSize)))
	}

	listQuery = preloadOrdered(listQuery.Preload("Creator"), "Assignments.User")
	if err := listQuery.Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// Stats aggregates task counts for the filter
func (r *GormTaskRepository) Stats(filter TaskFilter, now time.Time) (*TaskStats, error) {
	stats := &TaskStats{}

	if err := r.filtered(filter).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := r.filtered(filter).
		Where("tasks.status = ?", models.TaskStatusCompleted).
		Count(&stats.Completed).Error; err != nil {
		return nil, err
	}
	if err := r.filtered(filter).
		Where("tasks.due_date < ? AND tasks.status <> ?", now, models.TaskStatusCompleted).
		Count(&stats.Overdue).Error; err != nil {
		return nil, err
	}
	if err := r.filtered(filter).
		Select("tasks.category AS label, COUNT(*) AS count").
		Group("tasks.category").
		Order("count DESC").
		Scan(&stats.ByCategory).Error; err != nil {
		return nil, err
	}
	if err := r.filtered(filter).
		Select("tasks.priority AS label, COUNT(*) AS count").
		Group("tasks.priority").
		Order("count DESC").
		Scan(&stats.ByPriority).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// Recent lists the most recently updated tasks for the filter
func (r *GormTaskRepository) Recent(filter TaskFilter, limit int) ([]models.Task, error) {
	var tasks []models.Task
	query := preloadOrdered(r.filtered(filter), "Assignments.User").
		Order("tasks.updated_at DESC").
		Limit(limit)

	if err := query.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update saves task columns, including the embedded histories
func (r *GormTaskRepository) Update(task *models.Task) error {
	return r.db.Omit(clause.Associations).Save(task).Error
}

// UpdateWithAssignees saves task columns and replaces its assignees in one transaction
func (r *GormTaskRepository) UpdateWithAssignees(task *models.Task, userIDs []uint64, assignedBy uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(task).Error; err != nil {
			return err
		}
		return replaceAssignees(tx, task.ID, userIDs, assignedBy)
	})
}

// Delete soft deletes a task inside an organization
func (r *GormTaskRepository) Delete(organizationID, id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Scopes(database.InOrganization("tasks", organizationID)).Delete(&models.Task{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Where("task_id = ?", id).Delete(&models.TaskAssignment{}).Error
	})
}

// ListOpenDueBefore lists tasks of every organization that are past due and still open
func (r *GormTaskRepository) ListOpenDueBefore(t time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := preloadOrdered(r.db.Preload("Organization"), "Assignments.User").
		Where("tasks.due_date < ? AND tasks.status IN ?", t, openStatuses).
		Order("tasks.due_date ASC").
		Find(&tasks).Error
	return tasks, err
}

// ListOpenDueBetween lists open tasks of every organization due strictly inside (from, to)
func (r *GormTaskRepository) ListOpenDueBetween(from, to time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := preloadOrdered(r.db.Preload("Organization"), "Assignments.User").
		Where("tasks.due_date > ? AND tasks.due_date < ? AND tasks.status IN ?", from, to, openStatuses).
		Order("tasks.due_date ASC").
		Find(&tasks).Error
	return tasks, err
}

// filtered builds a fresh tenant-scoped query for filter.
func (r *GormTaskRepository) filtered(filter TaskFilter) *gorm.DB {
	query := r.db.Model(&models.Task{}).Scopes(database.InOrganization("tasks", filter.OrganizationID))

	// Apply filters
	if filter.Status != nil {
		query = query.Where("tasks.status = ?", *filter.Status)
	}
	if filter.Category != nil {
		query = query.Where("tasks.category = ?", *filter.Category)
	}
	if filter.Priority != nil {
		query = query.Where("tasks.priority = ?", *filter.Priority)
	}
	if filter.AssignedUserID != nil {
		assignmentSubQuery := r.db.Model(&models.TaskAssignment{}).
			Select("1").
			Where("task_assignments.task_id = tasks.id").
			Where("task_assignments.user_id = ?", *filter.AssignedUserID).
			Where("task_assignments.deleted_at IS NULL")
		query = query.Where("EXISTS (?)", assignmentSubQuery)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(tasks.title) LIKE ? OR LOWER(tasks.description) LIKE ?", pattern, pattern)
	}
	if filter.DueDateFrom != nil {
		query = query.Where("tasks.due_date >= ?", *filter.DueDateFrom)
	}
	if filter.DueDateTo != nil {
		query = query.Where("tasks.due_date <= ?", *filter.DueDateTo)
	}
	if filter.OverdueAt != nil {
		query = query.Where("tasks.due_date < ? AND tasks.status <> ?", *filter.OverdueAt, models.TaskStatusCompleted)
	}

	return query
}

// preloadOrdered preloads a relation, keeping assignments in assignment order.
func preloadOrdered(query *gorm.DB, relation string) *gorm.DB {
	if relation == "Assignments" || strings.HasPrefix(relation, "Assignments.") {
		query = query.Preload("Assignments", func(db *gorm.DB) *gorm.DB {
			return db.Order("task_assignments.position ASC")
		})
		if relation == "Assignments" {
			return query
		}
	}
	return query.Preload(relation)
}

// replaceAssignees soft deletes assignments missing from userIDs and upserts the rest.
func replaceAssignees(tx *gorm.DB, taskID uint64, userIDs []uint64, assignedBy uint64) error {
	removed := tx.Where("task_id = ?", taskID)
	if len(userIDs) > 0 {
		removed = removed.Where("user_id NOT IN ?", userIDs)
	}
	if err := removed.Delete(&models.TaskAssignment{}).Error; err != nil {
		return err
	}

	if len(userIDs) == 0 {
		return nil
	}
	return upsertAssignments(tx, taskID, userIDs, assignedBy)
}

// upsertAssignments creates assignments or restores soft-deleted ones, updating their position.
func upsertAssignments(tx *gorm.DB, taskID uint64, userIDs []uint64, assignedBy uint64) error {
	assignments := make([]models.TaskAssignment, len(userIDs))
	for i, userID := range userIDs {
		assignments[i] = models.TaskAssignment{
			TaskID:       taskID,
			UserID:       userID,
			Position:     i,
			AssignedByID: assignedBy,
		}
	}

	updates := append(
		clause.AssignmentColumns([]string{"position"}),
		clause.Assignment{Column: clause.Column{Name: "deleted_at"}, Value: nil},
	)

	return tx.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}, {Name: "user_id"}},
			DoUpdates: updates,
		}).
		Create(&assignments).Error
}
