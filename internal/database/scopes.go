package database

import (
	"gorm.io/gorm"

	"github.com/yukikurage/taskflow-api/internal/utils"
)

// Paginate applies pagination to a GORM query
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(params.Offset).Limit(params.Limit)
	}
}

// InOrganization restricts a query on a tenant-owned table to one organization.
// Every read and write of tasks and invitations goes through this scope.
func InOrganization(table string, organizationID uint64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(table+".organization_id = ?", organizationID)
	}
}
