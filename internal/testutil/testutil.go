// Package testutil opens throwaway databases and seeds fixtures for tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"projecthub-service/internal/model"
	"projecthub-service/pkg/config"
	"projecthub-service/pkg/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewTestDB opens a migrated SQLite database in a temporary directory
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.InitDB(&config.DBConfig{
		Driver:   "sqlite",
		Path:     filepath.Join(t.TempDir(), "projecthub.db"),
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, database.MigrateModels(db, model.All()...))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateTenant inserts an active tenant on plan with its plan limits
func CreateTenant(t *testing.T, db *gorm.DB, subdomain string, plan model.Plan, maxUsers, maxProjects int) *model.Tenant {
	t.Helper()
	tenant := &model.Tenant{
		Name:             subdomain,
		Subdomain:        subdomain,
		Status:           model.TenantStatusActive,
		SubscriptionPlan: plan,
		MaxUsers:         maxUsers,
		MaxProjects:      maxProjects,
	}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

// CreateUser inserts an active user. tenantID is nil for the super admin.
func CreateUser(t *testing.T, db *gorm.DB, tenantID *string, email string, role model.Role) *model.User {
	t.Helper()
	user := &model.User{
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: "not-a-hash",
		FullName:     email,
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateProject inserts a project created by createdBy
func CreateProject(t *testing.T, db *gorm.DB, tenantID, createdBy, name string) *model.Project {
	t.Helper()
	project := &model.Project{
		TenantID:  tenantID,
		Name:      name,
		Status:    model.ProjectStatusActive,
		CreatedBy: createdBy,
	}
	require.NoError(t, db.Create(project).Error)
	return project
}

// CreateTask inserts a task in project
func CreateTask(t *testing.T, db *gorm.DB, project *model.Project, title string, priority model.Priority, due *time.Time) *model.Task {
	t.Helper()
	task := &model.Task{
		ProjectID: project.ID,
		TenantID:  project.TenantID,
		Title:     title,
		Status:    model.TaskStatusTodo,
		Priority:  priority,
		DueDate:   due,
	}
	require.NoError(t, db.Omit("Assignee").Create(task).Error)
	return task
}

// Date returns midnight UTC of the given day
func Date(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}
