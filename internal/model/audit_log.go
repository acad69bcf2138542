package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditAction names a mutating operation
type AuditAction string

const (
	ActionCreateTenant  AuditAction = "CREATE_TENANT"
	ActionUpdateTenant  AuditAction = "UPDATE_TENANT"
	ActionCreateUser    AuditAction = "CREATE_USER"
	ActionUpdateUser    AuditAction = "UPDATE_USER"
	ActionDeleteUser    AuditAction = "DELETE_USER"
	ActionCreateProject AuditAction = "CREATE_PROJECT"
	ActionUpdateProject AuditAction = "UPDATE_PROJECT"
	ActionDeleteProject AuditAction = "DELETE_PROJECT"
	ActionCreateTask    AuditAction = "CREATE_TASK"
	ActionUpdateTask    AuditAction = "UPDATE_TASK"
	ActionDeleteTask    AuditAction = "DELETE_TASK"
	ActionLogin         AuditAction = "LOGIN"
)

// Entity types recorded in the audit log
const (
	EntityTenant  = "tenant"
	EntityUser    = "user"
	EntityProject = "project"
	EntityTask    = "task"
)

// AuditLog is an append-only record of a mutation. It has no foreign keys
// so entries outlive the rows they describe.
type AuditLog struct {
	ID         string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID   *string     `json:"tenantId" gorm:"type:varchar(36);index"`
	UserID     string      `json:"userId" gorm:"type:varchar(36);index;not null"`
	Action     AuditAction `json:"action" gorm:"type:varchar(50);not null"`
	EntityType string      `json:"entityType" gorm:"type:varchar(50);not null"`
	EntityID   string      `json:"entityId" gorm:"type:varchar(36);not null"`
	IPAddress  string      `json:"ipAddress,omitempty" gorm:"type:varchar(64)"`
	CreatedAt  time.Time   `json:"createdAt" gorm:"index"`
}

// BeforeCreate assigns a UUID when none was set
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// All returns every model for migrations
func All() []interface{} {
	return []interface{}{&Tenant{}, &User{}, &Project{}, &Task{}, &AuditLog{}}
}
