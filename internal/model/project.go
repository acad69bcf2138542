package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectStatus is the state of a project
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

// Valid reports whether s is a known project status
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusCompleted, ProjectStatusArchived:
		return true
	}
	return false
}

// Project groups tasks within one tenant. TenantID never changes after
// creation.
type Project struct {
	ID          string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID    string        `json:"tenantId" gorm:"type:varchar(36);index;not null"`
	Name        string        `json:"name" gorm:"type:varchar(255);not null"`
	Description string        `json:"description" gorm:"type:text"`
	Status      ProjectStatus `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	CreatedBy   string        `json:"createdBy" gorm:"type:varchar(36);index;not null"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`

	Tenant *Tenant `json:"-" gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate assigns a UUID when none was set
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// ProjectSummary is a project row enriched for listings
type ProjectSummary struct {
	Project
	CreatorName        string `json:"creatorName"`
	TenantName         string `json:"tenantName"`
	TaskCount          int64  `json:"taskCount"`
	CompletedTaskCount int64  `json:"completedTaskCount"`
}
