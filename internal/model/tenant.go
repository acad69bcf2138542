package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantStatus is the lifecycle state of a tenant
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusTrial     TenantStatus = "trial"
)

// Valid reports whether s is a known tenant status
func (s TenantStatus) Valid() bool {
	switch s {
	case TenantStatusActive, TenantStatusSuspended, TenantStatusTrial:
		return true
	}
	return false
}

// Plan is a subscription plan
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Tenant represents an isolated organization. It is the unit of data
// partitioning: every user (except the super admin), project and task
// carries its ID.
type Tenant struct {
	ID               string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name             string       `json:"name" gorm:"type:varchar(255);not null"`
	Subdomain        string       `json:"subdomain" gorm:"type:varchar(63);uniqueIndex;not null"`
	Status           TenantStatus `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	SubscriptionPlan Plan         `json:"subscriptionPlan" gorm:"type:varchar(20);not null;default:'free'"`
	MaxUsers         int          `json:"maxUsers" gorm:"not null"`
	MaxProjects      int          `json:"maxProjects" gorm:"not null"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when none was set
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}
