package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is a user's role. super_admin is the only role without a tenant.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleTenantAdmin Role = "tenant_admin"
	RoleUser        Role = "user"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleTenantAdmin, RoleUser:
		return true
	}
	return false
}

// IsTenantRole reports whether r can be held by a tenant-scoped user
func (r Role) IsTenantRole() bool {
	return r == RoleTenantAdmin || r == RoleUser
}

// User represents an account. (tenant_id, email) is unique.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID     *string   `json:"tenantId" gorm:"type:varchar(36);uniqueIndex:idx_users_tenant_email;index"`
	Email        string    `json:"email" gorm:"type:varchar(255);uniqueIndex:idx_users_tenant_email;not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	FullName     string    `json:"fullName" gorm:"type:varchar(255);not null"`
	Role         Role      `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	IsActive     bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Tenant *Tenant `json:"-" gorm:"foreignKey:TenantID"`
}

// BeforeCreate assigns a UUID when none was set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// BelongsTo reports whether the user is scoped to the given tenant
func (u *User) BelongsTo(tenantID string) bool {
	return u.TenantID != nil && *u.TenantID == tenantID
}
