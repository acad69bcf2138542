// Package quota enforces the per-tenant user and project limits derived
// from the subscription plan.
package quota

import (
	"errors"
	"fmt"

	"projecthub-service/internal/model"
	"projecthub-service/pkg/apperr"
	"projecthub-service/prometheus"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Limits caps the number of users and projects of a tenant
type Limits struct {
	MaxUsers    int
	MaxProjects int
}

// PlanTable maps a subscription plan to its limits
type PlanTable map[model.Plan]Limits

// DefaultPlans returns the plan table used by the service
func DefaultPlans() PlanTable {
	return PlanTable{
		model.PlanFree:       {MaxUsers: 5, MaxProjects: 3},
		model.PlanPro:        {MaxUsers: 25, MaxProjects: 15},
		model.PlanEnterprise: {MaxUsers: 100, MaxProjects: 50},
	}
}

// Lookup returns the limits of plan
func (p PlanTable) Lookup(plan model.Plan) (Limits, bool) {
	l, ok := p[plan]
	return l, ok
}

// Guard checks tenant counts against limits before a creation. Checks must
// run in the transaction that performs the insert: the tenant row is
// locked first so concurrent creators for one tenant are serialized.
type Guard struct {
	plans PlanTable
}

// NewGuard creates a guard over the given plan table
func NewGuard(plans PlanTable) *Guard {
	return &Guard{plans: plans}
}

// Plans returns the guard's plan table
func (g *Guard) Plans() PlanTable {
	return g.plans
}

// CheckUsers fails with QuotaExceeded when the tenant is at its user limit
func (g *Guard) CheckUsers(tx *gorm.DB, tenantID string) error {
	tenant, err := lockTenant(tx, tenantID)
	if err != nil {
		return err
	}

	var count int64
	if err := tx.Model(&model.User{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return apperr.Internal("quota.CheckUsers", err)
	}
	if count >= int64(tenant.MaxUsers) {
		prometheus.RecordQuotaDenial("users")
		return exceeded("users", tenant.MaxUsers)
	}
	return nil
}

// CheckProjects fails with QuotaExceeded when the tenant is at its project limit
func (g *Guard) CheckProjects(tx *gorm.DB, tenantID string) error {
	tenant, err := lockTenant(tx, tenantID)
	if err != nil {
		return err
	}

	var count int64
	if err := tx.Model(&model.Project{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return apperr.Internal("quota.CheckProjects", err)
	}
	if count >= int64(tenant.MaxProjects) {
		prometheus.RecordQuotaDenial("projects")
		return exceeded("projects", tenant.MaxProjects)
	}
	return nil
}

// lockTenant reads the tenant row FOR UPDATE. SQLite ignores the locking
// clause; its single writer gives the same serialization.
func lockTenant(tx *gorm.DB, tenantID string) (*model.Tenant, error) {
	var tenant model.Tenant
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where("id = ?", tenantID).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Tenant")
		}
		return nil, apperr.Internal("quota.lockTenant", err)
	}
	return &tenant, nil
}

func exceeded(resource string, max int) error {
	return &apperr.Error{
		Code:   apperr.EForbidden,
		Reason: apperr.ReasonQuotaExceeded,
		Msg:    fmt.Sprintf("%s limit reached (%d). Please upgrade your plan.", resource, max),
	}
}
