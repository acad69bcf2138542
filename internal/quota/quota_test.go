package quota

import (
	"fmt"
	"testing"

	"projecthub-service/internal/model"
	"projecthub-service/internal/testutil"
	"projecthub-service/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDefaultPlans(t *testing.T) {
	plans := DefaultPlans()

	l, ok := plans.Lookup(model.PlanFree)
	require.True(t, ok)
	assert.Equal(t, Limits{MaxUsers: 5, MaxProjects: 3}, l)

	l, _ = plans.Lookup(model.PlanPro)
	assert.Equal(t, Limits{MaxUsers: 25, MaxProjects: 15}, l)

	l, _ = plans.Lookup(model.PlanEnterprise)
	assert.Equal(t, Limits{MaxUsers: 100, MaxProjects: 50}, l)

	_, ok = plans.Lookup("platinum")
	assert.False(t, ok)
}

func TestCheckUsersStopsAtLimit(t *testing.T) {
	db := testutil.NewTestDB(t)
	guard := NewGuard(DefaultPlans())
	tenant := testutil.CreateTenant(t, db, "acme", model.PlanFree, 5, 3)

	create := func(i int) error {
		return db.Transaction(func(tx *gorm.DB) error {
			if err := guard.CheckUsers(tx, tenant.ID); err != nil {
				return err
			}
			return tx.Create(&model.User{
				TenantID: &tenant.ID, Email: fmt.Sprintf("u%d@acme.test", i), PasswordHash: "x", FullName: "u", Role: model.RoleUser, IsActive: true,
			}).Error
		})
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, create(i))
	}

	err := create(5)
	require.Error(t, err)
	assert.Equal(t, apperr.EForbidden, apperr.ErrorCode(err))
	assert.Equal(t, apperr.ReasonQuotaExceeded, apperr.ErrorReason(err))

	var count int64
	require.NoError(t, db.Model(&model.User{}).Where("tenant_id = ?", tenant.ID).Count(&count).Error)
	assert.Equal(t, int64(5), count)
}

func TestCheckProjects(t *testing.T) {
	db := testutil.NewTestDB(t)
	guard := NewGuard(DefaultPlans())
	tenant := testutil.CreateTenant(t, db, "acme", model.PlanFree, 5, 1)
	other := testutil.CreateTenant(t, db, "other", model.PlanFree, 5, 1)

	require.NoError(t, guard.CheckProjects(db, tenant.ID))
	testutil.CreateProject(t, db, tenant.ID, "u", "P")

	err := guard.CheckProjects(db, tenant.ID)
	assert.Equal(t, apperr.ReasonQuotaExceeded, apperr.ErrorReason(err))

	// counts are per tenant
	require.NoError(t, guard.CheckProjects(db, other.ID))
}

func TestZeroLimitBlocksEverything(t *testing.T) {
	db := testutil.NewTestDB(t)
	guard := NewGuard(DefaultPlans())
	tenant := testutil.CreateTenant(t, db, "acme", model.PlanFree, 0, 0)

	assert.Equal(t, apperr.ReasonQuotaExceeded, apperr.ErrorReason(guard.CheckUsers(db, tenant.ID)))
	assert.Equal(t, apperr.ReasonQuotaExceeded, apperr.ErrorReason(guard.CheckProjects(db, tenant.ID)))
}

func TestUnknownTenant(t *testing.T) {
	db := testutil.NewTestDB(t)
	err := NewGuard(DefaultPlans()).CheckUsers(db, "missing")
	assert.True(t, apperr.Is(err, apperr.ENotFound))
}
