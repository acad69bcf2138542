package identity

import (
	"testing"

	"projecthub-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tenant := "t1"
	empty := ""

	id, err := New("root", nil, "super_admin")
	require.NoError(t, err)
	assert.Equal(t, SuperAdmin{UserID: "root"}, id)

	id, err = New("u1", &tenant, "user")
	require.NoError(t, err)
	assert.Equal(t, Member{UserID: "u1", TenantID: "t1", MemberRole: model.RoleUser}, id)

	_, err = New("root", &tenant, "super_admin")
	assert.ErrorIs(t, err, ErrUnexpectedTenant)

	_, err = New("u1", nil, "tenant_admin")
	assert.ErrorIs(t, err, ErrMissingTenant)

	_, err = New("u1", &empty, "user")
	assert.ErrorIs(t, err, ErrMissingTenant)

	_, err = New("u1", &tenant, "owner")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestScopeHelpers(t *testing.T) {
	root := SuperAdmin{UserID: "root"}
	admin := Member{UserID: "a", TenantID: "t1", MemberRole: model.RoleTenantAdmin}
	user := Member{UserID: "u", TenantID: "t1", MemberRole: model.RoleUser}

	assert.True(t, InTenant(root, "t2"))
	assert.True(t, InTenant(user, "t1"))
	assert.False(t, InTenant(user, "t2"))

	assert.True(t, AdminOf(root, "t2"))
	assert.True(t, AdminOf(admin, "t1"))
	assert.False(t, AdminOf(admin, "t2"))
	assert.False(t, AdminOf(user, "t1"))

	_, ok := root.Tenant()
	assert.False(t, ok)
	assert.Equal(t, model.RoleSuperAdmin, root.Role())
}
