// Package identity describes the authenticated caller of a request.
//
// An Identity is either a SuperAdmin, who has no tenant and may act across
// tenants, or a Member bound to exactly one tenant. The two shapes are
// distinct types so a tenant-less tenant user cannot be represented.
package identity

import (
	"errors"

	"projecthub-service/internal/model"
)

// Identity is the caller snapshot derived from a verified token.
type Identity interface {
	// ID returns the caller's user id
	ID() string
	// Role returns the caller's role
	Role() model.Role
	// Tenant returns the caller's tenant id and whether one is set
	Tenant() (string, bool)

	isIdentity()
}

// SuperAdmin is the platform operator
type SuperAdmin struct {
	UserID string
}

func (s SuperAdmin) ID() string             { return s.UserID }
func (s SuperAdmin) Role() model.Role       { return model.RoleSuperAdmin }
func (s SuperAdmin) Tenant() (string, bool) { return "", false }
func (SuperAdmin) isIdentity()              {}

// Member is a tenant_admin or user of one tenant
type Member struct {
	UserID     string
	TenantID   string
	MemberRole model.Role
}

func (m Member) ID() string             { return m.UserID }
func (m Member) Role() model.Role       { return m.MemberRole }
func (m Member) Tenant() (string, bool) { return m.TenantID, true }
func (Member) isIdentity()              {}

// IsAdmin reports whether the member administers its tenant
func (m Member) IsAdmin() bool {
	return m.MemberRole == model.RoleTenantAdmin
}

var (
	ErrMissingTenant    = errors.New("tenant role without tenant")
	ErrUnexpectedTenant = errors.New("super admin with tenant")
	ErrUnknownRole      = errors.New("unknown role")
)

// New builds an Identity from raw token fields and rejects shapes that
// cannot occur for a valid account.
func New(userID string, tenantID *string, role string) (Identity, error) {
	r := model.Role(role)
	switch {
	case r == model.RoleSuperAdmin:
		if tenantID != nil {
			return nil, ErrUnexpectedTenant
		}
		return SuperAdmin{UserID: userID}, nil
	case r.IsTenantRole():
		if tenantID == nil || *tenantID == "" {
			return nil, ErrMissingTenant
		}
		return Member{UserID: userID, TenantID: *tenantID, MemberRole: r}, nil
	default:
		return nil, ErrUnknownRole
	}
}

// IsSuperAdmin reports whether id is the super admin
func IsSuperAdmin(id Identity) bool {
	_, ok := id.(SuperAdmin)
	return ok
}

// InTenant reports whether the caller may see rows of tenantID. The super
// admin sees every tenant.
func InTenant(id Identity, tenantID string) bool {
	if IsSuperAdmin(id) {
		return true
	}
	t, ok := id.Tenant()
	return ok && t == tenantID
}

// AdminOf reports whether the caller administers tenantID
func AdminOf(id Identity, tenantID string) bool {
	switch v := id.(type) {
	case SuperAdmin:
		return true
	case Member:
		return v.IsAdmin() && v.TenantID == tenantID
	}
	return false
}
