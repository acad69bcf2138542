// Package policy decides whether a caller may perform an operation on a
// resource. Every decision is a pure function of the caller identity, the
// operation and the target's tenant and owner; nothing here touches storage.
//
// A nil error means allow. Denials are *apperr.Error values with code
// forbidden and one of the reasons Unauthorized, CrossTenantAccess,
// SelfDeleteForbidden or FieldNotPermitted.
package policy

import (
	"fmt"
	"sort"
	"strings"

	"projecthub-service/internal/identity"
	"projecthub-service/pkg/apperr"
)

// Operation names an action on a resource kind
type Operation string

const (
	TenantList    Operation = "tenant:list"
	TenantRead    Operation = "tenant:read"
	TenantUpdate  Operation = "tenant:update"
	AuditRead     Operation = "audit:read"
	UserList      Operation = "user:list"
	UserCreate    Operation = "user:create"
	UserUpdate    Operation = "user:update"
	UserDelete    Operation = "user:delete"
	ProjectList   Operation = "project:list"
	ProjectRead   Operation = "project:read"
	ProjectCreate Operation = "project:create"
	ProjectUpdate Operation = "project:update"
	ProjectDelete Operation = "project:delete"
	TaskList      Operation = "task:list"
	TaskRead      Operation = "task:read"
	TaskCreate    Operation = "task:create"
	TaskUpdate    Operation = "task:update"
	TaskStatus    Operation = "task:status"
	TaskDelete    Operation = "task:delete"
)

// Target describes the row an operation acts on. TenantID is empty for
// tenant-less rows (the super admin account). OwnerID is the project
// creator or, for users, the user itself.
type Target struct {
	TenantID string
	OwnerID  string
}

type rule int

const (
	// any member of the target tenant
	ruleMember rule = iota
	// tenant_admin of the target tenant
	ruleAdmin
	// the owner or a tenant_admin of the target tenant
	ruleOwnerOrAdmin
	// a tenant_admin acting on anyone but itself
	ruleAdminNotSelf
	// platform operator only
	ruleSuperAdmin
)

// Project mutations require ownership; any member may mutate tasks.
var operations = map[Operation]rule{
	TenantList:    ruleSuperAdmin,
	TenantRead:    ruleMember,
	TenantUpdate:  ruleAdmin,
	AuditRead:     ruleAdmin,
	UserList:      ruleMember,
	UserCreate:    ruleAdmin,
	UserUpdate:    ruleOwnerOrAdmin,
	UserDelete:    ruleAdminNotSelf,
	ProjectList:   ruleMember,
	ProjectRead:   ruleMember,
	ProjectCreate: ruleMember,
	ProjectUpdate: ruleOwnerOrAdmin,
	ProjectDelete: ruleOwnerOrAdmin,
	TaskList:      ruleMember,
	TaskRead:      ruleMember,
	TaskCreate:    ruleMember,
	TaskUpdate:    ruleMember,
	TaskStatus:    ruleMember,
	TaskDelete:    ruleMember,
}

// Authorize decides op for the caller on target. Tenant isolation is
// evaluated before any role rule, and the super admin bypasses it.
func Authorize(id identity.Identity, op Operation, target Target) error {
	r, ok := operations[op]
	if !ok || id == nil {
		return denied(apperr.ReasonUnauthorized, "operation not permitted")
	}

	if r == ruleSuperAdmin {
		if identity.IsSuperAdmin(id) {
			return nil
		}
		return denied(apperr.ReasonUnauthorized, "super admin access required")
	}

	if !identity.InTenant(id, target.TenantID) {
		return denied(apperr.ReasonCrossTenantAccess, "resource belongs to another tenant")
	}

	switch r {
	case ruleMember:
		return nil
	case ruleAdmin:
		if identity.AdminOf(id, target.TenantID) {
			return nil
		}
		return denied(apperr.ReasonUnauthorized, "admin access required")
	case ruleOwnerOrAdmin:
		if id.ID() == target.OwnerID || identity.AdminOf(id, target.TenantID) {
			return nil
		}
		return denied(apperr.ReasonUnauthorized, "only the owner or an admin may do this")
	case ruleAdminNotSelf:
		if id.ID() == target.OwnerID {
			return denied(apperr.ReasonSelfDeleteForbidden, "you cannot delete your own account")
		}
		if identity.AdminOf(id, target.TenantID) {
			return nil
		}
		return denied(apperr.ReasonUnauthorized, "admin access required")
	}
	return denied(apperr.ReasonUnauthorized, "operation not permitted")
}

func denied(reason, msg string) error {
	return apperr.Forbidden(reason, msg)
}

// Fields that can appear in update requests
const (
	FieldName             = "name"
	FieldStatus           = "status"
	FieldSubscriptionPlan = "subscriptionPlan"
	FieldMaxUsers         = "maxUsers"
	FieldMaxProjects      = "maxProjects"
	FieldFullName         = "fullName"
	FieldEmail            = "email"
	FieldPassword         = "password"
	FieldRole             = "role"
	FieldIsActive         = "isActive"
)

type grant int

const (
	grantSelf grant = iota
	grantTenantAdmin
	grantSuperAdmin
)

type fieldSet map[string]struct{}

func fields(names ...string) fieldSet {
	s := make(fieldSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// fieldTable lists the fields each grant may write, per update operation.
// The grants a caller holds are unioned.
var fieldTable = map[Operation]map[grant]fieldSet{
	TenantUpdate: {
		grantTenantAdmin: fields(FieldName),
		grantSuperAdmin:  fields(FieldName, FieldStatus, FieldSubscriptionPlan, FieldMaxUsers, FieldMaxProjects),
	},
	UserUpdate: {
		grantSelf:        fields(FieldFullName, FieldPassword),
		grantTenantAdmin: fields(FieldFullName, FieldEmail, FieldRole, FieldIsActive),
		grantSuperAdmin:  fields(FieldFullName, FieldEmail, FieldRole, FieldIsActive),
	},
}

func grantsFor(id identity.Identity, target Target) []grant {
	var gs []grant
	if id.ID() == target.OwnerID {
		gs = append(gs, grantSelf)
	}
	switch {
	case identity.IsSuperAdmin(id):
		gs = append(gs, grantSuperAdmin)
	case identity.AdminOf(id, target.TenantID):
		gs = append(gs, grantTenantAdmin)
	}
	return gs
}

// AllowedFields returns the fields the caller may write with op on target
func AllowedFields(id identity.Identity, op Operation, target Target) []string {
	table := fieldTable[op]
	seen := map[string]struct{}{}
	for _, g := range grantsFor(id, target) {
		for f := range table[g] {
			seen[f] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// AuthorizeFields runs Authorize and then checks every requested field
// against the field table. The first offending fields are named in the
// denial message.
func AuthorizeFields(id identity.Identity, op Operation, target Target, requested []string) error {
	if err := Authorize(id, op, target); err != nil {
		return err
	}

	allowed := fields(AllowedFields(id, op, target)...)
	var rejected []string
	for _, f := range requested {
		if _, ok := allowed[f]; !ok {
			rejected = append(rejected, f)
		}
	}
	if len(rejected) == 0 {
		return nil
	}
	sort.Strings(rejected)
	return denied(apperr.ReasonFieldNotPermitted,
		fmt.Sprintf("not permitted to change: %s", strings.Join(rejected, ", ")))
}
