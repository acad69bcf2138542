// Package repository persists tenants, users, projects, tasks and audit
// entries with gorm. Tenant-owned rows are always read and written through
// a Scope so a caller can never reach another tenant's data by id.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"projecthub-service/internal/identity"
	"projecthub-service/pkg/apperr"
	"projecthub-service/prometheus"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
)

// Scope restricts queries to one tenant unless All is set
type Scope struct {
	TenantID string
	All      bool
}

// ScopeOf returns the row scope of the caller
func ScopeOf(id identity.Identity) Scope {
	if identity.IsSuperAdmin(id) {
		return Scope{All: true}
	}
	t, _ := id.Tenant()
	return Scope{TenantID: t}
}

// TenantScope restricts to tenantID regardless of the caller
func TenantScope(tenantID string) Scope {
	return Scope{TenantID: tenantID}
}

func (s Scope) apply(db *gorm.DB, column string) *gorm.DB {
	if s.All {
		return db
	}
	return db.Where(column+" = ?", s.TenantID)
}

func (s Scope) eq(column string) sq.Sqlizer {
	if s.All {
		return sq.Expr("1 = 1")
	}
	return sq.Eq{column: s.TenantID}
}

// Page is a normalized page request
type Page struct {
	Page  int
	Limit int
}

// MaxPageLimit caps any page size
const MaxPageLimit = 100

// NewPage normalizes page and limit, falling back to def for the limit
func NewPage(page, limit, def int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Page: page, Limit: limit}
}

// Offset returns the row offset of the page
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

func (p Page) apply(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Offset()).Limit(p.Limit)
}

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// translate maps gorm errors to coded errors
func translate(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	var coded *apperr.Error
	switch {
	case errors.As(err, &coded):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(entity)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &apperr.Error{Code: apperr.EConflict, Msg: entity + " already exists", Op: op, Err: err}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return &apperr.Error{Code: apperr.EInvalid, Msg: entity + " references a missing record", Op: op, Err: err}
	default:
		return apperr.Internal(op, err)
	}
}

// execUpdate runs a squirrel UPDATE through gorm and reports NotFound when
// no row matched.
func execUpdate(ctx context.Context, db *gorm.DB, op, entity string, b sq.UpdateBuilder) error {
	defer prometheus.TrackDBOperation("update")(time.Now())

	query, args, err := b.Set("updated_at", time.Now()).ToSql()
	if err != nil {
		return apperr.Internal(op, err)
	}
	res := db.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return translate(op, entity, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}
