package repository

import (
	"context"
	"time"

	"projecthub-service/internal/model"
	"projecthub-service/internal/patch"
	"projecthub-service/prometheus"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
)

// UserPatch lists the user columns an update may write
type UserPatch struct {
	FullName     patch.Field[string]
	Email        patch.Field[string]
	PasswordHash patch.Field[string]
	Role         patch.Field[model.Role]
	IsActive     patch.Field[bool]
}

// UserFilter narrows a user listing
type UserFilter struct {
	Role   model.Role
	Search string
	Page   Page
}

// UserRepository persists users
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// Create inserts a user
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	return translate("user.Create", "User", r.db.WithContext(ctx).Create(u).Error)
}

// FindByID returns a user visible in scope
func (r *UserRepository) FindByID(ctx context.Context, scope Scope, id string) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var u model.User
	q := scope.apply(r.db.WithContext(ctx), "tenant_id")
	if err := q.Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate("user.FindByID", "User", err)
	}
	return &u, nil
}

// FindByEmail returns the user of tenantID with the given email
func (r *UserRepository) FindByEmail(ctx context.Context, tenantID, email string) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var u model.User
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND email = ?", tenantID, email).
		First(&u).Error
	if err != nil {
		return nil, translate("user.FindByEmail", "User", err)
	}
	return &u, nil
}

// FindSuperAdminByEmail returns the tenant-less super admin with the given email
func (r *UserRepository) FindSuperAdminByEmail(ctx context.Context, email string) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var u model.User
	err := r.db.WithContext(ctx).
		Where("tenant_id IS NULL AND role = ? AND email = ?", model.RoleSuperAdmin, email).
		First(&u).Error
	if err != nil {
		return nil, translate("user.FindSuperAdminByEmail", "User", err)
	}
	return &u, nil
}

// EmailTaken reports whether tenantID already has a user with email,
// ignoring exceptID
func (r *UserRepository) EmailTaken(ctx context.Context, tenantID, email, exceptID string) (bool, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var count int64
	q := r.db.WithContext(ctx).Model(&model.User{}).Where("tenant_id = ? AND email = ?", tenantID, email)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, translate("user.EmailTaken", "User", err)
	}
	return count > 0, nil
}

// List returns a page of the users of tenantID ordered by creation
func (r *UserRepository) List(ctx context.Context, tenantID string, f UserFilter) ([]model.User, int64, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	q := r.db.WithContext(ctx).Model(&model.User{}).Where("tenant_id = ?", tenantID)
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", p, p)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("user.List", "User", err)
	}

	var users []model.User
	if err := f.Page.apply(q).Order("created_at ASC").Order("id").Find(&users).Error; err != nil {
		return nil, 0, translate("user.List", "User", err)
	}
	return users, total, nil
}

// Update writes the fields present in p on a user visible in scope
func (r *UserRepository) Update(ctx context.Context, scope Scope, id string, p UserPatch) error {
	b := sq.Update("users").Where(sq.Eq{"id": id}).Where(scope.eq("tenant_id"))
	if p.FullName.HasValue() {
		b = b.Set("full_name", p.FullName.Value)
	}
	if p.Email.HasValue() {
		b = b.Set("email", p.Email.Value)
	}
	if p.PasswordHash.HasValue() {
		b = b.Set("password_hash", p.PasswordHash.Value)
	}
	if p.Role.HasValue() {
		b = b.Set("role", string(p.Role.Value))
	}
	if p.IsActive.HasValue() {
		b = b.Set("is_active", p.IsActive.Value)
	}
	return execUpdate(ctx, r.db, "user.Update", "User", b)
}

// Delete removes a user visible in scope
func (r *UserRepository) Delete(ctx context.Context, scope Scope, id string) error {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	res := scope.apply(r.db.WithContext(ctx), "tenant_id").Where("id = ?", id).Delete(&model.User{})
	if res.Error != nil {
		return translate("user.Delete", "User", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("user.Delete", "User", gorm.ErrRecordNotFound)
	}
	return nil
}
