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

// TenantPatch lists the tenant columns an update may write
type TenantPatch struct {
	Name             patch.Field[string]
	Status           patch.Field[model.TenantStatus]
	SubscriptionPlan patch.Field[model.Plan]
	MaxUsers         patch.Field[int]
	MaxProjects      patch.Field[int]
}

// TenantFilter narrows a tenant listing
type TenantFilter struct {
	Status model.TenantStatus
	Plan   model.Plan
	Search string
	Page   Page
}

// TenantSummary is a tenant with its usage counts
type TenantSummary struct {
	model.Tenant
	TotalUsers    int64 `json:"totalUsers"`
	TotalProjects int64 `json:"totalProjects"`
}

// TenantStats are the usage counts shown on the tenant detail view
type TenantStats struct {
	TotalUsers    int64 `json:"totalUsers"`
	TotalProjects int64 `json:"totalProjects"`
	TotalTasks    int64 `json:"totalTasks"`
}

// TenantRepository persists tenants
type TenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates a tenant repository
func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *TenantRepository) WithTx(tx *gorm.DB) *TenantRepository {
	return &TenantRepository{db: tx}
}

// Create inserts a tenant
func (r *TenantRepository) Create(ctx context.Context, t *model.Tenant) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	return translate("tenant.Create", "Tenant", r.db.WithContext(ctx).Create(t).Error)
}

// FindByID returns a tenant by id
func (r *TenantRepository) FindByID(ctx context.Context, id string) (*model.Tenant, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var t model.Tenant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate("tenant.FindByID", "Tenant", err)
	}
	return &t, nil
}

// FindBySubdomain returns a tenant by its subdomain
func (r *TenantRepository) FindBySubdomain(ctx context.Context, subdomain string) (*model.Tenant, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var t model.Tenant
	if err := r.db.WithContext(ctx).Where("subdomain = ?", subdomain).First(&t).Error; err != nil {
		return nil, translate("tenant.FindBySubdomain", "Tenant", err)
	}
	return &t, nil
}

// SubdomainTaken reports whether a tenant already uses subdomain
func (r *TenantRepository) SubdomainTaken(ctx context.Context, subdomain string) (bool, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Tenant{}).Where("subdomain = ?", subdomain).Count(&count).Error; err != nil {
		return false, translate("tenant.SubdomainTaken", "Tenant", err)
	}
	return count > 0, nil
}

// List returns a page of tenants with usage counts, newest first
func (r *TenantRepository) List(ctx context.Context, f TenantFilter) ([]TenantSummary, int64, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	q := r.db.WithContext(ctx).Model(&model.Tenant{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Plan != "" {
		q = q.Where("subscription_plan = ?", f.Plan)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(subdomain) LIKE ?", p, p)
	}

	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("tenant.List", "Tenant", err)
	}

	var tenants []model.Tenant
	if err := f.Page.apply(q).Order("created_at DESC").Order("id").Find(&tenants).Error; err != nil {
		return nil, 0, translate("tenant.List", "Tenant", err)
	}

	ids := make([]string, len(tenants))
	for i, t := range tenants {
		ids[i] = t.ID
	}
	users, err := r.countByTenant(ctx, &model.User{}, ids)
	if err != nil {
		return nil, 0, err
	}
	projects, err := r.countByTenant(ctx, &model.Project{}, ids)
	if err != nil {
		return nil, 0, err
	}

	out := make([]TenantSummary, len(tenants))
	for i, t := range tenants {
		out[i] = TenantSummary{Tenant: t, TotalUsers: users[t.ID], TotalProjects: projects[t.ID]}
	}
	return out, total, nil
}

type tenantCount struct {
	TenantID string
	Total    int64
}

func (r *TenantRepository) countByTenant(ctx context.Context, m interface{}, ids []string) (map[string]int64, error) {
	out := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []tenantCount
	err := r.db.WithContext(ctx).Model(m).
		Select("tenant_id, COUNT(*) AS total").
		Where("tenant_id IN ?", ids).
		Group("tenant_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate("tenant.countByTenant", "Tenant", err)
	}
	for _, row := range rows {
		out[row.TenantID] = row.Total
	}
	return out, nil
}

// Stats returns the usage counts of a tenant
func (r *TenantRepository) Stats(ctx context.Context, id string) (TenantStats, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var s TenantStats
	db := r.db.WithContext(ctx)
	if err := db.Model(&model.User{}).Where("tenant_id = ?", id).Count(&s.TotalUsers).Error; err != nil {
		return s, translate("tenant.Stats", "Tenant", err)
	}
	if err := db.Model(&model.Project{}).Where("tenant_id = ?", id).Count(&s.TotalProjects).Error; err != nil {
		return s, translate("tenant.Stats", "Tenant", err)
	}
	if err := db.Model(&model.Task{}).Where("tenant_id = ?", id).Count(&s.TotalTasks).Error; err != nil {
		return s, translate("tenant.Stats", "Tenant", err)
	}
	return s, nil
}

// Update writes the fields present in p
func (r *TenantRepository) Update(ctx context.Context, id string, p TenantPatch) error {
	b := sq.Update("tenants").Where(sq.Eq{"id": id})
	if p.Name.HasValue() {
		b = b.Set("name", p.Name.Value)
	}
	if p.Status.HasValue() {
		b = b.Set("status", string(p.Status.Value))
	}
	if p.SubscriptionPlan.HasValue() {
		b = b.Set("subscription_plan", string(p.SubscriptionPlan.Value))
	}
	if p.MaxUsers.HasValue() {
		b = b.Set("max_users", p.MaxUsers.Value)
	}
	if p.MaxProjects.HasValue() {
		b = b.Set("max_projects", p.MaxProjects.Value)
	}
	return execUpdate(ctx, r.db, "tenant.Update", "Tenant", b)
}
