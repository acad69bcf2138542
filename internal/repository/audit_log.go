package repository

import (
	"context"
	"time"

	"projecthub-service/internal/model"
	"projecthub-service/prometheus"

	"gorm.io/gorm"
)

// AuditLogRepository appends and reads audit entries. Entries are never
// updated or deleted.
type AuditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository creates an audit log repository
func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Create appends an entry using db, which may be a transaction
func (r *AuditLogRepository) Create(ctx context.Context, db *gorm.DB, entry *model.AuditLog) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	if db == nil {
		db = r.db
	}
	return translate("audit.Create", "Audit log", db.WithContext(ctx).Create(entry).Error)
}

// List returns a page of the entries of tenantID, newest first
func (r *AuditLogRepository) List(ctx context.Context, tenantID string, action model.AuditAction, page Page) ([]model.AuditLog, int64, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	q := r.db.WithContext(ctx).Model(&model.AuditLog{}).Where("tenant_id = ?", tenantID)
	if action != "" {
		q = q.Where("action = ?", action)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("audit.List", "Audit log", err)
	}

	var entries []model.AuditLog
	if err := page.apply(q).Order("created_at DESC").Order("id").Find(&entries).Error; err != nil {
		return nil, 0, translate("audit.List", "Audit log", err)
	}
	return entries, total, nil
}
