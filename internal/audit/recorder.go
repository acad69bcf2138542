// Package audit appends entries to the audit trail. Recording is best
// effort: a failed write is logged and counted but never fails the
// operation being audited.
package audit

import (
	"context"

	"projecthub-service/internal/identity"
	"projecthub-service/internal/model"
	"projecthub-service/internal/repository"
	"projecthub-service/pkg/logger"
	"projecthub-service/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Entry describes one audited mutation
type Entry struct {
	TenantID   *string
	UserID     string
	Action     model.AuditAction
	EntityType string
	EntityID   string
	IPAddress  string
}

// For builds an entry for the caller acting on an entity of tenantID. An
// empty tenantID records a tenant-less entry.
func For(id identity.Identity, tenantID string, action model.AuditAction, entityType, entityID, ip string) Entry {
	e := Entry{
		UserID:     id.ID(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  ip,
	}
	if tenantID != "" {
		e.TenantID = &tenantID
	}
	return e
}

// Recorder writes audit entries
type Recorder struct {
	repo *repository.AuditLogRepository
}

// NewRecorder creates a recorder over repo
func NewRecorder(repo *repository.AuditLogRepository) *Recorder {
	return &Recorder{repo: repo}
}

// Record appends e. When tx is an open transaction the insert runs in a
// nested transaction (a savepoint) so a failure rolls back only the audit
// row. A nil tx writes through the recorder's own connection.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, e Entry) {
	entry := &model.AuditLog{
		TenantID:   e.TenantID,
		UserID:     e.UserID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		IPAddress:  e.IPAddress,
	}

	var err error
	if tx == nil {
		err = r.repo.Create(ctx, nil, entry)
	} else {
		err = tx.Transaction(func(sp *gorm.DB) error {
			return r.repo.Create(ctx, sp, entry)
		})
	}
	if err == nil {
		return
	}

	prometheus.RecordAuditFailure(string(e.Action))
	logger.FromContext(ctx).Error("Failed to record audit entry",
		zap.String("action", string(e.Action)),
		zap.String("entity_type", e.EntityType),
		zap.String("entity_id", e.EntityID),
		zap.String("user_id", e.UserID),
		zap.Error(err))
}
