package handler

import (
	"net/http"

	"projecthub-service/internal/audit"
	"projecthub-service/internal/model"
	"projecthub-service/internal/patch"
	"projecthub-service/internal/policy"
	"projecthub-service/internal/repository"
	"projecthub-service/internal/validate"
	"projecthub-service/pkg/apperr"
	"projecthub-service/pkg/logger"
	"projecthub-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type tenantDetail struct {
	model.Tenant
	Stats repository.TenantStats `json:"stats"`
}

type tenantUpdateRequest struct {
	Name             patch.Field[string]             `json:"name"`
	Status           patch.Field[model.TenantStatus] `json:"status"`
	SubscriptionPlan patch.Field[model.Plan]         `json:"subscriptionPlan"`
	MaxUsers         patch.Field[int]                `json:"maxUsers"`
	MaxProjects      patch.Field[int]                `json:"maxProjects"`
}

func (r tenantUpdateRequest) fields() []string {
	return presentFields(map[string]bool{
		policy.FieldName:             r.Name.Set,
		policy.FieldStatus:           r.Status.Set,
		policy.FieldSubscriptionPlan: r.SubscriptionPlan.Set,
		policy.FieldMaxUsers:         r.MaxUsers.Set,
		policy.FieldMaxProjects:      r.MaxProjects.Set,
	})
}

// ListTenants returns a page of tenants to the super admin
func (h *Handler) ListTenants(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	if err := policy.Authorize(id, policy.TenantList, policy.Target{}); err != nil {
		return err
	}

	filter := repository.TenantFilter{
		Status: model.TenantStatus(c.QueryParam("status")),
		Plan:   model.Plan(c.QueryParam("plan")),
		Search: c.QueryParam("search"),
		Page:   pageParam(c, 10),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return apperr.Invalid("Invalid status filter")
	}
	if _, known := h.guard.Plans().Lookup(filter.Plan); filter.Plan != "" && !known {
		return apperr.Invalid("Invalid plan filter")
	}

	ctx, cancel := h.readContext(c)
	defer cancel()

	tenants, total, err := h.tenants.List(ctx, filter)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", newPage(tenants, total, filter.Page))
}

// GetTenant returns a tenant with its usage counts
func (h *Handler) GetTenant(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	tenantID := c.Param("id")
	if err := policy.Authorize(id, policy.TenantRead, policy.Target{TenantID: tenantID}); err != nil {
		return err
	}

	ctx, cancel := h.readContext(c)
	defer cancel()

	tenant, err := h.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return err
	}
	stats, err := h.tenants.Stats(ctx, tenantID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", tenantDetail{Tenant: *tenant, Stats: stats})
}

// UpdateTenant applies the permitted fields of the request. A plan change
// resets both limits to the plan's values.
func (h *Handler) UpdateTenant(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := caller(c)
	if err != nil {
		return err
	}
	tenantID := c.Param("id")

	var req tenantUpdateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	target := policy.Target{TenantID: tenantID}
	if err := policy.AuthorizeFields(id, policy.TenantUpdate, target, req.fields()); err != nil {
		return err
	}

	upd := repository.TenantPatch{
		Status:           req.Status,
		SubscriptionPlan: req.SubscriptionPlan,
		MaxUsers:         req.MaxUsers,
		MaxProjects:      req.MaxProjects,
	}
	if req.Name.Set {
		name, err := validate.Name("Name", req.Name.Value)
		if err != nil {
			return err
		}
		upd.Name = patch.Value(name)
	}
	if req.Status.Set && !req.Status.Value.Valid() {
		return apperr.Invalid("Invalid tenant status")
	}
	for _, f := range []patch.Field[int]{req.MaxUsers, req.MaxProjects} {
		if f.Set && (f.Null || f.Value < 0) {
			return apperr.Invalid("Limits must be zero or greater")
		}
	}
	if req.SubscriptionPlan.Set {
		limits, known := h.guard.Plans().Lookup(req.SubscriptionPlan.Value)
		if !known {
			return apperr.Invalid("Invalid subscription plan")
		}
		upd.MaxUsers = patch.Value(limits.MaxUsers)
		upd.MaxProjects = patch.Value(limits.MaxProjects)
	}

	ctx, cancel := h.writeContext(c)
	defer cancel()

	err = h.inTx(ctx, func(tx *gorm.DB) error {
		if err := h.tenants.WithTx(tx).Update(ctx, tenantID, upd); err != nil {
			return err
		}
		h.record(ctx, tx, c, audit.For(id, tenantID, model.ActionUpdateTenant, model.EntityTenant, tenantID, ""))
		return nil
	})
	if err != nil {
		return err
	}

	tenant, err := h.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return err
	}

	prometheus.RecordEntityOperation(model.EntityTenant, "update")
	log.Info("Tenant updated", zap.String("tenant_id", tenantID), zap.Strings("fields", req.fields()))
	return ok(c, http.StatusOK, "Tenant updated successfully", tenant)
}

// ListAuditLogs returns a page of a tenant's audit trail to its admins
func (h *Handler) ListAuditLogs(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	tenantID := c.Param("id")
	if err := policy.Authorize(id, policy.AuditRead, policy.Target{TenantID: tenantID}); err != nil {
		return err
	}

	ctx, cancel := h.readContext(c)
	defer cancel()

	p := pageParam(c, 20)
	entries, total, err := h.audits.List(ctx, tenantID, model.AuditAction(c.QueryParam("action")), p)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", newPage(entries, total, p))
}
