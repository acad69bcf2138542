package handler

import (
	"net/http"

	"projecthub-service/internal/audit"
	"projecthub-service/internal/identity"
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

type projectUpdateRequest struct {
	Name        patch.Field[string]              `json:"name"`
	Description patch.Field[string]              `json:"description"`
	Status      patch.Field[model.ProjectStatus] `json:"status"`
}

// ListProjects returns a page of the projects visible to the caller. The
// super admin may narrow the list with tenantId.
func (h *Handler) ListProjects(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}

	scope := repository.ScopeOf(id)
	if t := c.QueryParam("tenantId"); t != "" && identity.IsSuperAdmin(id) {
		scope = repository.TenantScope(t)
	}
	if err := policy.Authorize(id, policy.ProjectList, policy.Target{TenantID: scope.TenantID}); err != nil {
		return err
	}

	filter := repository.ProjectFilter{
		Status: model.ProjectStatus(c.QueryParam("status")),
		Search: c.QueryParam("search"),
		Page:   pageParam(c, 20),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return apperr.Invalid("Invalid status filter")
	}

	ctx, cancel := h.readContext(c)
	defer cancel()

	projects, total, err := h.projects.List(ctx, scope, filter)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", newPage(projects, total, filter.Page))
}

// CreateProject adds a project to the caller's tenant within its project
// quota. The super admin names the tenant with targetTenantId.
func (h *Handler) CreateProject(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := caller(c)
	if err != nil {
		return err
	}

	var req struct {
		Name           string              `json:"name"`
		Description    string              `json:"description"`
		Status         model.ProjectStatus `json:"status"`
		TargetTenantID string              `json:"targetTenantId"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}

	tenantID := req.TargetTenantID
	if tenantID == "" {
		t, hasTenant := id.Tenant()
		if !hasTenant {
			return apperr.Invalid("targetTenantId is required")
		}
		tenantID = t
	}
	if err := policy.Authorize(id, policy.ProjectCreate, policy.Target{TenantID: tenantID}); err != nil {
		return err
	}

	name, err := validate.Name("Project name", req.Name)
	if err != nil {
		return err
	}
	if req.Status == "" {
		req.Status = model.ProjectStatusActive
	}
	if !req.Status.Valid() {
		return apperr.Invalid("Invalid project status")
	}

	project := &model.Project{
		TenantID:    tenantID,
		Name:        name,
		Description: req.Description,
		Status:      req.Status,
		CreatedBy:   id.ID(),
	}

	ctx, cancel := h.writeContext(c)
	defer cancel()

	err = h.inTx(ctx, func(tx *gorm.DB) error {
		if err := h.guard.CheckProjects(tx, tenantID); err != nil {
			return err
		}
		if err := h.projects.WithTx(tx).Create(ctx, project); err != nil {
			return err
		}
		h.record(ctx, tx, c, audit.For(id, tenantID, model.ActionCreateProject, model.EntityProject, project.ID, ""))
		return nil
	})
	if err != nil {
		return err
	}

	prometheus.RecordEntityOperation(model.EntityProject, "create")
	log.Info("Project created", zap.String("project_id", project.ID), zap.String("tenant_id", tenantID))
	return ok(c, http.StatusCreated, "Project created successfully", project)
}

// GetProject returns a project with its task counts
func (h *Handler) GetProject(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.readContext(c)
	defer cancel()

	project, err := h.projects.FindSummary(ctx, repository.ScopeOf(id), c.Param("id"))
	if err != nil {
		return err
	}
	if err := policy.Authorize(id, policy.ProjectRead, policy.Target{TenantID: project.TenantID, OwnerID: project.CreatedBy}); err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", project)
}

// UpdateProject applies the present fields. Only the creator or an admin
// may change a project.
func (h *Handler) UpdateProject(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := caller(c)
	if err != nil {
		return err
	}
	scope := repository.ScopeOf(id)

	var req projectUpdateRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.writeContext(c)
	defer cancel()

	project, err := h.projects.FindByID(ctx, scope, c.Param("id"))
	if err != nil {
		return err
	}
	if err := policy.Authorize(id, policy.ProjectUpdate, policy.Target{TenantID: project.TenantID, OwnerID: project.CreatedBy}); err != nil {
		return err
	}

	upd := repository.ProjectPatch{Description: req.Description}
	if req.Name.Set {
		name, err := validate.Name("Project name", req.Name.Value)
		if err != nil {
			return err
		}
		upd.Name = patch.Value(name)
	}
	if req.Status.Set {
		if !req.Status.Value.Valid() {
			return apperr.Invalid("Invalid project status")
		}
		upd.Status = req.Status
	}

	err = h.inTx(ctx, func(tx *gorm.DB) error {
		if err := h.projects.WithTx(tx).Update(ctx, scope, project.ID, upd); err != nil {
			return err
		}
		h.record(ctx, tx, c, audit.For(id, project.TenantID, model.ActionUpdateProject, model.EntityProject, project.ID, ""))
		return nil
	})
	if err != nil {
		return err
	}

	updated, err := h.projects.FindSummary(ctx, scope, project.ID)
	if err != nil {
		return err
	}

	prometheus.RecordEntityOperation(model.EntityProject, "update")
	log.Info("Project updated", zap.String("project_id", project.ID))
	return ok(c, http.StatusOK, "Project updated successfully", updated)
}

// DeleteProject removes a project and its tasks
func (h *Handler) DeleteProject(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := caller(c)
	if err != nil {
		return err
	}
	scope := repository.ScopeOf(id)

	ctx, cancel := h.writeContext(c)
	defer cancel()

	project, err := h.projects.FindByID(ctx, scope, c.Param("id"))
	if err != nil {
		return err
	}
	if err := policy.Authorize(id, policy.ProjectDelete, policy.Target{TenantID: project.TenantID, OwnerID: project.CreatedBy}); err != nil {
		return err
	}

	err = h.inTx(ctx, func(tx *gorm.DB) error {
		if err := h.projects.WithTx(tx).Delete(ctx, scope, project.ID); err != nil {
			return err
		}
		h.record(ctx, tx, c, audit.For(id, project.TenantID, model.ActionDeleteProject, model.EntityProject, project.ID, ""))
		return nil
	})
	if err != nil {
		return err
	}

	prometheus.RecordEntityOperation(model.EntityProject, "delete")
	log.Info("Project deleted", zap.String("project_id", project.ID))
	return ok(c, http.StatusOK, "Project deleted successfully", nil)
}
