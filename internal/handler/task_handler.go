package handler

import (
	"context"
	"net/http"
	"time"

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

type taskUpdateRequest struct {
	Title       patch.Field[string]           `json:"title"`
	Description patch.Field[string]           `json:"description"`
	Status      patch.Field[model.TaskStatus] `json:"status"`
	Priority    patch.Field[model.Priority]   `json:"priority"`
	AssignedTo  patch.Field[string]           `json:"assignedTo"`
	DueDate     patch.Field[string]           `json:"dueDate"`
}

// checkAssignee fails with a validation error unless userID is a user of
// tenantID
func (h *Handler) checkAssignee(ctx context.Context, tenantID, userID string) error {
	_, err := h.users.FindByID(ctx, repository.TenantScope(tenantID), userID)
	if apperr.Is(err, apperr.ENotFound) {
		return apperr.Invalid("Assigned user must belong to the same tenant")
	}
	return err
}

// loadTaskProject returns the project named in the path if the caller can see it
func (h *Handler) loadTaskProject(ctx context.Context, c echo.Context, id identity.Identity, op policy.Operation) (*model.Project, error) {
	project, err := h.projects.FindByID(ctx, repository.ScopeOf(id), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(id, op, policy.Target{TenantID: project.TenantID, OwnerID: project.CreatedBy}); err != nil {
		return nil, err
	}
	return project, nil
}

// ListTasks returns a page of a project's tasks by priority and due date
func (h *Handler) ListTasks(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}

	filter := repository.TaskFilter{
		Status:     model.TaskStatus(c.QueryParam("status")),
		Priority:   model.Priority(c.QueryParam("priority")),
		AssignedTo: c.QueryParam("assignedTo"),
		Search:     c.QueryParam("search"),
		Page:       pageParam(c, 50),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return apperr.Invalid("Invalid status filter")
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return apperr.Invalid("Invalid priority filter")
	}

	ctx, cancel := h.readContext(c)
	defer cancel()

	project, err := h.loadTaskProject(ctx, c, id, policy.TaskList)
	if err != nil {
		return err
	}
	tasks, total, err := h.tasks.ListByProject(ctx, repository.ScopeOf(id), project.ID, filter)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", newPage(tasks, total, filter.Page))
}

// CreateTask adds a task to a project. The task inherits the project's tenant.
func (h *Handler) CreateTask(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := caller(c)
	if err != nil {
		return err
	}

	var req struct {
		Title       string           `json:"title"`
		Description string           `json:"description"`
		Status      model.TaskStatus `json:"status"`
		Priority    model.Priority   `json:"priority"`
		AssignedTo  *string          `json:"assignedTo"`
		DueDate     *string          `json:"dueDate"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}

	title, err := validate.Name("Task title", req.Title)
	if err != nil {
		return err
	}
	if req.Status == "" {
		req.Status = model.TaskStatusTodo
	}
	if !req.Status.Valid() {
		return apperr.Invalid("Invalid task status")
	}
	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}
	if !req.Priority.Valid() {
		return apperr.Invalid("Invalid task priority")
	}
	var due *time.Time
	if req.DueDate != nil && *req.DueDate != "" {
		d, err := validate.Date(*req.DueDate)
		if err != nil {
			return err
		}
		due = &d
	}
	if req.AssignedTo != nil && *req.AssignedTo == "" {
		req.AssignedTo = nil
	}

	ctx, cancel := h.writeContext(c)
	defer cancel()

	project, err := h.loadTaskProject(ctx, c, id, policy.TaskCreate)
	if err != nil {
		return err
	}
	if req.AssignedTo != nil {
		if err := h.checkAssignee(ctx, project.TenantID, *req.AssignedTo); err != nil {
			return err
		}
	}

	task := &model.Task{
		ProjectID:   project.ID,
		TenantID:    project.TenantID,
		Title:       title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
		DueDate:     due,
	}

	err = h.inTx(ctx, func(tx *gorm.DB) error {
		if err := h.tasks.WithTx(tx).Create(ctx, task); err != nil {
			return err
		}
		h.record(ctx, tx, c, audit.For(id, project.TenantID, model.ActionCreateTask, model.EntityTask, task.ID, ""))
		return nil
	})
	if err != nil {
		return err
	}

	created, err := h.tasks.FindByID(ctx, repository.ScopeOf(id), task.ID)
	if err != nil {
		return err
	}

	prometheus.RecordEntityOperation(model.EntityTask, "create")
	log.Info("Task created", zap.String("task_id", task.ID), zap.String("project_id", project.ID))
	return ok(c, http.StatusCreated, "Task created successfully", created)
}

// UpdateTaskStatus changes only the status of a task
func (h *Handler) UpdateTaskStatus(c echo.Context) error {
	var req struct {
		Status model.TaskStatus `json:"status"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if !req.Status.Valid() {
		return apperr.Invalid("Invalid task status")
	}
	return h.applyTaskPatch(c, policy.TaskStatus, repository.TaskPatch{Status: patch.Value(req.Status)}, "Task status updated successfully")
}

// UpdateTask applies the present fields. assignedTo and dueDate accept null.
func (h *Handler) UpdateTask(c echo.Context) error {
	var req taskUpdateRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	upd := repository.TaskPatch{Description: req.Description}
	if req.Title.Set {
		title, err := validate.Name("Task title", req.Title.Value)
		if err != nil {
			return err
		}
		upd.Title = patch.Value(title)
	}
	if req.Status.Set {
		if !req.Status.Value.Valid() {
			return apperr.Invalid("Invalid task status")
		}
		upd.Status = req.Status
	}
	if req.Priority.Set {
		if !req.Priority.Value.Valid() {
			return apperr.Invalid("Invalid task priority")
		}
		upd.Priority = req.Priority
	}
	if req.AssignedTo.Set {
		if req.AssignedTo.Null || req.AssignedTo.Value == "" {
			upd.AssignedTo = patch.Null[string]()
		} else {
			upd.AssignedTo = req.AssignedTo
		}
	}
	if req.DueDate.Set {
		if req.DueDate.Null || req.DueDate.Value == "" {
			upd.DueDate = patch.Null[time.Time]()
		} else {
			d, err := validate.Date(req.DueDate.Value)
			if err != nil {
				return err
			}
			upd.DueDate = patch.Value(d)
		}
	}
	return h.applyTaskPatch(c, policy.TaskUpdate, upd, "Task updated successfully")
}

func (h *Handler) applyTaskPatch(c echo.Context, op policy.Operation, upd repository.TaskPatch, message string) error {
	log := logger.FromEcho(c)

	id, err := caller(c)
	if err != nil {
		return err
	}
	scope := repository.ScopeOf(id)

	ctx, cancel := h.writeContext(c)
	defer cancel()

	task, err := h.tasks.FindByID(ctx, scope, c.Param("id"))
	if err != nil {
		return err
	}
	if err := policy.Authorize(id, op, policy.Target{TenantID: task.TenantID}); err != nil {
		return err
	}
	if upd.AssignedTo.HasValue() {
		if err := h.checkAssignee(ctx, task.TenantID, upd.AssignedTo.Value); err != nil {
			return err
		}
	}

	err = h.inTx(ctx, func(tx *gorm.DB) error {
		if err := h.tasks.WithTx(tx).Update(ctx, scope, task.ID, upd); err != nil {
			return err
		}
		h.record(ctx, tx, c, audit.For(id, task.TenantID, model.ActionUpdateTask, model.EntityTask, task.ID, ""))
		return nil
	})
	if err != nil {
		return err
	}

	updated, err := h.tasks.FindByID(ctx, scope, task.ID)
	if err != nil {
		return err
	}

	prometheus.RecordEntityOperation(model.EntityTask, "update")
	log.Info("Task updated", zap.String("task_id", task.ID))
	return ok(c, http.StatusOK, message, updated)
}

// DeleteTask removes a task
func (h *Handler) DeleteTask(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := caller(c)
	if err != nil {
		return err
	}
	scope := repository.ScopeOf(id)

	ctx, cancel := h.writeContext(c)
	defer cancel()

	task, err := h.tasks.FindByID(ctx, scope, c.Param("id"))
	if err != nil {
		return err
	}
	if err := policy.Authorize(id, policy.TaskDelete, policy.Target{TenantID: task.TenantID}); err != nil {
		return err
	}

	err = h.inTx(ctx, func(tx *gorm.DB) error {
		if err := h.tasks.WithTx(tx).Delete(ctx, scope, task.ID); err != nil {
			return err
		}
		h.record(ctx, tx, c, audit.For(id, task.TenantID, model.ActionDeleteTask, model.EntityTask, task.ID, ""))
		return nil
	})
	if err != nil {
		return err
	}

	prometheus.RecordEntityOperation(model.EntityTask, "delete")
	log.Info("Task deleted", zap.String("task_id", task.ID))
	return ok(c, http.StatusOK, "Task deleted successfully", nil)
}
