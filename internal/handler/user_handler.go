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

type userUpdateRequest struct {
	FullName patch.Field[string]     `json:"fullName"`
	Email    patch.Field[string]     `json:"email"`
	Password patch.Field[string]     `json:"password"`
	Role     patch.Field[model.Role] `json:"role"`
	IsActive patch.Field[bool]       `json:"isActive"`
}

func (r userUpdateRequest) fields() []string {
	return presentFields(map[string]bool{
		policy.FieldFullName: r.FullName.Set,
		policy.FieldEmail:    r.Email.Set,
		policy.FieldPassword: r.Password.Set,
		policy.FieldRole:     r.Role.Set,
		policy.FieldIsActive: r.IsActive.Set,
	})
}

// ListUsers returns a page of a tenant's users
func (h *Handler) ListUsers(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	tenantID := c.Param("id")
	if err := policy.Authorize(id, policy.UserList, policy.Target{TenantID: tenantID}); err != nil {
		return err
	}

	filter := repository.UserFilter{
		Role:   model.Role(c.QueryParam("role")),
		Search: c.QueryParam("search"),
		Page:   pageParam(c, 50),
	}
	if filter.Role != "" && !filter.Role.IsTenantRole() {
		return apperr.Invalid("Invalid role filter")
	}

	ctx, cancel := h.readContext(c)
	defer cancel()

	if _, err := h.tenants.FindByID(ctx, tenantID); err != nil {
		return err
	}
	users, total, err := h.users.List(ctx, tenantID, filter)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", newPage(users, total, filter.Page))
}

// CreateUser adds a user to a tenant within its user quota
func (h *Handler) CreateUser(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := caller(c)
	if err != nil {
		return err
	}
	tenantID := c.Param("id")
	if err := policy.Authorize(id, policy.UserCreate, policy.Target{TenantID: tenantID}); err != nil {
		return err
	}

	var req struct {
		Email    string     `json:"email"`
		Password string     `json:"password"`
		FullName string     `json:"fullName"`
		Role     model.Role `json:"role"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}

	email, err := validate.Email(req.Email)
	if err != nil {
		return err
	}
	if err := validate.Password(req.Password); err != nil {
		return err
	}
	fullName, err := validate.Name("Full name", req.FullName)
	if err != nil {
		return err
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}
	if !req.Role.IsTenantRole() {
		return apperr.Invalid("Role must be tenant_admin or user")
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		return apperr.Internal("handler.CreateUser", err)
	}
	user := &model.User{
		TenantID:     &tenantID,
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         req.Role,
		IsActive:     true,
	}

	ctx, cancel := h.writeContext(c)
	defer cancel()

	err = h.inTx(ctx, func(tx *gorm.DB) error {
		if err := h.guard.CheckUsers(tx, tenantID); err != nil {
			return err
		}
		users := h.users.WithTx(tx)
		taken, err := users.EmailTaken(ctx, tenantID, email, "")
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("Email already exists in this tenant")
		}
		if err := users.Create(ctx, user); err != nil {
			return err
		}
		h.record(ctx, tx, c, audit.For(id, tenantID, model.ActionCreateUser, model.EntityUser, user.ID, ""))
		return nil
	})
	if err != nil {
		return err
	}

	prometheus.RecordEntityOperation(model.EntityUser, "create")
	log.Info("User created", zap.String("user_id", user.ID), zap.String("tenant_id", tenantID))
	return ok(c, http.StatusCreated, "User created successfully", user)
}

// UpdateUser applies the fields the caller may write. Users outside the
// caller's tenant are reported as not found.
func (h *Handler) UpdateUser(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := caller(c)
	if err != nil {
		return err
	}
	userID := c.Param("id")
	scope := repository.ScopeOf(id)

	var req userUpdateRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.writeContext(c)
	defer cancel()

	target, err := h.users.FindByID(ctx, scope, userID)
	if err != nil {
		return err
	}
	tenantID := tenantOf(target.TenantID)
	if err := policy.AuthorizeFields(id, policy.UserUpdate, policy.Target{TenantID: tenantID, OwnerID: target.ID}, req.fields()); err != nil {
		return err
	}

	var upd repository.UserPatch
	if req.FullName.Set {
		name, err := validate.Name("Full name", req.FullName.Value)
		if err != nil {
			return err
		}
		upd.FullName = patch.Value(name)
	}
	if req.Email.Set {
		email, err := validate.Email(req.Email.Value)
		if err != nil {
			return err
		}
		upd.Email = patch.Value(email)
	}
	if req.Password.Set {
		if err := validate.Password(req.Password.Value); err != nil {
			return err
		}
		hash, err := h.hasher.Hash(req.Password.Value)
		if err != nil {
			return apperr.Internal("handler.UpdateUser", err)
		}
		upd.PasswordHash = patch.Value(hash)
	}
	if req.Role.Set {
		if target.TenantID == nil || !req.Role.Value.IsTenantRole() {
			return apperr.Invalid("Role must be tenant_admin or user")
		}
		upd.Role = req.Role
	}
	if req.IsActive.Set {
		if req.IsActive.Null {
			return apperr.Invalid("isActive cannot be null")
		}
		upd.IsActive = req.IsActive
	}

	err = h.inTx(ctx, func(tx *gorm.DB) error {
		users := h.users.WithTx(tx)
		if upd.Email.Set && target.TenantID != nil {
			taken, err := users.EmailTaken(ctx, tenantID, upd.Email.Value, target.ID)
			if err != nil {
				return err
			}
			if taken {
				return apperr.Conflict("Email already exists in this tenant")
			}
		}
		if err := users.Update(ctx, scope, target.ID, upd); err != nil {
			return err
		}
		h.record(ctx, tx, c, audit.For(id, tenantID, model.ActionUpdateUser, model.EntityUser, target.ID, ""))
		return nil
	})
	if err != nil {
		return err
	}

	user, err := h.users.FindByID(ctx, scope, target.ID)
	if err != nil {
		return err
	}

	prometheus.RecordEntityOperation(model.EntityUser, "update")
	log.Info("User updated", zap.String("user_id", user.ID), zap.Strings("fields", req.fields()))
	return ok(c, http.StatusOK, "User updated successfully", user)
}

// DeleteUser removes a user. Nobody may delete their own account.
func (h *Handler) DeleteUser(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := caller(c)
	if err != nil {
		return err
	}
	userID := c.Param("id")
	scope := repository.ScopeOf(id)

	ctx, cancel := h.writeContext(c)
	defer cancel()

	target, err := h.users.FindByID(ctx, scope, userID)
	if err != nil {
		return err
	}
	tenantID := tenantOf(target.TenantID)
	if err := policy.Authorize(id, policy.UserDelete, policy.Target{TenantID: tenantID, OwnerID: target.ID}); err != nil {
		return err
	}

	err = h.inTx(ctx, func(tx *gorm.DB) error {
		if err := h.users.WithTx(tx).Delete(ctx, scope, target.ID); err != nil {
			return err
		}
		h.record(ctx, tx, c, audit.For(id, tenantID, model.ActionDeleteUser, model.EntityUser, target.ID, ""))
		return nil
	})
	if err != nil {
		return err
	}

	prometheus.RecordEntityOperation(model.EntityUser, "delete")
	log.Info("User deleted", zap.String("user_id", target.ID))
	return ok(c, http.StatusOK, "User deleted successfully", nil)
}
