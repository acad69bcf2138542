package handler

import (
	"net/http"

	"projecthub-service/internal/auth"
	"projecthub-service/internal/model"
	"projecthub-service/internal/repository"
	"projecthub-service/pkg/apperr"
	"projecthub-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type loginUser struct {
	ID       string           `json:"id"`
	Email    string           `json:"email"`
	FullName string           `json:"fullName"`
	Role     model.Role       `json:"role"`
	TenantID *string          `json:"tenantId"`
	Tenant   *auth.TenantView `json:"tenant"`
}

type loginResponse struct {
	User      loginUser `json:"user"`
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expiresIn"`
}

// RegisterTenant creates a tenant and its first admin
func (h *Handler) RegisterTenant(c echo.Context) error {
	var req struct {
		TenantName    string `json:"tenantName"`
		Subdomain     string `json:"subdomain"`
		AdminEmail    string `json:"adminEmail"`
		AdminPassword string `json:"adminPassword"`
		AdminFullName string `json:"adminFullName"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.writeContext(c)
	defer cancel()

	tenant, admin, err := h.auth.RegisterTenant(ctx, auth.Registration{
		TenantName:    req.TenantName,
		Subdomain:     req.Subdomain,
		AdminEmail:    req.AdminEmail,
		AdminPassword: req.AdminPassword,
		AdminFullName: req.AdminFullName,
		IPAddress:     c.RealIP(),
	})
	if err != nil {
		return err
	}

	return ok(c, http.StatusCreated, "Tenant registered successfully", echo.Map{
		"tenantId":  tenant.ID,
		"subdomain": tenant.Subdomain,
		"adminUser": admin,
	})
}

// Login verifies credentials and returns a token
func (h *Handler) Login(c echo.Context) error {
	var req struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		TenantSubdomain string `json:"tenantSubdomain"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.writeContext(c)
	defer cancel()

	res, err := h.auth.Authenticate(ctx, auth.Credentials{
		Email:           req.Email,
		Password:        req.Password,
		TenantSubdomain: req.TenantSubdomain,
	}, c.RealIP())
	if err != nil {
		return err
	}

	return ok(c, http.StatusOK, "Login successful", loginResponse{
		User: loginUser{
			ID:       res.User.ID,
			Email:    res.User.Email,
			FullName: res.User.FullName,
			Role:     res.User.Role,
			TenantID: res.User.TenantID,
			Tenant:   res.Tenant,
		},
		Token:     res.Token,
		ExpiresIn: res.ExpiresIn,
	})
}

type meTenant struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Subdomain        string             `json:"subdomain"`
	Status           model.TenantStatus `json:"status"`
	SubscriptionPlan model.Plan         `json:"subscriptionPlan"`
	MaxUsers         int                `json:"maxUsers"`
	MaxProjects      int                `json:"maxProjects"`
}

// Me returns the caller with its tenant
func (h *Handler) Me(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.readContext(c)
	defer cancel()

	user, err := h.users.FindByID(ctx, repository.Scope{All: true}, id.ID())
	if apperr.Is(err, apperr.ENotFound) {
		return apperr.Unauthenticated("User no longer exists")
	}
	if err != nil {
		return err
	}

	var tenant *meTenant
	if user.TenantID != nil {
		t, err := h.tenants.FindByID(ctx, *user.TenantID)
		if err != nil {
			return err
		}
		tenant = &meTenant{
			ID:               t.ID,
			Name:             t.Name,
			Subdomain:        t.Subdomain,
			Status:           t.Status,
			SubscriptionPlan: t.SubscriptionPlan,
			MaxUsers:         t.MaxUsers,
			MaxProjects:      t.MaxProjects,
		}
	}

	return ok(c, http.StatusOK, "", echo.Map{
		"id":       user.ID,
		"email":    user.Email,
		"fullName": user.FullName,
		"role":     user.Role,
		"isActive": user.IsActive,
		"tenantId": user.TenantID,
		"tenant":   tenant,
	})
}

// Logout is stateless; the client discards its token
func (h *Handler) Logout(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	logger.FromEcho(c).Info("User logged out", zap.String("user_id", id.ID()))
	return ok(c, http.StatusOK, "Logged out successfully", nil)
}
