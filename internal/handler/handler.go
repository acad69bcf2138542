// Package handler holds the HTTP endpoints. Each handler loads its target
// through a tenant-scoped repository, asks the policy, checks quotas on
// creation, mutates inside a transaction and appends an audit entry.
package handler

import (
	"context"
	"sort"
	"time"

	"projecthub-service/internal/audit"
	"projecthub-service/internal/auth"
	"projecthub-service/internal/identity"
	"projecthub-service/internal/middleware"
	"projecthub-service/internal/quota"
	"projecthub-service/internal/repository"
	"projecthub-service/pkg/apperr"
	"projecthub-service/pkg/logger"
	"projecthub-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the collaborators of the handlers
type Deps struct {
	DB           *gorm.DB
	Auth         *auth.Service
	Hasher       auth.PasswordHasher
	Guard        *quota.Guard
	Recorder     *audit.Recorder
	QueryTimeout time.Duration
}

// Handler serves the API
type Handler struct {
	db       *gorm.DB
	auth     *auth.Service
	hasher   auth.PasswordHasher
	guard    *quota.Guard
	recorder *audit.Recorder
	timeout  time.Duration

	tenants  *repository.TenantRepository
	users    *repository.UserRepository
	projects *repository.ProjectRepository
	tasks    *repository.TaskRepository
	audits   *repository.AuditLogRepository
}

// New creates the API handler
func New(d Deps) *Handler {
	timeout := d.QueryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handler{
		db:       d.DB,
		auth:     d.Auth,
		hasher:   d.Hasher,
		guard:    d.Guard,
		recorder: d.Recorder,
		timeout:  timeout,
		tenants:  repository.NewTenantRepository(d.DB),
		users:    repository.NewUserRepository(d.DB),
		projects: repository.NewProjectRepository(d.DB),
		tasks:    repository.NewTaskRepository(d.DB),
		audits:   repository.NewAuditLogRepository(d.DB),
	}
}

// Register mounts every route on api. authn guards the private routes.
func (h *Handler) Register(api *echo.Group, authn echo.MiddlewareFunc) {
	api.GET("/health", h.Health)

	api.POST("/auth/register-tenant", h.RegisterTenant)
	api.POST("/auth/login", h.Login)
	api.GET("/auth/me", h.Me, authn)
	api.POST("/auth/logout", h.Logout, authn)

	tenants := api.Group("/tenants", authn)
	tenants.GET("", h.ListTenants)
	tenants.GET("/:id", h.GetTenant)
	tenants.PUT("/:id", h.UpdateTenant)
	tenants.GET("/:id/users", h.ListUsers)
	tenants.POST("/:id/users", h.CreateUser)
	tenants.GET("/:id/audit-logs", h.ListAuditLogs)

	users := api.Group("/users", authn)
	users.PUT("/:id", h.UpdateUser)
	users.DELETE("/:id", h.DeleteUser)

	projects := api.Group("/projects", authn)
	projects.GET("", h.ListProjects)
	projects.POST("", h.CreateProject)
	projects.GET("/:id", h.GetProject)
	projects.PUT("/:id", h.UpdateProject)
	projects.DELETE("/:id", h.DeleteProject)
	projects.GET("/:id/tasks", h.ListTasks)
	projects.POST("/:id/tasks", h.CreateTask)

	tasks := api.Group("/tasks", authn)
	tasks.PATCH("/:id/status", h.UpdateTaskStatus)
	tasks.PUT("/:id", h.UpdateTask)
	tasks.DELETE("/:id", h.DeleteTask)
}

// readContext bounds a read by the query timeout and follows the client
func (h *Handler) readContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.timeout)
}

// writeContext bounds a mutation by the query timeout but ignores client
// cancellation so a disconnect cannot abort a transaction halfway
func (h *Handler) writeContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request().Context()), h.timeout)
}

// inTx runs fn in a transaction and commits when it returns nil
func (h *Handler) inTx(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	defer prometheus.TrackDBOperation("transaction")(time.Now())

	tx := h.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return apperr.Internal("handler.inTx", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			logger.FromContext(ctx).Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return apperr.Internal("handler.inTx", err)
	}
	return nil
}

func (h *Handler) record(ctx context.Context, tx *gorm.DB, c echo.Context, e audit.Entry) {
	if e.IPAddress == "" {
		e.IPAddress = c.RealIP()
	}
	h.recorder.Record(ctx, tx, e)
}

func caller(c echo.Context) (identity.Identity, error) {
	return middleware.CurrentIdentity(c)
}

func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		logger.FromEcho(c).Warn("Failed to parse request", zap.Error(err))
		return apperr.Invalid("Invalid request body")
	}
	return nil
}

func tenantOf(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

// presentFields returns the sorted names whose flag is set
func presentFields(set map[string]bool) []string {
	var out []string
	for name, present := range set {
		if present {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
