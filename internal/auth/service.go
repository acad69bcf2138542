// Package auth verifies credentials, issues tokens and registers tenants.
package auth

import (
	"context"
	"errors"
	"strings"

	"projecthub-service/internal/audit"
	"projecthub-service/internal/identity"
	"projecthub-service/internal/model"
	"projecthub-service/internal/quota"
	"projecthub-service/internal/repository"
	"projecthub-service/internal/validate"
	"projecthub-service/pkg/apperr"
	"projecthub-service/pkg/jwtutil"
	"projecthub-service/pkg/logger"
	"projecthub-service/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Credentials is a login attempt. TenantSubdomain "system" selects the
// super admin account.
type Credentials struct {
	Email           string
	Password        string
	TenantSubdomain string
}

// TenantView is the tenant projection returned with a login
type TenantView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
}

// LoginResult is a successful authentication
type LoginResult struct {
	User      *model.User
	Tenant    *TenantView
	Token     string
	ExpiresIn int64
}

// Registration creates a tenant together with its first admin
type Registration struct {
	TenantName    string
	Subdomain     string
	AdminEmail    string
	AdminPassword string
	AdminFullName string
	IPAddress     string
}

// Service authenticates callers and registers tenants
type Service struct {
	db       *gorm.DB
	tenants  *repository.TenantRepository
	users    *repository.UserRepository
	hasher   PasswordHasher
	jwt      *jwtutil.JWTUtil
	recorder *audit.Recorder
	plans    quota.PlanTable
}

// NewService creates the auth service
func NewService(db *gorm.DB, hasher PasswordHasher, jwt *jwtutil.JWTUtil, recorder *audit.Recorder, plans quota.PlanTable) *Service {
	return &Service{
		db:       db,
		tenants:  repository.NewTenantRepository(db),
		users:    repository.NewUserRepository(db),
		hasher:   hasher,
		jwt:      jwt,
		recorder: recorder,
		plans:    plans,
	}
}

var errNoFreePlan = errors.New("plan table has no free plan")

func invalidCredentials() error {
	return &apperr.Error{Code: apperr.EUnauthenticated, Reason: apperr.ReasonInvalidCredentials, Msg: "Invalid credentials"}
}

// Authenticate verifies creds and issues a token
func (s *Service) Authenticate(ctx context.Context, creds Credentials, ip string) (*LoginResult, error) {
	log := logger.FromContext(ctx)

	email := strings.ToLower(strings.TrimSpace(creds.Email))
	selector := strings.ToLower(strings.TrimSpace(creds.TenantSubdomain))
	if email == "" || creds.Password == "" || selector == "" {
		prometheus.RecordAuthError("invalid_request")
		return nil, apperr.Invalid("Email, password and tenant subdomain are required")
	}

	var (
		user   *model.User
		tenant *model.Tenant
		err    error
	)
	if selector == validate.ReservedSubdomain {
		user, err = s.users.FindSuperAdminByEmail(ctx, email)
	} else {
		tenant, err = s.tenants.FindBySubdomain(ctx, selector)
		if apperr.Is(err, apperr.ENotFound) {
			log.Warn("Login for unknown tenant", zap.String("subdomain", selector))
			prometheus.RecordAuthError("tenant_not_found")
			prometheus.RecordLogin(false)
			return nil, &apperr.Error{Code: apperr.ENotFound, Reason: apperr.ReasonTenantNotFound, Msg: "Tenant not found"}
		}
		if err != nil {
			return nil, err
		}
		if tenant.Status != model.TenantStatusActive {
			log.Warn("Login for inactive tenant", zap.String("tenant_id", tenant.ID), zap.String("status", string(tenant.Status)))
			prometheus.RecordAuthError("tenant_inactive")
			prometheus.RecordLogin(false)
			return nil, apperr.Forbidden(apperr.ReasonTenantInactive, "Tenant is not active")
		}
		user, err = s.users.FindByEmail(ctx, tenant.ID, email)
	}
	if apperr.Is(err, apperr.ENotFound) {
		log.Warn("Login for unknown user", zap.String("email", email))
		prometheus.RecordAuthError("user_not_found")
		prometheus.RecordLogin(false)
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		log.Warn("Login for suspended account", zap.String("user_id", user.ID))
		prometheus.RecordAuthError("account_suspended")
		prometheus.RecordLogin(false)
		return nil, apperr.Forbidden(apperr.ReasonAccountSuspended, "Account is suspended")
	}

	if err := s.hasher.Compare(user.PasswordHash, creds.Password); err != nil {
		log.Warn("Invalid password", zap.String("user_id", user.ID))
		prometheus.RecordAuthError("invalid_password")
		prometheus.RecordLogin(false)
		return nil, invalidCredentials()
	}

	token, err := s.jwt.GenerateToken(user.ID, user.TenantID, string(user.Role))
	if err != nil {
		prometheus.RecordAuthError("token_generation_failed")
		return nil, apperr.Internal("auth.Authenticate", err)
	}

	result := &LoginResult{
		User:      user,
		Token:     token,
		ExpiresIn: int64(s.jwt.TTL().Seconds()),
	}
	tenantID := ""
	if tenant != nil {
		tenantID = tenant.ID
		result.Tenant = &TenantView{ID: tenant.ID, Name: tenant.Name, Subdomain: tenant.Subdomain}
	}

	caller, err := identity.New(user.ID, user.TenantID, string(user.Role))
	if err != nil {
		// stored row has an impossible role/tenant combination
		return nil, apperr.Internal("auth.Authenticate", err)
	}
	s.recorder.Record(ctx, nil, audit.For(caller, tenantID, model.ActionLogin, model.EntityUser, user.ID, ip))

	prometheus.RecordLogin(true)
	log.Info("User logged in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)), zap.String("tenant_id", tenantID))
	return result, nil
}

// RegisterTenant creates a tenant on the free plan and its first
// tenant_admin in one transaction
func (s *Service) RegisterTenant(ctx context.Context, reg Registration) (*model.Tenant, *model.User, error) {
	log := logger.FromContext(ctx)

	name, err := validate.Name("Tenant name", reg.TenantName)
	if err != nil {
		return nil, nil, err
	}
	subdomain, err := validate.Subdomain(reg.Subdomain)
	if err != nil {
		return nil, nil, err
	}
	email, err := validate.Email(reg.AdminEmail)
	if err != nil {
		return nil, nil, err
	}
	if err := validate.Password(reg.AdminPassword); err != nil {
		return nil, nil, err
	}
	fullName, err := validate.Name("Full name", reg.AdminFullName)
	if err != nil {
		return nil, nil, err
	}

	limits, ok := s.plans.Lookup(model.PlanFree)
	if !ok {
		return nil, nil, apperr.Internal("auth.RegisterTenant", errNoFreePlan)
	}

	hash, err := s.hasher.Hash(reg.AdminPassword)
	if err != nil {
		return nil, nil, apperr.Internal("auth.RegisterTenant", err)
	}

	tenant := &model.Tenant{
		Name:             name,
		Subdomain:        subdomain,
		Status:           model.TenantStatusActive,
		SubscriptionPlan: model.PlanFree,
		MaxUsers:         limits.MaxUsers,
		MaxProjects:      limits.MaxProjects,
	}
	admin := &model.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         model.RoleTenantAdmin,
		IsActive:     true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenants := s.tenants.WithTx(tx)
		taken, err := tenants.SubdomainTaken(ctx, subdomain)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("Subdomain already taken")
		}
		if err := tenants.Create(ctx, tenant); err != nil {
			return err
		}

		admin.TenantID = &tenant.ID
		if err := s.users.WithTx(tx).Create(ctx, admin); err != nil {
			return err
		}

		caller := identity.Member{UserID: admin.ID, TenantID: tenant.ID, MemberRole: admin.Role}
		s.recorder.Record(ctx, tx, audit.For(caller, tenant.ID, model.ActionCreateTenant, model.EntityTenant, tenant.ID, reg.IPAddress))
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.EConflict) {
			log.Warn("Tenant registration conflict", zap.String("subdomain", subdomain))
			prometheus.RecordAuthError("subdomain_taken")
			return nil, nil, apperr.Conflict("Subdomain already taken")
		}
		return nil, nil, err
	}

	prometheus.RecordRegistration()
	log.Info("Tenant registered", zap.String("tenant_id", tenant.ID), zap.String("subdomain", subdomain))
	return tenant, admin, nil
}

// EnsureSuperAdmin creates the super admin account when no account with
// email exists yet. It is a no-op when email or password is empty.
func (s *Service) EnsureSuperAdmin(ctx context.Context, email, password, fullName string) error {
	if email == "" || password == "" {
		return nil
	}
	email, err := validate.Email(email)
	if err != nil {
		return err
	}

	_, err = s.users.FindSuperAdminByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !apperr.Is(err, apperr.ENotFound) {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return apperr.Internal("auth.EnsureSuperAdmin", err)
	}
	if fullName == "" {
		fullName = "System Administrator"
	}
	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         model.RoleSuperAdmin,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Super admin created", zap.String("user_id", user.ID))
	return nil
}
