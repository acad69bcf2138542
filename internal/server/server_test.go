package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"projecthub-service/internal/audit"
	"projecthub-service/internal/auth"
	"projecthub-service/internal/handler"
	"projecthub-service/internal/quota"
	"projecthub-service/internal/repository"
	"projecthub-service/internal/testutil"
	"projecthub-service/pkg/jwtutil"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const password = "password123"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

type pageEnvelope[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Pagination struct {
		CurrentPage int `json:"currentPage"`
		TotalPages  int `json:"totalPages"`
		Limit       int `json:"limit"`
	} `json:"pagination"`
}

type harness struct {
	t    *testing.T
	e    *echo.Echo
	db   *gorm.DB
	auth *auth.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewTestDB(t)
	plans := quota.DefaultPlans()
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "test-key", ExpirationHours: 24})
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	recorder := audit.NewRecorder(repository.NewAuditLogRepository(db))
	authService := auth.NewService(db, hasher, jwt, recorder, plans)

	h := handler.New(handler.Deps{
		DB:       db,
		Auth:     authService,
		Hasher:   hasher,
		Guard:    quota.NewGuard(plans),
		Recorder: recorder,
	})
	e := New(Options{AllowedOrigins: []string{"http://localhost:3000"}, JWT: jwt, Handler: h})
	return &harness{t: t, e: e, db: db, auth: authService}
}

func (h *harness) do(method, path, token string, body interface{}) (int, envelope) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get(echo.HeaderContentType) != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec.Code, env
}

// decode unmarshals the data of a successful response into out
func (h *harness) decode(env envelope, out interface{}) {
	h.t.Helper()
	require.NoError(h.t, json.Unmarshal(env.Data, out))
}

type tenantInfo struct {
	TenantID  string `json:"tenantId"`
	Subdomain string `json:"subdomain"`
	AdminUser struct {
		ID string `json:"id"`
	} `json:"adminUser"`
}

func (h *harness) registerTenant(subdomain, adminEmail string) tenantInfo {
	h.t.Helper()
	status, env := h.do(http.MethodPost, "/api/auth/register-tenant", "", map[string]string{
		"tenantName":    subdomain + " inc",
		"subdomain":     subdomain,
		"adminEmail":    adminEmail,
		"adminPassword": password,
		"adminFullName": "Admin " + subdomain,
	})
	require.Equal(h.t, http.StatusCreated, status, env.Message)
	var info tenantInfo
	h.decode(env, &info)
	return info
}

func (h *harness) login(subdomain, email string) string {
	h.t.Helper()
	status, env := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":           email,
		"password":        password,
		"tenantSubdomain": subdomain,
	})
	require.Equal(h.t, http.StatusOK, status, env.Message)
	var out struct {
		Token string `json:"token"`
	}
	h.decode(env, &out)
	require.NotEmpty(h.t, out.Token)
	return out.Token
}

func (h *harness) loginSuperAdmin() string {
	h.t.Helper()
	require.NoError(h.t, h.auth.EnsureSuperAdmin(context.Background(), "root@hub.test", password, "Root"))
	return h.login("system", "root@hub.test")
}

type userInfo struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	FullName string  `json:"fullName"`
	Role     string  `json:"role"`
	TenantID *string `json:"tenantId"`
	IsActive bool    `json:"isActive"`
}

func (h *harness) createUser(token, tenantID, email, role string) userInfo {
	h.t.Helper()
	status, env := h.do(http.MethodPost, "/api/tenants/"+tenantID+"/users", token, map[string]string{
		"email":    email,
		"password": password,
		"fullName": "User " + email,
		"role":     role,
	})
	require.Equal(h.t, http.StatusCreated, status, env.Message)
	var u userInfo
	h.decode(env, &u)
	return u
}

type projectInfo struct {
	ID                 string `json:"id"`
	TenantID           string `json:"tenantId"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	Status             string `json:"status"`
	CreatedBy          string `json:"createdBy"`
	CreatorName        string `json:"creatorName"`
	TaskCount          int64  `json:"taskCount"`
	CompletedTaskCount int64  `json:"completedTaskCount"`
}

func (h *harness) createProject(token, name string) projectInfo {
	h.t.Helper()
	status, env := h.do(http.MethodPost, "/api/projects", token, map[string]string{"name": name})
	require.Equal(h.t, http.StatusCreated, status, env.Message)
	var p projectInfo
	h.decode(env, &p)
	return p
}

type taskInfo struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"projectId"`
	TenantID   string  `json:"tenantId"`
	Title      string  `json:"title"`
	Status     string  `json:"status"`
	Priority   string  `json:"priority"`
	AssignedTo *string `json:"assignedTo"`
	DueDate    *string `json:"dueDate"`
}

func (h *harness) createTask(token, projectID string, body map[string]interface{}) taskInfo {
	h.t.Helper()
	status, env := h.do(http.MethodPost, "/api/projects/"+projectID+"/tasks", token, body)
	require.Equal(h.t, http.StatusCreated, status, env.Message)
	var task taskInfo
	h.decode(env, &task)
	return task
}
