package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	status, env := h.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	status, _ = h.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestPrivateRoutesRequireToken(t *testing.T) {
	h := newHarness(t)

	status, env := h.do(http.MethodGet, "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	status, _ = h.do(http.MethodGet, "/api/projects", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)
	info := h.registerTenant("acme", "admin@acme.test")
	assert.Equal(t, "acme", info.Subdomain)

	t.Run("duplicate subdomain", func(t *testing.T) {
		status, env := h.do(http.MethodPost, "/api/auth/register-tenant", "", map[string]string{
			"tenantName":    "Other",
			"subdomain":     "acme",
			"adminEmail":    "other@acme.test",
			"adminPassword": password,
			"adminFullName": "Other",
		})
		assert.Equal(t, http.StatusConflict, status)
		assert.False(t, env.Success)
	})

	t.Run("wrong password", func(t *testing.T) {
		status, env := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":           "admin@acme.test",
			"password":        "wrong-password",
			"tenantSubdomain": "acme",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "InvalidCredentials", env.Code)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		status, env := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":           "admin@acme.test",
			"password":        password,
			"tenantSubdomain": "nope",
		})
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "TenantNotFound", env.Code)
	})

	token := h.login("acme", "admin@acme.test")

	status, env := h.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	var me struct {
		Role   string `json:"role"`
		Tenant struct {
			SubscriptionPlan string `json:"subscriptionPlan"`
			MaxUsers         int    `json:"maxUsers"`
			MaxProjects      int    `json:"maxProjects"`
		} `json:"tenant"`
	}
	h.decode(env, &me)
	assert.Equal(t, "tenant_admin", me.Role)
	assert.Equal(t, "free", me.Tenant.SubscriptionPlan)
	assert.Equal(t, 5, me.Tenant.MaxUsers)
	assert.Equal(t, 3, me.Tenant.MaxProjects)

	status, _ = h.do(http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestTaskLifecycle(t *testing.T) {
	h := newHarness(t)
	a := h.registerTenant("acme", "admin@acme.test")
	b := h.registerTenant("globex", "admin@globex.test")
	adminA := h.login("acme", "admin@acme.test")

	u := h.createUser(adminA, a.TenantID, "u@acme.test", "user")
	project := h.createProject(adminA, "Launch")
	task := h.createTask(adminA, project.ID, map[string]interface{}{
		"title":      "Write docs",
		"priority":   "high",
		"assignedTo": u.ID,
		"dueDate":    "2026-01-15",
	})
	assert.Equal(t, a.TenantID, task.TenantID)
	assert.Equal(t, "todo", task.Status)
	require.NotNil(t, task.AssignedTo)
	assert.Equal(t, u.ID, *task.AssignedTo)

	userToken := h.login("acme", "u@acme.test")

	status, env := h.do(http.MethodPatch, "/api/tasks/"+task.ID+"/status", userToken, map[string]string{"status": "in_progress"})
	require.Equal(t, http.StatusOK, status, env.Message)
	var updated taskInfo
	h.decode(env, &updated)
	assert.Equal(t, "in_progress", updated.Status)

	status, env = h.do(http.MethodPut, "/api/tasks/"+task.ID, userToken, map[string]string{"assignedTo": b.AdminUser.ID})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)

	status, env = h.do(http.MethodPut, "/api/tasks/"+task.ID, userToken, map[string]interface{}{"assignedTo": nil, "dueDate": nil})
	require.Equal(t, http.StatusOK, status, env.Message)
	h.decode(env, &updated)
	assert.Nil(t, updated.AssignedTo)
	assert.Nil(t, updated.DueDate)
	assert.Equal(t, "Write docs", updated.Title)

	status, env = h.do(http.MethodGet, "/api/projects/"+project.ID, userToken, nil)
	require.Equal(t, http.StatusOK, status)
	var summary projectInfo
	h.decode(env, &summary)
	assert.Equal(t, int64(1), summary.TaskCount)
	assert.Equal(t, "Admin acme", summary.CreatorName)

	status, _ = h.do(http.MethodDelete, "/api/tasks/"+task.ID, userToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = h.do(http.MethodDelete, "/api/tasks/"+task.ID, userToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTaskListOrdering(t *testing.T) {
	h := newHarness(t)
	h.registerTenant("acme", "admin@acme.test")
	admin := h.login("acme", "admin@acme.test")
	project := h.createProject(admin, "Launch")

	h.createTask(admin, project.ID, map[string]interface{}{"title": "low", "priority": "low"})
	h.createTask(admin, project.ID, map[string]interface{}{"title": "high-undated", "priority": "high"})
	h.createTask(admin, project.ID, map[string]interface{}{"title": "medium", "priority": "medium"})
	h.createTask(admin, project.ID, map[string]interface{}{"title": "high-dated", "priority": "high", "dueDate": "2026-03-01"})

	status, env := h.do(http.MethodGet, "/api/projects/"+project.ID+"/tasks", admin, nil)
	require.Equal(t, http.StatusOK, status)
	var page pageEnvelope[taskInfo]
	h.decode(env, &page)

	var titles []string
	for _, task := range page.Items {
		titles = append(titles, task.Title)
	}
	assert.Equal(t, []string{"high-dated", "high-undated", "medium", "low"}, titles)
	assert.Equal(t, int64(4), page.Total)

	status, env = h.do(http.MethodGet, "/api/projects/"+project.ID+"/tasks?priority=high&limit=1", admin, nil)
	require.Equal(t, http.StatusOK, status)
	h.decode(env, &page)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
}

func TestUserQuota(t *testing.T) {
	h := newHarness(t)
	a := h.registerTenant("acme", "admin@acme.test")
	admin := h.login("acme", "admin@acme.test")

	// the admin is the first of five seats
	for i := 0; i < 4; i++ {
		h.createUser(admin, a.TenantID, "user"+string(rune('a'+i))+"@acme.test", "user")
	}

	status, env := h.do(http.MethodPost, "/api/tenants/"+a.TenantID+"/users", admin, map[string]string{
		"email":    "sixth@acme.test",
		"password": password,
		"fullName": "Sixth",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "QuotaExceeded", env.Code)

	status, env = h.do(http.MethodGet, "/api/tenants/"+a.TenantID+"/users", admin, nil)
	require.Equal(t, http.StatusOK, status)
	var page pageEnvelope[userInfo]
	h.decode(env, &page)
	assert.Equal(t, int64(5), page.Total)
}

func TestProjectQuota(t *testing.T) {
	h := newHarness(t)
	h.registerTenant("acme", "admin@acme.test")
	admin := h.login("acme", "admin@acme.test")

	for _, name := range []string{"one", "two", "three"} {
		h.createProject(admin, name)
	}
	status, env := h.do(http.MethodPost, "/api/projects", admin, map[string]string{"name": "four"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "QuotaExceeded", env.Code)
}

func TestDuplicateEmailInTenant(t *testing.T) {
	h := newHarness(t)
	a := h.registerTenant("acme", "admin@acme.test")
	b := h.registerTenant("globex", "admin@globex.test")
	adminA := h.login("acme", "admin@acme.test")
	adminB := h.login("globex", "admin@globex.test")

	h.createUser(adminA, a.TenantID, "same@mail.test", "user")
	h.createUser(adminB, b.TenantID, "same@mail.test", "user")

	status, _ := h.do(http.MethodPost, "/api/tenants/"+a.TenantID+"/users", adminA, map[string]string{
		"email":    "SAME@mail.test",
		"password": password,
		"fullName": "Again",
	})
	assert.Equal(t, http.StatusConflict, status)
}

func TestPlanChangeResetsLimits(t *testing.T) {
	h := newHarness(t)
	a := h.registerTenant("acme", "admin@acme.test")
	root := h.loginSuperAdmin()

	status, env := h.do(http.MethodPut, "/api/tenants/"+a.TenantID, root, map[string]interface{}{
		"subscriptionPlan": "pro",
		"maxUsers":         999,
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	var tenant struct {
		SubscriptionPlan string `json:"subscriptionPlan"`
		MaxUsers         int    `json:"maxUsers"`
		MaxProjects      int    `json:"maxProjects"`
	}
	h.decode(env, &tenant)
	assert.Equal(t, "pro", tenant.SubscriptionPlan)
	assert.Equal(t, 25, tenant.MaxUsers)
	assert.Equal(t, 15, tenant.MaxProjects)

	status, env = h.do(http.MethodGet, "/api/tenants?plan=pro", root, nil)
	require.Equal(t, http.StatusOK, status)
	var page pageEnvelope[struct {
		ID         string `json:"id"`
		TotalUsers int64  `json:"totalUsers"`
	}]
	h.decode(env, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, a.TenantID, page.Items[0].ID)
	assert.Equal(t, int64(1), page.Items[0].TotalUsers)
}

func TestTenantAdminFieldRules(t *testing.T) {
	h := newHarness(t)
	a := h.registerTenant("acme", "admin@acme.test")
	admin := h.login("acme", "admin@acme.test")

	status, env := h.do(http.MethodPut, "/api/tenants/"+a.TenantID, admin, map[string]interface{}{"maxUsers": 500})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FieldNotPermitted", env.Code)

	status, env = h.do(http.MethodPut, "/api/tenants/"+a.TenantID, admin, map[string]string{"name": "Acme Corp"})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, _ = h.do(http.MethodGet, "/api/tenants", admin, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = h.do(http.MethodGet, "/api/tenants/"+a.TenantID+"/audit-logs", admin, nil)
	require.Equal(t, http.StatusOK, status)
	var logs pageEnvelope[struct {
		Action string `json:"action"`
	}]
	h.decode(env, &logs)
	var actions []string
	for _, l := range logs.Items {
		actions = append(actions, l.Action)
	}
	assert.Contains(t, actions, "CREATE_TENANT")
	assert.Contains(t, actions, "UPDATE_TENANT")
	assert.Contains(t, actions, "LOGIN")
}

func TestUserFieldRules(t *testing.T) {
	h := newHarness(t)
	a := h.registerTenant("acme", "admin@acme.test")
	admin := h.login("acme", "admin@acme.test")
	u := h.createUser(admin, a.TenantID, "u@acme.test", "user")
	v := h.createUser(admin, a.TenantID, "v@acme.test", "user")
	userToken := h.login("acme", "u@acme.test")

	status, env := h.do(http.MethodPut, "/api/users/"+u.ID, userToken, map[string]string{"fullName": "Renamed"})
	require.Equal(t, http.StatusOK, status, env.Message)
	var got userInfo
	h.decode(env, &got)
	assert.Equal(t, "Renamed", got.FullName)

	status, env = h.do(http.MethodPut, "/api/users/"+u.ID, userToken, map[string]string{"role": "tenant_admin"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FieldNotPermitted", env.Code)

	status, _ = h.do(http.MethodPut, "/api/users/"+v.ID, userToken, map[string]string{"fullName": "Hijack"})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = h.do(http.MethodPut, "/api/users/"+u.ID, admin, map[string]interface{}{"isActive": false})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":           "u@acme.test",
		"password":        password,
		"tenantSubdomain": "acme",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "AccountSuspended", env.Code)
}

func TestSelfDeleteForbidden(t *testing.T) {
	h := newHarness(t)
	a := h.registerTenant("acme", "admin@acme.test")
	admin := h.login("acme", "admin@acme.test")

	status, env := h.do(http.MethodDelete, "/api/users/"+a.AdminUser.ID, admin, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "SelfDeleteForbidden", env.Code)

	root := h.loginSuperAdmin()
	status, env = h.do(http.MethodGet, "/api/auth/me", root, nil)
	require.Equal(t, http.StatusOK, status)
	var me userInfo
	h.decode(env, &me)

	status, env = h.do(http.MethodDelete, "/api/users/"+me.ID, root, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "SelfDeleteForbidden", env.Code)

	u := h.createUser(admin, a.TenantID, "u@acme.test", "user")
	status, _ = h.do(http.MethodDelete, "/api/users/"+u.ID, admin, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCrossTenantIsolation(t *testing.T) {
	h := newHarness(t)
	a := h.registerTenant("acme", "admin@acme.test")
	h.registerTenant("globex", "admin@globex.test")
	adminA := h.login("acme", "admin@acme.test")
	adminB := h.login("globex", "admin@globex.test")

	project := h.createProject(adminA, "Secret")
	task := h.createTask(adminA, project.ID, map[string]interface{}{"title": "hidden"})
	u := h.createUser(adminA, a.TenantID, "u@acme.test", "user")

	cases := []struct {
		method string
		path   string
		body   interface{}
		want   int
	}{
		{http.MethodGet, "/api/projects/" + project.ID, nil, http.StatusNotFound},
		{http.MethodPut, "/api/projects/" + project.ID, map[string]string{"name": "mine"}, http.StatusNotFound},
		{http.MethodDelete, "/api/projects/" + project.ID, nil, http.StatusNotFound},
		{http.MethodGet, "/api/projects/" + project.ID + "/tasks", nil, http.StatusNotFound},
		{http.MethodPut, "/api/tasks/" + task.ID, map[string]string{"title": "mine"}, http.StatusNotFound},
		{http.MethodDelete, "/api/tasks/" + task.ID, nil, http.StatusNotFound},
		{http.MethodPut, "/api/users/" + u.ID, map[string]string{"fullName": "mine"}, http.StatusNotFound},
		{http.MethodDelete, "/api/users/" + u.ID, nil, http.StatusNotFound},
		{http.MethodGet, "/api/tenants/" + a.TenantID, nil, http.StatusForbidden},
		{http.MethodGet, "/api/tenants/" + a.TenantID + "/users", nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+strings.TrimPrefix(tc.path, "/api/"), func(t *testing.T) {
			status, env := h.do(tc.method, tc.path, adminB, tc.body)
			assert.Equal(t, tc.want, status)
			assert.False(t, env.Success)
		})
	}

	status, env := h.do(http.MethodGet, "/api/projects", adminB, nil)
	require.Equal(t, http.StatusOK, status)
	var page pageEnvelope[projectInfo]
	h.decode(env, &page)
	assert.Empty(t, page.Items)

	status, env = h.do(http.MethodGet, "/api/projects/"+project.ID, adminA, nil)
	require.Equal(t, http.StatusOK, status)
	var still projectInfo
	h.decode(env, &still)
	assert.Equal(t, "Secret", still.Name)
}

func TestProjectUpdateRules(t *testing.T) {
	h := newHarness(t)
	a := h.registerTenant("acme", "admin@acme.test")
	admin := h.login("acme", "admin@acme.test")
	h.createUser(admin, a.TenantID, "v@acme.test", "user")
	member := h.login("acme", "v@acme.test")
	project := h.createProject(admin, "Launch")

	status, env := h.do(http.MethodPut, "/api/projects/"+project.ID, member, map[string]string{"name": "Mine"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Unauthorized", env.Code)

	// members may still work on tasks of any project in their tenant
	task := h.createTask(member, project.ID, map[string]interface{}{"title": "by member"})
	status, _ = h.do(http.MethodPut, "/api/tasks/"+task.ID, member, map[string]string{"priority": "low"})
	assert.Equal(t, http.StatusOK, status)

	body := map[string]string{"name": "Launch v2", "status": "completed"}
	for i := 0; i < 2; i++ {
		status, env = h.do(http.MethodPut, "/api/projects/"+project.ID, admin, body)
		require.Equal(t, http.StatusOK, status, env.Message)
		var p projectInfo
		h.decode(env, &p)
		assert.Equal(t, "Launch v2", p.Name)
		assert.Equal(t, "completed", p.Status)
	}

	status, _ = h.do(http.MethodDelete, "/api/projects/"+project.ID, admin, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = h.do(http.MethodPut, "/api/tasks/"+task.ID, member, map[string]string{"priority": "high"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSuperAdminProjects(t *testing.T) {
	h := newHarness(t)
	a := h.registerTenant("acme", "admin@acme.test")
	h.registerTenant("globex", "admin@globex.test")
	root := h.loginSuperAdmin()

	status, _ := h.do(http.MethodPost, "/api/projects", root, map[string]string{"name": "Nowhere"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env := h.do(http.MethodPost, "/api/projects", root, map[string]string{"name": "Ops", "targetTenantId": a.TenantID})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var p projectInfo
	h.decode(env, &p)
	assert.Equal(t, a.TenantID, p.TenantID)

	status, env = h.do(http.MethodGet, "/api/projects?tenantId="+a.TenantID, root, nil)
	require.Equal(t, http.StatusOK, status)
	var page pageEnvelope[projectInfo]
	h.decode(env, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Ops", page.Items[0].Name)

	status, _ = h.do(http.MethodGet, "/api/tenants/"+a.TenantID, root, nil)
	assert.Equal(t, http.StatusOK, status)
}
