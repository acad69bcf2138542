package repository

import (
	"context"
	"time"

	"projecthub-service/internal/model"
	"projecthub-service/internal/patch"
	"projecthub-service/prometheus"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
)

// ProjectPatch lists the project columns an update may write
type ProjectPatch struct {
	Name        patch.Field[string]
	Description patch.Field[string]
	Status      patch.Field[model.ProjectStatus]
}

// ProjectFilter narrows a project listing
type ProjectFilter struct {
	Status model.ProjectStatus
	Search string
	Page   Page
}

// ProjectRepository persists projects
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a project repository
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ProjectRepository) WithTx(tx *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: tx}
}

// Create inserts a project
func (r *ProjectRepository) Create(ctx context.Context, p *model.Project) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	return translate("project.Create", "Project", r.db.WithContext(ctx).Create(p).Error)
}

// FindByID returns a project visible in scope
func (r *ProjectRepository) FindByID(ctx context.Context, scope Scope, id string) (*model.Project, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var p model.Project
	q := scope.apply(r.db.WithContext(ctx), "tenant_id")
	if err := q.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate("project.FindByID", "Project", err)
	}
	return &p, nil
}

type projectRow struct {
	ID                 string
	TenantID           string
	Name               string
	Description        string
	Status             model.ProjectStatus
	CreatedBy          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CreatorName        string
	TenantName         string
	TaskCount          int64
	CompletedTaskCount int64
}

func (row projectRow) summary() model.ProjectSummary {
	return model.ProjectSummary{
		Project: model.Project{
			ID:          row.ID,
			TenantID:    row.TenantID,
			Name:        row.Name,
			Description: row.Description,
			Status:      row.Status,
			CreatedBy:   row.CreatedBy,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
		},
		CreatorName:        row.CreatorName,
		TenantName:         row.TenantName,
		TaskCount:          row.TaskCount,
		CompletedTaskCount: row.CompletedTaskCount,
	}
}

const projectSummaryColumns = `projects.id, projects.tenant_id, projects.name, projects.description,
	projects.status, projects.created_by, projects.created_at, projects.updated_at,
	COALESCE(users.full_name, '') AS creator_name,
	COALESCE(tenants.name, '') AS tenant_name,
	(SELECT COUNT(*) FROM tasks WHERE tasks.project_id = projects.id) AS task_count,
	(SELECT COUNT(*) FROM tasks WHERE tasks.project_id = projects.id AND tasks.status = 'completed') AS completed_task_count`

func (r *ProjectRepository) summaries(ctx context.Context, scope Scope) *gorm.DB {
	q := r.db.WithContext(ctx).
		Table("projects").
		Joins("LEFT JOIN users ON users.id = projects.created_by").
		Joins("LEFT JOIN tenants ON tenants.id = projects.tenant_id")
	return scope.apply(q, "projects.tenant_id")
}

// FindSummary returns a project with creator name and task counts
func (r *ProjectRepository) FindSummary(ctx context.Context, scope Scope, id string) (*model.ProjectSummary, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var rows []projectRow
	err := r.summaries(ctx, scope).
		Select(projectSummaryColumns).
		Where("projects.id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, translate("project.FindSummary", "Project", err)
	}
	if len(rows) == 0 {
		return nil, translate("project.FindSummary", "Project", gorm.ErrRecordNotFound)
	}
	s := rows[0].summary()
	return &s, nil
}

// List returns a page of projects visible in scope, newest first
func (r *ProjectRepository) List(ctx context.Context, scope Scope, f ProjectFilter) ([]model.ProjectSummary, int64, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	q := r.summaries(ctx, scope)
	if f.Status != "" {
		q = q.Where("projects.status = ?", f.Status)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where("(LOWER(projects.name) LIKE ? OR LOWER(projects.description) LIKE ?)", p, p)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("project.List", "Project", err)
	}

	var rows []projectRow
	err := f.Page.apply(q).
		Select(projectSummaryColumns).
		Order("projects.created_at DESC").
		Order("projects.id").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, translate("project.List", "Project", err)
	}

	out := make([]model.ProjectSummary, len(rows))
	for i, row := range rows {
		out[i] = row.summary()
	}
	return out, total, nil
}

// Update writes the fields present in p on a project visible in scope
func (r *ProjectRepository) Update(ctx context.Context, scope Scope, id string, p ProjectPatch) error {
	b := sq.Update("projects").Where(sq.Eq{"id": id}).Where(scope.eq("tenant_id"))
	if p.Name.HasValue() {
		b = b.Set("name", p.Name.Value)
	}
	if p.Description.Set {
		// null clears the description
		b = b.Set("description", p.Description.Value)
	}
	if p.Status.HasValue() {
		b = b.Set("status", string(p.Status.Value))
	}
	return execUpdate(ctx, r.db, "project.Update", "Project", b)
}

// Delete removes a project visible in scope. Its tasks are removed by the
// foreign key cascade.
func (r *ProjectRepository) Delete(ctx context.Context, scope Scope, id string) error {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	res := scope.apply(r.db.WithContext(ctx), "tenant_id").Where("id = ?", id).Delete(&model.Project{})
	if res.Error != nil {
		return translate("project.Delete", "Project", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("project.Delete", "Project", gorm.ErrRecordNotFound)
	}
	return nil
}
