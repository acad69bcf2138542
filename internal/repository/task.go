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

// TaskPatch lists the task columns an update may write. AssignedTo and
// DueDate accept null to clear the column.
type TaskPatch struct {
	Title       patch.Field[string]
	Description patch.Field[string]
	Status      patch.Field[model.TaskStatus]
	Priority    patch.Field[model.Priority]
	AssignedTo  patch.Field[string]
	DueDate     patch.Field[time.Time]
}

// TaskFilter narrows a task listing. All set filters must match.
type TaskFilter struct {
	Status     model.TaskStatus
	Priority   model.Priority
	AssignedTo string
	Search     string
	Page       Page
}

// Task ordering: priority rank, then due date with undated tasks last,
// then creation time and id so equal keys keep a stable order.
const (
	orderPriority = "CASE tasks.priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 WHEN 'low' THEN 3 ELSE 4 END"
	orderDueNulls = "CASE WHEN tasks.due_date IS NULL THEN 1 ELSE 0 END"
)

// TaskRepository persists tasks
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a task repository
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

// Create inserts a task
func (r *TaskRepository) Create(ctx context.Context, t *model.Task) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	return translate("task.Create", "Task", r.db.WithContext(ctx).Omit("Assignee").Create(t).Error)
}

// FindByID returns a task visible in scope with its assignee
func (r *TaskRepository) FindByID(ctx context.Context, scope Scope, id string) (*model.Task, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var t model.Task
	q := scope.apply(r.db.WithContext(ctx), "tenant_id")
	if err := q.Preload("Assignee").Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate("task.FindByID", "Task", err)
	}
	return &t, nil
}

// ListByProject returns a page of the tasks of a project in task order
func (r *TaskRepository) ListByProject(ctx context.Context, scope Scope, projectID string, f TaskFilter) ([]model.Task, int64, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	q := scope.apply(r.db.WithContext(ctx).Model(&model.Task{}), "tasks.tenant_id").
		Where("tasks.project_id = ?", projectID)
	if f.Status != "" {
		q = q.Where("tasks.status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("tasks.priority = ?", f.Priority)
	}
	if f.AssignedTo != "" {
		q = q.Where("tasks.assigned_to = ?", f.AssignedTo)
	}
	if f.Search != "" {
		q = q.Where("LOWER(tasks.title) LIKE ?", likePattern(f.Search))
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("task.List", "Task", err)
	}

	var tasks []model.Task
	err := f.Page.apply(q).
		Preload("Assignee").
		Order(orderPriority).
		Order(orderDueNulls).
		Order("tasks.due_date ASC").
		Order("tasks.created_at ASC").
		Order("tasks.id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, 0, translate("task.List", "Task", err)
	}
	return tasks, total, nil
}

// Update writes the fields present in p on a task visible in scope
func (r *TaskRepository) Update(ctx context.Context, scope Scope, id string, p TaskPatch) error {
	b := sq.Update("tasks").Where(sq.Eq{"id": id}).Where(scope.eq("tenant_id"))
	if p.Title.HasValue() {
		b = b.Set("title", p.Title.Value)
	}
	if p.Description.Set {
		b = b.Set("description", p.Description.Value)
	}
	if p.Status.HasValue() {
		b = b.Set("status", string(p.Status.Value))
	}
	if p.Priority.HasValue() {
		b = b.Set("priority", string(p.Priority.Value))
	}
	if p.AssignedTo.Set {
		b = b.Set("assigned_to", p.AssignedTo.Ptr())
	}
	if p.DueDate.Set {
		b = b.Set("due_date", p.DueDate.Ptr())
	}
	return execUpdate(ctx, r.db, "task.Update", "Task", b)
}

// Delete removes a task visible in scope
func (r *TaskRepository) Delete(ctx context.Context, scope Scope, id string) error {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	res := scope.apply(r.db.WithContext(ctx), "tenant_id").Where("id = ?", id).Delete(&model.Task{})
	if res.Error != nil {
		return translate("task.Delete", "Task", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("task.Delete", "Task", gorm.ErrRecordNotFound)
	}
	return nil
}
