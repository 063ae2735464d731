package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
)

const projectColumns = `id, title, description, batch_id, course_id, assigned_date, deadline_date,
requirements, deliverables, max_score, weight_project, weight_attendance, weight_timing, status,
assigned_by, instructions, resources, completed_date, completed_by, completion_notes, is_active,
created_at, updated_at`

// ProjectRepository handles persistence for batch projects.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs the repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a project.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	now := time.Now().UTC()
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	project.CreatedAt = now
	project.UpdatedAt = now
	query := `INSERT INTO projects (id, title, description, batch_id, course_id, assigned_date,
deadline_date, requirements, deliverables, max_score, weight_project, weight_attendance,
weight_timing, status, assigned_by, instructions, resources, completed_date, completed_by,
completion_notes, is_active, created_at, updated_at)
VALUES (:id, :title, :description, :batch_id, :course_id, :assigned_date,
:deadline_date, :requirements, :deliverables, :max_score, :weight_project, :weight_attendance,
:weight_timing, :status, :assigned_by, :instructions, :resources, :completed_date, :completed_by,
:completion_notes, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// GetByID fetches one project.
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1`, projectColumns)
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetActiveByBatch returns the live project for a batch, if any.
func (r *ProjectRepository) GetActiveByBatch(ctx context.Context, batchID string) (*models.Project, error) {
	var project models.Project
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE batch_id = $1 AND is_active ORDER BY created_at DESC LIMIT 1`, projectColumns)
	if err := r.db.GetContext(ctx, &project, query, batchID); err != nil {
		return nil, err
	}
	return &project, nil
}

// List returns projects, newest first, optionally scoped to a batch or status.
func (r *ProjectRepository) List(ctx context.Context, batchID string, status *models.ProjectStatus) ([]models.Project, error) {
	where := []string{"is_active"}
	args := []interface{}{}
	if batchID != "" {
		where = append(where, fmt.Sprintf("batch_id = $%d", len(args)+1))
		args = append(args, batchID)
	}
	if status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *status)
	}
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE %s ORDER BY created_at DESC`,
		projectColumns, strings.Join(where, " AND "))
	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Update persists mutable project fields.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now().UTC()
	query := `UPDATE projects SET title = :title, description = :description,
deadline_date = :deadline_date, requirements = :requirements, deliverables = :deliverables,
max_score = :max_score, weight_project = :weight_project, weight_attendance = :weight_attendance,
weight_timing = :weight_timing, status = :status, instructions = :instructions,
resources = :resources, completed_date = :completed_date, completed_by = :completed_by,
completion_notes = :completion_notes, is_active = :is_active, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, project)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update project %s: no rows", project.ID)
	}
	return nil
}

// Deactivate soft-deletes a project.
func (r *ProjectRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET is_active = FALSE, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("deactivate project %s: no rows", id)
	}
	return nil
}

// CountByStatus counts live projects, optionally in one status.
func (r *ProjectRepository) CountByStatus(ctx context.Context, status models.ProjectStatus) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM projects WHERE is_active AND ($1 = '' OR status = $1)`
	if err := r.db.GetContext(ctx, &count, query, string(status)); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return count, nil
}
