package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
)

const departmentColumns = `id, name, code, description, head_user_id, established_year,
contact_email, contact_phone, location, is_active, created_at, updated_at`

// DepartmentRepository handles persistence for departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs the repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// Create inserts a department. Unique (name) and (code) are store-enforced.
func (r *DepartmentRepository) Create(ctx context.Context, dept *models.Department) error {
	now := time.Now().UTC()
	if dept.ID == "" {
		dept.ID = uuid.NewString()
	}
	dept.CreatedAt = now
	dept.UpdatedAt = now
	query := `INSERT INTO departments (id, name, code, description, head_user_id, established_year,
contact_email, contact_phone, location, is_active, created_at, updated_at)
VALUES (:id, :name, :code, :description, :head_user_id, :established_year,
:contact_email, :contact_phone, :location, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dept); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// GetByID fetches one department.
func (r *DepartmentRepository) GetByID(ctx context.Context, id string) (*models.Department, error) {
	var dept models.Department
	query := fmt.Sprintf(`SELECT %s FROM departments WHERE id = $1`, departmentColumns)
	if err := r.db.GetContext(ctx, &dept, query, id); err != nil {
		return nil, err
	}
	return &dept, nil
}

// List returns all departments ordered by name.
func (r *DepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	query := fmt.Sprintf(`SELECT %s FROM departments ORDER BY name`, departmentColumns)
	var depts []models.Department
	if err := r.db.SelectContext(ctx, &depts, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return depts, nil
}

// Update persists mutable department fields.
func (r *DepartmentRepository) Update(ctx context.Context, dept *models.Department) error {
	dept.UpdatedAt = time.Now().UTC()
	query := `UPDATE departments SET name = :name, code = :code, description = :description,
head_user_id = :head_user_id, established_year = :established_year, contact_email = :contact_email,
contact_phone = :contact_phone, location = :location, is_active = :is_active, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, dept)
	if err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update department %s: no rows", dept.ID)
	}
	return nil
}

// Delete removes a department row. Dependency checks happen in the service.
func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	return nil
}

// CountCourses counts dependent courses for delete refusal.
func (r *DepartmentRepository) CountCourses(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM courses WHERE department_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count department courses: %w", err)
	}
	return count, nil
}

// Count returns the total number of departments.
func (r *DepartmentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM departments`); err != nil {
		return 0, fmt.Errorf("count departments: %w", err)
	}
	return count, nil
}

// Overview joins each department with its dependent counts.
func (r *DepartmentRepository) Overview(ctx context.Context) ([]models.DepartmentOverview, error) {
	query := fmt.Sprintf(`SELECT %s,
(SELECT COUNT(*) FROM courses c WHERE c.department_id = d.id) AS course_count,
(SELECT COUNT(*) FROM batches b JOIN courses c ON c.id = b.course_id WHERE c.department_id = d.id) AS batch_count,
(SELECT COUNT(*) FROM students s WHERE s.department_id = d.id AND s.is_active) AS student_count
FROM departments d ORDER BY d.name`, prefixColumns("d", departmentColumns))
	var rows []models.DepartmentOverview
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("department overview: %w", err)
	}
	return rows, nil
}

// Rollups aggregates per-department dependents for the admin dashboard.
func (r *DepartmentRepository) Rollups(ctx context.Context) ([]models.DepartmentRollup, error) {
	query := `SELECT d.id AS department_id, d.name AS department_name,
(SELECT COUNT(*) FROM courses c WHERE c.department_id = d.id) AS courses,
(SELECT COUNT(*) FROM batches b JOIN courses c ON c.id = b.course_id WHERE c.department_id = d.id) AS batches,
(SELECT COUNT(*) FROM students s WHERE s.department_id = d.id AND s.is_active) AS students
FROM departments d ORDER BY d.name`
	var rows []models.DepartmentRollup
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("department rollups: %w", err)
	}
	return rows, nil
}
