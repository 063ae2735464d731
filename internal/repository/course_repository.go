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

const courseColumns = `id, name, code, department_id, description, duration_months, duration_hours,
fee_amount, fee_currency, installments_allowed, installments_count, prerequisites, syllabus,
cert_provided, cert_name, cert_authority, level, category, software, is_active,
max_students_per_batch, created_by, created_at, updated_at`

// CourseRepository handles persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts a course. (department_id, code) is unique at the store.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	now := time.Now().UTC()
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	course.CreatedAt = now
	course.UpdatedAt = now
	query := `INSERT INTO courses (id, name, code, department_id, description, duration_months, duration_hours,
fee_amount, fee_currency, installments_allowed, installments_count, prerequisites, syllabus,
cert_provided, cert_name, cert_authority, level, category, software, is_active,
max_students_per_batch, created_by, created_at, updated_at)
VALUES (:id, :name, :code, :department_id, :description, :duration_months, :duration_hours,
:fee_amount, :fee_currency, :installments_allowed, :installments_count, :prerequisites, :syllabus,
:cert_provided, :cert_name, :cert_authority, :level, :category, :software, :is_active,
:max_students_per_batch, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// GetByID fetches one course.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// List returns courses matching the filter.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.DepartmentID != "" {
		where = append(where, fmt.Sprintf("department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM courses WHERE %s ORDER BY name LIMIT %d OFFSET %d`,
		courseColumns, whereClause, size, (page-1)*size)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM courses WHERE %s`, whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// Update persists mutable course fields.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	query := `UPDATE courses SET name = :name, code = :code, department_id = :department_id,
description = :description, duration_months = :duration_months, duration_hours = :duration_hours,
fee_amount = :fee_amount, fee_currency = :fee_currency, installments_allowed = :installments_allowed,
installments_count = :installments_count, prerequisites = :prerequisites, syllabus = :syllabus,
cert_provided = :cert_provided, cert_name = :cert_name, cert_authority = :cert_authority,
level = :level, category = :category, software = :software, is_active = :is_active,
max_students_per_batch = :max_students_per_batch, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update course %s: no rows", course.ID)
	}
	return nil
}

// Delete removes a course row. Dependency checks happen in the service.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// CountBatches counts dependent batches for delete refusal.
func (r *CourseRepository) CountBatches(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM batches WHERE course_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count course batches: %w", err)
	}
	return count, nil
}

// Count returns the total number of courses.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM courses`); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return count, nil
}

// Overview joins a course with its dependent counts.
func (r *CourseRepository) Overview(ctx context.Context, id string) (*models.CourseOverview, error) {
	query := fmt.Sprintf(`SELECT %s,
(SELECT COUNT(*) FROM batches b WHERE b.course_id = c.id) AS batch_count,
(SELECT COUNT(*) FROM students s WHERE s.course_id = c.id AND s.is_active) AS student_count
FROM courses c WHERE c.id = $1`, prefixColumns("c", courseColumns))
	var row models.CourseOverview
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return &row, nil
}
