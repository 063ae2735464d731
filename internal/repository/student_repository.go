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

const studentColumns = `id, name, student_id, roll_no, email, phone, address, date_of_birth, gender,
guardian_name, guardian_phone, emergency_contact, qualification, admission_date, department_id,
course_id, batch_id, fees_paid, total_fees, payment_status, is_active, created_at, updated_at`

// StudentRepository handles persistence for students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create inserts a student. student_id, email and (batch_id, roll_no)
// uniqueness are store-enforced; callers map the violation.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.CreatedAt = now
	student.UpdatedAt = now
	query := `INSERT INTO students (id, name, student_id, roll_no, email, phone, address, date_of_birth,
gender, guardian_name, guardian_phone, emergency_contact, qualification, admission_date,
department_id, course_id, batch_id, fees_paid, total_fees, payment_status, is_active, created_at, updated_at)
VALUES (:id, :name, :student_id, :roll_no, :email, :phone, :address, :date_of_birth,
:gender, :guardian_name, :guardian_phone, :emergency_contact, :qualification, :admission_date,
:department_id, :course_id, :batch_id, :fees_paid, :total_fees, :payment_status, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// GetByID fetches one student.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// List returns students matching the filter.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.DepartmentID != "" {
		where = append(where, fmt.Sprintf("department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.CourseID != "" {
		where = append(where, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.BatchID != "" {
		where = append(where, fmt.Sprintf("batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR student_id ILIKE $%d)", len(args)+1, len(args)+1))
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

	query := fmt.Sprintf(`SELECT %s FROM students WHERE %s ORDER BY name LIMIT %d OFFSET %d`,
		studentColumns, whereClause, size, (page-1)*size)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM students WHERE %s`, whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListByBatch returns the batch roster ordered by roll number.
func (r *StudentRepository) ListByBatch(ctx context.Context, batchID string) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE batch_id = $1 AND is_active ORDER BY roll_no`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, batchID); err != nil {
		return nil, fmt.Errorf("list batch students: %w", err)
	}
	return students, nil
}

// RollNumbers returns every roll number currently used in the batch.
func (r *StudentRepository) RollNumbers(ctx context.Context, batchID string) ([]string, error) {
	var rolls []string
	if err := r.db.SelectContext(ctx, &rolls, `SELECT roll_no FROM students WHERE batch_id = $1`, batchID); err != nil {
		return nil, fmt.Errorf("list batch roll numbers: %w", err)
	}
	return rolls, nil
}

// Update persists mutable student fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	query := `UPDATE students SET name = :name, student_id = :student_id, roll_no = :roll_no,
email = :email, phone = :phone, address = :address, date_of_birth = :date_of_birth, gender = :gender,
guardian_name = :guardian_name, guardian_phone = :guardian_phone, emergency_contact = :emergency_contact,
qualification = :qualification, admission_date = :admission_date, department_id = :department_id,
course_id = :course_id, batch_id = :batch_id, fees_paid = :fees_paid, total_fees = :total_fees,
payment_status = :payment_status, is_active = :is_active, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update student %s: no rows", student.ID)
	}
	return nil
}

// DeleteCascade removes a student together with their attendance records.
func (r *StudentRepository) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student delete: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback() //nolint:errcheck
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE student_id = $1`, id); err != nil {
		return fmt.Errorf("delete student attendance: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit student delete: %w", err)
	}
	commit = true
	return nil
}

// CountActive counts active students across the centre.
func (r *StudentRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM students WHERE is_active`); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return count, nil
}

// Overview returns students joined with their hierarchy parents' names.
func (r *StudentRepository) Overview(ctx context.Context, filter models.StudentFilter) ([]models.StudentOverview, error) {
	where := []string{"s.is_active"}
	args := []interface{}{}
	if filter.DepartmentID != "" {
		where = append(where, fmt.Sprintf("s.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.BatchID != "" {
		where = append(where, fmt.Sprintf("s.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	query := fmt.Sprintf(`SELECT %s, b.name AS batch_name, c.name AS course_name, d.name AS department_name
FROM students s
JOIN batches b ON b.id = s.batch_id
JOIN courses c ON c.id = s.course_id
JOIN departments d ON d.id = s.department_id
WHERE %s ORDER BY s.name`, prefixColumns("s", studentColumns), strings.Join(where, " AND "))
	var rows []models.StudentOverview
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("student overview: %w", err)
	}
	return rows, nil
}
