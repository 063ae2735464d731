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

const batchColumns = `id, name, course_id, academic_year, section, timing, start_date, end_date,
max_students, created_by, is_archived, is_finished, created_at, updated_at`

// BatchRepository handles persistence for batches.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs the repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a batch.
func (r *BatchRepository) Create(ctx context.Context, batch *models.Batch) error {
	now := time.Now().UTC()
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	batch.CreatedAt = now
	batch.UpdatedAt = now
	query := `INSERT INTO batches (id, name, course_id, academic_year, section, timing, start_date,
end_date, max_students, created_by, is_archived, is_finished, created_at, updated_at)
VALUES (:id, :name, :course_id, :academic_year, :section, :timing, :start_date,
:end_date, :max_students, :created_by, :is_archived, :is_finished, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// GetByID fetches one batch.
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*models.Batch, error) {
	var batch models.Batch
	query := fmt.Sprintf(`SELECT %s FROM batches WHERE id = $1`, batchColumns)
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// List returns batches matching the filter.
func (r *BatchRepository) List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error) {
	base := `FROM batches b`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.DepartmentID != "" {
		base += ` JOIN courses c ON c.id = b.course_id`
		where = append(where, fmt.Sprintf("c.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.CourseID != "" {
		where = append(where, fmt.Sprintf("b.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.CreatedBy != "" {
		where = append(where, fmt.Sprintf("b.created_by = $%d", len(args)+1))
		args = append(args, filter.CreatedBy)
	}
	if filter.Archived != nil {
		where = append(where, fmt.Sprintf("b.is_archived = $%d", len(args)+1))
		args = append(args, *filter.Archived)
	}
	if filter.Finished != nil {
		where = append(where, fmt.Sprintf("b.is_finished = $%d", len(args)+1))
		args = append(args, *filter.Finished)
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

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY b.start_date DESC LIMIT %d OFFSET %d`,
		prefixColumns("b", batchColumns), base, whereClause, size, (page-1)*size)
	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) %s WHERE %s`, base, whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}
	return batches, total, nil
}

// Update persists mutable batch fields.
func (r *BatchRepository) Update(ctx context.Context, batch *models.Batch) error {
	batch.UpdatedAt = time.Now().UTC()
	query := `UPDATE batches SET name = :name, course_id = :course_id, academic_year = :academic_year,
section = :section, timing = :timing, start_date = :start_date, end_date = :end_date,
max_students = :max_students, is_archived = :is_archived, is_finished = :is_finished,
updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, batch)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update batch %s: no rows", batch.ID)
	}
	return nil
}

// DeleteCascade removes a batch together with its students and their
// attendance in one transaction.
func (r *BatchRepository) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch delete: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback() //nolint:errcheck
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE batch_id = $1`, id); err != nil {
		return fmt.Errorf("delete batch attendance: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM students WHERE batch_id = $1`, id); err != nil {
		return fmt.Errorf("delete batch students: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch delete: %w", err)
	}
	commit = true
	return nil
}

// CountStudents counts active students currently in the batch.
func (r *BatchRepository) CountStudents(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM students WHERE batch_id = $1 AND is_active`, id); err != nil {
		return 0, fmt.Errorf("count batch students: %w", err)
	}
	return count, nil
}

// Count returns totals for all and unfinished batches.
func (r *BatchRepository) Count(ctx context.Context, activeOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM batches`
	if activeOnly {
		query += ` WHERE NOT is_finished AND NOT is_archived`
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count batches: %w", err)
	}
	return count, nil
}

// Overview joins a batch with its student count and course name.
func (r *BatchRepository) Overview(ctx context.Context, id string) (*models.BatchOverview, error) {
	query := fmt.Sprintf(`SELECT %s, c.name AS course_name,
(SELECT COUNT(*) FROM students s WHERE s.batch_id = b.id AND s.is_active) AS student_count
FROM batches b JOIN courses c ON c.id = b.course_id WHERE b.id = $1`, prefixColumns("b", batchColumns))
	var row models.BatchOverview
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return &row, nil
}
