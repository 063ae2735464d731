package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
)

const submissionColumns = `id, project_id, student_id, batch_id, submitted_date, files, description,
notes, score, feedback, graded_by, graded_date, reviewed_by, reviewed_date, status,
submission_timing, days_from_deadline, attendance_score, final_score, rank, version, previous_id,
is_active, created_at, updated_at`

// Partial unique index over active rows; one live submission per (project, student).
const SubmissionActiveConstraint = "submissions_project_student_active"

// SubmissionRepository handles persistence for project submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a submission. The active-row unique index arbitrates
// concurrent first submissions; callers map the violation.
func (r *SubmissionRepository) Create(ctx context.Context, sub *models.ProjectSubmission) error {
	now := time.Now().UTC()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now
	query := `INSERT INTO submissions (id, project_id, student_id, batch_id, submitted_date, files,
description, notes, score, feedback, graded_by, graded_date, reviewed_by, reviewed_date, status,
submission_timing, days_from_deadline, attendance_score, final_score, rank, version, previous_id,
is_active, created_at, updated_at)
VALUES (:id, :project_id, :student_id, :batch_id, :submitted_date, :files,
:description, :notes, :score, :feedback, :graded_by, :graded_date, :reviewed_by, :reviewed_date, :status,
:submission_timing, :days_from_deadline, :attendance_score, :final_score, :rank, :version, :previous_id,
:is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// GetByID fetches one submission.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.ProjectSubmission, error) {
	var sub models.ProjectSubmission
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = $1`, submissionColumns)
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetActive returns the live submission for (project, student), if any.
func (r *SubmissionRepository) GetActive(ctx context.Context, projectID, studentID string) (*models.ProjectSubmission, error) {
	var sub models.ProjectSubmission
	query := fmt.Sprintf(`SELECT %s FROM submissions
WHERE project_id = $1 AND student_id = $2 AND is_active`, submissionColumns)
	if err := r.db.GetContext(ctx, &sub, query, projectID, studentID); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListActiveByProject returns all live submissions for a project.
func (r *SubmissionRepository) ListActiveByProject(ctx context.Context, projectID string) ([]models.ProjectSubmission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions
WHERE project_id = $1 AND is_active ORDER BY submitted_date`, submissionColumns)
	var subs []models.ProjectSubmission
	if err := r.db.SelectContext(ctx, &subs, query, projectID); err != nil {
		return nil, fmt.Errorf("list project submissions: %w", err)
	}
	return subs, nil
}

// ListByStudent returns a student's live submissions across projects.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ProjectSubmission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions
WHERE student_id = $1 AND is_active ORDER BY submitted_date DESC`, submissionColumns)
	var subs []models.ProjectSubmission
	if err := r.db.SelectContext(ctx, &subs, query, studentID); err != nil {
		return nil, fmt.Errorf("list student submissions: %w", err)
	}
	return subs, nil
}

// Update persists mutable submission fields, grading state included.
func (r *SubmissionRepository) Update(ctx context.Context, sub *models.ProjectSubmission) error {
	sub.UpdatedAt = time.Now().UTC()
	query := `UPDATE submissions SET files = :files, description = :description, notes = :notes,
score = :score, feedback = :feedback, graded_by = :graded_by, graded_date = :graded_date,
reviewed_by = :reviewed_by, reviewed_date = :reviewed_date, status = :status,
submission_timing = :submission_timing, days_from_deadline = :days_from_deadline,
attendance_score = :attendance_score, final_score = :final_score, rank = :rank,
version = :version, previous_id = :previous_id, is_active = :is_active, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, sub)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update submission %s: no rows", sub.ID)
	}
	return nil
}

// Deactivate retires a submission row, typically before inserting its successor.
func (r *SubmissionRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE submissions SET is_active = FALSE, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("deactivate submission %s: no rows", id)
	}
	return nil
}

// DeactivateByProject retires every live submission of a project.
func (r *SubmissionRepository) DeactivateByProject(ctx context.Context, projectID string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE submissions SET is_active = FALSE, updated_at = $2 WHERE project_id = $1 AND is_active`,
		projectID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate project submissions: %w", err)
	}
	return nil
}

// UpdateRanks applies the recomputed rank per submission in one transaction.
func (r *SubmissionRepository) UpdateRanks(ctx context.Context, ranks map[string]int) error {
	if len(ranks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rank update: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback() //nolint:errcheck
		}
	}()
	now := time.Now().UTC()
	for id, rank := range ranks {
		if _, err := tx.ExecContext(ctx,
			`UPDATE submissions SET rank = $2, updated_at = $3 WHERE id = $1`,
			id, rank, now); err != nil {
			return fmt.Errorf("update submission rank: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rank update: %w", err)
	}
	commit = true
	return nil
}
