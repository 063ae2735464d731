package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
)

const analyticsColumns = `id, project_id, batch_id, total_students, submitted_count, pending_count,
graded_count, submission_stats, score_stats, attendance_stats, final_score_stats,
grade_distribution, top_performers, completion_rate, on_time_rate, last_updated`

// AnalyticsRepository handles the per-project analytics cache.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository constructs the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Upsert writes the recomputed row. project_id is the conflict key, so
// concurrent recomputes converge on a single row with last-writer-wins.
func (r *AnalyticsRepository) Upsert(ctx context.Context, a *models.ProjectAnalytics) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.LastUpdated = time.Now().UTC()
	query := `INSERT INTO project_analytics (id, project_id, batch_id, total_students, submitted_count,
pending_count, graded_count, submission_stats, score_stats, attendance_stats, final_score_stats,
grade_distribution, top_performers, completion_rate, on_time_rate, last_updated)
VALUES (:id, :project_id, :batch_id, :total_students, :submitted_count,
:pending_count, :graded_count, :submission_stats, :score_stats, :attendance_stats, :final_score_stats,
:grade_distribution, :top_performers, :completion_rate, :on_time_rate, :last_updated)
ON CONFLICT (project_id) DO UPDATE SET
batch_id = EXCLUDED.batch_id, total_students = EXCLUDED.total_students,
submitted_count = EXCLUDED.submitted_count, pending_count = EXCLUDED.pending_count,
graded_count = EXCLUDED.graded_count, submission_stats = EXCLUDED.submission_stats,
score_stats = EXCLUDED.score_stats, attendance_stats = EXCLUDED.attendance_stats,
final_score_stats = EXCLUDED.final_score_stats, grade_distribution = EXCLUDED.grade_distribution,
top_performers = EXCLUDED.top_performers, completion_rate = EXCLUDED.completion_rate,
on_time_rate = EXCLUDED.on_time_rate, last_updated = EXCLUDED.last_updated`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("upsert project analytics: %w", err)
	}
	return nil
}

// GetByProject fetches the cached row for one project.
func (r *AnalyticsRepository) GetByProject(ctx context.Context, projectID string) (*models.ProjectAnalytics, error) {
	var a models.ProjectAnalytics
	query := fmt.Sprintf(`SELECT %s FROM project_analytics WHERE project_id = $1`, analyticsColumns)
	if err := r.db.GetContext(ctx, &a, query, projectID); err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteByProject drops the cached row when a project is retired.
func (r *AnalyticsRepository) DeleteByProject(ctx context.Context, projectID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM project_analytics WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("delete project analytics: %w", err)
	}
	return nil
}
