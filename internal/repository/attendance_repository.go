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

const attendanceColumns = `id, student_id, batch_id, date, status, remarks, marked_by, created_at, updated_at`

// AttendanceRepository handles persistence for the attendance ledger.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert inserts or updates the record for (student, day). The unique
// (student_id, date) key closes the concurrent double-mark window; the
// returned created flag distinguishes insert from update.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, bool, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := `INSERT INTO attendance (id, student_id, batch_id, date, status, remarks, marked_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (student_id, date)
DO UPDATE SET status = EXCLUDED.status, remarks = EXCLUDED.remarks,
marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
RETURNING id, student_id, batch_id, date, status, remarks, marked_by, created_at, updated_at`
	var stored models.Attendance
	if err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.StudentID, record.BatchID, record.Date, record.Status,
		record.Remarks, record.MarkedBy, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, false, fmt.Errorf("upsert attendance: %w", err)
	}
	created := stored.ID == record.ID
	return &stored, created, nil
}

// GetForStudentDate returns the record for one (student, day), if any.
func (r *AttendanceRepository) GetForStudentDate(ctx context.Context, studentID string, date time.Time) (*models.Attendance, error) {
	var record models.Attendance
	query := fmt.Sprintf(`SELECT %s FROM attendance WHERE student_id = $1 AND date = $2`, attendanceColumns)
	if err := r.db.GetContext(ctx, &record, query, studentID, date); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByBatchDate returns all records for a batch on one day.
func (r *AttendanceRepository) ListByBatchDate(ctx context.Context, batchID string, date time.Time) ([]models.Attendance, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance WHERE batch_id = $1 AND date = $2`, attendanceColumns)
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, batchID, date); err != nil {
		return nil, fmt.Errorf("list batch attendance: %w", err)
	}
	return records, nil
}

// StudentHistory returns a student's records sorted descending by date.
func (r *AttendanceRepository) StudentHistory(ctx context.Context, studentID string, from, to *time.Time) ([]models.Attendance, error) {
	where := []string{"student_id = $1"}
	args := []interface{}{studentID}
	if from != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf(`SELECT %s FROM attendance WHERE %s ORDER BY date DESC`,
		attendanceColumns, strings.Join(where, " AND "))
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("student attendance history: %w", err)
	}
	return records, nil
}

// RangeCounts aggregates status counts and distinct marked dates for a batch.
func (r *AttendanceRepository) RangeCounts(ctx context.Context, batchID string, from, to *time.Time) (present, absent, late, uniqueDates int, err error) {
	where := []string{"batch_id = $1"}
	args := []interface{}{batchID}
	if from != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf(`SELECT
COUNT(*) FILTER (WHERE status = 'present') AS present,
COUNT(*) FILTER (WHERE status = 'absent') AS absent,
COUNT(*) FILTER (WHERE status = 'late') AS late,
COUNT(DISTINCT date) AS unique_dates
FROM attendance WHERE %s`, strings.Join(where, " AND "))
	row := struct {
		Present     int `db:"present"`
		Absent      int `db:"absent"`
		Late        int `db:"late"`
		UniqueDates int `db:"unique_dates"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("attendance range counts: %w", err)
	}
	return row.Present, row.Absent, row.Late, row.UniqueDates, nil
}

// DailyTrend rolls records up per day over [from, to], optionally scoped to a batch.
func (r *AttendanceRepository) DailyTrend(ctx context.Context, batchID string, from, to time.Time) ([]models.AttendanceTrendPoint, error) {
	where := []string{"date >= $1", "date <= $2"}
	args := []interface{}{from, to}
	if batchID != "" {
		where = append(where, fmt.Sprintf("batch_id = $%d", len(args)+1))
		args = append(args, batchID)
	}
	query := fmt.Sprintf(`SELECT date,
COUNT(*) FILTER (WHERE status = 'present') AS present,
COUNT(*) FILTER (WHERE status = 'absent') AS absent,
COUNT(*) FILTER (WHERE status = 'late') AS late
FROM attendance WHERE %s GROUP BY date ORDER BY date`, strings.Join(where, " AND "))
	var points []models.AttendanceTrendPoint
	if err := r.db.SelectContext(ctx, &points, query, args...); err != nil {
		return nil, fmt.Errorf("attendance daily trend: %w", err)
	}
	for i := range points {
		total := points[i].Present + points[i].Absent + points[i].Late
		if total > 0 {
			points[i].Percentage = float64(points[i].Present) / float64(total) * 100
		}
	}
	return points, nil
}

// DaySummary aggregates the centre-wide histogram for one day.
func (r *AttendanceRepository) DaySummary(ctx context.Context, date time.Time) (*models.TodayAttendanceSummary, error) {
	query := `SELECT
COUNT(*) FILTER (WHERE status = 'present') AS present,
COUNT(*) FILTER (WHERE status = 'absent') AS absent,
COUNT(*) FILTER (WHERE status = 'late') AS late
FROM attendance WHERE date = $1`
	row := struct {
		Present int `db:"present"`
		Absent  int `db:"absent"`
		Late    int `db:"late"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, date); err != nil {
		return nil, fmt.Errorf("attendance day summary: %w", err)
	}
	return &models.TodayAttendanceSummary{
		Date:    date,
		Present: row.Present,
		Absent:  row.Absent,
		Late:    row.Late,
		Total:   row.Present + row.Absent + row.Late,
	}, nil
}

// StudentAggregate returns per-status record counts for one student in a batch.
func (r *AttendanceRepository) StudentAggregate(ctx context.Context, studentID, batchID string) (present, absent, late int, err error) {
	query := `SELECT
COUNT(*) FILTER (WHERE status = 'present') AS present,
COUNT(*) FILTER (WHERE status = 'absent') AS absent,
COUNT(*) FILTER (WHERE status = 'late') AS late
FROM attendance WHERE student_id = $1 AND batch_id = $2`
	row := struct {
		Present int `db:"present"`
		Absent  int `db:"absent"`
		Late    int `db:"late"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, studentID, batchID); err != nil {
		return 0, 0, 0, fmt.Errorf("student attendance aggregate: %w", err)
	}
	return row.Present, row.Absent, row.Late, nil
}

// RangeCountsByDepartment aggregates counts across a department's batches.
func (r *AttendanceRepository) RangeCountsByDepartment(ctx context.Context, departmentID string, from, to time.Time) (present, absent, late int, err error) {
	query := `SELECT
COUNT(*) FILTER (WHERE a.status = 'present') AS present,
COUNT(*) FILTER (WHERE a.status = 'absent') AS absent,
COUNT(*) FILTER (WHERE a.status = 'late') AS late
FROM attendance a
JOIN batches b ON b.id = a.batch_id
JOIN courses c ON c.id = b.course_id
WHERE a.date >= $1 AND a.date <= $2 AND ($3 = '' OR c.department_id = $3)`
	row := struct {
		Present int `db:"present"`
		Absent  int `db:"absent"`
		Late    int `db:"late"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, from, to, departmentID); err != nil {
		return 0, 0, 0, fmt.Errorf("department attendance counts: %w", err)
	}
	return row.Present, row.Absent, row.Late, nil
}
