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

const bookingColumns = `id, pc_id, date, time_slot, booked_for, student_id, student_name,
teacher_name, batch_id, purpose, notes, status, booked_by, created_at, updated_at`

// Partial unique index names backing the two exclusivity invariants.
const (
	BookingPCSlotConstraint      = "bookings_pc_date_slot"
	BookingStudentSlotConstraint = "bookings_student_date_slot"
)

// BookingRepository handles persistence for lab bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a booking. The partial unique indexes over non-cancelled rows
// are the final arbiter under concurrency; a violation surfaces as a pq error
// the service maps to CONFLICT.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	now := time.Now().UTC()
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	booking.CreatedAt = now
	booking.UpdatedAt = now
	query := `INSERT INTO bookings (id, pc_id, date, time_slot, booked_for, student_id, student_name,
teacher_name, batch_id, purpose, notes, status, booked_by, created_at, updated_at)
VALUES (:id, :pc_id, :date, :time_slot, :booked_for, :student_id, :student_name,
:teacher_name, :batch_id, :purpose, :notes, :status, :booked_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// GetByID fetches one booking.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// List returns bookings matching the filter, cancelled rows excluded.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	where := []string{"status <> 'cancelled'"}
	args := []interface{}{}
	if filter.Date != nil {
		where = append(where, fmt.Sprintf("date = $%d", len(args)+1))
		args = append(args, *filter.Date)
	}
	if filter.TimeSlot != nil {
		where = append(where, fmt.Sprintf("time_slot = $%d", len(args)+1))
		args = append(args, *filter.TimeSlot)
	}
	if filter.PCID != "" {
		where = append(where, fmt.Sprintf("pc_id = $%d", len(args)+1))
		args = append(args, filter.PCID)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.BatchID != "" {
		where = append(where, fmt.Sprintf("batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE %s ORDER BY date, time_slot`,
		bookingColumns, strings.Join(where, " AND "))
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// HasPCConflict reports a live booking of the PC in the slot.
func (r *BookingRepository) HasPCConflict(ctx context.Context, pcID string, date time.Time, slot models.TimeSlot) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM bookings
WHERE pc_id = $1 AND date = $2 AND time_slot = $3 AND status <> 'cancelled')`
	if err := r.db.GetContext(ctx, &exists, query, pcID, date, slot); err != nil {
		return false, fmt.Errorf("check pc conflict: %w", err)
	}
	return exists, nil
}

// HasStudentConflict reports a live booking of the student in the slot.
func (r *BookingRepository) HasStudentConflict(ctx context.Context, studentID string, date time.Time, slot models.TimeSlot) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM bookings
WHERE student_id = $1 AND date = $2 AND time_slot = $3 AND status <> 'cancelled')`
	if err := r.db.GetContext(ctx, &exists, query, studentID, date, slot); err != nil {
		return false, fmt.Errorf("check student conflict: %w", err)
	}
	return exists, nil
}

// UpdateStatus flips one booking's lifecycle state.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status models.BookingStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update booking %s: no rows", id)
	}
	return nil
}

// DeleteBulk physically removes bookings matching the compound filter and
// returns the number deleted.
func (r *BookingRepository) DeleteBulk(ctx context.Context, filter models.BookingClearFilter) (int, error) {
	where := []string{"date = ?"}
	args := []interface{}{filter.Date}
	if len(filter.TimeSlots) > 0 {
		where = append(where, "time_slot IN (?)")
		args = append(args, filter.TimeSlots)
	}
	if len(filter.PCIDs) > 0 {
		where = append(where, "pc_id IN (?)")
		args = append(args, filter.PCIDs)
	}
	query, inArgs, err := sqlx.In(fmt.Sprintf(`DELETE FROM bookings WHERE %s`, strings.Join(where, " AND ")), args...)
	if err != nil {
		return 0, fmt.Errorf("build bulk clear: %w", err)
	}
	query = r.db.Rebind(query)
	res, err := r.db.ExecContext(ctx, query, inArgs...)
	if err != nil {
		return 0, fmt.Errorf("bulk clear bookings: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListWithAttendance joins each live booking on a date with the booked
// student's attendance record for that day, when one exists.
func (r *BookingRepository) ListWithAttendance(ctx context.Context, date time.Time) ([]models.BookingWithAttendance, error) {
	query := fmt.Sprintf(`SELECT %s, COALESCE(a.status, '%s') AS attendance_status
FROM bookings bk
LEFT JOIN attendance a ON a.student_id = bk.student_id AND a.date = bk.date
WHERE bk.date = $1 AND bk.status <> 'cancelled'
ORDER BY bk.time_slot, bk.pc_id`,
		prefixColumns("bk", bookingColumns), models.AttendanceNotMarked)
	var rows []models.BookingWithAttendance
	if err := r.db.SelectContext(ctx, &rows, query, date); err != nil {
		return nil, fmt.Errorf("list bookings with attendance: %w", err)
	}
	return rows, nil
}

// CountForDate counts live bookings on a date.
func (r *BookingRepository) CountForDate(ctx context.Context, date time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM bookings WHERE date = $1 AND status <> 'cancelled'`
	if err := r.db.GetContext(ctx, &count, query, date); err != nil {
		return 0, fmt.Errorf("count bookings for date: %w", err)
	}
	return count, nil
}

// DailyCounts returns live booking counts per day over [from, to].
func (r *BookingRepository) DailyCounts(ctx context.Context, from, to time.Time) (map[time.Time]int, error) {
	query := `SELECT date, COUNT(*) AS cnt FROM bookings
WHERE date >= $1 AND date <= $2 AND status <> 'cancelled' GROUP BY date`
	rows := []struct {
		Date  time.Time `db:"date"`
		Count int       `db:"cnt"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("daily booking counts: %w", err)
	}
	counts := make(map[time.Time]int, len(rows))
	for _, row := range rows {
		counts[row.Date] = row.Count
	}
	return counts, nil
}
