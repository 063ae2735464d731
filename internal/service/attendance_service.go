package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, bool, error)
	ListByBatchDate(ctx context.Context, batchID string, date time.Time) ([]models.Attendance, error)
	StudentHistory(ctx context.Context, studentID string, from, to *time.Time) ([]models.Attendance, error)
	RangeCounts(ctx context.Context, batchID string, from, to *time.Time) (present, absent, late, uniqueDates int, err error)
	DailyTrend(ctx context.Context, batchID string, from, to time.Time) ([]models.AttendanceTrendPoint, error)
	DaySummary(ctx context.Context, date time.Time) (*models.TodayAttendanceSummary, error)
}

type rosterReader interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
	ListByBatch(ctx context.Context, batchID string) ([]models.Student, error)
}

type attendanceBatchReader interface {
	GetByID(ctx context.Context, id string) (*models.Batch, error)
}

// MarkAttendanceRequest describes one (student, day) mark.
type MarkAttendanceRequest struct {
	StudentID string                  `json:"student_id" validate:"required"`
	BatchID   string                  `json:"batch_id" validate:"required"`
	Date      time.Time               `json:"date" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required,attendance_status"`
	Remarks   *string                 `json:"remarks,omitempty"`
}

// BulkMarkRequest marks a whole batch for one day in a single call.
type BulkMarkRequest struct {
	BatchID string          `json:"batch_id" validate:"required"`
	Date    time.Time       `json:"date" validate:"required"`
	Records []BulkMarkEntry `json:"records" validate:"required,min=1,dive"`
}

// BulkMarkEntry is one student's status within a bulk mark.
type BulkMarkEntry struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required,attendance_status"`
	Remarks   *string                 `json:"remarks,omitempty"`
}

// BulkMarkResult reports per-record outcomes of a bulk mark.
type BulkMarkResult struct {
	MarkedCount  int      `json:"marked_count"`
	UpdatedCount int      `json:"updated_count"`
	Errors       []string `json:"errors,omitempty"`
}

// AttendanceService maintains the (student, day) ledger. Marking the same
// pair twice overwrites the first record rather than duplicating it.
type AttendanceService struct {
	repo      attendanceRepository
	students  rosterReader
	batches   attendanceBatchReader
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// SetMetrics attaches the instrumentation sink; all observe calls tolerate
// a nil sink.
func (s *AttendanceService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, students rosterReader, batches attendanceBatchReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{repo: repo, students: students, batches: batches, validator: validate, logger: logger}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
	return svc
}

// truncateToDay normalises a timestamp to midnight UTC, the granularity of
// the ledger's uniqueness key.
func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// authorizeBatch refuses marks against batches the principal does not own.
// The failure never discloses whether the batch exists.
func (s *AttendanceService) authorizeBatch(ctx context.Context, principal models.Principal, batchID string) error {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if !canWriteAttendance(principal, batch) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
	}
	return nil
}

// Mark records one student's status for one day, overwriting any earlier
// mark for the same pair.
func (s *AttendanceService) Mark(ctx context.Context, principal models.Principal, req MarkAttendanceRequest) (*models.Attendance, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	student, err := s.students.GetByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.BatchID != req.BatchID {
		return nil, false, appErrors.Clone(appErrors.ErrHierarchyMismatch, "student is not in the given batch")
	}
	if err := s.authorizeBatch(ctx, principal, req.BatchID); err != nil {
		return nil, false, err
	}
	record := &models.Attendance{
		StudentID: req.StudentID,
		BatchID:   req.BatchID,
		Date:      truncateToDay(req.Date),
		Status:    req.Status,
		Remarks:   req.Remarks,
		MarkedBy:  principal.UserID,
	}
	stored, created, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	s.metrics.ObserveAttendanceMark(string(stored.Status))
	return stored, created, nil
}

// BulkMark marks many students of one batch for one day. Individual failures
// are collected rather than aborting the rest.
func (s *AttendanceService) BulkMark(ctx context.Context, principal models.Principal, req BulkMarkRequest) (*BulkMarkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk attendance payload")
	}
	if err := s.authorizeBatch(ctx, principal, req.BatchID); err != nil {
		return nil, err
	}
	roster, err := s.students.ListByBatch(ctx, req.BatchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch roster")
	}
	inBatch := make(map[string]bool, len(roster))
	for _, st := range roster {
		inBatch[st.ID] = true
	}
	date := truncateToDay(req.Date)
	result := &BulkMarkResult{}
	for _, entry := range req.Records {
		if !inBatch[entry.StudentID] {
			result.Errors = append(result.Errors, "student "+entry.StudentID+" is not in the batch")
			continue
		}
		record := &models.Attendance{
			StudentID: entry.StudentID,
			BatchID:   req.BatchID,
			Date:      date,
			Status:    entry.Status,
			Remarks:   entry.Remarks,
			MarkedBy:  principal.UserID,
		}
		_, created, err := s.repo.Upsert(ctx, record)
		if err != nil {
			s.logger.Warn("bulk attendance mark failed",
				zap.String("student_id", entry.StudentID),
				zap.Error(err))
			result.Errors = append(result.Errors, "student "+entry.StudentID+": "+err.Error())
			continue
		}
		s.metrics.ObserveAttendanceMark(string(entry.Status))
		if created {
			result.MarkedCount++
		} else {
			result.UpdatedCount++
		}
	}
	return result, nil
}

// BatchView pairs every roster member with their record for one day; students
// without a record carry a nil attendance entry.
func (s *AttendanceService) BatchView(ctx context.Context, batchID string, date time.Time) ([]models.BatchAttendanceRow, error) {
	roster, err := s.students.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch roster")
	}
	day := truncateToDay(date)
	records, err := s.repo.ListByBatchDate(ctx, batchID, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch attendance")
	}
	byStudent := make(map[string]*models.Attendance, len(records))
	for i := range records {
		byStudent[records[i].StudentID] = &records[i]
	}
	rows := make([]models.BatchAttendanceRow, 0, len(roster))
	for _, st := range roster {
		rows = append(rows, models.BatchAttendanceRow{
			StudentID:   st.ID,
			StudentName: st.Name,
			RollNo:      st.RollNo,
			Attendance:  byStudent[st.ID],
		})
	}
	return rows, nil
}

// History returns a student's records, newest first.
func (s *AttendanceService) History(ctx context.Context, studentID string, from, to *time.Time) ([]models.Attendance, error) {
	if from != nil {
		f := truncateToDay(*from)
		from = &f
	}
	if to != nil {
		t := truncateToDay(*to)
		to = &t
	}
	records, err := s.repo.StudentHistory(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	return records, nil
}

// Stats aggregates a batch's range counts. The rate denominator is the
// expected total (roster size times distinct marked days), so unmarked
// students drag the percentage down instead of inflating it.
func (s *AttendanceService) Stats(ctx context.Context, batchID string, from, to *time.Time) (*models.AttendanceStats, error) {
	present, absent, late, uniqueDates, err := s.repo.RangeCounts(ctx, batchID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}
	roster, err := s.students.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch roster")
	}
	stats := &models.AttendanceStats{
		BatchID:       batchID,
		PresentCount:  present,
		AbsentCount:   absent,
		LateCount:     late,
		UniqueDates:   uniqueDates,
		StudentCount:  len(roster),
		ExpectedTotal: len(roster) * uniqueDates,
	}
	if stats.ExpectedTotal > 0 {
		stats.PresentPct = float64(present) / float64(stats.ExpectedTotal) * 100
	}
	return stats, nil
}

// Trend rolls up the ledger per day over [from, to].
func (s *AttendanceService) Trend(ctx context.Context, batchID string, from, to time.Time) ([]models.AttendanceTrendPoint, error) {
	points, err := s.repo.DailyTrend(ctx, batchID, truncateToDay(from), truncateToDay(to))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance trend")
	}
	return points, nil
}

// TodaySummary returns the centre-wide histogram for the current day.
func (s *AttendanceService) TodaySummary(ctx context.Context) (*models.TodayAttendanceSummary, error) {
	summary, err := s.repo.DaySummary(ctx, truncateToDay(time.Now()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load today summary")
	}
	return summary, nil
}
