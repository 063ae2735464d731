package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
)

// mockAttendanceRepo keys records by (student, day) the way the unique
// constraint does, so Upsert reports created vs updated faithfully.
type mockAttendanceRepo struct {
	records     map[string]models.Attendance
	rangeCounts [4]int
	trend       []models.AttendanceTrendPoint
	today       *models.TodayAttendanceSummary
	seq         int
}

func attendanceKey(studentID string, date time.Time) string {
	return studentID + "|" + date.Format("2006-01-02")
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, bool, error) {
	if m.records == nil {
		m.records = make(map[string]models.Attendance)
	}
	key := attendanceKey(record.StudentID, record.Date)
	existing, ok := m.records[key]
	if ok {
		record.ID = existing.ID
	} else {
		m.seq++
		record.ID = fmt.Sprintf("att-%d", m.seq)
	}
	m.records[key] = *record
	return record, !ok, nil
}

func (m *mockAttendanceRepo) ListByBatchDate(ctx context.Context, batchID string, date time.Time) ([]models.Attendance, error) {
	var out []models.Attendance
	for _, r := range m.records {
		if r.BatchID == batchID && r.Date.Equal(date) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockAttendanceRepo) StudentHistory(ctx context.Context, studentID string, from, to *time.Time) ([]models.Attendance, error) {
	var out []models.Attendance
	for _, r := range m.records {
		if r.StudentID != studentID {
			continue
		}
		if from != nil && r.Date.Before(*from) {
			continue
		}
		if to != nil && r.Date.After(*to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockAttendanceRepo) RangeCounts(ctx context.Context, batchID string, from, to *time.Time) (int, int, int, int, error) {
	return m.rangeCounts[0], m.rangeCounts[1], m.rangeCounts[2], m.rangeCounts[3], nil
}

func (m *mockAttendanceRepo) DailyTrend(ctx context.Context, batchID string, from, to time.Time) ([]models.AttendanceTrendPoint, error) {
	return m.trend, nil
}

func (m *mockAttendanceRepo) DaySummary(ctx context.Context, date time.Time) (*models.TodayAttendanceSummary, error) {
	if m.today != nil {
		return m.today, nil
	}
	return &models.TodayAttendanceSummary{Date: date}, nil
}

type mockRosterReader struct {
	students map[string]models.Student
}

func (m *mockRosterReader) GetByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRosterReader) ListByBatch(ctx context.Context, batchID string) ([]models.Student, error) {
	var out []models.Student
	for _, s := range m.students {
		if s.BatchID == batchID {
			out = append(out, s)
		}
	}
	return out, nil
}

type mockAttendanceBatches struct {
	batches map[string]models.Batch
}

func (m *mockAttendanceBatches) GetByID(ctx context.Context, id string) (*models.Batch, error) {
	if b, ok := m.batches[id]; ok {
		return &b, nil
	}
	return nil, sql.ErrNoRows
}

func newAttendanceFixture() (*AttendanceService, *mockAttendanceRepo, *mockRosterReader) {
	repo := &mockAttendanceRepo{}
	students := &mockRosterReader{students: map[string]models.Student{
		"s1": {ID: "s1", Name: "Arjun", RollNo: "CS24-001", BatchID: "b1", IsActive: true},
		"s2": {ID: "s2", Name: "Beena", RollNo: "CS24-002", BatchID: "b1", IsActive: true},
		"s9": {ID: "s9", Name: "Outsider", RollNo: "MX24-001", BatchID: "b9", IsActive: true},
	}}
	batches := &mockAttendanceBatches{batches: map[string]models.Batch{
		"b1": {ID: "b1", CourseID: "c1", CreatedBy: "t1", IsFinished: false},
	}}
	svc := NewAttendanceService(repo, students, batches, validator.New(), zap.NewNop())
	return svc, repo, students
}

func TestAttendanceServiceMark(t *testing.T) {
	svc, repo, _ := newAttendanceFixture()
	when := time.Date(2026, 2, 2, 9, 45, 0, 0, time.UTC)

	record, created, err := svc.Mark(context.Background(), teacherPrincipal(), MarkAttendanceRequest{
		StudentID: "s1",
		BatchID:   "b1",
		Date:      when,
		Status:    models.AttendancePresent,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), record.Date, "timestamps truncate to the day")
	assert.Equal(t, "t1", record.MarkedBy)
	assert.Len(t, repo.records, 1)
}

func TestAttendanceServiceMarkOverwrites(t *testing.T) {
	svc, repo, _ := newAttendanceFixture()
	when := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)

	_, created, err := svc.Mark(context.Background(), teacherPrincipal(), MarkAttendanceRequest{
		StudentID: "s1", BatchID: "b1", Date: when, Status: models.AttendanceAbsent,
	})
	require.NoError(t, err)
	assert.True(t, created)

	// The student walked in late; the second mark replaces the first.
	record, created, err := svc.Mark(context.Background(), teacherPrincipal(), MarkAttendanceRequest{
		StudentID: "s1", BatchID: "b1", Date: when.Add(2 * time.Hour), Status: models.AttendanceLate,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.AttendanceLate, record.Status)
	assert.Len(t, repo.records, 1)
}

func TestAttendanceServiceMarkWrongBatch(t *testing.T) {
	svc, _, _ := newAttendanceFixture()

	_, _, err := svc.Mark(context.Background(), teacherPrincipal(), MarkAttendanceRequest{
		StudentID: "s9", BatchID: "b1", Date: time.Now(), Status: models.AttendancePresent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrHierarchyMismatch.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceMarkForeignBatchRefused(t *testing.T) {
	svc, _, _ := newAttendanceFixture()

	_, _, err := svc.Mark(context.Background(), models.Principal{UserID: "t2", Role: models.RoleTeacher}, MarkAttendanceRequest{
		StudentID: "s1", BatchID: "b1", Date: time.Now(), Status: models.AttendancePresent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceMarkInvalidStatus(t *testing.T) {
	svc, _, _ := newAttendanceFixture()

	_, _, err := svc.Mark(context.Background(), teacherPrincipal(), MarkAttendanceRequest{
		StudentID: "s1", BatchID: "b1", Date: time.Now(), Status: "vanished",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceBulkMark(t *testing.T) {
	svc, repo, _ := newAttendanceFixture()
	when := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)

	result, err := svc.BulkMark(context.Background(), teacherPrincipal(), BulkMarkRequest{
		BatchID: "b1",
		Date:    when,
		Records: []BulkMarkEntry{
			{StudentID: "s1", Status: models.AttendancePresent},
			{StudentID: "s2", Status: models.AttendanceLate},
			{StudentID: "s9", Status: models.AttendancePresent},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.MarkedCount)
	assert.Equal(t, 0, result.UpdatedCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "s9")
	assert.Len(t, repo.records, 2)

	// Re-marking the same day counts as updates, not inserts.
	result, err = svc.BulkMark(context.Background(), teacherPrincipal(), BulkMarkRequest{
		BatchID: "b1",
		Date:    when,
		Records: []BulkMarkEntry{{StudentID: "s1", Status: models.AttendanceAbsent}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.MarkedCount)
	assert.Equal(t, 1, result.UpdatedCount)
}

func TestAttendanceServiceBatchView(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	when := time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)

	_, _, err := svc.Mark(context.Background(), teacherPrincipal(), MarkAttendanceRequest{
		StudentID: "s1", BatchID: "b1", Date: when, Status: models.AttendancePresent,
	})
	require.NoError(t, err)

	rows, err := svc.BatchView(context.Background(), "b1", when)
	require.NoError(t, err)
	require.Len(t, rows, 2, "every roster member appears")

	var marked, unmarked int
	for _, row := range rows {
		if row.Attendance != nil {
			marked++
			assert.Equal(t, "s1", row.StudentID)
		} else {
			unmarked++
		}
	}
	assert.Equal(t, 1, marked)
	assert.Equal(t, 1, unmarked)
}

func TestAttendanceServiceStatsExpectedTotal(t *testing.T) {
	svc, repo, _ := newAttendanceFixture()
	// 10 present, 3 absent, 2 late over 10 distinct days; roster has 2 students.
	repo.rangeCounts = [4]int{10, 3, 2, 10}

	stats, err := svc.Stats(context.Background(), "b1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.StudentCount)
	assert.Equal(t, 20, stats.ExpectedTotal, "roster size times distinct days")
	assert.Equal(t, 50.0, stats.PresentPct, "unmarked pairs count against the rate")
}

func TestAttendanceServiceStatsEmptyRange(t *testing.T) {
	svc, _, _ := newAttendanceFixture()

	stats, err := svc.Stats(context.Background(), "b1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ExpectedTotal)
	assert.Equal(t, 0.0, stats.PresentPct)
}

func TestTruncateToDay(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	local := time.Date(2026, 2, 2, 2, 30, 0, 0, ist)

	got := truncateToDay(local)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), got, "conversion happens in UTC before truncation")
	assert.Equal(t, time.UTC, got.Location())
}
