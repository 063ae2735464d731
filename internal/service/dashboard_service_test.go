package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
)

type stubUserCounter struct{ teachers int }

func (s *stubUserCounter) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	return s.teachers, nil
}

type stubStudentCounter struct{ students int }

func (s *stubStudentCounter) CountActive(ctx context.Context) (int, error) {
	return s.students, nil
}

type stubBatchCounter struct{ total, active int }

func (s *stubBatchCounter) Count(ctx context.Context, activeOnly bool) (int, error) {
	if activeOnly {
		return s.active, nil
	}
	return s.total, nil
}

type stubCourseCounter struct{ courses int }

func (s *stubCourseCounter) Count(ctx context.Context) (int, error) {
	return s.courses, nil
}

type stubDepartmentReader struct {
	departments int
	rollups     []models.DepartmentRollup
}

func (s *stubDepartmentReader) Count(ctx context.Context) (int, error) {
	return s.departments, nil
}

func (s *stubDepartmentReader) Rollups(ctx context.Context) ([]models.DepartmentRollup, error) {
	return s.rollups, nil
}

type stubPCCounter struct{ total, active int }

func (s *stubPCCounter) CountByStatus(ctx context.Context, status models.PCStatus) (int, error) {
	if status == models.PCActive {
		return s.active, nil
	}
	return s.total, nil
}

type stubBookingReader struct {
	todayCount int
	daily      map[time.Time]int
}

func (s *stubBookingReader) CountForDate(ctx context.Context, date time.Time) (int, error) {
	return s.todayCount, nil
}

func (s *stubBookingReader) DailyCounts(ctx context.Context, from, to time.Time) (map[time.Time]int, error) {
	return s.daily, nil
}

type stubAttendanceReader struct {
	summary models.TodayAttendanceSummary
	trend   []models.AttendanceTrendPoint
	present int
	absent  int
	late    int
}

func (s *stubAttendanceReader) DaySummary(ctx context.Context, date time.Time) (*models.TodayAttendanceSummary, error) {
	out := s.summary
	out.Date = date
	return &out, nil
}

func (s *stubAttendanceReader) DailyTrend(ctx context.Context, batchID string, from, to time.Time) ([]models.AttendanceTrendPoint, error) {
	return s.trend, nil
}

func (s *stubAttendanceReader) RangeCountsByDepartment(ctx context.Context, departmentID string, from, to time.Time) (int, int, int, error) {
	return s.present, s.absent, s.late, nil
}

func newDashboardFixture() (*DashboardService, *stubBookingReader, *stubAttendanceReader) {
	today := truncateToDay(time.Now())
	bookings := &stubBookingReader{
		todayCount: 12,
		daily:      map[time.Time]int{today: 12, today.AddDate(0, 0, -1): 7},
	}
	attendance := &stubAttendanceReader{
		summary: models.TodayAttendanceSummary{Present: 40, Absent: 5, Late: 3, Total: 48},
		trend: []models.AttendanceTrendPoint{
			{Date: today, Present: 40, Absent: 5, Late: 3},
			{Date: today.AddDate(0, 0, -2), Present: 38, Absent: 8, Late: 1},
		},
	}
	svc := NewDashboardService(
		&stubUserCounter{teachers: 6},
		&stubStudentCounter{students: 120},
		&stubBatchCounter{total: 10, active: 8},
		&stubCourseCounter{courses: 14},
		&stubDepartmentReader{departments: 3, rollups: []models.DepartmentRollup{{DepartmentID: "d1", Courses: 5, Batches: 4, Students: 60}}},
		&stubPCCounter{total: 25, active: 20},
		bookings,
		attendance,
		nil,
		time.Minute,
		zap.NewNop(),
	)
	return svc, bookings, attendance
}

func TestDashboardServiceAdminSummary(t *testing.T) {
	svc, _, _ := newDashboardFixture()

	dashboard, err := svc.AdminSummary(context.Background(), adminPrincipal())
	require.NoError(t, err)

	assert.Equal(t, 120, dashboard.Counts.Students)
	assert.Equal(t, 6, dashboard.Counts.Teachers)
	assert.Equal(t, 10, dashboard.Counts.Batches)
	assert.Equal(t, 8, dashboard.Counts.ActiveBatches)
	assert.Equal(t, 25, dashboard.Counts.TotalPCs)
	assert.Equal(t, 20, dashboard.Counts.ActivePCs)
	assert.Equal(t, 40, dashboard.TodayAttendance.Present)
	assert.Equal(t, 12, dashboard.TodayBookings)
	assert.Equal(t, 60, dashboard.LabUtilization, "12 bookings across 20 active machines")
	require.Len(t, dashboard.Departments, 1)
	assert.False(t, dashboard.GeneratedAt.IsZero())
}

func TestDashboardServiceAdminOnly(t *testing.T) {
	svc, _, _ := newDashboardFixture()

	_, err := svc.AdminSummary(context.Background(), teacherPrincipal())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDashboardServiceWeeklyTrendZeroFills(t *testing.T) {
	svc, _, _ := newDashboardFixture()
	today := truncateToDay(time.Now())

	dashboard, err := svc.AdminSummary(context.Background(), adminPrincipal())
	require.NoError(t, err)

	require.Len(t, dashboard.Trend, 7, "one point per day even when idle")
	assert.Equal(t, today.AddDate(0, 0, -6), dashboard.Trend[0].Date)
	assert.Equal(t, today, dashboard.Trend[6].Date)

	byDate := map[time.Time]models.DashboardTrendPoint{}
	for _, p := range dashboard.Trend {
		byDate[p.Date] = p
	}
	assert.Equal(t, 40, byDate[today].PresentCount)
	assert.Equal(t, 12, byDate[today].BookingCount)
	assert.Equal(t, 7, byDate[today.AddDate(0, 0, -1)].BookingCount)
	assert.Equal(t, 0, byDate[today.AddDate(0, 0, -1)].PresentCount)
	assert.Equal(t, 38, byDate[today.AddDate(0, 0, -2)].PresentCount)
	assert.Equal(t, 0, byDate[today.AddDate(0, 0, -5)].PresentCount)
}

func TestDashboardServiceAttendanceAnalytics(t *testing.T) {
	svc, _, attendance := newDashboardFixture()
	attendance.present, attendance.absent, attendance.late = 300, 40, 12

	to := time.Now()
	from := to.AddDate(0, 0, -30)
	analytics, err := svc.AttendanceAnalytics(context.Background(), adminPrincipal(), "d1", from, to)
	require.NoError(t, err)
	assert.Equal(t, 300, analytics.Present)
	assert.Equal(t, 40, analytics.Absent)
	assert.Equal(t, 12, analytics.Late)
	assert.Equal(t, "d1", analytics.DepartmentID)
	assert.Equal(t, truncateToDay(from), analytics.DateFrom)
}

func TestDashboardServiceAttendanceAnalyticsBadRange(t *testing.T) {
	svc, _, _ := newDashboardFixture()

	now := time.Now()
	_, err := svc.AttendanceAnalytics(context.Background(), adminPrincipal(), "", now, now.AddDate(0, 0, -1))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLabUtilization(t *testing.T) {
	assert.Equal(t, 0, labUtilization(5, 0), "no active machines yields zero, not a division error")
	assert.Equal(t, 50, labUtilization(10, 20))
	assert.Equal(t, 125, labUtilization(25, 20), "multiple slots per machine can exceed 100")
	assert.Equal(t, 33, labUtilization(1, 3))
}
