package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/cache"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
)

const adminDashboardCacheKey = "dashboard:admin"

type dashboardUserCounter interface {
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

type dashboardStudentCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type dashboardBatchCounter interface {
	Count(ctx context.Context, activeOnly bool) (int, error)
}

type dashboardCourseCounter interface {
	Count(ctx context.Context) (int, error)
}

type dashboardDepartmentReader interface {
	Count(ctx context.Context) (int, error)
	Rollups(ctx context.Context) ([]models.DepartmentRollup, error)
}

type dashboardPCCounter interface {
	CountByStatus(ctx context.Context, status models.PCStatus) (int, error)
}

type dashboardBookingReader interface {
	CountForDate(ctx context.Context, date time.Time) (int, error)
	DailyCounts(ctx context.Context, from, to time.Time) (map[time.Time]int, error)
}

type dashboardAttendanceReader interface {
	DaySummary(ctx context.Context, date time.Time) (*models.TodayAttendanceSummary, error)
	DailyTrend(ctx context.Context, batchID string, from, to time.Time) ([]models.AttendanceTrendPoint, error)
	RangeCountsByDepartment(ctx context.Context, departmentID string, from, to time.Time) (present, absent, late int, err error)
}

// DashboardService composes the admin landing summary from parallel count
// queries and a short-lived cache in front of them.
type DashboardService struct {
	users       dashboardUserCounter
	students    dashboardStudentCounter
	batches     dashboardBatchCounter
	courses     dashboardCourseCounter
	departments dashboardDepartmentReader
	pcs         dashboardPCCounter
	bookings    dashboardBookingReader
	attendance  dashboardAttendanceReader
	cache       *cache.Cache
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewDashboardService constructs DashboardService. A nil cache disables
// caching.
func NewDashboardService(
	users dashboardUserCounter,
	students dashboardStudentCounter,
	batches dashboardBatchCounter,
	courses dashboardCourseCounter,
	departments dashboardDepartmentReader,
	pcs dashboardPCCounter,
	bookings dashboardBookingReader,
	attendance dashboardAttendanceReader,
	c *cache.Cache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &DashboardService{
		users:       users,
		students:    students,
		batches:     batches,
		courses:     courses,
		departments: departments,
		pcs:         pcs,
		bookings:    bookings,
		attendance:  attendance,
		cache:       c,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// AdminSummary assembles the full dashboard payload. Count queries run
// concurrently and the composed result is cached for cacheTTL.
func (s *DashboardService) AdminSummary(ctx context.Context, principal models.Principal) (*models.AdminDashboard, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can view the dashboard")
	}
	var cached models.AdminDashboard
	if err := s.cache.Get(ctx, adminDashboardCacheKey, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("dashboard cache read failed", zap.Error(err))
	}

	counts, err := s.collectCounts(ctx)
	if err != nil {
		return nil, err
	}

	today := truncateToDay(time.Now())
	summary, err := s.attendance.DaySummary(ctx, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load today attendance")
	}
	todayBookings, err := s.bookings.CountForDate(ctx, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count today bookings")
	}
	trend, err := s.weeklyTrend(ctx, today)
	if err != nil {
		return nil, err
	}
	rollups, err := s.departments.Rollups(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department rollups")
	}

	dashboard := &models.AdminDashboard{
		Counts:          *counts,
		TodayAttendance: *summary,
		TodayBookings:   todayBookings,
		LabUtilization:  labUtilization(todayBookings, counts.ActivePCs),
		Trend:           trend,
		Departments:     rollups,
		GeneratedAt:     time.Now().UTC(),
	}
	if err := s.cache.Set(ctx, adminDashboardCacheKey, dashboard, s.cacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return dashboard, nil
}

// collectCounts fans the eight count queries out in parallel and keeps the
// first error.
func (s *DashboardService) collectCounts(ctx context.Context) (*models.DashboardCounts, error) {
	var (
		counts models.DashboardCounts
		mu     sync.Mutex
		wg     sync.WaitGroup
		first  error
	)
	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				mu.Lock()
				if first == nil {
					first = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count "+name)
				}
				mu.Unlock()
			}
		}()
	}
	run("students", func() error {
		n, err := s.students.CountActive(ctx)
		counts.Students = n
		return err
	})
	run("teachers", func() error {
		n, err := s.users.CountByRole(ctx, models.RoleTeacher)
		counts.Teachers = n
		return err
	})
	run("batches", func() error {
		n, err := s.batches.Count(ctx, false)
		counts.Batches = n
		return err
	})
	run("active batches", func() error {
		n, err := s.batches.Count(ctx, true)
		counts.ActiveBatches = n
		return err
	})
	run("courses", func() error {
		n, err := s.courses.Count(ctx)
		counts.Courses = n
		return err
	})
	run("departments", func() error {
		n, err := s.departments.Count(ctx)
		counts.Departments = n
		return err
	})
	run("pcs", func() error {
		n, err := s.pcs.CountByStatus(ctx, "")
		counts.TotalPCs = n
		return err
	})
	run("active pcs", func() error {
		n, err := s.pcs.CountByStatus(ctx, models.PCActive)
		counts.ActivePCs = n
		return err
	})
	wg.Wait()
	if first != nil {
		return nil, first
	}
	return &counts, nil
}

// weeklyTrend joins the last seven days of attendance and booking activity,
// emitting a point for every day even when both series are empty.
func (s *DashboardService) weeklyTrend(ctx context.Context, today time.Time) ([]models.DashboardTrendPoint, error) {
	from := today.AddDate(0, 0, -6)
	attendance, err := s.attendance.DailyTrend(ctx, "", from, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance trend")
	}
	presentByDay := make(map[time.Time]int, len(attendance))
	for _, point := range attendance {
		presentByDay[truncateToDay(point.Date)] = point.Present
	}
	bookingsByDay, err := s.bookings.DailyCounts(ctx, from, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking trend")
	}
	points := make([]models.DashboardTrendPoint, 0, 7)
	for day := from; !day.After(today); day = day.AddDate(0, 0, 1) {
		points = append(points, models.DashboardTrendPoint{
			Date:         day,
			PresentCount: presentByDay[day],
			BookingCount: bookingsByDay[day],
		})
	}
	return points, nil
}

// labUtilization is today's bookings over active PCs as a whole percentage.
// It can exceed 100 when PCs rotate through multiple slots a day.
func labUtilization(todayBookings, activePCs int) int {
	if activePCs == 0 {
		return 0
	}
	return int(math.Round(float64(todayBookings) / float64(activePCs) * 100))
}

// AttendanceAnalytics aggregates a date range, optionally scoped to one
// department, for the reports page.
func (s *DashboardService) AttendanceAnalytics(ctx context.Context, principal models.Principal, departmentID string, from, to time.Time) (*models.AttendanceAnalytics, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can view attendance analytics")
	}
	from, to = truncateToDay(from), truncateToDay(to)
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range end precedes start")
	}
	present, absent, late, err := s.attendance.RangeCountsByDepartment(ctx, departmentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}
	trend, err := s.attendance.DailyTrend(ctx, "", from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance trend")
	}
	return &models.AttendanceAnalytics{
		DateFrom:     from,
		DateTo:       to,
		DepartmentID: departmentID,
		Present:      present,
		Absent:       absent,
		Late:         late,
		Trend:        trend,
	}, nil
}
