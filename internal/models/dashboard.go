package models

import "time"

// DashboardCounts is the parallel count fan-out section of the admin summary.
type DashboardCounts struct {
	Students      int `json:"students"`
	Teachers      int `json:"teachers"`
	Batches       int `json:"batches"`
	ActiveBatches int `json:"active_batches"`
	Courses       int `json:"courses"`
	Departments   int `json:"departments"`
	TotalPCs      int `json:"total_pcs"`
	ActivePCs     int `json:"active_pcs"`
}

// DashboardTrendPoint is one day of the 7-day activity series.
type DashboardTrendPoint struct {
	Date         time.Time `json:"date"`
	PresentCount int       `json:"present_count"`
	BookingCount int       `json:"booking_count"`
}

// DepartmentRollup aggregates dependents for one department.
type DepartmentRollup struct {
	DepartmentID   string         `db:"department_id" json:"department_id"`
	DepartmentName DepartmentName `db:"department_name" json:"department_name"`
	Courses        int            `db:"courses" json:"courses"`
	Batches        int            `db:"batches" json:"batches"`
	Students       int            `db:"students" json:"students"`
}

// AdminDashboard is the composed summary for the admin landing page.
type AdminDashboard struct {
	Counts          DashboardCounts        `json:"counts"`
	TodayAttendance TodayAttendanceSummary `json:"today_attendance"`
	TodayBookings   int                    `json:"today_bookings"`
	LabUtilization  int                    `json:"lab_utilization"`
	Trend           []DashboardTrendPoint  `json:"trend"`
	Departments     []DepartmentRollup     `json:"departments"`
	GeneratedAt     time.Time              `json:"generated_at"`
}

// AttendanceAnalytics is the filtered range rollup for reports.
type AttendanceAnalytics struct {
	DateFrom     time.Time              `json:"date_from"`
	DateTo       time.Time              `json:"date_to"`
	DepartmentID string                 `json:"department_id,omitempty"`
	Present      int                    `json:"present"`
	Absent       int                    `json:"absent"`
	Late         int                    `json:"late"`
	Trend        []AttendanceTrendPoint `json:"trend"`
}
