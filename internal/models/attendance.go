package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
		return true
	default:
		return false
	}
}

// Attendance is one (student, day) status record. The date is stored
// truncated to midnight and the pair is unique at the store.
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	BatchID   string           `db:"batch_id" json:"batch_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Remarks   *string          `db:"remarks" json:"remarks,omitempty"`
	MarkedBy  string           `db:"marked_by" json:"marked_by"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceFilter captures query filters over the ledger.
type AttendanceFilter struct {
	StudentID string
	BatchID   string
	DateFrom  *time.Time
	DateTo    *time.Time
	Status    *AttendanceStatus
	Page      int
	PageSize  int
}

// BatchAttendanceRow pairs a student with their record for one day, nil when unmarked.
type BatchAttendanceRow struct {
	StudentID   string      `json:"student_id"`
	StudentName string      `json:"student_name"`
	RollNo      string      `json:"roll_no"`
	Attendance  *Attendance `json:"attendance"`
}

// AttendanceStats reports range counts plus the corrected attendance rate,
// which treats unmarked (student, day) pairs as absent.
type AttendanceStats struct {
	BatchID       string  `json:"batch_id"`
	PresentCount  int     `json:"present_count"`
	AbsentCount   int     `json:"absent_count"`
	LateCount     int     `json:"late_count"`
	UniqueDates   int     `json:"unique_dates"`
	StudentCount  int     `json:"student_count"`
	ExpectedTotal int     `json:"expected_total"`
	PresentPct    float64 `json:"present_pct"`
}

// AttendanceTrendPoint is one day in a trend series.
type AttendanceTrendPoint struct {
	Date       time.Time `db:"date" json:"date"`
	Present    int       `db:"present" json:"present"`
	Absent     int       `db:"absent" json:"absent"`
	Late       int       `db:"late" json:"late"`
	Percentage float64   `json:"percentage"`
}

// TodayAttendanceSummary is the day histogram used by dashboards.
type TodayAttendanceSummary struct {
	Date    time.Time `json:"date"`
	Present int       `json:"present"`
	Absent  int       `json:"absent"`
	Late    int       `json:"late"`
	Total   int       `json:"total"`
}
