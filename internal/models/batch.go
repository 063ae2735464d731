package models

import "time"

// TimeSlot is one of the five fixed 90-minute intervals that partition the lab day.
// Batch timings and lab bookings share the same enumeration.
type TimeSlot string

const (
	Slot0900 TimeSlot = "09:00 AM - 10:30 AM"
	Slot1030 TimeSlot = "10:30 AM - 12:00 PM"
	Slot1200 TimeSlot = "12:00 PM - 01:30 PM"
	Slot1400 TimeSlot = "02:00 PM - 03:30 PM"
	Slot1530 TimeSlot = "03:30 PM - 05:00 PM"
)

// AllTimeSlots lists the slots in day order.
var AllTimeSlots = []TimeSlot{Slot0900, Slot1030, Slot1200, Slot1400, Slot1530}

// Valid returns true when the slot is one of the five fixed intervals.
func (t TimeSlot) Valid() bool {
	switch t {
	case Slot0900, Slot1030, Slot1200, Slot1400, Slot1530:
		return true
	default:
		return false
	}
}

// Batch is a cohort of students taking the same course in one section and timing.
type Batch struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	CourseID     string     `db:"course_id" json:"course_id"`
	AcademicYear string     `db:"academic_year" json:"academic_year"`
	Section      string     `db:"section" json:"section"`
	Timing       TimeSlot   `db:"timing" json:"timing"`
	StartDate    time.Time  `db:"start_date" json:"start_date"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	MaxStudents  int        `db:"max_students" json:"max_students"`
	CreatedBy    string     `db:"created_by" json:"created_by"`
	IsArchived   bool       `db:"is_archived" json:"is_archived"`
	IsFinished   bool       `db:"is_finished" json:"is_finished"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// BatchFilter captures list filters for batches.
type BatchFilter struct {
	CourseID     string
	DepartmentID string
	CreatedBy    string
	Archived     *bool
	Finished     *bool
	Page         int
	PageSize     int
}

// BatchOverview joins a batch with its student count and course naming.
type BatchOverview struct {
	Batch
	CourseName   string `db:"course_name" json:"course_name"`
	StudentCount int    `db:"student_count" json:"student_count"`
}
