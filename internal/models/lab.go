package models

import "time"

// PCStatus is the operational state of a lab machine.
type PCStatus string

const (
	PCActive      PCStatus = "active"
	PCMaintenance PCStatus = "maintenance"
	PCInactive    PCStatus = "inactive"
)

// Valid returns true when the status is supported.
func (s PCStatus) Valid() bool {
	switch s {
	case PCActive, PCMaintenance, PCInactive:
		return true
	default:
		return false
	}
}

// PCRow is the physical lab row a machine sits in.
type PCRow string

// Valid returns true for rows "1" through "4".
func (r PCRow) Valid() bool {
	switch r {
	case "1", "2", "3", "4":
		return true
	default:
		return false
	}
}

// PC is one lab machine.
type PC struct {
	ID              string     `db:"id" json:"id"`
	PCNumber        string     `db:"pc_number" json:"pc_number"`
	Row             PCRow      `db:"row" json:"row"`
	Position        int        `db:"position" json:"position"`
	Status          PCStatus   `db:"status" json:"status"`
	Specs           *string    `db:"specs" json:"specs,omitempty"`
	LastMaintenance *time.Time `db:"last_maintenance" json:"last_maintenance,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// BookingStatus tracks the lifecycle of a lab reservation.
type BookingStatus string

const (
	BookingBooked    BookingStatus = "booked"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingNoShow    BookingStatus = "no-show"
)

// Valid returns true when the status is supported.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingBooked, BookingCompleted, BookingCancelled, BookingNoShow:
		return true
	default:
		return false
	}
}

// Booking reserves one PC for one time slot on one date. Non-cancelled rows
// are unique per (pc, date, slot) and per (student, date, slot).
type Booking struct {
	ID          string        `db:"id" json:"id"`
	PCID        string        `db:"pc_id" json:"pc_id"`
	Date        time.Time     `db:"date" json:"date"`
	TimeSlot    TimeSlot      `db:"time_slot" json:"time_slot"`
	BookedFor   string        `db:"booked_for" json:"booked_for"`
	StudentID   *string       `db:"student_id" json:"student_id,omitempty"`
	StudentName string        `db:"student_name" json:"student_name"`
	TeacherName string        `db:"teacher_name" json:"teacher_name"`
	BatchID     *string       `db:"batch_id" json:"batch_id,omitempty"`
	Purpose     string        `db:"purpose" json:"purpose"`
	Notes       *string       `db:"notes" json:"notes,omitempty"`
	Status      BookingStatus `db:"status" json:"status"`
	BookedBy    string        `db:"booked_by" json:"booked_by"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingFilter captures query filters over bookings.
type BookingFilter struct {
	Date      *time.Time
	TimeSlot  *TimeSlot
	PCID      string
	StudentID string
	BatchID   string
	Status    *BookingStatus
}

// BookingClearFilter scopes a bulk physical delete.
type BookingClearFilter struct {
	Date      time.Time
	TimeSlots []TimeSlot
	PCIDs     []string
}

// LabAvailability counts active machines against live bookings for a date.
type LabAvailability struct {
	Date        time.Time `json:"date"`
	TotalPCs    int       `json:"total_pcs"`
	BookedCount int       `json:"booked_count"`
	Available   int       `json:"available"`
}

// BookingWithAttendance pairs a booking with the student's same-day attendance.
type BookingWithAttendance struct {
	Booking
	AttendanceStatus string `db:"attendance_status" json:"attendance_status"`
}

// AttendanceNotMarked is reported when a booked student has no record that day.
const AttendanceNotMarked = "not-marked"

// ApplyPreviousResult reports the outcome of copying a day's bookings forward.
type ApplyPreviousResult struct {
	AppliedCount int      `json:"applied_count"`
	SkippedCount int      `json:"skipped_count"`
	Errors       []string `json:"errors,omitempty"`
}
