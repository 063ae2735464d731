package models

import "time"

// PaymentStatus tracks fee collection state for a student.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPartial   PaymentStatus = "partial"
	PaymentCompleted PaymentStatus = "completed"
	PaymentOverdue   PaymentStatus = "overdue"
)

// Valid returns true when the status is supported.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPartial, PaymentCompleted, PaymentOverdue:
		return true
	default:
		return false
	}
}

// Student is an enrolled learner pinned to a department, course and batch.
// The three references are denormalised; writes re-validate the hierarchy.
type Student struct {
	ID               string        `db:"id" json:"id"`
	Name             string        `db:"name" json:"name"`
	StudentID        string        `db:"student_id" json:"student_id"`
	RollNo           string        `db:"roll_no" json:"roll_no"`
	Email            *string       `db:"email" json:"email,omitempty"`
	Phone            *string       `db:"phone" json:"phone,omitempty"`
	Address          *string       `db:"address" json:"address,omitempty"`
	DateOfBirth      *time.Time    `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender           *string       `db:"gender" json:"gender,omitempty"`
	GuardianName     *string       `db:"guardian_name" json:"guardian_name,omitempty"`
	GuardianPhone    *string       `db:"guardian_phone" json:"guardian_phone,omitempty"`
	EmergencyContact *string       `db:"emergency_contact" json:"emergency_contact,omitempty"`
	Qualification    *string       `db:"qualification" json:"qualification,omitempty"`
	AdmissionDate    time.Time     `db:"admission_date" json:"admission_date"`
	DepartmentID     string        `db:"department_id" json:"department_id"`
	CourseID         string        `db:"course_id" json:"course_id"`
	BatchID          string        `db:"batch_id" json:"batch_id"`
	FeesPaid         float64       `db:"fees_paid" json:"fees_paid"`
	TotalFees        float64       `db:"total_fees" json:"total_fees"`
	PaymentStatus    PaymentStatus `db:"payment_status" json:"payment_status"`
	IsActive         bool          `db:"is_active" json:"is_active"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter captures list filters for students.
type StudentFilter struct {
	DepartmentID string
	CourseID     string
	BatchID      string
	Active       *bool
	Search       string
	Page         int
	PageSize     int
}

// StudentOverview joins a student with the names of its hierarchy parents.
type StudentOverview struct {
	Student
	BatchName      string         `db:"batch_name" json:"batch_name"`
	CourseName     string         `db:"course_name" json:"course_name"`
	DepartmentName DepartmentName `db:"department_name" json:"department_name"`
}

// StudentStats summarises one student's attendance and fee position.
type StudentStats struct {
	StudentID       string  `json:"student_id"`
	PresentCount    int     `json:"present_count"`
	AbsentCount     int     `json:"absent_count"`
	LateCount       int     `json:"late_count"`
	AttendanceRate  float64 `json:"attendance_rate"`
	FeesPaid        float64 `json:"fees_paid"`
	TotalFees       float64 `json:"total_fees"`
	FeesOutstanding float64 `json:"fees_outstanding"`
}
