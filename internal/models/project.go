package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// ProjectStatus is the lifecycle state of a batch project.
type ProjectStatus string

const (
	ProjectDraft      ProjectStatus = "draft"
	ProjectAssigned   ProjectStatus = "assigned"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectArchived   ProjectStatus = "archived"
)

// Valid returns true when the status is supported.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectDraft, ProjectAssigned, ProjectInProgress, ProjectCompleted, ProjectArchived:
		return true
	default:
		return false
	}
}

// Deliverable describes one expected submission artifact.
type Deliverable struct {
	Name      string `json:"name"`
	FileType  string `json:"file_type"`
	MaxSizeMB int    `json:"max_size_mb"`
	Mandatory bool   `json:"mandatory"`
}

// Deliverables is the JSONB column holding expected artifacts.
type Deliverables []Deliverable

// Value implements driver.Valuer.
func (d Deliverables) Value() (driver.Value, error) { return json.Marshal(d) }

// Scan implements sql.Scanner.
func (d *Deliverables) Scan(src interface{}) error { return scanJSON(src, d) }

// Project is the final assessment assigned to a finished batch.
type Project struct {
	ID              string         `db:"id" json:"id"`
	Title           string         `db:"title" json:"title"`
	Description     string         `db:"description" json:"description"`
	BatchID         string         `db:"batch_id" json:"batch_id"`
	CourseID        string         `db:"course_id" json:"course_id"`
	AssignedDate    time.Time      `db:"assigned_date" json:"assigned_date"`
	DeadlineDate    time.Time      `db:"deadline_date" json:"deadline_date"`
	Requirements    pq.StringArray `db:"requirements" json:"requirements"`
	Deliverables    Deliverables   `db:"deliverables" json:"deliverables"`
	MaxScore        int            `db:"max_score" json:"max_score"`
	WeightProject   int            `db:"weight_project" json:"weight_project"`
	WeightAttend    int            `db:"weight_attendance" json:"weight_attendance"`
	WeightTiming    int            `db:"weight_timing" json:"weight_timing"`
	Status          ProjectStatus  `db:"status" json:"status"`
	AssignedBy      string         `db:"assigned_by" json:"assigned_by"`
	Instructions    *string        `db:"instructions" json:"instructions,omitempty"`
	Resources       pq.StringArray `db:"resources" json:"resources"`
	CompletedDate   *time.Time     `db:"completed_date" json:"completed_date,omitempty"`
	CompletedBy     *string        `db:"completed_by" json:"completed_by,omitempty"`
	CompletionNotes *string        `db:"completion_notes" json:"completion_notes,omitempty"`
	IsActive        bool           `db:"is_active" json:"is_active"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// SubmissionStatus is the review state of a project submission.
type SubmissionStatus string

const (
	SubmissionSubmitted   SubmissionStatus = "submitted"
	SubmissionUnderReview SubmissionStatus = "under_review"
	SubmissionGraded      SubmissionStatus = "graded"
	SubmissionReturned    SubmissionStatus = "returned"
	SubmissionResubmitted SubmissionStatus = "resubmitted"
)

// Valid returns true when the status is supported.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionSubmitted, SubmissionUnderReview, SubmissionGraded,
		SubmissionReturned, SubmissionResubmitted:
		return true
	default:
		return false
	}
}

// SubmissionTiming classifies when a submission landed relative to the deadline.
type SubmissionTiming string

const (
	TimingEarly  SubmissionTiming = "early"
	TimingOnTime SubmissionTiming = "on_time"
	TimingLate   SubmissionTiming = "late"
)

// SubmissionFile records one uploaded artifact's metadata; blobs live in storage.
type SubmissionFile struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	FileName     string    `json:"file_name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	Type         string    `json:"type"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// SubmissionFiles is the JSONB column of uploaded artifacts.
type SubmissionFiles []SubmissionFile

// Value implements driver.Valuer.
func (f SubmissionFiles) Value() (driver.Value, error) { return json.Marshal(f) }

// Scan implements sql.Scanner.
func (f *SubmissionFiles) Scan(src interface{}) error { return scanJSON(src, f) }

// ProjectSubmission is one student's work for a project. Active rows are
// unique per (project, student). DaysFromDeadline is positive when early.
type ProjectSubmission struct {
	ID               string           `db:"id" json:"id"`
	ProjectID        string           `db:"project_id" json:"project_id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	BatchID          string           `db:"batch_id" json:"batch_id"`
	SubmittedDate    time.Time        `db:"submitted_date" json:"submitted_date"`
	Files            SubmissionFiles  `db:"files" json:"files"`
	Description      *string          `db:"description" json:"description,omitempty"`
	Notes            *string          `db:"notes" json:"notes,omitempty"`
	Score            *float64         `db:"score" json:"score,omitempty"`
	Feedback         *string          `db:"feedback" json:"feedback,omitempty"`
	GradedBy         *string          `db:"graded_by" json:"graded_by,omitempty"`
	GradedDate       *time.Time       `db:"graded_date" json:"graded_date,omitempty"`
	ReviewedBy       *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedDate     *time.Time       `db:"reviewed_date" json:"reviewed_date,omitempty"`
	Status           SubmissionStatus `db:"status" json:"status"`
	SubmissionTiming SubmissionTiming `db:"submission_timing" json:"submission_timing"`
	DaysFromDeadline int              `db:"days_from_deadline" json:"days_from_deadline"`
	AttendanceScore  *float64         `db:"attendance_score" json:"attendance_score,omitempty"`
	FinalScore       *float64         `db:"final_score" json:"final_score,omitempty"`
	Rank             *int             `db:"rank" json:"rank,omitempty"`
	Version          int              `db:"version" json:"version"`
	PreviousID       *string          `db:"previous_id" json:"previous_id,omitempty"`
	IsActive         bool             `db:"is_active" json:"is_active"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// ScoreStats summarises a score series.
type ScoreStats struct {
	Average float64 `json:"average"`
	Highest float64 `json:"highest"`
	Lowest  float64 `json:"lowest"`
	Median  float64 `json:"median"`
}

// Value implements driver.Valuer.
func (s ScoreStats) Value() (driver.Value, error) { return json.Marshal(s) }

// Scan implements sql.Scanner.
func (s *ScoreStats) Scan(src interface{}) error { return scanJSON(src, s) }

// SubmissionTimingStats counts submissions by timing class.
type SubmissionTimingStats struct {
	Early  int `json:"early"`
	OnTime int `json:"on_time"`
	Late   int `json:"late"`
}

// Value implements driver.Valuer.
func (s SubmissionTimingStats) Value() (driver.Value, error) { return json.Marshal(s) }

// Scan implements sql.Scanner.
func (s *SubmissionTimingStats) Scan(src interface{}) error { return scanJSON(src, s) }

// GradeDistribution buckets final scores into letter grades.
type GradeDistribution struct {
	APlus int `json:"A+"`
	A     int `json:"A"`
	BPlus int `json:"B+"`
	B     int `json:"B"`
	CPlus int `json:"C+"`
	C     int `json:"C"`
	F     int `json:"F"`
}

// Value implements driver.Valuer.
func (g GradeDistribution) Value() (driver.Value, error) { return json.Marshal(g) }

// Scan implements sql.Scanner.
func (g *GradeDistribution) Scan(src interface{}) error { return scanJSON(src, g) }

// TopPerformer is one of the up-to-five best submissions for a project.
type TopPerformer struct {
	StudentID    string  `json:"student_id"`
	SubmissionID string  `json:"submission_id"`
	FinalScore   float64 `json:"final_score"`
	Rank         int     `json:"rank"`
}

// TopPerformers is the JSONB column of best submissions.
type TopPerformers []TopPerformer

// Value implements driver.Valuer.
func (t TopPerformers) Value() (driver.Value, error) { return json.Marshal(t) }

// Scan implements sql.Scanner.
func (t *TopPerformers) Scan(src interface{}) error { return scanJSON(src, t) }

// ProjectAnalytics is a derived cache keyed by project; the submission set is
// the source of truth and every submission or grade write recomputes the row.
type ProjectAnalytics struct {
	ID                   string                `db:"id" json:"id"`
	ProjectID            string                `db:"project_id" json:"project_id"`
	BatchID              string                `db:"batch_id" json:"batch_id"`
	TotalStudents        int                   `db:"total_students" json:"total_students"`
	SubmittedCount       int                   `db:"submitted_count" json:"submitted_count"`
	PendingCount         int                   `db:"pending_count" json:"pending_count"`
	GradedCount          int                   `db:"graded_count" json:"graded_count"`
	SubmissionStats      SubmissionTimingStats `db:"submission_stats" json:"submission_stats"`
	ScoreStats           ScoreStats            `db:"score_stats" json:"score_stats"`
	AttendanceStats      ScoreStats            `db:"attendance_stats" json:"attendance_stats"`
	FinalScoreStats      ScoreStats            `db:"final_score_stats" json:"final_score_stats"`
	GradeDistribution    GradeDistribution     `db:"grade_distribution" json:"grade_distribution"`
	TopPerformers        TopPerformers         `db:"top_performers" json:"top_performers"`
	CompletionRate       int                   `db:"completion_rate" json:"completion_rate"`
	OnTimeSubmissionRate int                   `db:"on_time_rate" json:"on_time_submission_rate"`
	LastUpdated          time.Time             `db:"last_updated" json:"last_updated"`
}
