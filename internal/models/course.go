package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// CourseLevel grades course difficulty.
type CourseLevel string

const (
	LevelBeginner     CourseLevel = "Beginner"
	LevelIntermediate CourseLevel = "Intermediate"
	LevelAdvanced     CourseLevel = "Advanced"
	LevelExpert       CourseLevel = "Expert"
)

// Valid returns true when the level is supported.
func (l CourseLevel) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert:
		return true
	default:
		return false
	}
}

// CourseCategory buckets courses by discipline.
type CourseCategory string

const (
	CategoryDesign      CourseCategory = "Design"
	CategoryProgramming CourseCategory = "Programming"
	CategoryCivil       CourseCategory = "Civil"
	CategoryMechanical  CourseCategory = "Mechanical"
	CategoryElectrical  CourseCategory = "Electrical"
	CategoryArchitect   CourseCategory = "Architecture"
	CategoryMultimedia  CourseCategory = "Multimedia"
	CategoryOther       CourseCategory = "Other"
)

// Valid returns true when the category is supported.
func (c CourseCategory) Valid() bool {
	switch c {
	case CategoryDesign, CategoryProgramming, CategoryCivil, CategoryMechanical,
		CategoryElectrical, CategoryArchitect, CategoryMultimedia, CategoryOther:
		return true
	default:
		return false
	}
}

// FeeCurrency is the billing currency for a course.
type FeeCurrency string

const (
	CurrencyINR FeeCurrency = "INR"
	CurrencyUSD FeeCurrency = "USD"
	CurrencyEUR FeeCurrency = "EUR"
)

// Valid returns true when the currency is supported.
func (c FeeCurrency) Valid() bool {
	switch c {
	case CurrencyINR, CurrencyUSD, CurrencyEUR:
		return true
	default:
		return false
	}
}

// SyllabusModule is one named unit within a course syllabus.
type SyllabusModule struct {
	Module   string   `json:"module"`
	Topics   []string `json:"topics"`
	Duration *string  `json:"duration,omitempty"`
}

// SyllabusModules is the JSONB column holding the full syllabus.
type SyllabusModules []SyllabusModule

// Value implements driver.Valuer.
func (s SyllabusModules) Value() (driver.Value, error) { return json.Marshal(s) }

// Scan implements sql.Scanner.
func (s *SyllabusModules) Scan(src interface{}) error { return scanJSON(src, s) }

// Course is a sellable programme offered by a department.
type Course struct {
	ID                  string          `db:"id" json:"id"`
	Name                string          `db:"name" json:"name"`
	Code                string          `db:"code" json:"code"`
	DepartmentID        string          `db:"department_id" json:"department_id"`
	Description         *string         `db:"description" json:"description,omitempty"`
	DurationMonths      int             `db:"duration_months" json:"duration_months"`
	DurationHours       *int            `db:"duration_hours" json:"duration_hours,omitempty"`
	FeeAmount           float64         `db:"fee_amount" json:"fee_amount"`
	FeeCurrency         FeeCurrency     `db:"fee_currency" json:"fee_currency"`
	InstallmentsAllowed bool            `db:"installments_allowed" json:"installments_allowed"`
	InstallmentsCount   int             `db:"installments_count" json:"installments_count"`
	Prerequisites       pq.StringArray  `db:"prerequisites" json:"prerequisites"`
	Syllabus            SyllabusModules `db:"syllabus" json:"syllabus"`
	CertProvided        bool            `db:"cert_provided" json:"cert_provided"`
	CertName            *string         `db:"cert_name" json:"cert_name,omitempty"`
	CertAuthority       *string         `db:"cert_authority" json:"cert_authority,omitempty"`
	Level               CourseLevel     `db:"level" json:"level"`
	Category            CourseCategory  `db:"category" json:"category"`
	Software            pq.StringArray  `db:"software" json:"software"`
	IsActive            bool            `db:"is_active" json:"is_active"`
	MaxStudentsPerBatch int             `db:"max_students_per_batch" json:"max_students_per_batch"`
	CreatedBy           string          `db:"created_by" json:"created_by"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures list filters for courses.
type CourseFilter struct {
	DepartmentID string
	Active       *bool
	Search       string
	Page         int
	PageSize     int
}

// CourseOverview joins a course with dependent counts.
type CourseOverview struct {
	Course
	BatchCount   int `db:"batch_count" json:"batch_count"`
	StudentCount int `db:"student_count" json:"student_count"`
}
