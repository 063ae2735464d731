package models

import "time"

// DepartmentName is one of the four fixed centre departments.
type DepartmentName string

const (
	DepartmentCADD      DepartmentName = "CADD"
	DepartmentLivewire  DepartmentName = "LIVEWIRE"
	DepartmentDreamzone DepartmentName = "DREAMZONE"
	DepartmentSynergy   DepartmentName = "SYNERGY"
)

// Valid returns true when the name is a supported department.
func (n DepartmentName) Valid() bool {
	switch n {
	case DepartmentCADD, DepartmentLivewire, DepartmentDreamzone, DepartmentSynergy:
		return true
	default:
		return false
	}
}

// Department groups courses under one of the centre's four wings.
type Department struct {
	ID              string         `db:"id" json:"id"`
	Name            DepartmentName `db:"name" json:"name"`
	Code            string         `db:"code" json:"code"`
	Description     *string        `db:"description" json:"description,omitempty"`
	HeadUserID      *string        `db:"head_user_id" json:"head_user_id,omitempty"`
	EstablishedYear *int           `db:"established_year" json:"established_year,omitempty"`
	ContactEmail    *string        `db:"contact_email" json:"contact_email,omitempty"`
	ContactPhone    *string        `db:"contact_phone" json:"contact_phone,omitempty"`
	Location        *string        `db:"location" json:"location,omitempty"`
	IsActive        bool           `db:"is_active" json:"is_active"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// DepartmentOverview joins a department with its dependent counts.
type DepartmentOverview struct {
	Department
	CourseCount  int `db:"course_count" json:"course_count"`
	BatchCount   int `db:"batch_count" json:"batch_count"`
	StudentCount int `db:"student_count" json:"student_count"`
}
