package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/repository"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
	CountBatches(ctx context.Context, id string) (int, error)
	Overview(ctx context.Context, id string) (*models.CourseOverview, error)
}

type departmentReader interface {
	GetByID(ctx context.Context, id string) (*models.Department, error)
}

// CreateCourseRequest describes course creation payload.
type CreateCourseRequest struct {
	Name                string                 `json:"name" validate:"required,max=150"`
	Code                string                 `json:"code" validate:"required,max=20"`
	DepartmentID        string                 `json:"department_id" validate:"required"`
	Description         *string                `json:"description,omitempty"`
	DurationMonths      int                    `json:"duration_months" validate:"required,min=1,max=60"`
	DurationHours       *int                   `json:"duration_hours,omitempty"`
	FeeAmount           float64                `json:"fee_amount" validate:"min=0"`
	FeeCurrency         models.FeeCurrency     `json:"fee_currency" validate:"omitempty,fee_currency"`
	InstallmentsAllowed bool                   `json:"installments_allowed"`
	InstallmentsCount   int                    `json:"installments_count" validate:"min=0,max=24"`
	Prerequisites       []string               `json:"prerequisites,omitempty"`
	Syllabus            models.SyllabusModules `json:"syllabus,omitempty"`
	CertProvided        bool                   `json:"cert_provided"`
	CertName            *string                `json:"cert_name,omitempty"`
	CertAuthority       *string                `json:"cert_authority,omitempty"`
	Level               models.CourseLevel     `json:"level" validate:"required,course_level"`
	Category            models.CourseCategory  `json:"category" validate:"required,course_category"`
	Software            []string               `json:"software,omitempty"`
	MaxStudentsPerBatch int                    `json:"max_students_per_batch" validate:"min=1,max=100"`
}

// UpdateCourseRequest describes course update payload.
type UpdateCourseRequest struct {
	Name                *string                 `json:"name,omitempty" validate:"omitempty,max=150"`
	Description         *string                 `json:"description,omitempty"`
	DurationMonths      *int                    `json:"duration_months,omitempty" validate:"omitempty,min=1,max=60"`
	DurationHours       *int                    `json:"duration_hours,omitempty"`
	FeeAmount           *float64                `json:"fee_amount,omitempty" validate:"omitempty,min=0"`
	InstallmentsAllowed *bool                   `json:"installments_allowed,omitempty"`
	InstallmentsCount   *int                    `json:"installments_count,omitempty" validate:"omitempty,min=0,max=24"`
	Prerequisites       []string                `json:"prerequisites,omitempty"`
	Syllabus            *models.SyllabusModules `json:"syllabus,omitempty"`
	CertProvided        *bool                   `json:"cert_provided,omitempty"`
	CertName            *string                 `json:"cert_name,omitempty"`
	CertAuthority       *string                 `json:"cert_authority,omitempty"`
	Level               *models.CourseLevel     `json:"level,omitempty" validate:"omitempty,course_level"`
	Category            *models.CourseCategory  `json:"category,omitempty" validate:"omitempty,course_category"`
	Software            []string                `json:"software,omitempty"`
	MaxStudentsPerBatch *int                    `json:"max_students_per_batch,omitempty" validate:"omitempty,min=1,max=100"`
	IsActive            *bool                   `json:"is_active,omitempty"`
}

// CourseService manages sellable programmes under departments.
type CourseService struct {
	repo        courseRepository
	departments departmentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, departments departmentReader, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CourseService{repo: repo, departments: departments, validator: validate, logger: logger}
	svc.validator.RegisterValidation("course_level", func(fl validator.FieldLevel) bool {
		return models.CourseLevel(fl.Field().String()).Valid()
	})
	svc.validator.RegisterValidation("course_category", func(fl validator.FieldLevel) bool {
		return models.CourseCategory(fl.Field().String()).Valid()
	})
	svc.validator.RegisterValidation("fee_currency", func(fl validator.FieldLevel) bool {
		return models.FeeCurrency(fl.Field().String()).Valid()
	})
	return svc
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Overview returns a course annotated with dependent counts.
func (s *CourseService) Overview(ctx context.Context, id string) (*models.CourseOverview, error) {
	row, err := s.repo.Overview(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course overview")
	}
	return row, nil
}

// Create registers a course under an existing department.
func (s *CourseService) Create(ctx context.Context, principal models.Principal, req CreateCourseRequest) (*models.Course, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can manage courses")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.departments.GetByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	currency := req.FeeCurrency
	if currency == "" {
		currency = models.CurrencyINR
	}
	course := &models.Course{
		Name:                req.Name,
		Code:                req.Code,
		DepartmentID:        req.DepartmentID,
		Description:         req.Description,
		DurationMonths:      req.DurationMonths,
		DurationHours:       req.DurationHours,
		FeeAmount:           req.FeeAmount,
		FeeCurrency:         currency,
		InstallmentsAllowed: req.InstallmentsAllowed,
		InstallmentsCount:   req.InstallmentsCount,
		Prerequisites:       req.Prerequisites,
		Syllabus:            req.Syllabus,
		CertProvided:        req.CertProvided,
		CertName:            req.CertName,
		CertAuthority:       req.CertAuthority,
		Level:               req.Level,
		Category:            req.Category,
		Software:            req.Software,
		IsActive:            true,
		MaxStudentsPerBatch: req.MaxStudentsPerBatch,
		CreatedBy:           principal.UserID,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if repository.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "course code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update changes mutable course fields. The owning department is fixed.
func (s *CourseService) Update(ctx context.Context, principal models.Principal, id string, req UpdateCourseRequest) (*models.Course, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can manage courses")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		course.Name = *req.Name
	}
	if req.Description != nil {
		course.Description = req.Description
	}
	if req.DurationMonths != nil {
		course.DurationMonths = *req.DurationMonths
	}
	if req.DurationHours != nil {
		course.DurationHours = req.DurationHours
	}
	if req.FeeAmount != nil {
		course.FeeAmount = *req.FeeAmount
	}
	if req.InstallmentsAllowed != nil {
		course.InstallmentsAllowed = *req.InstallmentsAllowed
	}
	if req.InstallmentsCount != nil {
		course.InstallmentsCount = *req.InstallmentsCount
	}
	if req.Prerequisites != nil {
		course.Prerequisites = req.Prerequisites
	}
	if req.Syllabus != nil {
		course.Syllabus = *req.Syllabus
	}
	if req.CertProvided != nil {
		course.CertProvided = *req.CertProvided
	}
	if req.CertName != nil {
		course.CertName = req.CertName
	}
	if req.CertAuthority != nil {
		course.CertAuthority = req.CertAuthority
	}
	if req.Level != nil {
		course.Level = *req.Level
	}
	if req.Category != nil {
		course.Category = *req.Category
	}
	if req.Software != nil {
		course.Software = req.Software
	}
	if req.MaxStudentsPerBatch != nil {
		course.MaxStudentsPerBatch = *req.MaxStudentsPerBatch
	}
	if req.IsActive != nil {
		course.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Delete removes a course; it is refused while batches still reference it.
func (s *CourseService) Delete(ctx context.Context, principal models.Principal, id string) error {
	if !principal.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can manage courses")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountBatches(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count course batches")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrDependency, "course has batches; delete them first")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}
