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

type departmentRepository interface {
	Create(ctx context.Context, dept *models.Department) error
	GetByID(ctx context.Context, id string) (*models.Department, error)
	List(ctx context.Context) ([]models.Department, error)
	Update(ctx context.Context, dept *models.Department) error
	Delete(ctx context.Context, id string) error
	CountCourses(ctx context.Context, id string) (int, error)
	Overview(ctx context.Context) ([]models.DepartmentOverview, error)
}

// CreateDepartmentRequest describes department creation payload.
type CreateDepartmentRequest struct {
	Name            models.DepartmentName `json:"name" validate:"required,department_name"`
	Code            string                `json:"code" validate:"required,max=10"`
	Description     *string               `json:"description,omitempty"`
	HeadUserID      *string               `json:"head_user_id,omitempty"`
	EstablishedYear *int                  `json:"established_year,omitempty"`
	ContactEmail    *string               `json:"contact_email,omitempty" validate:"omitempty,email"`
	ContactPhone    *string               `json:"contact_phone,omitempty"`
	Location        *string               `json:"location,omitempty"`
}

// UpdateDepartmentRequest describes department update payload.
type UpdateDepartmentRequest struct {
	Description     *string `json:"description,omitempty"`
	HeadUserID      *string `json:"head_user_id,omitempty"`
	EstablishedYear *int    `json:"established_year,omitempty"`
	ContactEmail    *string `json:"contact_email,omitempty" validate:"omitempty,email"`
	ContactPhone    *string `json:"contact_phone,omitempty"`
	Location        *string `json:"location,omitempty"`
	IsActive        *bool   `json:"is_active,omitempty"`
}

// DepartmentService manages the centre's four fixed wings.
type DepartmentService struct {
	repo      departmentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService constructs DepartmentService.
func NewDepartmentService(repo departmentRepository, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &DepartmentService{repo: repo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("department_name", func(fl validator.FieldLevel) bool {
		return models.DepartmentName(fl.Field().String()).Valid()
	})
	return svc
}

// List returns all departments.
func (s *DepartmentService) List(ctx context.Context) ([]models.Department, error) {
	depts, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return depts, nil
}

// Overview returns departments annotated with dependent counts.
func (s *DepartmentService) Overview(ctx context.Context) ([]models.DepartmentOverview, error) {
	rows, err := s.repo.Overview(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department overview")
	}
	return rows, nil
}

// Get returns one department.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.Department, error) {
	dept, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return dept, nil
}

// Create registers a department. The name must be one of the four fixed
// wings and is unique at the store.
func (s *DepartmentService) Create(ctx context.Context, principal models.Principal, req CreateDepartmentRequest) (*models.Department, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can manage departments")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	dept := &models.Department{
		Name:            req.Name,
		Code:            req.Code,
		Description:     req.Description,
		HeadUserID:      req.HeadUserID,
		EstablishedYear: req.EstablishedYear,
		ContactEmail:    req.ContactEmail,
		ContactPhone:    req.ContactPhone,
		Location:        req.Location,
		IsActive:        true,
	}
	if err := s.repo.Create(ctx, dept); err != nil {
		if repository.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "department name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return dept, nil
}

// Update changes a department's mutable fields. The name is fixed after creation.
func (s *DepartmentService) Update(ctx context.Context, principal models.Principal, id string, req UpdateDepartmentRequest) (*models.Department, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can manage departments")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	dept, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Description != nil {
		dept.Description = req.Description
	}
	if req.HeadUserID != nil {
		dept.HeadUserID = req.HeadUserID
	}
	if req.EstablishedYear != nil {
		dept.EstablishedYear = req.EstablishedYear
	}
	if req.ContactEmail != nil {
		dept.ContactEmail = req.ContactEmail
	}
	if req.ContactPhone != nil {
		dept.ContactPhone = req.ContactPhone
	}
	if req.Location != nil {
		dept.Location = req.Location
	}
	if req.IsActive != nil {
		dept.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, dept); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	return dept, nil
}

// Delete removes a department; it is refused while courses still reference it.
func (s *DepartmentService) Delete(ctx context.Context, principal models.Principal, id string) error {
	if !principal.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can manage departments")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountCourses(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count department courses")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrDependency, "department has courses; delete them first")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete department")
	}
	return nil
}
