package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
)

type batchRepository interface {
	Create(ctx context.Context, batch *models.Batch) error
	GetByID(ctx context.Context, id string) (*models.Batch, error)
	List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error)
	Update(ctx context.Context, batch *models.Batch) error
	DeleteCascade(ctx context.Context, id string) error
	CountStudents(ctx context.Context, id string) (int, error)
	Overview(ctx context.Context, id string) (*models.BatchOverview, error)
}

type courseReader interface {
	GetByID(ctx context.Context, id string) (*models.Course, error)
}

// CreateBatchRequest describes batch creation payload.
type CreateBatchRequest struct {
	Name         string          `json:"name" validate:"required,max=100"`
	CourseID     string          `json:"course_id" validate:"required"`
	AcademicYear string          `json:"academic_year" validate:"required,max=9"`
	Section      string          `json:"section" validate:"required,max=10"`
	Timing       models.TimeSlot `json:"timing" validate:"required,time_slot"`
	StartDate    time.Time       `json:"start_date" validate:"required"`
	EndDate      *time.Time      `json:"end_date,omitempty"`
	MaxStudents  int             `json:"max_students" validate:"omitempty,min=1,max=50"`
}

// UpdateBatchRequest describes batch update payload.
type UpdateBatchRequest struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,max=100"`
	Section     *string          `json:"section,omitempty" validate:"omitempty,max=10"`
	Timing      *models.TimeSlot `json:"timing,omitempty" validate:"omitempty,time_slot"`
	StartDate   *time.Time       `json:"start_date,omitempty"`
	EndDate     *time.Time       `json:"end_date,omitempty"`
	MaxStudents *int             `json:"max_students,omitempty" validate:"omitempty,min=1,max=50"`
	IsArchived  *bool            `json:"is_archived,omitempty"`
}

// BatchService manages student cohorts and their lifecycle.
type BatchService struct {
	repo      batchRepository
	courses   courseReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBatchService constructs BatchService.
func NewBatchService(repo batchRepository, courses courseReader, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &BatchService{repo: repo, courses: courses, validator: validate, logger: logger}
	svc.validator.RegisterValidation("time_slot", func(fl validator.FieldLevel) bool {
		return models.TimeSlot(fl.Field().String()).Valid()
	})
	return svc
}

// List returns batches with pagination metadata. Teachers see only batches
// they created; admins see everything.
func (s *BatchService) List(ctx context.Context, principal models.Principal, filter models.BatchFilter) ([]models.Batch, *models.Pagination, error) {
	if !principal.IsAdmin() {
		filter.CreatedBy = principal.UserID
	}
	batches, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return batches, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one batch visible to the principal.
func (s *BatchService) Get(ctx context.Context, principal models.Principal, id string) (*models.Batch, error) {
	batch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if !principal.IsAdmin() && batch.CreatedBy != principal.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "batch belongs to another teacher")
	}
	return batch, nil
}

// Overview returns a batch annotated with its roster size.
func (s *BatchService) Overview(ctx context.Context, principal models.Principal, id string) (*models.BatchOverview, error) {
	if _, err := s.Get(ctx, principal, id); err != nil {
		return nil, err
	}
	row, err := s.repo.Overview(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch overview")
	}
	return row, nil
}

// Create registers a batch under an existing course.
func (s *BatchService) Create(ctx context.Context, principal models.Principal, req CreateBatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	if req.EndDate != nil && !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	course, err := s.courses.GetByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	maxStudents := req.MaxStudents
	if maxStudents == 0 {
		maxStudents = course.MaxStudentsPerBatch
	}
	batch := &models.Batch{
		Name:         req.Name,
		CourseID:     req.CourseID,
		AcademicYear: req.AcademicYear,
		Section:      req.Section,
		Timing:       req.Timing,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		MaxStudents:  maxStudents,
		CreatedBy:    principal.UserID,
	}
	if err := s.repo.Create(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create batch")
	}
	return batch, nil
}

// Update changes mutable batch fields.
func (s *BatchService) Update(ctx context.Context, principal models.Principal, id string, req UpdateBatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	batch, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		batch.Name = *req.Name
	}
	if req.Section != nil {
		batch.Section = *req.Section
	}
	if req.Timing != nil {
		batch.Timing = *req.Timing
	}
	if req.StartDate != nil {
		batch.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		batch.EndDate = req.EndDate
	}
	if req.MaxStudents != nil {
		batch.MaxStudents = *req.MaxStudents
	}
	if req.IsArchived != nil {
		batch.IsArchived = *req.IsArchived
	}
	if batch.EndDate != nil && !batch.EndDate.After(batch.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	if err := s.repo.Update(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update batch")
	}
	return batch, nil
}

// ToggleFinished flips the finished flag. Finishing a batch is the
// precondition for assigning its final project.
func (s *BatchService) ToggleFinished(ctx context.Context, principal models.Principal, id string) (*models.Batch, error) {
	batch, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	batch.IsFinished = !batch.IsFinished
	if batch.IsFinished {
		if batch.EndDate == nil {
			now := time.Now().UTC()
			batch.EndDate = &now
		}
	} else {
		batch.EndDate = nil
	}
	if err := s.repo.Update(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle batch finished flag")
	}
	return batch, nil
}

// Delete removes a batch along with its students and their attendance.
func (s *BatchService) Delete(ctx context.Context, principal models.Principal, id string) error {
	batch, err := s.Get(ctx, principal, id)
	if err != nil {
		return err
	}
	count, err := s.repo.CountStudents(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count batch students")
	}
	if err := s.repo.DeleteCascade(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete batch")
	}
	s.logger.Info("batch deleted",
		zap.String("batch_id", batch.ID),
		zap.Int("students_removed", count))
	return nil
}
