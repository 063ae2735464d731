package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/repository"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
)

type pcRepository interface {
	Create(ctx context.Context, pc *models.PC) error
	GetByID(ctx context.Context, id string) (*models.PC, error)
	List(ctx context.Context) ([]models.PC, error)
	Update(ctx context.Context, pc *models.PC) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, status models.PCStatus) (int, error)
}

type bookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	HasPCConflict(ctx context.Context, pcID string, date time.Time, slot models.TimeSlot) (bool, error)
	HasStudentConflict(ctx context.Context, studentID string, date time.Time, slot models.TimeSlot) (bool, error)
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus) error
	DeleteBulk(ctx context.Context, filter models.BookingClearFilter) (int, error)
	ListWithAttendance(ctx context.Context, date time.Time) ([]models.BookingWithAttendance, error)
	CountForDate(ctx context.Context, date time.Time) (int, error)
}

type studentReader interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
}

// CreatePCRequest describes lab machine registration payload.
type CreatePCRequest struct {
	PCNumber string          `json:"pc_number" validate:"required,max=20"`
	Row      models.PCRow    `json:"row" validate:"required,pc_row"`
	Position int             `json:"position" validate:"required,min=1,max=50"`
	Status   models.PCStatus `json:"status" validate:"omitempty,pc_status"`
	Specs    *string         `json:"specs,omitempty"`
	Notes    *string         `json:"notes,omitempty"`
}

// UpdatePCRequest describes lab machine update payload.
type UpdatePCRequest struct {
	PCNumber        *string          `json:"pc_number,omitempty" validate:"omitempty,max=20"`
	Row             *models.PCRow    `json:"row,omitempty" validate:"omitempty,pc_row"`
	Position        *int             `json:"position,omitempty" validate:"omitempty,min=1,max=50"`
	Status          *models.PCStatus `json:"status,omitempty" validate:"omitempty,pc_status"`
	Specs           *string          `json:"specs,omitempty"`
	LastMaintenance *time.Time       `json:"last_maintenance,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
}

// CreateBookingRequest describes a lab reservation payload.
type CreateBookingRequest struct {
	PCID        string          `json:"pc_id" validate:"required"`
	Date        time.Time       `json:"date" validate:"required"`
	TimeSlot    models.TimeSlot `json:"time_slot" validate:"required,time_slot"`
	BookedFor   string          `json:"booked_for" validate:"required,max=150"`
	StudentID   *string         `json:"student_id,omitempty"`
	StudentName string          `json:"student_name,omitempty"`
	TeacherName string          `json:"teacher_name,omitempty"`
	BatchID     *string         `json:"batch_id,omitempty"`
	Purpose     string          `json:"purpose" validate:"required,max=200"`
	Notes       *string         `json:"notes,omitempty"`
}

// ApplyPreviousRequest copies one day's live bookings onto another day.
type ApplyPreviousRequest struct {
	SourceDate time.Time `json:"source_date" validate:"required"`
	TargetDate time.Time `json:"target_date" validate:"required"`
}

// LabService manages machines and slot reservations. The store's partial
// unique indexes are the final arbiter for double bookings; the service's
// pre-checks only produce friendlier errors.
type LabService struct {
	pcs       pcRepository
	bookings  bookingRepository
	students  studentReader
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// SetMetrics attaches the instrumentation sink; a nil sink disables counting.
func (s *LabService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// NewLabService constructs LabService.
func NewLabService(pcs pcRepository, bookings bookingRepository, students studentReader, validate *validator.Validate, logger *zap.Logger) *LabService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &LabService{pcs: pcs, bookings: bookings, students: students, validator: validate, logger: logger}
	svc.validator.RegisterValidation("time_slot", func(fl validator.FieldLevel) bool {
		return models.TimeSlot(fl.Field().String()).Valid()
	})
	svc.validator.RegisterValidation("pc_status", func(fl validator.FieldLevel) bool {
		return models.PCStatus(fl.Field().String()).Valid()
	})
	svc.validator.RegisterValidation("pc_row", func(fl validator.FieldLevel) bool {
		return models.PCRow(fl.Field().String()).Valid()
	})
	return svc
}

// ListPCs returns the lab grid in row/position order.
func (s *LabService) ListPCs(ctx context.Context) ([]models.PC, error) {
	pcs, err := s.pcs.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pcs")
	}
	return pcs, nil
}

// PCsByRow returns the lab grid grouped by physical row, each row ordered
// by seat position.
func (s *LabService) PCsByRow(ctx context.Context) (map[models.PCRow][]models.PC, error) {
	pcs, err := s.pcs.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pcs")
	}
	grouped := make(map[models.PCRow][]models.PC)
	for _, pc := range pcs {
		grouped[pc.Row] = append(grouped[pc.Row], pc)
	}
	for row := range grouped {
		sort.Slice(grouped[row], func(i, j int) bool {
			return grouped[row][i].Position < grouped[row][j].Position
		})
	}
	return grouped, nil
}

// CreatePC registers a machine.
func (s *LabService) CreatePC(ctx context.Context, principal models.Principal, req CreatePCRequest) (*models.PC, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can manage lab machines")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pc payload")
	}
	status := req.Status
	if status == "" {
		status = models.PCActive
	}
	pc := &models.PC{
		PCNumber: req.PCNumber,
		Row:      req.Row,
		Position: req.Position,
		Status:   status,
		Specs:    req.Specs,
		Notes:    req.Notes,
	}
	if err := s.pcs.Create(ctx, pc); err != nil {
		if repository.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "pc number already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create pc")
	}
	return pc, nil
}

// UpdatePC changes a machine's mutable fields.
func (s *LabService) UpdatePC(ctx context.Context, principal models.Principal, id string, req UpdatePCRequest) (*models.PC, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can manage lab machines")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pc payload")
	}
	pc, err := s.pcs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pc not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pc")
	}
	if req.PCNumber != nil {
		pc.PCNumber = *req.PCNumber
	}
	if req.Row != nil {
		pc.Row = *req.Row
	}
	if req.Position != nil {
		pc.Position = *req.Position
	}
	if req.Status != nil {
		pc.Status = *req.Status
	}
	if req.Specs != nil {
		pc.Specs = req.Specs
	}
	if req.LastMaintenance != nil {
		pc.LastMaintenance = req.LastMaintenance
	}
	if req.Notes != nil {
		pc.Notes = req.Notes
	}
	if err := s.pcs.Update(ctx, pc); err != nil {
		if repository.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "pc number already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update pc")
	}
	return pc, nil
}

// DeletePC removes a machine from the grid.
func (s *LabService) DeletePC(ctx context.Context, principal models.Principal, id string) error {
	if !principal.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can manage lab machines")
	}
	if _, err := s.pcs.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "pc not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pc")
	}
	if err := s.pcs.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete pc")
	}
	return nil
}

// Book reserves one machine for one slot. Both exclusivity rules are
// pre-checked and then re-enforced by the store on insert.
func (s *LabService) Book(ctx context.Context, principal models.Principal, req CreateBookingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	pc, err := s.pcs.GetByID(ctx, req.PCID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pc not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pc")
	}
	if pc.Status != models.PCActive {
		return nil, appErrors.Clone(appErrors.ErrCapacity, "pc is not active")
	}
	date := truncateToDay(req.Date)
	if date.Before(truncateToDay(time.Now().UTC())) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "booking date cannot be in the past")
	}
	studentName := req.StudentName
	batchID := req.BatchID
	if req.StudentID != nil {
		student, err := s.students.GetByID(ctx, *req.StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		if !student.IsActive {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student is not active")
		}
		if req.BatchID != nil && *req.BatchID != student.BatchID {
			return nil, appErrors.Clone(appErrors.ErrHierarchyMismatch, "student does not belong to the given batch")
		}
		if batchID == nil {
			batchID = &student.BatchID
		}
		studentName = student.Name
		taken, err := s.bookings.HasStudentConflict(ctx, *req.StudentID, date, req.TimeSlot)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student conflict")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already has a booking in this slot")
		}
	}
	taken, err := s.bookings.HasPCConflict(ctx, req.PCID, date, req.TimeSlot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pc conflict")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "pc already booked in this slot")
	}
	booking := &models.Booking{
		PCID:        req.PCID,
		Date:        date,
		TimeSlot:    req.TimeSlot,
		BookedFor:   req.BookedFor,
		StudentID:   req.StudentID,
		StudentName: studentName,
		TeacherName: req.TeacherName,
		BatchID:     batchID,
		Purpose:     req.Purpose,
		Notes:       req.Notes,
		Status:      models.BookingBooked,
		BookedBy:    principal.UserID,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		if repository.IsUniqueViolation(err, "") {
			s.metrics.ObserveBookingConflict()
			return nil, appErrors.Clone(appErrors.ErrConflict, "slot was booked concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}
	return booking, nil
}

// ListBookings returns live bookings matching the filter.
func (s *LabService) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	if filter.Date != nil {
		d := truncateToDay(*filter.Date)
		filter.Date = &d
	}
	bookings, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return bookings, nil
}

// UpdateBookingStatus flips one booking's lifecycle state; cancelled rows
// immediately free both the machine and the student for the slot.
func (s *LabService) UpdateBookingStatus(ctx context.Context, principal models.Principal, id string, status models.BookingStatus) (*models.Booking, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid booking status")
	}
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if !principal.IsAdmin() && booking.BookedBy != principal.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "booking belongs to another teacher")
	}
	if err := s.bookings.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update booking status")
	}
	booking.Status = status
	return booking, nil
}

// ClearBookings bulk-deletes bookings matched by the compound filter.
func (s *LabService) ClearBookings(ctx context.Context, principal models.Principal, filter models.BookingClearFilter) (int, error) {
	if !principal.IsAdmin() {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "only admins can bulk clear bookings")
	}
	filter.Date = truncateToDay(filter.Date)
	deleted, err := s.bookings.DeleteBulk(ctx, filter)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear bookings")
	}
	s.logger.Info("bookings cleared",
		zap.Time("date", filter.Date),
		zap.Int("deleted", deleted),
		zap.String("by", principal.UserID))
	return deleted, nil
}

// Availability reports how many active machines remain free on a date.
func (s *LabService) Availability(ctx context.Context, date time.Time) (*models.LabAvailability, error) {
	day := truncateToDay(date)
	total, err := s.pcs.CountByStatus(ctx, models.PCActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pcs")
	}
	booked, err := s.bookings.CountForDate(ctx, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count bookings")
	}
	available := total - booked
	if available < 0 {
		available = 0
	}
	return &models.LabAvailability{
		Date:        day,
		TotalPCs:    total,
		BookedCount: booked,
		Available:   available,
	}, nil
}

// BookingsWithAttendance pairs a day's bookings with the booked students'
// same-day ledger entries for the follow-up view.
func (s *LabService) BookingsWithAttendance(ctx context.Context, date time.Time) ([]models.BookingWithAttendance, error) {
	rows, err := s.bookings.ListWithAttendance(ctx, truncateToDay(date))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings with attendance")
	}
	return rows, nil
}

// ApplyPrevious copies one day's live bookings onto a later day, skipping
// any that would now collide.
func (s *LabService) ApplyPrevious(ctx context.Context, principal models.Principal, req ApplyPreviousRequest) (*models.ApplyPreviousResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid apply payload")
	}
	source := truncateToDay(req.SourceDate)
	target := truncateToDay(req.TargetDate)
	if !target.After(source) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target date must be after source date")
	}
	existing, err := s.bookings.List(ctx, models.BookingFilter{Date: &source})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load source bookings")
	}
	result := &models.ApplyPreviousResult{}
	for _, prev := range existing {
		clone := &models.Booking{
			PCID:        prev.PCID,
			Date:        target,
			TimeSlot:    prev.TimeSlot,
			BookedFor:   prev.BookedFor,
			StudentID:   prev.StudentID,
			StudentName: prev.StudentName,
			TeacherName: prev.TeacherName,
			BatchID:     prev.BatchID,
			Purpose:     prev.Purpose,
			Notes:       prev.Notes,
			Status:      models.BookingBooked,
			BookedBy:    principal.UserID,
		}
		if err := s.bookings.Create(ctx, clone); err != nil {
			if repository.IsUniqueViolation(err, "") {
				result.SkippedCount++
				continue
			}
			result.Errors = append(result.Errors, "pc "+prev.PCID+" slot "+string(prev.TimeSlot)+": "+err.Error())
			continue
		}
		result.AppliedCount++
	}
	return result, nil
}
