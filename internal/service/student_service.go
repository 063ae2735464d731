package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/repository"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
)

type studentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id string) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	ListByBatch(ctx context.Context, batchID string) ([]models.Student, error)
	RollNumbers(ctx context.Context, batchID string) ([]string, error)
	Update(ctx context.Context, student *models.Student) error
	DeleteCascade(ctx context.Context, id string) error
	Overview(ctx context.Context, filter models.StudentFilter) ([]models.StudentOverview, error)
}

type batchReader interface {
	GetByID(ctx context.Context, id string) (*models.Batch, error)
	CountStudents(ctx context.Context, id string) (int, error)
}

type studentAttendanceReader interface {
	StudentAggregate(ctx context.Context, studentID, batchID string) (present, absent, late int, err error)
}

// CreateStudentRequest describes admission payload. RollNo is optional; when
// empty the next free number in the batch is assigned.
type CreateStudentRequest struct {
	Name             string     `json:"name" validate:"required,max=150"`
	StudentID        string     `json:"student_id" validate:"required,max=30"`
	RollNo           string     `json:"roll_no,omitempty"`
	Email            *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string    `json:"phone,omitempty"`
	Address          *string    `json:"address,omitempty"`
	DateOfBirth      *time.Time `json:"date_of_birth,omitempty"`
	Gender           *string    `json:"gender,omitempty"`
	GuardianName     *string    `json:"guardian_name,omitempty"`
	GuardianPhone    *string    `json:"guardian_phone,omitempty"`
	EmergencyContact *string    `json:"emergency_contact,omitempty"`
	Qualification    *string    `json:"qualification,omitempty"`
	AdmissionDate    *time.Time `json:"admission_date,omitempty"`
	DepartmentID     string     `json:"department_id" validate:"required"`
	CourseID         string     `json:"course_id" validate:"required"`
	BatchID          string     `json:"batch_id" validate:"required"`
	TotalFees        float64    `json:"total_fees" validate:"min=0"`
}

// UpdateStudentRequest describes student update payload. StudentID changes
// are admin-only; BatchID moves the student to another batch of the same
// course.
type UpdateStudentRequest struct {
	Name             *string               `json:"name,omitempty" validate:"omitempty,max=150"`
	StudentID        *string               `json:"student_id,omitempty" validate:"omitempty,max=30"`
	RollNo           *string               `json:"roll_no,omitempty" validate:"omitempty,max=20"`
	BatchID          *string               `json:"batch_id,omitempty"`
	Email            *string               `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string               `json:"phone,omitempty"`
	Address          *string               `json:"address,omitempty"`
	GuardianName     *string               `json:"guardian_name,omitempty"`
	GuardianPhone    *string               `json:"guardian_phone,omitempty"`
	EmergencyContact *string               `json:"emergency_contact,omitempty"`
	Qualification    *string               `json:"qualification,omitempty"`
	FeesPaid         *float64              `json:"fees_paid,omitempty" validate:"omitempty,min=0"`
	TotalFees        *float64              `json:"total_fees,omitempty" validate:"omitempty,min=0"`
	PaymentStatus    *models.PaymentStatus `json:"payment_status,omitempty" validate:"omitempty,payment_status"`
	IsActive         *bool                 `json:"is_active,omitempty"`
}

// StudentService manages admissions and the denormalised hierarchy pins.
type StudentService struct {
	repo       studentRepository
	batches    batchReader
	courses    courseReader
	attendance studentAttendanceReader
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, batches batchReader, courses courseReader, attendance studentAttendanceReader, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &StudentService{repo: repo, batches: batches, courses: courses, attendance: attendance, validator: validate, logger: logger}
	svc.validator.RegisterValidation("payment_status", func(fl validator.FieldLevel) bool {
		return models.PaymentStatus(fl.Field().String()).Valid()
	})
	return svc
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Roster returns the active students of a batch in roll-number order.
func (s *StudentService) Roster(ctx context.Context, batchID string) ([]models.Student, error) {
	students, err := s.repo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batch roster")
	}
	return students, nil
}

// Overview returns students joined with their hierarchy parents' names.
func (s *StudentService) Overview(ctx context.Context, filter models.StudentFilter) ([]models.StudentOverview, error) {
	rows, err := s.repo.Overview(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student overview")
	}
	return rows, nil
}

// NextRollNumber returns the smallest positive number unused in the batch,
// filling gaps left by departures before extending the sequence.
func (s *StudentService) NextRollNumber(ctx context.Context, batchID string) (string, error) {
	rolls, err := s.repo.RollNumbers(ctx, batchID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roll numbers")
	}
	return nextFreeRoll(rolls), nil
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

func nextFreeRoll(rolls []string) string {
	used := make([]int, 0, len(rolls))
	for _, roll := range rolls {
		digits := trailingDigits.FindString(roll)
		if digits == "" {
			continue
		}
		if n, err := strconv.Atoi(digits); err == nil && n > 0 {
			used = append(used, n)
		}
	}
	sort.Ints(used)
	next := 1
	for _, n := range used {
		if n == next {
			next++
		} else if n > next {
			break
		}
	}
	return strconv.Itoa(next)
}

// Admit registers a student. The department, course and batch references are
// re-validated as a chain before the denormalised row is written.
func (s *StudentService) Admit(ctx context.Context, principal models.Principal, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	batch, err := s.batches.GetByID(ctx, req.BatchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if !canWriteStudent(principal, batch) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
	}
	course, err := s.courses.GetByID(ctx, batch.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.ID != req.CourseID || course.DepartmentID != req.DepartmentID {
		return nil, appErrors.Clone(appErrors.ErrHierarchyMismatch, "batch does not belong to the given course and department")
	}
	enrolled, err := s.batches.CountStudents(ctx, req.BatchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count batch students")
	}
	if enrolled >= batch.MaxStudents {
		return nil, appErrors.Clone(appErrors.ErrCapacity, "batch is full")
	}
	rollNo := req.RollNo
	if rollNo == "" {
		rollNo, err = s.NextRollNumber(ctx, req.BatchID)
		if err != nil {
			return nil, err
		}
	}
	admission := time.Now().UTC()
	if req.AdmissionDate != nil {
		admission = *req.AdmissionDate
	}
	student := &models.Student{
		Name:             req.Name,
		StudentID:        req.StudentID,
		RollNo:           rollNo,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		DateOfBirth:      req.DateOfBirth,
		Gender:           req.Gender,
		GuardianName:     req.GuardianName,
		GuardianPhone:    req.GuardianPhone,
		EmergencyContact: req.EmergencyContact,
		Qualification:    req.Qualification,
		AdmissionDate:    admission,
		DepartmentID:     req.DepartmentID,
		CourseID:         req.CourseID,
		BatchID:          req.BatchID,
		TotalFees:        req.TotalFees,
		PaymentStatus:    models.PaymentPending,
		IsActive:         true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if repository.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "student id, email or roll number already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update changes mutable student fields and recomputes payment status when
// fee figures move. Batch moves re-run the hierarchy, capacity and roll
// checks against the target batch.
func (s *StudentService) Update(ctx context.Context, principal models.Principal, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	batch, err := s.batches.GetByID(ctx, student.BatchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if !canWriteStudent(principal, batch) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
	}
	if req.StudentID != nil && *req.StudentID != student.StudentID {
		if !principal.IsAdmin() {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only admins can change the student id")
		}
		student.StudentID = *req.StudentID
	}
	batchChanged := req.BatchID != nil && *req.BatchID != student.BatchID
	if batchChanged {
		target, err := s.batches.GetByID(ctx, *req.BatchID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "target batch not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target batch")
		}
		if !canWriteStudent(principal, target) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
		}
		if target.CourseID != student.CourseID {
			return nil, appErrors.Clone(appErrors.ErrHierarchyMismatch, "target batch belongs to another course")
		}
		enrolled, err := s.batches.CountStudents(ctx, target.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count batch students")
		}
		if enrolled >= target.MaxStudents {
			return nil, appErrors.Clone(appErrors.ErrCapacity, "target batch is full")
		}
		student.BatchID = target.ID
	}
	rollChanged := req.RollNo != nil && *req.RollNo != student.RollNo
	if rollChanged {
		student.RollNo = *req.RollNo
	}
	if rollChanged || batchChanged {
		rolls, err := s.repo.RollNumbers(ctx, student.BatchID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roll numbers")
		}
		for _, roll := range rolls {
			if roll == student.RollNo {
				return nil, appErrors.Clone(appErrors.ErrDuplicate, "roll number already taken in the batch")
			}
		}
	}
	if req.Name != nil {
		student.Name = *req.Name
	}
	if req.Email != nil {
		student.Email = req.Email
	}
	if req.Phone != nil {
		student.Phone = req.Phone
	}
	if req.Address != nil {
		student.Address = req.Address
	}
	if req.GuardianName != nil {
		student.GuardianName = req.GuardianName
	}
	if req.GuardianPhone != nil {
		student.GuardianPhone = req.GuardianPhone
	}
	if req.EmergencyContact != nil {
		student.EmergencyContact = req.EmergencyContact
	}
	if req.Qualification != nil {
		student.Qualification = req.Qualification
	}
	if req.FeesPaid != nil {
		student.FeesPaid = *req.FeesPaid
	}
	if req.TotalFees != nil {
		student.TotalFees = *req.TotalFees
	}
	if student.FeesPaid > student.TotalFees {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fees paid cannot exceed total fees")
	}
	if req.PaymentStatus != nil {
		student.PaymentStatus = *req.PaymentStatus
	} else if req.FeesPaid != nil || req.TotalFees != nil {
		student.PaymentStatus = derivePaymentStatus(student.FeesPaid, student.TotalFees)
	}
	if req.IsActive != nil {
		student.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, student); err != nil {
		if repository.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "student id, email or roll number already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

func derivePaymentStatus(paid, total float64) models.PaymentStatus {
	switch {
	case total > 0 && paid >= total:
		return models.PaymentCompleted
	case paid > 0:
		return models.PaymentPartial
	default:
		return models.PaymentPending
	}
}

// Delete removes a student along with their attendance records.
func (s *StudentService) Delete(ctx context.Context, principal models.Principal, id string) error {
	student, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	batch, err := s.batches.GetByID(ctx, student.BatchID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if !canWriteStudent(principal, batch) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "not allowed")
	}
	if err := s.repo.DeleteCascade(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

// Stats summarises one student's attendance and fee position.
func (s *StudentService) Stats(ctx context.Context, id string) (*models.StudentStats, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	present, absent, late, err := s.attendance.StudentAggregate(ctx, id, student.BatchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}
	stats := &models.StudentStats{
		StudentID:       student.ID,
		PresentCount:    present,
		AbsentCount:     absent,
		LateCount:       late,
		FeesPaid:        student.FeesPaid,
		TotalFees:       student.TotalFees,
		FeesOutstanding: student.TotalFees - student.FeesPaid,
	}
	if total := present + absent + late; total > 0 {
		stats.AttendanceRate = float64(present) / float64(total) * 100
	}
	return stats, nil
}
