package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
)

type mockStudentRepo struct {
	students map[string]models.Student
	rolls    []string
	created  *models.Student
	deleted  []string
	seq      int
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		m.seq++
		student.ID = fmt.Sprintf("stu-%d", m.seq)
	}
	m.students[student.ID] = *student
	m.created = student
	return nil
}

func (m *mockStudentRepo) GetByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) ListByBatch(ctx context.Context, batchID string) ([]models.Student, error) {
	var out []models.Student
	for _, s := range m.students {
		if s.BatchID == batchID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStudentRepo) RollNumbers(ctx context.Context, batchID string) ([]string, error) {
	return m.rolls, nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) DeleteCascade(ctx context.Context, id string) error {
	delete(m.students, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockStudentRepo) Overview(ctx context.Context, filter models.StudentFilter) ([]models.StudentOverview, error) {
	return nil, nil
}

type mockStudentBatches struct {
	batches  map[string]models.Batch
	enrolled map[string]int
}

func (m *mockStudentBatches) GetByID(ctx context.Context, id string) (*models.Batch, error) {
	if b, ok := m.batches[id]; ok {
		return &b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentBatches) CountStudents(ctx context.Context, id string) (int, error) {
	return m.enrolled[id], nil
}

type mockCourseReader struct {
	courses map[string]models.Course
}

func (m *mockCourseReader) GetByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type mockStudentAttendance struct {
	present, absent, late int
}

func (m *mockStudentAttendance) StudentAggregate(ctx context.Context, studentID, batchID string) (int, int, int, error) {
	return m.present, m.absent, m.late, nil
}

func newStudentFixture() (*StudentService, *mockStudentRepo, *mockStudentBatches, *mockStudentAttendance) {
	repo := &mockStudentRepo{}
	batches := &mockStudentBatches{
		batches: map[string]models.Batch{
			"b1": {ID: "b1", CourseID: "c1", CreatedBy: "t1", MaxStudents: 3},
			"b2": {ID: "b2", CourseID: "c1", CreatedBy: "t1", MaxStudents: 2},
			"b3": {ID: "b3", CourseID: "c2", CreatedBy: "t1", MaxStudents: 10},
		},
		enrolled: map[string]int{"b1": 1},
	}
	courses := &mockCourseReader{courses: map[string]models.Course{
		"c1": {ID: "c1", Name: "AutoCAD Professional", DepartmentID: "d1"},
	}}
	attendance := &mockStudentAttendance{}
	svc := NewStudentService(repo, batches, courses, attendance, validator.New(), zap.NewNop())
	return svc, repo, batches, attendance
}

func admissionRequest() CreateStudentRequest {
	return CreateStudentRequest{
		Name:         "Arjun Nair",
		StudentID:    "CDC2026-001",
		DepartmentID: "d1",
		CourseID:     "c1",
		BatchID:      "b1",
		TotalFees:    25000,
	}
}

func TestStudentServiceAdmit(t *testing.T) {
	svc, repo, _, _ := newStudentFixture()

	student, err := svc.Admit(context.Background(), teacherPrincipal(), admissionRequest())
	require.NoError(t, err)
	assert.Equal(t, "1", student.RollNo, "first free roll number is assigned")
	assert.Equal(t, models.PaymentPending, student.PaymentStatus)
	assert.True(t, student.IsActive)
	assert.NotNil(t, repo.created)
}

func TestStudentServiceAdmitFillsRollGap(t *testing.T) {
	svc, repo, _, _ := newStudentFixture()
	repo.rolls = []string{"1", "2", "4", "5"}

	student, err := svc.Admit(context.Background(), teacherPrincipal(), admissionRequest())
	require.NoError(t, err)
	assert.Equal(t, "3", student.RollNo, "departure gaps are refilled before extending")
}

func TestStudentServiceAdmitHierarchyMismatch(t *testing.T) {
	svc, _, _, _ := newStudentFixture()

	req := admissionRequest()
	req.DepartmentID = "d2"
	_, err := svc.Admit(context.Background(), teacherPrincipal(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrHierarchyMismatch.Code, appErrors.FromError(err).Code)

	req = admissionRequest()
	req.CourseID = "c2"
	_, err = svc.Admit(context.Background(), teacherPrincipal(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrHierarchyMismatch.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceAdmitFullBatch(t *testing.T) {
	svc, _, batches, _ := newStudentFixture()
	batches.enrolled["b1"] = 3

	_, err := svc.Admit(context.Background(), teacherPrincipal(), admissionRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacity.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceAdmitUnknownBatch(t *testing.T) {
	svc, _, _, _ := newStudentFixture()

	req := admissionRequest()
	req.BatchID = "missing"
	_, err := svc.Admit(context.Background(), teacherPrincipal(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateDerivesPaymentStatus(t *testing.T) {
	svc, repo, _, _ := newStudentFixture()
	student, err := svc.Admit(context.Background(), teacherPrincipal(), admissionRequest())
	require.NoError(t, err)

	paid := 10000.0
	updated, err := svc.Update(context.Background(), teacherPrincipal(), student.ID, UpdateStudentRequest{FeesPaid: &paid})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPartial, updated.PaymentStatus)

	paid = 25000.0
	updated, err = svc.Update(context.Background(), teacherPrincipal(), student.ID, UpdateStudentRequest{FeesPaid: &paid})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, updated.PaymentStatus)
	assert.Equal(t, models.PaymentCompleted, repo.students[student.ID].PaymentStatus)
}

func TestStudentServiceUpdateExplicitStatusWins(t *testing.T) {
	svc, _, _, _ := newStudentFixture()
	student, err := svc.Admit(context.Background(), teacherPrincipal(), admissionRequest())
	require.NoError(t, err)

	paid := 25000.0
	overdue := models.PaymentOverdue
	updated, err := svc.Update(context.Background(), teacherPrincipal(), student.ID, UpdateStudentRequest{FeesPaid: &paid, PaymentStatus: &overdue})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentOverdue, updated.PaymentStatus)
}

func TestStudentServiceStats(t *testing.T) {
	svc, _, _, attendance := newStudentFixture()
	student, err := svc.Admit(context.Background(), teacherPrincipal(), admissionRequest())
	require.NoError(t, err)

	attendance.present, attendance.absent, attendance.late = 18, 2, 0
	paid := 10000.0
	_, err = svc.Update(context.Background(), teacherPrincipal(), student.ID, UpdateStudentRequest{FeesPaid: &paid})
	require.NoError(t, err)

	stats, err := svc.Stats(context.Background(), student.ID)
	require.NoError(t, err)
	assert.Equal(t, 18, stats.PresentCount)
	assert.Equal(t, 90.0, stats.AttendanceRate)
	assert.Equal(t, 15000.0, stats.FeesOutstanding)
}

func TestStudentServiceDelete(t *testing.T) {
	svc, repo, _, _ := newStudentFixture()
	student, err := svc.Admit(context.Background(), teacherPrincipal(), admissionRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), teacherPrincipal(), student.ID))
	assert.Contains(t, repo.deleted, student.ID)

	err = svc.Delete(context.Background(), teacherPrincipal(), student.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceWritesRequireBatchOwnership(t *testing.T) {
	svc, _, _, _ := newStudentFixture()
	intruder := models.Principal{UserID: "t2", Role: models.RoleTeacher}

	_, err := svc.Admit(context.Background(), intruder, admissionRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	student, err := svc.Admit(context.Background(), teacherPrincipal(), admissionRequest())
	require.NoError(t, err)

	name := "Renamed"
	_, err = svc.Update(context.Background(), intruder, student.ID, UpdateStudentRequest{Name: &name})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), intruder, student.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	// Admins pass regardless of batch ownership.
	admin := models.Principal{UserID: "a1", Role: models.RoleAdmin}
	_, err = svc.Update(context.Background(), admin, student.ID, UpdateStudentRequest{Name: &name})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), admin, student.ID))
}

func TestStudentServiceUpdateFeesExceedTotal(t *testing.T) {
	svc, _, _, _ := newStudentFixture()
	student, err := svc.Admit(context.Background(), teacherPrincipal(), admissionRequest())
	require.NoError(t, err)

	paid := 90000.0
	_, err = svc.Update(context.Background(), teacherPrincipal(), student.ID, UpdateStudentRequest{FeesPaid: &paid})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// Raising the total alongside the payment is fine.
	total := 90000.0
	updated, err := svc.Update(context.Background(), teacherPrincipal(), student.ID, UpdateStudentRequest{FeesPaid: &paid, TotalFees: &total})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, updated.PaymentStatus)
}

func TestStudentServiceUpdateTransfersBatch(t *testing.T) {
	svc, _, batches, _ := newStudentFixture()
	student, err := svc.Admit(context.Background(), teacherPrincipal(), admissionRequest())
	require.NoError(t, err)

	target := "b2"
	updated, err := svc.Update(context.Background(), teacherPrincipal(), student.ID, UpdateStudentRequest{BatchID: &target})
	require.NoError(t, err)
	assert.Equal(t, "b2", updated.BatchID)

	// A full target batch refuses the move.
	batches.enrolled["b2"] = 2
	back := "b1"
	_, err = svc.Update(context.Background(), teacherPrincipal(), student.ID, UpdateStudentRequest{BatchID: &back})
	require.NoError(t, err)
	_, err = svc.Update(context.Background(), teacherPrincipal(), student.ID, UpdateStudentRequest{BatchID: &target})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacity.Code, appErrors.FromError(err).Code)

	// A batch under another course breaks the hierarchy.
	other := "b3"
	_, err = svc.Update(context.Background(), teacherPrincipal(), student.ID, UpdateStudentRequest{BatchID: &other})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrHierarchyMismatch.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateRollConflict(t *testing.T) {
	svc, repo, _, _ := newStudentFixture()
	student, err := svc.Admit(context.Background(), teacherPrincipal(), admissionRequest())
	require.NoError(t, err)

	repo.rolls = []string{"1", "2"}
	taken := "2"
	_, err = svc.Update(context.Background(), teacherPrincipal(), student.ID, UpdateStudentRequest{RollNo: &taken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)

	free := "3"
	updated, err := svc.Update(context.Background(), teacherPrincipal(), student.ID, UpdateStudentRequest{RollNo: &free})
	require.NoError(t, err)
	assert.Equal(t, "3", updated.RollNo)
}

func TestStudentServiceUpdateStudentIDAdminOnly(t *testing.T) {
	svc, _, _, _ := newStudentFixture()
	student, err := svc.Admit(context.Background(), teacherPrincipal(), admissionRequest())
	require.NoError(t, err)

	renamed := "CDC2026-900"
	_, err = svc.Update(context.Background(), teacherPrincipal(), student.ID, UpdateStudentRequest{StudentID: &renamed})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	admin := models.Principal{UserID: "a1", Role: models.RoleAdmin}
	updated, err := svc.Update(context.Background(), admin, student.ID, UpdateStudentRequest{StudentID: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "CDC2026-900", updated.StudentID)
}

func TestNextFreeRoll(t *testing.T) {
	assert.Equal(t, "1", nextFreeRoll(nil))
	assert.Equal(t, "3", nextFreeRoll([]string{"1", "2"}))
	assert.Equal(t, "2", nextFreeRoll([]string{"1", "3", "4"}))
	assert.Equal(t, "1", nextFreeRoll([]string{"2", "3"}))
	// Prefixed rolls count through their trailing number.
	assert.Equal(t, "3", nextFreeRoll([]string{"R1", "R2"}))
	assert.Equal(t, "2", nextFreeRoll([]string{"1", "1", "X-07"}))
	// Rolls without any trailing digits are ignored rather than fatal.
	assert.Equal(t, "2", nextFreeRoll([]string{"1", "guest"}))
}
