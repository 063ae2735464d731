package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
)

type mockDepartmentRepo struct {
	departments map[string]models.Department
	courseCount map[string]int
	seq         int
}

func (m *mockDepartmentRepo) Create(ctx context.Context, dept *models.Department) error {
	if m.departments == nil {
		m.departments = make(map[string]models.Department)
	}
	for _, existing := range m.departments {
		if existing.Name == dept.Name {
			return &pq.Error{Code: "23505", Constraint: "departments_name_key"}
		}
	}
	m.seq++
	dept.ID = fmt.Sprintf("dept-%d", m.seq)
	m.departments[dept.ID] = *dept
	return nil
}

func (m *mockDepartmentRepo) GetByID(ctx context.Context, id string) (*models.Department, error) {
	if d, ok := m.departments[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDepartmentRepo) List(ctx context.Context) ([]models.Department, error) {
	var out []models.Department
	for _, d := range m.departments {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDepartmentRepo) Update(ctx context.Context, dept *models.Department) error {
	m.departments[dept.ID] = *dept
	return nil
}

func (m *mockDepartmentRepo) Delete(ctx context.Context, id string) error {
	delete(m.departments, id)
	return nil
}

func (m *mockDepartmentRepo) CountCourses(ctx context.Context, id string) (int, error) {
	return m.courseCount[id], nil
}

func (m *mockDepartmentRepo) Overview(ctx context.Context) ([]models.DepartmentOverview, error) {
	var out []models.DepartmentOverview
	for _, d := range m.departments {
		out = append(out, models.DepartmentOverview{Department: d, CourseCount: m.courseCount[d.ID]})
	}
	return out, nil
}

func newDepartmentFixture() (*DepartmentService, *mockDepartmentRepo) {
	repo := &mockDepartmentRepo{
		departments: map[string]models.Department{
			"d1": {ID: "d1", Name: models.DepartmentCADD, Code: "CADD", IsActive: true},
		},
		courseCount: map[string]int{"d1": 3},
	}
	return NewDepartmentService(repo, validator.New(), zap.NewNop()), repo
}

func TestDepartmentServiceCreate(t *testing.T) {
	svc, _ := newDepartmentFixture()

	dept, err := svc.Create(context.Background(), adminPrincipal(), CreateDepartmentRequest{
		Name: models.DepartmentLivewire,
		Code: "LW",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, dept.ID)
	assert.True(t, dept.IsActive)
}

func TestDepartmentServiceCreateAdminOnly(t *testing.T) {
	svc, _ := newDepartmentFixture()

	_, err := svc.Create(context.Background(), teacherPrincipal(), CreateDepartmentRequest{
		Name: models.DepartmentLivewire,
		Code: "LW",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDepartmentServiceCreateRejectsUnknownWing(t *testing.T) {
	svc, _ := newDepartmentFixture()

	_, err := svc.Create(context.Background(), adminPrincipal(), CreateDepartmentRequest{
		Name: "ROBOTICS",
		Code: "RB",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDepartmentServiceCreateDuplicateName(t *testing.T) {
	svc, _ := newDepartmentFixture()

	_, err := svc.Create(context.Background(), adminPrincipal(), CreateDepartmentRequest{
		Name: models.DepartmentCADD,
		Code: "CADD2",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}

func TestDepartmentServiceUpdateKeepsName(t *testing.T) {
	svc, repo := newDepartmentFixture()

	location := "Block A, First Floor"
	inactive := false
	dept, err := svc.Update(context.Background(), adminPrincipal(), "d1", UpdateDepartmentRequest{
		Location: &location,
		IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DepartmentCADD, dept.Name)
	require.NotNil(t, dept.Location)
	assert.Equal(t, location, *dept.Location)
	assert.False(t, repo.departments["d1"].IsActive)
}

func TestDepartmentServiceDeleteRefusedWithCourses(t *testing.T) {
	svc, repo := newDepartmentFixture()

	err := svc.Delete(context.Background(), adminPrincipal(), "d1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDependency.Code, appErrors.FromError(err).Code)

	repo.courseCount["d1"] = 0
	require.NoError(t, svc.Delete(context.Background(), adminPrincipal(), "d1"))
	_, err = svc.Get(context.Background(), "d1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
