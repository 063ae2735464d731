package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
)

type mockBatchRepo struct {
	batches    map[string]models.Batch
	listFilter models.BatchFilter
	enrolled   map[string]int
	deleted    []string
	seq        int
}

func (m *mockBatchRepo) Create(ctx context.Context, batch *models.Batch) error {
	if m.batches == nil {
		m.batches = make(map[string]models.Batch)
	}
	if batch.ID == "" {
		m.seq++
		batch.ID = fmt.Sprintf("batch-%d", m.seq)
	}
	m.batches[batch.ID] = *batch
	return nil
}

func (m *mockBatchRepo) GetByID(ctx context.Context, id string) (*models.Batch, error) {
	if b, ok := m.batches[id]; ok {
		return &b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBatchRepo) List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error) {
	m.listFilter = filter
	var out []models.Batch
	for _, b := range m.batches {
		if filter.CreatedBy != "" && b.CreatedBy != filter.CreatedBy {
			continue
		}
		out = append(out, b)
	}
	return out, len(out), nil
}

func (m *mockBatchRepo) Update(ctx context.Context, batch *models.Batch) error {
	m.batches[batch.ID] = *batch
	return nil
}

func (m *mockBatchRepo) DeleteCascade(ctx context.Context, id string) error {
	delete(m.batches, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockBatchRepo) CountStudents(ctx context.Context, id string) (int, error) {
	return m.enrolled[id], nil
}

func (m *mockBatchRepo) Overview(ctx context.Context, id string) (*models.BatchOverview, error) {
	b, ok := m.batches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.BatchOverview{Batch: b, StudentCount: m.enrolled[id]}, nil
}

func newBatchFixture() (*BatchService, *mockBatchRepo) {
	repo := &mockBatchRepo{
		batches: map[string]models.Batch{
			"b1": {ID: "b1", Name: "CAD Morning", CourseID: "c1", CreatedBy: "t1", MaxStudents: 20},
			"b2": {ID: "b2", Name: "CAD Evening", CourseID: "c1", CreatedBy: "t2", MaxStudents: 20},
		},
		enrolled: map[string]int{"b1": 5},
	}
	courses := &mockCourseReader{courses: map[string]models.Course{
		"c1": {ID: "c1", Name: "AutoCAD Professional", DepartmentID: "d1", MaxStudentsPerBatch: 15},
	}}
	svc := NewBatchService(repo, courses, validator.New(), zap.NewNop())
	return svc, repo
}

func TestBatchServiceListScopesTeachers(t *testing.T) {
	svc, repo := newBatchFixture()

	batches, _, err := svc.List(context.Background(), teacherPrincipal(), models.BatchFilter{})
	require.NoError(t, err)
	require.Len(t, batches, 1, "teachers only see their own batches")
	assert.Equal(t, "t1", repo.listFilter.CreatedBy)

	batches, pagination, err := svc.List(context.Background(), adminPrincipal(), models.BatchFilter{})
	require.NoError(t, err)
	assert.Len(t, batches, 2)
	assert.Equal(t, 2, pagination.TotalCount)
}

func TestBatchServiceGetForeignBatch(t *testing.T) {
	svc, _ := newBatchFixture()

	_, err := svc.Get(context.Background(), teacherPrincipal(), "b2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	batch, err := svc.Get(context.Background(), adminPrincipal(), "b2")
	require.NoError(t, err)
	assert.Equal(t, "CAD Evening", batch.Name)
}

func TestBatchServiceCreateDefaultsCapacity(t *testing.T) {
	svc, _ := newBatchFixture()

	batch, err := svc.Create(context.Background(), teacherPrincipal(), CreateBatchRequest{
		Name:         "CAD Weekend",
		CourseID:     "c1",
		AcademicYear: "2026-27",
		Section:      "A",
		Timing:       models.Slot0900,
		StartDate:    time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, 15, batch.MaxStudents, "capacity falls back to the course default")
	assert.Equal(t, "t1", batch.CreatedBy)
	assert.False(t, batch.IsFinished)
}

func TestBatchServiceCreateUnknownCourse(t *testing.T) {
	svc, _ := newBatchFixture()

	_, err := svc.Create(context.Background(), teacherPrincipal(), CreateBatchRequest{
		Name:         "Orphan",
		CourseID:     "missing",
		AcademicYear: "2026-27",
		Section:      "A",
		Timing:       models.Slot0900,
		StartDate:    time.Now(),
		MaxStudents:  10,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBatchServiceToggleFinished(t *testing.T) {
	svc, repo := newBatchFixture()

	batch, err := svc.ToggleFinished(context.Background(), teacherPrincipal(), "b1")
	require.NoError(t, err)
	assert.True(t, batch.IsFinished)
	require.NotNil(t, batch.EndDate, "finishing stamps the end date")

	batch, err = svc.ToggleFinished(context.Background(), teacherPrincipal(), "b1")
	require.NoError(t, err)
	assert.False(t, batch.IsFinished)
	assert.Nil(t, batch.EndDate, "reopening clears the end date")
	assert.False(t, repo.batches["b1"].IsFinished)
	assert.Nil(t, repo.batches["b1"].EndDate)
}

func TestBatchServiceCreateInvertedDates(t *testing.T) {
	svc, _ := newBatchFixture()

	start := time.Now()
	end := start.AddDate(0, 0, -1)
	_, err := svc.Create(context.Background(), teacherPrincipal(), CreateBatchRequest{
		Name:         "Backwards",
		CourseID:     "c1",
		AcademicYear: "2026-27",
		Section:      "A",
		Timing:       models.Slot0900,
		StartDate:    start,
		EndDate:      &end,
		MaxStudents:  10,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBatchServiceUpdateInvertedDates(t *testing.T) {
	svc, _ := newBatchFixture()

	start := time.Now()
	_, err := svc.Update(context.Background(), teacherPrincipal(), "b1", UpdateBatchRequest{StartDate: &start})
	require.NoError(t, err)

	end := start.AddDate(0, 0, -7)
	_, err = svc.Update(context.Background(), teacherPrincipal(), "b1", UpdateBatchRequest{EndDate: &end})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBatchServiceCreateCapacityBounds(t *testing.T) {
	svc, _ := newBatchFixture()

	_, err := svc.Create(context.Background(), teacherPrincipal(), CreateBatchRequest{
		Name:         "Oversized",
		CourseID:     "c1",
		AcademicYear: "2026-27",
		Section:      "A",
		Timing:       models.Slot0900,
		StartDate:    time.Now(),
		MaxStudents:  51,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBatchServiceDeleteCascades(t *testing.T) {
	svc, repo := newBatchFixture()

	require.NoError(t, svc.Delete(context.Background(), teacherPrincipal(), "b1"))
	assert.Contains(t, repo.deleted, "b1")

	err := svc.Delete(context.Background(), teacherPrincipal(), "b2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
