package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
)

type mockPCRepo struct {
	pcs map[string]models.PC
	seq int
}

func (m *mockPCRepo) Create(ctx context.Context, pc *models.PC) error {
	if m.pcs == nil {
		m.pcs = make(map[string]models.PC)
	}
	for _, existing := range m.pcs {
		if existing.PCNumber == pc.PCNumber {
			return &pq.Error{Code: "23505", Constraint: "pcs_pc_number_key"}
		}
	}
	if pc.ID == "" {
		m.seq++
		pc.ID = fmt.Sprintf("pc-%d", m.seq)
	}
	m.pcs[pc.ID] = *pc
	return nil
}

func (m *mockPCRepo) GetByID(ctx context.Context, id string) (*models.PC, error) {
	if pc, ok := m.pcs[id]; ok {
		return &pc, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPCRepo) List(ctx context.Context) ([]models.PC, error) {
	var out []models.PC
	for _, pc := range m.pcs {
		out = append(out, pc)
	}
	return out, nil
}

func (m *mockPCRepo) Update(ctx context.Context, pc *models.PC) error {
	m.pcs[pc.ID] = *pc
	return nil
}

func (m *mockPCRepo) Delete(ctx context.Context, id string) error {
	delete(m.pcs, id)
	return nil
}

func (m *mockPCRepo) CountByStatus(ctx context.Context, status models.PCStatus) (int, error) {
	count := 0
	for _, pc := range m.pcs {
		if status == "" || pc.Status == status {
			count++
		}
	}
	return count, nil
}

// mockBookingRepo enforces the same (pc, date, slot) and (student, date,
// slot) exclusivity the partial unique indexes do.
type mockBookingRepo struct {
	bookings []models.Booking
	seq      int
}

func bookingLive(b models.Booking) bool {
	return b.Status != models.BookingCancelled
}

func (m *mockBookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	for _, b := range m.bookings {
		if !bookingLive(b) || !b.Date.Equal(booking.Date) || b.TimeSlot != booking.TimeSlot {
			continue
		}
		if b.PCID == booking.PCID {
			return &pq.Error{Code: "23505", Constraint: "bookings_pc_slot_key"}
		}
		if b.StudentID != nil && booking.StudentID != nil && *b.StudentID == *booking.StudentID {
			return &pq.Error{Code: "23505", Constraint: "bookings_student_slot_key"}
		}
	}
	if booking.ID == "" {
		m.seq++
		booking.ID = fmt.Sprintf("bk-%d", m.seq)
	}
	m.bookings = append(m.bookings, *booking)
	return nil
}

func (m *mockBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	for _, b := range m.bookings {
		if b.ID == id {
			out := b
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookingRepo) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range m.bookings {
		if filter.Date != nil && !b.Date.Equal(*filter.Date) {
			continue
		}
		if filter.PCID != "" && b.PCID != filter.PCID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *mockBookingRepo) HasPCConflict(ctx context.Context, pcID string, date time.Time, slot models.TimeSlot) (bool, error) {
	for _, b := range m.bookings {
		if bookingLive(b) && b.PCID == pcID && b.Date.Equal(date) && b.TimeSlot == slot {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockBookingRepo) HasStudentConflict(ctx context.Context, studentID string, date time.Time, slot models.TimeSlot) (bool, error) {
	for _, b := range m.bookings {
		if bookingLive(b) && b.StudentID != nil && *b.StudentID == studentID && b.Date.Equal(date) && b.TimeSlot == slot {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockBookingRepo) UpdateStatus(ctx context.Context, id string, status models.BookingStatus) error {
	for i := range m.bookings {
		if m.bookings[i].ID == id {
			m.bookings[i].Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockBookingRepo) DeleteBulk(ctx context.Context, filter models.BookingClearFilter) (int, error) {
	slotMatch := func(slot models.TimeSlot) bool {
		if len(filter.TimeSlots) == 0 {
			return true
		}
		for _, s := range filter.TimeSlots {
			if s == slot {
				return true
			}
		}
		return false
	}
	kept := m.bookings[:0]
	deleted := 0
	for _, b := range m.bookings {
		if b.Date.Equal(filter.Date) && slotMatch(b.TimeSlot) {
			deleted++
			continue
		}
		kept = append(kept, b)
	}
	m.bookings = kept
	return deleted, nil
}

func (m *mockBookingRepo) ListWithAttendance(ctx context.Context, date time.Time) ([]models.BookingWithAttendance, error) {
	var out []models.BookingWithAttendance
	for _, b := range m.bookings {
		if b.Date.Equal(date) {
			out = append(out, models.BookingWithAttendance{Booking: b, AttendanceStatus: models.AttendanceNotMarked})
		}
	}
	return out, nil
}

func (m *mockBookingRepo) CountForDate(ctx context.Context, date time.Time) (int, error) {
	count := 0
	for _, b := range m.bookings {
		if bookingLive(b) && b.Date.Equal(date) {
			count++
		}
	}
	return count, nil
}

type mockLabStudents struct {
	students map[string]models.Student
}

func (m *mockLabStudents) GetByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func newLabFixture() (*LabService, *mockPCRepo, *mockBookingRepo) {
	pcs := &mockPCRepo{pcs: map[string]models.PC{
		"pc-a": {ID: "pc-a", PCNumber: "CDC-PC-01", Row: "1", Position: 1, Status: models.PCActive},
		"pc-b": {ID: "pc-b", PCNumber: "CDC-PC-02", Row: "1", Position: 2, Status: models.PCMaintenance},
	}}
	bookings := &mockBookingRepo{}
	students := &mockLabStudents{students: map[string]models.Student{
		"s1": {ID: "s1", Name: "Arjun Nair", BatchID: "b1", IsActive: true},
		"s2": {ID: "s2", Name: "Dropout", BatchID: "b1", IsActive: false},
	}}
	svc := NewLabService(pcs, bookings, students, validator.New(), zap.NewNop())
	return svc, pcs, bookings
}

func adminPrincipal() models.Principal {
	return models.Principal{UserID: "a1", Role: models.RoleAdmin}
}

// bookingDay is a fixed future day so past-date rejection never trips the
// happy paths.
func bookingDay() time.Time {
	return truncateToDay(time.Now().UTC().AddDate(0, 0, 7))
}

func bookingRequest(pcID string, slot models.TimeSlot) CreateBookingRequest {
	sid := "s1"
	return CreateBookingRequest{
		PCID:      pcID,
		Date:      bookingDay().Add(11 * time.Hour),
		TimeSlot:  slot,
		BookedFor: "Arjun Nair",
		StudentID: &sid,
		Purpose:   "AutoCAD practice",
	}
}

func TestLabServiceCreatePCAdminOnly(t *testing.T) {
	svc, _, _ := newLabFixture()

	_, err := svc.CreatePC(context.Background(), teacherPrincipal(), CreatePCRequest{PCNumber: "CDC-PC-03", Row: "2", Position: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	pc, err := svc.CreatePC(context.Background(), adminPrincipal(), CreatePCRequest{PCNumber: "CDC-PC-03", Row: "2", Position: 1})
	require.NoError(t, err)
	assert.Equal(t, models.PCActive, pc.Status, "status defaults to active")
}

func TestLabServiceCreatePCDuplicateNumber(t *testing.T) {
	svc, _, _ := newLabFixture()

	_, err := svc.CreatePC(context.Background(), adminPrincipal(), CreatePCRequest{PCNumber: "CDC-PC-01", Row: "3", Position: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}

func TestLabServiceBook(t *testing.T) {
	svc, _, bookings := newLabFixture()

	booking, err := svc.Book(context.Background(), teacherPrincipal(), bookingRequest("pc-a", models.Slot0900))
	require.NoError(t, err)
	assert.Equal(t, models.BookingBooked, booking.Status)
	assert.Equal(t, "t1", booking.BookedBy)
	assert.Equal(t, "Arjun Nair", booking.StudentName, "name resolved from the student record")
	assert.Equal(t, bookingDay(), booking.Date, "booking date is truncated to midnight")
	require.NotNil(t, booking.BatchID)
	assert.Equal(t, "b1", *booking.BatchID, "batch adopted from the student record")
	assert.Len(t, bookings.bookings, 1)
}

func TestLabServiceBookPastDate(t *testing.T) {
	svc, _, _ := newLabFixture()

	req := bookingRequest("pc-a", models.Slot0900)
	req.Date = time.Now().UTC().AddDate(0, 0, -1)
	_, err := svc.Book(context.Background(), teacherPrincipal(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLabServiceBookInactiveStudent(t *testing.T) {
	svc, _, _ := newLabFixture()

	req := bookingRequest("pc-a", models.Slot0900)
	sid := "s2"
	req.StudentID = &sid
	_, err := svc.Book(context.Background(), teacherPrincipal(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLabServiceBookBatchMismatch(t *testing.T) {
	svc, _, _ := newLabFixture()

	req := bookingRequest("pc-a", models.Slot0900)
	other := "b9"
	req.BatchID = &other
	_, err := svc.Book(context.Background(), teacherPrincipal(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrHierarchyMismatch.Code, appErrors.FromError(err).Code)

	// The matching batch passes.
	match := "b1"
	req.BatchID = &match
	_, err = svc.Book(context.Background(), teacherPrincipal(), req)
	require.NoError(t, err)
}

func TestLabServiceBookInactivePC(t *testing.T) {
	svc, _, _ := newLabFixture()

	_, err := svc.Book(context.Background(), teacherPrincipal(), bookingRequest("pc-b", models.Slot0900))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacity.Code, appErrors.FromError(err).Code)
}

func TestLabServiceBookPCConflict(t *testing.T) {
	svc, _, _ := newLabFixture()

	_, err := svc.Book(context.Background(), teacherPrincipal(), bookingRequest("pc-a", models.Slot0900))
	require.NoError(t, err)

	req := bookingRequest("pc-a", models.Slot0900)
	req.StudentID = nil
	req.BookedFor = "Walk-in practice"
	_, err = svc.Book(context.Background(), teacherPrincipal(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLabServiceBookStudentConflict(t *testing.T) {
	svc, pcs, _ := newLabFixture()
	pcs.pcs["pc-c"] = models.PC{ID: "pc-c", PCNumber: "CDC-PC-04", Row: "2", Position: 2, Status: models.PCActive}

	_, err := svc.Book(context.Background(), teacherPrincipal(), bookingRequest("pc-a", models.Slot0900))
	require.NoError(t, err)

	// Same student, same slot, different machine.
	_, err = svc.Book(context.Background(), teacherPrincipal(), bookingRequest("pc-c", models.Slot0900))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// Another slot is fine.
	_, err = svc.Book(context.Background(), teacherPrincipal(), bookingRequest("pc-a", models.Slot1030))
	require.NoError(t, err)
}

func TestLabServiceCancelFreesSlot(t *testing.T) {
	svc, _, _ := newLabFixture()

	booking, err := svc.Book(context.Background(), teacherPrincipal(), bookingRequest("pc-a", models.Slot0900))
	require.NoError(t, err)

	_, err = svc.UpdateBookingStatus(context.Background(), teacherPrincipal(), booking.ID, models.BookingCancelled)
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), teacherPrincipal(), bookingRequest("pc-a", models.Slot0900))
	require.NoError(t, err, "cancelled bookings release the slot")
}

func TestLabServiceUpdateBookingStatusOwnership(t *testing.T) {
	svc, _, _ := newLabFixture()

	booking, err := svc.Book(context.Background(), teacherPrincipal(), bookingRequest("pc-a", models.Slot0900))
	require.NoError(t, err)

	_, err = svc.UpdateBookingStatus(context.Background(), models.Principal{UserID: "t2", Role: models.RoleTeacher}, booking.ID, models.BookingCompleted)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	updated, err := svc.UpdateBookingStatus(context.Background(), adminPrincipal(), booking.ID, models.BookingCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, updated.Status)
}

func TestLabServiceAvailability(t *testing.T) {
	svc, _, _ := newLabFixture()
	day := bookingDay()

	avail, err := svc.Availability(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 1, avail.TotalPCs, "only active machines count")
	assert.Equal(t, 1, avail.Available)

	_, err = svc.Book(context.Background(), teacherPrincipal(), bookingRequest("pc-a", models.Slot0900))
	require.NoError(t, err)

	avail, err = svc.Availability(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 1, avail.BookedCount)
	assert.Equal(t, 0, avail.Available, "availability is active machines minus live bookings")
}

func TestLabServicePCsByRow(t *testing.T) {
	svc, pcs, _ := newLabFixture()
	pcs.pcs["pc-d"] = models.PC{ID: "pc-d", PCNumber: "CDC-PC-05", Row: "1", Position: 3, Status: models.PCActive}
	pcs.pcs["pc-e"] = models.PC{ID: "pc-e", PCNumber: "CDC-PC-06", Row: "2", Position: 1, Status: models.PCActive}

	grouped, err := svc.PCsByRow(context.Background())
	require.NoError(t, err)
	require.Len(t, grouped, 2)
	require.Len(t, grouped["1"], 3)
	assert.Equal(t, 1, grouped["1"][0].Position, "rows are ordered by seat position")
	assert.Equal(t, 3, grouped["1"][2].Position)
	require.Len(t, grouped["2"], 1)
	assert.Equal(t, "CDC-PC-06", grouped["2"][0].PCNumber)
}

func TestLabServiceClearBookings(t *testing.T) {
	svc, _, _ := newLabFixture()
	day := bookingDay()

	_, err := svc.Book(context.Background(), teacherPrincipal(), bookingRequest("pc-a", models.Slot0900))
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), teacherPrincipal(), bookingRequest("pc-a", models.Slot1030))
	require.NoError(t, err)

	_, err = svc.ClearBookings(context.Background(), teacherPrincipal(), models.BookingClearFilter{Date: day})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	deleted, err := svc.ClearBookings(context.Background(), adminPrincipal(), models.BookingClearFilter{Date: day, TimeSlots: []models.TimeSlot{models.Slot0900}})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestLabServiceApplyPrevious(t *testing.T) {
	svc, _, _ := newLabFixture()
	source := bookingDay()
	target := source.AddDate(0, 0, 1)

	_, err := svc.Book(context.Background(), teacherPrincipal(), bookingRequest("pc-a", models.Slot0900))
	require.NoError(t, err)

	// Pre-book the student into the same slot on the target day; the copy of
	// that booking must be skipped, not fail the whole run.
	conflicting := bookingRequest("pc-a", models.Slot0900)
	conflicting.Date = target
	_, err = svc.Book(context.Background(), teacherPrincipal(), conflicting)
	require.NoError(t, err)

	result, err := svc.ApplyPrevious(context.Background(), teacherPrincipal(), ApplyPreviousRequest{SourceDate: source, TargetDate: target})
	require.NoError(t, err)
	assert.Equal(t, 0, result.AppliedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Empty(t, result.Errors)
}

func TestLabServiceApplyPreviousBackwards(t *testing.T) {
	svc, _, _ := newLabFixture()
	day := bookingDay()

	_, err := svc.ApplyPrevious(context.Background(), teacherPrincipal(), ApplyPreviousRequest{SourceDate: day, TargetDate: day})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
