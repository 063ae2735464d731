package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/mailer"
)

type mockNotificationRepo struct {
	notifications map[string]models.Notification
	order         []string
	seq           int
	pruned        int
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if m.notifications == nil {
		m.notifications = make(map[string]models.Notification)
	}
	if n.ID == "" {
		m.seq++
		n.ID = fmt.Sprintf("notif-%d", m.seq)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	m.notifications[n.ID] = *n
	m.order = append(m.order, n.ID)
	return nil
}

func (m *mockNotificationRepo) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	if n, ok := m.notifications[id]; ok {
		return &n, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockNotificationRepo) ListForTeacher(ctx context.Context, teacherID string, departmentID *string) ([]models.Notification, error) {
	var out []models.Notification
	for _, id := range m.order {
		n := m.notifications[id]
		if !n.Active {
			continue
		}
		switch n.TargetAudience {
		case models.AudienceAllTeachers:
		case models.AudienceSpecificTeachers:
			found := false
			for _, t := range n.TargetTeachers {
				if t == teacherID {
					found = true
				}
			}
			if !found {
				continue
			}
		case models.AudienceDepartment:
			if departmentID == nil || n.TargetDepartmentID == nil || *departmentID != *n.TargetDepartmentID {
				continue
			}
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *mockNotificationRepo) ListAll(ctx context.Context, includeExpired bool) ([]models.Notification, error) {
	var out []models.Notification
	for _, id := range m.order {
		n := m.notifications[id]
		if !includeExpired && n.ExpiresAt.Before(time.Now()) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *mockNotificationRepo) AppendReadReceipt(ctx context.Context, id, teacherID string, readAt time.Time) error {
	n, ok := m.notifications[id]
	if !ok {
		return sql.ErrNoRows
	}
	if !n.ReadBy.Contains(teacherID) {
		n.ReadBy = append(n.ReadBy, models.ReadReceipt{TeacherID: teacherID, ReadAt: readAt})
		m.notifications[id] = n
	}
	return nil
}

func (m *mockNotificationRepo) MarkEmailResult(ctx context.Context, id string, recipients models.EmailRecipients, sentAt time.Time) error {
	n, ok := m.notifications[id]
	if !ok {
		return sql.ErrNoRows
	}
	n.EmailRecipients = recipients
	n.EmailSentAt = &sentAt
	m.notifications[id] = n
	return nil
}

func (m *mockNotificationRepo) Deactivate(ctx context.Context, id string) error {
	n, ok := m.notifications[id]
	if !ok {
		return sql.ErrNoRows
	}
	n.Active = false
	m.notifications[id] = n
	return nil
}

func (m *mockNotificationRepo) DeleteExpired(ctx context.Context) (int, error) {
	return m.pruned, nil
}

type mockTeacherDirectory struct {
	users map[string]models.User
}

func (m *mockTeacherDirectory) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherDirectory) ListActiveTeachers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range m.users {
		if u.Role == models.RoleTeacher && u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockTeacherDirectory) ListActiveTeachersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok && u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockTeacherDirectory) ListActiveTeachersByDepartment(ctx context.Context, departmentID string) ([]models.User, error) {
	var out []models.User
	for _, u := range m.users {
		if u.Role == models.RoleTeacher && u.Active && u.DepartmentID != nil && *u.DepartmentID == departmentID {
			out = append(out, u)
		}
	}
	return out, nil
}

// recordingMailer collects sent messages and can fail selected addresses.
type recordingMailer struct {
	mu      sync.Mutex
	sent    []mailer.Message
	failFor map[string]bool
}

func (m *recordingMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[msg.ToEmail] {
		return errors.New("smtp refused")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newNotificationFixture(mail mailer.Mailer) (*NotificationService, *mockNotificationRepo, *mockTeacherDirectory) {
	dept := "d1"
	repo := &mockNotificationRepo{}
	teachers := &mockTeacherDirectory{users: map[string]models.User{
		"t1": {ID: "t1", Email: "t1@cdccentre.in", FullName: "Teacher One", Role: models.RoleTeacher, DepartmentID: &dept, Active: true},
		"t2": {ID: "t2", Email: "t2@cdccentre.in", FullName: "Teacher Two", Role: models.RoleTeacher, Active: true},
		"t3": {ID: "t3", Email: "t3@cdccentre.in", FullName: "Teacher Three", Role: models.RoleTeacher, Active: false},
	}}
	svc := NewNotificationService(repo, teachers, mail, validator.New(), zap.NewNop())
	return svc, repo, teachers
}

func broadcastRequest(audience models.NotificationAudience) CreateNotificationRequest {
	return CreateNotificationRequest{
		Title:          "Lab closed on Friday",
		Message:        "Annual electrical maintenance.",
		Type:           models.NotificationAnnouncement,
		Priority:       models.PriorityHigh,
		TargetAudience: audience,
	}
}

func TestNotificationServiceCreateAdminOnly(t *testing.T) {
	svc, _, _ := newNotificationFixture(nil)

	_, err := svc.Create(context.Background(), teacherPrincipal(), broadcastRequest(models.AudienceAllTeachers))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestNotificationServiceCreateDefaultExpiry(t *testing.T) {
	svc, _, _ := newNotificationFixture(nil)

	notification, err := svc.Create(context.Background(), adminPrincipal(), broadcastRequest(models.AudienceAllTeachers))
	require.NoError(t, err)

	expected := time.Now().UTC().Add(14 * 24 * time.Hour)
	assert.WithinDuration(t, expected, notification.ExpiresAt, time.Minute, "high priority keeps for 14 days")
	assert.True(t, notification.Active)
	assert.Equal(t, "a1", notification.CreatedBy)
}

func TestNotificationServiceCreateAudienceChecks(t *testing.T) {
	svc, _, _ := newNotificationFixture(nil)

	req := broadcastRequest(models.AudienceSpecificTeachers)
	_, err := svc.Create(context.Background(), adminPrincipal(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req = broadcastRequest(models.AudienceDepartment)
	_, err = svc.Create(context.Background(), adminPrincipal(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestNotificationServiceEmailDispatch(t *testing.T) {
	mail := &recordingMailer{failFor: map[string]bool{"t2@cdccentre.in": true}}
	svc, repo, _ := newNotificationFixture(mail)

	req := broadcastRequest(models.AudienceAllTeachers)
	req.SendEmail = true
	notification, err := svc.Create(context.Background(), adminPrincipal(), req)
	require.NoError(t, err, "per-recipient failures never fail the create")

	require.Len(t, notification.EmailRecipients, 2, "inactive teachers are excluded")
	byEmail := map[string]models.EmailDeliveryStatus{}
	for _, r := range notification.EmailRecipients {
		byEmail[r.Email] = r.Status
	}
	assert.Equal(t, models.EmailSent, byEmail["t1@cdccentre.in"])
	assert.Equal(t, models.EmailFailed, byEmail["t2@cdccentre.in"])
	assert.True(t, notification.EmailSent, "at least one delivery succeeded")
	assert.NotNil(t, notification.EmailSentAt)

	stored := repo.notifications[notification.ID]
	assert.Len(t, stored.EmailRecipients, 2, "outcomes are persisted")

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "Lab closed on Friday", mail.sent[0].Subject)
}

func TestNotificationServiceDepartmentAudience(t *testing.T) {
	mail := &recordingMailer{}
	svc, _, _ := newNotificationFixture(mail)

	dept := "d1"
	req := broadcastRequest(models.AudienceDepartment)
	req.TargetDepartmentID = &dept
	req.SendEmail = true
	notification, err := svc.Create(context.Background(), adminPrincipal(), req)
	require.NoError(t, err)

	require.Len(t, notification.EmailRecipients, 1)
	assert.Equal(t, "t1@cdccentre.in", notification.EmailRecipients[0].Email)
}

func TestNotificationServiceInboxOrderAndReadState(t *testing.T) {
	svc, repo, _ := newNotificationFixture(nil)
	ctx := context.Background()

	low := broadcastRequest(models.AudienceAllTeachers)
	low.Title = "Low note"
	low.Priority = models.PriorityLow
	_, err := svc.Create(ctx, adminPrincipal(), low)
	require.NoError(t, err)

	urgent := broadcastRequest(models.AudienceSpecificTeachers)
	urgent.Title = "Urgent for t1"
	urgent.Priority = models.PriorityUrgent
	urgent.TargetTeachers = []string{"t1"}
	created, err := svc.Create(ctx, adminPrincipal(), urgent)
	require.NoError(t, err)

	other := broadcastRequest(models.AudienceSpecificTeachers)
	other.Title = "For t2 only"
	other.TargetTeachers = []string{"t2"}
	_, err = svc.Create(ctx, adminPrincipal(), other)
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, models.Principal{UserID: "t1", Role: models.RoleTeacher}, created.ID))

	inbox, err := svc.Inbox(ctx, models.Principal{UserID: "t1", Role: models.RoleTeacher})
	require.NoError(t, err)
	require.Len(t, inbox, 2, "other teachers' targeted messages are invisible")
	assert.Equal(t, "Urgent for t1", inbox[0].Title, "urgent sorts above low")
	assert.True(t, inbox[0].IsRead)
	assert.False(t, inbox[1].IsRead)

	// Receipts are idempotent.
	require.NoError(t, svc.MarkRead(ctx, models.Principal{UserID: "t1", Role: models.RoleTeacher}, created.ID))
	assert.Len(t, repo.notifications[created.ID].ReadBy, 1)
}

func TestNotificationServiceMarkReadMissing(t *testing.T) {
	svc, _, _ := newNotificationFixture(nil)

	err := svc.MarkRead(context.Background(), teacherPrincipal(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestNotificationServiceDeleteAndPruneAdminOnly(t *testing.T) {
	svc, repo, _ := newNotificationFixture(nil)
	notification, err := svc.Create(context.Background(), adminPrincipal(), broadcastRequest(models.AudienceAllTeachers))
	require.NoError(t, err)

	err = svc.Delete(context.Background(), teacherPrincipal(), notification.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), adminPrincipal(), notification.ID))
	assert.False(t, repo.notifications[notification.ID].Active)

	repo.pruned = 3
	n, err := svc.PruneExpired(context.Background(), adminPrincipal())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
