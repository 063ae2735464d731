package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/mailer"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	ListForTeacher(ctx context.Context, teacherID string, departmentID *string) ([]models.Notification, error)
	ListAll(ctx context.Context, includeExpired bool) ([]models.Notification, error)
	AppendReadReceipt(ctx context.Context, id, teacherID string, readAt time.Time) error
	MarkEmailResult(ctx context.Context, id string, recipients models.EmailRecipients, sentAt time.Time) error
	Deactivate(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int, error)
}

type teacherDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListActiveTeachers(ctx context.Context) ([]models.User, error)
	ListActiveTeachersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListActiveTeachersByDepartment(ctx context.Context, departmentID string) ([]models.User, error)
}

// CreateNotificationRequest describes broadcast creation payload.
type CreateNotificationRequest struct {
	Title              string                      `json:"title" validate:"required,max=200"`
	Message            string                      `json:"message" validate:"required"`
	Type               models.NotificationType     `json:"type" validate:"required,notification_type"`
	Priority           models.NotificationPriority `json:"priority" validate:"required,notification_priority"`
	TargetAudience     models.NotificationAudience `json:"target_audience" validate:"required,notification_audience"`
	TargetTeachers     []string                    `json:"target_teachers,omitempty"`
	TargetDepartmentID *string                     `json:"target_department_id,omitempty"`
	ExpiresAt          *time.Time                  `json:"expires_at,omitempty"`
	SendEmail          bool                        `json:"send_email"`
}

// NotificationService creates targeted broadcasts and fans out email
// delivery. Dispatch failures are recorded per recipient and never fail the
// create call.
type NotificationService struct {
	repo      notificationRepository
	teachers  teacherDirectory
	mail      mailer.Mailer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// SetMetrics attaches the instrumentation sink; a nil sink disables counting.
func (s *NotificationService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// NewNotificationService constructs NotificationService.
func NewNotificationService(repo notificationRepository, teachers teacherDirectory, mail mailer.Mailer, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if mail == nil {
		mail = mailer.NopMailer{}
	}
	svc := &NotificationService{repo: repo, teachers: teachers, mail: mail, validator: validate, logger: logger}
	svc.validator.RegisterValidation("notification_type", func(fl validator.FieldLevel) bool {
		return models.NotificationType(fl.Field().String()).Valid()
	})
	svc.validator.RegisterValidation("notification_priority", func(fl validator.FieldLevel) bool {
		return models.NotificationPriority(fl.Field().String()).Valid()
	})
	svc.validator.RegisterValidation("notification_audience", func(fl validator.FieldLevel) bool {
		return models.NotificationAudience(fl.Field().String()).Valid()
	})
	return svc
}

// Create stores the broadcast and, when asked, dispatches email to every
// resolved recipient in parallel.
func (s *NotificationService) Create(ctx context.Context, principal models.Principal, req CreateNotificationRequest) (*models.Notification, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can send notifications")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}
	if req.TargetAudience == models.AudienceSpecificTeachers && len(req.TargetTeachers) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target teachers required for a specific_teachers audience")
	}
	if req.TargetAudience == models.AudienceDepartment && req.TargetDepartmentID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target department required for a department audience")
	}

	recipients, err := s.resolveAudience(ctx, req.TargetAudience, req.TargetTeachers, req.TargetDepartmentID)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().UTC().Add(req.Priority.DefaultExpiry())
	if req.ExpiresAt != nil {
		expiresAt = req.ExpiresAt.UTC()
	}
	notification := &models.Notification{
		Title:              req.Title,
		Message:            req.Message,
		Type:               req.Type,
		Priority:           req.Priority,
		TargetAudience:     req.TargetAudience,
		TargetTeachers:     pq.StringArray(req.TargetTeachers),
		TargetDepartmentID: req.TargetDepartmentID,
		CreatedBy:          principal.UserID,
		EmailRecipients:    models.EmailRecipients{},
		ReadBy:             models.ReadReceipts{},
		ExpiresAt:          expiresAt,
		Active:             true,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}

	if req.SendEmail && len(recipients) > 0 {
		outcomes := s.dispatch(ctx, notification, recipients)
		sentAt := time.Now().UTC()
		notification.EmailRecipients = outcomes
		notification.EmailSentAt = &sentAt
		for _, o := range outcomes {
			if o.Status == models.EmailSent {
				notification.EmailSent = true
				break
			}
		}
		if err := s.repo.MarkEmailResult(ctx, notification.ID, outcomes, sentAt); err != nil {
			s.logger.Warn("failed to record email dispatch result",
				zap.String("notification_id", notification.ID), zap.Error(err))
		}
	}
	return notification, nil
}

// dispatch sends one email per recipient concurrently and collects outcomes.
func (s *NotificationService) dispatch(ctx context.Context, n *models.Notification, recipients []models.User) models.EmailRecipients {
	outcomes := make(models.EmailRecipients, len(recipients))
	var wg sync.WaitGroup
	for i, recipient := range recipients {
		wg.Add(1)
		go func(i int, recipient models.User) {
			defer wg.Done()
			msg := mailer.Message{
				ToEmail: recipient.Email,
				ToName:  recipient.FullName,
				Subject: n.Title,
				Body:    n.Message,
			}
			status := models.EmailSent
			if err := s.mail.Send(ctx, msg); err != nil {
				status = models.EmailFailed
				s.logger.Warn("notification email failed",
					zap.String("notification_id", n.ID),
					zap.String("email", recipient.Email),
					zap.Error(err))
			}
			s.metrics.ObserveEmailDispatch(string(status))
			outcomes[i] = models.EmailRecipient{
				Email:  recipient.Email,
				Name:   recipient.FullName,
				Status: status,
			}
		}(i, recipient)
	}
	wg.Wait()
	return outcomes
}

func (s *NotificationService) resolveAudience(ctx context.Context, audience models.NotificationAudience, teacherIDs []string, departmentID *string) ([]models.User, error) {
	var (
		recipients []models.User
		err        error
	)
	switch audience {
	case models.AudienceAllTeachers:
		recipients, err = s.teachers.ListActiveTeachers(ctx)
	case models.AudienceSpecificTeachers:
		recipients, err = s.teachers.ListActiveTeachersByIDs(ctx, teacherIDs)
	case models.AudienceDepartment:
		recipients, err = s.teachers.ListActiveTeachersByDepartment(ctx, *departmentID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve audience")
	}
	return recipients, nil
}

// ListAll returns every live broadcast for the admin view.
func (s *NotificationService) ListAll(ctx context.Context, principal models.Principal, includeExpired bool) ([]models.Notification, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can list all notifications")
	}
	items, err := s.repo.ListAll(ctx, includeExpired)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, nil
}

// Inbox returns the teacher's live broadcasts, priority first then newest,
// each annotated with the viewer's read state.
func (s *NotificationService) Inbox(ctx context.Context, principal models.Principal) ([]models.TeacherNotification, error) {
	user, err := s.teachers.FindByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	items, err := s.repo.ListForTeacher(ctx, principal.UserID, user.DepartmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inbox")
	}
	inbox := make([]models.TeacherNotification, 0, len(items))
	for _, item := range items {
		inbox = append(inbox, models.TeacherNotification{
			Notification: item,
			IsRead:       item.ReadBy.Contains(principal.UserID),
		})
	}
	sort.SliceStable(inbox, func(i, j int) bool {
		wi, wj := inbox[i].Priority.Weight(), inbox[j].Priority.Weight()
		if wi != wj {
			return wi > wj
		}
		return inbox[i].CreatedAt.After(inbox[j].CreatedAt)
	})
	return inbox, nil
}

// MarkRead records the teacher's read receipt; repeat reads are no-ops.
func (s *NotificationService) MarkRead(ctx context.Context, principal models.Principal, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if err := s.repo.AppendReadReceipt(ctx, id, principal.UserID, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// Delete retires a broadcast.
func (s *NotificationService) Delete(ctx context.Context, principal models.Principal, id string) error {
	if !principal.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can delete notifications")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notification")
	}
	return nil
}

// PruneExpired physically removes broadcasts past their expiry.
func (s *NotificationService) PruneExpired(ctx context.Context, principal models.Principal) (int, error) {
	if !principal.IsAdmin() {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "only admins can prune notifications")
	}
	n, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prune notifications")
	}
	return n, nil
}
