package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
)

const notificationColumns = `id, title, message, type, priority, target_audience, target_teachers,
target_department_id, created_by, email_sent, email_sent_at, email_recipients, read_by, expires_at,
active, created_at, updated_at`

// NotificationRepository handles persistence for broadcasts.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	now := time.Now().UTC()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = now
	n.UpdatedAt = now
	query := `INSERT INTO notifications (id, title, message, type, priority, target_audience,
target_teachers, target_department_id, created_by, email_sent, email_sent_at, email_recipients,
read_by, expires_at, active, created_at, updated_at)
VALUES (:id, :title, :message, :type, :priority, :target_audience,
:target_teachers, :target_department_id, :created_by, :email_sent, :email_sent_at, :email_recipients,
:read_by, :expires_at, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// GetByID fetches one notification.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE id = $1`, notificationColumns)
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListForTeacher returns live, unexpired broadcasts addressed to the teacher:
// centre-wide ones, ones naming them, and ones aimed at their department.
func (r *NotificationRepository) ListForTeacher(ctx context.Context, teacherID string, departmentID *string) ([]models.Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM notifications
WHERE active AND expires_at > NOW()
AND (target_audience = 'all_teachers'
  OR (target_audience = 'specific_teachers' AND $1 = ANY(target_teachers))
  OR (target_audience = 'department' AND target_department_id = $2))
ORDER BY created_at DESC`, notificationColumns)
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, teacherID, departmentID); err != nil {
		return nil, fmt.Errorf("list teacher notifications: %w", err)
	}
	return items, nil
}

// ListAll returns every broadcast for the admin view, newest first.
func (r *NotificationRepository) ListAll(ctx context.Context, includeExpired bool) ([]models.Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE active`, notificationColumns)
	if !includeExpired {
		query += ` AND expires_at > NOW()`
	}
	query += ` ORDER BY created_at DESC`
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// AppendReadReceipt records the teacher's read once; a second read of the same
// notification leaves the row untouched.
func (r *NotificationRepository) AppendReadReceipt(ctx context.Context, id, teacherID string, readAt time.Time) error {
	receipt := models.ReadReceipt{TeacherID: teacherID, ReadAt: readAt}
	payload, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode read receipt: %w", err)
	}
	query := `UPDATE notifications
SET read_by = read_by || $2::jsonb, updated_at = $3
WHERE id = $1
AND NOT EXISTS (
  SELECT 1 FROM jsonb_array_elements(read_by) AS elem
  WHERE elem->>'teacher_id' = $4
)`
	if _, err := r.db.ExecContext(ctx, query, id, payload, time.Now().UTC(), teacherID); err != nil {
		return fmt.Errorf("append read receipt: %w", err)
	}
	return nil
}

// MarkEmailResult stores the dispatch outcome after the fanout settles.
func (r *NotificationRepository) MarkEmailResult(ctx context.Context, id string, recipients models.EmailRecipients, sentAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET email_sent = TRUE, email_sent_at = $2, email_recipients = $3, updated_at = $4 WHERE id = $1`,
		id, sentAt, recipients, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark email result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark email result %s: no rows", id)
	}
	return nil
}

// Deactivate retires a broadcast.
func (r *NotificationRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET active = FALSE, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("deactivate notification %s: no rows", id)
	}
	return nil
}

// DeleteExpired prunes broadcasts past their expiry and returns the count.
func (r *NotificationRepository) DeleteExpired(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
