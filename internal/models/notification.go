package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// NotificationType classifies a broadcast message.
type NotificationType string

const (
	NotificationInfo         NotificationType = "info"
	NotificationWarning      NotificationType = "warning"
	NotificationUrgent       NotificationType = "urgent"
	NotificationLeave        NotificationType = "leave"
	NotificationAnnouncement NotificationType = "announcement"
)

// Valid returns true when the type is supported.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationWarning, NotificationUrgent,
		NotificationLeave, NotificationAnnouncement:
		return true
	default:
		return false
	}
}

// NotificationPriority orders messages and drives default expiry.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// Valid returns true when the priority is supported.
func (p NotificationPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Weight orders priorities for inbox sorting, highest first.
func (p NotificationPriority) Weight() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// DefaultExpiry maps a priority to its retention window.
func (p NotificationPriority) DefaultExpiry() time.Duration {
	switch p {
	case PriorityUrgent:
		return 7 * 24 * time.Hour
	case PriorityHigh:
		return 14 * 24 * time.Hour
	case PriorityMedium:
		return 30 * 24 * time.Hour
	default:
		return 60 * 24 * time.Hour
	}
}

// NotificationAudience selects the recipient set.
type NotificationAudience string

const (
	AudienceAllTeachers      NotificationAudience = "all_teachers"
	AudienceSpecificTeachers NotificationAudience = "specific_teachers"
	AudienceDepartment       NotificationAudience = "department"
)

// Valid returns true when the audience is supported.
func (a NotificationAudience) Valid() bool {
	switch a {
	case AudienceAllTeachers, AudienceSpecificTeachers, AudienceDepartment:
		return true
	default:
		return false
	}
}

// EmailDeliveryStatus records the per-recipient outcome of a dispatch.
type EmailDeliveryStatus string

const (
	EmailSent   EmailDeliveryStatus = "sent"
	EmailFailed EmailDeliveryStatus = "failed"
)

// EmailRecipient is one address the dispatcher attempted.
type EmailRecipient struct {
	Email  string              `json:"email"`
	Name   string              `json:"name"`
	Status EmailDeliveryStatus `json:"status"`
}

// EmailRecipients is the JSONB column of dispatch outcomes.
type EmailRecipients []EmailRecipient

// Value implements driver.Valuer.
func (r EmailRecipients) Value() (driver.Value, error) { return json.Marshal(r) }

// Scan implements sql.Scanner.
func (r *EmailRecipients) Scan(src interface{}) error { return scanJSON(src, r) }

// ReadReceipt marks one teacher's read of a notification.
type ReadReceipt struct {
	TeacherID string    `json:"teacher_id"`
	ReadAt    time.Time `json:"read_at"`
}

// ReadReceipts is the JSONB column of read state.
type ReadReceipts []ReadReceipt

// Value implements driver.Valuer.
func (r ReadReceipts) Value() (driver.Value, error) { return json.Marshal(r) }

// Scan implements sql.Scanner.
func (r *ReadReceipts) Scan(src interface{}) error { return scanJSON(src, r) }

// Contains reports whether the teacher already has a receipt.
func (r ReadReceipts) Contains(teacherID string) bool {
	for _, receipt := range r {
		if receipt.TeacherID == teacherID {
			return true
		}
	}
	return false
}

// Notification is a targeted broadcast with per-recipient read state.
type Notification struct {
	ID                 string               `db:"id" json:"id"`
	Title              string               `db:"title" json:"title"`
	Message            string               `db:"message" json:"message"`
	Type               NotificationType     `db:"type" json:"type"`
	Priority           NotificationPriority `db:"priority" json:"priority"`
	TargetAudience     NotificationAudience `db:"target_audience" json:"target_audience"`
	TargetTeachers     pq.StringArray       `db:"target_teachers" json:"target_teachers"`
	TargetDepartmentID *string              `db:"target_department_id" json:"target_department_id,omitempty"`
	CreatedBy          string               `db:"created_by" json:"created_by"`
	EmailSent          bool                 `db:"email_sent" json:"email_sent"`
	EmailSentAt        *time.Time           `db:"email_sent_at" json:"email_sent_at,omitempty"`
	EmailRecipients    EmailRecipients      `db:"email_recipients" json:"email_recipients"`
	ReadBy             ReadReceipts         `db:"read_by" json:"read_by"`
	ExpiresAt          time.Time            `db:"expires_at" json:"expires_at"`
	Active             bool                 `db:"active" json:"active"`
	CreatedAt          time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time            `db:"updated_at" json:"updated_at"`
}

// TeacherNotification is an inbox row annotated with the viewer's read state.
type TeacherNotification struct {
	Notification
	IsRead bool `json:"is_read"`
}
