package notifications

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("notification not found")
	ErrUserNotFound = errors.New("user not found")
)

const DefaultType = "system"

// Origin labels where a notification came from. Used for metrics and logs.
type Origin string

const (
	OriginDirect    Origin = "direct"
	OriginBroadcast Origin = "broadcast"
	OriginJob       Origin = "job"
	OriginReminder  Origin = "reminder"
	OriginRejection Origin = "rejection"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

type Notification struct {
	ID               int64      `json:"id"`
	UserID           int64      `json:"user_id"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	NotificationType string     `json:"notification_type"`
	RelatedID        *int64     `json:"related_id"`
	RelatedType      *string    `json:"related_type"`
	IsRead           bool       `json:"is_read"`
	CreatedAt        time.Time  `json:"created_at"`
	ReadAt           *time.Time `json:"read_at"`
}

// Message is the content shared by every recipient of one notification.
type Message struct {
	Title       string
	Body        string
	Type        string
	RelatedID   *int64
	RelatedType *string
}

type Repository interface {
	ListByUser(ctx context.Context, userID int64) ([]Notification, error)
	// CreateMany inserts one row per user in a single statement.
	CreateMany(ctx context.Context, userIDs []int64, msg Message) ([]Notification, error)
	UserIDsByRole(ctx context.Context, role string) ([]int64, error)
	MarkRead(ctx context.Context, id int64) (*Notification, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// Dispatcher hands freshly created notifications to email delivery.
type Dispatcher interface {
	EnqueueEmails(ctx context.Context, list []Notification) error
}
