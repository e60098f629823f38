package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/prepsphere/server/internal/metrics"
	"github.com/prepsphere/server/internal/sanitize"
	"github.com/rs/zerolog"
)

type Service struct {
	repo       Repository
	dispatcher Dispatcher
	logger     zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "notifications").Logger(),
	}
}

// SetDispatcher wires email delivery. The job queue is built after the
// services, so this is set late; a nil dispatcher disables email.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Notification, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

type CreateInput struct {
	Title       string
	Message     string
	Type        string
	RelatedID   *int64
	RelatedType *string
}

// Create stores a notification addressed to one user.
func (s *Service) Create(ctx context.Context, userID int64, input CreateInput) (*Notification, error) {
	msg := Message{
		Title:       sanitize.Text(input.Title),
		Body:        sanitize.Text(input.Message),
		Type:        strings.TrimSpace(input.Type),
		RelatedID:   input.RelatedID,
		RelatedType: sanitize.OptionalText(input.RelatedType),
	}
	if msg.Title == "" && msg.Body == "" {
		return nil, ValidationError{Field: "title", Message: "Title or message is required"}
	}
	list, err := s.deliver(ctx, []int64{userID}, msg, OriginDirect)
	if err != nil {
		return nil, err
	}
	return &list[0], nil
}

// Notify sends a plain system notification to one user. The users and files
// services call it for profile and resume rejections.
func (s *Service) Notify(ctx context.Context, userID int64, title, message string) error {
	_, err := s.deliver(ctx, []int64{userID}, Message{Title: title, Body: message}, OriginRejection)
	return err
}

// NotifyUsers sends msg to every user in ids. An empty list is a no-op.
func (s *Service) NotifyUsers(ctx context.Context, ids []int64, msg Message, origin Origin) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	list, err := s.deliver(ctx, ids, msg, origin)
	return len(list), err
}

// NotifyRole sends msg to every user holding role.
func (s *Service) NotifyRole(ctx context.Context, role string, msg Message, origin Origin) (int, error) {
	ids, err := s.repo.UserIDsByRole(ctx, role)
	if err != nil {
		return 0, fmt.Errorf("list %s recipients: %w", role, err)
	}
	return s.NotifyUsers(ctx, ids, msg, origin)
}

// Broadcast notifies every student.
func (s *Service) Broadcast(ctx context.Context, title, message string) (int, error) {
	title = sanitize.Text(title)
	message = sanitize.Text(message)
	if title == "" || message == "" {
		return 0, ValidationError{Message: "Title and message are required"}
	}
	n, err := s.NotifyRole(ctx, "student", Message{Title: title, Body: message}, OriginBroadcast)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int("recipients", n).Msg("broadcast sent")
	return n, nil
}

func (s *Service) MarkRead(ctx context.Context, id int64) (*Notification, error) {
	return s.repo.MarkRead(ctx, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) deliver(ctx context.Context, ids []int64, msg Message, origin Origin) ([]Notification, error) {
	if msg.Type == "" {
		msg.Type = DefaultType
	}
	list, err := s.repo.CreateMany(ctx, ids, msg)
	if err != nil {
		return nil, err
	}
	metrics.NotificationsCreatedTotal.WithLabelValues(string(origin)).Add(float64(len(list)))

	if s.dispatcher != nil && len(list) > 0 {
		if err := s.dispatcher.EnqueueEmails(ctx, list); err != nil {
			s.logger.Error().Err(err).Int("count", len(list)).Str("origin", string(origin)).Msg("enqueue notification emails")
		}
	}
	return list, nil
}
