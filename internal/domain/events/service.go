package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prepsphere/server/internal/domain/dates"
	"github.com/prepsphere/server/internal/domain/notifications"
	"github.com/prepsphere/server/internal/sanitize"
	"github.com/prepsphere/server/internal/validation"
	"github.com/rs/zerolog"
)

// Notifier delivers one message to a set of users.
type Notifier interface {
	NotifyUsers(ctx context.Context, ids []int64, msg notifications.Message, origin notifications.Origin) (int, error)
}

type Service struct {
	repo     Repository
	users    UserDirectory
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, users UserDirectory, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		notifier: notifier,
		logger:   logger.With().Str("component", "events").Logger(),
		now:      time.Now,
	}
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Event, error) {
	filter.Status = strings.TrimSpace(filter.Status)
	filter.PostedBy = strings.ToLower(strings.TrimSpace(filter.PostedBy))
	list, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return list, nil
}

type CreateInput struct {
	Title       string
	Description string
	Location    string
	Date        *string
	Time        string
	Status      string
	FormURL     string
	Category    string
	CreatedBy   *int64
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*Event, error) {
	params := CreateParams{
		Title:       sanitize.Text(input.Title),
		Description: sanitize.Text(input.Description),
		Location:    sanitize.Text(input.Location),
		Time:        sanitize.Text(input.Time),
		Status:      CanonicalStatus(input.Status),
		FormURL:     strings.TrimSpace(input.FormURL),
		Category:    sanitize.Text(input.Category),
		CreatedBy:   input.CreatedBy,
	}
	if params.Title == "" {
		return nil, ValidationError{Field: "title", Message: "Missing title"}
	}
	if err := validation.Link(params.FormURL, "form_url"); err != nil {
		return nil, ValidationError{Field: "form_url", Message: "Form URL must be an http(s) link"}
	}
	if params.Description == "" {
		params.Description = DefaultDescription
	}
	if params.Status == "" {
		params.Status = StatusUpcoming
	}

	now := s.now()
	date, err := dates.ParseOptional(input.Date, now)
	if err != nil {
		return nil, ValidationError{Field: "date", Message: "Date is not a recognisable date"}
	}
	if date == nil {
		params.Date = dates.Today(now)
	} else {
		params.Date = *date
	}

	event, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info().Int64("event_id", event.ID).Str("date", event.Date.String()).Msg("event created")
	return event, nil
}

type UpdateInput struct {
	Title       *string
	Description *string
	Location    *string
	Date        *string
	Time        *string
	Status      *string
	FormURL     *string
	Category    *string
}

func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (*Event, error) {
	if err := validation.OptionalLink(input.FormURL, "form_url"); err != nil {
		return nil, ValidationError{Field: "form_url", Message: "Form URL must be an http(s) link"}
	}
	date, err := dates.ParseOptional(input.Date, s.now())
	if err != nil {
		return nil, ValidationError{Field: "date", Message: "Date is not a recognisable date"}
	}
	status := nonEmpty(input.Status)
	if status != nil {
		canonical := CanonicalStatus(*status)
		status = &canonical
	}
	return s.repo.Update(ctx, id, UpdateParams{
		Title:       nonEmpty(input.Title),
		Description: nonEmpty(input.Description),
		Location:    nonEmpty(input.Location),
		Date:        date,
		Time:        nonEmpty(input.Time),
		Status:      status,
		FormURL:     nonEmpty(input.FormURL),
		Category:    nonEmpty(input.Category),
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*Details, error) {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountRegistrations(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	return &Details{Event: *event, Registered: count}, nil
}

// RegisterInput identifies the student by any of the three fields, in
// order of precedence.
type RegisterInput struct {
	UserID      *int64
	Email       string
	ClerkUserID string
}

func (s *Service) Register(ctx context.Context, eventID int64, input RegisterInput) (*Registration, error) {
	event, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(event.Status, StatusCancelled) {
		return nil, ErrCancelled
	}

	userID, err := s.resolveUser(ctx, input)
	if err != nil {
		return nil, err
	}
	if userID == 0 {
		return nil, ErrUnresolvedUser
	}
	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	reg, err := s.repo.Register(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return reg, nil
}

func (s *Service) resolveUser(ctx context.Context, input RegisterInput) (int64, error) {
	if input.UserID != nil && *input.UserID > 0 {
		return *input.UserID, nil
	}

	email := strings.TrimSpace(input.Email)
	if email == "" && strings.TrimSpace(input.ClerkUserID) != "" {
		found, err := s.users.EmailByClerkID(ctx, strings.TrimSpace(input.ClerkUserID))
		if err != nil {
			return 0, fmt.Errorf("resolve clerk user: %w", err)
		}
		email = found
	}
	if email == "" {
		return 0, nil
	}

	id, err := s.users.IDByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("resolve email: %w", err)
	}
	if id != 0 {
		return id, nil
	}
	id, err = s.users.IDByAlternateEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("resolve alternate email: %w", err)
	}
	return id, nil
}

func (s *Service) Registrants(ctx context.Context, eventID int64) ([]Registrant, error) {
	list, err := s.repo.ListRegistrants(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrants: %w", err)
	}
	return list, nil
}

// SendReminders notifies every registrant and returns how many were notified.
func (s *Service) SendReminders(ctx context.Context, eventID int64) (int, error) {
	event, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return 0, err
	}
	ids, err := s.repo.RegistrantIDs(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("list registrants: %w", err)
	}
	if s.notifier == nil || len(ids) == 0 {
		return 0, nil
	}

	related := "event"
	msg := notifications.Message{
		Title:       "Event Reminder",
		Body:        ReminderText(event),
		Type:        "event",
		RelatedID:   &event.ID,
		RelatedType: &related,
	}
	n, err := s.notifier.NotifyUsers(ctx, ids, msg, notifications.OriginReminder)
	if err != nil {
		return 0, fmt.Errorf("send reminders: %w", err)
	}
	s.logger.Info().Int64("event_id", eventID).Int("recipients", n).Msg("reminders sent")
	return n, nil
}

// ReminderText renders "Reminder: <title> at <location> on <date> <time>".
func ReminderText(e *Event) string {
	return fmt.Sprintf("Reminder: %s at %s on %s %s", e.Title, e.Location, e.Date.String(), e.Time)
}

func nonEmpty(v *string) *string {
	if v == nil {
		return nil
	}
	clean := sanitize.Text(*v)
	if clean == "" {
		return nil
	}
	return &clean
}
