// Package events covers placement-office events and student registrations.
package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prepsphere/server/internal/domain/dates"
)

var (
	ErrNotFound       = errors.New("event not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrCancelled      = errors.New("event is cancelled")
	// ErrUnresolvedUser means none of user_id, email or clerk id led to a user.
	ErrUnresolvedUser = errors.New("missing user_id or email")
)

const (
	StatusUpcoming  = "Upcoming"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"

	DefaultDescription = "Event"
)

// CanonicalStatus maps any casing of a known status onto its stored form.
// Unknown statuses are kept as given, trimmed.
func CanonicalStatus(status string) string {
	status = strings.TrimSpace(status)
	for _, known := range []string{StatusUpcoming, StatusCompleted, StatusCancelled} {
		if strings.EqualFold(status, known) {
			return known
		}
	}
	return status
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

type Event struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Date        dates.Date `json:"date"`
	Time        string     `json:"time"`
	Status      string     `json:"status"`
	FormURL     string     `json:"form_url"`
	Category    string     `json:"category"`
	CreatedBy   *int64     `json:"created_by"`
}

// Details is an event with its registration count.
type Details struct {
	Event
	Registered int `json:"registered"`
}

type Registrant struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	RegisteredAt time.Time `json:"registered_at"`
	FirstName    *string   `json:"first_name"`
	LastName     *string   `json:"last_name"`
	Email        string    `json:"email"`
}

type Registration struct {
	EventID      int64     `json:"event_id"`
	UserID       int64     `json:"user_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Filter selects events for the public listing. An empty Status hides
// cancelled events; PostedBy keeps events whose creator has that role.
type Filter struct {
	Status   string
	PostedBy string
}

type CreateParams struct {
	Title       string
	Description string
	Location    string
	Date        dates.Date
	Time        string
	Status      string
	FormURL     string
	Category    string
	CreatedBy   *int64
}

type UpdateParams struct {
	Title       *string
	Description *string
	Location    *string
	Date        *dates.Date
	Time        *string
	Status      *string
	FormURL     *string
	Category    *string
}

type Repository interface {
	List(ctx context.Context, filter Filter) ([]Event, error)
	Get(ctx context.Context, id int64) (*Event, error)
	CountRegistrations(ctx context.Context, eventID int64) (int, error)
	Create(ctx context.Context, params CreateParams) (*Event, error)
	Update(ctx context.Context, id int64, params UpdateParams) (*Event, error)
	Register(ctx context.Context, eventID, userID int64) (*Registration, error)
	ListRegistrants(ctx context.Context, eventID int64) ([]Registrant, error)
	RegistrantIDs(ctx context.Context, eventID int64) ([]int64, error)
}

// UserDirectory resolves the identifiers a registration request may carry.
// Lookups that match nothing return a zero value and no error.
type UserDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
	EmailByClerkID(ctx context.Context, clerkUserID string) (string, error)
	IDByEmail(ctx context.Context, email string) (int64, error)
	IDByAlternateEmail(ctx context.Context, email string) (int64, error)
}
