// Package recruitment covers job postings and student applications.
package recruitment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prepsphere/server/internal/domain/dates"
)

var (
	ErrJobNotFound         = errors.New("job not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrApplicationNotFound = errors.New("application not found")
)

const (
	StatusActive = "Active"
	StatusClosed = "Closed"

	DefaultJobType = "Full-time"
)

// Application statuses. "selected" feeds placement statistics.
const (
	ApplicationApplied     = "applied"
	ApplicationShortlisted = "shortlisted"
	ApplicationSelected    = "selected"
	ApplicationRejected    = "rejected"
)

// ParseApplicationStatus matches case-insensitively.
func ParseApplicationStatus(s string) (string, bool) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case ApplicationApplied, ApplicationShortlisted, ApplicationSelected, ApplicationRejected:
		return v, true
	default:
		return "", false
	}
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

type Job struct {
	ID           int64       `json:"id"`
	Title        string      `json:"title"`
	Company      string      `json:"company"`
	Location     string      `json:"location"`
	Salary       string      `json:"salary"`
	Type         string      `json:"type"`
	Description  string      `json:"description"`
	Requirements string      `json:"requirements"`
	Deadline     *dates.Date `json:"deadline"`
	Posted       time.Time   `json:"posted"`
	Status       string      `json:"status"`
	CreatedBy    *int64      `json:"created_by"`
	JobURL       *string     `json:"job_url"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// JobSummary is a row of the TPO job board.
type JobSummary struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Company    string    `json:"company"`
	Location   string    `json:"location"`
	Posted     time.Time `json:"posted"`
	Status     string    `json:"status"`
	JobURL     *string   `json:"job_url"`
	Applicants int       `json:"applicants"`
}

type Applicant struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Status      string    `json:"status"`
	CoverLetter *string   `json:"cover_letter"`
	AppliedAt   time.Time `json:"applied_at"`
	FirstName   *string   `json:"first_name"`
	LastName    *string   `json:"last_name"`
	Email       string    `json:"email"`
}

type Application struct {
	ID        int64     `json:"id"`
	JobID     int64     `json:"job_id"`
	UserID    int64     `json:"user_id"`
	Status    string    `json:"status"`
	AppliedAt time.Time `json:"applied_at"`
}

type CreateParams struct {
	Title        string
	Company      string
	Location     string
	Salary       string
	Type         string
	Description  string
	Requirements string
	Deadline     *dates.Date
	CreatedBy    *int64
	JobURL       *string
}

// UpdateParams leaves nil fields untouched.
type UpdateParams struct {
	Title        *string
	Company      *string
	Location     *string
	Salary       *string
	Type         *string
	Description  *string
	Requirements *string
	Deadline     *dates.Date
	Status       *string
	JobURL       *string
}

type Repository interface {
	ListOpen(ctx context.Context) ([]Job, error)
	ListWithApplicants(ctx context.Context) ([]JobSummary, error)
	Get(ctx context.Context, id int64) (*Job, error)
	Create(ctx context.Context, params CreateParams) (*Job, error)
	Update(ctx context.Context, id int64, params UpdateParams) (*Job, error)
	Delete(ctx context.Context, id int64) error
	// Apply inserts or refreshes the (job, user) application.
	Apply(ctx context.Context, jobID, userID int64, coverLetter *string) (*Application, error)
	ListApplicants(ctx context.Context, jobID int64) ([]Applicant, error)
	SetApplicationStatus(ctx context.Context, id int64, status string) (*Application, error)
}
