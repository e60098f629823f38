package recruitment

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

type UserLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Announcer fans a message out to every user with a role.
type Announcer interface {
	NotifyRole(ctx context.Context, role string, msg notifications.Message, origin notifications.Origin) (int, error)
}

type Service struct {
	repo      Repository
	users     UserLookup
	announcer Announcer
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, users UserLookup, announcer Announcer, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		announcer: announcer,
		logger:    logger.With().Str("component", "recruitment").Logger(),
		now:       time.Now,
	}
}

// ListOpen returns every job that is not closed, newest first.
func (s *Service) ListOpen(ctx context.Context) ([]Job, error) {
	list, err := s.repo.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return list, nil
}

func (s *Service) ListWithApplicants(ctx context.Context) ([]JobSummary, error) {
	list, err := s.repo.ListWithApplicants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Job, error) {
	return s.repo.Get(ctx, id)
}

type CreateInput struct {
	Title        string
	Company      string
	Location     string
	Salary       string
	Type         string
	Description  string
	Requirements string
	Deadline     *string
	CreatedBy    *int64
	JobURL       *string
}

// Create posts a job and announces it to all students. A failed
// announcement is logged; the job stays posted.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Job, error) {
	params := CreateParams{
		Title:        sanitize.Text(input.Title),
		Company:      sanitize.Text(input.Company),
		Location:     sanitize.Text(input.Location),
		Salary:       sanitize.Text(input.Salary),
		Type:         sanitize.Text(input.Type),
		Description:  sanitize.Text(input.Description),
		Requirements: sanitize.Text(input.Requirements),
		CreatedBy:    input.CreatedBy,
		JobURL:       trimmed(input.JobURL),
	}
	if params.Title == "" || params.Company == "" {
		return nil, ValidationError{Message: "Missing title/company"}
	}
	if params.Type == "" {
		params.Type = DefaultJobType
	}
	if err := validation.OptionalLink(params.JobURL, "job_url"); err != nil {
		return nil, ValidationError{Field: "job_url", Message: "Job URL must be an http(s) link"}
	}
	deadline, err := dates.ParseOptional(input.Deadline, s.now())
	if err != nil {
		return nil, ValidationError{Field: "deadline", Message: "Deadline is not a recognisable date"}
	}
	params.Deadline = deadline

	job, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.logger.Info().Int64("job_id", job.ID).Str("company", job.Company).Msg("job posted")

	if s.announcer != nil {
		n, err := s.announcer.NotifyRole(ctx, "student", announcement(job), notifications.OriginJob)
		if err != nil {
			s.logger.Error().Err(err).Int64("job_id", job.ID).Msg("announce job")
		} else {
			s.logger.Debug().Int64("job_id", job.ID).Int("recipients", n).Msg("job announced")
		}
	}
	return job, nil
}

func announcement(job *Job) notifications.Message {
	location := job.Location
	if location == "" {
		location = "-"
	}
	jobType := job.Type
	if jobType == "" {
		jobType = DefaultJobType
	}
	relatedType := "job"
	id := job.ID
	return notifications.Message{
		Title:       "New Job: " + job.Title,
		Body:        fmt.Sprintf("Company: %s. Location: %s. Type: %s", job.Company, location, jobType),
		Type:        "job",
		RelatedID:   &id,
		RelatedType: &relatedType,
	}
}

type UpdateInput struct {
	Title        *string
	Company      *string
	Location     *string
	Salary       *string
	Type         *string
	Description  *string
	Requirements *string
	Deadline     *string
	Status       *string
	JobURL       *string
}

// Update applies the non-empty fields of input.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (*Job, error) {
	if err := validation.OptionalLink(input.JobURL, "job_url"); err != nil {
		return nil, ValidationError{Field: "job_url", Message: "Job URL must be an http(s) link"}
	}
	deadline, err := dates.ParseOptional(input.Deadline, s.now())
	if err != nil {
		return nil, ValidationError{Field: "deadline", Message: "Deadline is not a recognisable date"}
	}
	job, err := s.repo.Update(ctx, id, UpdateParams{
		Title:        nonEmpty(input.Title),
		Company:      nonEmpty(input.Company),
		Location:     nonEmpty(input.Location),
		Salary:       nonEmpty(input.Salary),
		Type:         nonEmpty(input.Type),
		Description:  nonEmpty(input.Description),
		Requirements: nonEmpty(input.Requirements),
		Deadline:     deadline,
		Status:       nonEmpty(input.Status),
		JobURL:       trimmed(input.JobURL),
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Apply records or refreshes a student's application.
func (s *Service) Apply(ctx context.Context, jobID, userID int64, coverLetter *string) (*Application, error) {
	if _, err := s.repo.Get(ctx, jobID); err != nil {
		return nil, err
	}
	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	app, err := s.repo.Apply(ctx, jobID, userID, sanitize.OptionalText(coverLetter))
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}
	return app, nil
}

func (s *Service) ListApplicants(ctx context.Context, jobID int64) ([]Applicant, error) {
	list, err := s.repo.ListApplicants(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list applicants: %w", err)
	}
	return list, nil
}

func (s *Service) SetApplicationStatus(ctx context.Context, id int64, status string) (*Application, error) {
	parsed, ok := ParseApplicationStatus(status)
	if !ok {
		return nil, ValidationError{Field: "status", Message: "Status must be applied, shortlisted, selected or rejected"}
	}
	return s.repo.SetApplicationStatus(ctx, id, parsed)
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

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
