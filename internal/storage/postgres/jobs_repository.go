package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepsphere/server/internal/domain/recruitment"
)

var _ recruitment.Repository = (*JobRepository)(nil)

type JobRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const jobColumns = `id, title, company, location, salary, type, description, requirements,
       deadline, posted, status, created_by, job_url, updated_at`

func scanJob(row pgx.Row) (*recruitment.Job, error) {
	var (
		job          recruitment.Job
		location     *string
		salary       *string
		jobType      *string
		description  *string
		requirements *string
		status       *string
		deadline     pgtype.Date
		posted       pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)
	if err := row.Scan(
		&job.ID,
		&job.Title,
		&job.Company,
		&location,
		&salary,
		&jobType,
		&description,
		&requirements,
		&deadline,
		&posted,
		&status,
		&job.CreatedBy,
		&job.JobURL,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, recruitment.ErrJobNotFound
		}
		return nil, err
	}
	job.Location = derefString(location)
	job.Salary = derefString(salary)
	job.Type = derefString(jobType)
	job.Description = derefString(description)
	job.Requirements = derefString(requirements)
	job.Deadline = datePtrFromPG(deadline)
	job.Posted = timeOrZero(posted)
	job.Status = derefString(status)
	if job.Status == "" {
		job.Status = recruitment.StatusActive
	}
	job.UpdatedAt = timeOrZero(updatedAt)
	return &job, nil
}

func (r *JobRepository) ListOpen(ctx context.Context) ([]recruitment.Job, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, `
SELECT `+jobColumns+`
  FROM jobs
 WHERE COALESCE(status, 'Active') <> 'Closed'
 ORDER BY posted DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	out := []recruitment.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

func (r *JobRepository) ListWithApplicants(ctx context.Context) ([]recruitment.JobSummary, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, `
SELECT j.id, j.title, j.company, COALESCE(j.location, ''), j.posted, COALESCE(j.status, 'Active'), j.job_url,
       COUNT(a.id)::int
  FROM jobs j
  LEFT JOIN job_applications a ON a.job_id = j.id
 GROUP BY j.id
 ORDER BY j.posted DESC, j.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs with applicants: %w", err)
	}
	defer rows.Close()

	out := []recruitment.JobSummary{}
	for rows.Next() {
		var (
			s      recruitment.JobSummary
			posted pgtype.Timestamptz
		)
		if err := rows.Scan(&s.ID, &s.Title, &s.Company, &s.Location, &posted, &s.Status, &s.JobURL, &s.Applicants); err != nil {
			return nil, fmt.Errorf("scan job summary: %w", err)
		}
		s.Posted = timeOrZero(posted)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job summaries: %w", err)
	}
	return out, nil
}

func (r *JobRepository) Get(ctx context.Context, id int64) (*recruitment.Job, error) {
	job, err := scanJob(pick(r.pool, r.tx).QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil && !errors.Is(err, recruitment.ErrJobNotFound) {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, err
}

func (r *JobRepository) Create(ctx context.Context, params recruitment.CreateParams) (*recruitment.Job, error) {
	job, err := scanJob(pick(r.pool, r.tx).QueryRow(ctx, `
INSERT INTO jobs (title, company, location, salary, type, description, requirements,
                  deadline, posted, status, created_by, job_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), 'Active', $9, $10)
RETURNING `+jobColumns,
		params.Title,
		params.Company,
		nullIfEmpty(params.Location),
		nullIfEmpty(params.Salary),
		params.Type,
		nullIfEmpty(params.Description),
		nullIfEmpty(params.Requirements),
		dateToPG(params.Deadline),
		params.CreatedBy,
		params.JobURL,
	))
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) Update(ctx context.Context, id int64, params recruitment.UpdateParams) (*recruitment.Job, error) {
	job, err := scanJob(pick(r.pool, r.tx).QueryRow(ctx, `
UPDATE jobs
   SET title = COALESCE($2, title),
       company = COALESCE($3, company),
       location = COALESCE($4, location),
       salary = COALESCE($5, salary),
       type = COALESCE($6, type),
       description = COALESCE($7, description),
       requirements = COALESCE($8, requirements),
       deadline = COALESCE($9, deadline),
       status = COALESCE($10, status),
       job_url = COALESCE($11, job_url),
       updated_at = NOW()
 WHERE id = $1
RETURNING `+jobColumns,
		id,
		params.Title,
		params.Company,
		params.Location,
		params.Salary,
		params.Type,
		params.Description,
		params.Requirements,
		dateToPG(params.Deadline),
		params.Status,
		params.JobURL,
	))
	if err != nil && !errors.Is(err, recruitment.ErrJobNotFound) {
		return nil, fmt.Errorf("update job: %w", err)
	}
	return job, err
}

func (r *JobRepository) Delete(ctx context.Context, id int64) error {
	tag, err := pick(r.pool, r.tx).Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return recruitment.ErrJobNotFound
	}
	return nil
}

// Apply inserts the application or, when the student already applied,
// replaces the cover letter and refreshes applied_at.
func (r *JobRepository) Apply(ctx context.Context, jobID, userID int64, coverLetter *string) (*recruitment.Application, error) {
	var (
		app       recruitment.Application
		appliedAt pgtype.Timestamptz
	)
	err := pick(r.pool, r.tx).QueryRow(ctx, `
INSERT INTO job_applications (job_id, user_id, status, cover_letter, applied_at)
VALUES ($1, $2, 'applied', $3, NOW())
ON CONFLICT (job_id, user_id) DO UPDATE
   SET cover_letter = EXCLUDED.cover_letter,
       applied_at = NOW()
RETURNING id, job_id, user_id, status, applied_at`, jobID, userID, coverLetter,
	).Scan(&app.ID, &app.JobID, &app.UserID, &app.Status, &appliedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, recruitment.ErrUserNotFound
		}
		return nil, fmt.Errorf("insert application: %w", err)
	}
	app.AppliedAt = timeOrZero(appliedAt)
	return &app, nil
}

func (r *JobRepository) ListApplicants(ctx context.Context, jobID int64) ([]recruitment.Applicant, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, `
SELECT a.id, a.user_id, a.status, a.cover_letter, a.applied_at, u.first_name, u.last_name, u.email
  FROM job_applications a
  JOIN users u ON u.id = a.user_id
 WHERE a.job_id = $1
 ORDER BY a.applied_at DESC, a.id DESC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list applicants: %w", err)
	}
	defer rows.Close()

	out := []recruitment.Applicant{}
	for rows.Next() {
		var (
			a         recruitment.Applicant
			appliedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Status, &a.CoverLetter, &appliedAt, &a.FirstName, &a.LastName, &a.Email); err != nil {
			return nil, fmt.Errorf("scan applicant: %w", err)
		}
		a.AppliedAt = timeOrZero(appliedAt)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applicants: %w", err)
	}
	return out, nil
}

func (r *JobRepository) SetApplicationStatus(ctx context.Context, id int64, status string) (*recruitment.Application, error) {
	var (
		app       recruitment.Application
		appliedAt pgtype.Timestamptz
	)
	err := pick(r.pool, r.tx).QueryRow(ctx, `
UPDATE job_applications SET status = $2
 WHERE id = $1
RETURNING id, job_id, user_id, status, applied_at`, id, status,
	).Scan(&app.ID, &app.JobID, &app.UserID, &app.Status, &appliedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, recruitment.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("set application status: %w", err)
	}
	app.AppliedAt = timeOrZero(appliedAt)
	return &app, nil
}
