package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepsphere/server/internal/domain/reports"
)

var _ reports.Repository = (*ReportRepository)(nil)

type ReportRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *ReportRepository) Summary(ctx context.Context) (*reports.Summary, error) {
	q := pick(r.pool, r.tx)
	var s reports.Summary
	err := q.QueryRow(ctx, `
SELECT (SELECT COUNT(*)::int FROM jobs),
       (SELECT COUNT(*)::int FROM job_applications),
       (SELECT COUNT(*)::int FROM job_applications WHERE LOWER(status) = 'selected')`,
	).Scan(&s.TotalJobs, &s.TotalApplications, &s.TotalSelected)
	if err != nil {
		return nil, fmt.Errorf("summary totals: %w", err)
	}

	rows, err := q.Query(ctx, `
SELECT j.id, j.title,
       COUNT(a.id)::int,
       COUNT(a.id) FILTER (WHERE LOWER(a.status) = 'selected')::int
  FROM jobs j
  LEFT JOIN job_applications a ON a.job_id = j.id
 GROUP BY j.id, j.title
 ORDER BY COUNT(a.id) DESC, j.id`)
	if err != nil {
		return nil, fmt.Errorf("summary per job: %w", err)
	}
	defer rows.Close()

	s.ApplicationsByJob = []reports.JobStat{}
	for rows.Next() {
		var stat reports.JobStat
		if err := rows.Scan(&stat.ID, &stat.Title, &stat.Applications, &stat.Selected); err != nil {
			return nil, fmt.Errorf("scan job stat: %w", err)
		}
		s.ApplicationsByJob = append(s.ApplicationsByJob, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job stats: %w", err)
	}
	return &s, nil
}

func (r *ReportRepository) SaveReport(ctx context.Context, generatedBy *int64, reportType string, data []byte) (*reports.Report, error) {
	var (
		report      reports.Report
		payload     string
		generatedAt pgtype.Timestamptz
	)
	err := pick(r.pool, r.tx).QueryRow(ctx, `
INSERT INTO tpo_reports (generated_by, type, data_json, generated_at)
VALUES ($1, $2, $3, NOW())
RETURNING id, generated_by, type, data_json, generated_at`, generatedBy, reportType, string(data),
	).Scan(&report.ID, &report.GeneratedBy, &report.Type, &payload, &generatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	report.Data = []byte(payload)
	report.GeneratedAt = timeOrZero(generatedAt)
	return &report, nil
}

func (r *ReportRepository) ListReports(ctx context.Context, limit int) ([]reports.Report, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, `
SELECT id, generated_by, type, data_json, generated_at
  FROM tpo_reports
 ORDER BY generated_at DESC, id DESC
 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []reports.Report{}
	for rows.Next() {
		var (
			report      reports.Report
			payload     string
			generatedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&report.ID, &report.GeneratedBy, &report.Type, &payload, &generatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		report.Data = []byte(payload)
		report.GeneratedAt = timeOrZero(generatedAt)
		out = append(out, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

func (r *ReportRepository) PruneReports(ctx context.Context, reportType string, cutoff time.Time) (int64, error) {
	tag, err := pick(r.pool, r.tx).Exec(ctx, `DELETE FROM tpo_reports WHERE type = $1 AND generated_at < $2`, reportType, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune reports: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ReportRepository) Analytics(ctx context.Context) (*reports.Analytics, error) {
	q := pick(r.pool, r.tx)
	a := reports.Analytics{
		UsersByRole: map[string]int{},
		FilesByType: map[string]int{},
	}

	if err := groupCounts(ctx, q, `SELECT LOWER(role), COUNT(*)::int FROM users GROUP BY LOWER(role)`, a.UsersByRole); err != nil {
		return nil, fmt.Errorf("users by role: %w", err)
	}
	if err := groupCounts(ctx, q, `SELECT COALESCE(file_type, 'unknown'), COUNT(*)::int FROM file_uploads GROUP BY 1`, a.FilesByType); err != nil {
		return nil, fmt.Errorf("files by type: %w", err)
	}

	err := q.QueryRow(ctx, `
SELECT (SELECT COUNT(*)::int FROM profiles WHERE is_approved),
       (SELECT COUNT(*)::int FROM profiles WHERE NOT is_approved),
       (SELECT COUNT(*)::int FROM file_uploads WHERE is_verified),
       (SELECT COUNT(*)::int FROM file_uploads WHERE NOT is_verified),
       (SELECT COUNT(*)::int FROM jobs),
       (SELECT COUNT(*)::int FROM jobs WHERE COALESCE(status, 'Active') <> 'Closed'),
       (SELECT COUNT(*)::int FROM job_applications),
       (SELECT COUNT(*)::int FROM events),
       (SELECT COUNT(*)::int FROM event_registrations),
       (SELECT COUNT(*)::int FROM notifications),
       (SELECT COUNT(*)::int FROM notifications WHERE NOT is_read)`,
	).Scan(
		&a.ApprovedProfiles,
		&a.PendingProfiles,
		&a.VerifiedFiles,
		&a.UnverifiedFiles,
		&a.Jobs,
		&a.OpenJobs,
		&a.Applications,
		&a.Events,
		&a.Registrations,
		&a.Notifications,
		&a.UnreadNotifications,
	)
	if err != nil {
		return nil, fmt.Errorf("analytics counts: %w", err)
	}
	return &a, nil
}

func groupCounts(ctx context.Context, q queryer, sql string, into map[string]int) error {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}
