package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const CSVFilename = "tpo_summary.csv"

var csvHeader = []string{"job_id", "title", "applications", "selected"}

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "reports").Logger(),
		now:    time.Now,
	}
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	summary, err := s.repo.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	if summary.ApplicationsByJob == nil {
		summary.ApplicationsByJob = []JobStat{}
	}
	return summary, nil
}

// SummaryCSV renders the per-job statistics and archives them as a
// summary report attributed to generatedBy (nil when anonymous).
func (s *Service) SummaryCSV(ctx context.Context, generatedBy *int64) ([]byte, error) {
	summary, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}

	body, err := RenderCSV(summary.ApplicationsByJob)
	if err != nil {
		return nil, err
	}
	if _, err := s.archive(ctx, generatedBy, summary.ApplicationsByJob); err != nil {
		return nil, err
	}
	return body, nil
}

// Snapshot archives the current statistics without rendering them. Run
// periodically by the job queue.
func (s *Service) Snapshot(ctx context.Context) (*Report, error) {
	summary, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return s.archive(ctx, nil, summary.ApplicationsByJob)
}

func (s *Service) archive(ctx context.Context, generatedBy *int64, rows []JobStat) (*Report, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	report, err := s.repo.SaveReport(ctx, generatedBy, TypeSummary, data)
	if err != nil {
		return nil, fmt.Errorf("archive report: %w", err)
	}
	s.logger.Info().Int64("report_id", report.ID).Int("jobs", len(rows)).Msg("summary report archived")
	return report, nil
}

// RenderCSV writes the job_id,title,applications,selected table.
func RenderCSV(rows []JobStat) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatInt(row.ID, 10),
			row.Title,
			strconv.Itoa(row.Applications),
			strconv.Itoa(row.Selected),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

const (
	defaultReportLimit = 50
	maxReportLimit     = 200
)

// ListReports returns the newest archived reports. A non-positive limit means
// the default page and larger requests are capped.
func (s *Service) ListReports(ctx context.Context, limit int) ([]Report, error) {
	switch {
	case limit <= 0:
		limit = defaultReportLimit
	case limit > maxReportLimit:
		limit = maxReportLimit
	}
	list, err := s.repo.ListReports(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return list, nil
}

// Prune drops summary reports older than keep.
func (s *Service) Prune(ctx context.Context, keep time.Duration) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	n, err := s.repo.PruneReports(ctx, TypeSummary, s.now().Add(-keep))
	if err != nil {
		return 0, fmt.Errorf("prune reports: %w", err)
	}
	return n, nil
}

func (s *Service) Analytics(ctx context.Context) (*Analytics, error) {
	a, err := s.repo.Analytics(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	return a, nil
}
