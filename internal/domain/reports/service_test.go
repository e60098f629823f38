package reports

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	summaryFn   func(ctx context.Context) (*Summary, error)
	saveFn      func(ctx context.Context, generatedBy *int64, reportType string, data []byte) (*Report, error)
	listFn      func(ctx context.Context, limit int) ([]Report, error)
	pruneFn     func(ctx context.Context, reportType string, cutoff time.Time) (int64, error)
	analyticsFn func(ctx context.Context) (*Analytics, error)
}

func (s *stubRepo) Summary(ctx context.Context) (*Summary, error) {
	if s.summaryFn == nil {
		return &Summary{}, nil
	}
	return s.summaryFn(ctx)
}

func (s *stubRepo) SaveReport(ctx context.Context, generatedBy *int64, reportType string, data []byte) (*Report, error) {
	if s.saveFn == nil {
		return &Report{ID: 1, GeneratedBy: generatedBy, Type: reportType, Data: data}, nil
	}
	return s.saveFn(ctx, generatedBy, reportType, data)
}

func (s *stubRepo) ListReports(ctx context.Context, limit int) ([]Report, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit)
}

func (s *stubRepo) PruneReports(ctx context.Context, reportType string, cutoff time.Time) (int64, error) {
	if s.pruneFn == nil {
		return 0, nil
	}
	return s.pruneFn(ctx, reportType, cutoff)
}

func (s *stubRepo) Analytics(ctx context.Context) (*Analytics, error) {
	if s.analyticsFn == nil {
		return &Analytics{}, nil
	}
	return s.analyticsFn(ctx)
}

func sampleSummary(context.Context) (*Summary, error) {
	return &Summary{
		TotalJobs:         2,
		TotalApplications: 5,
		TotalSelected:     1,
		ApplicationsByJob: []JobStat{
			{ID: 3, Title: `Analyst, "Data"`, Applications: 4, Selected: 1},
			{ID: 1, Title: "Intern", Applications: 1, Selected: 0},
		},
	}, nil
}

func TestRenderCSV_QuotesTitles(t *testing.T) {
	summary, _ := sampleSummary(context.Background())
	body, err := RenderCSV(summary.ApplicationsByJob)
	require.NoError(t, err)
	require.Equal(t, "job_id,title,applications,selected\n3,\"Analyst, \"\"Data\"\"\",4,1\n1,Intern,1,0\n", string(body))
}

func TestRenderCSV_Empty(t *testing.T) {
	body, err := RenderCSV(nil)
	require.NoError(t, err)
	require.Equal(t, "job_id,title,applications,selected\n", string(body))
}

func TestSummaryCSV_ArchivesRows(t *testing.T) {
	var saved []byte
	var by *int64
	repo := &stubRepo{
		summaryFn: sampleSummary,
		saveFn: func(_ context.Context, generatedBy *int64, reportType string, data []byte) (*Report, error) {
			require.Equal(t, TypeSummary, reportType)
			saved, by = data, generatedBy
			return &Report{ID: 9}, nil
		},
	}
	svc := NewService(repo, zerolog.Nop())

	caller := int64(4)
	_, err := svc.SummaryCSV(context.Background(), &caller)
	require.NoError(t, err)
	require.Equal(t, int64(4), *by)

	var rows []JobStat
	require.NoError(t, json.Unmarshal(saved, &rows))
	require.Len(t, rows, 2)
	require.Equal(t, int64(3), rows[0].ID)
}

func TestSummaryCSV_ArchiveFailure(t *testing.T) {
	repo := &stubRepo{saveFn: func(context.Context, *int64, string, []byte) (*Report, error) {
		return nil, errors.New("insert failed")
	}}
	svc := NewService(repo, zerolog.Nop())

	_, err := svc.SummaryCSV(context.Background(), nil)
	require.ErrorContains(t, err, "archive report")
}

func TestSummary_EmptyListNotNull(t *testing.T) {
	svc := NewService(&stubRepo{}, zerolog.Nop())
	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary.ApplicationsByJob)
}

func TestPrune_UsesCutoff(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	var cutoff time.Time
	repo := &stubRepo{pruneFn: func(_ context.Context, _ string, c time.Time) (int64, error) {
		cutoff = c
		return 3, nil
	}}
	svc := NewService(repo, zerolog.Nop())
	svc.now = func() time.Time { return now }

	n, err := svc.Prune(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.Equal(t, now.Add(-7*24*time.Hour), cutoff)

	n, err = svc.Prune(context.Background(), 0)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestListReports_ClampsLimit(t *testing.T) {
	var got int
	repo := &stubRepo{listFn: func(_ context.Context, limit int) ([]Report, error) {
		got = limit
		return nil, nil
	}}
	svc := NewService(repo, zerolog.Nop())

	for _, tc := range []struct{ in, want int }{
		{10000, 200},
		{201, 200},
		{200, 200},
		{25, 25},
		{0, 50},
		{-3, 50},
	} {
		_, err := svc.ListReports(context.Background(), tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "limit %d", tc.in)
	}
}
