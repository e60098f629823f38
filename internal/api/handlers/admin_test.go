package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prepsphere/server/internal/domain/files"
	"github.com/prepsphere/server/internal/domain/reports"
	"github.com/stretchr/testify/require"
)

func TestPendingCertificates(t *testing.T) {
	h := NewAdminHandler(&stubFiles{
		certificatesFn: func(context.Context) ([]files.ReviewItem, error) {
			return []files.ReviewItem{{File: files.File{ID: 3, FileType: files.TypeCertificate}, Email: "s@x.edu"}}, nil
		},
	}, &stubReports{}, "test")

	rec := serve("GET /api/v1/admin/pending-certificates", h.PendingCertificates,
		httptest.NewRequest(http.MethodGet, "/api/v1/admin/pending-certificates", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]files.ReviewItem](t, rec)
	require.Len(t, list, 1)
	require.Equal(t, files.TypeCertificate, list[0].FileType)
}

func TestAnalytics(t *testing.T) {
	h := NewAdminHandler(&stubFiles{}, &stubReports{
		analyticsFn: func(context.Context) (*reports.Analytics, error) {
			return &reports.Analytics{UsersByRole: map[string]int{"student": 10, "tpo": 2}, Jobs: 4}, nil
		},
	}, "test")

	rec := serve("GET /api/v1/admin/analytics", h.Analytics, httptest.NewRequest(http.MethodGet, "/api/v1/admin/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[reports.Analytics](t, rec)
	require.Equal(t, 10, body.UsersByRole["student"])
	require.Equal(t, 4, body.Jobs)
}

func TestAnalytics_Failure(t *testing.T) {
	h := NewAdminHandler(&stubFiles{}, &stubReports{
		analyticsFn: func(context.Context) (*reports.Analytics, error) {
			return nil, errors.New("connection reset")
		},
	}, "development")

	rec := serve("GET /api/v1/admin/analytics", h.Analytics, httptest.NewRequest(http.MethodGet, "/api/v1/admin/analytics", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	p := decodeProblem(t, rec)
	require.Equal(t, "Server error", p.Title)
	require.Contains(t, p.Detail, "connection reset")
}
