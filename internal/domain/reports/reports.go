// Package reports produces placement statistics, their CSV export and the
// archive of generated reports.
package reports

import (
	"context"
	"encoding/json"
	"time"
)

const TypeSummary = "summary"

type JobStat struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Applications int    `json:"applications"`
	Selected     int    `json:"selected"`
}

type Summary struct {
	TotalJobs         int       `json:"total_jobs"`
	TotalApplications int       `json:"total_applications"`
	TotalSelected     int       `json:"total_selected"`
	ApplicationsByJob []JobStat `json:"applications_by_job"`
}

type Report struct {
	ID          int64           `json:"id"`
	GeneratedBy *int64          `json:"generated_by"`
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Analytics holds the coarse counts shown to administrators.
type Analytics struct {
	UsersByRole         map[string]int `json:"users_by_role"`
	ApprovedProfiles    int            `json:"approved_profiles"`
	PendingProfiles     int            `json:"pending_profiles"`
	FilesByType         map[string]int `json:"files_by_type"`
	VerifiedFiles       int            `json:"verified_files"`
	UnverifiedFiles     int            `json:"unverified_files"`
	Jobs                int            `json:"jobs"`
	OpenJobs            int            `json:"open_jobs"`
	Applications        int            `json:"applications"`
	Events              int            `json:"events"`
	Registrations       int            `json:"registrations"`
	Notifications       int            `json:"notifications"`
	UnreadNotifications int            `json:"unread_notifications"`
}

type Repository interface {
	Summary(ctx context.Context) (*Summary, error)
	SaveReport(ctx context.Context, generatedBy *int64, reportType string, data []byte) (*Report, error)
	ListReports(ctx context.Context, limit int) ([]Report, error)
	// PruneReports deletes reports generated before cutoff and returns the count.
	PruneReports(ctx context.Context, reportType string, cutoff time.Time) (int64, error)
	Analytics(ctx context.Context) (*Analytics, error)
}
