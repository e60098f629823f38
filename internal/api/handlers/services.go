package handlers

import (
	"context"

	"github.com/prepsphere/server/internal/domain/events"
	"github.com/prepsphere/server/internal/domain/files"
	"github.com/prepsphere/server/internal/domain/notifications"
	"github.com/prepsphere/server/internal/domain/recruitment"
	"github.com/prepsphere/server/internal/domain/reports"
	"github.com/prepsphere/server/internal/domain/users"
)

// The interfaces below are the slices of the domain services each handler
// needs. Tests substitute stubs.

type UserService interface {
	Register(ctx context.Context, input users.RegisterInput) (*users.User, error)
	Get(ctx context.Context, id int64) (*users.User, error)
	GetByClerkID(ctx context.Context, clerkUserID string) (*users.User, error)
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	UpdateName(ctx context.Context, id int64, firstName, lastName string) (*users.User, error)
	Delete(ctx context.Context, id int64) error
	SyncExternal(ctx context.Context, ext users.ExternalUser) (*users.User, error)
	DeleteExternal(ctx context.Context, clerkUserID string) error

	GetProfile(ctx context.Context, userID int64) (*users.Profile, error)
	SaveProfile(ctx context.Context, userID int64, input users.ProfileInput) (*users.Profile, error)
	GetTPOProfile(ctx context.Context, userID int64) (*users.TPOProfile, error)
	SaveTPOProfile(ctx context.Context, userID int64, alternateEmail, phone *string) (*users.TPOProfile, error)
}

type ProfileReviewService interface {
	ListPendingProfiles(ctx context.Context) ([]users.PendingProfile, error)
	ApproveProfile(ctx context.Context, userID int64, notes string) (*users.ProfileApproval, error)
	RejectProfile(ctx context.Context, userID int64, reason string) (*users.ProfileApproval, error)
	ListApprovedStudents(ctx context.Context) ([]users.ApprovedStudent, error)
	SetPlacementStatus(ctx context.Context, userID int64, status string) (*users.PlacementUpdate, error)
}

type FileService interface {
	Upload(ctx context.Context, input files.UploadInput, backend files.Backend) (*files.File, error)
	ListByUser(ctx context.Context, userID int64) ([]files.File, error)
	Get(ctx context.Context, id int64) (*files.Metadata, error)
	Download(ctx context.Context, id int64) (*files.Download, error)
	Presign(ctx context.Context, id int64) (string, error)
	Verify(ctx context.Context, id int64, input files.VerifyInput) (*files.File, error)
	Reject(ctx context.Context, id int64, reason string) (*files.File, error)
	Delete(ctx context.Context, id int64) error
	RemoteConfigured() bool
	MaxBytes() int64
}

type FileReviewService interface {
	PendingResumes(ctx context.Context) ([]files.ReviewItem, error)
	VerifiedResumes(ctx context.Context) ([]files.ReviewItem, error)
	PendingCertificates(ctx context.Context) ([]files.ReviewItem, error)
}

type JobService interface {
	ListOpen(ctx context.Context) ([]recruitment.Job, error)
	ListWithApplicants(ctx context.Context) ([]recruitment.JobSummary, error)
	Get(ctx context.Context, id int64) (*recruitment.Job, error)
	Create(ctx context.Context, input recruitment.CreateInput) (*recruitment.Job, error)
	Update(ctx context.Context, id int64, input recruitment.UpdateInput) (*recruitment.Job, error)
	Delete(ctx context.Context, id int64) error
	Apply(ctx context.Context, jobID, userID int64, coverLetter *string) (*recruitment.Application, error)
	ListApplicants(ctx context.Context, jobID int64) ([]recruitment.Applicant, error)
	SetApplicationStatus(ctx context.Context, id int64, status string) (*recruitment.Application, error)
}

type EventService interface {
	List(ctx context.Context, filter events.Filter) ([]events.Event, error)
	Create(ctx context.Context, input events.CreateInput) (*events.Event, error)
	Update(ctx context.Context, id int64, input events.UpdateInput) (*events.Event, error)
	Get(ctx context.Context, id int64) (*events.Details, error)
	Register(ctx context.Context, eventID int64, input events.RegisterInput) (*events.Registration, error)
	Registrants(ctx context.Context, eventID int64) ([]events.Registrant, error)
	SendReminders(ctx context.Context, eventID int64) (int, error)
}

type NotificationService interface {
	ListByUser(ctx context.Context, userID int64) ([]notifications.Notification, error)
	Create(ctx context.Context, userID int64, input notifications.CreateInput) (*notifications.Notification, error)
	Broadcast(ctx context.Context, title, message string) (int, error)
	MarkRead(ctx context.Context, id int64) (*notifications.Notification, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, id int64) error
}

type ReportService interface {
	Summary(ctx context.Context) (*reports.Summary, error)
	SummaryCSV(ctx context.Context, generatedBy *int64) ([]byte, error)
	ListReports(ctx context.Context, limit int) ([]reports.Report, error)
	Analytics(ctx context.Context) (*reports.Analytics, error)
}

var (
	_ UserService          = (*users.Service)(nil)
	_ ProfileReviewService = (*users.Service)(nil)
	_ FileService          = (*files.Service)(nil)
	_ FileReviewService    = (*files.Service)(nil)
	_ JobService           = (*recruitment.Service)(nil)
	_ EventService         = (*events.Service)(nil)
	_ NotificationService  = (*notifications.Service)(nil)
	_ ReportService        = (*reports.Service)(nil)
)
