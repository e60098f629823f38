package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prepsphere/server/internal/domain/reports"
	"github.com/prepsphere/server/internal/domain/users"
	"github.com/prepsphere/server/internal/email"
	"github.com/prepsphere/server/internal/metrics"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
)

// NotificationEmailArgs mirrors one stored notification as an email.
type NotificationEmailArgs struct {
	NotificationID int64  `json:"notification_id"`
	UserID         int64  `json:"user_id"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

func (NotificationEmailArgs) Kind() string { return JobKindNotificationEmail }

type ReconcileUploadsArgs struct{}

func (ReconcileUploadsArgs) Kind() string { return JobKindReconcileUploads }

type SummarySnapshotArgs struct{}

func (SummarySnapshotArgs) Kind() string { return JobKindSummarySnapshot }

type UserGetter interface {
	Get(ctx context.Context, id int64) (*users.User, error)
}

type Mailer interface {
	Configured() bool
	Send(ctx context.Context, to, subject, body string) (string, error)
}

// NotificationEmailWorker delivers notification emails. Without a
// configured transport the job completes without sending.
type NotificationEmailWorker struct {
	river.WorkerDefaults[NotificationEmailArgs]
	Users  UserGetter
	Mailer Mailer
	Logger zerolog.Logger
}

func (w NotificationEmailWorker) Work(ctx context.Context, job *river.Job[NotificationEmailArgs]) error {
	if job == nil {
		return fmt.Errorf("notification email job missing")
	}
	if w.Mailer == nil || !w.Mailer.Configured() {
		observe(JobKindNotificationEmail, "skipped")
		return nil
	}
	if w.Users == nil {
		return fmt.Errorf("user lookup not configured")
	}

	user, err := w.Users.Get(ctx, job.Args.UserID)
	if errors.Is(err, users.ErrNotFound) {
		observe(JobKindNotificationEmail, "cancelled")
		return river.JobCancel(err)
	}
	if err != nil {
		observe(JobKindNotificationEmail, "failed")
		return fmt.Errorf("load recipient: %w", err)
	}
	to := strings.TrimSpace(user.Email)
	if to == "" {
		observe(JobKindNotificationEmail, "cancelled")
		return river.JobCancel(fmt.Errorf("user %d has no email address", user.ID))
	}

	transport, err := w.Mailer.Send(ctx, to, job.Args.Subject, job.Args.Body)
	if errors.Is(err, email.ErrInvalidRecipient) {
		observe(JobKindNotificationEmail, "cancelled")
		w.Logger.Warn().Err(err).
			Int64("notification_id", job.Args.NotificationID).
			Int64("user_id", job.Args.UserID).
			Msg("recipient rejected, email dropped")
		return river.JobCancel(err)
	}
	if err != nil {
		observe(JobKindNotificationEmail, "failed")
		return fmt.Errorf("send notification %d: %w", job.Args.NotificationID, err)
	}
	observe(JobKindNotificationEmail, "ok")
	w.Logger.Debug().
		Int64("notification_id", job.Args.NotificationID).
		Int64("user_id", job.Args.UserID).
		Str("transport", transport).
		Msg("notification email sent")
	return nil
}

type UploadReconciler interface {
	Reconcile(ctx context.Context) (total, missing int, err error)
}

// ReconcileUploadsWorker counts file rows whose stored object is gone.
type ReconcileUploadsWorker struct {
	river.WorkerDefaults[ReconcileUploadsArgs]
	Files  UploadReconciler
	Logger zerolog.Logger
}

func (w ReconcileUploadsWorker) Work(ctx context.Context, job *river.Job[ReconcileUploadsArgs]) error {
	if w.Files == nil {
		return fmt.Errorf("file service not configured")
	}
	total, missing, err := w.Files.Reconcile(ctx)
	if err != nil {
		observe(JobKindReconcileUploads, "failed")
		return fmt.Errorf("reconcile uploads: %w", err)
	}
	observe(JobKindReconcileUploads, "ok")

	event := w.Logger.Info()
	if missing > 0 {
		event = w.Logger.Warn()
	}
	event.Int("files", total).Int("missing", missing).Msg("upload reconcile finished")
	return nil
}

type ReportArchiver interface {
	Snapshot(ctx context.Context) (*reports.Report, error)
	Prune(ctx context.Context, keep time.Duration) (int64, error)
}

// SummarySnapshotWorker archives the placement summary and drops archived
// summaries older than Keep.
type SummarySnapshotWorker struct {
	river.WorkerDefaults[SummarySnapshotArgs]
	Reports ReportArchiver
	Keep    time.Duration
	Logger  zerolog.Logger
}

func (w SummarySnapshotWorker) Work(ctx context.Context, job *river.Job[SummarySnapshotArgs]) error {
	if w.Reports == nil {
		return fmt.Errorf("report service not configured")
	}
	report, err := w.Reports.Snapshot(ctx)
	if err != nil {
		observe(JobKindSummarySnapshot, "failed")
		return fmt.Errorf("snapshot summary: %w", err)
	}

	var pruned int64
	if w.Keep > 0 {
		pruned, err = w.Reports.Prune(ctx, w.Keep)
		if err != nil {
			observe(JobKindSummarySnapshot, "failed")
			return fmt.Errorf("prune reports: %w", err)
		}
	}
	observe(JobKindSummarySnapshot, "ok")
	w.Logger.Info().Int64("report_id", report.ID).Int64("pruned", pruned).Msg("summary snapshot archived")
	return nil
}

func observe(kind, outcome string) {
	metrics.JobsCompletedTotal.WithLabelValues(kind, outcome).Inc()
}

// Deps carries the services the workers call into.
type Deps struct {
	Users      UserGetter
	Mailer     Mailer
	Files      UploadReconciler
	Reports    ReportArchiver
	ReportKeep time.Duration
	Logger     zerolog.Logger
}

func NewWorkers(deps Deps) *river.Workers {
	logger := deps.Logger.With().Str("component", "jobs").Logger()
	workers := river.NewWorkers()
	river.AddWorker[NotificationEmailArgs](workers, NotificationEmailWorker{
		Users:  deps.Users,
		Mailer: deps.Mailer,
		Logger: logger,
	})
	river.AddWorker[ReconcileUploadsArgs](workers, ReconcileUploadsWorker{
		Files:  deps.Files,
		Logger: logger,
	})
	river.AddWorker[SummarySnapshotArgs](workers, SummarySnapshotWorker{
		Reports: deps.Reports,
		Keep:    deps.ReportKeep,
		Logger:  logger,
	})
	return workers
}
