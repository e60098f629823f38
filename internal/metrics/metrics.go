package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "prepsphere"

// Registry is the process-wide registry served on /metrics.
var Registry = prometheus.NewRegistry()

var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// HealthCheckStatus tracks individual readiness checks: 0 = fail, 1 = warn, 2 = pass.
var HealthCheckStatus = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_check_status",
		Help:      "Individual health check status (0=fail, 1=warn, 2=pass)",
	},
	[]string{"check"},
)

// Upload pipeline

var FileUploadsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "file_uploads_total",
		Help:      "File uploads by storage backend and outcome",
	},
	[]string{"backend", "outcome"}, // backend: remote|local, outcome: stored|rejected|failed
)

var FileUploadBytes = promauto.With(Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "file_upload_bytes",
		Help:      "Size of accepted uploads in bytes",
		// 10KB .. 1MB
		Buckets: []float64{10_000, 50_000, 100_000, 250_000, 500_000, 1_000_000},
	},
	[]string{"file_type"},
)

var StoredFilesMissing = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stored_files_missing",
		Help:      "File rows whose stored object was missing at the last reconciliation",
	},
)

// Notifications and email

var NotificationsCreatedTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_created_total",
		Help:      "Notifications created by origin",
	},
	[]string{"origin"}, // direct|broadcast|job|reminder|rejection
)

var EmailsSentTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_sent_total",
		Help:      "Email delivery attempts by transport and outcome",
	},
	[]string{"transport", "outcome"}, // transport: smtp|resend|none
)

// Background jobs

var JobsCompletedTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_completed_total",
		Help:      "Background jobs completed by kind and outcome",
	},
	[]string{"kind", "outcome"},
)

var initOnce sync.Once

// Init registers runtime collectors and records build information. Safe to
// call more than once.
func Init(version, commit, buildDate string) {
	initOnce.Do(func() {
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
