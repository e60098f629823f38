package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// ReadinessCheck represents the readiness of the server and its dependencies.
type ReadinessCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult represents the result of a single dependency check
type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HealthDB is satisfied by postgres.Repository.
type HealthDB interface {
	Ping(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int64, bool, error)
}

// JobLister is satisfied by *river.Client[pgx.Tx].
type JobLister interface {
	JobList(ctx context.Context, params *river.JobListParams) (*river.JobListResult, error)
}

type HealthChecker struct {
	db        HealthDB
	jobs      JobLister
	expected  uint
	version   string
	gitCommit string
}

// NewHealthChecker builds the readiness checker. expected is the newest
// embedded migration; jobs may be nil when the queue is disabled.
func NewHealthChecker(db HealthDB, jobs JobLister, expected uint, version, gitCommit string) *HealthChecker {
	return &HealthChecker{
		db:        db,
		jobs:      jobs,
		expected:  expected,
		version:   version,
		gitCommit: gitCommit,
	}
}

// Readyz checks the database, the schema version and the job queue. Any
// failing check turns the response into a 503.
func (h *HealthChecker) Readyz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A cancelled request context means the server is draining.
		select {
		case <-r.Context().Done():
			respondHealth(w, http.StatusServiceUnavailable, "shutting_down")
			return
		default:
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]CheckResult{
			"database":   h.checkDatabase(ctx),
			"migrations": h.checkMigrations(ctx),
			"job_queue":  h.checkJobQueue(ctx),
		}

		overall := "ready"
		status := http.StatusOK
		for _, check := range checks {
			if check.Status == "fail" {
				overall = "unavailable"
				status = http.StatusServiceUnavailable
				break
			}
			if check.Status == "warn" {
				overall = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(ReadinessCheck{
			Status:    overall,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	})
}

func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	if h.db == nil {
		return CheckResult{
			Status:  "fail",
			Message: "Database not initialized",
			Details: map[string]any{"remediation": "Check that DATABASE_URL is set correctly and PostgreSQL is running"},
		}
	}

	start := time.Now()
	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := h.db.Ping(dbCtx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := "Database ping failed"
		details := map[string]any{"error": err.Error()}
		switch {
		case errors.Is(dbCtx.Err(), context.DeadlineExceeded):
			message = "Database ping timed out after 2 seconds"
			details["remediation"] = "Check PostgreSQL load and network latency"
		case strings.Contains(err.Error(), "connection refused"):
			message = "Database connection refused"
			details["remediation"] = "Verify PostgreSQL is running and DATABASE_URL host/port are correct"
		case strings.Contains(err.Error(), "authentication failed"):
			message = "Database authentication failed"
			details["remediation"] = "Verify DATABASE_URL username and password"
		default:
			details["remediation"] = "Check DATABASE_URL and PostgreSQL service status"
		}
		return CheckResult{Status: "fail", Message: message, LatencyMs: latency, Details: details}
	}

	return CheckResult{Status: "pass", Message: "PostgreSQL connection successful", LatencyMs: latency}
}

func (h *HealthChecker) checkMigrations(ctx context.Context) CheckResult {
	if h.db == nil {
		return CheckResult{Status: "fail", Message: "Database not initialized"}
	}

	start := time.Now()
	migCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	version, dirty, err := h.db.SchemaVersion(migCtx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		details := map[string]any{"error": err.Error()}
		message := "Failed to query migration version"
		if strings.Contains(err.Error(), "does not exist") {
			message = "Migrations table not found"
			details["remediation"] = "Run: server migrate up"
		}
		return CheckResult{Status: "fail", Message: message, LatencyMs: latency, Details: details}
	}

	details := map[string]any{"version": version, "dirty": dirty, "expected": h.expected}
	switch {
	case dirty:
		details["remediation"] = "A migration failed part way. Fix the schema by hand, then force the version"
		return CheckResult{Status: "fail", Message: "Database in dirty migration state", LatencyMs: latency, Details: details}
	case version == 0:
		details["remediation"] = "Run: server migrate up"
		return CheckResult{Status: "fail", Message: "No migrations applied", LatencyMs: latency, Details: details}
	case h.expected > 0 && uint(version) < h.expected:
		details["remediation"] = "Run: server migrate up"
		return CheckResult{Status: "warn", Message: fmt.Sprintf("Schema at version %d, binary expects %d", version, h.expected), LatencyMs: latency, Details: details}
	}
	return CheckResult{
		Status:    "pass",
		Message:   fmt.Sprintf("Migrations applied (version %d)", version),
		LatencyMs: latency,
		Details:   details,
	}
}

func (h *HealthChecker) checkJobQueue(ctx context.Context) CheckResult {
	if h.jobs == nil {
		return CheckResult{Status: "warn", Message: "Job queue not running (JOBS_ENABLED=false)"}
	}

	start := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	params := river.NewJobListParams().
		States(rivertype.JobStateAvailable, rivertype.JobStateRetryable).
		First(100)
	result, err := h.jobs.JobList(jobCtx, params)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		details := map[string]any{"error": err.Error()}
		if strings.Contains(err.Error(), "river_job") {
			details["remediation"] = "Install River's tables: server migrate up"
		}
		return CheckResult{Status: "fail", Message: "Failed to query job queue", LatencyMs: latency, Details: details}
	}

	return CheckResult{
		Status:    "pass",
		Message:   "River job queue operational",
		LatencyMs: latency,
		Details:   map[string]any{"pending_jobs_sampled": len(result.Jobs)},
	}
}

// Health is the portal's original liveness probe.
func Health() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "healthy")
	})
}

// Healthz returns a lightweight liveness response.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ok")
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

func respondHealth(w http.ResponseWriter, status int, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: value})
}
