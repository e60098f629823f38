package api

import (
	"net/http"

	"github.com/prepsphere/server/internal/api/handlers"
	"github.com/prepsphere/server/internal/api/middleware"
	"github.com/prepsphere/server/internal/api/problem"
	"github.com/prepsphere/server/internal/auth"
	"github.com/prepsphere/server/internal/config"
	"github.com/prepsphere/server/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handlers groups the resource handlers the router mounts.
type Handlers struct {
	Users         *handlers.UsersHandler
	Webhook       *handlers.WebhookHandler
	Files         *handlers.FilesHandler
	Jobs          *handlers.JobsHandler
	Events        *handlers.EventsHandler
	Notifications *handlers.NotificationsHandler
	TPO           *handlers.TPOHandler
	Admin         *handlers.AdminHandler
	Health        *handlers.HealthChecker
}

type Deps struct {
	Config    config.Config
	Logger    zerolog.Logger
	JWT       *auth.JWTManager
	Limiter   *middleware.RateLimiter
	Handlers  Handlers
	Version   string
	GitCommit string
	BuildDate string
}

// NewRouter mounts every route and wraps the mux in the middleware chain.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	h := deps.Handlers
	env := cfg.Environment

	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(cfg.RateLimit)
	}

	identify := middleware.OptionalJWTAuth(deps.JWT)
	public := func(fn http.HandlerFunc) http.Handler {
		return identify(limiter.Handler(fn))
	}
	guarded := func(roles ...auth.Role) func(http.HandlerFunc) http.Handler {
		authn := middleware.JWTAuth(deps.JWT, env, roles...)
		tier := middleware.WithRateLimitTierHandler(middleware.TierStaff)
		return func(fn http.HandlerFunc) http.Handler {
			return authn(tier(limiter.Handler(fn)))
		}
	}
	staff := guarded(auth.RoleTPO, auth.RoleAdmin)
	admin := guarded(auth.RoleAdmin)

	mux := http.NewServeMux()

	mux.Handle("GET /health", handlers.Health())
	mux.Handle("GET /healthz", handlers.Healthz())
	if h.Health != nil {
		mux.Handle("GET /readyz", h.Health.Readyz())
	}
	mux.Handle("GET /version", VersionHandler(deps.Version, deps.GitCommit, deps.BuildDate))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// users and profiles
	mux.Handle("POST /api/v1/users/register", public(h.Users.Register))
	mux.Handle("GET /api/v1/users/{id}", public(h.Users.Get))
	mux.Handle("PUT /api/v1/users/{id}", public(h.Users.UpdateName))
	mux.Handle("DELETE /api/v1/users/{id}", admin(h.Users.Delete))
	mux.Handle("GET /api/v1/users/{id}/profile", public(h.Users.GetProfile))
	mux.Handle("POST /api/v1/users/{id}/profile", public(h.Users.SaveProfile))
	mux.Handle("PUT /api/v1/users/{id}/profile", public(h.Users.SaveProfile))
	mux.Handle("POST /api/v1/clerk/webhook", public(h.Webhook.Handle))

	// notifications
	mux.Handle("GET /api/v1/users/{id}/notifications", public(h.Notifications.List))
	mux.Handle("POST /api/v1/users/{id}/notifications", public(h.Notifications.Create))
	mux.Handle("PUT /api/v1/users/{id}/notifications/read-all", public(h.Notifications.MarkAllRead))
	mux.Handle("PUT /api/v1/notifications/{id}/read", public(h.Notifications.MarkRead))
	mux.Handle("DELETE /api/v1/notifications/{id}", public(h.Notifications.Delete))

	// /users/clerk/{x} and /users/by-email/{x} overlap /users/{id}/profile,
	// so both lookups share one pattern.
	mux.Handle("GET /api/v1/users/{kind}/{value}", public(subroutes(env, map[string]subroute{
		"clerk":    {param: "clerk_user_id", handler: h.Users.GetByClerkID},
		"by-email": {param: "email", handler: h.Users.GetByEmail},
	})))

	// files
	mux.Handle("POST /api/v1/files/upload", public(h.Files.Upload))
	mux.Handle("POST /api/v1/files/upload-r2", public(h.Files.UploadRemote))
	mux.Handle("POST /api/v1/files/upload-r2-multipart", public(h.Files.UploadMultipart))
	mux.Handle("POST /api/v1/files/upload-local", public(h.Files.UploadLocal))
	mux.Handle("GET /api/v1/files/{id}", public(h.Files.Get))
	mux.Handle("GET /api/v1/files/{id}/download", public(h.Files.Download))
	mux.Handle("GET /api/v1/files/{id}/presigned", public(h.Files.Presigned))
	mux.Handle("GET /api/v1/files/{kind}/{value}", public(subroutes(env, map[string]subroute{
		"by-user": {param: "user_id", handler: h.Files.ListByUser},
	})))
	mux.Handle("PUT /api/v1/files/{id}/verify", staff(h.Files.Verify))
	mux.Handle("PUT /api/v1/files/{id}/reject", staff(h.Files.Reject))
	mux.Handle("DELETE /api/v1/files/{id}", staff(h.Files.Delete))

	// jobs
	mux.Handle("GET /api/v1/jobs", public(h.Jobs.ListOpen))
	mux.Handle("GET /api/v1/jobs/{id}", public(h.Jobs.Get))
	mux.Handle("POST /api/v1/jobs/{id}/apply", public(h.Jobs.Apply))

	// events
	mux.Handle("GET /api/v1/events", public(h.Events.List))
	mux.Handle("POST /api/v1/events/{id}/register", public(h.Events.Register))

	// placement office
	mux.Handle("GET /api/v1/tpo/{id}/profile", staff(h.Users.GetTPOProfile))
	mux.Handle("POST /api/v1/tpo/{id}/profile", staff(h.Users.SaveTPOProfile))
	mux.Handle("GET /api/v1/tpo/{kind}/{value}", staff(subroutes(env, map[string]subroute{
		"events": {param: "id", handler: h.Events.Get},
	})))

	mux.Handle("GET /api/v1/tpo/jobs", staff(h.Jobs.ListWithApplicants))
	mux.Handle("POST /api/v1/tpo/jobs", staff(h.Jobs.Create))
	mux.Handle("PUT /api/v1/tpo/jobs/{id}", staff(h.Jobs.Update))
	mux.Handle("DELETE /api/v1/tpo/jobs/{id}", staff(h.Jobs.Delete))
	mux.Handle("GET /api/v1/tpo/jobs/{id}/applications", staff(h.Jobs.Applications))
	mux.Handle("PUT /api/v1/tpo/applications/{id}", staff(h.Jobs.SetApplicationStatus))

	mux.Handle("POST /api/v1/tpo/events", staff(h.Events.Create))
	mux.Handle("PUT /api/v1/tpo/events/{id}", staff(h.Events.Update))
	mux.Handle("GET /api/v1/tpo/events/{id}/registrations", staff(h.Events.Registrations))
	mux.Handle("POST /api/v1/tpo/events/{id}/reminders", staff(h.Events.Reminders))

	mux.Handle("POST /api/v1/tpo/notifications/broadcast", staff(h.Notifications.Broadcast))

	mux.Handle("GET /api/v1/tpo/pending-profiles", staff(h.TPO.PendingProfiles))
	mux.Handle("PUT /api/v1/tpo/profiles/{id}/approve", staff(h.TPO.ApproveProfile))
	mux.Handle("PUT /api/v1/tpo/profiles/{id}/reject", staff(h.TPO.RejectProfile))
	mux.Handle("GET /api/v1/tpo/approved-students", staff(h.TPO.ApprovedStudents))
	mux.Handle("PUT /api/v1/tpo/placement/{id}", staff(h.TPO.SetPlacement))
	mux.Handle("GET /api/v1/tpo/pending-resumes", staff(h.TPO.PendingResumes))
	mux.Handle("GET /api/v1/tpo/verified-resumes", staff(h.TPO.VerifiedResumes))
	mux.Handle("GET /api/v1/tpo/stats/summary", staff(h.TPO.Summary))
	mux.Handle("GET /api/v1/tpo/stats/summary.csv", staff(h.TPO.SummaryCSV))
	mux.Handle("GET /api/v1/tpo/reports", staff(h.TPO.ListReports))

	// admin
	mux.Handle("GET /api/v1/admin/pending-certificates", admin(h.Admin.PendingCertificates))
	mux.Handle("GET /api/v1/admin/analytics", admin(h.Admin.Analytics))

	// Outermost first: request id, span, access log, headers, body cap.
	var handler http.Handler = middleware.RecordRoute(metrics.HTTPMiddleware(mux))
	handler = middleware.RequestSize(cfg.Server.MaxBodyBytes)(handler)
	handler = middleware.CORS(cfg.CORS, deps.Logger)(handler)
	handler = middleware.SecurityHeaders(env == "production")(handler)
	handler = middleware.RequestLogging(deps.Logger)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	return handler
}

type subroute struct {
	param   string
	handler http.HandlerFunc
}

// subroutes serves a two-segment pattern {kind}/{value}, handing value to the
// selected handler under its own path parameter name.
func subroutes(env string, routes map[string]subroute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		route, ok := routes[r.PathValue("kind")]
		if !ok {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", nil, env)
			return
		}
		r.SetPathValue(route.param, r.PathValue("value"))
		route.handler(w, r)
	}
}
