package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prepsphere/server/internal/api/handlers"
	"github.com/prepsphere/server/internal/auth"
	"github.com/prepsphere/server/internal/config"
	"github.com/prepsphere/server/internal/testauth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// newTestRouter wires handlers without services. Only requests that are
// answered before a service call can be sent through it.
func newTestRouter(t *testing.T) (http.Handler, *auth.JWTManager) {
	t.Helper()
	manager := testauth.Manager()
	env := "test"
	router := NewRouter(Deps{
		Config: config.Config{Environment: env},
		Logger: zerolog.Nop(),
		JWT:    manager,
		Handlers: Handlers{
			Users:         handlers.NewUsersHandler(nil, nil, env),
			Webhook:       handlers.NewWebhookHandler(nil, "", env),
			Files:         handlers.NewFilesHandler(nil, nil, env),
			Jobs:          handlers.NewJobsHandler(nil, nil, env),
			Events:        handlers.NewEventsHandler(nil, nil, env),
			Notifications: handlers.NewNotificationsHandler(nil, nil, env),
			TPO:           handlers.NewTPOHandler(nil, nil, nil, nil, env),
			Admin:         handlers.NewAdminHandler(nil, nil, env),
			Health:        handlers.NewHealthChecker(nil, nil, 1, "0.1.0", "abc"),
		},
		Version: "0.1.0",
	})
	return router, manager
}

func bearer(t *testing.T, manager *auth.JWTManager, role auth.Role) string {
	return testauth.Bearer(t, manager, 1, role)
}

func do(router http.Handler, method, target, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func problemTitle(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Title
}

func TestRouter_ProbesAndHeaders(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = do(router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(router, http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"version":"0.1.0"`)

	rec = do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(router, http.MethodPatch, "/api/v1/jobs", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Contains(t, rec.Header().Get("Allow"), http.MethodGet)

	rec = do(router, http.MethodPost, "/version", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_StaffRoutesRequireToken(t *testing.T) {
	router, manager := newTestRouter(t)
	student := bearer(t, manager, auth.RoleStudent)

	staffRoutes := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/tpo/pending-profiles"},
		{http.MethodPost, "/api/v1/tpo/jobs"},
		{http.MethodPut, "/api/v1/files/1/verify"},
		{http.MethodDelete, "/api/v1/files/1"},
		{http.MethodGet, "/api/v1/tpo/stats/summary.csv"},
		{http.MethodPost, "/api/v1/tpo/notifications/broadcast"},
	}
	for _, route := range staffRoutes {
		rec := do(router, route.method, route.path, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code, route.path)

		rec = do(router, route.method, route.path, "Bearer not-a-token")
		require.Equal(t, http.StatusUnauthorized, rec.Code, route.path)

		rec = do(router, route.method, route.path, student)
		require.Equal(t, http.StatusForbidden, rec.Code, route.path)
	}
}

func TestRouter_AdminRoutes(t *testing.T) {
	router, manager := newTestRouter(t)
	tpo := bearer(t, manager, auth.RoleTPO)

	for _, path := range []string{"/api/v1/admin/analytics", "/api/v1/admin/pending-certificates"} {
		rec := do(router, http.MethodGet, path, tpo)
		require.Equal(t, http.StatusForbidden, rec.Code, path)
	}

	rec := do(router, http.MethodDelete, "/api/v1/users/3", tpo)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(router, http.MethodDelete, "/api/v1/users/abc", bearer(t, manager, auth.RoleAdmin))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Subroutes(t *testing.T) {
	router, manager := newTestRouter(t)

	rec := do(router, http.MethodGet, "/api/v1/files/by-user/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid user_id", problemTitle(t, rec))

	rec = do(router, http.MethodGet, "/api/v1/files/unknown/1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/users/nothing/here", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/tpo/events/abc", bearer(t, manager, auth.RoleTPO))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid id", problemTitle(t, rec))

	rec = do(router, http.MethodGet, "/api/v1/tpo/events/abc", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_UnknownPath(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(router, http.MethodGet, "/api/v1/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
