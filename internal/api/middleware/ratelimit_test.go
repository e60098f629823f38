package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prepsphere/server/internal/auth"
	"github.com/prepsphere/server/internal/config"
	"github.com/stretchr/testify/require"
)

func doRequest(handler http.Handler, remote string, tier RateLimitTier) int {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.RemoteAddr = remote
	if tier != "" {
		req = req.WithContext(WithRateLimitTier(req.Context(), tier))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimit_BlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 3})
	t.Cleanup(limiter.Stop)
	handler := limiter.Handler(okHandler)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234", ""), "request %d", i+1)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRateLimit_PerClientIsolation(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 1})
	t.Cleanup(limiter.Stop)
	handler := limiter.Handler(okHandler)

	require.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1", ""))
	require.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.1:2", ""))
	require.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.2:1", ""))
}

func TestRateLimit_UnlimitedStaffTier(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 1, StaffPerMinute: 0})
	t.Cleanup(limiter.Stop)
	handler := limiter.Handler(okHandler)

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.9:1", TierStaff))
	}
}

func TestRateLimit_StaffTokenOnPublicRoute(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 1, StaffPerMinute: 0})
	t.Cleanup(limiter.Stop)
	manager := auth.NewJWTManager(testSecret, time.Hour, "prepsphere")
	handler := OptionalJWTAuth(manager)(limiter.Handler(okHandler))

	staffToken, err := manager.Generate(2, auth.RoleTPO, "")
	require.NoError(t, err)
	studentToken, err := manager.Generate(3, auth.RoleStudent, "")
	require.NoError(t, err)

	send := func(remote, token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		req.RemoteAddr = remote
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, send("10.0.0.7:1", staffToken), "request %d", i+1)
	}
	require.Equal(t, http.StatusOK, send("10.0.0.8:1", studentToken))
	require.Equal(t, http.StatusTooManyRequests, send("10.0.0.8:1", studentToken))
}

func TestRateLimit_SkipsProbes(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 1})
	t.Cleanup(limiter.Stop)
	handler := limiter.Handler(okHandler)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestClientKey_TrustsForwardedOnlyFromProxy(t *testing.T) {
	trusted := parseCIDRs([]string{"10.1.0.0/16", "not-a-cidr"})
	require.Len(t, trusted, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.1.2.3")

	req.RemoteAddr = "10.1.2.3:443"
	require.Equal(t, "203.0.113.5", clientKey(req, trusted))

	req.RemoteAddr = "198.51.100.7:443"
	require.Equal(t, "198.51.100.7", clientKey(req, trusted))

	require.Equal(t, "198.51.100.7", clientKey(req, []*net.IPNet{}))
}

func TestLimiterStore_Cleanup(t *testing.T) {
	store := newLimiterStore(config.RateLimitConfig{PublicPerMinute: 5})
	t.Cleanup(store.stop)

	store.limiter(TierPublic, "a")
	store.limiter(TierPublic, "b")
	require.Equal(t, 2, store.size())

	store.cleanup(time.Now().Add(time.Hour), 15*time.Minute)
	require.Zero(t, store.size())
}
