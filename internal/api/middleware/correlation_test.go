package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCorrelationID_GeneratesAndPropagates(t *testing.T) {
	var seen string
	var ctxLogger *zerolog.Logger
	handler := CorrelationID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		ctxLogger = zerolog.Ctx(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	require.NotNil(t, ctxLogger)
}

func TestCorrelationID_ReusesIncomingHeader(t *testing.T) {
	handler := CorrelationID(zerolog.Nop())(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestCorrelationID_RejectsOversizedHeader(t *testing.T) {
	handler := CorrelationID(zerolog.Nop())(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 500))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestCorrelationID_RejectsUnsafeCharacters(t *testing.T) {
	handler := CorrelationID(zerolog.Nop())(okHandler)

	for _, id := range []string{"abc 123", `"><script>`, "id\x00"} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", id)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.NotEqual(t, id, rec.Header().Get("X-Request-ID"))
		require.Len(t, rec.Header().Get("X-Request-ID"), 36)
	}
}

func TestRequestLogging_UsesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := CorrelationID(logger)(RequestLogging(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", nil)
	req.Header.Set("X-Request-ID", "req-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "req-1", entry["request_id"])
	require.Equal(t, float64(http.StatusCreated), entry["status"])
	require.Equal(t, float64(5), entry["bytes"])
	require.Equal(t, "/api/v1/users/register", entry["path"])
}

func TestRequestLogging_ServerErrorsAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogging(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	require.Contains(t, buf.String(), `"level":"error"`)
}
