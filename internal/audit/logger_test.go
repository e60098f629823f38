package audit

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prepsphere/server/internal/api/middleware"
	"github.com/prepsphere/server/internal/auth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type logLine struct {
	LogType string `json:"log_type"`
	Message string `json:"message"`
	Audit   Entry  `json:"audit"`
}

func decode(t *testing.T, buf *bytes.Buffer) logLine {
	t.Helper()
	var line logLine
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.New(&buf))

	logger.Log(Entry{Action: "tpo.job.create", ActorID: "4", ResourceType: "job", ResourceID: "12", Status: "success"})

	line := decode(t, &buf)
	require.Equal(t, "audit", line.LogType)
	require.Equal(t, "tpo.job.create", line.Message)
	require.Equal(t, "12", line.Audit.ResourceID)
	require.WithinDuration(t, time.Now(), line.Audit.Timestamp, time.Minute)
}

func TestLogger_FromRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.New(&buf))

	claims := &auth.Claims{Role: "admin"}
	claims.Subject = "7"

	req := httptest.NewRequest(http.MethodPut, "/api/v1/files/3/verify", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req = req.WithContext(middleware.ContextWithClaims(req.Context(), claims))

	logger.FromRequest(req, "admin.file.verify", "file", 3, "success", map[string]string{"is_verified": "true"})

	line := decode(t, &buf)
	require.Equal(t, "7", line.Audit.ActorID)
	require.Equal(t, "admin", line.Audit.ActorRole)
	require.Equal(t, "3", line.Audit.ResourceID)
	require.Equal(t, "192.0.2.10", line.Audit.IPAddress)
	require.Equal(t, "true", line.Audit.Details["is_verified"])
}

func TestLogger_AnonymousAndNil(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.New(&buf))

	logger.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil), "tpo.stats.csv", "report", 0, "success", nil)
	line := decode(t, &buf)
	require.Equal(t, "anonymous", line.Audit.ActorID)
	require.Empty(t, line.Audit.ResourceID)

	var nilLogger *Logger
	require.NotPanics(t, func() { nilLogger.Log(Entry{Action: "x"}) })
	require.NotPanics(t, func() { Nop().Log(Entry{Action: "x"}) })
}
