package audit

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prepsphere/server/internal/api/middleware"
	"github.com/rs/zerolog"
)

// Entry is one privileged action taken by a placement officer or admin.
type Entry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	ActorID      string            `json:"actor_id"`
	ActorRole    string            `json:"actor_role,omitempty"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	RequestID    string            `json:"request_id,omitempty"`
	Status       string            `json:"status"` // "success" or "failure"
	Details      map[string]string `json:"details,omitempty"`
}

// Logger writes audit entries as a nested "audit" object on a dedicated
// zerolog logger so they can be routed separately from access logs.
type Logger struct {
	logger zerolog.Logger
}

func NewLogger(base zerolog.Logger) *Logger {
	return &Logger{logger: base.With().Str("log_type", "audit").Logger()}
}

// Nop discards everything. Used by tests and when no logger is wired.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.logger.Info().Interface("audit", entry).Msg(entry.Action)
}

// FromRequest records an action taken through the API. The actor comes from
// the JWT claims placed in the context by middleware.JWTAuth.
func (l *Logger) FromRequest(r *http.Request, action, resourceType string, resourceID int64, status string, details map[string]string) {
	if l == nil || r == nil {
		return
	}

	entry := Entry{
		Action:       action,
		ActorID:      "anonymous",
		ResourceType: resourceType,
		IPAddress:    clientIP(r),
		RequestID:    middleware.GetRequestID(r.Context()),
		Status:       status,
		Details:      details,
	}
	if resourceID > 0 {
		entry.ResourceID = strconv.FormatInt(resourceID, 10)
	}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		entry.ActorID = claims.Subject
		entry.ActorRole = claims.Role
	}
	l.Log(entry)
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
