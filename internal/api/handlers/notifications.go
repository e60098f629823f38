package handlers

import (
	"net/http"
	"strconv"

	"github.com/prepsphere/server/internal/audit"
	"github.com/prepsphere/server/internal/domain/notifications"
)

type NotificationsHandler struct {
	Notifications NotificationService
	Audit         *audit.Logger
	Env           string
}

func NewNotificationsHandler(service NotificationService, auditLogger *audit.Logger, env string) *NotificationsHandler {
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	return &NotificationsHandler{Notifications: service, Audit: auditLogger, Env: env}
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	list, err := h.Notifications.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type createNotificationRequest struct {
	Title            string  `json:"title" validate:"max=255"`
	Message          string  `json:"message" validate:"max=4000"`
	NotificationType string  `json:"notification_type" validate:"max=50"`
	RelatedID        *flexID `json:"related_id"`
	RelatedType      *string `json:"related_type" validate:"omitnil,max=50"`
}

func (h *NotificationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	var req createNotificationRequest
	if !bind(w, r, &req, "Invalid notification", h.Env) {
		return
	}
	n, err := h.Notifications.Create(r.Context(), userID, notifications.CreateInput{
		Title:       req.Title,
		Message:     req.Message,
		Type:        req.NotificationType,
		RelatedID:   req.RelatedID.ptr(),
		RelatedType: req.RelatedType,
	})
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	n, err := h.Notifications.MarkRead(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	updated, err := h.Notifications.MarkAllRead(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "updated": updated})
}

func (h *NotificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	if err := h.Notifications.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type broadcastRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Message string `json:"message" validate:"required,max=4000"`
}

// Broadcast notifies every student.
func (h *NotificationsHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if !bind(w, r, &req, "Title and message are required", h.Env) {
		return
	}
	n, err := h.Notifications.Broadcast(r.Context(), req.Title, req.Message)
	if err != nil {
		h.Audit.FromRequest(r, "notification.broadcast", "notification", 0, "failure", nil)
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "notification.broadcast", "notification", 0, "success", map[string]string{"recipients": strconv.Itoa(n)})
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "sent": n})
}
