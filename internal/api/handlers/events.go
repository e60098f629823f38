package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prepsphere/server/internal/audit"
	"github.com/prepsphere/server/internal/domain/events"
)

type EventsHandler struct {
	Events EventService
	Audit  *audit.Logger
	Env    string
}

func NewEventsHandler(service EventService, auditLogger *audit.Logger, env string) *EventsHandler {
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	return &EventsHandler{Events: service, Audit: auditLogger, Env: env}
}

// List filters by ?status= and ?posted_by=<role>.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	list, err := h.Events.List(r.Context(), events.Filter{
		Status:   strings.TrimSpace(query.Get("status")),
		PostedBy: strings.TrimSpace(query.Get("posted_by")),
	})
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type createEventRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description string  `json:"description"`
	Location    string  `json:"location" validate:"max=255"`
	Date        *string `json:"date" validate:"omitnil,max=100"`
	Time        string  `json:"time" validate:"max=50"`
	Status      string  `json:"status" validate:"max=50"`
	FormURL     string  `json:"form_url" validate:"max=2048"`
	Category    string  `json:"category" validate:"max=100"`
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if !bind(w, r, &req, "Missing title", h.Env) {
		return
	}
	event, err := h.Events.Create(r.Context(), events.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Date:        nonEmptyPtr(req.Date),
		Time:        req.Time,
		Status:      req.Status,
		FormURL:     req.FormURL,
		Category:    req.Category,
		CreatedBy:   callerID(r),
	})
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "event.create", "event", event.ID, "success", nil)
	writeJSON(w, http.StatusCreated, event)
}

type updateEventRequest struct {
	Title       *string `json:"title" validate:"omitnil,max=255"`
	Description *string `json:"description"`
	Location    *string `json:"location" validate:"omitnil,max=255"`
	Date        *string `json:"date" validate:"omitnil,max=100"`
	Time        *string `json:"time" validate:"omitnil,max=50"`
	Status      *string `json:"status" validate:"omitnil,max=50"`
	FormURL     *string `json:"form_url" validate:"omitnil,max=2048"`
	Category    *string `json:"category" validate:"omitnil,max=100"`
}

func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	var req updateEventRequest
	if !bind(w, r, &req, "Invalid event", h.Env) {
		return
	}
	event, err := h.Events.Update(r.Context(), id, events.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Date:        nonEmptyPtr(req.Date),
		Time:        req.Time,
		Status:      req.Status,
		FormURL:     req.FormURL,
		Category:    req.Category,
	})
	if err != nil {
		h.Audit.FromRequest(r, "event.update", "event", id, "failure", nil)
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "event.update", "event", id, "success", nil)
	writeJSON(w, http.StatusOK, event)
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	details, err := h.Events.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

type registerEventRequest struct {
	UserID      flexID `json:"user_id"`
	Email       string `json:"email" validate:"max=320"`
	ClerkUserID string `json:"clerkUserId" validate:"max=255"`
}

// Register signs a student up. The student is identified by user_id, email or
// clerkUserId, tried in that order.
func (h *EventsHandler) Register(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	var req registerEventRequest
	if !bind(w, r, &req, "Missing user_id or email", h.Env) {
		return
	}
	registration, err := h.Events.Register(r.Context(), id, events.RegisterInput{
		UserID:      req.UserID.ptr(),
		Email:       req.Email,
		ClerkUserID: req.ClerkUserID,
	})
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "registration": registration})
}

func (h *EventsHandler) Registrations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	list, err := h.Events.Registrants(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *EventsHandler) Reminders(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	n, err := h.Events.SendReminders(r.Context(), id)
	if err != nil {
		h.Audit.FromRequest(r, "event.reminders", "event", id, "failure", nil)
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "event.reminders", "event", id, "success", map[string]string{"recipients": strconv.Itoa(n)})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sent": n})
}
