package handlers

import (
	"net/http"
	"strings"

	"github.com/prepsphere/server/internal/api/problem"
	"github.com/prepsphere/server/internal/audit"
	"github.com/prepsphere/server/internal/domain/users"
)

type UsersHandler struct {
	Users UserService
	Audit *audit.Logger
	Env   string
}

func NewUsersHandler(service UserService, auditLogger *audit.Logger, env string) *UsersHandler {
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	return &UsersHandler{Users: service, Audit: auditLogger, Env: env}
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,max=320"`
	FirstName   string `json:"firstName" validate:"required,max=200"`
	LastName    string `json:"lastName" validate:"max=200"`
	Role        string `json:"role" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"max=40"`
	ClerkUserID string `json:"clerkUserId" validate:"max=255"`
}

type registerResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	User    *users.User `json:"user"`
}

func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !bind(w, r, &req, "Missing required fields", h.Env) {
		return
	}

	user, err := h.Users.Register(r.Context(), users.RegisterInput{
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Role:        req.Role,
		PhoneNumber: req.PhoneNumber,
		ClerkUserID: req.ClerkUserID,
	})
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{Success: true, Message: "User registered successfully", User: user})
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	user, err := h.Users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) GetByClerkID(w http.ResponseWriter, r *http.Request) {
	clerkID := strings.TrimSpace(r.PathValue("clerk_user_id"))
	if clerkID == "" {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Missing clerk_user_id", nil, h.Env)
		return
	}
	user, err := h.Users.GetByClerkID(r.Context(), clerkID)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PathValue("email"))
	if email == "" {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Missing email", nil, h.Env)
		return
	}
	user, err := h.Users.GetByEmail(r.Context(), email)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateNameRequest struct {
	FirstName string `json:"first_name" validate:"max=200"`
	LastName  string `json:"last_name" validate:"max=200"`
}

// UpdateName changes the display name only. Blank fields keep their values.
func (h *UsersHandler) UpdateName(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	var req updateNameRequest
	if !bind(w, r, &req, "Invalid name", h.Env) {
		return
	}
	user, err := h.Users.UpdateName(r.Context(), id, req.FirstName, req.LastName)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	if err := h.Users.Delete(r.Context(), id); err != nil {
		h.Audit.FromRequest(r, "user.delete", "user", id, "failure", nil)
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "user.delete", "user", id, "success", nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type profileRequest struct {
	Phone           *string `json:"phone" validate:"omitnil,max=40"`
	Degree          *string `json:"degree" validate:"omitnil,max=200"`
	Year            *string `json:"year" validate:"omitnil,max=20"`
	Skills          *string `json:"skills" validate:"omitnil,max=4000"`
	About           *string `json:"about" validate:"omitnil,max=8000"`
	AlternateEmail  *string `json:"alternate_email" validate:"omitnil,max=320"`
	ProfileImageURL *string `json:"profile_image_url" validate:"omitnil,max=2048"`
}

func (h *UsersHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	profile, err := h.Users.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// SaveProfile serves both POST and PUT; either one upserts.
func (h *UsersHandler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	var req profileRequest
	if !bind(w, r, &req, "Invalid profile", h.Env) {
		return
	}
	profile, err := h.Users.SaveProfile(r.Context(), id, users.ProfileInput{
		Phone:           req.Phone,
		Degree:          req.Degree,
		Year:            req.Year,
		Skills:          req.Skills,
		About:           req.About,
		AlternateEmail:  req.AlternateEmail,
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type tpoProfileRequest struct {
	AlternateEmail *string `json:"alternate_email" validate:"omitnil,max=320"`
	Phone          *string `json:"phone" validate:"omitnil,max=40"`
}

func (h *UsersHandler) GetTPOProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	profile, err := h.Users.GetTPOProfile(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *UsersHandler) SaveTPOProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	var req tpoProfileRequest
	if !bind(w, r, &req, "Invalid profile", h.Env) {
		return
	}
	profile, err := h.Users.SaveTPOProfile(r.Context(), id, req.AlternateEmail, req.Phone)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
