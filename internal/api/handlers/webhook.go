package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/prepsphere/server/internal/api/problem"
	"github.com/prepsphere/server/internal/auth"
	"github.com/prepsphere/server/internal/domain/users"
	"github.com/rs/zerolog"
)

const webhookSignatureHeader = "svix-signature"

// WebhookHandler mirrors identity-provider account changes into the users
// table.
type WebhookHandler struct {
	Users  UserService
	Secret string
	Env    string
}

func NewWebhookHandler(service UserService, secret, env string) *WebhookHandler {
	return &WebhookHandler{Users: service, Secret: secret, Env: env}
}

type webhookEnvelope struct {
	Type string           `json:"type"`
	Data *json.RawMessage `json:"data"`
}

type webhookEmail struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type webhookUser struct {
	ID                    string         `json:"id"`
	EmailAddresses        []webhookEmail `json:"email_addresses"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	FirstName             string         `json:"first_name"`
	LastName              string         `json:"last_name"`
	UnsafeMetadata        struct {
		Role string `json:"role"`
	} `json:"unsafe_metadata"`
}

// primaryEmail returns the primary address, falling back to the first one.
func (u webhookUser) primaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID != "" && e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Request body too large", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid webhook payload", err, h.Env)
		return
	}

	if err := auth.VerifyWebhookSignature(body, r.Header.Get(webhookSignatureHeader), h.Secret); err != nil {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid webhook signature", err, h.Env)
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Type == "" || envelope.Data == nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid webhook payload", err, h.Env)
		return
	}

	logger := zerolog.Ctx(r.Context())
	switch envelope.Type {
	case "user.created", "user.updated":
		var data webhookUser
		if err := json.Unmarshal(*envelope.Data, &data); err != nil {
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid webhook payload", err, h.Env)
			return
		}
		role := data.UnsafeMetadata.Role
		if role == "" {
			role = "STUDENT"
		}
		user, err := h.Users.SyncExternal(r.Context(), users.ExternalUser{
			ClerkUserID: data.ID,
			Email:       data.primaryEmail(),
			FirstName:   data.FirstName,
			LastName:    data.LastName,
			Role:        role,
		})
		if err != nil {
			writeError(w, r, err, h.Env)
			return
		}
		logger.Info().Str("type", envelope.Type).Int64("user_id", user.ID).Msg("webhook applied")
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})

	case "user.deleted":
		var data webhookUser
		if err := json.Unmarshal(*envelope.Data, &data); err != nil || data.ID == "" {
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid webhook payload", err, h.Env)
			return
		}
		if err := h.Users.DeleteExternal(r.Context(), data.ID); err != nil {
			writeError(w, r, err, h.Env)
			return
		}
		logger.Info().Str("type", envelope.Type).Str("clerk_user_id", data.ID).Msg("webhook applied")
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Event ignored"})
	}
}
