package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/prepsphere/server/internal/api/middleware"
	"github.com/prepsphere/server/internal/api/problem"
	"github.com/prepsphere/server/internal/domain/events"
	"github.com/prepsphere/server/internal/domain/files"
	"github.com/prepsphere/server/internal/domain/notifications"
	"github.com/prepsphere/server/internal/domain/recruitment"
	"github.com/prepsphere/server/internal/domain/users"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads the request body into dst. An empty body leaves dst at
// its zero value so optional-body endpoints accept bare PUTs.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// bind decodes and validates a request DTO. On failure it writes a 400 with
// title and returns false.
func bind(w http.ResponseWriter, r *http.Request, dst any, title, env string) bool {
	if err := decodeJSON(r, dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Request body too large", err, env)
			return false
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid JSON body", err, env)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, title, err, env, problem.WithErrors(fieldErrors(err)))
		return false
	}
	return true
}

func fieldErrors(err error) map[string]any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// pathID parses a positive integer path parameter, writing a 400 when it is
// missing or malformed.
func pathID(w http.ResponseWriter, r *http.Request, key, env string) (int64, bool) {
	raw := strings.TrimSpace(r.PathValue(key))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid "+key, fmt.Errorf("path parameter %s=%q", key, raw), env)
		return 0, false
	}
	return id, true
}

// callerID returns the authenticated user's id, if any.
func callerID(r *http.Request) *int64 {
	claims := middleware.ClaimsFromContext(r.Context())
	if id, ok := claims.UserID(); ok {
		return &id
	}
	return nil
}

// flexID accepts an id sent either as a JSON number or a numeric string.
type flexID int64

func (f *flexID) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", raw)
	}
	*f = flexID(id)
	return nil
}

func (f *flexID) ptr() *int64 {
	if f == nil || *f == 0 {
		return nil
	}
	id := int64(*f)
	return &id
}

// contentDisposition renders `<kind>; filename="<name>"` with quotes and
// control characters removed from name.
func contentDisposition(kind, name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	return fmt.Sprintf(`%s; filename="%s"`, kind, name)
}

func nonEmptyPtr(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	return value
}

// writeError maps domain errors onto problem responses. The title carries the
// message the portal shows to the user.
func writeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	status, typ, title := classify(err)
	problem.Write(w, r, status, typ, title, err, env)
}

func classify(err error) (int, string, string) {
	var (
		userValidation   users.ValidationError
		fileValidation   files.ValidationError
		jobValidation    recruitment.ValidationError
		eventValidation  events.ValidationError
		notifyValidation notifications.ValidationError
		tooLarge         files.TooLargeError
	)

	switch {
	case errors.As(err, &userValidation):
		return http.StatusBadRequest, problem.TypeValidation, userValidation.Message
	case errors.As(err, &fileValidation):
		return http.StatusBadRequest, problem.TypeValidation, fileValidation.Message
	case errors.As(err, &jobValidation):
		return http.StatusBadRequest, problem.TypeValidation, jobValidation.Message
	case errors.As(err, &eventValidation):
		return http.StatusBadRequest, problem.TypeValidation, eventValidation.Message
	case errors.As(err, &notifyValidation):
		return http.StatusBadRequest, problem.TypeValidation, notifyValidation.Message
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, problem.TypeTooLarge, tooLarge.Error()

	case errors.Is(err, users.ErrAlreadyRegistered):
		return http.StatusBadRequest, problem.TypeConflict, "User already registered"
	case errors.Is(err, users.ErrNotFound),
		errors.Is(err, files.ErrUserNotFound),
		errors.Is(err, recruitment.ErrUserNotFound),
		errors.Is(err, events.ErrUserNotFound),
		errors.Is(err, notifications.ErrUserNotFound):
		return http.StatusNotFound, problem.TypeNotFound, "User not found"
	case errors.Is(err, users.ErrProfileNotFound):
		return http.StatusNotFound, problem.TypeNotFound, "Profile not found"

	case errors.Is(err, files.ErrNotFound):
		return http.StatusNotFound, problem.TypeNotFound, "File not found"
	case errors.Is(err, files.ErrStoredFileMissing):
		return http.StatusNotFound, problem.TypeNotFound, "Stored file not found on server"
	case errors.Is(err, files.ErrStorageNotConfigured):
		return http.StatusInternalServerError, problem.TypeStorage, "Cloud storage is not configured"
	case errors.Is(err, files.ErrStoredLocally):
		return http.StatusConflict, problem.TypeConflict, "File is stored on local disk"

	case errors.Is(err, recruitment.ErrJobNotFound):
		return http.StatusNotFound, problem.TypeNotFound, "Job not found"
	case errors.Is(err, recruitment.ErrApplicationNotFound):
		return http.StatusNotFound, problem.TypeNotFound, "Application not found"

	case errors.Is(err, events.ErrNotFound):
		return http.StatusNotFound, problem.TypeNotFound, "Event not found"
	case errors.Is(err, events.ErrCancelled):
		return http.StatusBadRequest, problem.TypeValidation, "Event is cancelled"
	case errors.Is(err, events.ErrUnresolvedUser):
		return http.StatusBadRequest, problem.TypeValidation, "Missing user_id or email"

	case errors.Is(err, notifications.ErrNotFound):
		return http.StatusNotFound, problem.TypeNotFound, "Notification not found"
	}
	return http.StatusInternalServerError, problem.TypeServer, "Server error"
}
