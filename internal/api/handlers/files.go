package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/prepsphere/server/internal/api/problem"
	"github.com/prepsphere/server/internal/audit"
	"github.com/prepsphere/server/internal/domain/files"
	"github.com/rs/zerolog"
)

// multipartOverhead is the slack allowed on top of the file limit for the
// other form fields and part headers.
const multipartOverhead = 1 << 20

type FilesHandler struct {
	Files FileService
	Audit *audit.Logger
	Env   string
}

func NewFilesHandler(service FileService, auditLogger *audit.Logger, env string) *FilesHandler {
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	return &FilesHandler{Files: service, Audit: auditLogger, Env: env}
}

type uploadRequest struct {
	UserID        flexID `json:"user_id" validate:"required"`
	FileName      string `json:"file_name" validate:"required,max=255"`
	MimeType      string `json:"mime_type" validate:"required"`
	FileType      string `json:"file_type" validate:"required"`
	ContentBase64 string `json:"content_base64" validate:"required"`
}

// Upload stores on object storage when it is configured, local disk otherwise.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	h.uploadBase64(w, r, files.BackendAuto)
}

func (h *FilesHandler) UploadRemote(w http.ResponseWriter, r *http.Request) {
	h.uploadBase64(w, r, files.BackendRemote)
}

func (h *FilesHandler) UploadLocal(w http.ResponseWriter, r *http.Request) {
	h.uploadBase64(w, r, files.BackendLocal)
}

func (h *FilesHandler) uploadBase64(w http.ResponseWriter, r *http.Request, backend files.Backend) {
	var req uploadRequest
	if !bind(w, r, &req, "Missing fields", h.Env) {
		return
	}
	content, err := decodeBase64(req.ContentBase64)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid base64 content", err, h.Env)
		return
	}
	h.store(w, r, files.UploadInput{
		UserID:   int64(req.UserID),
		FileName: req.FileName,
		MimeType: req.MimeType,
		FileType: req.FileType,
		Content:  content,
	}, backend)
}

// UploadMultipart accepts multipart/form-data with user_id, an optional
// file_type and the file part. It always targets object storage.
func (h *FilesHandler) UploadMultipart(w http.ResponseWriter, r *http.Request) {
	limit := h.Files.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, files.TooLargeError{Limit: limit}, h.Env)
			return
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Missing fields", err, h.Env)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	userID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("user_id")), 10, 64)
	if err != nil || userID <= 0 {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Missing fields", fmt.Errorf("user_id: %q", r.FormValue("user_id")), h.Env)
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Missing fields", err, h.Env)
		return
	}
	defer part.Close()

	if !h.Files.RemoteConfigured() {
		writeError(w, r, files.ErrStorageNotConfigured, h.Env)
		return
	}

	// One byte past the limit is enough for the service to reject it.
	content, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid file", err, h.Env)
		return
	}

	fileType := strings.TrimSpace(r.FormValue("file_type"))
	if fileType == "" {
		fileType = files.TypeResume
	}
	mimeType := header.Header.Get("Content-Type")
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = parsed
	}

	h.store(w, r, files.UploadInput{
		UserID:   userID,
		FileName: header.Filename,
		MimeType: mimeType,
		FileType: fileType,
		Content:  content,
	}, files.BackendRemote)
}

func (h *FilesHandler) store(w http.ResponseWriter, r *http.Request, input files.UploadInput, backend files.Backend) {
	file, err := h.Files.Upload(r.Context(), input, backend)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusCreated, file)
}

// decodeBase64 accepts plain base64 or a data URL.
func decodeBase64(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "data:") {
		if _, payload, ok := strings.Cut(value, ","); ok {
			value = payload
		}
	}
	var err error
	for _, enc := range base64Encodings {
		var content []byte
		if content, err = enc.DecodeString(value); err == nil {
			return content, nil
		}
	}
	return nil, fmt.Errorf("decode base64: %w", err)
}

// base64Encodings are tried in order; the first is what browsers emit.
var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

func (h *FilesHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "user_id", h.Env)
	if !ok {
		return
	}
	list, err := h.Files.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	meta, err := h.Files.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// Download redirects to a presigned link for remote files and streams local
// ones inline.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	dl, err := h.Files.Download(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	if dl.RedirectURL != "" {
		http.Redirect(w, r, dl.RedirectURL, http.StatusFound)
		return
	}
	defer func() {
		if err := dl.Content.Close(); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Int64("file_id", id).Msg("close stored file")
		}
	}()

	contentType := dl.File.MimeType
	if contentType == "" {
		contentType = files.MimePDF
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", contentDisposition("inline", dl.File.FileName))
	http.ServeContent(w, r, dl.File.FileName, dl.ModTime, dl.Content)
}

func (h *FilesHandler) Presigned(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	url, err := h.Files.Presign(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

type verifyRequest struct {
	IsVerified        *bool   `json:"is_verified"`
	VerifiedBy        *flexID `json:"verified_by"`
	VerificationNotes *string `json:"verification_notes" validate:"omitnil,max=4000"`
}

// Verify applies the supplied fields; absent ones keep their stored values.
// verified_by defaults to the caller.
func (h *FilesHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	var req verifyRequest
	if !bind(w, r, &req, "Invalid verification", h.Env) {
		return
	}
	verifiedBy := req.VerifiedBy.ptr()
	if verifiedBy == nil {
		verifiedBy = callerID(r)
	}

	file, err := h.Files.Verify(r.Context(), id, files.VerifyInput{
		IsVerified: req.IsVerified,
		VerifiedBy: verifiedBy,
		Notes:      req.VerificationNotes,
	})
	if err != nil {
		h.Audit.FromRequest(r, "file.verify", "file", id, "failure", nil)
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "file.verify", "file", id, "success", map[string]string{
		"is_verified": strconv.FormatBool(file.IsVerified),
	})
	writeJSON(w, http.StatusOK, file)
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"max=4000"`
}

func (h *FilesHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	var req rejectRequest
	if !bind(w, r, &req, "Invalid reason", h.Env) {
		return
	}
	file, err := h.Files.Reject(r.Context(), id, req.Reason)
	if err != nil {
		h.Audit.FromRequest(r, "file.reject", "file", id, "failure", nil)
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "file.reject", "file", id, "success", nil)
	writeJSON(w, http.StatusOK, file)
}

func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	if err := h.Files.Delete(r.Context(), id); err != nil {
		h.Audit.FromRequest(r, "file.delete", "file", id, "failure", nil)
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "file.delete", "file", id, "success", nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
