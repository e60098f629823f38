package handlers

import (
	"net/http"
	"strconv"

	"github.com/prepsphere/server/internal/api/problem"
	"github.com/prepsphere/server/internal/audit"
	"github.com/prepsphere/server/internal/domain/reports"
	"github.com/rs/zerolog"
)

const defaultReportLimit = 50

// TPOHandler serves the placement office: profile approvals, resume
// review, placement tracking and statistics.
type TPOHandler struct {
	Profiles ProfileReviewService
	Files    FileReviewService
	Reports  ReportService
	Audit    *audit.Logger
	Env      string
}

func NewTPOHandler(profiles ProfileReviewService, fileReview FileReviewService, reportService ReportService, auditLogger *audit.Logger, env string) *TPOHandler {
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	return &TPOHandler{Profiles: profiles, Files: fileReview, Reports: reportService, Audit: auditLogger, Env: env}
}

func (h *TPOHandler) PendingProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := h.Profiles.ListPendingProfiles(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type approveRequest struct {
	Notes string `json:"notes" validate:"max=4000"`
}

func (h *TPOHandler) ApproveProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	var req approveRequest
	if !bind(w, r, &req, "Invalid notes", h.Env) {
		return
	}
	result, err := h.Profiles.ApproveProfile(r.Context(), userID, req.Notes)
	if err != nil {
		h.Audit.FromRequest(r, "profile.approve", "profile", userID, "failure", nil)
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "profile.approve", "profile", userID, "success", nil)
	writeJSON(w, http.StatusOK, result)
}

func (h *TPOHandler) RejectProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	var req rejectRequest
	if !bind(w, r, &req, "Invalid reason", h.Env) {
		return
	}
	result, err := h.Profiles.RejectProfile(r.Context(), userID, req.Reason)
	if err != nil {
		h.Audit.FromRequest(r, "profile.reject", "profile", userID, "failure", nil)
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "profile.reject", "profile", userID, "success", nil)
	writeJSON(w, http.StatusOK, result)
}

func (h *TPOHandler) ApprovedStudents(w http.ResponseWriter, r *http.Request) {
	list, err := h.Profiles.ListApprovedStudents(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type placementRequest struct {
	PlacementStatus string `json:"placement_status" validate:"required,max=100"`
}

func (h *TPOHandler) SetPlacement(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	var req placementRequest
	if !bind(w, r, &req, "Missing placement_status", h.Env) {
		return
	}
	result, err := h.Profiles.SetPlacementStatus(r.Context(), userID, req.PlacementStatus)
	if err != nil {
		h.Audit.FromRequest(r, "profile.placement", "profile", userID, "failure", nil)
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "profile.placement", "profile", userID, "success", map[string]string{"placement_status": result.PlacementStatus})
	writeJSON(w, http.StatusOK, result)
}

func (h *TPOHandler) PendingResumes(w http.ResponseWriter, r *http.Request) {
	list, err := h.Files.PendingResumes(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *TPOHandler) VerifiedResumes(w http.ResponseWriter, r *http.Request) {
	list, err := h.Files.VerifiedResumes(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *TPOHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Reports.Summary(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// SummaryCSV exports the per-job statistics and archives the export.
func (h *TPOHandler) SummaryCSV(w http.ResponseWriter, r *http.Request) {
	body, err := h.Reports.SummaryCSV(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "report.export", "report", 0, "success", map[string]string{"type": reports.TypeSummary})

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", contentDisposition("attachment", reports.CSVFilename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("write csv export")
	}
}

// ListReports lists archived reports, newest first. ?limit= caps the page.
func (h *TPOHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit := defaultReportLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid limit", err, h.Env)
			return
		}
		limit = parsed
	}
	list, err := h.Reports.ListReports(r.Context(), limit)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
