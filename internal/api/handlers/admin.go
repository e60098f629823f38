package handlers

import (
	"net/http"
)

type AdminHandler struct {
	Files   FileReviewService
	Reports ReportService
	Env     string
}

func NewAdminHandler(fileReview FileReviewService, reportService ReportService, env string) *AdminHandler {
	return &AdminHandler{Files: fileReview, Reports: reportService, Env: env}
}

// PendingCertificates lists unverified certificates whose stored object
// still exists.
func (h *AdminHandler) PendingCertificates(w http.ResponseWriter, r *http.Request) {
	list, err := h.Files.PendingCertificates(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.Reports.Analytics(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}
