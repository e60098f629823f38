package handlers

import (
	"net/http"

	"github.com/prepsphere/server/internal/audit"
	"github.com/prepsphere/server/internal/domain/recruitment"
)

type JobsHandler struct {
	Jobs  JobService
	Audit *audit.Logger
	Env   string
}

func NewJobsHandler(service JobService, auditLogger *audit.Logger, env string) *JobsHandler {
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	return &JobsHandler{Jobs: service, Audit: auditLogger, Env: env}
}

// ListOpen is the student job board: everything not closed, newest first.
func (h *JobsHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	list, err := h.Jobs.ListOpen(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	job, err := h.Jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobsHandler) ListWithApplicants(w http.ResponseWriter, r *http.Request) {
	list, err := h.Jobs.ListWithApplicants(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type createJobRequest struct {
	Title        string  `json:"title" validate:"required,max=255"`
	Company      string  `json:"company" validate:"required,max=255"`
	Location     string  `json:"location" validate:"max=255"`
	Salary       string  `json:"salary" validate:"max=100"`
	Type         string  `json:"type" validate:"max=50"`
	Description  string  `json:"description"`
	Requirements string  `json:"requirements"`
	Deadline     *string `json:"deadline" validate:"omitnil,max=100"`
	JobURL       *string `json:"job_url" validate:"omitnil,max=2048"`
}

func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if !bind(w, r, &req, "Missing title/company", h.Env) {
		return
	}
	job, err := h.Jobs.Create(r.Context(), recruitment.CreateInput{
		Title:        req.Title,
		Company:      req.Company,
		Location:     req.Location,
		Salary:       req.Salary,
		Type:         req.Type,
		Description:  req.Description,
		Requirements: req.Requirements,
		Deadline:     nonEmptyPtr(req.Deadline),
		CreatedBy:    callerID(r),
		JobURL:       req.JobURL,
	})
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "job.create", "job", job.ID, "success", map[string]string{"company": job.Company})
	writeJSON(w, http.StatusCreated, job)
}

type updateJobRequest struct {
	Title        *string `json:"title" validate:"omitnil,max=255"`
	Company      *string `json:"company" validate:"omitnil,max=255"`
	Location     *string `json:"location" validate:"omitnil,max=255"`
	Salary       *string `json:"salary" validate:"omitnil,max=100"`
	Type         *string `json:"type" validate:"omitnil,max=50"`
	Description  *string `json:"description"`
	Requirements *string `json:"requirements"`
	Deadline     *string `json:"deadline" validate:"omitnil,max=100"`
	Status       *string `json:"status" validate:"omitnil,max=50"`
	JobURL       *string `json:"job_url" validate:"omitnil,max=2048"`
}

func (h *JobsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	var req updateJobRequest
	if !bind(w, r, &req, "Invalid job", h.Env) {
		return
	}
	job, err := h.Jobs.Update(r.Context(), id, recruitment.UpdateInput{
		Title:        req.Title,
		Company:      req.Company,
		Location:     req.Location,
		Salary:       req.Salary,
		Type:         req.Type,
		Description:  req.Description,
		Requirements: req.Requirements,
		Deadline:     nonEmptyPtr(req.Deadline),
		Status:       req.Status,
		JobURL:       req.JobURL,
	})
	if err != nil {
		h.Audit.FromRequest(r, "job.update", "job", id, "failure", nil)
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "job.update", "job", id, "success", nil)
	writeJSON(w, http.StatusOK, job)
}

func (h *JobsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	if err := h.Jobs.Delete(r.Context(), id); err != nil {
		h.Audit.FromRequest(r, "job.delete", "job", id, "failure", nil)
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "job.delete", "job", id, "success", nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type applyRequest struct {
	UserID      flexID  `json:"user_id" validate:"required"`
	CoverLetter *string `json:"cover_letter" validate:"omitnil,max=20000"`
}

func (h *JobsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	var req applyRequest
	if !bind(w, r, &req, "Missing user_id", h.Env) {
		return
	}
	if _, err := h.Jobs.Apply(r.Context(), jobID, int64(req.UserID), req.CoverLetter); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

func (h *JobsHandler) Applications(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	list, err := h.Jobs.ListApplicants(r.Context(), jobID)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type applicationStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *JobsHandler) SetApplicationStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.Env)
	if !ok {
		return
	}
	var req applicationStatusRequest
	if !bind(w, r, &req, "Missing status", h.Env) {
		return
	}
	app, err := h.Jobs.SetApplicationStatus(r.Context(), id, req.Status)
	if err != nil {
		h.Audit.FromRequest(r, "application.status", "application", id, "failure", nil)
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.FromRequest(r, "application.status", "application", id, "success", map[string]string{"status": app.Status})
	writeJSON(w, http.StatusOK, app)
}
