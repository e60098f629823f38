package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prepsphere/server/internal/api/middleware"
	"github.com/prepsphere/server/internal/api/problem"
	"github.com/prepsphere/server/internal/auth"
	"github.com/prepsphere/server/internal/domain/events"
	"github.com/prepsphere/server/internal/domain/files"
	"github.com/prepsphere/server/internal/domain/notifications"
	"github.com/prepsphere/server/internal/domain/recruitment"
	"github.com/prepsphere/server/internal/domain/reports"
	"github.com/prepsphere/server/internal/domain/users"
	"github.com/stretchr/testify/require"
)

var errUnexpected = errors.New("unexpected call")

// serve routes req through a mux so path values resolve like in production.
func serve(pattern string, handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, handler)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withCaller(req *http.Request, userID string, role auth.Role) *http.Request {
	claims := &auth.Claims{Role: string(role)}
	claims.Subject = userID
	return req.WithContext(middleware.ContextWithClaims(req.Context(), claims))
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) problem.ProblemDetails {
	t.Helper()
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p problem.ProblemDetails
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func ptr[T any](v T) *T {
	return &v
}

type stubUsers struct {
	registerFn       func(context.Context, users.RegisterInput) (*users.User, error)
	getFn            func(context.Context, int64) (*users.User, error)
	getByClerkFn     func(context.Context, string) (*users.User, error)
	getByEmailFn     func(context.Context, string) (*users.User, error)
	updateNameFn     func(context.Context, int64, string, string) (*users.User, error)
	deleteFn         func(context.Context, int64) error
	syncFn           func(context.Context, users.ExternalUser) (*users.User, error)
	deleteExternalFn func(context.Context, string) error
	getProfileFn     func(context.Context, int64) (*users.Profile, error)
	saveProfileFn    func(context.Context, int64, users.ProfileInput) (*users.Profile, error)
	getTPOFn         func(context.Context, int64) (*users.TPOProfile, error)
	saveTPOFn        func(context.Context, int64, *string, *string) (*users.TPOProfile, error)
	pendingFn        func(context.Context) ([]users.PendingProfile, error)
	approveFn        func(context.Context, int64, string) (*users.ProfileApproval, error)
	rejectFn         func(context.Context, int64, string) (*users.ProfileApproval, error)
	approvedFn       func(context.Context) ([]users.ApprovedStudent, error)
	placementFn      func(context.Context, int64, string) (*users.PlacementUpdate, error)
}

func (s *stubUsers) Register(ctx context.Context, input users.RegisterInput) (*users.User, error) {
	if s.registerFn == nil {
		return nil, errUnexpected
	}
	return s.registerFn(ctx, input)
}

func (s *stubUsers) Get(ctx context.Context, id int64) (*users.User, error) {
	if s.getFn == nil {
		return nil, errUnexpected
	}
	return s.getFn(ctx, id)
}

func (s *stubUsers) GetByClerkID(ctx context.Context, clerkUserID string) (*users.User, error) {
	if s.getByClerkFn == nil {
		return nil, errUnexpected
	}
	return s.getByClerkFn(ctx, clerkUserID)
}

func (s *stubUsers) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	if s.getByEmailFn == nil {
		return nil, errUnexpected
	}
	return s.getByEmailFn(ctx, email)
}

func (s *stubUsers) UpdateName(ctx context.Context, id int64, firstName, lastName string) (*users.User, error) {
	if s.updateNameFn == nil {
		return nil, errUnexpected
	}
	return s.updateNameFn(ctx, id, firstName, lastName)
}

func (s *stubUsers) Delete(ctx context.Context, id int64) error {
	if s.deleteFn == nil {
		return errUnexpected
	}
	return s.deleteFn(ctx, id)
}

func (s *stubUsers) SyncExternal(ctx context.Context, ext users.ExternalUser) (*users.User, error) {
	if s.syncFn == nil {
		return nil, errUnexpected
	}
	return s.syncFn(ctx, ext)
}

func (s *stubUsers) DeleteExternal(ctx context.Context, clerkUserID string) error {
	if s.deleteExternalFn == nil {
		return errUnexpected
	}
	return s.deleteExternalFn(ctx, clerkUserID)
}

func (s *stubUsers) GetProfile(ctx context.Context, userID int64) (*users.Profile, error) {
	if s.getProfileFn == nil {
		return nil, errUnexpected
	}
	return s.getProfileFn(ctx, userID)
}

func (s *stubUsers) SaveProfile(ctx context.Context, userID int64, input users.ProfileInput) (*users.Profile, error) {
	if s.saveProfileFn == nil {
		return nil, errUnexpected
	}
	return s.saveProfileFn(ctx, userID, input)
}

func (s *stubUsers) GetTPOProfile(ctx context.Context, userID int64) (*users.TPOProfile, error) {
	if s.getTPOFn == nil {
		return nil, errUnexpected
	}
	return s.getTPOFn(ctx, userID)
}

func (s *stubUsers) SaveTPOProfile(ctx context.Context, userID int64, alternateEmail, phone *string) (*users.TPOProfile, error) {
	if s.saveTPOFn == nil {
		return nil, errUnexpected
	}
	return s.saveTPOFn(ctx, userID, alternateEmail, phone)
}

func (s *stubUsers) ListPendingProfiles(ctx context.Context) ([]users.PendingProfile, error) {
	if s.pendingFn == nil {
		return nil, errUnexpected
	}
	return s.pendingFn(ctx)
}

func (s *stubUsers) ApproveProfile(ctx context.Context, userID int64, notes string) (*users.ProfileApproval, error) {
	if s.approveFn == nil {
		return nil, errUnexpected
	}
	return s.approveFn(ctx, userID, notes)
}

func (s *stubUsers) RejectProfile(ctx context.Context, userID int64, reason string) (*users.ProfileApproval, error) {
	if s.rejectFn == nil {
		return nil, errUnexpected
	}
	return s.rejectFn(ctx, userID, reason)
}

func (s *stubUsers) ListApprovedStudents(ctx context.Context) ([]users.ApprovedStudent, error) {
	if s.approvedFn == nil {
		return nil, errUnexpected
	}
	return s.approvedFn(ctx)
}

func (s *stubUsers) SetPlacementStatus(ctx context.Context, userID int64, status string) (*users.PlacementUpdate, error) {
	if s.placementFn == nil {
		return nil, errUnexpected
	}
	return s.placementFn(ctx, userID, status)
}

type stubFiles struct {
	remote bool
	max    int64

	uploadFn       func(context.Context, files.UploadInput, files.Backend) (*files.File, error)
	listFn         func(context.Context, int64) ([]files.File, error)
	getFn          func(context.Context, int64) (*files.Metadata, error)
	downloadFn     func(context.Context, int64) (*files.Download, error)
	presignFn      func(context.Context, int64) (string, error)
	verifyFn       func(context.Context, int64, files.VerifyInput) (*files.File, error)
	rejectFn       func(context.Context, int64, string) (*files.File, error)
	deleteFn       func(context.Context, int64) error
	pendingFn      func(context.Context) ([]files.ReviewItem, error)
	verifiedFn     func(context.Context) ([]files.ReviewItem, error)
	certificatesFn func(context.Context) ([]files.ReviewItem, error)
}

func (s *stubFiles) Upload(ctx context.Context, input files.UploadInput, backend files.Backend) (*files.File, error) {
	if s.uploadFn == nil {
		return nil, errUnexpected
	}
	return s.uploadFn(ctx, input, backend)
}

func (s *stubFiles) ListByUser(ctx context.Context, userID int64) ([]files.File, error) {
	if s.listFn == nil {
		return nil, errUnexpected
	}
	return s.listFn(ctx, userID)
}

func (s *stubFiles) Get(ctx context.Context, id int64) (*files.Metadata, error) {
	if s.getFn == nil {
		return nil, errUnexpected
	}
	return s.getFn(ctx, id)
}

func (s *stubFiles) Download(ctx context.Context, id int64) (*files.Download, error) {
	if s.downloadFn == nil {
		return nil, errUnexpected
	}
	return s.downloadFn(ctx, id)
}

func (s *stubFiles) Presign(ctx context.Context, id int64) (string, error) {
	if s.presignFn == nil {
		return "", errUnexpected
	}
	return s.presignFn(ctx, id)
}

func (s *stubFiles) Verify(ctx context.Context, id int64, input files.VerifyInput) (*files.File, error) {
	if s.verifyFn == nil {
		return nil, errUnexpected
	}
	return s.verifyFn(ctx, id, input)
}

func (s *stubFiles) Reject(ctx context.Context, id int64, reason string) (*files.File, error) {
	if s.rejectFn == nil {
		return nil, errUnexpected
	}
	return s.rejectFn(ctx, id, reason)
}

func (s *stubFiles) Delete(ctx context.Context, id int64) error {
	if s.deleteFn == nil {
		return errUnexpected
	}
	return s.deleteFn(ctx, id)
}

func (s *stubFiles) RemoteConfigured() bool { return s.remote }

func (s *stubFiles) MaxBytes() int64 {
	if s.max == 0 {
		return 500 * 1024
	}
	return s.max
}

func (s *stubFiles) PendingResumes(ctx context.Context) ([]files.ReviewItem, error) {
	if s.pendingFn == nil {
		return nil, errUnexpected
	}
	return s.pendingFn(ctx)
}

func (s *stubFiles) VerifiedResumes(ctx context.Context) ([]files.ReviewItem, error) {
	if s.verifiedFn == nil {
		return nil, errUnexpected
	}
	return s.verifiedFn(ctx)
}

func (s *stubFiles) PendingCertificates(ctx context.Context) ([]files.ReviewItem, error) {
	if s.certificatesFn == nil {
		return nil, errUnexpected
	}
	return s.certificatesFn(ctx)
}

type stubJobs struct {
	listOpenFn   func(context.Context) ([]recruitment.Job, error)
	listAllFn    func(context.Context) ([]recruitment.JobSummary, error)
	getFn        func(context.Context, int64) (*recruitment.Job, error)
	createFn     func(context.Context, recruitment.CreateInput) (*recruitment.Job, error)
	updateFn     func(context.Context, int64, recruitment.UpdateInput) (*recruitment.Job, error)
	deleteFn     func(context.Context, int64) error
	applyFn      func(context.Context, int64, int64, *string) (*recruitment.Application, error)
	applicantsFn func(context.Context, int64) ([]recruitment.Applicant, error)
	statusFn     func(context.Context, int64, string) (*recruitment.Application, error)
}

func (s *stubJobs) ListOpen(ctx context.Context) ([]recruitment.Job, error) {
	if s.listOpenFn == nil {
		return nil, errUnexpected
	}
	return s.listOpenFn(ctx)
}

func (s *stubJobs) ListWithApplicants(ctx context.Context) ([]recruitment.JobSummary, error) {
	if s.listAllFn == nil {
		return nil, errUnexpected
	}
	return s.listAllFn(ctx)
}

func (s *stubJobs) Get(ctx context.Context, id int64) (*recruitment.Job, error) {
	if s.getFn == nil {
		return nil, errUnexpected
	}
	return s.getFn(ctx, id)
}

func (s *stubJobs) Create(ctx context.Context, input recruitment.CreateInput) (*recruitment.Job, error) {
	if s.createFn == nil {
		return nil, errUnexpected
	}
	return s.createFn(ctx, input)
}

func (s *stubJobs) Update(ctx context.Context, id int64, input recruitment.UpdateInput) (*recruitment.Job, error) {
	if s.updateFn == nil {
		return nil, errUnexpected
	}
	return s.updateFn(ctx, id, input)
}

func (s *stubJobs) Delete(ctx context.Context, id int64) error {
	if s.deleteFn == nil {
		return errUnexpected
	}
	return s.deleteFn(ctx, id)
}

func (s *stubJobs) Apply(ctx context.Context, jobID, userID int64, coverLetter *string) (*recruitment.Application, error) {
	if s.applyFn == nil {
		return nil, errUnexpected
	}
	return s.applyFn(ctx, jobID, userID, coverLetter)
}

func (s *stubJobs) ListApplicants(ctx context.Context, jobID int64) ([]recruitment.Applicant, error) {
	if s.applicantsFn == nil {
		return nil, errUnexpected
	}
	return s.applicantsFn(ctx, jobID)
}

func (s *stubJobs) SetApplicationStatus(ctx context.Context, id int64, status string) (*recruitment.Application, error) {
	if s.statusFn == nil {
		return nil, errUnexpected
	}
	return s.statusFn(ctx, id, status)
}

type stubEvents struct {
	listFn        func(context.Context, events.Filter) ([]events.Event, error)
	createFn      func(context.Context, events.CreateInput) (*events.Event, error)
	updateFn      func(context.Context, int64, events.UpdateInput) (*events.Event, error)
	getFn         func(context.Context, int64) (*events.Details, error)
	registerFn    func(context.Context, int64, events.RegisterInput) (*events.Registration, error)
	registrantsFn func(context.Context, int64) ([]events.Registrant, error)
	remindFn      func(context.Context, int64) (int, error)
}

func (s *stubEvents) List(ctx context.Context, filter events.Filter) ([]events.Event, error) {
	if s.listFn == nil {
		return nil, errUnexpected
	}
	return s.listFn(ctx, filter)
}

func (s *stubEvents) Create(ctx context.Context, input events.CreateInput) (*events.Event, error) {
	if s.createFn == nil {
		return nil, errUnexpected
	}
	return s.createFn(ctx, input)
}

func (s *stubEvents) Update(ctx context.Context, id int64, input events.UpdateInput) (*events.Event, error) {
	if s.updateFn == nil {
		return nil, errUnexpected
	}
	return s.updateFn(ctx, id, input)
}

func (s *stubEvents) Get(ctx context.Context, id int64) (*events.Details, error) {
	if s.getFn == nil {
		return nil, errUnexpected
	}
	return s.getFn(ctx, id)
}

func (s *stubEvents) Register(ctx context.Context, eventID int64, input events.RegisterInput) (*events.Registration, error) {
	if s.registerFn == nil {
		return nil, errUnexpected
	}
	return s.registerFn(ctx, eventID, input)
}

func (s *stubEvents) Registrants(ctx context.Context, eventID int64) ([]events.Registrant, error) {
	if s.registrantsFn == nil {
		return nil, errUnexpected
	}
	return s.registrantsFn(ctx, eventID)
}

func (s *stubEvents) SendReminders(ctx context.Context, eventID int64) (int, error) {
	if s.remindFn == nil {
		return 0, errUnexpected
	}
	return s.remindFn(ctx, eventID)
}

type stubNotifications struct {
	listFn      func(context.Context, int64) ([]notifications.Notification, error)
	createFn    func(context.Context, int64, notifications.CreateInput) (*notifications.Notification, error)
	broadcastFn func(context.Context, string, string) (int, error)
	markReadFn  func(context.Context, int64) (*notifications.Notification, error)
	markAllFn   func(context.Context, int64) (int64, error)
	deleteFn    func(context.Context, int64) error
}

func (s *stubNotifications) ListByUser(ctx context.Context, userID int64) ([]notifications.Notification, error) {
	if s.listFn == nil {
		return nil, errUnexpected
	}
	return s.listFn(ctx, userID)
}

func (s *stubNotifications) Create(ctx context.Context, userID int64, input notifications.CreateInput) (*notifications.Notification, error) {
	if s.createFn == nil {
		return nil, errUnexpected
	}
	return s.createFn(ctx, userID, input)
}

func (s *stubNotifications) Broadcast(ctx context.Context, title, message string) (int, error) {
	if s.broadcastFn == nil {
		return 0, errUnexpected
	}
	return s.broadcastFn(ctx, title, message)
}

func (s *stubNotifications) MarkRead(ctx context.Context, id int64) (*notifications.Notification, error) {
	if s.markReadFn == nil {
		return nil, errUnexpected
	}
	return s.markReadFn(ctx, id)
}

func (s *stubNotifications) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	if s.markAllFn == nil {
		return 0, errUnexpected
	}
	return s.markAllFn(ctx, userID)
}

func (s *stubNotifications) Delete(ctx context.Context, id int64) error {
	if s.deleteFn == nil {
		return errUnexpected
	}
	return s.deleteFn(ctx, id)
}

type stubReports struct {
	summaryFn   func(context.Context) (*reports.Summary, error)
	csvFn       func(context.Context, *int64) ([]byte, error)
	listFn      func(context.Context, int) ([]reports.Report, error)
	analyticsFn func(context.Context) (*reports.Analytics, error)
}

func (s *stubReports) Summary(ctx context.Context) (*reports.Summary, error) {
	if s.summaryFn == nil {
		return nil, errUnexpected
	}
	return s.summaryFn(ctx)
}

func (s *stubReports) SummaryCSV(ctx context.Context, generatedBy *int64) ([]byte, error) {
	if s.csvFn == nil {
		return nil, errUnexpected
	}
	return s.csvFn(ctx, generatedBy)
}

func (s *stubReports) ListReports(ctx context.Context, limit int) ([]reports.Report, error) {
	if s.listFn == nil {
		return nil, errUnexpected
	}
	return s.listFn(ctx, limit)
}

func (s *stubReports) Analytics(ctx context.Context) (*reports.Analytics, error) {
	if s.analyticsFn == nil {
		return nil, errUnexpected
	}
	return s.analyticsFn(ctx)
}
