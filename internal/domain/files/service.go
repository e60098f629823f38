package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/prepsphere/server/internal/metrics"
	"github.com/prepsphere/server/internal/sanitize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const existenceProbeLimit = 8

// Backend picks where an upload lands.
type Backend int

const (
	// BackendAuto prefers object storage and falls back to local disk.
	BackendAuto Backend = iota
	BackendRemote
	BackendLocal
)

func (b Backend) String() string {
	switch b {
	case BackendRemote:
		return "remote"
	case BackendLocal:
		return "local"
	default:
		return "auto"
	}
}

// UserLookup is satisfied by users.Service.
type UserLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Notifier is satisfied by notifications.Service.
type Notifier interface {
	Notify(ctx context.Context, userID int64, title, message string) error
}

type Options struct {
	Remote     RemoteStore
	Local      LocalStore
	MaxBytes   int64
	PresignTTL time.Duration
}

type Service struct {
	repo     Repository
	users    UserLookup
	notifier Notifier
	remote   RemoteStore
	local    LocalStore
	maxBytes int64
	ttl      time.Duration
	logger   zerolog.Logger

	now     func() time.Time
	randInt func(n int) int
}

func NewService(repo Repository, users UserLookup, notifier Notifier, opts Options, logger zerolog.Logger) *Service {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 500 * 1024
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 10 * time.Minute
	}
	return &Service{
		repo:     repo,
		users:    users,
		notifier: notifier,
		remote:   opts.Remote,
		local:    opts.Local,
		maxBytes: opts.MaxBytes,
		ttl:      opts.PresignTTL,
		logger:   logger.With().Str("component", "files").Logger(),
		now:      time.Now,
		randInt:  rand.IntN,
	}
}

// RemoteConfigured reports whether object storage is available.
func (s *Service) RemoteConfigured() bool {
	return s.remote != nil
}

func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

type UploadInput struct {
	UserID   int64
	FileName string
	MimeType string
	FileType string
	Content  []byte
}

// Upload validates and stores a PDF, then records it.
func (s *Service) Upload(ctx context.Context, input UploadInput, backend Backend) (*File, error) {
	input.FileName = strings.TrimSpace(input.FileName)
	input.MimeType = strings.TrimSpace(input.MimeType)
	input.FileType = strings.ToLower(strings.TrimSpace(input.FileType))
	if input.UserID <= 0 || input.FileName == "" || input.MimeType == "" || input.FileType == "" || len(input.Content) == 0 {
		return nil, ValidationError{Message: "Missing fields"}
	}
	if input.FileType != TypeResume && input.FileType != TypeCertificate {
		return nil, ValidationError{Field: "file_type", Message: "file_type must be resume or certificate"}
	}

	ok, err := s.users.Exists(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	store, label, err := s.pick(backend)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(input.MimeType, MimePDF) {
		s.reject(label)
		return nil, ValidationError{Field: "mime_type", Message: "Only PDF files are accepted"}
	}
	if int64(len(input.Content)) > s.maxBytes {
		s.reject(label)
		return nil, TooLargeError{Limit: s.maxBytes}
	}
	if err := checkPDF(input.Content); err != nil {
		s.reject(label)
		return nil, ValidationError{Field: "content", Message: "File is not a readable PDF"}
	}

	safe := s.safeName(input.FileName)
	key := strconv.FormatInt(input.UserID, 10) + "/" + safe
	obj, err := store.Put(ctx, key, input.Content, MimePDF)
	if err != nil {
		metrics.FileUploadsTotal.WithLabelValues(label, "failed").Inc()
		return nil, fmt.Errorf("store %s: %w", label, err)
	}

	file, err := s.repo.Create(ctx, CreateParams{
		UserID:   input.UserID,
		FileName: input.FileName,
		FilePath: obj.Path,
		FileSize: obj.Size,
		MimeType: MimePDF,
		FileType: input.FileType,
		FileURL:  obj.URL,
	})
	if err != nil {
		if derr := store.Delete(ctx, obj.Path); derr != nil {
			s.logger.Warn().Err(derr).Str("path", obj.Path).Msg("remove orphaned upload")
		}
		metrics.FileUploadsTotal.WithLabelValues(label, "failed").Inc()
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("record upload: %w", err)
	}

	metrics.FileUploadsTotal.WithLabelValues(label, "stored").Inc()
	metrics.FileUploadBytes.WithLabelValues(input.FileType).Observe(float64(obj.Size))
	s.logger.Info().
		Int64("file_id", file.ID).
		Int64("user_id", file.UserID).
		Str("backend", label).
		Int64("size", file.FileSize).
		Msg("file uploaded")
	return file, nil
}

func (s *Service) pick(backend Backend) (Store, string, error) {
	switch backend {
	case BackendRemote:
		if s.remote == nil {
			return nil, "", ErrStorageNotConfigured
		}
		return s.remote, "remote", nil
	case BackendLocal:
		if s.local == nil {
			return nil, "", errors.New("local upload directory is not configured")
		}
		return s.local, "local", nil
	default:
		if s.remote != nil {
			return s.remote, "remote", nil
		}
		return s.pick(BackendLocal)
	}
}

func (s *Service) reject(label string) {
	metrics.FileUploadsTotal.WithLabelValues(label, "rejected").Inc()
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]`)

// SafeName returns the base name with anything outside [a-zA-Z0-9._-]
// replaced by an underscore.
func SafeName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

func (s *Service) safeName(name string) string {
	return fmt.Sprintf("%d_%d_%s", s.now().UnixMilli(), s.randInt(1_000_000), SafeName(name))
}

func checkPDF(content []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return fmt.Errorf("parse pdf: %w", err)
	}
	if reader.NumPage() < 1 {
		return errors.New("pdf has no pages")
	}
	return nil
}

// isLocal reports whether a stored path belongs to the local disk backend.
func isLocal(path string) bool {
	return filepath.IsAbs(path)
}

func (s *Service) storeFor(path string) Store {
	if isLocal(path) {
		if s.local == nil {
			return nil
		}
		return s.local
	}
	if s.remote == nil {
		return nil
	}
	return s.remote
}

// exists probes the backend that owns path. Probe errors count as missing.
func (s *Service) exists(ctx context.Context, path string) bool {
	store := s.storeFor(path)
	if store == nil {
		return false
	}
	ok, err := store.Exists(ctx, path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("existence probe failed")
		return false
	}
	return ok
}

// present keeps the entries whose stored object still exists, preserving order.
func present[T any](ctx context.Context, s *Service, items []T, path func(T) string) []T {
	if len(items) == 0 {
		return items
	}
	found := make([]bool, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(existenceProbeLimit)
	for i := range items {
		g.Go(func() error {
			found[i] = s.exists(gctx, path(items[i]))
			return nil
		})
	}
	_ = g.Wait()

	out := make([]T, 0, len(items))
	missing := 0
	for i, item := range items {
		if found[i] {
			out = append(out, item)
		} else {
			missing++
		}
	}
	if missing > 0 {
		s.logger.Debug().Int("missing", missing).Msg("dropped files without stored object")
	}
	return out
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]File, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return present(ctx, s, list, func(f File) string { return f.FilePath }), nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Metadata, error) {
	file, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Metadata{File: *file, Exists: s.exists(ctx, file.FilePath)}, nil
}

// Download is either a redirect to object storage or a local file body.
// The caller closes Content.
type Download struct {
	RedirectURL string
	Content     io.ReadSeekCloser
	ModTime     time.Time
	File        *File
}

func (s *Service) Download(ctx context.Context, id int64) (*Download, error) {
	file, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isLocal(file.FilePath) {
		if s.remote == nil {
			return nil, ErrStorageNotConfigured
		}
		url, err := s.remote.PresignGet(ctx, file.FilePath, s.ttl)
		if err != nil {
			return nil, fmt.Errorf("presign download: %w", err)
		}
		return &Download{RedirectURL: url, File: file}, nil
	}

	if s.local == nil {
		return nil, ErrStoredFileMissing
	}
	content, modTime, err := s.local.Open(file.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrStoredFileMissing
		}
		return nil, fmt.Errorf("open stored file: %w", err)
	}
	return &Download{Content: content, ModTime: modTime, File: file}, nil
}

// Presign returns a short-lived GET link for a file held in object storage.
func (s *Service) Presign(ctx context.Context, id int64) (string, error) {
	if s.remote == nil {
		return "", ErrStorageNotConfigured
	}
	file, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if isLocal(file.FilePath) {
		return "", ErrStoredLocally
	}
	url, err := s.remote.PresignGet(ctx, file.FilePath, s.ttl)
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}
	return url, nil
}

type VerifyInput struct {
	IsVerified *bool
	VerifiedBy *int64
	Notes      *string
}

func (s *Service) Verify(ctx context.Context, id int64, input VerifyInput) (*File, error) {
	file, err := s.repo.Verify(ctx, id, VerifyParams{
		IsVerified: input.IsVerified,
		VerifiedBy: input.VerifiedBy,
		Notes:      sanitize.OptionalText(input.Notes),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("file_id", id).Bool("verified", file.IsVerified).Msg("file verification updated")
	return file, nil
}

// Reject marks the file unverified, keeps the reason as notes and tells the owner.
func (s *Service) Reject(ctx context.Context, id int64, reason string) (*File, error) {
	reason = sanitize.Text(reason)
	var notes *string
	if reason != "" {
		notes = &reason
	}
	file, err := s.repo.Reject(ctx, id, notes)
	if err != nil {
		return nil, err
	}

	message := reason
	if message == "" {
		message = "Your resume was rejected"
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, file.UserID, "Resume Rejected", message); err != nil {
			s.logger.Error().Err(err).Int64("file_id", id).Msg("notify resume rejection")
		}
	}
	return file, nil
}

// Delete removes the row, then the stored object. A missing object is not an error.
func (s *Service) Delete(ctx context.Context, id int64) error {
	file, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	store := s.storeFor(file.FilePath)
	if store == nil {
		s.logger.Warn().Int64("file_id", id).Str("path", file.FilePath).Msg("no backend for stored object")
		return nil
	}
	if err := store.Delete(ctx, file.FilePath); err != nil {
		s.logger.Warn().Err(err).Int64("file_id", id).Msg("delete stored object")
	}
	return nil
}

func (s *Service) PendingResumes(ctx context.Context) ([]ReviewItem, error) {
	return s.review(ctx, ReviewFilter{FileType: TypeResume, Verified: false})
}

func (s *Service) VerifiedResumes(ctx context.Context) ([]ReviewItem, error) {
	return s.review(ctx, ReviewFilter{FileType: TypeResume, Verified: true})
}

func (s *Service) PendingCertificates(ctx context.Context) ([]ReviewItem, error) {
	return s.review(ctx, ReviewFilter{FileType: TypeCertificate, Verified: false})
}

func (s *Service) review(ctx context.Context, filter ReviewFilter) ([]ReviewItem, error) {
	list, err := s.repo.ListForReview(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list %s review queue: %w", filter.FileType, err)
	}
	return present(ctx, s, list, func(item ReviewItem) string { return item.FilePath }), nil
}

// Reconcile counts rows whose stored object has disappeared and updates the
// missing-files gauge. Used by the periodic maintenance job.
func (s *Service) Reconcile(ctx context.Context) (total, missing int, err error) {
	list, err := s.repo.ListAll(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list files: %w", err)
	}
	kept := present(ctx, s, list, func(f File) string { return f.FilePath })
	missing = len(list) - len(kept)
	metrics.StoredFilesMissing.Set(float64(missing))
	return len(list), missing, nil
}
