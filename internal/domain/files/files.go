package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	TypeResume      = "resume"
	TypeCertificate = "certificate"

	MimePDF = "application/pdf"
)

var (
	ErrNotFound             = errors.New("file not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrStorageNotConfigured = errors.New("cloud storage is not configured")
	ErrStoredFileMissing    = errors.New("stored file not found on server")
	ErrStoredLocally        = errors.New("file is stored on local disk")
)

// ValidationError carries the client-facing message for a rejected upload.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// TooLargeError reports an upload above the configured limit.
type TooLargeError struct {
	Limit int64
}

func (e TooLargeError) Error() string {
	return fmt.Sprintf("Max file size is %d KB", e.Limit/1024)
}

type File struct {
	ID                int64     `json:"id"`
	UserID            int64     `json:"user_id"`
	FileName          string    `json:"file_name"`
	FilePath          string    `json:"file_path"`
	FileSize          int64     `json:"file_size"`
	MimeType          string    `json:"mime_type"`
	FileType          string    `json:"file_type"`
	FileURL           *string   `json:"file_url"`
	IsVerified        bool      `json:"is_verified"`
	VerifiedBy        *int64    `json:"verified_by"`
	VerificationNotes *string   `json:"verification_notes"`
	UploadedAt        time.Time `json:"uploaded_at"`
}

// ReviewItem is a file in a TPO/admin review queue with its owner.
type ReviewItem struct {
	File
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     string  `json:"email"`
}

type Metadata struct {
	File
	Exists bool `json:"exists"`
}

type CreateParams struct {
	UserID   int64
	FileName string
	FilePath string
	FileSize int64
	MimeType string
	FileType string
	FileURL  *string
}

type VerifyParams struct {
	IsVerified *bool
	VerifiedBy *int64
	Notes      *string
}

// ReviewFilter selects a review queue.
type ReviewFilter struct {
	FileType string
	Verified bool
}

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*File, error)
	Get(ctx context.Context, id int64) (*File, error)
	ListByUser(ctx context.Context, userID int64) ([]File, error)
	ListForReview(ctx context.Context, filter ReviewFilter) ([]ReviewItem, error)
	ListAll(ctx context.Context) ([]File, error)
	Verify(ctx context.Context, id int64, params VerifyParams) (*File, error)
	Reject(ctx context.Context, id int64, reason *string) (*File, error)
	Delete(ctx context.Context, id int64) (*File, error)
}

// StoredObject describes where Put left the bytes.
type StoredObject struct {
	Path string
	URL  *string
	Size int64
}

// Store is an object backend. Paths are whatever Put returned.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (StoredObject, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
}

// RemoteStore is S3-compatible storage that can hand out presigned links.
type RemoteStore interface {
	Store
	PresignGet(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// LocalStore keeps files on the server's disk. Put returns absolute paths.
// Open reports a missing file with an error wrapping fs.ErrNotExist.
type LocalStore interface {
	Store
	Open(path string) (io.ReadSeekCloser, time.Time, error)
}
