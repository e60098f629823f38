package users

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrAlreadyRegistered = errors.New("user already registered")
	ErrProfileNotFound   = errors.New("profile not found")
)

// ValidationError carries the client-facing message for a rejected input.
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

type User struct {
	ID              int64     `json:"id"`
	ClerkUserID     string    `json:"clerk_user_id"`
	Email           string    `json:"email"`
	FirstName       *string   `json:"first_name"`
	LastName        *string   `json:"last_name"`
	Role            string    `json:"role"`
	PhoneNumber     *string   `json:"phone_number"`
	IsActive        bool      `json:"is_active"`
	IsApproved      bool      `json:"is_approved"`
	ProfileComplete bool      `json:"profile_complete"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Profile is the student's placement profile. ID is nil for the default
// profile returned before the student has saved one.
type Profile struct {
	ID              *int64     `json:"id"`
	UserID          int64      `json:"user_id"`
	Phone           *string    `json:"phone"`
	Degree          *string    `json:"degree"`
	Year            *string    `json:"year"`
	Skills          *string    `json:"skills"`
	About           *string    `json:"about"`
	AlternateEmail  *string    `json:"alternate_email"`
	ProfileImageURL *string    `json:"profile_image_url"`
	IsApproved      bool       `json:"is_approved"`
	ApprovalNotes   *string    `json:"approval_notes"`
	PlacementStatus *string    `json:"placement_status"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// ProfileInput holds the student-editable profile fields.
type ProfileInput struct {
	Phone           *string
	Degree          *string
	Year            *string
	Skills          *string
	About           *string
	AlternateEmail  *string
	ProfileImageURL *string
}

type TPOProfile struct {
	UserID         int64      `json:"user_id"`
	AlternateEmail *string    `json:"alternate_email"`
	Phone          *string    `json:"phone"`
	UpdatedAt      *time.Time `json:"updated_at"`
}

// PendingProfile is a row of the TPO approval queue.
type PendingProfile struct {
	UserID    int64   `json:"user_id"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone"`
	Degree    *string `json:"degree"`
	Year      *string `json:"year"`
}

type ProfileApproval struct {
	ID         int64   `json:"id"`
	UserID     int64   `json:"user_id"`
	IsApproved bool    `json:"is_approved"`
	Notes      *string `json:"approval_notes"`
}

type ApprovedStudent struct {
	UserID          int64   `json:"user_id"`
	FirstName       *string `json:"first_name"`
	LastName        *string `json:"last_name"`
	Email           string  `json:"email"`
	Phone           *string `json:"phone"`
	Degree          *string `json:"degree"`
	Year            *string `json:"year"`
	Skills          *string `json:"skills"`
	PlacementStatus string  `json:"placement_status"`
	ResumeID        *int64  `json:"resume_id"`
	ResumeName      *string `json:"resume_name"`
	ResumeVerified  *bool   `json:"resume_verified"`
}

type PlacementUpdate struct {
	UserID          int64  `json:"user_id"`
	PlacementStatus string `json:"placement_status"`
}

type CreateParams struct {
	ClerkUserID string
	Email       string
	FirstName   string
	LastName    string
	Role        string
	PhoneNumber string
	IsApproved  bool
}

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*User, error)
	ExistsByEmailOrClerkID(ctx context.Context, email, clerkUserID string) (bool, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByClerkID(ctx context.Context, clerkUserID string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateName(ctx context.Context, id int64, firstName, lastName *string) (*User, error)
	Delete(ctx context.Context, id int64) error
	UpsertByClerkID(ctx context.Context, params CreateParams) (*User, error)
	DeleteByClerkID(ctx context.Context, clerkUserID string) error
	Exists(ctx context.Context, id int64) (bool, error)
	UserIDByAlternateEmail(ctx context.Context, email string) (int64, error)

	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	UpsertProfile(ctx context.Context, userID int64, input ProfileInput) (*Profile, error)
	GetTPOProfile(ctx context.Context, userID int64) (*TPOProfile, error)
	UpsertTPOProfile(ctx context.Context, userID int64, alternateEmail, phone *string) (*TPOProfile, error)

	ListPendingProfiles(ctx context.Context) ([]PendingProfile, error)
	ApproveProfile(ctx context.Context, userID int64, notes *string) (*ProfileApproval, error)
	RejectProfile(ctx context.Context, userID int64, reason string) (*ProfileApproval, error)
	ListApprovedStudents(ctx context.Context) ([]ApprovedStudent, error)
	SetPlacementStatus(ctx context.Context, userID int64, status string) (*PlacementUpdate, error)
}
