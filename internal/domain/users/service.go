package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/prepsphere/server/internal/auth"
	"github.com/prepsphere/server/internal/sanitize"
	"github.com/rs/zerolog"
)

// Notifier delivers in-app notifications. Implemented by notifications.Service.
type Notifier interface {
	Notify(ctx context.Context, userID int64, title, message string) error
}

type Service struct {
	repo     Repository
	notifier Notifier
	logger   zerolog.Logger
}

func NewService(repo Repository, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger.With().Str("component", "users").Logger(),
	}
}

type RegisterInput struct {
	Email       string
	FirstName   string
	LastName    string
	Role        string
	PhoneNumber string
	ClerkUserID string
}

// Register creates a portal account. Students are approved on creation;
// staff accounts wait for an administrator.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.FirstName = sanitize.Text(input.FirstName)
	input.Role = strings.TrimSpace(input.Role)
	if input.Email == "" || input.FirstName == "" || input.Role == "" {
		return nil, ValidationError{Message: "Missing required fields"}
	}

	role, ok := auth.ParseRole(input.Role)
	if !ok {
		return nil, ValidationError{Field: "role", Message: "Role must be student, tpo or admin"}
	}

	clerkID := strings.TrimSpace(input.ClerkUserID)
	if clerkID == "" {
		clerkID = "local_" + ulid.Make().String()
	}

	exists, err := s.repo.ExistsByEmailOrClerkID(ctx, input.Email, clerkID)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if exists {
		return nil, ErrAlreadyRegistered
	}

	user, err := s.repo.Create(ctx, CreateParams{
		ClerkUserID: clerkID,
		Email:       input.Email,
		FirstName:   input.FirstName,
		LastName:    sanitize.Text(input.LastName),
		Role:        string(role),
		PhoneNumber: strings.TrimSpace(input.PhoneNumber),
		IsApproved:  role == auth.RoleStudent,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("role", user.Role).Msg("user registered")
	return user, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByClerkID(ctx context.Context, clerkUserID string) (*User, error) {
	return s.repo.GetByClerkID(ctx, strings.TrimSpace(clerkUserID))
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, strings.TrimSpace(email))
}

// UpdateName changes the display name. Blank values keep the stored ones and
// the email address is never changed here.
func (s *Service) UpdateName(ctx context.Context, id int64, firstName, lastName string) (*User, error) {
	return s.repo.UpdateName(ctx, id, nonEmpty(sanitize.Text(firstName)), nonEmpty(sanitize.Text(lastName)))
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", id).Msg("user deleted")
	return nil
}

func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// ExternalUser is an identity-provider account pushed through the webhook.
type ExternalUser struct {
	ClerkUserID string
	Email       string
	FirstName   string
	LastName    string
	Role        string
}

// SyncExternal inserts or refreshes the account mirrored from the identity
// provider, keyed by its clerk id.
func (s *Service) SyncExternal(ctx context.Context, ext ExternalUser) (*User, error) {
	if strings.TrimSpace(ext.ClerkUserID) == "" || strings.TrimSpace(ext.Email) == "" {
		return nil, ValidationError{Message: "Invalid webhook payload"}
	}
	role := auth.NormalizeRole(ext.Role)
	user, err := s.repo.UpsertByClerkID(ctx, CreateParams{
		ClerkUserID: strings.TrimSpace(ext.ClerkUserID),
		Email:       strings.TrimSpace(ext.Email),
		FirstName:   sanitize.Text(ext.FirstName),
		LastName:    sanitize.Text(ext.LastName),
		Role:        string(role),
		IsApproved:  role == auth.RoleStudent,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", user.ID).Str("clerk_user_id", user.ClerkUserID).Msg("user synced from identity provider")
	return user, nil
}

// DeleteExternal removes the mirrored account. Unknown ids are not an error.
func (s *Service) DeleteExternal(ctx context.Context, clerkUserID string) error {
	err := s.repo.DeleteByClerkID(ctx, strings.TrimSpace(clerkUserID))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// The lookups below satisfy events.UserDirectory. A miss is reported as a
// zero value, not an error.

func (s *Service) EmailByClerkID(ctx context.Context, clerkUserID string) (string, error) {
	user, err := s.repo.GetByClerkID(ctx, clerkUserID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

func (s *Service) IDByEmail(ctx context.Context, email string) (int64, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

func (s *Service) IDByAlternateEmail(ctx context.Context, email string) (int64, error) {
	id, err := s.repo.UserIDByAlternateEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	return id, err
}

func nonEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
