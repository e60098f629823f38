package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prepsphere/server/internal/sanitize"
)

const (
	defaultPlacementStatus = "Not placed"
	profileRejectedTitle   = "Profile Rejected"
	profileRejectedMessage = "Your profile was rejected"
)

// GetProfile returns the student's profile, or an unsaved default one.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return &Profile{UserID: userID}, nil
	}
	return profile, err
}

// SaveProfile creates or replaces the student's editable profile fields and
// marks the account's profile complete. A new profile starts unapproved.
func (s *Service) SaveProfile(ctx context.Context, userID int64, input ProfileInput) (*Profile, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	if input.AlternateEmail != nil {
		trimmed := strings.TrimSpace(*input.AlternateEmail)
		input.AlternateEmail = &trimmed
	}
	input.Phone = sanitize.OptionalText(input.Phone)
	input.Degree = sanitize.OptionalText(input.Degree)
	input.Year = sanitize.OptionalText(input.Year)
	input.Skills = sanitize.OptionalText(input.Skills)
	input.About = sanitize.OptionalText(input.About)
	return s.repo.UpsertProfile(ctx, userID, input)
}

func (s *Service) GetTPOProfile(ctx context.Context, userID int64) (*TPOProfile, error) {
	profile, err := s.repo.GetTPOProfile(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return &TPOProfile{UserID: userID}, nil
	}
	return profile, err
}

func (s *Service) SaveTPOProfile(ctx context.Context, userID int64, alternateEmail, phone *string) (*TPOProfile, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.UpsertTPOProfile(ctx, userID, sanitize.OptionalText(alternateEmail), sanitize.OptionalText(phone))
}

func (s *Service) ListPendingProfiles(ctx context.Context) ([]PendingProfile, error) {
	return s.repo.ListPendingProfiles(ctx)
}

// ApproveProfile approves the student's profile. Blank notes keep the
// notes already on file.
func (s *Service) ApproveProfile(ctx context.Context, userID int64, notes string) (*ProfileApproval, error) {
	return s.repo.ApproveProfile(ctx, userID, nonEmpty(sanitize.Text(notes)))
}

// RejectProfile withdraws approval and tells the student why. A failed
// notification is logged; the rejection itself stands.
func (s *Service) RejectProfile(ctx context.Context, userID int64, reason string) (*ProfileApproval, error) {
	reason = sanitize.Text(reason)
	result, err := s.repo.RejectProfile(ctx, userID, reason)
	if err != nil {
		return nil, err
	}

	message := reason
	if message == "" {
		message = profileRejectedMessage
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, userID, profileRejectedTitle, message); err != nil {
			s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to notify profile rejection")
		}
	}
	return result, nil
}

func (s *Service) ListApprovedStudents(ctx context.Context) ([]ApprovedStudent, error) {
	students, err := s.repo.ListApprovedStudents(ctx)
	if err != nil {
		return nil, err
	}
	for i := range students {
		if students[i].PlacementStatus == "" {
			students[i].PlacementStatus = defaultPlacementStatus
		}
	}
	return students, nil
}

func (s *Service) SetPlacementStatus(ctx context.Context, userID int64, status string) (*PlacementUpdate, error) {
	status = sanitize.Text(status)
	if status == "" {
		return nil, ValidationError{Field: "placement_status", Message: "Missing placement_status"}
	}
	return s.repo.SetPlacementStatus(ctx, userID, status)
}

func (s *Service) requireUser(ctx context.Context, userID int64) error {
	exists, err := s.repo.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}
