package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepsphere/server/internal/domain/users"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const userColumns = `id, clerk_user_id, email, first_name, last_name, role, phone_number,
       is_active, is_approved, profile_complete, created_at, updated_at`

type userRow struct {
	ID              int64
	ClerkUserID     string
	Email           string
	FirstName       *string
	LastName        *string
	Role            *string
	PhoneNumber     *string
	IsActive        *bool
	IsApproved      *bool
	ProfileComplete *bool
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

func (row userRow) toDomain() *users.User {
	return &users.User{
		ID:              row.ID,
		ClerkUserID:     row.ClerkUserID,
		Email:           row.Email,
		FirstName:       row.FirstName,
		LastName:        row.LastName,
		Role:            derefString(row.Role),
		PhoneNumber:     row.PhoneNumber,
		IsActive:        row.IsActive == nil || *row.IsActive,
		IsApproved:      row.IsApproved != nil && *row.IsApproved,
		ProfileComplete: row.ProfileComplete != nil && *row.ProfileComplete,
		CreatedAt:       timeOrZero(row.CreatedAt),
		UpdatedAt:       timeOrZero(row.UpdatedAt),
	}
}

func scanUser(row pgx.Row) (*users.User, error) {
	var r userRow
	if err := row.Scan(
		&r.ID,
		&r.ClerkUserID,
		&r.Email,
		&r.FirstName,
		&r.LastName,
		&r.Role,
		&r.PhoneNumber,
		&r.IsActive,
		&r.IsApproved,
		&r.ProfileComplete,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, err
	}
	return r.toDomain(), nil
}

func nullIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func (r *UserRepository) Create(ctx context.Context, params users.CreateParams) (*users.User, error) {
	row := pick(r.pool, r.tx).QueryRow(ctx, `
INSERT INTO users (clerk_user_id, email, first_name, last_name, role, phone_number,
                   is_active, is_approved, profile_complete)
VALUES ($1, $2, $3, $4, $5, $6, true, $7, false)
RETURNING `+userColumns,
		params.ClerkUserID,
		params.Email,
		nullIfEmpty(params.FirstName),
		nullIfEmpty(params.LastName),
		params.Role,
		nullIfEmpty(params.PhoneNumber),
		params.IsApproved,
	)
	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, users.ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) ExistsByEmailOrClerkID(ctx context.Context, email, clerkUserID string) (bool, error) {
	var exists bool
	err := pick(r.pool, r.tx).QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) OR clerk_user_id = $2)`,
		email, clerkUserID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*users.User, error) {
	user, err := scanUser(pick(r.pool, r.tx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return wrapGet(user, err, "get user")
}

func (r *UserRepository) GetByClerkID(ctx context.Context, clerkUserID string) (*users.User, error) {
	user, err := scanUser(pick(r.pool, r.tx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE clerk_user_id = $1`, clerkUserID))
	return wrapGet(user, err, "get user by clerk id")
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	user, err := scanUser(pick(r.pool, r.tx).QueryRow(ctx, `
SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1) ORDER BY id LIMIT 1`, email))
	return wrapGet(user, err, "get user by email")
}

func wrapGet(user *users.User, err error, op string) (*users.User, error) {
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (r *UserRepository) UpdateName(ctx context.Context, id int64, firstName, lastName *string) (*users.User, error) {
	user, err := scanUser(pick(r.pool, r.tx).QueryRow(ctx, `
UPDATE users
   SET first_name = COALESCE($2, first_name),
       last_name = COALESCE($3, last_name),
       updated_at = NOW()
 WHERE id = $1
RETURNING `+userColumns, id, firstName, lastName))
	return wrapGet(user, err, "update user")
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := pick(r.pool, r.tx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpsertByClerkID(ctx context.Context, params users.CreateParams) (*users.User, error) {
	user, err := scanUser(pick(r.pool, r.tx).QueryRow(ctx, `
INSERT INTO users (clerk_user_id, email, first_name, last_name, role, is_active, is_approved, profile_complete)
VALUES ($1, $2, $3, $4, $5, true, $6, false)
ON CONFLICT (clerk_user_id) DO UPDATE
   SET email = EXCLUDED.email,
       first_name = EXCLUDED.first_name,
       last_name = EXCLUDED.last_name,
       role = EXCLUDED.role,
       updated_at = NOW()
RETURNING `+userColumns,
		params.ClerkUserID,
		params.Email,
		nullIfEmpty(params.FirstName),
		nullIfEmpty(params.LastName),
		params.Role,
		params.IsApproved,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, users.ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) DeleteByClerkID(ctx context.Context, clerkUserID string) error {
	tag, err := pick(r.pool, r.tx).Exec(ctx, `DELETE FROM users WHERE clerk_user_id = $1`, clerkUserID)
	if err != nil {
		return fmt.Errorf("delete user by clerk id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := pick(r.pool, r.tx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) UserIDByAlternateEmail(ctx context.Context, email string) (int64, error) {
	var id int64
	err := pick(r.pool, r.tx).QueryRow(ctx, `
SELECT user_id FROM profiles WHERE LOWER(alternate_email) = LOWER($1) ORDER BY id LIMIT 1`, email).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, users.ErrNotFound
		}
		return 0, fmt.Errorf("lookup alternate email: %w", err)
	}
	return id, nil
}

const profileColumns = `id, user_id, phone, degree, year, skills, about, alternate_email, profile_image_url,
       is_approved, approval_notes, placement_status, created_at, updated_at`

func scanProfile(row pgx.Row) (*users.Profile, error) {
	var (
		p          users.Profile
		id         int64
		isApproved *bool
		createdAt  pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
	)
	if err := row.Scan(
		&id,
		&p.UserID,
		&p.Phone,
		&p.Degree,
		&p.Year,
		&p.Skills,
		&p.About,
		&p.AlternateEmail,
		&p.ProfileImageURL,
		&isApproved,
		&p.ApprovalNotes,
		&p.PlacementStatus,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrProfileNotFound
		}
		return nil, err
	}
	p.ID = &id
	p.IsApproved = isApproved != nil && *isApproved
	p.CreatedAt = timePtr(createdAt)
	p.UpdatedAt = timePtr(updatedAt)
	return &p, nil
}

func (r *UserRepository) GetProfile(ctx context.Context, userID int64) (*users.Profile, error) {
	p, err := scanProfile(pick(r.pool, r.tx).QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, users.ErrProfileNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// UpsertProfile writes the profile and flags the user's profile as complete
// in one transaction.
func (r *UserRepository) UpsertProfile(ctx context.Context, userID int64, input users.ProfileInput) (*users.Profile, error) {
	var profile *users.Profile
	err := r.inTx(ctx, func(q queryer) error {
		p, err := scanProfile(q.QueryRow(ctx, `
INSERT INTO profiles (user_id, phone, degree, year, skills, about, alternate_email, profile_image_url, is_approved)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)
ON CONFLICT (user_id) DO UPDATE
   SET phone = EXCLUDED.phone,
       degree = EXCLUDED.degree,
       year = EXCLUDED.year,
       skills = EXCLUDED.skills,
       about = EXCLUDED.about,
       alternate_email = EXCLUDED.alternate_email,
       profile_image_url = EXCLUDED.profile_image_url,
       updated_at = NOW()
RETURNING `+profileColumns,
			userID,
			input.Phone,
			input.Degree,
			input.Year,
			input.Skills,
			input.About,
			input.AlternateEmail,
			input.ProfileImageURL,
		))
		if err != nil {
			if isForeignKeyViolation(err) {
				return users.ErrNotFound
			}
			return fmt.Errorf("upsert profile: %w", err)
		}
		if _, err := q.Exec(ctx, `UPDATE users SET profile_complete = true, updated_at = NOW() WHERE id = $1`, userID); err != nil {
			return fmt.Errorf("mark profile complete: %w", err)
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *UserRepository) GetTPOProfile(ctx context.Context, userID int64) (*users.TPOProfile, error) {
	var (
		p         users.TPOProfile
		updatedAt pgtype.Timestamptz
	)
	err := pick(r.pool, r.tx).QueryRow(ctx, `
SELECT user_id, alternate_email, phone, updated_at FROM tpo_profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.AlternateEmail, &p.Phone, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrProfileNotFound
		}
		return nil, fmt.Errorf("get tpo profile: %w", err)
	}
	p.UpdatedAt = timePtr(updatedAt)
	return &p, nil
}

func (r *UserRepository) UpsertTPOProfile(ctx context.Context, userID int64, alternateEmail, phone *string) (*users.TPOProfile, error) {
	var (
		p         users.TPOProfile
		updatedAt pgtype.Timestamptz
	)
	err := pick(r.pool, r.tx).QueryRow(ctx, `
INSERT INTO tpo_profiles (user_id, alternate_email, phone, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (user_id) DO UPDATE
   SET alternate_email = EXCLUDED.alternate_email,
       phone = EXCLUDED.phone,
       updated_at = NOW()
RETURNING user_id, alternate_email, phone, updated_at`,
		userID, alternateEmail, phone,
	).Scan(&p.UserID, &p.AlternateEmail, &p.Phone, &updatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("upsert tpo profile: %w", err)
	}
	p.UpdatedAt = timePtr(updatedAt)
	return &p, nil
}

func (r *UserRepository) ListPendingProfiles(ctx context.Context) ([]users.PendingProfile, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, `
SELECT u.id, u.first_name, u.last_name, u.email, p.phone, p.degree, p.year
  FROM users u
  JOIN profiles p ON p.user_id = u.id
 WHERE COALESCE(p.is_approved, false) = false
 ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list pending profiles: %w", err)
	}
	defer rows.Close()

	out := []users.PendingProfile{}
	for rows.Next() {
		var p users.PendingProfile
		if err := rows.Scan(&p.UserID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.Degree, &p.Year); err != nil {
			return nil, fmt.Errorf("scan pending profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending profiles: %w", err)
	}
	return out, nil
}

func scanApproval(row pgx.Row) (*users.ProfileApproval, error) {
	var a users.ProfileApproval
	var approved *bool
	if err := row.Scan(&a.ID, &a.UserID, &approved, &a.Notes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrProfileNotFound
		}
		return nil, err
	}
	a.IsApproved = approved != nil && *approved
	return &a, nil
}

func (r *UserRepository) ApproveProfile(ctx context.Context, userID int64, notes *string) (*users.ProfileApproval, error) {
	a, err := scanApproval(pick(r.pool, r.tx).QueryRow(ctx, `
UPDATE profiles
   SET is_approved = true,
       approval_notes = COALESCE($2, approval_notes),
       updated_at = NOW()
 WHERE user_id = $1
RETURNING id, user_id, is_approved, approval_notes`, userID, notes))
	if err != nil && !errors.Is(err, users.ErrProfileNotFound) {
		return nil, fmt.Errorf("approve profile: %w", err)
	}
	return a, err
}

func (r *UserRepository) RejectProfile(ctx context.Context, userID int64, reason string) (*users.ProfileApproval, error) {
	a, err := scanApproval(pick(r.pool, r.tx).QueryRow(ctx, `
UPDATE profiles
   SET is_approved = false,
       approval_notes = COALESCE($2, approval_notes),
       updated_at = NOW()
 WHERE user_id = $1
RETURNING id, user_id, is_approved, approval_notes`, userID, nullIfEmpty(reason)))
	if err != nil && !errors.Is(err, users.ErrProfileNotFound) {
		return nil, fmt.Errorf("reject profile: %w", err)
	}
	return a, err
}

func (r *UserRepository) ListApprovedStudents(ctx context.Context) ([]users.ApprovedStudent, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, `
SELECT u.id, u.first_name, u.last_name, u.email, p.phone, p.degree, p.year, p.skills,
       COALESCE(p.placement_status, 'Not placed'),
       f.id, f.file_name, f.is_verified
  FROM users u
  JOIN profiles p ON p.user_id = u.id
  LEFT JOIN LATERAL (
        SELECT id, file_name, COALESCE(is_verified, false) AS is_verified
          FROM file_uploads
         WHERE user_id = u.id AND file_type = 'resume'
         ORDER BY uploaded_at DESC, id DESC
         LIMIT 1
       ) f ON true
 WHERE p.is_approved = true
 ORDER BY u.first_name NULLS LAST, u.last_name NULLS LAST, u.id`)
	if err != nil {
		return nil, fmt.Errorf("list approved students: %w", err)
	}
	defer rows.Close()

	out := []users.ApprovedStudent{}
	for rows.Next() {
		var s users.ApprovedStudent
		if err := rows.Scan(
			&s.UserID,
			&s.FirstName,
			&s.LastName,
			&s.Email,
			&s.Phone,
			&s.Degree,
			&s.Year,
			&s.Skills,
			&s.PlacementStatus,
			&s.ResumeID,
			&s.ResumeName,
			&s.ResumeVerified,
		); err != nil {
			return nil, fmt.Errorf("scan approved student: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approved students: %w", err)
	}
	return out, nil
}

func (r *UserRepository) SetPlacementStatus(ctx context.Context, userID int64, status string) (*users.PlacementUpdate, error) {
	var u users.PlacementUpdate
	err := pick(r.pool, r.tx).QueryRow(ctx, `
UPDATE profiles SET placement_status = $2, updated_at = NOW()
 WHERE user_id = $1
RETURNING user_id, placement_status`, userID, status).Scan(&u.UserID, &u.PlacementStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrProfileNotFound
		}
		return nil, fmt.Errorf("set placement status: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) inTx(ctx context.Context, fn func(queryer) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
