package postgres

import (
	"context"
	"testing"

	"github.com/prepsphere/server/internal/domain/users"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndLookup(t *testing.T) {
	pool, _ := setupPostgres(t)
	ctx := context.Background()
	repo := (&Repository{pool: pool}).Users()

	created, err := repo.Create(ctx, users.CreateParams{
		ClerkUserID: "user_abc",
		Email:       "Asha@College.edu",
		FirstName:   "Asha",
		Role:        "student",
		IsApproved:  true,
	})
	require.NoError(t, err)
	require.True(t, created.IsActive)
	require.True(t, created.IsApproved)
	require.False(t, created.ProfileComplete)
	require.Nil(t, created.LastName)

	byEmail, err := repo.GetByEmail(ctx, "asha@college.edu")
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)

	byClerk, err := repo.GetByClerkID(ctx, "user_abc")
	require.NoError(t, err)
	require.Equal(t, created.ID, byClerk.ID)

	exists, err := repo.ExistsByEmailOrClerkID(ctx, "other@college.edu", "user_abc")
	require.NoError(t, err)
	require.True(t, exists)

	_, err = repo.Create(ctx, users.CreateParams{ClerkUserID: "user_abc", Email: "x@college.edu", Role: "student"})
	require.ErrorIs(t, err, users.ErrAlreadyRegistered)

	_, err = repo.GetByID(ctx, created.ID+100)
	require.ErrorIs(t, err, users.ErrNotFound)
}

func TestUserRepository_UpdateNameKeepsMissingFields(t *testing.T) {
	pool, _ := setupPostgres(t)
	ctx := context.Background()
	repo := (&Repository{pool: pool}).Users()
	id := insertUser(t, ctx, pool, "name@college.edu", "student")

	updated, err := repo.UpdateName(ctx, id, ptr("Ravi"), nil)
	require.NoError(t, err)
	require.Equal(t, "Ravi", *updated.FirstName)
	require.Equal(t, "User", *updated.LastName)

	require.NoError(t, repo.Delete(ctx, id))
	require.ErrorIs(t, repo.Delete(ctx, id), users.ErrNotFound)
}

func TestUserRepository_UpsertByClerkID(t *testing.T) {
	pool, _ := setupPostgres(t)
	ctx := context.Background()
	repo := (&Repository{pool: pool}).Users()

	first, err := repo.UpsertByClerkID(ctx, users.CreateParams{ClerkUserID: "user_w", Email: "w@college.edu", Role: "student"})
	require.NoError(t, err)

	second, err := repo.UpsertByClerkID(ctx, users.CreateParams{ClerkUserID: "user_w", Email: "w2@college.edu", Role: "tpo"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "w2@college.edu", second.Email)
	require.Equal(t, "tpo", second.Role)

	// A later sync keeps the approval granted in the portal.
	_, err = pool.Exec(ctx, `UPDATE users SET is_approved = true WHERE id = $1`, first.ID)
	require.NoError(t, err)
	third, err := repo.UpsertByClerkID(ctx, users.CreateParams{ClerkUserID: "user_w", Email: "w2@college.edu", Role: "student", IsApproved: false})
	require.NoError(t, err)
	require.True(t, third.IsApproved)

	require.NoError(t, repo.DeleteByClerkID(ctx, "user_w"))
	require.ErrorIs(t, repo.DeleteByClerkID(ctx, "user_w"), users.ErrNotFound)
}

func TestUserRepository_ProfileLifecycle(t *testing.T) {
	pool, _ := setupPostgres(t)
	ctx := context.Background()
	repo := (&Repository{pool: pool}).Users()
	id := insertUser(t, ctx, pool, "p@college.edu", "student")

	_, err := repo.GetProfile(ctx, id)
	require.ErrorIs(t, err, users.ErrProfileNotFound)

	profile, err := repo.UpsertProfile(ctx, id, users.ProfileInput{
		Degree:         ptr("B.Tech"),
		Year:           ptr("2026"),
		AlternateEmail: ptr("Personal@Mail.com"),
	})
	require.NoError(t, err)
	require.NotNil(t, profile.ID)
	require.False(t, profile.IsApproved)

	user, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.True(t, user.ProfileComplete)

	altID, err := repo.UserIDByAlternateEmail(ctx, "personal@mail.com")
	require.NoError(t, err)
	require.Equal(t, id, altID)

	pending, err := repo.ListPendingProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, id, pending[0].UserID)

	approval, err := repo.ApproveProfile(ctx, id, ptr("looks good"))
	require.NoError(t, err)
	require.True(t, approval.IsApproved)

	approval, err = repo.ApproveProfile(ctx, id, nil)
	require.NoError(t, err)
	require.Equal(t, "looks good", *approval.Notes)

	approved, err := repo.ListApprovedStudents(ctx)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	require.Equal(t, "Not placed", approved[0].PlacementStatus)
	require.Nil(t, approved[0].ResumeID)

	update, err := repo.SetPlacementStatus(ctx, id, "Placed")
	require.NoError(t, err)
	require.Equal(t, "Placed", update.PlacementStatus)

	rejected, err := repo.RejectProfile(ctx, id, "")
	require.NoError(t, err)
	require.False(t, rejected.IsApproved)
	require.Equal(t, "looks good", *rejected.Notes)

	_, err = repo.ApproveProfile(ctx, id+100, nil)
	require.ErrorIs(t, err, users.ErrProfileNotFound)
}

func TestUserRepository_ApprovedStudentsCarryLatestResume(t *testing.T) {
	pool, _ := setupPostgres(t)
	ctx := context.Background()
	repo := (&Repository{pool: pool}).Users()
	id := insertUser(t, ctx, pool, "r@college.edu", "student")

	_, err := repo.UpsertProfile(ctx, id, users.ProfileInput{})
	require.NoError(t, err)
	_, err = repo.ApproveProfile(ctx, id, nil)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
INSERT INTO file_uploads (user_id, file_name, file_path, file_type, uploaded_at)
VALUES ($1, 'old.pdf', '/tmp/old.pdf', 'resume', NOW() - INTERVAL '1 day'),
       ($1, 'new.pdf', '/tmp/new.pdf', 'resume', NOW())`, id)
	require.NoError(t, err)

	approved, err := repo.ListApprovedStudents(ctx)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	require.Equal(t, "new.pdf", *approved[0].ResumeName)
	require.False(t, *approved[0].ResumeVerified)
}

func TestUserRepository_TPOProfile(t *testing.T) {
	pool, _ := setupPostgres(t)
	ctx := context.Background()
	repo := (&Repository{pool: pool}).Users()
	id := insertUser(t, ctx, pool, "tpo@college.edu", "tpo")

	_, err := repo.GetTPOProfile(ctx, id)
	require.ErrorIs(t, err, users.ErrProfileNotFound)

	saved, err := repo.UpsertTPOProfile(ctx, id, ptr("office@college.edu"), ptr("555"))
	require.NoError(t, err)
	require.Equal(t, "555", *saved.Phone)

	_, err = repo.UpsertTPOProfile(ctx, id+100, nil, nil)
	require.ErrorIs(t, err, users.ErrNotFound)
}
