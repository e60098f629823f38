package postgres

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/prepsphere/server/internal/domain/events"
	"github.com/stretchr/testify/require"
)

// legacySchema is the layout the old startup bootstrap created, trimmed to
// the columns the repair migration touches.
var legacySchema = []string{
	`CREATE TABLE users (
  id SERIAL PRIMARY KEY,
  clerk_user_id VARCHAR(255) UNIQUE NOT NULL,
  email VARCHAR(255) UNIQUE NOT NULL,
  first_name VARCHAR(255) NOT NULL,
  last_name VARCHAR(255) NOT NULL,
  phone_number VARCHAR(20),
  role VARCHAR(50) DEFAULT 'student',
  is_active BOOLEAN DEFAULT true,
  is_approved BOOLEAN DEFAULT false,
  profile_complete BOOLEAN DEFAULT false,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE profiles (
  id SERIAL PRIMARY KEY,
  user_id INTEGER UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  phone VARCHAR(20),
  degree VARCHAR(255),
  year VARCHAR(50),
  skills TEXT,
  about TEXT,
  profile_image_url VARCHAR(255),
  is_approved BOOLEAN DEFAULT false,
  approval_notes TEXT,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE jobs (
  id SERIAL PRIMARY KEY,
  title VARCHAR(255) NOT NULL,
  company VARCHAR(255) NOT NULL,
  location VARCHAR(255) NOT NULL,
  description TEXT NOT NULL,
  requirements TEXT NOT NULL,
  created_by INTEGER NOT NULL REFERENCES users(id),
  created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE job_applications (
  id SERIAL PRIMARY KEY,
  job_id INTEGER NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  cover_letter TEXT,
  status VARCHAR(50) DEFAULT 'pending',
  applied_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE events (
  id SERIAL PRIMARY KEY,
  title VARCHAR(255) NOT NULL,
  description TEXT NOT NULL,
  location VARCHAR(255) NOT NULL,
  event_date TIMESTAMP WITH TIME ZONE NOT NULL,
  event_time VARCHAR(50) NOT NULL,
  created_by INTEGER NOT NULL REFERENCES users(id),
  created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE event_registrations (
  id SERIAL PRIMARY KEY,
  event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  registered_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE file_uploads (
  id SERIAL PRIMARY KEY,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  file_name VARCHAR(255) NOT NULL,
  file_path VARCHAR(255) NOT NULL,
  file_size BIGINT NOT NULL,
  mime_type VARCHAR(100) NOT NULL,
  file_type VARCHAR(50) NOT NULL,
  uploaded_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE notifications (
  id SERIAL PRIMARY KEY,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  title VARCHAR(255) NOT NULL,
  message TEXT NOT NULL,
  notification_type VARCHAR(100) DEFAULT 'system',
  is_read BOOLEAN DEFAULT false,
  related_id INTEGER,
  related_type VARCHAR(50),
  created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
  read_at TIMESTAMP WITH TIME ZONE
)`,
	`INSERT INTO users (clerk_user_id, email, first_name, last_name, role, is_approved)
VALUES ('user_student', 'asha@college.edu', 'Asha', 'Rao', 'student', true),
       ('user_tpo', 'tpo@college.edu', 'Placement', 'Office', 'tpo', false)`,
	`INSERT INTO profiles (user_id, degree, is_approved) VALUES (1, 'B.Tech', true)`,
	`INSERT INTO events (title, description, location, event_date, event_time, created_by)
VALUES ('Mock Interviews', 'Panel rounds', 'Hall A', '2025-03-20 10:00:00+00', '10:00 AM', 2)`,
	`INSERT INTO event_registrations (event_id, user_id) VALUES (1, 1), (1, 1)`,
	`INSERT INTO jobs (title, company, location, description, requirements, created_by)
VALUES ('Backend Intern', 'Acme', 'Pune', 'APIs', 'Go', 2)`,
	`INSERT INTO job_applications (job_id, user_id) VALUES (1, 1), (1, 1)`,
	`INSERT INTO file_uploads (user_id, file_name, file_path, file_size, mime_type, file_type)
VALUES (1, 'resume.pdf', 'uploads/resume.pdf', 2048, 'application/pdf', 'resume')`,
	`INSERT INTO notifications (user_id, title, message) VALUES (1, 'Welcome', 'Profile pending review')`,
}

// newScratchDatabase creates an empty database next to the shared one and
// drops it when the test ends.
func newScratchDatabase(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	initShared(t)

	ctx := context.Background()
	name := "legacy_" + strings.ToLower(ulid.Make().String())
	_, err := sharedPool.Exec(ctx, "CREATE DATABASE "+name)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = sharedPool.Exec(context.Background(), "DROP DATABASE IF EXISTS "+name+" WITH (FORCE)")
	})

	u, err := url.Parse(sharedDBURL)
	require.NoError(t, err)
	u.Path = "/" + name
	dbURL := u.String()

	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool, dbURL
}

func TestMigrateUp_AdoptsLegacySchema(t *testing.T) {
	pool, dbURL := newScratchDatabase(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, stmt := range legacySchema {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	require.NoError(t, MigrateForce(dbURL, 1))
	require.NoError(t, MigrateUp(dbURL))

	version, dirty, err := MigrationVersion(dbURL)
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(2), version)

	// event_date folded into date; the row reads through the repository.
	repo := (&Repository{pool: pool}).Events()
	list, err := repo.List(ctx, events.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "2025-03-20", list[0].Date.String())
	require.Equal(t, events.StatusUpcoming, list[0].Status)
	require.Equal(t, "Hall A", list[0].Location)

	// Duplicates collapsed and the unique keys are in place.
	var regs, apps int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM event_registrations`).Scan(&regs))
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM job_applications`).Scan(&apps))
	require.Equal(t, 1, regs)
	require.Equal(t, 1, apps)

	_, err = pool.Exec(ctx, `INSERT INTO event_registrations (event_id, user_id) VALUES (1, 1)`)
	requireUniqueViolation(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO job_applications (job_id, user_id) VALUES (1, 1)`)
	requireUniqueViolation(t, err)

	// Existing data survives with the new defaults filled in.
	var (
		jobStatus  string
		fileName   string
		isVerified bool
		notifTitle string
	)
	require.NoError(t, pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = 1`).Scan(&jobStatus))
	require.NoError(t, pool.QueryRow(ctx, `SELECT file_name, is_verified FROM file_uploads WHERE id = 1`).Scan(&fileName, &isVerified))
	require.NoError(t, pool.QueryRow(ctx, `SELECT title FROM notifications WHERE id = 1`).Scan(&notifTitle))
	require.Equal(t, "Active", jobStatus)
	require.Equal(t, "resume.pdf", fileName)
	require.False(t, isVerified)
	require.Equal(t, "Welcome", notifTitle)

	// NOT NULL constraints the service no longer honours are gone.
	_, err = pool.Exec(ctx, `INSERT INTO users (clerk_user_id, email) VALUES ('user_bare', 'bare@college.edu')`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO events (title, date) VALUES ('Walk-in', '2025-04-01')`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO file_uploads (user_id, file_name, file_path) VALUES (1, 'c.pdf', 'uploads/c.pdf')`)
	require.NoError(t, err)

	// Tables the bootstrap never had now exist.
	for _, table := range []string{"tpo_profiles", "tpo_reports"} {
		var exists bool
		require.NoError(t, pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists))
		require.True(t, exists, table)
	}

	// Postings outlive the staff account that created them.
	_, err = pool.Exec(ctx, `DELETE FROM users WHERE clerk_user_id = 'user_tpo'`)
	require.NoError(t, err)
	var createdBy *int64
	require.NoError(t, pool.QueryRow(ctx, `SELECT created_by FROM events WHERE id = 1`).Scan(&createdBy))
	require.Nil(t, createdBy)
	require.NoError(t, pool.QueryRow(ctx, `SELECT created_by FROM jobs WHERE id = 1`).Scan(&createdBy))
	require.Nil(t, createdBy)

	// Legacy uploads may carry a NULL verification flag; it reads as false.
	_, err = pool.Exec(ctx, `
INSERT INTO file_uploads (user_id, file_name, file_path, file_type, is_verified, uploaded_at)
VALUES (1, 'legacy.pdf', 'uploads/legacy.pdf', 'resume', NULL, NOW() + INTERVAL '1 minute')`)
	require.NoError(t, err)
	approved, err := (&Repository{pool: pool}).Users().ListApprovedStudents(ctx)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	require.Equal(t, "legacy.pdf", *approved[0].ResumeName)
	require.NotNil(t, approved[0].ResumeVerified)
	require.False(t, *approved[0].ResumeVerified)

	// Re-running is a no-op.
	require.NoError(t, MigrateUp(dbURL))
}

func TestMigrateForce_RejectsZero(t *testing.T) {
	require.Error(t, MigrateForce("postgres://unused", 0))
}

func requireUniqueViolation(t *testing.T, err error) {
	t.Helper()
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr), "expected a postgres error, got %v", err)
	require.Equal(t, "23505", pgErr.Code)
}
