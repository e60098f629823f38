package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepsphere/server/internal/domain/files"
)

var _ files.Repository = (*FileRepository)(nil)

type FileRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const fileColumns = `f.id, f.user_id, f.file_name, f.file_path, f.file_size, f.mime_type, f.file_type,
       f.file_url, f.is_verified, f.verified_by, f.verification_notes, f.uploaded_at`

type fileRow struct {
	ID                int64
	UserID            int64
	FileName          string
	FilePath          string
	FileSize          *int64
	MimeType          *string
	FileType          *string
	FileURL           *string
	IsVerified        *bool
	VerifiedBy        *int64
	VerificationNotes *string
	UploadedAt        pgtype.Timestamptz
}

func (row *fileRow) targets() []any {
	return []any{
		&row.ID,
		&row.UserID,
		&row.FileName,
		&row.FilePath,
		&row.FileSize,
		&row.MimeType,
		&row.FileType,
		&row.FileURL,
		&row.IsVerified,
		&row.VerifiedBy,
		&row.VerificationNotes,
		&row.UploadedAt,
	}
}

func (row fileRow) toDomain() files.File {
	f := files.File{
		ID:                row.ID,
		UserID:            row.UserID,
		FileName:          row.FileName,
		FilePath:          row.FilePath,
		MimeType:          derefString(row.MimeType),
		FileType:          derefString(row.FileType),
		FileURL:           row.FileURL,
		IsVerified:        row.IsVerified != nil && *row.IsVerified,
		VerifiedBy:        row.VerifiedBy,
		VerificationNotes: row.VerificationNotes,
		UploadedAt:        timeOrZero(row.UploadedAt),
	}
	if row.FileSize != nil {
		f.FileSize = *row.FileSize
	}
	return f
}

func scanFile(row pgx.Row) (*files.File, error) {
	var r fileRow
	if err := row.Scan(r.targets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, files.ErrNotFound
		}
		return nil, err
	}
	f := r.toDomain()
	return &f, nil
}

func collectFiles(rows pgx.Rows) ([]files.File, error) {
	defer rows.Close()
	out := []files.File{}
	for rows.Next() {
		var r fileRow
		if err := rows.Scan(r.targets()...); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, r.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return out, nil
}

func (r *FileRepository) Create(ctx context.Context, params files.CreateParams) (*files.File, error) {
	f, err := scanFile(pick(r.pool, r.tx).QueryRow(ctx, `
WITH f AS (
  INSERT INTO file_uploads (user_id, file_name, file_path, file_size, mime_type, file_type, file_url, is_verified)
  VALUES ($1, $2, $3, $4, $5, $6, $7, false)
  RETURNING *
)
SELECT `+fileColumns+` FROM f`,
		params.UserID,
		params.FileName,
		params.FilePath,
		params.FileSize,
		params.MimeType,
		params.FileType,
		params.FileURL,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, files.ErrUserNotFound
		}
		return nil, fmt.Errorf("insert file: %w", err)
	}
	return f, nil
}

func (r *FileRepository) Get(ctx context.Context, id int64) (*files.File, error) {
	f, err := scanFile(pick(r.pool, r.tx).QueryRow(ctx, `SELECT `+fileColumns+` FROM file_uploads f WHERE f.id = $1`, id))
	if err != nil && !errors.Is(err, files.ErrNotFound) {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, err
}

func (r *FileRepository) ListByUser(ctx context.Context, userID int64) ([]files.File, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, `
SELECT `+fileColumns+`
  FROM file_uploads f
 WHERE f.user_id = $1
 ORDER BY f.uploaded_at DESC, f.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return collectFiles(rows)
}

func (r *FileRepository) ListAll(ctx context.Context) ([]files.File, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, `SELECT `+fileColumns+` FROM file_uploads f ORDER BY f.id`)
	if err != nil {
		return nil, fmt.Errorf("list all files: %w", err)
	}
	return collectFiles(rows)
}

func (r *FileRepository) ListForReview(ctx context.Context, filter files.ReviewFilter) ([]files.ReviewItem, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, `
SELECT `+fileColumns+`, u.first_name, u.last_name, u.email
  FROM file_uploads f
  JOIN users u ON u.id = f.user_id
 WHERE f.file_type = $1
   AND COALESCE(f.is_verified, false) = $2
 ORDER BY f.uploaded_at DESC, f.id DESC`, filter.FileType, filter.Verified)
	if err != nil {
		return nil, fmt.Errorf("list review queue: %w", err)
	}
	defer rows.Close()

	out := []files.ReviewItem{}
	for rows.Next() {
		var (
			row  fileRow
			item files.ReviewItem
		)
		targets := append(row.targets(), &item.FirstName, &item.LastName, &item.Email)
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		item.File = row.toDomain()
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review queue: %w", err)
	}
	return out, nil
}

// Verify updates only the fields that were supplied.
func (r *FileRepository) Verify(ctx context.Context, id int64, params files.VerifyParams) (*files.File, error) {
	f, err := scanFile(pick(r.pool, r.tx).QueryRow(ctx, `
WITH f AS (
  UPDATE file_uploads
     SET is_verified = COALESCE($2, is_verified),
         verified_by = COALESCE($3, verified_by),
         verification_notes = COALESCE($4, verification_notes)
   WHERE id = $1
  RETURNING *
)
SELECT `+fileColumns+` FROM f`, id, params.IsVerified, params.VerifiedBy, params.Notes))
	if err != nil && !errors.Is(err, files.ErrNotFound) {
		return nil, fmt.Errorf("verify file: %w", err)
	}
	return f, err
}

func (r *FileRepository) Reject(ctx context.Context, id int64, reason *string) (*files.File, error) {
	f, err := scanFile(pick(r.pool, r.tx).QueryRow(ctx, `
WITH f AS (
  UPDATE file_uploads
     SET is_verified = false,
         verification_notes = $2
   WHERE id = $1
  RETURNING *
)
SELECT `+fileColumns+` FROM f`, id, reason))
	if err != nil && !errors.Is(err, files.ErrNotFound) {
		return nil, fmt.Errorf("reject file: %w", err)
	}
	return f, err
}

func (r *FileRepository) Delete(ctx context.Context, id int64) (*files.File, error) {
	f, err := scanFile(pick(r.pool, r.tx).QueryRow(ctx, `
WITH f AS (
  DELETE FROM file_uploads WHERE id = $1 RETURNING *
)
SELECT `+fileColumns+` FROM f`, id))
	if err != nil && !errors.Is(err, files.ErrNotFound) {
		return nil, fmt.Errorf("delete file: %w", err)
	}
	return f, err
}
