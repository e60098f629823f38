package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepsphere/server/internal/domain/notifications"
)

var _ notifications.Repository = (*NotificationRepository)(nil)

type NotificationRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const notificationColumns = `id, user_id, COALESCE(title, ''), COALESCE(message, ''), notification_type,
       related_id, related_type, is_read, created_at, read_at`

func scanNotification(row pgx.Row) (*notifications.Notification, error) {
	var (
		n         notifications.Notification
		relatedID *int64
		createdAt pgtype.Timestamptz
		readAt    pgtype.Timestamptz
	)
	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Title,
		&n.Message,
		&n.NotificationType,
		&relatedID,
		&n.RelatedType,
		&n.IsRead,
		&createdAt,
		&readAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrNotFound
		}
		return nil, err
	}
	n.RelatedID = relatedID
	n.CreatedAt = timeOrZero(createdAt)
	n.ReadAt = timePtr(readAt)
	return &n, nil
}

func collectNotifications(rows pgx.Rows) ([]notifications.Notification, error) {
	defer rows.Close()
	out := []notifications.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64) ([]notifications.Notification, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, `
SELECT `+notificationColumns+`
  FROM notifications
 WHERE user_id = $1
 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return collectNotifications(rows)
}

// CreateMany inserts one row per recipient in a single statement.
func (r *NotificationRepository) CreateMany(ctx context.Context, userIDs []int64, msg notifications.Message) ([]notifications.Notification, error) {
	if len(userIDs) == 0 {
		return []notifications.Notification{}, nil
	}
	rows, err := pick(r.pool, r.tx).Query(ctx, `
INSERT INTO notifications (user_id, title, message, notification_type, related_id, related_type, is_read)
SELECT uid, $2, $3, $4, $5, $6, false
  FROM unnest($1::int[]) AS uid
RETURNING `+notificationColumns,
		userIDs,
		msg.Title,
		msg.Body,
		msg.Type,
		msg.RelatedID,
		msg.RelatedType,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, notifications.ErrUserNotFound
		}
		return nil, fmt.Errorf("insert notifications: %w", err)
	}
	list, err := collectNotifications(rows)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, notifications.ErrUserNotFound
		}
		return nil, err
	}
	return list, nil
}

func (r *NotificationRepository) UserIDsByRole(ctx context.Context, role string) ([]int64, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, `SELECT id FROM users WHERE LOWER(role) = LOWER($1) ORDER BY id`, role)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect user ids: %w", err)
	}
	return ids, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) (*notifications.Notification, error) {
	n, err := scanNotification(pick(r.pool, r.tx).QueryRow(ctx, `
UPDATE notifications
   SET is_read = true,
       read_at = COALESCE(read_at, NOW())
 WHERE id = $1
RETURNING `+notificationColumns, id))
	if err != nil && !errors.Is(err, notifications.ErrNotFound) {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return n, err
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := pick(r.pool, r.tx).Exec(ctx, `
UPDATE notifications
   SET is_read = true,
       read_at = NOW()
 WHERE user_id = $1 AND is_read = false`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id int64) error {
	tag, err := pick(r.pool, r.tx).Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrNotFound
	}
	return nil
}
