package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepsphere/server/internal/domain/events"
)

var _ events.Repository = (*EventRepository)(nil)

type EventRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const eventColumns = `id, title, COALESCE(description, ''), COALESCE(location, ''), date,
       COALESCE(event_time, ''), COALESCE(status, 'Upcoming'), COALESCE(form_url, ''),
       COALESCE(category, ''), created_by`

func scanEvent(row pgx.Row) (*events.Event, error) {
	var (
		e    events.Event
		date pgtype.Date
	)
	if err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.Location,
		&date,
		&e.Time,
		&e.Status,
		&e.FormURL,
		&e.Category,
		&e.CreatedBy,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, err
	}
	e.Date = dateFromPG(date)
	return &e, nil
}

// List applies the optional status and creator-role filters. Without a
// status filter cancelled events are hidden.
func (r *EventRepository) List(ctx context.Context, filter events.Filter) ([]events.Event, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("LOWER(COALESCE(status, 'Upcoming')) = LOWER($%d)", len(args)))
	} else {
		conds = append(conds, "LOWER(COALESCE(status, 'Upcoming')) <> 'cancelled'")
	}
	if filter.PostedBy != "" {
		args = append(args, filter.PostedBy)
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM users u WHERE u.id = events.created_by AND LOWER(u.role) = LOWER($%d))", len(args)))
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY COALESCE(date, CURRENT_DATE) ASC, id ASC`
	rows, err := pick(r.pool, r.tx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := []events.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (r *EventRepository) Get(ctx context.Context, id int64) (*events.Event, error) {
	e, err := scanEvent(pick(r.pool, r.tx).QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil && !errors.Is(err, events.ErrNotFound) {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, err
}

func (r *EventRepository) CountRegistrations(ctx context.Context, eventID int64) (int, error) {
	var n int
	if err := pick(r.pool, r.tx).QueryRow(ctx, `SELECT COUNT(*)::int FROM event_registrations WHERE event_id = $1`, eventID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

func (r *EventRepository) Create(ctx context.Context, params events.CreateParams) (*events.Event, error) {
	date := params.Date
	e, err := scanEvent(pick(r.pool, r.tx).QueryRow(ctx, `
INSERT INTO events (title, description, location, date, event_time, status, form_url, category, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+eventColumns,
		params.Title,
		params.Description,
		nullIfEmpty(params.Location),
		dateToPG(&date),
		nullIfEmpty(params.Time),
		params.Status,
		nullIfEmpty(params.FormURL),
		nullIfEmpty(params.Category),
		params.CreatedBy,
	))
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

func (r *EventRepository) Update(ctx context.Context, id int64, params events.UpdateParams) (*events.Event, error) {
	e, err := scanEvent(pick(r.pool, r.tx).QueryRow(ctx, `
UPDATE events
   SET title = COALESCE($2, title),
       description = COALESCE($3, description),
       location = COALESCE($4, location),
       date = COALESCE($5, date),
       event_time = COALESCE($6, event_time),
       status = COALESCE($7, status),
       form_url = COALESCE($8, form_url),
       category = COALESCE($9, category),
       updated_at = NOW()
 WHERE id = $1
RETURNING `+eventColumns,
		id,
		params.Title,
		params.Description,
		params.Location,
		dateToPG(params.Date),
		params.Time,
		params.Status,
		params.FormURL,
		params.Category,
	))
	if err != nil && !errors.Is(err, events.ErrNotFound) {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return e, err
}

// Register upserts the registration; registering again refreshes
// registered_at.
func (r *EventRepository) Register(ctx context.Context, eventID, userID int64) (*events.Registration, error) {
	var (
		reg          events.Registration
		registeredAt pgtype.Timestamptz
	)
	err := pick(r.pool, r.tx).QueryRow(ctx, `
INSERT INTO event_registrations (event_id, user_id, registered_at)
VALUES ($1, $2, NOW())
ON CONFLICT (event_id, user_id) DO UPDATE SET registered_at = NOW()
RETURNING event_id, user_id, registered_at`, eventID, userID,
	).Scan(&reg.EventID, &reg.UserID, &registeredAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, events.ErrUserNotFound
		}
		return nil, fmt.Errorf("register for event: %w", err)
	}
	reg.RegisteredAt = timeOrZero(registeredAt)
	return &reg, nil
}

func (r *EventRepository) ListRegistrants(ctx context.Context, eventID int64) ([]events.Registrant, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, `
SELECT er.id, er.user_id, er.registered_at, u.first_name, u.last_name, u.email
  FROM event_registrations er
  JOIN users u ON u.id = er.user_id
 WHERE er.event_id = $1
 ORDER BY er.registered_at DESC, er.id DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrants: %w", err)
	}
	defer rows.Close()

	out := []events.Registrant{}
	for rows.Next() {
		var (
			reg          events.Registrant
			registeredAt pgtype.Timestamptz
		)
		if err := rows.Scan(&reg.ID, &reg.UserID, &registeredAt, &reg.FirstName, &reg.LastName, &reg.Email); err != nil {
			return nil, fmt.Errorf("scan registrant: %w", err)
		}
		reg.RegisteredAt = timeOrZero(registeredAt)
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrants: %w", err)
	}
	return out, nil
}

func (r *EventRepository) RegistrantIDs(ctx context.Context, eventID int64) ([]int64, error) {
	rows, err := pick(r.pool, r.tx).Query(ctx, `SELECT user_id FROM event_registrations WHERE event_id = $1 ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrant ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect registrant ids: %w", err)
	}
	return ids, nil
}
