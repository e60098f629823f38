package postgres

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/prepsphere/server/internal/domain/dates"
)

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func timeOrZero(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}

func dateFromPG(d pgtype.Date) dates.Date {
	if !d.Valid {
		return dates.Date{}
	}
	return dates.FromTime(d.Time)
}

func datePtrFromPG(d pgtype.Date) *dates.Date {
	if !d.Valid {
		return nil
	}
	v := dates.FromTime(d.Time)
	return &v
}

func dateToPG(d *dates.Date) pgtype.Date {
	if d == nil || d.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Time(), Valid: true}
}

func int8Ptr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
