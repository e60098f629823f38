// Package dates holds the calendar-date type used for job deadlines and
// event dates, and the lenient parser that accepts what TPO staff type.
package dates

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

const layout = "2006-01-02"

// Date is a calendar day with no time-of-day or zone. The zero value means
// "no date" and marshals to null.
type Date struct {
	t time.Time
}

func New(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime keeps the calendar day of t in its own location.
func FromTime(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return New(t.Year(), t.Month(), t.Day())
}

// Today is the current calendar day in now's location.
func Today(now time.Time) Date {
	return FromTime(now)
}

func (d Date) IsZero() bool { return d.t.IsZero() }

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time { return d.t }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(layout)
}

// Parse accepts ISO dates (with or without a time part) and natural
// language such as "tomorrow", "next friday" or "15 March 2025". Relative
// expressions resolve against now.
func Parse(input string, now time.Time) (Date, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Date{}, fmt.Errorf("empty date")
	}

	if t, err := time.Parse(layout, input); err == nil {
		return FromTime(t), nil
	}
	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return FromTime(t), nil
	}

	parsed, err := dps.Parse(&dps.Configuration{CurrentTime: now}, input)
	if err != nil || parsed.Time.IsZero() {
		return Date{}, fmt.Errorf("unrecognised date %q", input)
	}
	return FromTime(parsed.Time), nil
}

// ParseOptional treats nil or blank input as "no date".
func ParseOptional(input *string, now time.Time) (*Date, error) {
	if input == nil || strings.TrimSpace(*input) == "" {
		return nil, nil
	}
	d, err := Parse(*input, now)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(s, time.Now())
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
