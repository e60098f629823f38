package dates

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC) // a Monday

func TestParse_ISO(t *testing.T) {
	d, err := Parse("2025-04-01", now)
	require.NoError(t, err)
	require.Equal(t, "2025-04-01", d.String())

	d, err = Parse("2025-04-01T18:00:00+05:30", now)
	require.NoError(t, err)
	require.Equal(t, "2025-04-01", d.String())
}

func TestParse_NaturalLanguage(t *testing.T) {
	d, err := Parse("tomorrow", now)
	require.NoError(t, err)
	require.Equal(t, "2025-03-11", d.String())

	d, err = Parse("15 March 2025", now)
	require.NoError(t, err)
	require.Equal(t, "2025-03-15", d.String())
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse("", now)
	require.Error(t, err)

	_, err = Parse("not a date at all", now)
	require.Error(t, err)
}

func TestParseOptional(t *testing.T) {
	d, err := ParseOptional(nil, now)
	require.NoError(t, err)
	require.Nil(t, d)

	blank := "  "
	d, err = ParseOptional(&blank, now)
	require.NoError(t, err)
	require.Nil(t, d)

	value := "2025-12-31"
	d, err = ParseOptional(&value, now)
	require.NoError(t, err)
	require.Equal(t, "2025-12-31", d.String())
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		Date  Date  `json:"date"`
		Maybe *Date `json:"maybe"`
	}

	out, err := json.Marshal(wrapper{Date: New(2025, time.June, 1)})
	require.NoError(t, err)
	require.JSONEq(t, `{"date":"2025-06-01","maybe":null}`, string(out))

	var zero wrapper
	out, err = json.Marshal(zero)
	require.NoError(t, err)
	require.JSONEq(t, `{"date":null,"maybe":null}`, string(out))

	var in wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2025-07-04","maybe":"2025-01-02"}`), &in))
	require.Equal(t, "2025-07-04", in.Date.String())
	require.Equal(t, "2025-01-02", in.Maybe.String())

	require.Error(t, json.Unmarshal([]byte(`{"date":12}`), &in))
}

func TestToday(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	late := time.Date(2025, time.March, 10, 23, 0, 0, 0, ist)
	require.Equal(t, "2025-03-10", Today(late).String())
}
