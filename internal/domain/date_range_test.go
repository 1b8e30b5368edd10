package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDayRange(t *testing.T) {
	loc := time.UTC

	r, err := ParseDayRange("", "", loc)
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = ParseDayRange("2026-10-01", "2026-10-07", loc)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, loc), r.Start)

	// End day is inclusive up to its last nanosecond
	assert.Equal(t, time.Date(2026, 10, 8, 0, 0, 0, 0, loc).Add(-time.Nanosecond), r.End)

	for _, bad := range [][2]string{
		{"2026-10-01", ""},
		{"", "2026-10-01"},
		{"10/01/2026", "2026-10-02"},
		{"2026-10-05", "2026-10-01"},
	} {
		_, err := ParseDayRange(bad[0], bad[1], loc)
		assert.Error(t, err, bad)
	}
}

func TestDateRange_String(t *testing.T) {
	var none *DateRange
	assert.Equal(t, "all", none.String())

	r, err := ParseDayRange("2026-10-01", "2026-10-01", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-01T00:00:00Z|2026-10-01T23:59:59.999999999Z", r.String())
}

func TestDayOf(t *testing.T) {
	bangkok, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)

	// 20:00 UTC on the 17th is already the 18th in Bangkok
	ts := time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-10-18", DayOf(ts, bangkok).Format(DayLayout))
	assert.Equal(t, "2026-10-17", DayOf(ts, time.UTC).Format(DayLayout))
}
