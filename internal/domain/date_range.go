package domain

import (
	"fmt"
	"time"

	"vdl-backend/pkg/errors"
)

// DayLayout is the format of bucket dates and date query parameters
const DayLayout = "2006-01-02"

// DateRange is an inclusive created_at window
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// String is a stable form used for cache keys
func (r *DateRange) String() string {
	if r == nil {
		return "all"
	}
	return fmt.Sprintf("%s|%s", r.Start.UTC().Format(time.RFC3339Nano), r.End.UTC().Format(time.RFC3339Nano))
}

// ParseDayRange builds a range from YYYY-MM-DD bounds in loc. The end day is
// included up to its last nanosecond. Both empty means no range.
func ParseDayRange(start, end string, loc *time.Location) (*DateRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, errors.NewValidationError("start and end must be given together", nil)
	}

	s, err := time.ParseInLocation(DayLayout, start, loc)
	if err != nil {
		return nil, errors.NewValidationError("invalid start date", map[string]interface{}{"start": start})
	}
	e, err := time.ParseInLocation(DayLayout, end, loc)
	if err != nil {
		return nil, errors.NewValidationError("invalid end date", map[string]interface{}{"end": end})
	}
	if e.Before(s) {
		return nil, errors.NewValidationError("end date is before start date", nil)
	}

	return &DateRange{Start: s, End: e.AddDate(0, 0, 1).Add(-time.Nanosecond)}, nil
}

// DayOf truncates t to its calendar day in loc
func DayOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
