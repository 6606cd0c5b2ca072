package leave

import "time"

// =============================================================================
// DATE HELPERS - all comparisons happen at day granularity in UTC
// =============================================================================

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// InclusiveDays counts calendar days from start to end, both included.
// The result is < 1 when end is before start. It counts on Unix seconds
// because time.Duration overflows past roughly 292 years.
func InclusiveDays(start, end time.Time) int {
	return int((DateOnly(end).Unix()-DateOnly(start).Unix())/secondsPerDay) + 1
}

const secondsPerDay = 24 * 60 * 60

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

const DateLayout = "2006-01-02"
