package tracking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the calendar-date encoding used throughout the ledger.
// Dates carry no timezone and compare correctly as strings.
const DateFormat = "2006-01-02"

var clockPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// ValidClock reports whether value is a 24-hour HH:mm time of day.
func ValidClock(value string) bool {
	return clockPattern.MatchString(value)
}

// ClockToMinutes converts an HH:mm time of day to minutes since midnight.
func ClockToMinutes(value string) (int, error) {
	if !ValidClock(value) {
		return 0, fmt.Errorf("invalid time of day: %q (must be HH:mm)", value)
	}

	parts := strings.SplitN(value, ":", 2)
	hours, _ := strconv.Atoi(parts[0])
	minutes, _ := strconv.Atoi(parts[1])
	return hours*60 + minutes, nil
}

// MinutesToClock converts minutes since midnight to an HH:mm string.
func MinutesToClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ValidDate reports whether value parses as a YYYY-MM-DD calendar date.
func ValidDate(value string) bool {
	_, err := time.Parse(DateFormat, value)
	return err == nil
}

// monthRange returns the first and last calendar date of a month. The
// last day comes from the calendar, so February and 30-day months get
// their real end instead of a blanket "-31" bound.
func monthRange(year int, month time.Month) (from, to string) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format(DateFormat), last.Format(DateFormat)
}

// periodRange returns the date range covered by a stats period, ending
// at now: the trailing 7 days for "week", the current month so far for
// "month", and the current year so far for "year". Unknown periods
// fall back to "week", matching the query parameter default.
func periodRange(period string, now time.Time) (from, to string) {
	var start time.Time
	switch period {
	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case "year":
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default: // week
		start = now.AddDate(0, 0, -7)
	}
	return start.Format(DateFormat), now.Format(DateFormat)
}
