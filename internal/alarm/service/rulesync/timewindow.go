package rulesync

import (
	"fmt"
)

// Default full-day window used when an hour range is malformed. Rule
// creation must never fail on a bad window, so validation fails closed.
const (
	defaultWindowStart = "00:00"
	defaultWindowEnd   = "23:59"
)

// validHourRange reports whether [start, end) is a usable hour-of-day
// window. end == 24 means end of day.
func validHourRange(start, end int) bool {
	if start < 0 || start > 24 || end < 0 || end > 24 {
		return false
	}
	if start >= end && end != 24 {
		return false
	}
	return true
}

// formatVolcWindow renders an hour range as the Volcengine effective-time
// pair. Volcengine uses inclusive end times, so the end hour is pulled back
// one hour and rendered as ":59". Malformed ranges fall back to the full
// day.
func formatVolcWindow(start, end int) (string, string) {
	if !validHourRange(start, end) {
		return defaultWindowStart, defaultWindowEnd
	}
	from := fmt.Sprintf("%02d:00", start)
	var to string
	switch end {
	case 0:
		to = "00:59"
	case 24:
		to = "23:59"
	default:
		to = fmt.Sprintf("%02d:59", end-1)
	}
	return from, to
}

// parseVolcWindowStart recovers the start hour from an effective-time string
// like "09:00". Used when rebuilding segment identity from existing rules.
func parseVolcWindowStart(s string) (int, bool) {
	var h, m int
	if n, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || n != 2 {
		return 0, false
	}
	if h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}
