package util

import (
	"strconv"
	"time"
)

// DateLayout is the on-disk and query format for daily observations.
const DateLayout = "2006-01-02"

// ParseDate parses YYYY-MM-DD, falling back to RFC3339 and unix seconds.
// The result is truncated to midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return TruncateDay(t), true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return TruncateDay(time.Unix(ts, 0)), true
	}
	return time.Time{}, false
}

// ParseDateDefault parses a date or returns def if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, ok := ParseDate(s); ok {
		return t
	}
	return def
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// TruncateDay drops the clock part, in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BusinessDays lists Monday..Friday dates in [start, end].
func BusinessDays(start, end time.Time) []time.Time {
	start, end = TruncateDay(start), TruncateDay(end)
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}
		out = append(out, d)
	}
	return out
}

// NextBusinessDays returns n consecutive business days starting at start.
func NextBusinessDays(start time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for d := TruncateDay(start); len(out) < n; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}
