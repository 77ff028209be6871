// Package period defines the daily and weekly accounting windows shared by
// analytics, limit evaluation and usage reporting.
package period

import (
	"fmt"
	"time"
)

// Range selects an accounting window.
type Range string

const (
	Daily  Range = "daily"
	Weekly Range = "weekly"
	// All is the unbounded window used when no range is requested.
	All Range = ""
)

const (
	// DateLayout is the layout of date buckets.
	DateLayout = "2006-01-02"
)

// ParseRange maps a query value to a Range. Unknown values yield All.
func ParseRange(s string) Range {
	switch Range(s) {
	case Daily:
		return Daily
	case Weekly:
		return Weekly
	default:
		return All
	}
}

// Valid reports whether r names a bounded window.
func (r Range) Valid() bool {
	return r == Daily || r == Weekly
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns local midnight of the Monday on or before t.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Since returns the inclusive lower bound of r at now. The zero time is
// returned for All.
func Since(r Range, now time.Time) time.Time {
	switch r {
	case Daily:
		return StartOfDay(now)
	case Weekly:
		return StartOfWeek(now)
	default:
		return time.Time{}
	}
}

// Contains reports whether ts falls within r as evaluated at now.
func Contains(r Range, now, ts time.Time) bool {
	since := Since(r, now)
	return since.IsZero() || !ts.Before(since)
}

// DateBucket returns the date label of t in t's location.
func DateBucket(t time.Time) string {
	return t.Format(DateLayout)
}

// WeekBucket returns the ISO-8601 week label of t, e.g. "2024-W07".
func WeekBucket(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}
