package period

import (
	"testing"
	"time"
)

func TestStartOfWeek(t *testing.T) {
	loc := time.FixedZone("test", 10*60*60)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "monday morning",
			now:  time.Date(2024, 3, 11, 9, 30, 0, 0, loc),
			want: time.Date(2024, 3, 11, 0, 0, 0, 0, loc),
		},
		{
			name: "sunday night",
			now:  time.Date(2024, 3, 17, 23, 59, 59, 0, loc),
			want: time.Date(2024, 3, 11, 0, 0, 0, 0, loc),
		},
		{
			name: "wednesday",
			now:  time.Date(2024, 3, 13, 12, 0, 0, 0, loc),
			want: time.Date(2024, 3, 11, 0, 0, 0, 0, loc),
		},
		{
			name: "across month boundary",
			now:  time.Date(2024, 5, 1, 8, 0, 0, 0, loc),
			want: time.Date(2024, 4, 29, 0, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StartOfWeek(tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestWeeklyBoundary(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 3, 13, 12, 0, 0, 0, loc) // Wednesday

	lastSunday := time.Date(2024, 3, 10, 23, 59, 59, 0, loc)
	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, loc)

	if Contains(Weekly, now, lastSunday) {
		t.Error("Expected Sunday 23:59:59 to be excluded from the weekly window")
	}
	if !Contains(Weekly, now, monday) {
		t.Error("Expected Monday 00:00:00 to be included in the weekly window")
	}
	if !Contains(All, now, lastSunday) {
		t.Error("Expected unbounded range to include everything")
	}
}

func TestDailyBoundary(t *testing.T) {
	now := time.Date(2024, 3, 13, 0, 0, 5, 0, time.UTC)

	if Contains(Daily, now, now.Add(-6*time.Second)) {
		t.Error("Expected yesterday to be excluded from the daily window")
	}
	if !Contains(Daily, now, StartOfDay(now)) {
		t.Error("Expected midnight to be included in the daily window")
	}
}

func TestParseRange(t *testing.T) {
	tests := map[string]Range{
		"daily":   Daily,
		"weekly":  Weekly,
		"":        All,
		"monthly": All,
		"DAILY":   All,
	}
	for in, want := range tests {
		if got := ParseRange(in); got != want {
			t.Errorf("ParseRange(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestBuckets(t *testing.T) {
	ts := time.Date(2024, 12, 30, 10, 0, 0, 0, time.UTC)

	if got := DateBucket(ts); got != "2024-12-30" {
		t.Errorf("Expected date 2024-12-30, got %s", got)
	}
	// 30 Dec 2024 belongs to ISO week 1 of 2025.
	if got := WeekBucket(ts); got != "2025-W01" {
		t.Errorf("Expected week 2025-W01, got %s", got)
	}
}
