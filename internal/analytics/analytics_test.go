package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/tabtime/internal/period"
	"github.com/goodtune/tabtime/internal/storage"
	"github.com/goodtune/tabtime/internal/storage/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func slice(domain string, seconds int64, productive bool) storage.TimeSlice {
	return storage.TimeSlice{Domain: domain, TimeSpent: seconds, Productive: productive}
}

func TestSummarizeTopTieBreak(t *testing.T) {
	report := Summarize([]storage.TimeSlice{
		slice("a.com", 300, true),
		slice("b.com", 100, true),
		slice("c.com", 100, true),
		slice("b.com", 200, true),
	})

	want := []SiteTotal{{"a.com", 300}, {"b.com", 300}, {"c.com", 100}}
	if len(report.TopProductiveSites) != len(want) {
		t.Fatalf("Expected %d top sites, got %d", len(want), len(report.TopProductiveSites))
	}
	for i, w := range want {
		if report.TopProductiveSites[i] != w {
			t.Errorf("Position %d: expected %v, got %v", i, w, report.TopProductiveSites[i])
		}
	}
}

func TestSummarizeTruncatesToFive(t *testing.T) {
	var entries []storage.TimeSlice
	for i, domain := range []string{"a.com", "b.com", "c.com", "d.com", "e.com", "f.com", "g.com"} {
		entries = append(entries, slice(domain, int64(10+i), false))
	}

	report := Summarize(entries)

	if len(report.TopUnproductiveSites) != TopN {
		t.Fatalf("Expected %d top sites, got %d", TopN, len(report.TopUnproductiveSites))
	}
	if report.TopUnproductiveSites[0].Domain != "g.com" {
		t.Errorf("Expected g.com first, got %s", report.TopUnproductiveSites[0].Domain)
	}
	if len(report.TopProductiveSites) != 0 {
		t.Errorf("Expected no productive sites, got %v", report.TopProductiveSites)
	}
}

func TestSummarizeTrustsStoredFlag(t *testing.T) {
	// github.com is on the allow-list but was recorded unproductive.
	report := Summarize([]storage.TimeSlice{slice("github.com", 50, false)})

	if report.ProductiveTime != 0 || report.UnproductiveSites["github.com"] != 50 {
		t.Errorf("Expected stored flag to be authoritative, got %+v", report)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	report := Summarize(nil)

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, field := range []string{"topProductiveSites", "topUnproductiveSites", "entries"} {
		if _, ok := decoded[field].([]interface{}); !ok {
			t.Errorf("Expected %s to encode as an array, got %v", field, decoded[field])
		}
	}
}

func TestSiteTotalJSON(t *testing.T) {
	data, err := json.Marshal(SiteTotal{Domain: "github.com", Seconds: 120})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `["github.com",120]` {
		t.Errorf("Unexpected encoding: %s", data)
	}

	var decoded SiteTotal
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Domain != "github.com" || decoded.Seconds != 120 {
		t.Errorf("Unexpected decoded value: %+v", decoded)
	}
}

func TestAggregateRanges(t *testing.T) {
	mr := miniredis.RunT(t)
	store := redis.New(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	defer store.Close()

	now := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for _, s := range []storage.TimeSlice{
		{ID: "1", Domain: "github.com", TimeSpent: 120, Productive: true, Timestamp: now.Add(-time.Hour)},
		{ID: "2", Domain: "youtube.com", TimeSpent: 60, Timestamp: now.Add(-30 * time.Minute)},
		{ID: "3", Domain: "youtube.com", TimeSpent: 500, Timestamp: now.Add(-24 * time.Hour)},
		{ID: "4", Domain: "reddit.com", TimeSpent: 900, Timestamp: now.Add(-7 * 24 * time.Hour)},
	} {
		if err := store.Slices().Append(ctx, s); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	agg := NewAggregator(store.Slices(), &period.FixedClock{CurrentTime: now}, zerolog.Nop())

	tests := []struct {
		r            period.Range
		total        int64
		productive   int64
		unproductive int64
	}{
		{period.Daily, 180, 120, 60},
		{period.Weekly, 680, 120, 560},
		{period.All, 1580, 120, 1460},
		{period.Range("monthly"), 1580, 120, 1460},
	}

	for _, tt := range tests {
		t.Run(string(tt.r), func(t *testing.T) {
			report, err := agg.Aggregate(ctx, tt.r)
			if err != nil {
				t.Fatalf("Aggregate failed: %v", err)
			}
			if report.TotalTime != tt.total || report.ProductiveTime != tt.productive || report.UnproductiveTime != tt.unproductive {
				t.Errorf("Expected %d/%d/%d, got %d/%d/%d", tt.total, tt.productive, tt.unproductive,
					report.TotalTime, report.ProductiveTime, report.UnproductiveTime)
			}
		})
	}
}
