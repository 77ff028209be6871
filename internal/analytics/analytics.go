// Package analytics turns recorded time slices into range-bounded totals
// and per-domain rankings.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/goodtune/tabtime/internal/period"
	"github.com/goodtune/tabtime/internal/storage"
	"github.com/rs/zerolog"
)

// TopN is the number of entries kept in each ranking.
const TopN = 5

// SiteTotal is a domain and its accumulated seconds. It encodes as a
// two-element JSON array.
type SiteTotal struct {
	Domain  string
	Seconds int64
}

// MarshalJSON implements json.Marshaler.
func (s SiteTotal) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{s.Domain, s.Seconds})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *SiteTotal) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("site total must have 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.Domain); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &s.Seconds)
}

// Report is the analytics payload for one range.
type Report struct {
	TotalTime            int64               `json:"totalTime"`
	ProductiveTime       int64               `json:"productiveTime"`
	UnproductiveTime     int64               `json:"unproductiveTime"`
	ProductiveSites      map[string]int64    `json:"productiveSites"`
	UnproductiveSites    map[string]int64    `json:"unproductiveSites"`
	TopProductiveSites   []SiteTotal         `json:"topProductiveSites"`
	TopUnproductiveSites []SiteTotal         `json:"topUnproductiveSites"`
	Entries              []storage.TimeSlice `json:"entries"`
}

// Aggregator computes reports from the slice log.
type Aggregator struct {
	slices storage.SliceStore
	clock  period.Clock
	logger zerolog.Logger
}

// NewAggregator creates an aggregator reading from slices.
func NewAggregator(slices storage.SliceStore, clock period.Clock, logger zerolog.Logger) *Aggregator {
	if clock == nil {
		clock = period.RealClock{}
	}
	return &Aggregator{
		slices: slices,
		clock:  clock,
		logger: logger.With().Str("component", "analytics").Logger(),
	}
}

// Aggregate builds the report for r. An invalid range covers all time.
func (a *Aggregator) Aggregate(ctx context.Context, r period.Range) (*Report, error) {
	if !r.Valid() {
		r = period.All
	}

	entries, err := a.slices.ListSince(ctx, period.Since(r, a.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to list slices: %w", err)
	}

	report := Summarize(entries)

	a.logger.Debug().
		Str("range", string(r)).
		Int("entries", len(entries)).
		Int64("total_seconds", report.TotalTime).
		Msg("Analytics aggregated")

	return report, nil
}

// Summarize folds entries, which must already be in timestamp order, into
// a report. The stored productive flag of each slice is trusted as-is.
func Summarize(entries []storage.TimeSlice) *Report {
	report := &Report{
		ProductiveSites:   make(map[string]int64),
		UnproductiveSites: make(map[string]int64),
		Entries:           entries,
	}
	if report.Entries == nil {
		report.Entries = []storage.TimeSlice{}
	}

	var productiveOrder, unproductiveOrder []string

	for _, entry := range entries {
		report.TotalTime += entry.TimeSpent

		if entry.Productive {
			report.ProductiveTime += entry.TimeSpent
			if _, seen := report.ProductiveSites[entry.Domain]; !seen {
				productiveOrder = append(productiveOrder, entry.Domain)
			}
			report.ProductiveSites[entry.Domain] += entry.TimeSpent
		} else {
			if _, seen := report.UnproductiveSites[entry.Domain]; !seen {
				unproductiveOrder = append(unproductiveOrder, entry.Domain)
			}
			report.UnproductiveSites[entry.Domain] += entry.TimeSpent
		}
	}

	report.UnproductiveTime = report.TotalTime - report.ProductiveTime
	report.TopProductiveSites = top(report.ProductiveSites, productiveOrder, TopN)
	report.TopUnproductiveSites = top(report.UnproductiveSites, unproductiveOrder, TopN)

	return report
}

// top ranks domains by seconds descending. Ties keep the order in which the
// domains were first encountered.
func top(totals map[string]int64, order []string, n int) []SiteTotal {
	ranked := make([]SiteTotal, 0, len(order))
	for _, domain := range order {
		ranked = append(ranked, SiteTotal{Domain: domain, Seconds: totals[domain]})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Seconds > ranked[j].Seconds
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
