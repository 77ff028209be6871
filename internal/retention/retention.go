// Package retention prunes tracked history older than the configured number
// of days.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/tabtime/internal/metrics"
	"github.com/goodtune/tabtime/internal/period"
	"github.com/goodtune/tabtime/internal/storage"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs the prune job on a cron schedule
type Scheduler struct {
	store    storage.Store
	days     int
	schedule string
	clock    period.Clock
	cron     *cron.Cron
	logger   zerolog.Logger
}

// NewScheduler creates a retention scheduler. schedule is a cron spec with a
// leading seconds field and is evaluated in loc.
func NewScheduler(store storage.Store, days int, schedule string, loc *time.Location, logger zerolog.Logger) (*Scheduler, error) {
	if days <= 0 {
		return nil, fmt.Errorf("retention days must be positive: %d", days)
	}
	if loc == nil {
		loc = time.Local
	}

	s := &Scheduler{
		store:    store,
		days:     days,
		schedule: schedule,
		clock:    period.RealClock{Location: loc},
		cron:     cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		logger:   logger.With().Str("component", "retention").Logger(),
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}

	return s, nil
}

// SetClock sets the clock used to compute the cutoff (for testing)
func (s *Scheduler) SetClock(clock period.Clock) {
	s.clock = clock
}

// Start begins the retention scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.schedule).
		Int("days", s.days).
		Msg("Retention scheduler started")
}

// Stop stops the scheduler and waits for a running prune to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Retention scheduler stopped")
}

func (s *Scheduler) run() {
	if _, err := s.Prune(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("Retention prune failed")
	}
}

// Result reports what a prune removed
type Result struct {
	Cutoff   time.Time
	Slices   int
	Counters int
}

// Prune removes slices and usage counters from before local midnight, days
// ago. The cutoff never falls inside the current week, since weekly limits
// are evaluated against it.
func (s *Scheduler) Prune(ctx context.Context) (*Result, error) {
	now := s.clock.Now()
	cutoff := period.StartOfDay(now).AddDate(0, 0, -s.days)
	if weekStart := period.StartOfWeek(now); weekStart.Before(cutoff) {
		cutoff = weekStart
	}
	result := &Result{Cutoff: cutoff}

	s.logger.Info().Time("cutoff", cutoff).Msg("Pruning tracked history")

	slices, err := s.store.Slices().DeleteBefore(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to prune time slices: %w", err)
	}
	result.Slices = slices
	metrics.RetentionDeleted.WithLabelValues("slices").Add(float64(slices))

	counters, err := s.store.Usage().DeleteBefore(ctx, period.DateBucket(cutoff))
	if err != nil {
		return result, fmt.Errorf("failed to prune usage counters: %w", err)
	}
	result.Counters = counters
	metrics.RetentionDeleted.WithLabelValues("counters").Add(float64(counters))

	s.logger.Info().
		Int("slices_deleted", slices).
		Int("counters_deleted", counters).
		Str("cutoff_date", period.DateBucket(cutoff)).
		Msg("Retention prune complete")

	return result, nil
}
