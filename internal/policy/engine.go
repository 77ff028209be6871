// Package policy evaluates per-domain time limits against recorded usage.
package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/goodtune/tabtime/internal/metrics"
	"github.com/goodtune/tabtime/internal/period"
	"github.com/goodtune/tabtime/internal/policy/opa"
	"github.com/goodtune/tabtime/internal/storage"
	"github.com/rs/zerolog"
)

// Engine gathers usage facts from storage and asks the quota rule whether
// a domain has exhausted its daily or weekly allowance.
type Engine struct {
	limits storage.LimitStore
	slices storage.SliceStore
	rule   QuotaRule
	clock  period.Clock
	logger zerolog.Logger
}

// NewEngine creates a policy engine backed by the given stores and rule
func NewEngine(limits storage.LimitStore, slices storage.SliceStore, rule QuotaRule, clock period.Clock, logger zerolog.Logger) *Engine {
	if clock == nil {
		clock = period.RealClock{}
	}
	return &Engine{
		limits: limits,
		slices: slices,
		rule:   rule,
		clock:  clock,
		logger: logger.With().Str("component", "policy").Logger(),
	}
}

// SetClock sets the clock used for window boundaries (for testing)
func (e *Engine) SetClock(clock period.Clock) {
	e.clock = clock
}

// Evaluate reports whether domain should be blocked. Any failure while
// gathering facts fails open.
func (e *Engine) Evaluate(ctx context.Context, domain string) bool {
	decision, err := e.Decide(ctx, domain)
	if err != nil {
		metrics.LimitEvaluationErrors.Inc()
		e.logger.Error().Err(err).Str("domain", domain).Msg("Limit evaluation failed, allowing")
		return false
	}
	return decision.ShouldBlock
}

// Decide evaluates the daily limit and then, only if it does not block, the
// weekly limit. Both windows derive from a single reading of the clock.
func (e *Engine) Decide(ctx context.Context, domain string) (*Decision, error) {
	domain = storage.NormalizeWebsite(domain)
	now := e.clock.Now()

	decision := &Decision{Domain: domain, LimitSeconds: -1}

	for _, limitType := range storage.LimitTypes {
		limit, err := e.limits.Get(ctx, domain, limitType)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s limit: %w", limitType, err)
		}

		used, err := e.slices.SumDomainSince(ctx, domain, period.Since(period.Range(limitType), now))
		if err != nil {
			return nil, fmt.Errorf("failed to sum %s usage: %w", limitType, err)
		}

		exceeded, err := e.rule.Exceeded(ctx, opa.QuotaInput{
			Website:      domain,
			Type:         string(limitType),
			UsedSeconds:  used,
			LimitSeconds: limit.Seconds(),
		})
		if err != nil {
			return nil, err
		}

		decision.LimitType = limitType
		decision.UsedSeconds = used
		decision.LimitSeconds = limit.Seconds()

		if exceeded {
			decision.ShouldBlock = true
			break
		}
	}

	result := "allow"
	if decision.ShouldBlock {
		result = "block"
	}
	metrics.LimitEvaluations.WithLabelValues(result).Inc()

	e.logger.Debug().
		Str("domain", domain).
		Bool("block", decision.ShouldBlock).
		Str("limit_type", string(decision.LimitType)).
		Int64("used_seconds", decision.UsedSeconds).
		Int64("limit_seconds", decision.LimitSeconds).
		Msg("Limits evaluated")

	return decision, nil
}

// Usage returns the seconds recorded for website inside the window r,
// using the same boundaries as Decide.
func (e *Engine) Usage(ctx context.Context, website string, r period.Range) (int64, error) {
	return e.slices.SumDomainSince(ctx, website, period.Since(r, e.clock.Now()))
}
