package enforcer

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	defaultDecisionTTL  = 5 * time.Second
	defaultDecisionSize = 256
)

// DecisionSource answers whether a domain is over its limits.
type DecisionSource interface {
	Status(ctx context.Context, domain string) (bool, error)
}

// Checker memoizes block decisions per domain for a short window so that
// bursts of checks for the same domain cost one request.
type Checker struct {
	source DecisionSource
	cache  *expirable.LRU[string, bool]
	group  singleflight.Group
	logger zerolog.Logger
}

// NewChecker creates a Checker. Zero size or ttl select the defaults.
func NewChecker(source DecisionSource, size int, ttl time.Duration, logger zerolog.Logger) *Checker {
	if size <= 0 {
		size = defaultDecisionSize
	}
	if ttl <= 0 {
		ttl = defaultDecisionTTL
	}
	return &Checker{
		source: source,
		cache:  expirable.NewLRU[string, bool](size, nil, ttl),
		logger: logger.With().Str("component", "checker").Logger(),
	}
}

// ShouldBlock returns the memoized decision for domain, fetching it when
// absent. Errors allow the domain and are not cached.
func (c *Checker) ShouldBlock(ctx context.Context, domain string) bool {
	if block, ok := c.cache.Get(domain); ok {
		return block
	}

	v, err, _ := c.group.Do(domain, func() (interface{}, error) {
		block, err := c.source.Status(ctx, domain)
		if err != nil {
			return false, err
		}
		c.cache.Add(domain, block)
		return block, nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("domain", domain).Msg("Limit check failed, allowing")
		return false
	}
	return v.(bool)
}

// Forget drops the memoized decision for domain.
func (c *Checker) Forget(domain string) {
	c.cache.Remove(domain)
}
