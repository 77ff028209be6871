// Package enforcer redirects over-budget tabs to the interstitial page.
package enforcer

import (
	"net/url"
	"strings"

	"github.com/goodtune/tabtime/internal/metrics"
	"github.com/rs/zerolog"
)

// Tab identifies a browser tab and the URL it shows.
type Tab struct {
	ID  int
	URL string
}

// Navigator moves a tab to a new URL.
type Navigator interface {
	Redirect(tabID int, target string) error
}

// Enforcer acts on block decisions.
type Enforcer struct {
	nav          Navigator
	interstitial string
	logger       zerolog.Logger
}

// New creates an Enforcer that redirects blocked tabs to interstitial.
func New(nav Navigator, interstitial string, logger zerolog.Logger) *Enforcer {
	return &Enforcer{
		nav:          nav,
		interstitial: interstitial,
		logger:       logger.With().Str("component", "enforcer").Logger(),
	}
}

// Enforce redirects tab when shouldBlock is set, unless it already shows
// the interstitial. It reports whether a redirect was issued.
func (e *Enforcer) Enforce(tab Tab, shouldBlock bool) bool {
	if !shouldBlock {
		return false
	}
	if e.Blocked(tab.URL) {
		return false
	}

	target := e.Target(tab.URL)
	if err := e.nav.Redirect(tab.ID, target); err != nil {
		e.logger.Error().Err(err).Int("tab", tab.ID).Msg("Failed to redirect tab")
		return false
	}

	metrics.AgentRedirects.Inc()
	e.logger.Info().Int("tab", tab.ID).Str("url", tab.URL).Msg("Tab redirected to interstitial")
	return true
}

// Blocked reports whether tabURL is already the interstitial page.
func (e *Enforcer) Blocked(tabURL string) bool {
	return strings.Contains(tabURL, e.interstitial)
}

// Target builds the interstitial URL carrying the original address.
func (e *Enforcer) Target(tabURL string) string {
	sep := "?"
	if strings.Contains(e.interstitial, "?") {
		sep = "&"
	}
	return e.interstitial + sep + "from=" + url.QueryEscape(tabURL)
}
