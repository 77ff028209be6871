// Package tracker attributes browsing time to exactly one domain at a time.
package tracker

import (
	"sync"
	"time"

	"github.com/goodtune/tabtime/internal/classifier"
	"github.com/goodtune/tabtime/internal/period"
	"github.com/goodtune/tabtime/internal/storage"
	"github.com/rs/zerolog"
)

// Classifier decides whether a domain counts as productive time.
type Classifier interface {
	IsProductive(domain string) bool
}

// State is the attribution state of one browser. Start is non-zero exactly
// when Domain is set and the window is focused.
type State struct {
	ActiveTabID int
	ActiveURL   string
	Focused     bool
	Domain      string
	Start       time.Time
}

// Tracking reports whether an interval is live.
func (s State) Tracking() bool {
	return !s.Start.IsZero()
}

// Transition applies ev to s at now. The returned state already reflects
// any flush, so the effects can be processed without holding s.
func Transition(s State, ev Event, now time.Time, c Classifier) (State, []Effect) {
	var effects []Effect

	switch e := ev.(type) {
	case TabActivated:
		s, effects = flush(s, now, c, effects)
		s.ActiveTabID = e.TabID
		s.ActiveURL = e.URL
		s, effects = resolve(s, now, effects)

	case TabNavigated:
		if e.TabID != s.ActiveTabID {
			return s, nil
		}
		s, effects = flush(s, now, c, effects)
		s.ActiveURL = e.URL
		s, effects = resolve(s, now, effects)

	case WindowFocusChanged:
		if !e.Focused {
			s, effects = flush(s, now, c, effects)
			s.Focused = false
			return s, effects
		}
		if s.Focused {
			return s, nil
		}
		s.Focused = true
		s, effects = resolve(s, now, effects)

	case PeriodicTick:
		if !s.Tracking() {
			return s, nil
		}
		domain := s.Domain
		s, effects = flush(s, now, c, effects)
		s.Domain = domain
		s.Start = now

	case Suspend:
		s, effects = flush(s, now, c, effects)
	}

	return s, effects
}

// flush closes the live interval. Intervals shorter than a second are
// dropped; flushing an idle state does nothing.
func flush(s State, now time.Time, c Classifier, effects []Effect) (State, []Effect) {
	if !s.Tracking() {
		return s, effects
	}

	start := s.Start
	domain := s.Domain
	s.Domain = ""
	s.Start = time.Time{}

	seconds := int64(now.Sub(start) / time.Second)
	if seconds < 1 {
		return s, effects
	}

	return s, append(effects, EmitSlice{
		Slice: storage.TimeSlice{
			Domain:     domain,
			URL:        s.ActiveURL,
			Productive: c.IsProductive(domain),
			TimeSpent:  seconds,
			Timestamp:  now,
		},
		Start: start,
		End:   start.Add(time.Duration(seconds) * time.Second),
	})
}

// resolve starts tracking the active tab when the window is focused and the
// tab URL is attributable.
func resolve(s State, now time.Time, effects []Effect) (State, []Effect) {
	if !s.Focused {
		return s, effects
	}

	domain := classifier.ExtractDomain(s.ActiveURL)
	if domain == "" {
		return s, effects
	}

	s.Domain = domain
	s.Start = now
	return s, append(effects, CheckLimit{TabID: s.ActiveTabID, URL: s.ActiveURL, Domain: domain})
}

// Tracker owns the attribution state of one browser and serialises events
// through it.
type Tracker struct {
	mu         sync.Mutex
	state      State
	clock      period.Clock
	classifier Classifier
	logger     zerolog.Logger
}

// New creates an idle tracker. The window is assumed focused until told
// otherwise.
func New(c Classifier, clock period.Clock, logger zerolog.Logger) *Tracker {
	if clock == nil {
		clock = period.RealClock{}
	}
	return &Tracker{
		state:      State{ActiveTabID: -1, Focused: true},
		clock:      clock,
		classifier: c,
		logger:     logger.With().Str("component", "tracker").Logger(),
	}
}

// Handle applies ev and returns the resulting effects. The state has been
// advanced by the time Handle returns.
func (t *Tracker) Handle(ev Event) []Effect {
	t.mu.Lock()
	prev := t.state
	next, effects := Transition(prev, ev, t.clock.Now(), t.classifier)
	t.state = next
	t.mu.Unlock()

	if prev.Domain != next.Domain || prev.Start != next.Start {
		t.logger.Debug().
			Str("event", eventName(ev)).
			Str("from", prev.Domain).
			Str("to", next.Domain).
			Int("effects", len(effects)).
			Msg("Attribution changed")
	}

	return effects
}

// State returns a copy of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func eventName(ev Event) string {
	switch ev.(type) {
	case TabActivated:
		return "tab_activated"
	case TabNavigated:
		return "tab_navigated"
	case WindowFocusChanged:
		return "focus_changed"
	case PeriodicTick:
		return "tick"
	case Suspend:
		return "suspend"
	default:
		return "unknown"
	}
}
