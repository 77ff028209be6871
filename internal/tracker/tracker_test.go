package tracker

import (
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/tabtime/internal/classifier"
	"github.com/goodtune/tabtime/internal/period"
	"github.com/rs/zerolog"
)

var t0 = time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)

func slices(effects []Effect) []EmitSlice {
	var out []EmitSlice
	for _, e := range effects {
		if s, ok := e.(EmitSlice); ok {
			out = append(out, s)
		}
	}
	return out
}

func checks(effects []Effect) []CheckLimit {
	var out []CheckLimit
	for _, e := range effects {
		if c, ok := e.(CheckLimit); ok {
			out = append(out, c)
		}
	}
	return out
}

func TestTabActivatedStartsTracking(t *testing.T) {
	s := State{ActiveTabID: -1, Focused: true}

	s, effects := Transition(s, TabActivated{TabID: 1, URL: "https://www.github.com/goodtune"}, t0, classifier.New())

	if s.Domain != "github.com" || !s.Start.Equal(t0) {
		t.Fatalf("Expected tracking github.com from t0, got %+v", s)
	}
	if len(slices(effects)) != 0 {
		t.Error("Expected no slice from an idle state")
	}
	if c := checks(effects); len(c) != 1 || c[0].Domain != "github.com" || c[0].TabID != 1 {
		t.Errorf("Expected one limit check for github.com, got %v", c)
	}
}

func TestTabSwitchFlushesPrevious(t *testing.T) {
	c := classifier.New()
	s := State{ActiveTabID: -1, Focused: true}

	s, _ = Transition(s, TabActivated{TabID: 1, URL: "https://github.com/"}, t0, c)
	s, effects := Transition(s, TabActivated{TabID: 2, URL: "https://youtube.com/watch"}, t0.Add(90*time.Second+500*time.Millisecond), c)

	emitted := slices(effects)
	if len(emitted) != 1 {
		t.Fatalf("Expected one slice, got %d", len(emitted))
	}
	slice := emitted[0].Slice
	if slice.Domain != "github.com" || slice.TimeSpent != 90 || !slice.Productive {
		t.Errorf("Unexpected slice: %+v", slice)
	}
	if slice.URL != "https://github.com/" {
		t.Errorf("Expected slice to carry the tracked URL, got %s", slice.URL)
	}
	if s.Domain != "youtube.com" {
		t.Errorf("Expected tracking youtube.com, got %s", s.Domain)
	}
}

func TestUnresolvableTabGoesIdle(t *testing.T) {
	c := classifier.New()
	s := State{ActiveTabID: -1, Focused: true}

	s, _ = Transition(s, TabActivated{TabID: 1, URL: "https://github.com/"}, t0, c)
	s, effects := Transition(s, TabActivated{TabID: 2, URL: "chrome://newtab/"}, t0.Add(10*time.Second), c)

	if s.Tracking() || s.Domain != "" {
		t.Errorf("Expected idle state, got %+v", s)
	}
	if len(slices(effects)) != 1 || len(checks(effects)) != 0 {
		t.Errorf("Expected one slice and no limit check, got %v", effects)
	}
}

func TestNavigationOnInactiveTabIgnored(t *testing.T) {
	c := classifier.New()
	s := State{ActiveTabID: -1, Focused: true}

	s, _ = Transition(s, TabActivated{TabID: 1, URL: "https://github.com/"}, t0, c)
	next, effects := Transition(s, TabNavigated{TabID: 7, URL: "https://youtube.com/"}, t0.Add(5*time.Second), c)

	if next != s {
		t.Errorf("Expected state unchanged, got %+v", next)
	}
	if len(effects) != 0 {
		t.Errorf("Expected no effects, got %v", effects)
	}
}

func TestNavigationOnActiveTab(t *testing.T) {
	c := classifier.New()
	s := State{ActiveTabID: -1, Focused: true}

	s, _ = Transition(s, TabActivated{TabID: 1, URL: "https://github.com/"}, t0, c)
	s, effects := Transition(s, TabNavigated{TabID: 1, URL: "https://youtube.com/"}, t0.Add(5*time.Second), c)

	if s.Domain != "youtube.com" || s.ActiveURL != "https://youtube.com/" {
		t.Errorf("Expected tracking youtube.com, got %+v", s)
	}
	if len(slices(effects)) != 1 || len(checks(effects)) != 1 {
		t.Errorf("Expected one slice and one limit check, got %v", effects)
	}
}

func TestFocusLossAndGain(t *testing.T) {
	c := classifier.New()
	s := State{ActiveTabID: -1, Focused: true}

	s, _ = Transition(s, TabActivated{TabID: 1, URL: "https://github.com/"}, t0, c)
	s, effects := Transition(s, WindowFocusChanged{Focused: false}, t0.Add(20*time.Second), c)

	if s.Tracking() || s.Focused {
		t.Fatalf("Expected unfocused idle state, got %+v", s)
	}
	if len(slices(effects)) != 1 {
		t.Fatalf("Expected one slice on focus loss, got %d", len(slices(effects)))
	}

	// Activation while unfocused records the tab but does not track.
	s, effects = Transition(s, TabActivated{TabID: 2, URL: "https://youtube.com/"}, t0.Add(30*time.Second), c)
	if s.Tracking() || len(effects) != 0 {
		t.Fatalf("Expected no tracking while unfocused, got %+v %v", s, effects)
	}

	s, effects = Transition(s, WindowFocusChanged{Focused: true}, t0.Add(40*time.Second), c)
	if s.Domain != "youtube.com" || !s.Start.Equal(t0.Add(40*time.Second)) {
		t.Errorf("Expected focus gain to re-resolve the active tab, got %+v", s)
	}
	if len(checks(effects)) != 1 {
		t.Errorf("Expected a limit check on focus gain, got %v", effects)
	}

	again, effects := Transition(s, WindowFocusChanged{Focused: true}, t0.Add(50*time.Second), c)
	if again != s || len(effects) != 0 {
		t.Errorf("Expected repeated focus gain to be a no-op, got %+v %v", again, effects)
	}
}

func TestPeriodicTickRestartsInterval(t *testing.T) {
	c := classifier.New()
	s := State{ActiveTabID: -1, Focused: true}

	s, _ = Transition(s, TabActivated{TabID: 1, URL: "https://github.com/"}, t0, c)
	tick := t0.Add(30 * time.Second)
	s, effects := Transition(s, PeriodicTick{}, tick, c)

	emitted := slices(effects)
	if len(emitted) != 1 || emitted[0].Slice.TimeSpent != 30 {
		t.Fatalf("Expected an intermediate 30s slice, got %v", emitted)
	}
	if s.Domain != "github.com" || !s.Start.Equal(tick) {
		t.Errorf("Expected tracking to restart at the tick, got %+v", s)
	}
	if len(checks(effects)) != 0 {
		t.Errorf("Expected no limit check from a tick, got %v", effects)
	}
}

func TestFlushIdempotent(t *testing.T) {
	c := classifier.New()
	s := State{ActiveTabID: -1, Focused: true}

	s, _ = Transition(s, TabActivated{TabID: 1, URL: "https://github.com/"}, t0, c)

	now := t0.Add(45 * time.Second)
	s, first := Transition(s, Suspend{}, now, c)
	s, second := Transition(s, Suspend{}, now, c)

	if len(slices(first)) != 1 {
		t.Errorf("Expected first flush to emit a slice, got %v", first)
	}
	if len(second) != 0 {
		t.Errorf("Expected second flush to be a no-op, got %v", second)
	}
	if s.Tracking() {
		t.Error("Expected idle after suspend")
	}
}

func TestSubSecondDiscarded(t *testing.T) {
	c := classifier.New()
	s := State{ActiveTabID: -1, Focused: true}

	s, _ = Transition(s, TabActivated{TabID: 1, URL: "https://github.com/"}, t0, c)
	s, effects := Transition(s, TabActivated{TabID: 2, URL: "https://youtube.com/"}, t0.Add(999*time.Millisecond), c)

	if len(slices(effects)) != 0 {
		t.Errorf("Expected sub-second interval to be discarded, got %v", effects)
	}
	if s.Domain != "youtube.com" {
		t.Errorf("Expected tracking to move on, got %+v", s)
	}
}

func TestExclusivity(t *testing.T) {
	c := classifier.New()
	urls := []string{
		"https://github.com/",
		"https://youtube.com/",
		"https://reddit.com/r/golang",
		"about:blank",
		"https://docs.google.com/",
	}
	rng := rand.New(rand.NewSource(42))

	s := State{ActiveTabID: -1, Focused: true}
	now := t0
	var emitted []EmitSlice

	for i := 0; i < 2000; i++ {
		now = now.Add(time.Duration(rng.Intn(5000)) * time.Millisecond)

		var ev Event
		switch rng.Intn(6) {
		case 0:
			ev = TabActivated{TabID: rng.Intn(3), URL: urls[rng.Intn(len(urls))]}
		case 1:
			ev = TabNavigated{TabID: rng.Intn(3), URL: urls[rng.Intn(len(urls))]}
		case 2:
			ev = WindowFocusChanged{Focused: rng.Intn(2) == 0}
		case 3:
			ev = PeriodicTick{}
		case 4:
			ev = Suspend{}
		default:
			ev = TabActivated{TabID: s.ActiveTabID, URL: s.ActiveURL}
		}

		var effects []Effect
		s, effects = Transition(s, ev, now, c)
		emitted = append(emitted, slices(effects)...)

		if s.Tracking() != (s.Domain != "" && s.Focused) {
			t.Fatalf("Step %d: state invariant broken: %+v", i, s)
		}
	}

	var total int64
	for _, e := range emitted {
		if e.Slice.TimeSpent < 1 {
			t.Fatalf("Emitted slice under one second: %+v", e.Slice)
		}
		total += e.Slice.TimeSpent
	}
	if elapsed := int64(now.Sub(t0) / time.Second); total > elapsed {
		t.Fatalf("Attributed %ds over %ds of wall clock", total, elapsed)
	}

	sort.Slice(emitted, func(i, j int) bool { return emitted[i].Start.Before(emitted[j].Start) })
	for i := 1; i < len(emitted); i++ {
		if emitted[i].Start.Before(emitted[i-1].End) {
			t.Fatalf("Slices overlap: %v-%v and %v-%v",
				emitted[i-1].Start, emitted[i-1].End, emitted[i].Start, emitted[i].End)
		}
	}
}

func TestTrackerConcurrentEvents(t *testing.T) {
	clock := &period.FixedClock{CurrentTime: t0}
	tr := New(classifier.New(), clock, zerolog.Nop())

	tr.Handle(TabActivated{TabID: 1, URL: "https://github.com/"})
	clock.Advance(60 * time.Second)

	// Every event below flushes at the same instant; only the first may
	// observe the live interval.
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int64
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var ev Event = PeriodicTick{}
			if i%2 == 0 {
				ev = WindowFocusChanged{Focused: false}
			}
			for _, s := range slices(tr.Handle(ev)) {
				mu.Lock()
				total += s.Slice.TimeSpent
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if total != 60 {
		t.Errorf("Expected exactly 60 seconds attributed, got %d", total)
	}
}

func TestTrackerStartsFocused(t *testing.T) {
	tr := New(classifier.New(), &period.FixedClock{CurrentTime: t0}, zerolog.Nop())

	state := tr.State()
	if !state.Focused || state.Tracking() {
		t.Errorf("Expected focused idle tracker, got %+v", state)
	}
}
