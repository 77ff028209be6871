package tracker

import (
	"time"

	"github.com/goodtune/tabtime/internal/storage"
)

// Event is an input to the attribution state machine.
type Event interface {
	event()
}

// TabActivated reports that the user switched to a tab.
type TabActivated struct {
	TabID int
	URL   string
}

// TabNavigated reports that a tab loaded a new URL.
type TabNavigated struct {
	TabID int
	URL   string
}

// WindowFocusChanged reports that the browser gained or lost focus.
type WindowFocusChanged struct {
	Focused bool
}

// PeriodicTick closes the current interval and opens a fresh one.
type PeriodicTick struct{}

// Suspend reports process teardown.
type Suspend struct{}

func (TabActivated) event()       {}
func (TabNavigated) event()       {}
func (WindowFocusChanged) event() {}
func (PeriodicTick) event()       {}
func (Suspend) event()            {}

// Effect is an action requested by a transition.
type Effect interface {
	effect()
}

// EmitSlice carries a completed attribution interval for delivery.
type EmitSlice struct {
	Slice storage.TimeSlice
	Start time.Time
	End   time.Time
}

// CheckLimit asks for a block decision on a newly attributed domain.
type CheckLimit struct {
	TabID  int
	URL    string
	Domain string
}

func (EmitSlice) effect()  {}
func (CheckLimit) effect() {}
