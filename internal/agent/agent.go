// Package agent is the native messaging host that runs next to the browser.
// It feeds browser events into the tracker, delivers completed slices to the
// server and enforces block decisions on the active tab.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goodtune/tabtime/internal/enforcer"
	"github.com/goodtune/tabtime/internal/nativemsg"
	"github.com/goodtune/tabtime/internal/storage"
	"github.com/goodtune/tabtime/internal/tracker"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	defaultTickInterval      = 30 * time.Second
	defaultFocusPollInterval = 10 * time.Second
	shutdownTimeout          = 5 * time.Second
)

// Host is the browser side of the native messaging channel.
type Host interface {
	Read() (*nativemsg.Message, error)
	PollFocus() error
}

// Delivery sends completed slices to the server.
type Delivery interface {
	Deliver(slice storage.TimeSlice, done func(error))
}

// Decider answers and memoizes block decisions.
type Decider interface {
	ShouldBlock(ctx context.Context, domain string) bool
	Forget(domain string)
}

// Config holds agent timer settings
type Config struct {
	TickInterval      time.Duration
	FocusPollInterval time.Duration
}

// Agent wires the tracker to the browser and the server.
type Agent struct {
	host     Host
	tracker  *tracker.Tracker
	delivery Delivery
	decider  Decider
	enforcer *enforcer.Enforcer
	config   Config
	logger   zerolog.Logger

	ctx      context.Context
	inflight sync.WaitGroup
}

// New creates an agent
func New(host Host, t *tracker.Tracker, delivery Delivery, decider Decider, e *enforcer.Enforcer, config Config, logger zerolog.Logger) *Agent {
	if config.TickInterval <= 0 {
		config.TickInterval = defaultTickInterval
	}
	if config.FocusPollInterval <= 0 {
		config.FocusPollInterval = defaultFocusPollInterval
	}
	return &Agent{
		host:     host,
		tracker:  t,
		delivery: delivery,
		decider:  decider,
		enforcer: e,
		config:   config,
		logger:   logger.With().Str("component", "agent").Logger(),
		ctx:      context.Background(),
	}
}

// Run processes browser messages until the stream ends or ctx is done.
// The live interval is flushed before returning.
func (a *Agent) Run(ctx context.Context) error {
	a.ctx = ctx

	scheduler := cron.New(cron.WithSeconds())
	if _, err := scheduler.AddFunc(everySpec(a.config.TickInterval), a.tick); err != nil {
		return fmt.Errorf("failed to schedule tick: %w", err)
	}
	if _, err := scheduler.AddFunc(everySpec(a.config.FocusPollInterval), a.pollFocus); err != nil {
		return fmt.Errorf("failed to schedule focus poll: %w", err)
	}
	scheduler.Start()

	a.logger.Info().
		Dur("tick_interval", a.config.TickInterval).
		Dur("focus_poll_interval", a.config.FocusPollInterval).
		Msg("Agent started")

	// Resolve the active tab before the first browser event arrives.
	a.pollFocus()

	messages := make(chan *nativemsg.Message)
	readErr := make(chan error, 1)
	go func() {
		for {
			msg, err := a.host.Read()
			if errors.Is(err, nativemsg.ErrMalformed) {
				a.logger.Warn().Err(err).Msg("Ignoring message")
				continue
			}
			if err != nil {
				readErr <- err
				return
			}
			select {
			case messages <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	var runErr error
loop:
	for {
		select {
		case msg := <-messages:
			ev, err := msg.Event()
			if err != nil {
				a.logger.Warn().Err(err).Msg("Ignoring message")
				continue
			}
			a.handle(ev)

		case err := <-readErr:
			if !errors.Is(err, io.EOF) {
				runErr = fmt.Errorf("native messaging stream failed: %w", err)
			}
			break loop

		case <-ctx.Done():
			break loop
		}
	}

	<-scheduler.Stop().Done()
	a.shutdown()
	return runErr
}

// handle applies ev and processes the resulting effects.
func (a *Agent) handle(ev tracker.Event) {
	for _, effect := range a.tracker.Handle(ev) {
		switch e := effect.(type) {
		case tracker.EmitSlice:
			a.deliver(e.Slice)
		case tracker.CheckLimit:
			a.inflight.Add(1)
			go func() {
				defer a.inflight.Done()
				a.check(enforcer.Tab{ID: e.TabID, URL: e.URL}, e.Domain)
			}()
		}
	}
}

func (a *Agent) deliver(slice storage.TimeSlice) {
	a.inflight.Add(1)
	a.delivery.Deliver(slice, func(err error) {
		defer a.inflight.Done()
		if err != nil {
			return
		}
		// New usage may have crossed a limit.
		a.decider.Forget(slice.Domain)
		a.checkActive()
	})
}

// check enforces the decision for domain on tab if tab is still active.
func (a *Agent) check(tab enforcer.Tab, domain string) {
	if !a.decider.ShouldBlock(a.ctx, domain) {
		return
	}

	state := a.tracker.State()
	if state.ActiveTabID != tab.ID || state.ActiveURL != tab.URL {
		a.logger.Debug().Str("domain", domain).Int("tab", tab.ID).Msg("Tab moved on before block decision")
		return
	}

	a.enforcer.Enforce(tab, true)
}

// checkActive re-evaluates the limit for the tracked domain.
func (a *Agent) checkActive() {
	state := a.tracker.State()
	if !state.Tracking() {
		return
	}
	a.check(enforcer.Tab{ID: state.ActiveTabID, URL: state.ActiveURL}, state.Domain)
}

func (a *Agent) tick() {
	a.handle(tracker.PeriodicTick{})
	a.checkActive()
}

func (a *Agent) pollFocus() {
	if err := a.host.PollFocus(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to poll focus")
	}
}

// shutdown flushes the live interval and waits briefly for deliveries.
func (a *Agent) shutdown() {
	a.handle(tracker.Suspend{})

	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		a.logger.Warn().Msg("Gave up waiting for in-flight deliveries")
	}

	a.logger.Info().Msg("Agent stopped")
}

// everySpec renders an interval as a cron descriptor.
func everySpec(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("@every %ds", seconds)
}
