// Package scheduler drives a simulation field at a fixed tick rate on a
// dedicated goroutine with a start/stop/reset lifecycle that other goroutines
// can observe and wait on.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/reefrush/internal/core/env"
	"github.com/zeusync/reefrush/internal/core/events/bus"
	"github.com/zeusync/reefrush/internal/core/observability/log"
)

const (
	// DefaultTickRate is the number of ticks per second.
	DefaultTickRate = 60

	pollInterval = time.Millisecond
)

// Field is the per-tick surface of the simulated world. Hooks run in the
// order listed, once per tick, on the scheduler goroutine.
type Field interface {
	AdvanceMovement()
	RecenterViewport()
	AdmitQueuedEntities()
	ResolveCollisions()
	PurgeDead()
}

type Option func(*Scheduler)

// WithTickRate overrides DefaultTickRate.
func WithTickRate(ticksPerSecond int) Option {
	return func(s *Scheduler) {
		if ticksPerSecond > 0 {
			s.tickRate = ticksPerSecond
		}
	}
}

// WithStateObserver registers fn to be called after every state transition,
// on the goroutine that performed it.
func WithStateObserver(fn func(from, to State)) Option {
	return func(s *Scheduler) {
		s.observer = fn
	}
}

// Scheduler owns the simulation goroutine of one field.
//
// State is mutated only through transition, which validates every edge
// against CanTransition. Readers use State without locking and may observe
// Starting slightly before Running; StartAndWait gives the strict guarantee.
type Scheduler struct {
	field    Field
	bus      *bus.Bus
	logger   log.Log
	tickRate int
	period   time.Duration
	observer func(from, to State)

	startMu sync.Mutex

	state         atomic.Int32
	stopRequested atomic.Bool
	active        atomic.Bool
	done          atomic.Bool
	resets        atomic.Uint64
	ticks         atomic.Uint64
}

func New(e env.Env, field Field, listeners *bus.Bus, opts ...Option) *Scheduler {
	s := &Scheduler{
		field:    field,
		bus:      listeners,
		logger:   e.Component("scheduler"),
		tickRate: DefaultTickRate,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.period = time.Second / time.Duration(s.tickRate)
	return s
}

func (s *Scheduler) State() State { return State(s.state.Load()) }

// ResetCount is the number of successful Reset calls.
func (s *Scheduler) ResetCount() uint64 { return s.resets.Load() }

// Ticks is the number of ticks completed since the last Reset.
func (s *Scheduler) Ticks() uint64 { return s.ticks.Load() }

func (s *Scheduler) TickRate() int { return s.tickRate }

// Start launches the loop goroutine. If a stop is still pending it first
// waits for the previous loop to finish.
func (s *Scheduler) Start() error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if (s.stopRequested.Load() || s.done.Load()) && s.active.Load() {
		s.logger.Debug("Start waiting for pending stop", log.String("state", s.State().String()))
		for s.active.Load() {
			time.Sleep(pollInterval)
		}
	}
	if s.active.Load() {
		return ErrAlreadyStarted
	}

	s.stopRequested.Store(false)
	s.done.Store(false)
	if !s.transition(Stopped, Starting) {
		return fmt.Errorf("%w: state %s", ErrAlreadyStarted, s.State())
	}
	s.active.Store(true)

	go func() {
		if err := s.run(); err != nil {
			s.logger.Error("Simulation loop terminated with error", log.Error(err))
		}
	}()

	s.logger.Info("Scheduler started", log.Int("tick_rate", s.tickRate))
	return nil
}

// StartAndWait starts the scheduler and blocks until it is Running, the loop
// exits, a concurrent Reset supersedes the wait, or ctx is done. A done ctx
// abandons the wait with ctx.Err() and leaves the loop running.
func (s *Scheduler) StartAndWait(ctx context.Context) error {
	generation := s.resets.Load()
	if err := s.Start(); err != nil {
		return err
	}
	return s.await(ctx, generation, Running)
}

// Stop requests a cooperative stop. The tick in progress completes; the loop
// halts at the next tick boundary. Stop is a no-op when nothing is running.
func (s *Scheduler) Stop() {
	if !s.active.Load() {
		return
	}
	s.stopRequested.Store(true)
	s.transition(Running, Stopping)
}

// StopAndWait stops the scheduler and blocks until it is Stopped, a
// concurrent Reset supersedes the wait, or ctx is done. A done ctx abandons
// the wait with ctx.Err(); the stop request itself stays in effect.
func (s *Scheduler) StopAndWait(ctx context.Context) error {
	generation := s.resets.Load()
	s.Stop()
	return s.await(ctx, generation, Stopped)
}

// Reset recycles a scheduler whose loop has finished (or never ran). It is a
// no-op, returning false, while a loop goroutine is live.
func (s *Scheduler) Reset() bool {
	if s.active.Load() && !s.done.Load() {
		return false
	}
	if s.State() != Stopped {
		return false
	}
	s.done.Store(false)
	s.ticks.Store(0)
	n := s.resets.Add(1)
	s.logger.Debug("Scheduler reset", log.Uint64("resets", n))
	return true
}

func (s *Scheduler) await(ctx context.Context, generation uint64, want State) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if s.State() == want {
			return nil
		}
		if s.resets.Load() != generation {
			s.logger.Debug("Wait superseded by reset", log.String("want", want.String()))
			return ErrWaitSuperseded
		}
		if want == Running && s.done.Load() && s.State() == Stopped {
			return ErrStoppedBeforeRunning
		}
		select {
		case <-ctx.Done():
			s.logger.Warn("Wait interrupted",
				log.String("want", want.String()),
				log.String("state", s.State().String()),
				log.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// run is the body of the loop goroutine.
func (s *Scheduler) run() (err error) {
	if s.done.Load() {
		return fmt.Errorf("%w: loop already terminated", ErrInvalidState)
	}
	defer s.finalize(&err)

	if !s.transition(Starting, Running) {
		return fmt.Errorf("%w: loop entered in state %s", ErrInvalidState, s.State())
	}

	for !s.stopRequested.Load() {
		started := time.Now()
		s.tick()
		if remaining := s.period - time.Since(started); remaining > 0 {
			time.Sleep(remaining)
		}
	}

	s.transition(Running, Stopping)
	return nil
}

func (s *Scheduler) tick() {
	_ = s.bus.BroadcastBeforeStep()
	s.field.AdvanceMovement()
	s.field.RecenterViewport()
	s.field.AdmitQueuedEntities()
	s.field.ResolveCollisions()
	s.field.PurgeDead()
	_ = s.bus.BroadcastAfterStep()
	s.ticks.Add(1)
}

// finalize runs on every exit path of run so that no waiter blocks forever.
func (s *Scheduler) finalize(err *error) {
	if rec := recover(); rec != nil {
		*err = fmt.Errorf("%w: %v", ErrTickPanic, rec)
	}
	s.done.Store(true)
	s.forceStopped()
	s.active.Store(false)
	s.logger.Info("Scheduler stopped", log.Uint64("ticks", s.ticks.Load()))
}

func (s *Scheduler) transition(from, to State) bool {
	if !CanTransition(from, to) {
		return false
	}
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	if s.observer != nil {
		s.observer(from, to)
	}
	return true
}

func (s *Scheduler) forceStopped() {
	for {
		current := s.State()
		if current == Stopped || s.transition(current, Stopped) {
			return
		}
	}
}
