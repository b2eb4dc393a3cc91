// Package effects implements duration-based power-ups driven by the tick bus.
package effects

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/zeusync/reefrush/internal/core/env"
	"github.com/zeusync/reefrush/internal/core/events/bus"
	"github.com/zeusync/reefrush/internal/core/models"
	"github.com/zeusync/reefrush/internal/core/observability/log"
)

var (
	ErrEffectActive = errors.New("effect already active")
	// ErrEffectSpent is returned when a one-shot effect is executed again
	// after it expired without a Reset in between.
	ErrEffectSpent = errors.New("effect already spent")
)

type State uint8

const (
	Inactive State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "inactive"
}

// Action is what a timed effect does to its target when it starts and ends.
type Action interface {
	Start(target *models.Entity)
	End(target *models.Entity)
}

// ActionFuncs adapts closures to Action.
type ActionFuncs struct {
	OnStart func(target *models.Entity)
	OnEnd   func(target *models.Entity)
}

func (a ActionFuncs) Start(target *models.Entity) {
	if a.OnStart != nil {
		a.OnStart(target)
	}
}

func (a ActionFuncs) End(target *models.Entity) {
	if a.OnEnd != nil {
		a.OnEnd(target)
	}
}

// TimedEffect activates an Action, counts ticks through the listener bus and
// deactivates it once duration×ticksPerSecond ticks have been counted.
//
// The activation tick is counted by ExecuteEffect itself, so the first
// BeforeStep after activation leaves the counter unchanged. Both hooks count,
// so under a scheduler a limit of n expires after n/2 scheduler ticks.
type TimedEffect struct {
	name   string
	limit  int
	action Action
	bus    *bus.Bus
	logger log.Log

	target atomic.Pointer[models.Entity]

	mu            sync.Mutex
	state         State
	ticks         int
	justActivated bool
	spent         bool
}

func NewTimedEffect(e env.Env, listeners *bus.Bus, name string, durationSeconds float64, ticksPerSecond int, action Action) *TimedEffect {
	return &TimedEffect{
		name:   name,
		limit:  int(durationSeconds * float64(ticksPerSecond)),
		action: action,
		bus:    listeners,
		logger: e.Component("effect").With(log.String("effect", name)),
	}
}

func (t *TimedEffect) Name() string { return t.name }

// Limit is the number of ticks the effect stays active.
func (t *TimedEffect) Limit() int { return t.limit }

func (t *TimedEffect) Target() *models.Entity { return t.target.Load() }

// SetTarget replaces the affected entity. It does not change the activation state.
func (t *TimedEffect) SetTarget(target *models.Entity) { t.target.Store(target) }

func (t *TimedEffect) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *TimedEffect) Ticks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticks
}

// ExecuteEffect starts the action and registers the effect on the bus.
func (t *TimedEffect) ExecuteEffect() error {
	t.mu.Lock()
	switch {
	case t.state == Active:
		t.mu.Unlock()
		return ErrEffectActive
	case t.spent:
		t.mu.Unlock()
		return ErrEffectSpent
	}
	t.state = Active
	t.ticks = 1
	t.justActivated = true
	t.mu.Unlock()

	target := t.Target()
	t.action.Start(target)
	t.bus.Register(t)
	t.logger.Debug("Effect activated", log.Int("limit", t.limit), log.Bool("has_target", target != nil))
	return nil
}

// Reset re-arms an expired effect for another activation. It has no effect
// while the effect is active.
func (t *TimedEffect) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Active {
		return
	}
	t.spent = false
	t.ticks = 0
}

func (t *TimedEffect) BeforeStep() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Active {
		return nil
	}
	if t.justActivated {
		t.justActivated = false
		return nil
	}
	t.ticks++
	return nil
}

func (t *TimedEffect) AfterStep() error {
	t.mu.Lock()
	if t.state != Active {
		t.mu.Unlock()
		return nil
	}
	if t.ticks < t.limit {
		t.ticks++
		t.mu.Unlock()
		return nil
	}
	t.state = Inactive
	t.justActivated = false
	t.spent = true
	t.mu.Unlock()

	t.action.End(t.Target())
	t.bus.Unregister(t)
	t.logger.Debug("Effect expired")
	return nil
}
