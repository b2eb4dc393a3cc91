package effects

import (
	"fmt"
	"sync"

	"github.com/zeusync/reefrush/internal/core/env"
	"github.com/zeusync/reefrush/internal/core/events/bus"
	"github.com/zeusync/reefrush/internal/core/models"
)

const (
	SpeedBoost = "speed_boost"
	Growth     = "growth"
)

// hooksPerTick is how many counter steps a TimedEffect takes per scheduler
// tick: one in BeforeStep and one in AfterStep.
const hooksPerTick = 2

var defaults = map[string]struct{ duration, factor float64 }{
	SpeedBoost: {duration: 10, factor: 1.5},
	Growth:     {duration: 8, factor: 1.25},
}

// Variants lists the power-up names the catalog can build.
func Variants() []string {
	return []string{SpeedBoost, Growth}
}

// Enabled reports whether the named power-up is switched on in settings.
func Enabled(e env.Env, variant string) bool {
	return e.Settings.Bool("powerups."+variant+".enabled", true)
}

// NewPowerUp builds the timed effect for a power-up variant. Duration and
// factor come from settings under "powerups.<variant>.". The duration is
// wall-clock seconds at ticksPerSecond, so the effect's limit counts both
// hooks of every tick.
func NewPowerUp(e env.Env, listeners *bus.Bus, variant string, ticksPerSecond int) (*TimedEffect, error) {
	d, ok := defaults[variant]
	if !ok {
		return nil, fmt.Errorf("unknown power-up %q", variant)
	}
	duration := e.Settings.Float("powerups."+variant+".duration_seconds", d.duration)
	factor := e.Settings.Float("powerups."+variant+".factor", d.factor)

	var action Action
	switch variant {
	case SpeedBoost:
		action = &speedBoost{factor: factor}
	case Growth:
		action = &growth{factor: factor}
	}
	return NewTimedEffect(e, listeners, variant, duration, ticksPerSecond*hooksPerTick, action), nil
}

// speedBoost multiplies the acceleration and max speed of the target and
// divides them back when it ends, so overlapping boosts unwind in any order.
type speedBoost struct {
	factor float64

	mu      sync.Mutex
	boosted *models.Entity
}

func (s *speedBoost) Start(target *models.Entity) {
	if target == nil || s.factor == 0 {
		return
	}
	m := target.Movement()
	target.Tune(m.Acceleration*s.factor, m.MaxSpeed*s.factor)
	s.mu.Lock()
	s.boosted = target
	s.mu.Unlock()
}

func (s *speedBoost) End(_ *models.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.boosted == nil {
		return
	}
	m := s.boosted.Movement()
	s.boosted.Tune(m.Acceleration/s.factor, m.MaxSpeed/s.factor)
	s.boosted = nil
}

// growth enlarges the target and shrinks it back by the same factor.
type growth struct {
	factor float64

	mu    sync.Mutex
	grown *models.Entity
}

func (g *growth) Start(target *models.Entity) {
	if target == nil {
		return
	}
	target.SetSize(target.Size() * g.factor)
	g.mu.Lock()
	g.grown = target
	g.mu.Unlock()
}

func (g *growth) End(_ *models.Entity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.grown == nil || g.factor == 0 {
		return
	}
	g.grown.SetSize(g.grown.Size() / g.factor)
	g.grown = nil
}
