package client

import (
	"math"
	"sync/atomic"

	"github.com/zeusync/reefrush/internal/core/field"
	"github.com/zeusync/reefrush/internal/core/models"
)

// Steerer receives the autopilot's decisions.
type Steerer interface {
	Steer(dx, dy float64)
}

// Intent is what the autopilot decided on its last evaluation.
type Intent uint8

const (
	Idle Intent = iota
	Flee
	Chase
	Wander
)

func (i Intent) String() string {
	switch i {
	case Flee:
		return "flee"
	case Chase:
		return "chase"
	case Wander:
		return "wander"
	default:
		return "idle"
	}
}

// dangerRadius is measured in multiples of the fish's own size.
const dangerRadius = 4

// Autopilot is a tick listener that steers a fish. It senses the field every
// n ticks and picks the first behavior that applies: flee from the nearest
// larger fish in range, chase the nearest smaller fish or power-up, or head
// for the middle of the field.
type Autopilot struct {
	field *field.Field
	self  func() *models.Entity
	steer Steerer
	every uint64

	ticks  atomic.Uint64
	intent atomic.Uint32
}

func NewAutopilot(f *field.Field, self func() *models.Entity, steer Steerer, every int) *Autopilot {
	if every < 1 {
		every = 1
	}
	return &Autopilot{field: f, self: self, steer: steer, every: uint64(every)}
}

// Intent is the last decision.
func (a *Autopilot) Intent() Intent { return Intent(a.intent.Load()) }

func (a *Autopilot) BeforeStep() error {
	if (a.ticks.Add(1)-1)%a.every != 0 {
		return nil
	}
	me := a.self()
	if me == nil || me.IsDead() {
		a.intent.Store(uint32(Idle))
		return nil
	}
	intent, dx, dy := a.decide(me)
	a.intent.Store(uint32(intent))
	a.steer.Steer(dx, dy)
	return nil
}

func (a *Autopilot) AfterStep() error { return nil }

func (a *Autopilot) decide(me *models.Entity) (Intent, float64, float64) {
	cx, cy := me.Bounds().Center()
	size := me.Size()

	var (
		threat, prey         *models.Entity
		threatDist, preyDist = math.Inf(1), math.Inf(1)
	)
	a.field.Entities().Range(func(other *models.Entity) bool {
		if other.ID() == me.ID() || other.IsDead() {
			return true
		}
		ox, oy := other.Bounds().Center()
		d := math.Hypot(ox-cx, oy-cy)
		switch {
		case other.Kind() != models.KindPowerUp && other.Size() > size:
			if d < dangerRadius*size && d < threatDist {
				threat, threatDist = other, d
			}
		case other.Kind() == models.KindPowerUp || other.Size() < size:
			if d < preyDist {
				prey, preyDist = other, d
			}
		}
		return true
	})

	if threat != nil {
		tx, ty := threat.Bounds().Center()
		dx, dy := unit(cx-tx, cy-ty)
		return Flee, dx, dy
	}
	if prey != nil {
		px, py := prey.Bounds().Center()
		dx, dy := unit(px-cx, py-cy)
		return Chase, dx, dy
	}
	dx, dy := unit(a.field.Width()/2-cx, a.field.Height()/2-cy)
	return Wander, dx, dy
}

func unit(x, y float64) (float64, float64) {
	l := math.Hypot(x, y)
	if l == 0 {
		return 0, 0
	}
	return x / l, y / l
}
