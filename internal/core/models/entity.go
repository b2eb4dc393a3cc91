package models

import (
	"fmt"
	"sync"
	"sync/atomic"
)

type EntityID int64

// Kind tags what an entity is, so nothing downstream needs type switches.
type Kind uint8

const (
	KindPlayer Kind = iota + 1
	KindEnemy
	KindPowerUp
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindEnemy:
		return "enemy"
	case KindPowerUp:
		return "powerup"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) Valid() bool {
	return k >= KindPlayer && k <= KindPowerUp
}

// Entity is a tracked object of a field. The simulation goroutine and the
// network goroutine both touch it, so bounds and movement sit behind mu while
// the dead and locally-owned flags are atomics.
type Entity struct {
	id      EntityID
	kind    Kind
	variant string

	dead         atomic.Bool
	locallyOwned atomic.Bool

	mu       sync.RWMutex
	bounds   Bounds
	movement Movement
}

// NewEntity creates an entity. variant is free-form: a fish species or a power-up name.
func NewEntity(id EntityID, kind Kind, variant string, bounds Bounds, movement Movement) *Entity {
	return &Entity{
		id:       id,
		kind:     kind,
		variant:  variant,
		bounds:   bounds,
		movement: movement,
	}
}

func (e *Entity) ID() EntityID    { return e.id }
func (e *Entity) Kind() Kind      { return e.kind }
func (e *Entity) Variant() string { return e.variant }

func (e *Entity) IsDead() bool { return e.dead.Load() }

// Kill marks the entity dead. It reports whether this call made the transition.
func (e *Entity) Kill() bool { return e.dead.CompareAndSwap(false, true) }

// IsLocallyOwned reports whether this entity's motion is predicted by the
// local simulation rather than driven by remote snapshots.
func (e *Entity) IsLocallyOwned() bool { return e.locallyOwned.Load() }

func (e *Entity) SetLocallyOwned(owned bool) { e.locallyOwned.Store(owned) }

func (e *Entity) Bounds() Bounds {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bounds
}

func (e *Entity) Movement() Movement {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.movement
}

func (e *Entity) Size() float64 {
	return e.Bounds().Size()
}

// UpdateBoundsTo merges a remote region into the entity.
func (e *Entity) UpdateBoundsTo(other Bounds) {
	e.mu.Lock()
	e.bounds.UpdateTo(other)
	e.mu.Unlock()
}

// UpdateMovementTo merges a remote movement behavior into the entity.
func (e *Entity) UpdateMovementTo(other Movement) {
	e.mu.Lock()
	e.movement.UpdateTo(other)
	e.mu.Unlock()
}

func (e *Entity) SetSize(size float64) {
	e.mu.Lock()
	e.bounds.SetSize(size)
	e.mu.Unlock()
}

// Steer sets the steering intent of the movement behavior.
func (e *Entity) Steer(dx, dy float64) {
	e.mu.Lock()
	e.movement.Steer(dx, dy)
	e.mu.Unlock()
}

// Tune replaces the acceleration and max-speed scalars and returns the old ones.
func (e *Entity) Tune(acceleration, maxSpeed float64) (float64, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	oldAcc, oldMax := e.movement.Acceleration, e.movement.MaxSpeed
	e.movement.Acceleration = acceleration
	e.movement.MaxSpeed = maxSpeed
	return oldAcc, oldMax
}

// Step advances the entity by dt seconds inside a width×height area.
func (e *Entity) Step(dt, width, height float64) {
	e.mu.Lock()
	dx, dy := e.movement.Advance(dt)
	e.bounds.Translate(dx, dy, width, height)
	e.mu.Unlock()
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s#%d", e.kind, e.id)
}
