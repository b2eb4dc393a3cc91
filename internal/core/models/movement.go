package models

import "math"

// drag is the fraction of velocity kept per second when no direction is held.
const drag = 0.1

// Movement is the movement behavior of an entity: the steering intent (DirX,
// DirY in [-1, 1]) and the velocity it produces, bounded by Acceleration and
// MaxSpeed (units per second, per second squared).
type Movement struct {
	DirX         float64 `json:"dx" msgpack:"dx"`
	DirY         float64 `json:"dy" msgpack:"dy"`
	VX           float64 `json:"vx" msgpack:"vx"`
	VY           float64 `json:"vy" msgpack:"vy"`
	Acceleration float64 `json:"acc" msgpack:"acc"`
	MaxSpeed     float64 `json:"max" msgpack:"max"`
}

// UpdateTo overwrites m with every attribute of other.
func (m *Movement) UpdateTo(other Movement) {
	*m = other
}

// Steer sets the steering intent, normalizing vectors longer than one.
func (m *Movement) Steer(dx, dy float64) {
	if l := math.Hypot(dx, dy); l > 1 {
		dx, dy = dx/l, dy/l
	}
	m.DirX, m.DirY = dx, dy
}

// Advance integrates the velocity over dt seconds and returns the displacement.
func (m *Movement) Advance(dt float64) (float64, float64) {
	if m.DirX != 0 || m.DirY != 0 {
		m.VX += m.DirX * m.Acceleration * dt
		m.VY += m.DirY * m.Acceleration * dt
	} else {
		keep := math.Pow(drag, dt)
		m.VX *= keep
		m.VY *= keep
	}
	if speed := math.Hypot(m.VX, m.VY); m.MaxSpeed > 0 && speed > m.MaxSpeed {
		scale := m.MaxSpeed / speed
		m.VX *= scale
		m.VY *= scale
	}
	return m.VX * dt, m.VY * dt
}

func (m Movement) Finite() bool {
	return finite(m.DirX) && finite(m.DirY) && finite(m.VX) && finite(m.VY) &&
		finite(m.Acceleration) && finite(m.MaxSpeed)
}
