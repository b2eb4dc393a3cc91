// Package field is the simulated ocean: the tracked fish, the queue of
// entities waiting to enter and the per-tick rules moving and feeding them.
package field

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/zeusync/reefrush/internal/core/env"
	"github.com/zeusync/reefrush/internal/core/models"
	"github.com/zeusync/reefrush/internal/core/observability/log"
)

const (
	DefaultTicksPerSecond = 60

	// feedRatio is the share of the prey's area the winner gains.
	feedRatio = 0.25
)

type Option func(*Field)

// WithTicksPerSecond sets the step rate the movement integration assumes.
func WithTicksPerSecond(tps int) Option {
	return func(f *Field) {
		if tps > 0 {
			f.tps = tps
		}
	}
}

// WithViewport sets the size of the visible window.
func WithViewport(width, height float64) Option {
	return func(f *Field) {
		f.viewport.Width = width
		f.viewport.Height = height
	}
}

// WithCollisions turns collision resolution on or off. Fields mirroring an
// authoritative peer leave feeding to that peer.
func WithCollisions(enabled bool) Option {
	return func(f *Field) { f.collisions = enabled }
}

// WithPickupHandler is called when a player swims into a power-up.
func WithPickupHandler(fn func(player, powerUp *models.Entity)) Option {
	return func(f *Field) { f.onPickup = fn }
}

// WithEatHandler is called when one fish eats another.
func WithEatHandler(fn func(eater, prey *models.Entity)) Option {
	return func(f *Field) { f.onEat = fn }
}

// WithRemovalHandler is called for every dead entity PurgeDead removes.
func WithRemovalHandler(fn func(e *models.Entity)) Option {
	return func(f *Field) { f.onRemove = fn }
}

// Field implements the per-tick hooks driven by the scheduler. The hooks run
// on the scheduler goroutine; Add, Remove and Queue may be called from any
// goroutine.
type Field struct {
	width, height float64
	tps           int
	collisions    bool
	logger        log.Log

	entities *models.Set

	queueMu sync.Mutex
	queue   []*models.Entity

	viewMu   sync.RWMutex
	viewport models.Bounds

	nextID atomic.Int64
	eaten  atomic.Uint64
	purged atomic.Uint64

	onPickup func(player, powerUp *models.Entity)
	onEat    func(eater, prey *models.Entity)
	onRemove func(e *models.Entity)
}

func New(e env.Env, width, height float64, opts ...Option) *Field {
	f := &Field{
		width:      width,
		height:     height,
		tps:        DefaultTicksPerSecond,
		collisions: true,
		logger:     e.Component("field"),
		entities:   models.NewSet(0),
		viewport:   models.Bounds{Width: width, Height: height},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Field) Width() float64      { return f.width }
func (f *Field) Height() float64     { return f.height }
func (f *Field) TicksPerSecond() int { return f.tps }

// Entities is the tracked collection.
func (f *Field) Entities() *models.Set { return f.entities }

// NextID hands out a fresh entity id. Ids are never reused.
func (f *Field) NextID() models.EntityID { return models.EntityID(f.nextID.Add(1)) }

// Add tracks e immediately.
func (f *Field) Add(e *models.Entity) bool {
	f.reserve(e.ID())
	return f.entities.Add(e)
}

// Remove stops tracking e.
func (f *Field) Remove(e *models.Entity) bool {
	_, ok := f.entities.Remove(e.ID())
	return ok
}

// Queue schedules e to enter the field on the next AdmitQueuedEntities.
func (f *Field) Queue(e *models.Entity) {
	f.reserve(e.ID())
	f.queueMu.Lock()
	f.queue = append(f.queue, e)
	f.queueMu.Unlock()
}

// Queued is the number of entities waiting to be admitted.
func (f *Field) Queued() int {
	f.queueMu.Lock()
	defer f.queueMu.Unlock()
	return len(f.queue)
}

// reserve keeps NextID ahead of ids assigned elsewhere.
func (f *Field) reserve(id models.EntityID) {
	for {
		cur := f.nextID.Load()
		if int64(id) <= cur || f.nextID.CompareAndSwap(cur, int64(id)) {
			return
		}
	}
}

// ControlledEntities are the living player fish.
func (f *Field) ControlledEntities() []*models.Entity {
	var out []*models.Entity
	f.entities.Range(func(e *models.Entity) bool {
		if e.Kind() == models.KindPlayer && !e.IsDead() {
			out = append(out, e)
		}
		return true
	})
	return out
}

// Count returns the number of living entities of kind.
func (f *Field) Count(kind models.Kind) int {
	n := 0
	f.entities.Range(func(e *models.Entity) bool {
		if e.Kind() == kind && !e.IsDead() {
			n++
		}
		return true
	})
	return n
}

// Viewport is the visible window of the field.
func (f *Field) Viewport() models.Bounds {
	f.viewMu.RLock()
	defer f.viewMu.RUnlock()
	return f.viewport
}

// Eaten counts every fish eaten so far.
func (f *Field) Eaten() uint64 { return f.eaten.Load() }

// AdvanceMovement integrates one tick of movement for every living entity.
// Enemy fish turn around when they reach an edge.
func (f *Field) AdvanceMovement() {
	dt := 1 / float64(f.tps)
	f.entities.Range(func(e *models.Entity) bool {
		if e.IsDead() {
			return true
		}
		e.Step(dt, f.width, f.height)
		if e.Kind() == models.KindEnemy {
			f.bounce(e)
		}
		return true
	})
}

func (f *Field) bounce(e *models.Entity) {
	b, m := e.Bounds(), e.Movement()
	dx, dy := m.DirX, m.DirY
	if (b.X <= 0 && dx < 0) || (b.X+b.Width >= f.width && dx > 0) {
		dx = -dx
	}
	if (b.Y <= 0 && dy < 0) || (b.Y+b.Height >= f.height && dy > 0) {
		dy = -dy
	}
	if dx != m.DirX || dy != m.DirY {
		e.Steer(dx, dy)
	}
}

// RecenterViewport centers the viewport on the locally-owned fish, or on the
// first player when none is owned here, keeping it inside the field.
func (f *Field) RecenterViewport() {
	var focus *models.Entity
	f.entities.Range(func(e *models.Entity) bool {
		if e.Kind() != models.KindPlayer || e.IsDead() {
			return true
		}
		if e.IsLocallyOwned() {
			focus = e
			return false
		}
		if focus == nil {
			focus = e
		}
		return true
	})
	if focus == nil {
		return
	}

	cx, cy := focus.Bounds().Center()
	f.viewMu.Lock()
	v := f.viewport
	v.X = clamp(cx-v.Width/2, 0, math.Max(0, f.width-v.Width))
	v.Y = clamp(cy-v.Height/2, 0, math.Max(0, f.height-v.Height))
	f.viewport = v
	f.viewMu.Unlock()
}

// AdmitQueuedEntities moves queued entities into the tracked set.
func (f *Field) AdmitQueuedEntities() {
	f.queueMu.Lock()
	pending := f.queue
	f.queue = nil
	f.queueMu.Unlock()

	for _, e := range pending {
		if !f.entities.Add(e) {
			f.logger.Warn("Queued entity id already tracked", log.Int64("entity_id", int64(e.ID())))
		}
	}
}

// ResolveCollisions lets every living player interact with what it overlaps:
// the larger of two fish eats the smaller and grows, and a power-up is
// consumed by the player touching it.
func (f *Field) ResolveCollisions() {
	if !f.collisions {
		return
	}
	all := f.entities.Snapshot()
	for _, p := range all {
		if p.Kind() != models.KindPlayer || p.IsDead() {
			continue
		}
		for _, o := range all {
			if o == p || o.IsDead() || !p.Bounds().Intersects(o.Bounds()) {
				continue
			}
			if o.Kind() == models.KindPowerUp {
				if o.Kill() && f.onPickup != nil {
					f.onPickup(p, o)
				}
				continue
			}
			switch mine, theirs := p.Size(), o.Size(); {
			case mine > theirs:
				f.feed(p, o)
			case theirs > mine:
				f.feed(o, p)
			}
			if p.IsDead() {
				break
			}
		}
	}
}

func (f *Field) feed(eater, prey *models.Entity) {
	if !prey.Kill() {
		return
	}
	es, ps := eater.Size(), prey.Size()
	eater.SetSize(math.Sqrt(es*es + ps*ps*feedRatio))
	f.eaten.Add(1)
	f.logger.Debug("Fish eaten",
		log.String("eater", eater.String()),
		log.String("prey", prey.String()),
	)
	if f.onEat != nil {
		f.onEat(eater, prey)
	}
}

// PurgeDead removes every dead entity.
func (f *Field) PurgeDead() {
	f.entities.Range(func(e *models.Entity) bool {
		if !e.IsDead() {
			return true
		}
		if _, ok := f.entities.Remove(e.ID()); ok {
			f.purged.Add(1)
			if f.onRemove != nil {
				f.onRemove(e)
			}
		}
		return true
	})
}

// Purged counts the dead entities removed so far.
func (f *Field) Purged() uint64 { return f.purged.Load() }

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
