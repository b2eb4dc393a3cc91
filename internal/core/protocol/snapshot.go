package protocol

import (
	"fmt"

	"github.com/zeusync/reefrush/internal/core/models"
)

// EntityState is the wire representation of one entity.
type EntityState struct {
	ID       models.EntityID `json:"id" msgpack:"id"`
	Kind     models.Kind     `json:"kind" msgpack:"kind"`
	Variant  string          `json:"variant,omitempty" msgpack:"variant,omitempty"`
	Dead     bool            `json:"dead,omitempty" msgpack:"dead,omitempty"`
	Bounds   models.Bounds   `json:"bounds" msgpack:"bounds"`
	Movement models.Movement `json:"movement" msgpack:"movement"`
}

// Snapshot is the complete set of entities the server tracked at Tick. An id
// missing from a snapshot no longer exists.
type Snapshot struct {
	Tick     uint64        `json:"tick" msgpack:"tick"`
	Entities []EntityState `json:"entities" msgpack:"entities"`
}

// StateOf captures the current state of e.
func StateOf(e *models.Entity) EntityState {
	return EntityState{
		ID:       e.ID(),
		Kind:     e.Kind(),
		Variant:  e.Variant(),
		Dead:     e.IsDead(),
		Bounds:   e.Bounds(),
		Movement: e.Movement(),
	}
}

// SnapshotOf captures every entity of set, ordered by id.
func SnapshotOf(set *models.Set, tick uint64) Snapshot {
	entities := set.Snapshot()
	s := Snapshot{Tick: tick, Entities: make([]EntityState, 0, len(entities))}
	for _, e := range entities {
		s.Entities = append(s.Entities, StateOf(e))
	}
	return s
}

// Validate rejects states that cannot be applied to a local entity.
func (s EntityState) Validate() error {
	switch {
	case s.ID <= 0:
		return fmt.Errorf("%w: id %d", ErrInvalidEntityState, s.ID)
	case !s.Kind.Valid():
		return fmt.Errorf("%w: %s", ErrInvalidEntityState, s.Kind)
	case !s.Bounds.Finite():
		return fmt.Errorf("%w: non-finite bounds", ErrInvalidEntityState)
	case s.Bounds.Width < 0 || s.Bounds.Height < 0:
		return fmt.Errorf("%w: negative size", ErrInvalidEntityState)
	case !s.Movement.Finite():
		return fmt.Errorf("%w: non-finite movement", ErrInvalidEntityState)
	}
	return nil
}

// ToEntity builds a new local entity from the state.
func (s EntityState) ToEntity() *models.Entity {
	e := models.NewEntity(s.ID, s.Kind, s.Variant, s.Bounds, s.Movement)
	if s.Dead {
		e.Kill()
	}
	return e
}
