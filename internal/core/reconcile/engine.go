// Package reconcile merges authoritative snapshots into a local entity set
// while leaving the motion of the locally-owned entity to local prediction.
package reconcile

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/zeusync/reefrush/internal/core/env"
	"github.com/zeusync/reefrush/internal/core/models"
	"github.com/zeusync/reefrush/internal/core/observability/log"
	"github.com/zeusync/reefrush/internal/core/protocol"
)

var ErrDuplicateEntity = errors.New("duplicate entity in snapshot")

// Collection is the local tracked-entity set a snapshot is merged into.
type Collection interface {
	Entities() *models.Set
	Add(e *models.Entity) bool
	Remove(e *models.Entity) bool
}

// Result counts what one reconciliation did.
type Result struct {
	Added    int
	Updated  int
	Removed  int
	Rejected int
}

// Engine reconciles snapshots. It is safe to use from the network goroutine
// while the simulation goroutine iterates the same collection.
type Engine struct {
	logger log.Log
	owned  atomic.Int64
}

func New(e env.Env) *Engine {
	return &Engine{logger: e.Component("reconcile")}
}

// Own marks id as the locally-owned entity. Entities with that id that enter
// the collection through a snapshot are flagged as locally owned.
func (en *Engine) Own(id models.EntityID) { en.owned.Store(int64(id)) }

// Owned returns the locally-owned id, zero when none.
func (en *Engine) Owned() models.EntityID { return models.EntityID(en.owned.Load()) }

// Reconcile applies a complete snapshot: ids in both are merged, ids only in
// the snapshot are added and ids only in the collection are removed.
//
// A malformed entry is rejected on its own; the returned error joins every
// rejection while the rest of the snapshot is still applied. A rejected entry
// with a usable id keeps the matching local entity as it is.
func (en *Engine) Reconcile(snapshot protocol.Snapshot, c Collection) (Result, error) {
	var (
		res  Result
		errs []error
		seen = make(map[models.EntityID]struct{}, len(snapshot.Entities))
		set  = c.Entities()
	)

	for _, state := range snapshot.Entities {
		if _, dup := seen[state.ID]; dup && state.ID > 0 {
			res.Rejected++
			errs = append(errs, fmt.Errorf("entity %d: %w", state.ID, ErrDuplicateEntity))
			continue
		}
		if state.ID > 0 {
			seen[state.ID] = struct{}{}
		}
		if err := state.Validate(); err != nil {
			res.Rejected++
			errs = append(errs, fmt.Errorf("entity %d: %w", state.ID, err))
			continue
		}

		remote := state.ToEntity()
		if local, ok := set.Get(state.ID); ok {
			en.UpdateEntity(local, remote)
			res.Updated++
			continue
		}
		if owned := en.Owned(); owned != 0 && remote.ID() == owned {
			remote.SetLocallyOwned(true)
		}
		if c.Add(remote) {
			res.Added++
		}
	}

	for _, local := range set.Snapshot() {
		if _, ok := seen[local.ID()]; ok {
			continue
		}
		if c.Remove(local) {
			res.Removed++
		}
	}

	if len(errs) > 0 {
		en.logger.Warn("Snapshot entries rejected",
			log.Uint64("tick", snapshot.Tick),
			log.Int("rejected", res.Rejected),
		)
	}
	return res, errors.Join(errs...)
}

// UpdateEntity merges remote into local. A dead remote kills local. The
// locally-owned entity only takes the size; everything else takes bounds and
// movement.
func (en *Engine) UpdateEntity(local, remote *models.Entity) {
	if remote.IsDead() {
		local.Kill()
	}
	if local.IsLocallyOwned() {
		local.SetSize(remote.Size())
		return
	}
	local.UpdateBoundsTo(remote.Bounds())
	local.UpdateMovementTo(remote.Movement())
}
