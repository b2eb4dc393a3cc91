package models

import (
	"encoding/binary"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const defaultShardCount = 16

// Set is the concurrency-safe collection of entities tracked by one field.
// Entities are spread over shards by an xxhash of their id, each shard with
// its own RWMutex, so the simulation goroutine iterating and the network
// goroutine reconciling rarely contend on the same lock.
type Set struct {
	shards []setShard
	count  atomic.Int64
}

type setShard struct {
	mu    sync.RWMutex
	items map[EntityID]*Entity
}

// NewSet creates a set with shardCount shards (16 when shardCount <= 0).
func NewSet(shardCount int) *Set {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	s := &Set{shards: make([]setShard, shardCount)}
	for i := range s.shards {
		s.shards[i].items = make(map[EntityID]*Entity)
	}
	return s
}

func (s *Set) shardFor(id EntityID) *setShard {
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], uint64(id))
	return &s.shards[xxhash.Sum64(key[:])%uint64(len(s.shards))]
}

// Add inserts e. It returns false if an entity with the same id is already tracked.
func (s *Set) Add(e *Entity) bool {
	if e == nil {
		return false
	}
	sh := s.shardFor(e.ID())
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.items[e.ID()]; exists {
		return false
	}
	sh.items[e.ID()] = e
	s.count.Add(1)
	return true
}

// Remove deletes the entity with id and returns it.
func (s *Set) Remove(id EntityID) (*Entity, bool) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.items[id]
	if ok {
		delete(sh.items, id)
		s.count.Add(-1)
	}
	return e, ok
}

func (s *Set) Get(id EntityID) (*Entity, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.items[id]
	return e, ok
}

func (s *Set) Contains(id EntityID) bool {
	_, ok := s.Get(id)
	return ok
}

func (s *Set) Len() int {
	return int(s.count.Load())
}

// Snapshot returns the tracked entities ordered by id. The slice is a copy;
// later adds and removes do not affect it.
func (s *Set) Snapshot() []*Entity {
	out := make([]*Entity, 0, s.Len())
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, e := range sh.items {
			out = append(out, e)
		}
		sh.mu.RUnlock()
	}
	slices.SortFunc(out, func(a, b *Entity) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		default:
			return 0
		}
	})
	return out
}

// IDs returns the tracked ids in ascending order.
func (s *Set) IDs() []EntityID {
	entities := s.Snapshot()
	ids := make([]EntityID, len(entities))
	for i, e := range entities {
		ids[i] = e.ID()
	}
	return ids
}

// Range calls fn for every entity of a snapshot until fn returns false.
// fn may add to or remove from the set.
func (s *Set) Range(fn func(e *Entity) bool) {
	for _, e := range s.Snapshot() {
		if !fn(e) {
			return
		}
	}
}
