// Package generic holds small type-safe helpers shared by the packages.
package generic

import "sync"

// Pool is a typed sync.Pool. Values are reset before they go back and values
// the retain check refuses are dropped for the GC instead.
type Pool[T any] struct {
	pool   sync.Pool
	reset  func(T)
	retain func(T) bool
}

type PoolOption[T any] func(*Pool[T])

// WithReset clears a value when it is put back.
func WithReset[T any](reset func(T)) PoolOption[T] {
	return func(p *Pool[T]) { p.reset = reset }
}

// WithRetain decides whether a returned value is worth keeping.
func WithRetain[T any](retain func(T) bool) PoolOption[T] {
	return func(p *Pool[T]) { p.retain = retain }
}

func NewPool[T any](generate func() T, opts ...PoolOption[T]) *Pool[T] {
	p := &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewHotPool is NewPool with hotSize values generated up front.
func NewHotPool[T any](generate func() T, hotSize int, opts ...PoolOption[T]) *Pool[T] {
	p := NewPool(generate, opts...)
	for i := 0; i < hotSize; i++ {
		p.pool.Put(generate())
	}
	return p
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	if p.retain != nil && !p.retain(value) {
		return
	}
	if p.reset != nil {
		p.reset(value)
	}
	p.pool.Put(value)
}
