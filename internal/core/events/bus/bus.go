package bus

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zeusync/reefrush/internal/core/env"
	"github.com/zeusync/reefrush/internal/core/observability/log"
)

// registration is one listener entry. active flips to false on Unregister so a
// broadcast iterating an older copy skips it.
type registration struct {
	id       string
	listener TickListener
	active   atomic.Bool
}

// Bus is a thread-safe registry of tick listeners. Broadcasts iterate a copy of
// the registration list taken under the read lock, so listeners may register
// or unregister (themselves included) from inside a hook.
type Bus struct {
	mu      sync.RWMutex
	entries []*registration
	logger  log.Log

	broadcasts  atomic.Uint64
	invocations atomic.Uint64
	failures    atomic.Uint64
}

func New(e env.Env) *Bus {
	return &Bus{logger: e.Component("listener_bus")}
}

// Register adds l at the end of the broadcast order. Registering a listener
// that is already present is a no-op and returns false, as is registering a
// listener that is not a pointer.
func (b *Bus) Register(l TickListener) bool {
	if !isPointer(l) {
		if l != nil {
			b.logger.Warn("Listener rejected: not a pointer", log.String("type", fmt.Sprintf("%T", l)))
		}
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.entries {
		if r.listener == l {
			return false
		}
	}
	r := &registration{id: uuid.NewString(), listener: l}
	r.active.Store(true)
	b.entries = append(b.entries, r)
	b.logger.Debug("Listener registered", log.String("registration", r.id), log.Int("listeners", len(b.entries)))
	return true
}

// Unregister removes l. It returns false when l was not registered.
func (b *Bus) Unregister(l TickListener) bool {
	if !isPointer(l) {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.entries {
		if r.listener != l {
			continue
		}
		r.active.Store(false)
		entries := make([]*registration, 0, len(b.entries)-1)
		entries = append(entries, b.entries[:i]...)
		entries = append(entries, b.entries[i+1:]...)
		b.entries = entries
		b.logger.Debug("Listener unregistered", log.String("registration", r.id), log.Int("listeners", len(entries)))
		return true
	}
	return false
}

// Contains reports whether l is currently registered.
func (b *Bus) Contains(l TickListener) bool {
	if !isPointer(l) {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, r := range b.entries {
		if r.listener == l {
			return true
		}
	}
	return false
}

// isPointer guards the identity comparisons below: comparing interfaces that
// hold uncomparable values panics.
func isPointer(l TickListener) bool {
	return l != nil && reflect.TypeOf(l).Kind() == reflect.Pointer
}

func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// BroadcastBeforeStep invokes BeforeStep on every registered listener once, in
// registration order. It returns the joined listener errors for callers that
// care; they have already been logged.
func (b *Bus) BroadcastBeforeStep() error {
	return b.broadcast(PhaseBeforeStep)
}

// BroadcastAfterStep invokes AfterStep on every registered listener once, in
// registration order.
func (b *Bus) BroadcastAfterStep() error {
	return b.broadcast(PhaseAfterStep)
}

func (b *Bus) Metrics() Metrics {
	return Metrics{
		Broadcasts:  b.broadcasts.Load(),
		Invocations: b.invocations.Load(),
		Failures:    b.failures.Load(),
		Listeners:   b.Len(),
	}
}

func (b *Bus) broadcast(phase Phase) error {
	b.mu.RLock()
	entries := make([]*registration, len(b.entries))
	copy(entries, b.entries)
	b.mu.RUnlock()

	b.broadcasts.Add(1)

	var all error
	for _, r := range entries {
		if !r.active.Load() {
			continue
		}
		b.invocations.Add(1)
		if err := b.invoke(phase, r); err != nil {
			b.failures.Add(1)
			b.logger.Warn("Listener hook failed",
				log.String("phase", phase.String()),
				log.String("registration", r.id),
				log.Error(err))
			all = errors.Join(all, err)
		}
	}
	return all
}

func (b *Bus) invoke(phase Phase, r *registration) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("listener panic: %v", rec)
		}
	}()
	if phase == PhaseBeforeStep {
		return r.listener.BeforeStep()
	}
	return r.listener.AfterStep()
}
