package protocol

import (
	"sync"
	"sync/atomic"

	"github.com/zeusync/reefrush/internal/core/env"
	"github.com/zeusync/reefrush/internal/core/observability/log"
)

// ReliableBroadcaster sends the same message to many destinations while
// keeping at most one send in flight per destination. A slow peer receives
// roughly one message per round trip instead of a growing backlog.
type ReliableBroadcaster struct {
	mu      sync.Mutex
	handles map[string]DeliveryHandle

	logger log.Log

	sent    atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

// BroadcastStats are cumulative counters of a broadcaster.
type BroadcastStats struct {
	Sent    uint64
	Skipped uint64
	Failed  uint64
}

func NewReliableBroadcaster(e env.Env) *ReliableBroadcaster {
	return &ReliableBroadcaster{
		handles: make(map[string]DeliveryHandle),
		logger:  e.Component("broadcaster"),
	}
}

// Broadcast sends msg to every available destination whose previous send has
// completed and returns the number of sends issued.
func (b *ReliableBroadcaster) Broadcast(destinations []Destination, msg Message) int {
	sends := 0
	for _, dst := range destinations {
		if dst == nil || !dst.Available() {
			continue
		}
		id := dst.ID()

		b.mu.Lock()
		prev, ok := b.handles[id]
		if ok && !prev.Done() {
			b.mu.Unlock()
			b.skipped.Add(1)
			continue
		}
		if ok && prev.Err() != nil {
			// Failed deliveries are retried by this very send.
			b.failed.Add(1)
			b.logger.Debug("Previous delivery failed", log.String("destination", id), log.Error(prev.Err()))
		}
		handle := dst.Send(msg)
		if handle == nil {
			handle = CompletedDelivery(nil)
		}
		b.handles[id] = handle
		b.mu.Unlock()

		b.sent.Add(1)
		sends++
	}
	return sends
}

// Forget drops the handle recorded for a departed destination.
func (b *ReliableBroadcaster) Forget(id string) {
	b.mu.Lock()
	delete(b.handles, id)
	b.mu.Unlock()
}

// Outstanding counts destinations with a send still in flight.
func (b *ReliableBroadcaster) Outstanding() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, h := range b.handles {
		if !h.Done() {
			n++
		}
	}
	return n
}

func (b *ReliableBroadcaster) Stats() BroadcastStats {
	return BroadcastStats{
		Sent:    b.sent.Load(),
		Skipped: b.skipped.Load(),
		Failed:  b.failed.Load(),
	}
}
