package protocol

import (
	"sync/atomic"
)

// PeriodicBroadcast is a tick listener that hands a fresh message to a
// ReliableBroadcaster every N after-steps.
type PeriodicBroadcast struct {
	every        uint64
	broadcaster  *ReliableBroadcaster
	destinations func() []Destination
	message      func() (Message, bool)

	ticks  atomic.Uint64
	rounds atomic.Uint64
}

// NewPeriodicBroadcast builds the listener. message may decline a round by
// returning false; every values below one mean every tick.
func NewPeriodicBroadcast(b *ReliableBroadcaster, every int, destinations func() []Destination, message func() (Message, bool)) *PeriodicBroadcast {
	if every < 1 {
		every = 1
	}
	return &PeriodicBroadcast{
		every:        uint64(every),
		broadcaster:  b,
		destinations: destinations,
		message:      message,
	}
}

func (p *PeriodicBroadcast) BeforeStep() error { return nil }

func (p *PeriodicBroadcast) AfterStep() error {
	if p.ticks.Add(1)%p.every != 0 {
		return nil
	}
	msg, ok := p.message()
	if !ok {
		return nil
	}
	p.rounds.Add(1)
	p.broadcaster.Broadcast(p.destinations(), msg)
	return nil
}

// Rounds counts the broadcasts issued so far.
func (p *PeriodicBroadcast) Rounds() uint64 { return p.rounds.Load() }
