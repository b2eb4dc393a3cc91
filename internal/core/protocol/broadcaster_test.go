package protocol

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeusync/reefrush/internal/core/env"
)

// manualDestination records sends and lets the test complete them.
type manualDestination struct {
	id        string
	available bool

	mu         sync.Mutex
	deliveries []*Delivery
	messages   []Message
}

func newManualDestination(id string) *manualDestination {
	return &manualDestination{id: id, available: true}
}

func (d *manualDestination) ID() string      { return d.id }
func (d *manualDestination) Available() bool { return d.available }

func (d *manualDestination) Send(msg Message) DeliveryHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	delivery := NewDelivery()
	d.deliveries = append(d.deliveries, delivery)
	d.messages = append(d.messages, msg)
	return delivery
}

func (d *manualDestination) sends() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.deliveries)
}

func (d *manualDestination) completeLast(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries[len(d.deliveries)-1].Complete(err)
}

func TestBroadcastKeepsOneSendInFlight(t *testing.T) {
	b := NewReliableBroadcaster(env.Nop())
	dst := newManualDestination("slow")
	msg := NewInput(1, 0)

	require.Equal(t, 1, b.Broadcast([]Destination{dst}, msg))
	require.Equal(t, 0, b.Broadcast([]Destination{dst}, msg))
	require.Equal(t, 1, dst.sends())
	require.Equal(t, 1, b.Outstanding())

	dst.completeLast(nil)
	require.Equal(t, 1, b.Broadcast([]Destination{dst}, msg))
	require.Equal(t, 2, dst.sends())
	require.Equal(t, uint64(1), b.Stats().Skipped)
}

func TestBroadcastFastAndSlowDestinations(t *testing.T) {
	b := NewReliableBroadcaster(env.Nop())
	fast := newManualDestination("fast")
	slow := newManualDestination("slow")
	all := []Destination{fast, slow}

	for round := 0; round < 10; round++ {
		b.Broadcast(all, NewInput(0, 1))
		fast.completeLast(nil)
	}
	require.Equal(t, 10, fast.sends())
	require.Equal(t, 1, slow.sends())
}

func TestBroadcastSkipsUnavailableDestinations(t *testing.T) {
	b := NewReliableBroadcaster(env.Nop())
	dst := newManualDestination("gone")
	dst.available = false

	require.Equal(t, 0, b.Broadcast([]Destination{dst, nil}, NewInput(0, 0)))
	require.Equal(t, 0, dst.sends())
}

func TestFailedDeliveryIsRetriedNextRound(t *testing.T) {
	b := NewReliableBroadcaster(env.Nop())
	dst := newManualDestination("flaky")

	b.Broadcast([]Destination{dst}, NewInput(0, 0))
	dst.completeLast(errors.New("write: broken pipe"))

	require.Equal(t, 1, b.Broadcast([]Destination{dst}, NewInput(0, 0)))
	require.Equal(t, 2, dst.sends())
	require.Equal(t, uint64(1), b.Stats().Failed)
}

func TestForgetDropsPendingHandle(t *testing.T) {
	b := NewReliableBroadcaster(env.Nop())
	dst := newManualDestination("left")

	b.Broadcast([]Destination{dst}, NewInput(0, 0))
	require.Equal(t, 1, b.Outstanding())

	b.Forget(dst.ID())
	require.Equal(t, 0, b.Outstanding())
	require.Equal(t, 1, b.Broadcast([]Destination{dst}, NewInput(0, 0)))
}

func TestDeliveryCompletesOnce(t *testing.T) {
	d := NewDelivery()
	require.False(t, d.Done())
	require.NoError(t, d.Err())

	first := errors.New("first")
	d.Complete(first)
	d.Complete(nil)

	require.True(t, d.Done())
	require.ErrorIs(t, d.Err(), first)
	<-d.Wait()
}

func TestPeriodicBroadcastEveryNTicks(t *testing.T) {
	b := NewReliableBroadcaster(env.Nop())
	dst := newManualDestination("peer")
	produce := true
	p := NewPeriodicBroadcast(b, 3,
		func() []Destination { return []Destination{dst} },
		func() (Message, bool) { return NewInput(1, 1), produce },
	)

	for i := 0; i < 9; i++ {
		require.NoError(t, p.BeforeStep())
		require.NoError(t, p.AfterStep())
		dst.mu.Lock()
		for _, d := range dst.deliveries {
			d.Complete(nil)
		}
		dst.mu.Unlock()
	}
	require.Equal(t, uint64(3), p.Rounds())
	require.Equal(t, 3, dst.sends())

	produce = false
	for i := 0; i < 3; i++ {
		require.NoError(t, p.AfterStep())
	}
	require.Equal(t, uint64(3), p.Rounds())
}
