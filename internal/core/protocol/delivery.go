package protocol

import (
	"sync"
	"sync/atomic"
)

// DeliveryHandle tracks one send to one destination. Done flips from false to
// true exactly once and never back, whether the send succeeded or failed.
type DeliveryHandle interface {
	Done() bool
	Err() error
}

// Destination is a peer a message can be delivered to. Send must return
// without waiting for the transport and complete the handle later.
type Destination interface {
	ID() string
	Available() bool
	Send(msg Message) DeliveryHandle
}

// Delivery is the DeliveryHandle transports complete from their own goroutines.
type Delivery struct {
	once sync.Once
	done atomic.Bool
	err  error
	ch   chan struct{}
}

func NewDelivery() *Delivery {
	return &Delivery{ch: make(chan struct{})}
}

// CompletedDelivery returns a handle that is already done with err.
func CompletedDelivery(err error) *Delivery {
	d := NewDelivery()
	d.Complete(err)
	return d
}

// Complete records the outcome. Only the first call has an effect.
func (d *Delivery) Complete(err error) {
	d.once.Do(func() {
		d.err = err
		d.done.Store(true)
		close(d.ch)
	})
}

func (d *Delivery) Done() bool { return d.done.Load() }

// Err is the outcome of a completed delivery. It is nil while the delivery is pending.
func (d *Delivery) Err() error {
	if !d.done.Load() {
		return nil
	}
	return d.err
}

// Wait returns a channel closed on completion.
func (d *Delivery) Wait() <-chan struct{} { return d.ch }
