// Package middlewares wraps inbound message handling with cross-cutting
// concerns: logging, handshake enforcement, rate limiting and metrics.
package middlewares

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/zeusync/reefrush/internal/core/protocol"
)

var (
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrHelloRequired = errors.New("hello required before other messages")
)

// Peer describes the remote side of a connection.
type Peer struct {
	ID          string
	RemoteAddr  string
	Transport   string
	ConnectedAt time.Time
}

// Middleware observes and may veto inbound messages. A BeforeHandle error
// drops the message.
type Middleware interface {
	Name() string
	Priority() uint16
	BeforeHandle(ctx context.Context, peer Peer, msg protocol.Message) error
	AfterHandle(ctx context.Context, peer Peer, msg protocol.Message, elapsed time.Duration, err error)
	OnConnect(ctx context.Context, peer Peer)
	OnDisconnect(ctx context.Context, peer Peer, reason string)
}

// Handler processes one inbound message.
type Handler func(ctx context.Context, peer Peer, msg protocol.Message) error

// Chain runs middlewares by descending priority around a handler.
type Chain struct {
	middlewares []Middleware
}

func NewChain(middlewares ...Middleware) *Chain {
	sorted := make([]Middleware, 0, len(middlewares))
	for _, m := range middlewares {
		if m != nil {
			sorted = append(sorted, m)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &Chain{middlewares: sorted}
}

// Handle runs every BeforeHandle, then h, then every AfterHandle in reverse.
func (c *Chain) Handle(ctx context.Context, peer Peer, msg protocol.Message, h Handler) error {
	start := time.Now()
	var err error
	for _, m := range c.middlewares {
		if err = m.BeforeHandle(ctx, peer, msg); err != nil {
			break
		}
	}
	if err == nil {
		err = h(ctx, peer, msg)
	}
	elapsed := time.Since(start)
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		c.middlewares[i].AfterHandle(ctx, peer, msg, elapsed, err)
	}
	return err
}

func (c *Chain) Connect(ctx context.Context, peer Peer) {
	for _, m := range c.middlewares {
		m.OnConnect(ctx, peer)
	}
}

func (c *Chain) Disconnect(ctx context.Context, peer Peer, reason string) {
	for _, m := range c.middlewares {
		m.OnDisconnect(ctx, peer, reason)
	}
}
