package server

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/zeusync/reefrush/internal/core/models"
	"github.com/zeusync/reefrush/internal/core/protocol"
	"github.com/zeusync/reefrush/internal/core/protocol/middlewares"
)

// conn is what the server needs from a websocket or QUIC connection.
type conn interface {
	protocol.Destination
	SendSync(msg protocol.Message) error
	ReadLoop(ctx context.Context, handle func(protocol.Message)) error
	RemoteAddr() net.Addr
	Close() error
}

// ClientSession represents a connected player.
type ClientSession struct {
	ID          string
	Conn        conn
	Peer        middlewares.Peer
	ConnectedAt time.Time

	name   atomic.Pointer[string]
	entity atomic.Pointer[models.Entity]
	joined atomic.Bool
}

func newSession(c conn, transport string) *ClientSession {
	now := time.Now()
	return &ClientSession{
		ID:          c.ID(),
		Conn:        c,
		ConnectedAt: now,
		Peer: middlewares.Peer{
			ID:          c.ID(),
			RemoteAddr:  c.RemoteAddr().String(),
			Transport:   transport,
			ConnectedAt: now,
		},
	}
}

// Entity is the fish the session currently controls, nil between lives.
func (cs *ClientSession) Entity() *models.Entity { return cs.entity.Load() }

// Name is the display name announced in hello.
func (cs *ClientSession) Name() string {
	if n := cs.name.Load(); n != nil {
		return *n
	}
	return ""
}

// Joined reports whether the client has sent hello.
func (cs *ClientSession) Joined() bool { return cs.joined.Load() }
