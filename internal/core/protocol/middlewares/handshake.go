package middlewares

import (
	"context"
	"sync"
	"time"

	"github.com/zeusync/reefrush/internal/core/observability/log"
	"github.com/zeusync/reefrush/internal/core/protocol"
)

// HandshakeMiddleware drops every message of a peer until it sent hello.
type HandshakeMiddleware struct {
	logger  log.Log
	greeted sync.Map // peer ID -> session
}

func NewHandshakeMiddleware(logger log.Log) *HandshakeMiddleware {
	return &HandshakeMiddleware{logger: logger}
}

func (m *HandshakeMiddleware) Name() string { return "handshake" }

func (m *HandshakeMiddleware) Priority() uint16 {
	return 900 // After logging
}

func (m *HandshakeMiddleware) BeforeHandle(_ context.Context, peer Peer, msg protocol.Message) error {
	if msg.Type == protocol.TypeHello {
		m.greeted.Store(peer.ID, msg.Hello.Session)
		return nil
	}
	if _, ok := m.greeted.Load(peer.ID); !ok {
		m.logger.Warn("Message before hello",
			log.String("peer_id", peer.ID),
			log.String("message_type", string(msg.Type)),
		)
		return ErrHelloRequired
	}
	return nil
}

func (m *HandshakeMiddleware) AfterHandle(context.Context, Peer, protocol.Message, time.Duration, error) {}

func (m *HandshakeMiddleware) OnConnect(context.Context, Peer) {}

func (m *HandshakeMiddleware) OnDisconnect(_ context.Context, peer Peer, _ string) {
	m.greeted.Delete(peer.ID)
}

// Session returns the session a peer announced in its hello.
func (m *HandshakeMiddleware) Session(peerID string) (string, bool) {
	v, ok := m.greeted.Load(peerID)
	if !ok {
		return "", false
	}
	return v.(string), true
}
