package middlewares

import (
	"context"
	"sync"
	"time"

	"github.com/zeusync/reefrush/internal/core/observability/log"
	"github.com/zeusync/reefrush/internal/core/protocol"
)

// RateLimitMiddleware caps the messages a peer may send per window.
type RateLimitMiddleware struct {
	logger    log.Log
	rateLimit int           // Messages per window
	window    time.Duration // Time window
	clients   sync.Map      // peer ID -> *clientRateLimit
	now       func() time.Time
}

type clientRateLimit struct {
	count  int
	window time.Time
	mu     sync.Mutex
}

func NewRateLimitMiddleware(logger log.Log, rateLimit int, window time.Duration) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		logger:    logger,
		rateLimit: rateLimit,
		window:    window,
		now:       time.Now,
	}
}

func (m *RateLimitMiddleware) Name() string { return "rate_limit" }

func (m *RateLimitMiddleware) Priority() uint16 {
	return 800 // After handshake
}

func (m *RateLimitMiddleware) BeforeHandle(_ context.Context, peer Peer, msg protocol.Message) error {
	if m.rateLimit <= 0 {
		return nil
	}

	now := m.now()
	limit := m.getClientRateLimit(peer.ID, now)

	limit.mu.Lock()
	defer limit.mu.Unlock()

	// Reset window if expired
	if now.Sub(limit.window) > m.window {
		limit.count = 0
		limit.window = now
	}

	if limit.count >= m.rateLimit {
		if limit.count == m.rateLimit {
			m.logger.Warn("Rate limit exceeded",
				log.String("peer_id", peer.ID),
				log.String("message_type", string(msg.Type)),
				log.Int("limit", m.rateLimit),
			)
		}
		limit.count++
		return ErrRateLimited
	}

	limit.count++
	return nil
}

func (m *RateLimitMiddleware) AfterHandle(context.Context, Peer, protocol.Message, time.Duration, error) {}

func (m *RateLimitMiddleware) OnConnect(_ context.Context, peer Peer) {
	m.clients.Store(peer.ID, &clientRateLimit{window: m.now()})
}

func (m *RateLimitMiddleware) OnDisconnect(_ context.Context, peer Peer, _ string) {
	m.clients.Delete(peer.ID)
}

func (m *RateLimitMiddleware) getClientRateLimit(peerID string, now time.Time) *clientRateLimit {
	limit, _ := m.clients.LoadOrStore(peerID, &clientRateLimit{window: now})
	return limit.(*clientRateLimit)
}
