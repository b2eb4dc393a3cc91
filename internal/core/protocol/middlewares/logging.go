package middlewares

import (
	"context"
	"time"

	"github.com/zeusync/reefrush/internal/core/observability/log"
	"github.com/zeusync/reefrush/internal/core/protocol"
)

// LoggingMiddleware logs all protocol events
type LoggingMiddleware struct {
	logger log.Log
}

func NewLoggingMiddleware(logger log.Log) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

func (m *LoggingMiddleware) Name() string { return "logging" }

func (m *LoggingMiddleware) Priority() uint16 {
	return 1000 // High priority
}

func (m *LoggingMiddleware) BeforeHandle(_ context.Context, peer Peer, msg protocol.Message) error {
	if msg.Type == protocol.TypeInput {
		// Inputs arrive every few ticks per peer; logging each one drowns the rest.
		return nil
	}
	m.logger.Debug("Processing message",
		log.String("peer_id", peer.ID),
		log.String("message_type", string(msg.Type)),
		log.String("remote_addr", peer.RemoteAddr),
	)
	return nil
}

func (m *LoggingMiddleware) AfterHandle(_ context.Context, peer Peer, msg protocol.Message, elapsed time.Duration, err error) {
	if err == nil {
		return
	}
	m.logger.Warn("Message handling failed",
		log.String("peer_id", peer.ID),
		log.String("message_type", string(msg.Type)),
		log.Duration("elapsed", elapsed),
		log.Error(err),
	)
}

func (m *LoggingMiddleware) OnConnect(_ context.Context, peer Peer) {
	m.logger.Info("Peer connected",
		log.String("peer_id", peer.ID),
		log.String("remote_addr", peer.RemoteAddr),
		log.String("transport", peer.Transport),
	)
}

func (m *LoggingMiddleware) OnDisconnect(_ context.Context, peer Peer, reason string) {
	m.logger.Info("Peer disconnected",
		log.String("peer_id", peer.ID),
		log.String("remote_addr", peer.RemoteAddr),
		log.String("reason", reason),
		log.Duration("duration", time.Since(peer.ConnectedAt)),
	)
}
