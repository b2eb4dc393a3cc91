// Package websocket carries protocol messages over gorilla/websocket.
package websocket

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/zeusync/reefrush/internal/core/observability/log"
	"github.com/zeusync/reefrush/internal/core/protocol"
)

// Upgrader turns HTTP requests into websocket connections.
type Upgrader struct {
	upgrader websocket.Upgrader
	codec    protocol.Codec
	opts     Options
	logger   log.Log
}

func NewUpgrader(codec protocol.Codec, opts Options, logger log.Log) *Upgrader {
	return &Upgrader{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(*http.Request) bool {
				// Game clients are served from arbitrary origins.
				return true
			},
		},
		codec:  codec,
		opts:   opts,
		logger: logger.With(log.String("protocol", "websocket")),
	}
}

// Upgrade completes the websocket handshake. On failure the response has
// already been written by gorilla.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		u.logger.Warn("Upgrade failed", log.String("remote_addr", r.RemoteAddr), log.Error(err))
		return nil, err
	}
	return newConnection(conn, u.codec, u.opts, u.logger), nil
}

// Dial connects to a websocket endpoint such as ws://host:port/ws.
func Dial(ctx context.Context, url string, codec protocol.Codec, opts Options, logger log.Log) (*Connection, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, protocol.WrapError(fmt.Errorf("%w: %w", protocol.ErrDialFailed, err), "dial "+url)
	}
	return newConnection(conn, codec, opts, logger.With(log.String("protocol", "websocket"))), nil
}
