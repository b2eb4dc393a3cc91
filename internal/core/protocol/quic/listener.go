package quic

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/quic-go/quic-go"
	"github.com/zeusync/reefrush/internal/core/observability/log"
	"github.com/zeusync/reefrush/internal/core/protocol"
)

// Listener accepts QUIC connections.
type Listener struct {
	listener *quic.Listener
	codec    protocol.Codec
	opts     Options
	closed   atomic.Bool
	logger   log.Log
}

// Listen starts a QUIC listener on addr. A nil tlsConfig gets a self-signed certificate.
func Listen(addr string, tlsConfig *tls.Config, codec protocol.Codec, opts Options, logger log.Log) (*Listener, error) {
	if tlsConfig == nil {
		var err error
		if tlsConfig, err = GenerateSelfSignedTLS(); err != nil {
			return nil, err
		}
	}

	listener, err := quic.ListenAddr(addr, tlsConfig, quicConfig())
	if err != nil {
		return nil, protocol.WrapError(fmt.Errorf("%w: %w", protocol.ErrListenFailed, err), "failed to start QUIC listener")
	}

	l := &Listener{
		listener: listener,
		codec:    codec,
		opts:     opts,
		logger:   logger.With(log.String("protocol", "quic"), log.String("listener_addr", listener.Addr().String())),
	}
	l.logger.Info("QUIC listener created")
	return l, nil
}

// Accept waits for the next connection.
func (l *Listener) Accept(ctx context.Context) (*Connection, error) {
	if l.closed.Load() {
		return nil, protocol.ErrTransportClosed
	}

	conn, err := l.listener.Accept(ctx)
	if err != nil {
		if l.closed.Load() {
			return nil, protocol.ErrTransportClosed
		}
		return nil, protocol.WrapError(err, "failed to accept QUIC connection")
	}

	l.logger.Debug("QUIC connection accepted", log.String("remote_addr", conn.RemoteAddr().String()))
	return newConnection(conn, l.codec, l.opts, l.logger), nil
}

// Addr returns the listener address
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Close closes the listener
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}
	l.logger.Info("Closing QUIC listener")
	return l.listener.Close()
}

// Dial connects to a QUIC server.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config, codec protocol.Codec, opts Options, logger log.Log) (*Connection, error) {
	if tlsConfig == nil {
		tlsConfig = ClientTLS(false)
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, quicConfig())
	if err != nil {
		return nil, protocol.WrapError(fmt.Errorf("%w: %w", protocol.ErrDialFailed, err), "dial "+addr)
	}
	return newConnection(conn, codec, opts, logger.With(log.String("protocol", "quic"))), nil
}
