package quic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"
	"github.com/zeusync/reefrush/internal/core/observability/log"
	"github.com/zeusync/reefrush/internal/core/protocol"
)

var _ protocol.Destination = (*Connection)(nil)

// Connection is a QUIC peer usable as a broadcast destination.
type Connection struct {
	id     string
	conn   *quic.Conn
	codec  protocol.Codec
	opts   Options
	logger log.Log

	closed    atomic.Bool
	closeOnce sync.Once

	// Metrics
	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
	bytesSent        atomic.Uint64
	bytesReceived    atomic.Uint64
}

func newConnection(conn *quic.Conn, codec protocol.Codec, opts Options, logger log.Log) *Connection {
	id := uuid.New().String()
	return &Connection{
		id:     id,
		conn:   conn,
		codec:  codec,
		opts:   opts.withDefaults(),
		logger: logger.With(log.String("connection_id", id)),
	}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Available reports whether the connection is still usable.
func (c *Connection) Available() bool {
	return !c.closed.Load() && c.conn.Context().Err() == nil
}

// Send writes msg on a fresh unidirectional stream from a separate goroutine.
func (c *Connection) Send(msg protocol.Message) protocol.DeliveryHandle {
	if !c.Available() {
		return protocol.CompletedDelivery(protocol.ErrConnectionClosed)
	}
	d := protocol.NewDelivery()
	go func() {
		d.Complete(c.write(msg))
	}()
	return d
}

// SendSync writes msg on the calling goroutine.
func (c *Connection) SendSync(msg protocol.Message) error {
	if !c.Available() {
		return protocol.ErrConnectionClosed
	}
	return c.write(msg)
}

func (c *Connection) write(msg protocol.Message) error {
	data, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}
	if uint32(len(data)) > c.opts.MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", protocol.ErrMessageTooLarge, len(data))
	}

	ctx, cancel := context.WithTimeout(c.conn.Context(), c.opts.WriteTimeout)
	defer cancel()

	stream, err := c.conn.OpenUniStreamSync(ctx)
	if err != nil {
		return protocol.WrapError(fmt.Errorf("%w: %w", protocol.ErrTransportFailed, err), "failed to open stream")
	}
	_ = stream.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err = writeFrame(stream, data); err != nil {
		stream.CancelWrite(0)
		return protocol.WrapError(fmt.Errorf("%w: %w", protocol.ErrTransportFailed, err), "failed to write frame")
	}
	if err = stream.Close(); err != nil {
		return protocol.WrapError(fmt.Errorf("%w: %w", protocol.ErrStreamClosed, err), "failed to close stream")
	}

	c.messagesSent.Add(1)
	c.bytesSent.Add(uint64(len(data)))
	return nil
}

// ReadLoop accepts the peer's streams, decodes one message from each and
// hands it to handle until the connection fails or ctx is done.
func (c *Connection) ReadLoop(ctx context.Context, handle func(protocol.Message)) error {
	for {
		stream, err := c.conn.AcceptUniStream(ctx)
		if err != nil {
			_ = c.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var appErr *quic.ApplicationError
			if errors.As(err, &appErr) && appErr.ErrorCode == 0 {
				return nil
			}
			return protocol.WrapError(fmt.Errorf("%w: %w", protocol.ErrConnectionLost, err), "failed to accept stream")
		}

		_ = stream.SetReadDeadline(time.Now().Add(c.opts.WriteTimeout))
		data, err := readFrame(stream, c.opts.MaxMessageSize)
		if err != nil {
			stream.CancelRead(0)
			c.logger.Warn("Dropping malformed frame", log.Error(err))
			continue
		}

		c.messagesReceived.Add(1)
		c.bytesReceived.Add(uint64(len(data)))

		msg, err := c.codec.Decode(data)
		if err != nil {
			c.logger.Warn("Dropping undecodable message", log.Int("size", len(data)), log.Error(err))
			continue
		}
		handle(msg)
	}
}

// Close closes the connection once with application error code 0.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.conn.CloseWithError(0, "connection closed")
	})
	return err
}

// Stats returns the traffic counters of the connection.
func (c *Connection) Stats() (messagesSent, messagesReceived, bytesSent, bytesReceived uint64) {
	return c.messagesSent.Load(), c.messagesReceived.Load(), c.bytesSent.Load(), c.bytesReceived.Load()
}
