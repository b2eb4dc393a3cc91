package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/zeusync/reefrush/internal/core/observability/log"
	"github.com/zeusync/reefrush/internal/core/protocol"
)

var _ protocol.Destination = (*Connection)(nil)

const (
	DefaultWriteTimeout   = 5 * time.Second
	DefaultMaxMessageSize = 1 << 20
)

// Options tune a websocket connection.
type Options struct {
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = DefaultMaxMessageSize
	}
	return o
}

// Connection is a websocket peer usable as a broadcast destination. Sends run
// on their own goroutine and are serialized by writeMu.
type Connection struct {
	id     string
	conn   *websocket.Conn
	codec  protocol.Codec
	opts   Options
	logger log.Log

	closed    atomic.Bool
	closeOnce sync.Once

	// Write mutex to ensure thread-safe writes
	writeMu sync.Mutex

	// Metrics
	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
	bytesSent        atomic.Uint64
	bytesReceived    atomic.Uint64
}

func newConnection(conn *websocket.Conn, codec protocol.Codec, opts Options, logger log.Log) *Connection {
	opts = opts.withDefaults()
	conn.SetReadLimit(opts.MaxMessageSize)
	id := uuid.New().String()
	return &Connection{
		id:     id,
		conn:   conn,
		codec:  codec,
		opts:   opts,
		logger: logger.With(log.String("connection_id", id)),
	}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Available reports whether the connection can still carry messages.
func (c *Connection) Available() bool { return !c.closed.Load() }

// Send encodes and writes msg on a separate goroutine. The returned handle
// completes once the frame is written or the write failed.
func (c *Connection) Send(msg protocol.Message) protocol.DeliveryHandle {
	if c.closed.Load() {
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
	if c.closed.Load() {
		return protocol.ErrConnectionClosed
	}
	return c.write(msg)
}

func (c *Connection) write(msg protocol.Message) error {
	data, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}

	frame := websocket.BinaryMessage
	if c.codec.Name() == protocol.CodecJSON {
		frame = websocket.TextMessage
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	// Set write deadline
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err = c.conn.WriteMessage(frame, data); err != nil {
		c.logger.Debug("Write failed", log.Error(err))
		_ = c.Close()
		return protocol.WrapError(fmt.Errorf("%w: %w", protocol.ErrTransportFailed, err), "failed to write message")
	}

	// Update metrics
	c.messagesSent.Add(1)
	c.bytesSent.Add(uint64(len(data)))
	return nil
}

// ReadLoop decodes inbound messages and hands them to handle until the
// connection fails or ctx is done. Undecodable frames are logged and skipped.
func (c *Connection) ReadLoop(ctx context.Context, handle func(protocol.Message)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			_ = c.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && (closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway) {
				return nil
			}
			return protocol.WrapError(fmt.Errorf("%w: %w", protocol.ErrConnectionLost, err), "failed to read message")
		}

		// Only handle text and binary messages
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
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

// Close sends a close frame and closes the underlying connection once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.conn.Close()
	})
	return err
}

// Stats returns the traffic counters of the connection.
func (c *Connection) Stats() (messagesSent, messagesReceived, bytesSent, bytesReceived uint64) {
	return c.messagesSent.Load(), c.messagesReceived.Load(), c.bytesSent.Load(), c.bytesReceived.Load()
}
