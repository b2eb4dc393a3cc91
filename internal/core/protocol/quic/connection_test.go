package quic

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zeusync/reefrush/internal/core/observability/log"
	"github.com/zeusync/reefrush/internal/core/protocol"
)

func TestFrameLimits(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte("hello")))

	payload, err := readFrame(bytes.NewReader(buf.Bytes()), 16)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), payload)

	_, err = readFrame(bytes.NewReader(buf.Bytes()), 4)
	require.ErrorIs(t, err, protocol.ErrMessageTooLarge)

	_, err = readFrame(bytes.NewReader(buf.Bytes()[:6]), 16)
	require.ErrorIs(t, err, protocol.ErrInvalidFrame)
}

func TestRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	codec := protocol.MsgpackCodec{}
	listener, err := Listen("127.0.0.1:0", nil, codec, Options{}, log.NewNop())
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan *Connection, 1)
	go func() {
		conn, err := listener.Accept(ctx)
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := Dial(ctx, listener.Addr().String(), ClientTLS(true), codec, Options{}, log.NewNop())
	require.NoError(t, err)
	defer client.Close()

	var server *Connection
	select {
	case server = <-accepted:
	case <-ctx.Done():
		t.Fatal("connection not accepted")
	}
	require.True(t, server.Available())

	fromServer := make(chan protocol.Message, 1)
	fromClient := make(chan protocol.Message, 1)
	go func() { _ = client.ReadLoop(ctx, func(m protocol.Message) { fromServer <- m }) }()
	go func() { _ = server.ReadLoop(ctx, func(m protocol.Message) { fromClient <- m }) }()

	handle := server.Send(protocol.NewWelcome(protocol.Welcome{EntityID: 4, TicksPerSecond: 60}))
	select {
	case <-handle.(*protocol.Delivery).Wait():
		require.NoError(t, handle.Err())
	case <-ctx.Done():
		t.Fatal("send did not complete")
	}

	select {
	case msg := <-fromServer:
		require.Equal(t, protocol.TypeWelcome, msg.Type)
		require.EqualValues(t, 4, msg.Welcome.EntityID)
	case <-ctx.Done():
		t.Fatal("welcome not received")
	}

	require.NoError(t, client.SendSync(protocol.NewInput(-1, 0)))
	select {
	case msg := <-fromClient:
		require.Equal(t, -1.0, msg.Input.DirX)
	case <-ctx.Done():
		t.Fatal("input not received")
	}

	require.NoError(t, server.Close())
	require.False(t, server.Available())
	late := server.Send(protocol.NewInput(0, 0))
	require.True(t, late.Done())
	require.ErrorIs(t, late.Err(), protocol.ErrConnectionClosed)
}

func TestAcceptAfterClose(t *testing.T) {
	listener, err := Listen("127.0.0.1:0", nil, protocol.JSONCodec{}, Options{}, log.NewNop())
	require.NoError(t, err)
	require.NoError(t, listener.Close())
	require.NoError(t, listener.Close())

	_, err = listener.Accept(context.Background())
	require.ErrorIs(t, err, protocol.ErrTransportClosed)
}
