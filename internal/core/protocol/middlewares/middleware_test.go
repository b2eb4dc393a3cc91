package middlewares

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zeusync/reefrush/internal/core/observability/log"
	"github.com/zeusync/reefrush/internal/core/protocol"
)

func TestChainRequiresHelloFirst(t *testing.T) {
	handshake := NewHandshakeMiddleware(log.NewNop())
	metrics := NewMetricsMiddleware()
	chain := NewChain(metrics, handshake, NewLoggingMiddleware(log.NewNop()))
	peer := Peer{ID: "p1", ConnectedAt: time.Now()}
	ctx := context.Background()

	handled := 0
	handler := func(context.Context, Peer, protocol.Message) error {
		handled++
		return nil
	}

	chain.Connect(ctx, peer)
	require.ErrorIs(t, chain.Handle(ctx, peer, protocol.NewInput(1, 0), handler), ErrHelloRequired)
	require.Equal(t, 0, handled)

	require.NoError(t, chain.Handle(ctx, peer, protocol.NewHello("nemo", "s-1"), handler))
	require.NoError(t, chain.Handle(ctx, peer, protocol.NewInput(1, 0), handler))
	require.Equal(t, 2, handled)

	session, ok := handshake.Session("p1")
	require.True(t, ok)
	require.Equal(t, "s-1", session)

	got := metrics.GetMetrics()
	require.Equal(t, int64(2), got[protocol.TypeInput].Count)
	require.Equal(t, int64(1), got[protocol.TypeInput].Errors)
	require.Equal(t, int64(1), got[protocol.TypeHello].Count)

	chain.Disconnect(ctx, peer, "closed")
	_, ok = handshake.Session("p1")
	require.False(t, ok)
}

func TestChainReportsHandlerError(t *testing.T) {
	metrics := NewMetricsMiddleware()
	chain := NewChain(metrics)
	boom := errors.New("boom")

	err := chain.Handle(context.Background(), Peer{ID: "p"}, protocol.NewInput(0, 0),
		func(context.Context, Peer, protocol.Message) error { return boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, int64(1), metrics.GetMetrics()[protocol.TypeInput].Errors)
}

func TestRateLimitPerWindow(t *testing.T) {
	m := NewRateLimitMiddleware(log.NewNop(), 3, time.Second)
	now := time.Unix(100, 0)
	m.now = func() time.Time { return now }
	peer := Peer{ID: "p"}
	ctx := context.Background()
	msg := protocol.NewInput(0, 1)

	m.OnConnect(ctx, peer)
	for i := 0; i < 3; i++ {
		require.NoError(t, m.BeforeHandle(ctx, peer, msg))
	}
	require.ErrorIs(t, m.BeforeHandle(ctx, peer, msg), ErrRateLimited)
	require.NoError(t, m.BeforeHandle(ctx, Peer{ID: "other"}, msg))

	now = now.Add(1500 * time.Millisecond)
	require.NoError(t, m.BeforeHandle(ctx, peer, msg))
}

func TestChainOrdersByPriority(t *testing.T) {
	chain := NewChain(NewMetricsMiddleware(), nil, NewLoggingMiddleware(log.NewNop()), NewRateLimitMiddleware(log.NewNop(), 0, time.Second))
	var names []string
	for _, m := range chain.middlewares {
		names = append(names, m.Name())
	}
	require.Equal(t, []string{"logging", "rate_limit", "metrics"}, names)
}
