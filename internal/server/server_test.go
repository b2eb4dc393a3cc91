package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zeusync/reefrush/internal/core/config"
	"github.com/zeusync/reefrush/internal/core/effects"
	"github.com/zeusync/reefrush/internal/core/env"
	"github.com/zeusync/reefrush/internal/core/field"
	"github.com/zeusync/reefrush/internal/core/models"
	"github.com/zeusync/reefrush/internal/core/observability/log"
	"github.com/zeusync/reefrush/internal/core/protocol"
	"github.com/zeusync/reefrush/internal/core/protocol/websocket"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Field.Width = 800
	cfg.Field.Height = 600
	cfg.Field.SpawnEvery = 0
	cfg.Broadcast.EveryTicks = 1
	return cfg
}

func startServer(t *testing.T, cfg config.Config) (*Server, string) {
	t.Helper()
	s, err := New(env.Nop(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Start(ctx))

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		require.NoError(t, s.Close())
		ts.Close()
	})
	return s, ts.URL
}

type testClient struct {
	conn     *websocket.Connection
	messages chan protocol.Message
}

func dial(t *testing.T, baseURL string) *testClient {
	t.Helper()
	conn, err := websocket.Dial(context.Background(), "ws"+strings.TrimPrefix(baseURL, "http")+"/ws",
		protocol.JSONCodec{}, websocket.Options{}, log.NewNop())
	require.NoError(t, err)

	c := &testClient{conn: conn, messages: make(chan protocol.Message, 1024)}
	go func() {
		_ = conn.ReadLoop(context.Background(), func(msg protocol.Message) {
			select {
			case c.messages <- msg:
			default:
			}
		})
	}()
	t.Cleanup(func() { _ = conn.Close() })
	return c
}

// next returns the next message of type want, skipping others.
func (c *testClient) next(t *testing.T, want protocol.Type) protocol.Message {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg := <-c.messages:
			if msg.Type == want {
				return msg
			}
		case <-timeout:
			t.Fatalf("no %s message received", want)
		}
	}
}

// awaitEntity reads snapshots until one carries the player id.
func (c *testClient) awaitEntity(t *testing.T, id models.EntityID) {
	t.Helper()
	for {
		snap := c.next(t, protocol.TypeSnapshot).Snapshot
		for _, e := range snap.Entities {
			if e.ID == id {
				require.Equal(t, models.KindPlayer, e.Kind)
				return
			}
		}
	}
}

func TestJoinSteerLeave(t *testing.T) {
	s, url := startServer(t, testConfig())
	c := dial(t, url)

	welcome := c.next(t, protocol.TypeWelcome).Welcome
	require.Equal(t, 800.0, welcome.Width)
	require.Equal(t, 60, welcome.TicksPerSecond)
	id := welcome.EntityID

	c.awaitEntity(t, id)

	// Input before hello is dropped by the handshake middleware.
	require.NoError(t, c.conn.SendSync(protocol.NewInput(0, 1)))
	require.NoError(t, c.conn.SendSync(protocol.NewHello("nemo", "session-1")))
	require.NoError(t, c.conn.SendSync(protocol.NewInput(1, 0)))

	player, ok := s.Field().Entities().Get(id)
	require.True(t, ok)
	require.Eventually(t, func() bool { return player.Movement().DirX == 1 }, 5*time.Second, time.Millisecond)
	require.Equal(t, 0.0, player.Movement().DirY)
	require.Equal(t, int64(1), s.Stats().Clients)

	players := s.Stats().Players
	require.Len(t, players, 1)
	require.Equal(t, "nemo", players[0].Name)
	require.Equal(t, "session-1", players[0].Session)
	require.Equal(t, "websocket", players[0].Transport)
	require.True(t, players[0].Joined)
	require.Equal(t, id, players[0].EntityID)

	require.NoError(t, c.conn.Close())
	require.Eventually(t, func() bool {
		return s.Stats().Clients == 0 && !s.Field().Entities().Contains(id)
	}, 5*time.Second, time.Millisecond)
}

func TestEatenPlayerRespawns(t *testing.T) {
	s, url := startServer(t, testConfig())
	c := dial(t, url)

	first := c.next(t, protocol.TypeWelcome).Welcome.EntityID
	c.awaitEntity(t, first)

	player, _ := s.Field().Entities().Get(first)
	player.Kill()

	second := c.next(t, protocol.TypeWelcome).Welcome.EntityID
	require.NotEqual(t, first, second)
	require.Eventually(t, func() bool { return s.Field().Entities().Contains(second) }, 5*time.Second, time.Millisecond)
}

func TestPickupStartsTimedEffect(t *testing.T) {
	s, err := New(env.Nop(), testConfig())
	require.NoError(t, err)

	player := field.NewPlayer(1, 100, 100, 32)
	before := player.Movement().MaxSpeed
	listeners := s.listeners.Len()

	s.onPickup(player, models.NewEntity(2, models.KindPowerUp, effects.SpeedBoost, models.Bounds{}, models.Movement{}))
	require.Greater(t, player.Movement().MaxSpeed, before)
	require.Equal(t, listeners+1, s.listeners.Len())
	require.Equal(t, uint64(1), s.Stats().PowerUps)

	s.onPickup(player, models.NewEntity(3, models.KindPowerUp, "teleport", models.Bounds{}, models.Movement{}))
	require.Equal(t, uint64(1), s.Stats().PowerUps)
}

func TestHealthEndpoint(t *testing.T) {
	_, url := startServer(t, testConfig())

	resp, err := http.Get(url + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Equal(t, "running", stats.State)
	require.Empty(t, stats.Players)
}

func TestLifecycleErrors(t *testing.T) {
	s, err := New(env.Nop(), testConfig())
	require.NoError(t, err)
	ctx := context.Background()

	require.ErrorIs(t, s.Stop(ctx), ErrServerNotRunning)
	require.NoError(t, s.Start(ctx))
	require.ErrorIs(t, s.Start(ctx), ErrServerAlreadyRunning)
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Start(ctx), ErrServerClosed)

	bad := testConfig()
	bad.Broadcast.Codec = "xml"
	_, err = New(env.Nop(), bad)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
