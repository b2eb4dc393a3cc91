// Package server runs the authoritative ocean: it simulates the field, feeds
// every connected client full snapshots and applies their steering input.
package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/reefrush/internal/core/config"
	"github.com/zeusync/reefrush/internal/core/effects"
	"github.com/zeusync/reefrush/internal/core/env"
	"github.com/zeusync/reefrush/internal/core/events/bus"
	"github.com/zeusync/reefrush/internal/core/field"
	"github.com/zeusync/reefrush/internal/core/models"
	"github.com/zeusync/reefrush/internal/core/observability/log"
	"github.com/zeusync/reefrush/internal/core/protocol"
	"github.com/zeusync/reefrush/internal/core/protocol/middlewares"
	"github.com/zeusync/reefrush/internal/core/protocol/quic"
	"github.com/zeusync/reefrush/internal/core/protocol/websocket"
	"github.com/zeusync/reefrush/internal/core/scheduler"
)

const (
	inputRateLimit  = 120
	shutdownTimeout = 5 * time.Second
)

// Server represents a reefrush game server
type Server struct {
	env    env.Env
	config config.Config
	logger log.Log

	// Simulation
	field       *field.Field
	listeners   *bus.Bus
	scheduler   *scheduler.Scheduler
	spawner     *field.Spawner
	broadcaster *protocol.ReliableBroadcaster
	snapshots   *protocol.PeriodicBroadcast

	// Transport
	codec     protocol.Codec
	upgrader  *websocket.Upgrader
	chain     *middlewares.Chain
	handshake *middlewares.HandshakeMiddleware
	metrics   *middlewares.MetricsMiddleware

	// Client management
	sessions    sync.Map // session ID -> *ClientSession
	owners      sync.Map // models.EntityID -> *ClientSession
	clientCount atomic.Int64
	sessionWG   sync.WaitGroup

	effectsStarted atomic.Uint64

	// Server state
	running atomic.Bool
	closed  atomic.Bool
}

// Stats is the health view served on /healthz.
type Stats struct {
	Clients    int64                                     `json:"clients"`
	Entities   int                                       `json:"entities"`
	Ticks      uint64                                    `json:"ticks"`
	State      string                                    `json:"state"`
	Listeners  int                                       `json:"listeners"`
	Eaten      uint64                                    `json:"eaten"`
	PowerUps   uint64                                    `json:"powerups"`
	Broadcasts protocol.BroadcastStats                   `json:"broadcasts"`
	Messages   map[protocol.Type]middlewares.TypeMetrics `json:"messages"`
	Players    []PlayerStats                             `json:"players"`
}

// PlayerStats describes one connected client.
type PlayerStats struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	Session   string          `json:"session,omitempty"`
	Transport string          `json:"transport"`
	Joined    bool            `json:"joined"`
	EntityID  models.EntityID `json:"entity_id,omitempty"`
}

// New wires a server from configuration.
func New(e env.Env, cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := protocol.CodecByName(cfg.Broadcast.Codec)
	if err != nil {
		return nil, err
	}

	s := &Server{
		env:    e,
		config: cfg,
		logger: e.Component("server"),
		codec:  codec,
	}

	s.field = field.New(e, cfg.Field.Width, cfg.Field.Height,
		field.WithTicksPerSecond(scheduler.DefaultTickRate),
		field.WithViewport(cfg.Field.ViewportWidth, cfg.Field.ViewportHeight),
		field.WithPickupHandler(s.onPickup),
		field.WithRemovalHandler(s.onRemoved),
	)
	s.listeners = bus.New(e)

	var variants []string
	for _, v := range effects.Variants() {
		if effects.Enabled(e, v) {
			variants = append(variants, v)
		}
	}
	s.spawner = field.NewSpawner(s.field, field.SpawnerConfig{
		Every:         cfg.Field.SpawnEvery,
		MaxEnemies:    cfg.Field.MaxEnemies,
		MinSize:       cfg.Field.PlayerSize / 3,
		MaxSize:       cfg.Field.PlayerSize * 3,
		PowerUpChance: 0.05,
		PowerUps:      variants,
	}, nil)
	if cfg.Field.SpawnEvery > 0 {
		s.listeners.Register(s.spawner)
	}

	s.broadcaster = protocol.NewReliableBroadcaster(e)
	s.snapshots = protocol.NewPeriodicBroadcast(s.broadcaster, cfg.Broadcast.EveryTicks, s.destinations, s.snapshot)
	s.listeners.Register(s.snapshots)

	s.scheduler = scheduler.New(e, s.field, s.listeners,
		scheduler.WithStateObserver(func(from, to scheduler.State) {
			s.logger.Debug("Simulation state changed", log.String("from", from.String()), log.String("to", to.String()))
		}),
	)

	s.metrics = middlewares.NewMetricsMiddleware()
	s.handshake = middlewares.NewHandshakeMiddleware(s.logger)
	s.chain = middlewares.NewChain(
		middlewares.NewLoggingMiddleware(s.logger),
		s.handshake,
		middlewares.NewRateLimitMiddleware(s.logger, inputRateLimit, time.Second),
		s.metrics,
	)
	s.upgrader = websocket.NewUpgrader(codec, websocket.Options{WriteTimeout: cfg.Server.WriteTimeout}, s.logger)

	s.logger.Info("Server created",
		log.String("listen_addr", cfg.Server.ListenAddr),
		log.String("codec", codec.Name()),
		log.Int("max_clients", cfg.Server.MaxClients))
	return s, nil
}

// Field exposes the simulated field.
func (s *Server) Field() *field.Field { return s.field }

// Scheduler exposes the simulation scheduler.
func (s *Server) Scheduler() *scheduler.Scheduler { return s.scheduler }

// Start starts the simulation and waits until it runs.
func (s *Server) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}
	s.logger.Info("Starting simulation")
	if err := s.scheduler.StartAndWait(ctx); err != nil {
		s.running.Store(false)
		return err
	}
	return nil
}

// Stop disconnects every client and stops the simulation.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrServerNotRunning
	}
	s.logger.Info("Stopping server")
	s.closeSessions()
	s.scheduler.Stop()
	if err := s.scheduler.StopAndWait(ctx); err != nil {
		return err
	}
	s.logger.Info("Server stopped", log.Uint64("ticks", s.scheduler.Ticks()))
	return nil
}

// Close stops the server if needed and makes it unusable.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}
	if s.running.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(ctx)
	}
	return nil
}

// ListenAndServe runs the simulation and serves the configured listeners
// until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Stop(stopCtx); err != nil && !errors.Is(err, ErrServerNotRunning) {
			s.logger.Warn("Stop failed", log.Error(err))
		}
	}()

	ln, err := net.Listen("tcp", s.config.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}

	var ql *quic.Listener
	if s.config.Server.QUICAddr != "" {
		ql, err = quic.Listen(s.config.Server.QUICAddr, nil, s.codec,
			quic.Options{WriteTimeout: s.config.Server.WriteTimeout}, s.logger)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("%w: %w", ErrListenerFailed, err)
		}
	}
	return s.Serve(ctx, ln, ql)
}

// Serve accepts websocket clients on ln and, when ql is not nil, QUIC clients
// on ql. It returns once ctx is done and every session has ended.
func (s *Server) Serve(ctx context.Context, ln net.Listener, ql *quic.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		s.logger.Info("Server listening", log.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%w: %w", ErrListenerFailed, err)
		}
		return nil
	})

	if ql != nil {
		g.Go(func() error { return s.acceptQUIC(gctx, ql) })
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if ql != nil {
			_ = ql.Close()
		}
		s.closeSessions()
		s.sessionWG.Wait()
		return nil
	})

	return g.Wait()
}

// acceptQUIC accepts incoming QUIC clients
func (s *Server) acceptQUIC(ctx context.Context, ql *quic.Listener) error {
	s.logger.Debug("Connection acceptor started")
	defer s.logger.Debug("Connection acceptor stopped")

	for {
		c, err := ql.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, protocol.ErrTransportClosed) {
				return nil
			}
			s.logger.Error("Failed to accept connection", log.Error(err))
			time.Sleep(100 * time.Millisecond)
			continue
		}
		s.sessionWG.Add(1)
		go func() {
			defer s.sessionWG.Done()
			s.handleSession(ctx, c, "quic")
		}()
	}
}

// Handler serves /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.running.Load() {
		http.Error(w, ErrServerNotRunning.Error(), http.StatusServiceUnavailable)
		return
	}
	if s.clientCount.Load() >= int64(s.config.Server.MaxClients) {
		s.logger.Warn("Maximum clients reached, rejecting connection", log.String("remote_addr", r.RemoteAddr))
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}
	c, err := s.upgrader.Upgrade(w, r)
	if err != nil {
		return
	}
	s.sessionWG.Add(1)
	defer s.sessionWG.Done()
	s.handleSession(r.Context(), c, "websocket")
}

// handleSession runs one client from join to leave.
func (s *Server) handleSession(ctx context.Context, c conn, transport string) {
	if s.clientCount.Add(1) > int64(s.config.Server.MaxClients) {
		s.clientCount.Add(-1)
		s.logger.Warn("Maximum clients reached, rejecting connection", log.String("remote_addr", c.RemoteAddr().String()))
		_ = c.Close()
		return
	}

	session := newSession(c, transport)
	s.chain.Connect(ctx, session.Peer)

	defer func() {
		s.sessions.Delete(session.ID)
		s.clientCount.Add(-1)
		s.broadcaster.Forget(session.ID)
		if e := session.entity.Swap(nil); e != nil {
			s.owners.Delete(e.ID())
			e.Kill()
		}
		_ = c.Close()
		s.chain.Disconnect(ctx, session.Peer, "connection closed")
	}()

	if err := s.spawnPlayer(session, true); err != nil {
		s.logger.Warn("Welcome failed", log.String("client_id", session.ID), log.Error(err))
		return
	}
	s.sessions.Store(session.ID, session)

	err := c.ReadLoop(ctx, func(msg protocol.Message) {
		_ = s.chain.Handle(ctx, session.Peer, msg, func(_ context.Context, _ middlewares.Peer, msg protocol.Message) error {
			return s.handleMessage(session, msg)
		})
	})
	if err != nil && ctx.Err() == nil {
		s.logger.Debug("Read loop ended", log.String("client_id", session.ID), log.Error(err))
	}
}

func (s *Server) handleMessage(session *ClientSession, msg protocol.Message) error {
	switch msg.Type {
	case protocol.TypeHello:
		name := msg.Hello.Name
		session.name.Store(&name)
		session.joined.Store(true)
		s.logger.Info("Player joined", log.String("client_id", session.ID), log.String("name", name))
		return nil
	case protocol.TypeInput:
		if e := session.Entity(); e != nil && !e.IsDead() {
			e.Steer(msg.Input.DirX, msg.Input.DirY)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s from client", ErrInvalidMessage, msg.Type)
	}
}

// spawnPlayer queues a new fish for the session and tells the client about
// it. The first welcome is written synchronously so it precedes any snapshot.
func (s *Server) spawnPlayer(session *ClientSession, blocking bool) error {
	size := s.config.Field.PlayerSize
	player := field.NewPlayer(s.field.NextID(),
		size+rand.Float64()*(s.field.Width()-2*size),
		size+rand.Float64()*(s.field.Height()-2*size),
		size)
	session.entity.Store(player)
	s.owners.Store(player.ID(), session)
	s.field.Queue(player)

	welcome := protocol.NewWelcome(protocol.Welcome{
		EntityID:       player.ID(),
		Width:          s.field.Width(),
		Height:         s.field.Height(),
		TicksPerSecond: s.field.TicksPerSecond(),
	})
	if blocking {
		return session.Conn.SendSync(welcome)
	}
	session.Conn.Send(welcome)
	return nil
}

// onRemoved runs on the simulation goroutine for every purged entity. A
// player eaten while its client is still connected gets a new fish.
func (s *Server) onRemoved(e *models.Entity) {
	if e.Kind() != models.KindPlayer {
		return
	}
	v, ok := s.owners.LoadAndDelete(e.ID())
	if !ok {
		return
	}
	session := v.(*ClientSession)
	if !session.entity.CompareAndSwap(e, nil) {
		return
	}
	if _, connected := s.sessions.Load(session.ID); !connected || !session.Conn.Available() {
		return
	}
	s.logger.Info("Player respawned", log.String("client_id", session.ID), log.Int64("eaten_entity", int64(e.ID())))
	_ = s.spawnPlayer(session, false)
}

// onPickup runs on the simulation goroutine when a player touches a power-up.
func (s *Server) onPickup(player, powerUp *models.Entity) {
	variant := powerUp.Variant()
	if !effects.Enabled(s.env, variant) {
		return
	}
	effect, err := effects.NewPowerUp(s.env, s.listeners, variant, s.field.TicksPerSecond())
	if err != nil {
		s.logger.Warn("Unknown power-up", log.String("variant", variant), log.Error(err))
		return
	}
	effect.SetTarget(player)
	if err = effect.ExecuteEffect(); err != nil {
		s.logger.Warn("Power-up not applied", log.String("variant", variant), log.Error(err))
		return
	}
	s.effectsStarted.Add(1)
}

func (s *Server) destinations() []protocol.Destination {
	var out []protocol.Destination
	s.sessions.Range(func(_, value any) bool {
		out = append(out, value.(*ClientSession).Conn)
		return true
	})
	return out
}

func (s *Server) snapshot() (protocol.Message, bool) {
	if s.clientCount.Load() == 0 {
		return protocol.Message{}, false
	}
	return protocol.NewSnapshotMessage(protocol.SnapshotOf(s.field.Entities(), s.scheduler.Ticks())), true
}

func (s *Server) closeSessions() {
	s.sessions.Range(func(_, value any) bool {
		_ = value.(*ClientSession).Conn.Close()
		return true
	})
}

// Stats collects the health counters.
func (s *Server) Stats() Stats {
	return Stats{
		Clients:    s.clientCount.Load(),
		Entities:   s.field.Entities().Len(),
		Ticks:      s.scheduler.Ticks(),
		State:      s.scheduler.State().String(),
		Listeners:  s.listeners.Len(),
		Eaten:      s.field.Eaten(),
		PowerUps:   s.effectsStarted.Load(),
		Broadcasts: s.broadcaster.Stats(),
		Messages:   s.metrics.GetMetrics(),
		Players:    s.players(),
	}
}

func (s *Server) players() []PlayerStats {
	var out []PlayerStats
	s.sessions.Range(func(_, value any) bool {
		cs := value.(*ClientSession)
		p := PlayerStats{
			ID:        cs.ID,
			Name:      cs.Name(),
			Transport: cs.Peer.Transport,
			Joined:    cs.Joined(),
		}
		p.Session, _ = s.handshake.Session(cs.ID)
		if e := cs.Entity(); e != nil {
			p.EntityID = e.ID()
		}
		out = append(out, p)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
