// Package client mirrors the server's ocean locally: it reconciles every
// snapshot into a field of its own, predicts the owned fish between
// snapshots and streams steering input back.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/reefrush/internal/core/config"
	"github.com/zeusync/reefrush/internal/core/env"
	"github.com/zeusync/reefrush/internal/core/events/bus"
	"github.com/zeusync/reefrush/internal/core/field"
	"github.com/zeusync/reefrush/internal/core/models"
	"github.com/zeusync/reefrush/internal/core/observability/log"
	"github.com/zeusync/reefrush/internal/core/protocol"
	"github.com/zeusync/reefrush/internal/core/protocol/quic"
	"github.com/zeusync/reefrush/internal/core/protocol/websocket"
	"github.com/zeusync/reefrush/internal/core/reconcile"
	"github.com/zeusync/reefrush/internal/core/scheduler"
)

var (
	ErrNotConnected     = errors.New("client not connected")
	ErrAlreadyConnected = errors.New("client already connected")
	ErrUnsupportedURL   = errors.New("unsupported server url")
)

type conn interface {
	protocol.Destination
	SendSync(msg protocol.Message) error
	ReadLoop(ctx context.Context, handle func(protocol.Message)) error
	Close() error
}

// Option configures a Client.
type Option func(*Client)

// WithAutopilot lets a bot steer the owned fish, re-deciding every n ticks.
func WithAutopilot(every int) Option {
	return func(c *Client) {
		c.autopilotEvery = every
	}
}

// WithInputEvery sets how many local ticks pass between input messages.
func WithInputEvery(ticks int) Option {
	return func(c *Client) {
		if ticks > 0 {
			c.inputEvery = ticks
		}
	}
}

// Stats are the client's counters.
type Stats struct {
	Snapshots uint64
	Stale     uint64
	Rejected  uint64
	Welcomes  uint64
	Entities  int
}

// Client is one player connected to a reefrush server.
type Client struct {
	env     env.Env
	config  config.Config
	logger  log.Log
	session string

	codec  protocol.Codec
	engine *reconcile.Engine
	conn   conn

	// Local simulation, built on the first welcome
	setupMu     sync.Mutex
	field       *field.Field
	listeners   *bus.Bus
	scheduler   *scheduler.Scheduler
	broadcaster *protocol.ReliableBroadcaster
	autopilot   *Autopilot
	ready       chan struct{}
	readyOnce   sync.Once

	inputEvery     int
	autopilotEvery int
	input          atomic.Pointer[protocol.Input]

	// Snapshot ordering
	snapMu   sync.Mutex
	lastTick uint64
	seenAny  bool

	snapshots atomic.Uint64
	stale     atomic.Uint64
	rejected  atomic.Uint64
	welcomes  atomic.Uint64
}

func New(e env.Env, cfg config.Config, opts ...Option) (*Client, error) {
	codec, err := protocol.CodecByName(cfg.Broadcast.Codec)
	if err != nil {
		return nil, err
	}
	c := &Client{
		env:        e,
		config:     cfg,
		logger:     e.Component("client"),
		session:    uuid.NewString(),
		codec:      codec,
		engine:     reconcile.New(e),
		ready:      make(chan struct{}),
		inputEvery: cfg.Broadcast.EveryTicks,
	}
	c.input.Store(&protocol.Input{})
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect dials the configured server and introduces the player. ws:// and
// wss:// use websockets, quic:// uses QUIC.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil {
		return ErrAlreadyConnected
	}
	u, err := url.Parse(c.config.Client.ServerURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedURL, err)
	}

	var cn conn
	switch u.Scheme {
	case "ws", "wss":
		cn, err = websocket.Dial(ctx, u.String(), c.codec,
			websocket.Options{WriteTimeout: c.config.Server.WriteTimeout}, c.logger)
	case "quic":
		cn, err = quic.Dial(ctx, u.Host, quic.ClientTLS(true), c.codec,
			quic.Options{WriteTimeout: c.config.Server.WriteTimeout}, c.logger)
	default:
		return fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, u.Scheme)
	}
	if err != nil {
		return err
	}

	if err = cn.SendSync(protocol.NewHello(c.config.Client.Name, c.session)); err != nil {
		_ = cn.Close()
		return err
	}
	c.conn = cn
	c.logger.Info("Connected",
		log.String("server", u.Redacted()),
		log.String("session", c.session),
		log.String("codec", c.codec.Name()))
	return nil
}

// Run reads from the server until the connection ends or ctx is done.
func (c *Client) Run(ctx context.Context) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	g, gctx := errgroup.WithContext(ctx)
	readCtx, cancel := context.WithCancel(gctx)

	g.Go(func() error {
		defer cancel()
		return c.conn.ReadLoop(readCtx, c.handle)
	})
	g.Go(func() error {
		<-readCtx.Done()
		_ = c.conn.Close()
		c.stopSimulation()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Ready is closed once the first welcome arrived.
func (c *Client) Ready() <-chan struct{} { return c.ready }

// Field is the local mirror. It is nil before the first welcome.
func (c *Client) Field() *field.Field {
	c.setupMu.Lock()
	defer c.setupMu.Unlock()
	return c.field
}

// Player is the owned fish, if the local mirror tracks it.
func (c *Client) Player() *models.Entity {
	f := c.Field()
	id := c.engine.Owned()
	if f == nil || id == 0 {
		return nil
	}
	e, ok := f.Entities().Get(id)
	if !ok {
		return nil
	}
	return e
}

// Steer records the steering intent and applies it to the owned fish at once.
func (c *Client) Steer(dx, dy float64) {
	c.input.Store(&protocol.Input{DirX: dx, DirY: dy})
	if p := c.Player(); p != nil {
		p.Steer(dx, dy)
	}
}

// Close drops the connection and stops the local simulation.
func (c *Client) Close() error {
	c.stopSimulation()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) Stats() Stats {
	s := Stats{
		Snapshots: c.snapshots.Load(),
		Stale:     c.stale.Load(),
		Rejected:  c.rejected.Load(),
		Welcomes:  c.welcomes.Load(),
	}
	if f := c.Field(); f != nil {
		s.Entities = f.Entities().Len()
	}
	return s
}

func (c *Client) handle(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeWelcome:
		c.onWelcome(*msg.Welcome)
	case protocol.TypeSnapshot:
		c.onSnapshot(*msg.Snapshot)
	default:
		c.logger.Debug("Ignoring message", log.String("message_type", string(msg.Type)))
	}
}

func (c *Client) onWelcome(w protocol.Welcome) {
	c.welcomes.Add(1)
	if prev := c.Player(); prev != nil {
		prev.SetLocallyOwned(false)
	}
	c.engine.Own(w.EntityID)

	if err := c.setup(w); err != nil {
		c.logger.Error("Local simulation failed to start", log.Error(err))
		return
	}
	if p := c.Player(); p != nil {
		p.SetLocallyOwned(true)
	}
	c.logger.Info("Welcomed", log.Int64("entity_id", int64(w.EntityID)))
	c.readyOnce.Do(func() { close(c.ready) })
}

// setup builds the local simulation on the first welcome.
func (c *Client) setup(w protocol.Welcome) error {
	c.setupMu.Lock()
	defer c.setupMu.Unlock()
	if c.field != nil {
		return nil
	}

	tps := w.TicksPerSecond
	if tps <= 0 {
		tps = scheduler.DefaultTickRate
	}
	c.field = field.New(c.env, w.Width, w.Height,
		field.WithTicksPerSecond(tps),
		field.WithViewport(c.config.Field.ViewportWidth, c.config.Field.ViewportHeight),
		field.WithCollisions(false),
	)
	c.listeners = bus.New(c.env)
	c.broadcaster = protocol.NewReliableBroadcaster(c.env)
	c.listeners.Register(protocol.NewPeriodicBroadcast(c.broadcaster, c.inputEvery,
		func() []protocol.Destination { return []protocol.Destination{c.conn} },
		func() (protocol.Message, bool) {
			in := c.input.Load()
			return protocol.NewInput(in.DirX, in.DirY), c.conn != nil
		},
	))
	if c.autopilotEvery > 0 {
		c.autopilot = NewAutopilot(c.field, c.Player, c, c.autopilotEvery)
		c.listeners.Register(c.autopilot)
	}
	c.scheduler = scheduler.New(c.env, c.field, c.listeners, scheduler.WithTickRate(tps))
	return c.scheduler.Start()
}

// onSnapshot reconciles a snapshot unless a newer one was already applied.
// QUIC delivers every message on its own stream, so snapshots may overtake
// each other.
func (c *Client) onSnapshot(s protocol.Snapshot) {
	f := c.Field()
	if f == nil {
		c.logger.Debug("Snapshot before welcome", log.Uint64("tick", s.Tick))
		return
	}

	c.snapMu.Lock()
	defer c.snapMu.Unlock()
	if c.seenAny && s.Tick <= c.lastTick {
		c.stale.Add(1)
		return
	}
	c.seenAny, c.lastTick = true, s.Tick

	res, err := c.engine.Reconcile(s, f)
	c.snapshots.Add(1)
	if err != nil {
		c.rejected.Add(uint64(res.Rejected))
		c.logger.Warn("Snapshot partially applied", log.Uint64("tick", s.Tick), log.Error(err))
	}
}

func (c *Client) stopSimulation() {
	c.setupMu.Lock()
	s := c.scheduler
	c.setupMu.Unlock()
	if s != nil {
		s.Stop()
	}
}
