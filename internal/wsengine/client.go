// Package wsengine is the WebSocket stream core shared by every venue
// adapter: Client owns exactly one physical connection with heartbeat
// liveness detection and reconnect backoff; Manager multiplexes that one
// socket into many channel-keyed logical subscriptions. Adapters talk to
// Manager, never to Client or gorilla/websocket directly.
package wsengine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// State is one of the four lifecycle states a Client moves through.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// HeartbeatConfig tunes ping/pong liveness detection. Disabled entirely by
// setting Disabled=true; otherwise zero values fall back to spec defaults.
type HeartbeatConfig struct {
	Disabled bool
	Interval time.Duration // default 30s
	Timeout  time.Duration // default 10s
}

func (c HeartbeatConfig) withDefaults() HeartbeatConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// ReconnectConfig tunes the exponential-backoff reconnect policy, the same
// shape as transport.RetryConfig with independent parameters.
type ReconnectConfig struct {
	InitialDelay time.Duration // default 1s
	MaxDelay     time.Duration // default 30s
	Multiplier   float64       // default 2
	Jitter       float64       // default 0.1

	// MaxAttempts bounds consecutive reconnect failures before the client
	// gives up permanently. nil selects the documented default of 10;
	// an explicit 0 means unlimited attempts.
	MaxAttempts *int
}

func (c ReconnectConfig) withDefaults() ReconnectConfig {
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.Jitter <= 0 {
		c.Jitter = 0.1
	}
	if c.MaxAttempts == nil {
		ten := 10
		c.MaxAttempts = &ten
	}
	return c
}

func (c ReconnectConfig) unlimited() bool {
	return c.MaxAttempts != nil && *c.MaxAttempts == 0
}

// Metrics is a point-in-time snapshot of a Client's counters.
type Metrics struct {
	MessagesReceived  int64
	MessagesSent      int64
	ReconnectAttempts int64
	State             State
	ConnectedSince    time.Time
}

// Config configures a Client. URL, OnMessage, and Venue are required.
type Config struct {
	URL   string
	Venue string

	Heartbeat HeartbeatConfig
	Reconnect ReconnectConfig

	// OnMessage is called for every inbound frame, on the read goroutine.
	// It must not block for long — Manager's implementation enqueues onto
	// bounded per-subscription channels and returns immediately.
	OnMessage func(raw []byte)

	// OnStateChange is called whenever the client's State transitions.
	OnStateChange func(State)

	// OnReconnect is called after a successful reconnect, once the socket
	// is Connected again and before the read loop resumes — Manager uses
	// this to resend subscribe payloads in insertion order.
	OnReconnect func()

	Logger *slog.Logger
}

// Client owns one physical WebSocket connection with reconnect and
// heartbeat. It has no notion of logical subscriptions — that is Manager's
// job, layered on top via OnMessage/OnReconnect/Send.
type Client struct {
	cfg Config

	connMu sync.Mutex
	conn   *websocket.Conn

	state         atomic.Int32
	shouldReconn  atomic.Bool
	connectedAt   atomic.Value // time.Time

	messagesRecv atomic.Int64
	messagesSent atomic.Int64
	reconnects   atomic.Int64

	logger *slog.Logger
	rng    *rand.Rand

	runCancel context.CancelFunc
	runDone   chan struct{}
}

// New constructs a Client. Call Connect to start it.
func New(cfg Config) *Client {
	cfg.Heartbeat = cfg.Heartbeat.withDefaults()
	cfg.Reconnect = cfg.Reconnect.withDefaults()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "wsengine", "venue", cfg.Venue)

	c := &Client{cfg: cfg, logger: logger, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	c.connectedAt.Store(time.Time{})
	return c
}

// Connect dials the socket and blocks until the first connection succeeds
// or ctx is done, then runs reconnect/heartbeat management in the
// background until Disconnect is called.
func (c *Client) Connect(ctx context.Context) error {
	c.shouldReconn.Store(true)
	c.setState(Connecting)

	runCtx, cancel := context.WithCancel(context.Background())
	c.runCancel = cancel
	c.runDone = make(chan struct{})

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(Disconnected)
		cancel()
		return fmt.Errorf("connect: %w", err)
	}

	c.adopt(conn)
	go c.run(runCtx)
	return nil
}

// Disconnect marks the client as no-longer-reconnecting, closes the socket,
// and stops heartbeat/reconnect goroutines. Safe to call multiple times.
func (c *Client) Disconnect() error {
	c.shouldReconn.Store(false)
	if c.runCancel != nil {
		c.runCancel()
	}
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	c.setState(Disconnected)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Send writes a text frame. Returns an error if the socket isn't connected.
func (c *Client) Send(data []byte) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("wsengine: not connected")
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.messagesSent.Add(1)
	return nil
}

// State returns the client's current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// SnapshotMetrics returns the current counters and derived fields.
func (c *Client) SnapshotMetrics() Metrics {
	since, _ := c.connectedAt.Load().(time.Time)
	return Metrics{
		MessagesReceived:  c.messagesRecv.Load(),
		MessagesSent:      c.messagesSent.Load(),
		ReconnectAttempts: c.reconnects.Load(),
		State:             c.State(),
		ConnectedSince:    since,
	}
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(s)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	return conn, err
}

func (c *Client) adopt(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.connectedAt.Store(time.Now())
	c.setState(Connected)

	if !c.cfg.Heartbeat.Disabled {
		conn.SetPongHandler(func(string) error { return nil })
	}
}

// run owns the read loop, heartbeat, and reconnect-on-failure for the
// lifetime of the client after the first successful Connect.
func (c *Client) run(ctx context.Context) {
	defer close(c.runDone)

	attempt := 0
	for {
		pongCh := make(chan struct{}, 1)
		readCtx, readCancel := context.WithCancel(ctx)

		if !c.cfg.Heartbeat.Disabled {
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()
			if conn != nil {
				conn.SetPongHandler(func(string) error {
					select {
					case pongCh <- struct{}{}:
					default:
					}
					return nil
				})
				go c.heartbeatLoop(readCtx, pongCh, readCancel)
			}
		}

		err := c.readLoop(readCtx)
		readCancel()

		if ctx.Err() != nil {
			return
		}

		c.logger.Warn("websocket disconnected", "error", err)
		if !c.shouldReconn.Load() {
			c.setState(Disconnected)
			return
		}

		c.setState(Reconnecting)
		attempt++
		c.reconnects.Add(1)

		if !c.cfg.Reconnect.unlimited() && attempt > *c.cfg.Reconnect.MaxAttempts {
			c.logger.Error("max reconnect attempts exceeded", "attempts", attempt)
			c.setState(Disconnected)
			return
		}

		delay := reconnectDelay(c.cfg.Reconnect, attempt, c.rng)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		conn, dialErr := c.dial(ctx)
		if dialErr != nil {
			c.logger.Warn("reconnect dial failed", "error", dialErr, "attempt", attempt)
			// loop around: readLoop on a nil conn returns immediately with
			// an error, driving another backoff iteration.
			c.connMu.Lock()
			c.conn = nil
			c.connMu.Unlock()
			continue
		}

		attempt = 0
		c.adopt(conn)
		if c.cfg.OnReconnect != nil {
			c.cfg.OnReconnect()
		}
	}
}

func (c *Client) heartbeatLoop(ctx context.Context, pongCh <-chan struct{}, onDead context.CancelFunc) {
	ticker := time.NewTicker(c.cfg.Heartbeat.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("ping failed", "error", err)
				onDead()
				return
			}

			select {
			case <-pongCh:
				// disarmed
			case <-time.After(c.cfg.Heartbeat.Timeout):
				c.logger.Warn("heartbeat timeout, treating socket as dead")
				c.connMu.Lock()
				conn := c.conn
				c.conn = nil
				c.connMu.Unlock()
				if conn != nil {
					conn.Close()
				}
				onDead()
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return fmt.Errorf("wsengine: no active connection")
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.messagesRecv.Add(1)

		if c.cfg.OnMessage != nil {
			c.safeDispatch(msg)
		}
	}
}

// safeDispatch isolates OnMessage panics/errors from killing the read loop,
// per spec.md §4.3's "a failure in any downstream subscriber must not
// crash the client."
func (c *Client) safeDispatch(msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic in message handler", "recover", r)
		}
	}()
	c.cfg.OnMessage(msg)
}

func reconnectDelay(cfg ReconnectConfig, attempt int, rng *rand.Rand) time.Duration {
	base := float64(cfg.InitialDelay)
	for i := 1; i < attempt; i++ {
		base *= cfg.Multiplier
	}
	if max := float64(cfg.MaxDelay); base > max {
		base = max
	}
	jitterFactor := 1 - cfg.Jitter + rng.Float64()*2*cfg.Jitter
	return time.Duration(base * jitterFactor)
}

// isJSON reports whether raw parses as a JSON value, used by Manager to
// decide between structured and raw-string event emission.
func isJSON(raw []byte) bool {
	return json.Valid(raw)
}
