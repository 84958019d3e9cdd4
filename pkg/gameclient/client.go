package gameclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"session-service/domain"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

const (
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultMaxAttempts = 10
)

type Options struct {
	URL       string
	Header    http.Header
	Transport Transport

	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

type StateListener func(State)
type MessageListener func(domain.Envelope)

// Client keeps one logical session to the service alive across transport
// drops. Unexpected closes reconnect with exponential backoff; an
// intentional Disconnect stays down.
type Client struct {
	opts Options

	mu          sync.Mutex
	state       State
	conn        Conn
	attempts    int
	intentional bool
	reconnect   *time.Timer
	gen         int

	stateListeners   []StateListener
	messageListeners map[domain.MessageType][]MessageListener
	onConnected      []func()
	onDisconnected   []func()
}

func New(opts Options) *Client {
	if opts.Transport == nil {
		opts.Transport = NewWebsocketTransport()
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Client{
		opts:             opts,
		state:            StateDisconnected,
		messageListeners: make(map[domain.MessageType][]MessageListener),
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) OnStateChange(fn StateListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateListeners = append(c.stateListeners, fn)
}

// OnMessage registers a listener for one inbound message type. A
// listener panic is isolated; it never tears down the connection.
func (c *Client) OnMessage(t domain.MessageType, fn MessageListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageListeners[t] = append(c.messageListeners[t], fn)
}

func (c *Client) OnConnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnected = append(c.onConnected, fn)
}

// OnDisconnected fires on unexpected transport loss only; an intentional
// Disconnect is silent.
func (c *Client) OnDisconnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnected = append(c.onDisconnected, fn)
}

// Connect dials from Disconnected or Failed. The read loop runs until the
// transport drops or Disconnect is called.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected && c.state != StateFailed {
		c.mu.Unlock()
		return fmt.Errorf("connect from state %s", c.state)
	}
	c.intentional = false
	c.attempts = 0
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	return c.dial(ctx)
}

func (c *Client) dial(ctx context.Context) error {
	conn, err := c.opts.Transport.Dial(ctx, c.opts.URL, c.opts.Header)

	c.mu.Lock()
	if c.intentional {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		zap.L().Warn("Dial failed", zap.String("url", c.opts.URL), zap.Error(err))
		c.scheduleReconnectLocked(ctx)
		c.mu.Unlock()
		return err
	}

	c.conn = conn
	c.attempts = 0
	gen := c.gen
	c.setStateLocked(StateConnected)
	connected := append([]func(){}, c.onConnected...)
	c.mu.Unlock()

	for _, fn := range connected {
		safeCall(fn)
	}

	go c.readLoop(ctx, conn, gen)
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn Conn, gen int) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(ctx, gen, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var env domain.Envelope
	if err := env.Decode(data); err != nil {
		zap.L().Warn("Dropping malformed frame", zap.Error(err))
		return
	}

	c.mu.Lock()
	listeners := append([]MessageListener{}, c.messageListeners[env.Type]...)
	c.mu.Unlock()

	for _, fn := range listeners {
		l := fn
		safeCall(func() { l(env) })
	}
}

func (c *Client) handleClosed(ctx context.Context, gen int, cause error) {
	c.mu.Lock()
	if c.intentional || gen != c.gen {
		c.mu.Unlock()
		return
	}
	zap.L().Info("Connection lost", zap.Error(cause))
	c.conn = nil
	c.setStateLocked(StateReconnecting)
	disconnected := append([]func(){}, c.onDisconnected...)
	c.scheduleReconnectLocked(ctx)
	c.mu.Unlock()

	for _, fn := range disconnected {
		safeCall(fn)
	}
}

// scheduleReconnectLocked burns one attempt and arms the backoff timer,
// or gives up at the attempt cap. Caller holds c.mu.
func (c *Client) scheduleReconnectLocked(ctx context.Context) {
	c.attempts++
	if c.attempts > c.opts.MaxAttempts {
		c.setStateLocked(StateFailed)
		zap.L().Error("Reconnection attempts exhausted", zap.Int("attempts", c.opts.MaxAttempts))
		return
	}
	if c.state != StateReconnecting {
		c.setStateLocked(StateReconnecting)
	}

	delay := backoffDelay(c.attempts, c.opts.BaseDelay, c.opts.MaxDelay)
	zap.L().Info("Scheduling reconnect",
		zap.Int("attempt", c.attempts), zap.Duration("delay", delay))
	c.reconnect = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.intentional {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.dial(ctx)
	})
}

// backoffDelay doubles from base per attempt, bounded by max.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Disconnect tears the session down for good: the pending reconnect timer
// is cancelled and no disconnected notification fires.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.intentional = true
	c.gen++
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Send marshals and writes one envelope. Fails fast when not connected.
func (c *Client) Send(env domain.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != StateConnected || conn == nil {
		return fmt.Errorf("%w: state %s", domain.ErrNotConnected, state)
	}
	raw, err := env.Encode()
	if err != nil {
		return err
	}
	return conn.WriteMessage(raw)
}

func (c *Client) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	listeners := append([]StateListener{}, c.stateListeners...)
	go func() {
		for _, fn := range listeners {
			l := fn
			safeCall(func() { l(s) })
		}
	}()
}

func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("Listener panicked", zap.Any("panic", r))
		}
	}()
	fn()
}
