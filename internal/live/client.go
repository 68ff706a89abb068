package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/ignite/phishguard/internal/pkg/logger"
)

// ErrChannelUnavailable is surfaced when the client has exhausted its
// reconnect attempts. The channel stays in the error state until the
// operator retries manually; it is never retried silently forever.
var ErrChannelUnavailable = errors.New("live update channel unavailable")

// State is the client connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateError        State = "error"
)

const (
	// DefaultHeartbeat is the ping cadence while the channel is open.
	DefaultHeartbeat = 30 * time.Second
	// DefaultReconnectInterval is the fixed delay between reconnect
	// attempts after an abnormal closure.
	DefaultReconnectInterval = 5 * time.Second
	// DefaultMaxReconnects bounds automatic reconnect attempts before
	// the channel goes terminal.
	DefaultMaxReconnects = 5
)

// Client maintains a single persistent live-update connection. It
// authenticates once at connect time, heartbeats while open, reconnects
// on abnormal closure with a fixed interval up to a bounded attempt
// count, and re-subscribes its channels after every reconnect. All
// message handling happens on the read goroutine; the OnMessage callback
// must not block.
type Client struct {
	url    string
	origin string
	token  string

	heartbeat         time.Duration
	reconnectInterval time.Duration
	maxReconnects     int

	onMessage func(Message)
	onState   func(State)

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	channels       map[string]bool
	attempts       int
	reconnectTimer *time.Timer
	lastPong       time.Time
	closing        bool
	generation     int

	log *logger.Logger
}

// NewClient creates a live-update client for the given endpoint. The
// token is presented once at connect time.
func NewClient(url, origin, token string) *Client {
	return &Client{
		url:               url,
		origin:            origin,
		token:             token,
		heartbeat:         DefaultHeartbeat,
		reconnectInterval: DefaultReconnectInterval,
		maxReconnects:     DefaultMaxReconnects,
		state:             StateDisconnected,
		channels:          make(map[string]bool),
		log:               logger.Component("live-client"),
	}
}

// SetHeartbeat overrides the ping cadence.
func (c *Client) SetHeartbeat(d time.Duration) { c.heartbeat = d }

// SetReconnect overrides the reconnect interval and attempt bound.
func (c *Client) SetReconnect(interval time.Duration, maxAttempts int) {
	c.reconnectInterval = interval
	c.maxReconnects = maxAttempts
}

// OnMessage registers the inbound message callback.
func (c *Client) OnMessage(fn func(Message)) { c.onMessage = fn }

// OnStateChange registers the state transition callback.
func (c *Client) OnStateChange(fn func(State)) { c.onState = fn }

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the channel. Calling it from the error state is the
// manual retry path: the attempt counter resets.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.closing = false
	c.attempts = 0
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	return c.dial()
}

// Disconnect closes the channel client-side and cancels any pending
// reconnect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closing = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Subscribe adds a channel subscription. Subscriptions survive
// reconnects.
func (c *Client) Subscribe(channel string) error {
	c.mu.Lock()
	c.channels[channel] = true
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return websocket.JSON.Send(conn, Message{Type: MsgSubscribe, Channel: channel})
}

func (c *Client) dial() error {
	cfg, err := websocket.NewConfig(c.url, c.origin)
	if err != nil {
		c.fail()
		return err
	}
	if c.token != "" {
		cfg.Header.Set("Authorization", "Bearer "+c.token)
	}

	conn, err := websocket.DialConfig(cfg)
	if err != nil {
		c.log.Warn("dial failed", "error", err)
		if terminal := c.scheduleReconnect(); terminal {
			return fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
		}
		return err
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.attempts = 0
	c.lastPong = time.Now()
	c.generation++
	generation := c.generation
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	c.setStateLocked(StateOpen)
	c.mu.Unlock()

	for _, ch := range channels {
		websocket.JSON.Send(conn, Message{Type: MsgSubscribe, Channel: ch})
	}

	go c.readLoop(conn, generation)
	go c.heartbeatLoop(conn, generation)
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, generation int) {
	for {
		var msg Message
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			if err != io.EOF {
				c.log.Warn("receive failed", "error", err)
			}
			c.handleClosure(generation)
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg Message) {
	switch msg.Type {
	case MsgPong:
		c.mu.Lock()
		c.lastPong = time.Now()
		c.mu.Unlock()
	case MsgConnection, MsgSubscribed, MsgAnalyticsUpdate, MsgPlatformMetrics,
		MsgAlert, MsgNotification, MsgError:
		if c.onMessage != nil {
			c.onMessage(msg)
		}
	default:
		c.log.Debug("unrecognized frame type", "type", string(msg.Type))
	}
}

// heartbeatLoop sends a ping on every beat and force-reconnects when the
// last pong is older than twice the heartbeat interval. The upstream
// behavior of pinging without ever checking the pong left dead
// connections looking healthy.
func (c *Client) heartbeatLoop(conn *websocket.Conn, generation int) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		current := c.conn == conn && c.generation == generation
		stale := time.Since(c.lastPong) > 2*c.heartbeat
		c.mu.Unlock()

		if !current {
			return
		}
		if stale {
			c.log.Warn("pong overdue, forcing reconnect")
			conn.Close()
			return
		}
		if err := websocket.JSON.Send(conn, Message{Type: MsgPing}); err != nil {
			return
		}
	}
}

// handleClosure runs after the read loop exits. Client-initiated
// disconnects stop here; anything else is an abnormal closure and goes
// through the reconnect path.
func (c *Client) handleClosure(generation int) {
	c.mu.Lock()
	if c.closing || c.generation != generation {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.scheduleReconnect()
}

// scheduleReconnect arms the next redial, or reports that the channel
// has gone terminal because the attempt bound is spent.
func (c *Client) scheduleReconnect() bool {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return false
	}
	c.attempts++
	if c.attempts > c.maxReconnects {
		c.setStateLocked(StateError)
		c.mu.Unlock()
		c.log.Error("reconnect attempts exhausted", "attempts", c.maxReconnects)
		return true
	}
	attempt := c.attempts
	c.setStateLocked(StateConnecting)
	c.reconnectTimer = time.AfterFunc(c.reconnectInterval, func() { c.redial() })
	c.mu.Unlock()

	c.log.Info("reconnect scheduled", "attempt", attempt)
	return false
}

// redial preserves the attempt counter, unlike the manual Connect path.
func (c *Client) redial() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.mu.Unlock()
	c.dial()
}

func (c *Client) fail() {
	c.mu.Lock()
	c.setStateLocked(StateError)
	c.mu.Unlock()
}

func (c *Client) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.onState != nil {
		go c.onState(s)
	}
}

// Unavailable reports whether the channel is in its terminal error
// state.
func (c *Client) Unavailable() bool {
	return c.State() == StateError
}

// MarshalPayload is a helper for building typed payloads.
func MarshalPayload(v interface{}) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}
