package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ffx64/presence-bridge/internal/codec"
	"github.com/ffx64/presence-bridge/transport/ipc"
)

var (
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotConnected     = errors.New("not connected")
)

const (
	defaultReconnectInterval = time.Second
	maxReconnectAttempts     = 5
)

// Client is a Discord Rich Presence connection over the local IPC endpoint.
type Client struct {
	AppID     string
	transport *ipc.Conn
	mu        sync.Mutex

	verbose bool
	logger  *slog.Logger
	dial    func() (net.Conn, error)

	// event callbacks (unexported fields)
	onReady               func(map[string]any)
	onError               func(error)
	onClose               func()
	onActivityJoin        func(string)
	onActivitySpectate    func(string)
	onActivityJoinRequest func(map[string]any)

	pendingActivity   *Activity
	ready             bool
	activity          *Activity
	reconnect         bool
	reconnectInterval time.Duration
	closed            bool

	// gen changes on every Close so a pending reconnect can tell it is stale
	gen   uint64
	retry backoff.BackOff
}

func NewClient(appID string) *Client {
	return &Client{
		AppID:             appID,
		reconnect:         true,
		reconnectInterval: defaultReconnectInterval,
		logger:            slog.Default(),
		dial:              ipc.DialDiscord,
	}
}

func (c *Client) SetVerbose(v bool) {
	c.verbose = v
}

func (c *Client) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l
	}
}

// SetDialer replaces how the Discord endpoint is reached.
func (c *Client) SetDialer(dial func() (net.Conn, error)) {
	c.dial = dial
}

// SetReconnect toggles reconnecting after the connection to Discord drops.
func (c *Client) SetReconnect(enabled bool, interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnect = enabled
	if interval > 0 {
		c.reconnectInterval = interval
	}
}

func (c *Client) debug(msg string, args ...any) {
	if c.verbose {
		c.logger.Debug(msg, append([]any{"app_id", c.AppID}, args...)...)
	}
}

func (c *Client) OnReady(fn func(info map[string]any))                  { c.onReady = fn }
func (c *Client) OnError(fn func(err error))                            { c.onError = fn }
func (c *Client) OnClose(fn func())                                     { c.onClose = fn }
func (c *Client) OnActivityJoin(fn func(secret string))                 { c.onActivityJoin = fn }
func (c *Client) OnActivitySpectate(fn func(secret string))             { c.onActivitySpectate = fn }
func (c *Client) OnActivityJoinRequest(fn func(payload map[string]any)) { c.onActivityJoinRequest = fn }

func (c *Client) Connect() error {
	c.mu.Lock()
	if c.transport != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	gen := c.gen
	c.retry = nil
	c.mu.Unlock()
	return c.connect(gen, true)
}

// connect dials and sends the handshake. It gives up when Close ran after gen
// was read, and, unless reopen is set, when the client is closed.
func (c *Client) connect(gen uint64, reopen bool) error {
	nc, err := c.dial()
	if err != nil {
		return fmt.Errorf("dial ipc: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || (c.closed && !reopen) {
		_ = nc.Close()
		return ErrNotConnected
	}
	if c.transport != nil {
		_ = nc.Close()
		return ErrAlreadyConnected
	}

	conn := ipc.NewConn(nc)
	c.debug("connected to discord ipc")

	hs := map[string]any{"v": 1, "client_id": c.AppID}
	if err := conn.SendOp(ipc.OpHandshake, hs); err != nil {
		_ = conn.Close()
		return fmt.Errorf("handshake send: %w", err)
	}

	c.transport = conn
	c.closed = false
	c.ready = false
	// re-send the last activity once Discord is READY again
	if c.pendingActivity == nil && c.activity != nil {
		act := *c.activity
		c.pendingActivity = &act
	}

	go c.readLoop(conn)

	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.gen++
	c.retry = nil
	c.ready = false
	c.pendingActivity = nil
	conn := c.transport
	c.transport = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.debug("connection closed")
	return conn.Close()
}

// IsConnected reports whether the handshake completed and Discord sent READY.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport != nil && c.ready
}

// SetActivity replaces the displayed presence. Before READY the activity is
// queued and sent once Discord is ready.
func (c *Client) SetActivity(act Activity) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.activity = &act
	if !c.ready {
		c.pendingActivity = &act
		c.mu.Unlock()
		c.debug("activity queued until READY")
		return nil
	}
	conn := c.transport
	c.mu.Unlock()

	return c.sendActivity(conn, &act)
}

// ClearActivity removes the displayed presence.
func (c *Client) ClearActivity() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.activity = nil
	c.pendingActivity = nil
	if !c.ready {
		c.mu.Unlock()
		return nil
	}
	conn := c.transport
	c.mu.Unlock()

	return c.sendActivity(conn, nil)
}

// Activity returns the activity currently requested, or nil when cleared.
func (c *Client) Activity() *Activity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activity == nil {
		return nil
	}
	act := *c.activity
	return &act
}

func (c *Client) sendActivity(conn *ipc.Conn, act *Activity) error {
	if conn == nil {
		return ErrNotConnected
	}

	var args map[string]any
	if act == nil {
		args = ipc.ActivityArgsWithPid(nil)
	} else {
		args = ipc.ActivityArgsWithPid(act.payload())
	}
	payload := ipc.BuildDispatchPayload("SET_ACTIVITY", args)

	if c.verbose {
		if b, err := json.MarshalIndent(payload, "", "  "); err == nil {
			c.debug("outgoing SET_ACTIVITY payload", "payload", string(b))
		}
	}

	return conn.SendOp(ipc.OpFrame, payload)
}

func (c *Client) readLoop(conn *ipc.Conn) {
	for {
		op, raw, err := conn.Receive()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		switch op {
		case ipc.OpPing:
			_ = conn.SendOp(ipc.OpPong, raw)
			continue
		case ipc.OpClose:
			c.debug("discord closed the connection", "payload", string(raw))
			c.handleDisconnect(conn, closeError(raw))
			return
		}

		var doc map[string]any
		if err := codec.Unmarshal(raw, &doc); err != nil {
			c.logger.Warn("failed decode payload", "error", err)
			continue
		}

		if c.verbose {
			if b, err := json.MarshalIndent(doc, "", "  "); err == nil {
				c.debug("incoming frame payload", "payload", string(b))
			}
		}

		c.handleIncoming(conn, doc)
	}
}

func (c *Client) handleDisconnect(conn *ipc.Conn, err error) {
	var rejected *CloseError
	hard := errors.As(err, &rejected)

	c.mu.Lock()
	current := c.transport == conn
	if current {
		c.transport = nil
		c.ready = false
		if hard {
			c.closed = true
			c.pendingActivity = nil
		}
	}
	reconnect := c.reconnect
	gen := c.gen
	c.mu.Unlock()
	_ = conn.Close()

	// replaced or closed on purpose
	if !current {
		c.notifyClose()
		return
	}

	if c.onError != nil {
		c.onError(err)
	}
	if hard {
		c.logger.Warn("discord refused the connection", "app_id", c.AppID, "code", rejected.Code, "message", rejected.Message)
		c.notifyClose()
		return
	}
	c.logger.Warn("transport receive error", "error", err)
	if reconnect {
		c.tryReconnect(gen)
	} else {
		c.notifyClose()
	}
}

func (c *Client) notifyClose() {
	if c.onClose != nil {
		c.onClose()
	}
}

func (c *Client) handleIncoming(conn *ipc.Conn, doc map[string]any) {
	data := codec.Object(doc, "data")
	switch codec.String(doc, "evt") {
	case "READY":
		c.debug("event READY")
		c.mu.Lock()
		c.ready = true
		pa := c.pendingActivity
		c.pendingActivity = nil
		c.mu.Unlock()
		if c.onReady != nil {
			c.onReady(data)
		}
		if pa != nil {
			if err := c.sendActivity(conn, pa); err != nil {
				c.logger.Error("failed sending pending activity", "error", err)
			} else {
				c.debug("sent pending activity after READY")
			}
		}
	case "ERROR":
		err := fmt.Errorf("discord error %v: %s", data["code"], codec.String(data, "message"))
		if c.onError != nil {
			c.onError(err)
		}
	case "ACTIVITY_JOIN":
		if c.onActivityJoin != nil {
			c.onActivityJoin(codec.String(data, "secret"))
		}
	case "ACTIVITY_SPECTATE":
		if c.onActivitySpectate != nil {
			c.onActivitySpectate(codec.String(data, "secret"))
		}
	case "ACTIVITY_JOIN_REQUEST":
		if c.onActivityJoinRequest != nil {
			c.onActivityJoinRequest(data)
		}
	}
}

// tryReconnect waits and redials until a connection is up or the attempts
// run out. The schedule carries over connections that drop before READY.
func (c *Client) tryReconnect(gen uint64) {
	c.mu.Lock()
	if c.retry == nil {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = c.reconnectInterval
		b.Multiplier = 2
		b.RandomizationFactor = 0
		b.MaxElapsedTime = 0
		b.Reset()
		c.retry = backoff.WithMaxRetries(b, maxReconnectAttempts)
	}
	retry := c.retry
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		wait := retry.NextBackOff()
		c.mu.Unlock()
		if wait == backoff.Stop {
			c.logger.Error("failed to reconnect", "app_id", c.AppID, "attempts", maxReconnectAttempts)
			c.notifyClose()
			return
		}

		time.Sleep(wait)
		c.debug("reconnect attempt", "after", wait)
		err := c.connect(gen, false)
		switch {
		case err == nil, errors.Is(err, ErrAlreadyConnected):
			c.logger.Info("redialed discord, waiting for READY", "app_id", c.AppID)
			return
		case errors.Is(err, ErrNotConnected):
			return
		}
		c.logger.Warn("reconnect attempt failed", "error", err)
	}
}

// CloseError is Discord's reason for refusing or ending a connection.
type CloseError struct {
	Code    int
	Message string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("discord closed the connection (%d): %s", e.Code, e.Message)
}

func closeError(raw json.RawMessage) error {
	var doc map[string]any
	if err := codec.Unmarshal(raw, &doc); err != nil {
		return &CloseError{Message: string(raw)}
	}
	ce := &CloseError{Message: codec.String(doc, "message")}
	if n, ok := doc["code"].(json.Number); ok {
		code, _ := n.Int64()
		ce.Code = int(code)
	}
	return ce
}
