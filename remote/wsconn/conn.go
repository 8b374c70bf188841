// Package wsconn carries remote surface events over a WebSocket.
package wsconn

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ffx64/presence-bridge/remote"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

var ErrNotConnected = errors.New("websocket not connected")

const writeWait = 10 * time.Second

// Conn is a remote.Transport dialing the primary process at URL.
type Conn struct {
	URL    string
	sink   remote.Sink
	dialer *websocket.Dialer
	logger *slog.Logger

	mu      sync.Mutex
	ws      *websocket.Conn
	writeMu sync.Mutex
}

var _ remote.Transport = (*Conn)(nil)

func New(url string, sink remote.Sink, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		URL:    url,
		sink:   sink,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws != nil {
		return nil
	}

	c.sink.SetConnectionState(remote.Connecting)
	ws, _, err := c.dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		c.sink.SetConnectionState(remote.Disconnected)
		return errors.Wrapf(err, "dial %s", c.URL)
	}
	c.ws = ws
	c.sink.SetConnectionState(remote.Connected)
	c.logger.Info("remote surface connected", "url", c.URL)

	go c.readLoop(ws)
	return nil
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			current := c.ws == ws
			if current {
				c.ws = nil
			}
			c.mu.Unlock()
			ws.Close()
			if current {
				c.logger.Info("remote surface disconnected", "url", c.URL, "error", err)
				c.sink.SetConnectionState(remote.Disconnected)
			}
			return
		}

		var ev remote.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("dropping malformed remote message", "error", err)
			continue
		}
		if ev.Name != remote.EventState {
			c.logger.Debug("ignoring remote event", "event", ev.Name)
			continue
		}
		var u remote.Update
		if err := json.Unmarshal(data, &u); err != nil {
			c.logger.Warn("dropping malformed state update", "error", err)
			continue
		}
		c.sink.ApplyUpdate(u)
	}
}

// Send writes ev without waiting for any acknowledgement.
func (c *Conn) Send(ctx context.Context, ev remote.Event) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	ws.SetWriteDeadline(deadline)
	return ws.WriteMessage(websocket.TextMessage, b)
}

func (c *Conn) Close() error {
	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()
	if ws == nil {
		return nil
	}

	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	c.sink.SetConnectionState(remote.Disconnected)
	return ws.Close()
}
