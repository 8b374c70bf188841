package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"

	"github.com/ffx64/presence-bridge/internal/codec"
	"github.com/ffx64/presence-bridge/transport/ipc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrClientClosed = errors.New("bridge client closed")

// Client is the UI-side end of the bridge. It is safe for concurrent use;
// the bridge itself does not order concurrent commands.
type Client struct {
	conn   *ipc.Conn
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]chan Response
	err     error
	done    chan struct{}
}

// Dial connects to a host listening on the local endpoint name.
func Dial(name string) (*Client, error) {
	nc, err := ipc.Dial(name)
	if err != nil {
		return nil, errors.Wrapf(err, "dial bridge %s", name)
	}
	return NewClient(nc, nil), nil
}

func NewClient(nc net.Conn, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		conn:    ipc.NewConn(nc),
		logger:  logger,
		pending: map[string]chan Response{},
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Initialize (re)connects the host to the presence service as clientID and
// returns the handle of the new connection.
func (c *Client) Initialize(ctx context.Context, clientID string) (string, error) {
	resp, err := c.do(ctx, Request{Kind: KindInitialize, ClientID: clientID})
	if err != nil {
		return "", err
	}
	return resp.Handle, nil
}

func (c *Client) IsConnected(ctx context.Context) (bool, error) {
	resp, err := c.do(ctx, Request{Kind: KindIsConnected})
	if err != nil {
		return false, err
	}
	return resp.Connected, nil
}

func (c *Client) ClearActivity() error {
	_, err := c.do(context.Background(), Request{Kind: KindClearActivity})
	return err
}

// SetActivity forwards activity as-is. It may be a json.RawMessage, raw JSON
// bytes or any value encoding/json can marshal.
func (c *Client) SetActivity(activity any) error {
	var raw json.RawMessage
	switch a := activity.(type) {
	case json.RawMessage:
		raw = a
	case []byte:
		raw = a
	default:
		b, err := codec.Marshal(activity)
		if err != nil {
			return errors.Wrap(err, "encode activity")
		}
		raw = b
	}
	_, err := c.do(context.Background(), Request{Kind: KindSetActivity, Activity: raw})
	return err
}

func (c *Client) Quit() error {
	_, err := c.do(context.Background(), Request{Kind: KindQuit})
	return err
}

func (c *Client) Close() error {
	c.fail(ErrClientClosed)
	return c.conn.Close()
}

// do waits for the host's answer only for kinds that expect one.
func (c *Client) do(ctx context.Context, req Request) (Response, error) {
	if req.Kind.AwaitsReply() {
		return c.call(ctx, req)
	}
	return Response{}, c.send(req)
}

// send writes req and returns without waiting for the host.
func (c *Client) send(req Request) error {
	req.ID = uuid.NewString()
	if err := c.closedErr(); err != nil {
		return err
	}
	return c.conn.SendOp(ipc.OpFrame, req)
}

func (c *Client) call(ctx context.Context, req Request) (Response, error) {
	req.ID = uuid.NewString()
	reply := make(chan Response, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return Response{}, err
	}
	c.pending[req.ID] = reply
	c.mu.Unlock()
	defer c.forget(req.ID)

	if err := c.conn.SendOp(ipc.OpFrame, req); err != nil {
		return Response{}, errors.Wrapf(err, "send %s", req.Kind)
	}

	select {
	case resp := <-reply:
		return resp, resp.err()
	case <-c.done:
		return Response{}, c.closedErr()
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	close(c.done)
}

func (c *Client) readLoop() {
	for {
		op, raw, err := c.conn.Receive()
		if err != nil {
			c.fail(errors.Wrap(err, "bridge connection lost"))
			return
		}
		if op != ipc.OpFrame {
			continue
		}
		var resp Response
		if err := codec.Unmarshal(raw, &resp); err != nil {
			c.logger.Warn("failed decode bridge response", "error", err)
			continue
		}

		c.mu.Lock()
		reply, ok := c.pending[resp.ID]
		c.mu.Unlock()
		if !ok {
			// fire-and-forget commands are answered too
			if resp.Error != "" {
				c.logger.Debug("bridge command failed", "kind", resp.Kind, "error", resp.Error)
			}
			continue
		}
		select {
		case reply <- resp:
		default:
		}
	}
}
