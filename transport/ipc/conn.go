package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("connection closed")

// Conn carries length-prefixed frames over a local socket or pipe.
// Writes are serialized; Receive must only be called from one goroutine.
type Conn struct {
	conn   net.Conn
	mu     sync.Mutex
	closed bool
	reader *bufio.Reader
}

func NewConn(c net.Conn) *Conn {
	return &Conn{
		conn:   c,
		reader: bufio.NewReader(c),
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Conn) SendRaw(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	_, err := c.conn.Write(b)
	return err
}

func (c *Conn) SendOp(op OpCode, payload any) error {
	data, err := EncodeFrameOp(op, payload)
	if err != nil {
		return err
	}
	return c.SendRaw(data)
}

func (c *Conn) Receive() (OpCode, json.RawMessage, error) {
	return ReadFrame(c.reader)
}

func BuildDispatchPayload(cmd string, args any) map[string]any {
	return map[string]any{
		"cmd":   cmd,
		"args":  args,
		"nonce": uuid.NewString(),
	}
}

// ActivityArgsWithPid builds SET_ACTIVITY args. A nil activity clears the
// presence on Discord's side.
func ActivityArgsWithPid(activity any) map[string]any {
	args := map[string]any{"pid": os.Getpid()}
	if activity != nil {
		args["activity"] = activity
	}
	return args
}
