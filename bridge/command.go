// Package bridge relays presence commands from UI processes to the one host
// process that owns the Discord connection.
//
// Every command is a Request frame carrying a unique ID; the host answers
// with a Response echoing that ID. Initialize and IsConnected wait for the
// answer, the remaining commands return as soon as the frame is written.
package bridge

import (
	"encoding/json"
	"fmt"
)

// Kind names a bridge command. The values double as the logical channel
// names seen by the host.
type Kind string

const (
	KindInitialize    Kind = "discord-rpc-initialize"
	KindIsConnected   Kind = "discord-rpc-is-connected"
	KindClearActivity Kind = "discord-rpc-clear-activity"
	KindSetActivity   Kind = "discord-rpc-set-activity"
	KindQuit          Kind = "discord-rpc-quit"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInitialize, KindIsConnected, KindClearActivity, KindSetActivity, KindQuit:
		return true
	}
	return false
}

// AwaitsReply reports whether callers block for the host's response.
func (k Kind) AwaitsReply() bool {
	return k == KindInitialize || k == KindIsConnected
}

type Request struct {
	ID       string          `json:"id"`
	Kind     Kind            `json:"kind"`
	ClientID string          `json:"clientId,omitempty"`
	Activity json.RawMessage `json:"activity,omitempty"`
}

type Response struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	Handle    string `json:"handle,omitempty"`
	Connected bool   `json:"connected,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RemoteError is a failure reported by the host rather than the transport.
type RemoteError struct {
	Kind    Kind
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (r Response) err() error {
	if r.Error == "" {
		return nil
	}
	return &RemoteError{Kind: r.Kind, Message: r.Error}
}
