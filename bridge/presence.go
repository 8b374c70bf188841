package bridge

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ffx64/presence-bridge/client"
	"github.com/pkg/errors"
)

// Presence is the host's single connection to the external presence service.
type Presence interface {
	Connect() error
	IsConnected() bool
	// SetActivity receives the caller's payload untouched.
	SetActivity(activity json.RawMessage) error
	ClearActivity() error
	Close() error
}

// Factory builds an unconnected Presence for a client id.
type Factory func(clientID string) Presence

// readyTimeout bounds how long Connect waits for Discord's READY event.
const readyTimeout = 10 * time.Second

type discordPresence struct {
	*client.Client
	ready chan struct{}
	fail  chan error
}

// DiscordFactory returns a Factory producing Discord RPC connections.
// reconnect controls whether a dropped connection is redialed.
func DiscordFactory(logger *slog.Logger, verbose, reconnect bool) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return func(clientID string) Presence {
		c := client.NewClient(clientID)
		c.SetLogger(logger)
		c.SetVerbose(verbose)
		c.SetReconnect(reconnect, 0)
		p := &discordPresence{
			Client: c,
			ready:  make(chan struct{}, 1),
			fail:   make(chan error, 1),
		}
		c.OnReady(func(map[string]any) {
			select {
			case p.ready <- struct{}{}:
			default:
			}
		})
		c.OnError(func(err error) {
			logger.Warn("discord rpc error", "client_id", clientID, "error", err)
			p.failed(err)
		})
		c.OnClose(func() {
			p.failed(client.ErrNotConnected)
		})
		return p
	}
}

func (p *discordPresence) failed(err error) {
	select {
	case p.fail <- err:
	default:
	}
}

// Connect returns once Discord accepted the handshake and sent READY, or as
// soon as Discord refuses or drops the connection.
func (p *discordPresence) Connect() error {
	if err := p.Client.Connect(); err != nil {
		return err
	}
	timer := time.NewTimer(readyTimeout)
	defer timer.Stop()
	select {
	case <-p.ready:
		return nil
	case err := <-p.fail:
		_ = p.Client.Close()
		return errors.Wrap(err, "discord handshake")
	case <-timer.C:
		_ = p.Client.Close()
		return errors.New("timed out waiting for discord READY")
	}
}

func (p *discordPresence) SetActivity(activity json.RawMessage) error {
	var act client.Activity
	if err := json.Unmarshal(activity, &act); err != nil {
		return errors.Wrap(err, "decode activity")
	}
	return p.Client.SetActivity(act)
}
