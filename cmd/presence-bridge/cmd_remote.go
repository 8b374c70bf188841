package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ffx64/presence-bridge/internal/config"
	"github.com/ffx64/presence-bridge/remote"
	"github.com/ffx64/presence-bridge/remote/prefs"
	"github.com/ffx64/presence-bridge/remote/wsconn"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const reconnectEvery = 5 * time.Second

var remoteURL string

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Act as a remote-control surface for the player",
}

var remoteWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Mirror the player's state until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runRemoteWatch,
}

var remoteSendCmd = &cobra.Command{
	Use:   "send <event> [key=value...]",
	Short: "Send one event to the player",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ev, err := parseEvent(args[0], args[1:])
		if err != nil {
			return err
		}
		store := newSurface()
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
		defer cancel()
		if err := store.Reconnect(ctx); err != nil {
			return err
		}
		return store.Send(ctx, ev)
	},
}

var remoteToggleCmd = &cobra.Command{
	Use:       "toggle <dark|image>",
	Short:     "Flip a display preference shared by all surfaces",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"dark", "image"},
	RunE: func(cmd *cobra.Command, args []string) error {
		store := newSurface()
		defer store.Close()
		var on bool
		switch args[0] {
		case "dark":
			on = store.ToggleDark()
		case "image":
			on = store.ToggleShowImage()
		default:
			return errors.Errorf("unknown preference %q", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %t\n", args[0], on)
		return nil
	},
}

var remoteNormalizeCmd = &cobra.Command{
	Use:   "normalize <image-url>",
	Short: "Print the image URL the proxy fallback would request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), remote.NormalizeImageURL(args[0]))
		return nil
	},
}

func init() {
	remoteCmd.PersistentFlags().StringVar(&remoteURL, "url", "", "player WebSocket URL (overrides config)")
	remoteCmd.AddCommand(remoteNormalizeCmd)
	remoteCmd.AddCommand(remoteSendCmd)
	remoteCmd.AddCommand(remoteToggleCmd)
	remoteCmd.AddCommand(remoteWatchCmd)
}

func newSurface() *remote.Store {
	url := remoteURL
	if url == "" {
		url = cfg.Remote.URL
	}
	store := remote.NewStore(prefs.Default(config.AppName), logger)
	store.Attach(wsconn.New(url, store, logger))
	return store
}

func runRemoteWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := newSurface()
	defer store.Close()
	out := cmd.OutOrStdout()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return prefs.Default(config.AppName).Watch(ctx, store.ApplyPrefs, logger)
	})
	g.Go(func() error {
		for connected := range remote.Watch(ctx, store, func(s remote.State) remote.ConnectionState { return s.Connection }) {
			if connected == remote.Disconnected {
				fmt.Fprintln(out, "Not connected. Reconnect.")
			} else {
				fmt.Fprintln(out, connected)
			}
		}
		return nil
	})
	g.Go(func() error {
		for line := range remote.Watch(ctx, store, describe) {
			if line != "" {
				fmt.Fprintln(out, line)
			}
		}
		return nil
	})
	g.Go(func() error {
		t := time.NewTicker(reconnectEvery)
		defer t.Stop()
		for {
			if err := store.Reconnect(ctx); err != nil {
				logger.Debug("remote reconnect failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
			}
		}
	})
	return g.Wait()
}

func describe(s remote.State) string {
	if s.NowPlaying == nil {
		return ""
	}
	status := "paused"
	if s.Playing {
		status = "playing"
	}
	line := fmt.Sprintf("[%s] %s - %s", status, s.NowPlaying.Artist, s.NowPlaying.Title)
	if s.ShowImage && s.NowPlaying.ImageURL != "" {
		line += " (" + s.NowPlaying.ImageURL + ")"
	}
	return line
}

// parseEvent turns CLI args into an event; numeric values are sent as numbers.
func parseEvent(name string, kv []string) (remote.Event, error) {
	ev := remote.Event{Name: name}
	for _, pair := range kv {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return remote.Event{}, errors.Errorf("payload %q is not key=value", pair)
		}
		if ev.Payload == nil {
			ev.Payload = map[string]any{}
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			ev.Payload[k] = n
		} else {
			ev.Payload[k] = v
		}
	}
	return ev, nil
}
