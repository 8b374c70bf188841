package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ffx64/presence-bridge/client"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const callTimeout = 10 * time.Second

var initCmd = &cobra.Command{
	Use:   "init [client-id]",
	Short: "Connect the host to Discord as the given application",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID := cfg.Discord.ClientID
		if len(args) == 1 {
			clientID = args[0]
		}
		if clientID == "" {
			return errors.New("no client id given and none configured")
		}
		c, err := dialBridge()
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
		defer cancel()
		handle, err := c.Initialize(ctx, clientID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), handle)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print whether the host is connected to Discord",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialBridge()
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
		defer cancel()
		connected, err := c.IsConnected(ctx)
		if err != nil {
			return err
		}
		if connected {
			fmt.Fprintln(cmd.OutOrStdout(), "connected")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "not connected")
		}
		return nil
	},
}

var activityFlags struct {
	kind       string
	state      string
	details    string
	largeImage string
	largeText  string
	smallImage string
	smallText  string
	startNow   bool
	duration   time.Duration
	buttons    []string
}

var activityTypes = map[string]client.ActivityType{
	"playing":   client.Playing,
	"listening": client.Listening,
	"watching":  client.Watching,
	"competing": client.Competing,
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Replace the displayed activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		act, err := buildActivity(time.Now())
		if err != nil {
			return err
		}
		return fireAndForget(func(c bridgeCommands) error { return c.SetActivity(act) })
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the displayed activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return fireAndForget(func(c bridgeCommands) error { return c.ClearActivity() })
	},
}

var quitCmd = &cobra.Command{
	Use:   "quit",
	Short: "Disconnect the host from Discord",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return fireAndForget(func(c bridgeCommands) error { return c.Quit() })
	},
}

func init() {
	f := setCmd.Flags()
	f.StringVar(&activityFlags.kind, "type", "listening", "activity type: playing, listening, watching, competing")
	f.StringVar(&activityFlags.state, "state", "", "state line, e.g. the artist")
	f.StringVar(&activityFlags.details, "details", "", "details line, e.g. the track title")
	f.StringVar(&activityFlags.largeImage, "large-image", "", "large image key or URL")
	f.StringVar(&activityFlags.largeText, "large-text", "", "large image tooltip")
	f.StringVar(&activityFlags.smallImage, "small-image", "", "small image key or URL")
	f.StringVar(&activityFlags.smallText, "small-text", "", "small image tooltip")
	f.BoolVar(&activityFlags.startNow, "start-now", false, "show elapsed time from now")
	f.DurationVar(&activityFlags.duration, "duration", 0, "show remaining time for a track of this length")
	f.StringArrayVar(&activityFlags.buttons, "button", nil, "button as label=url (repeatable, max 2)")
}

type bridgeCommands interface {
	SetActivity(activity any) error
	ClearActivity() error
	Quit() error
}

func fireAndForget(send func(c bridgeCommands) error) error {
	c, err := dialBridge()
	if err != nil {
		return err
	}
	defer c.Close()
	return send(c)
}

func buildActivity(now time.Time) (client.Activity, error) {
	kind, ok := activityTypes[strings.ToLower(activityFlags.kind)]
	if !ok {
		return client.Activity{}, errors.Errorf("unknown activity type %q", activityFlags.kind)
	}
	act := client.Activity{
		Type:    kind,
		State:   activityFlags.state,
		Details: activityFlags.details,
	}
	if activityFlags.largeImage != "" || activityFlags.smallImage != "" {
		act.Assets = &client.Assets{
			LargeImage: activityFlags.largeImage,
			LargeText:  activityFlags.largeText,
			SmallImage: activityFlags.smallImage,
			SmallText:  activityFlags.smallText,
		}
	}
	if activityFlags.startNow || activityFlags.duration > 0 {
		act.Timestamps = &client.Timestamps{Start: now.Unix()}
		if activityFlags.duration > 0 {
			act.Timestamps.End = now.Add(activityFlags.duration).Unix()
		}
	}
	for _, b := range activityFlags.buttons {
		label, url, ok := strings.Cut(b, "=")
		if !ok {
			return client.Activity{}, errors.Errorf("button %q is not label=url", b)
		}
		act.Buttons = append(act.Buttons, client.Button{Label: label, Url: url})
	}
	return act, nil
}
