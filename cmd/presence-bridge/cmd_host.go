package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ffx64/presence-bridge/bridge"
	"github.com/ffx64/presence-bridge/transport/ipc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var hostClientID string

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Own the Discord connection and serve bridge commands",
	Args:  cobra.NoArgs,
	RunE:  runHost,
}

func init() {
	hostCmd.Flags().StringVar(&hostClientID, "client-id", "", "initialize with this Discord application id on startup")
}

func runHost(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := bridgeEndpoint()
	l, err := ipc.Listen(name)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", name)
	}
	defer ipc.Cleanup(name)

	host := bridge.NewHost(bridge.DiscordFactory(logger, cfg.Verbose, cfg.Discord.Reconnect), logger)
	logger.Info("presence bridge listening", "endpoint", name)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return host.Run(ctx) })
	g.Go(func() error { return bridge.Serve(ctx, l, host, logger) })

	clientID := hostClientID
	if clientID == "" {
		clientID = cfg.Discord.ClientID
	}
	if clientID != "" {
		g.Go(func() error {
			resp, err := host.Do(ctx, bridge.Request{Kind: bridge.KindInitialize, ClientID: clientID})
			if err != nil {
				return nil
			}
			if resp.Error != "" {
				logger.Warn("startup initialize failed", "client_id", clientID, "error", resp.Error)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("presence bridge stopped")
	return nil
}
