package main

import (
	"log/slog"
	"os"

	"github.com/ffx64/presence-bridge/bridge"
	"github.com/ffx64/presence-bridge/internal/config"
	"github.com/ffx64/presence-bridge/transport/ipc"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	endpoint   string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "presence-bridge",
	Short: "Relay Discord Rich Presence and remote-control events for a music player",
	Long: `presence-bridge runs the single process that owns the Discord Rich Presence
connection and lets other processes drive it, and connects remote-control
surfaces to a player's primary process.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Verbose = true
		}
		if endpoint != "" {
			cfg.Bridge.Endpoint = endpoint
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "bridge socket or pipe name (overrides config)")

	// Add subcommands (alphabetical)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(quitCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(statusCmd)
}

func bridgeEndpoint() string {
	return ipc.UserScoped(cfg.Bridge.Endpoint)
}

func dialBridge() (*bridge.Client, error) {
	return bridge.Dial(bridgeEndpoint())
}
