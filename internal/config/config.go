// Package config loads the presence-bridge TOML configuration.
package config

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/20after4/configdir"
	"github.com/pelletier/go-toml/v2"
	pkgerrors "github.com/pkg/errors"
)

const (
	AppName  = "presence-bridge"
	FileName = "config.toml"

	DefaultEndpoint = "presence-bridge.sock"
)

type BridgeConfig struct {
	// Endpoint is the unix socket (or named pipe on Windows) the host
	// listens on.
	Endpoint string
}

type DiscordConfig struct {
	ClientID  string
	Reconnect bool
}

type RemoteConfig struct {
	URL string
}

type Config struct {
	LogLevel string
	Verbose  bool
	Bridge   BridgeConfig
	Discord  DiscordConfig
	Remote   RemoteConfig
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Bridge: BridgeConfig{
			Endpoint: DefaultEndpoint,
		},
		Discord: DiscordConfig{
			Reconnect: true,
		},
		Remote: RemoteConfig{
			URL: "ws://127.0.0.1:4533/remote",
		},
	}
}

// DefaultPath is config.toml inside the user's config dir.
func DefaultPath() string {
	return filepath.Join(configdir.LocalConfig(AppName), FileName)
}

// Load reads path over the defaults, writing the defaults out when the file
// does not exist. Environment variables override both.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.NewDecoder(bytes.NewReader(b)).Decode(cfg); err != nil {
			return nil, pkgerrors.Wrapf(err, "parse %s", path)
		}
	case errors.Is(err, fs.ErrNotExist):
		if err := cfg.Write(path); err != nil {
			return nil, err
		}
	default:
		return nil, pkgerrors.Wrapf(err, "read %s", path)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PRESENCE_BRIDGE_CLIENT_ID"); v != "" {
		c.Discord.ClientID = v
	}
	if v := os.Getenv("PRESENCE_BRIDGE_SOCKET"); v != "" {
		c.Bridge.Endpoint = v
	}
	if v := os.Getenv("PRESENCE_BRIDGE_REMOTE_URL"); v != "" {
		c.Remote.URL = v
	}
	if v := os.Getenv("PRESENCE_BRIDGE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) Write(path string) error {
	if err := configdir.MakePath(filepath.Dir(path)); err != nil {
		return pkgerrors.Wrap(err, "create config directory")
	}
	b, err := toml.Marshal(c)
	if err != nil {
		return pkgerrors.Wrap(err, "marshal config")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return pkgerrors.Wrap(err, "write config")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return pkgerrors.Wrap(err, "rename config")
	}
	return nil
}

// Level maps LogLevel to a slog level; Verbose forces debug.
func (c *Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
