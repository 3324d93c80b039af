// Package config assembles the server configuration from defaults, an
// optional YAML file, DAMA_* environment variables, and command-line
// flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Config carries every tunable of the server process.
type Config struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	DiscoveryPort int    `yaml:"discoveryPort"`
	StatusAddr    string `yaml:"statusAddr"` // empty disables the HTTP status listener

	MaxPlayers int `yaml:"maxPlayers"`
	MaxRooms   int `yaml:"maxRooms"`

	TimeoutMs         int `yaml:"timeoutMs"`
	TimeoutGrace      int `yaml:"timeoutGrace"`
	TurnTimeoutMs     int `yaml:"turnTimeoutMs"`
	ReconnectWindowMs int `yaml:"reconnectWindowMs"`
}

// Defaults returns the stock configuration.
func Defaults() *Config {
	return &Config{
		Host:              "0.0.0.0",
		Port:              5000,
		DiscoveryPort:     5001,
		MaxPlayers:        10,
		MaxRooms:          5,
		TimeoutMs:         20000,
		TimeoutGrace:      1,
		TurnTimeoutMs:     60000,
		ReconnectWindowMs: 60000,
	}
}

// Load parses args (without the program name). A --config file, when
// given, is applied first, then DAMA_* environment variables, then the
// remaining flags, so flags win.
func Load(args []string) (*Config, error) {
	cfg := Defaults()

	if path := configPathFrom(args); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	fs := flag.NewFlagSet("dama-server", flag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "IPv4 address to bind")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "UDP port of the game endpoint")
	fs.IntVar(&cfg.DiscoveryPort, "discovery-port", cfg.DiscoveryPort, "UDP port of the discovery responder (0 disables)")
	fs.StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "listen address of the HTTP status endpoint (empty disables)")
	fs.IntVar(&cfg.MaxPlayers, "players", cfg.MaxPlayers, "maximum concurrent players")
	fs.IntVar(&cfg.MaxRooms, "rooms", cfg.MaxRooms, "maximum rooms")
	fs.IntVar(&cfg.TimeoutMs, "timeout-ms", cfg.TimeoutMs, "heartbeat timeout in milliseconds")
	fs.IntVar(&cfg.TimeoutGrace, "timeout-grace", cfg.TimeoutGrace, "heartbeat grace multiplier")
	fs.IntVar(&cfg.TurnTimeoutMs, "turn-timeout-ms", cfg.TurnTimeoutMs, "turn clock in milliseconds")
	fs.IntVar(&cfg.ReconnectWindowMs, "reconnect-window-ms", cfg.ReconnectWindowMs, "reconnect grace window in milliseconds")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// applyEnv overlays DAMA_* environment variables. Unparsable values are
// ignored, keeping the previous layer's setting.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("DAMA_HOST")); v != "" {
		c.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("DAMA_STATUS_ADDR")); v != "" {
		c.StatusAddr = v
	}
	envInt("DAMA_PORT", &c.Port)
	envInt("DAMA_DISCOVERY_PORT", &c.DiscoveryPort)
	envInt("DAMA_PLAYERS", &c.MaxPlayers)
	envInt("DAMA_ROOMS", &c.MaxRooms)
	envInt("DAMA_TIMEOUT_MS", &c.TimeoutMs)
	envInt("DAMA_TIMEOUT_GRACE", &c.TimeoutGrace)
	envInt("DAMA_TURN_TIMEOUT_MS", &c.TurnTimeoutMs)
	envInt("DAMA_RECONNECT_WINDOW_MS", &c.ReconnectWindowMs)
}

func envInt(key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("port must be in range 1-65535")
	}
	if c.DiscoveryPort < 0 || c.DiscoveryPort > 65535 {
		return errors.New("discovery port must be in range 0-65535")
	}
	if c.MaxPlayers < 1 {
		return errors.New("players limit must be >= 1")
	}
	if c.MaxRooms < 1 {
		return errors.New("rooms limit must be >= 1")
	}
	if c.TimeoutMs <= 0 {
		return errors.New("heartbeat timeout must be positive")
	}
	if c.TimeoutGrace < 1 {
		return errors.New("grace factor must be >= 1")
	}
	if c.TurnTimeoutMs <= 0 {
		return errors.New("turn timeout must be positive")
	}
	if c.ReconnectWindowMs <= 0 {
		return errors.New("reconnect window must be positive")
	}
	return nil
}

// EffectiveHeartbeat is the heartbeat timeout with the grace factor applied.
func (c *Config) EffectiveHeartbeat() time.Duration {
	return time.Duration(c.TimeoutMs*c.TimeoutGrace) * time.Millisecond
}

// TurnTimeout returns the turn clock as a duration.
func (c *Config) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutMs) * time.Millisecond
}

// ReconnectWindow returns the reconnect grace window as a duration.
func (c *Config) ReconnectWindow() time.Duration {
	return time.Duration(c.ReconnectWindowMs) * time.Millisecond
}

func configPathFrom(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--config" || a == "-config":
			if i+1 < len(args) {
				return strings.TrimSpace(args[i+1])
			}
		case strings.HasPrefix(a, "--config="):
			return strings.TrimSpace(strings.TrimPrefix(a, "--config="))
		case strings.HasPrefix(a, "-config="):
			return strings.TrimSpace(strings.TrimPrefix(a, "-config="))
		}
	}
	return ""
}
