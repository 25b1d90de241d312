package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/emberlock/emberlock/internal/core/sync"
)

// Config holds server configuration.
type Config struct {
	// Network settings
	ListenAddr string `yaml:"listen_addr"`
	// WSAddr enables the WebSocket gateway when non-empty.
	WSAddr string `yaml:"ws_addr"`

	// Simulation settings
	TickInterval time.Duration `yaml:"tick_interval"`
	ViewDistance int           `yaml:"view_distance"`
	Capacity     int           `yaml:"capacity"`

	// Spawn point for new sessions
	SpawnX      int   `yaml:"spawn_x"`
	SpawnZ      int   `yaml:"spawn_z"`
	SpawnHeight uint8 `yaml:"spawn_height"`

	// Client I/O
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   ":43594",
		TickInterval: 600 * time.Millisecond,
		ViewDistance: sync.DefaultViewDistance,
		Capacity:     2048,
		SpawnX:       3222,
		SpawnZ:       3218,
		SpawnHeight:  0,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
		LogLevel:     "info",
	}
}

// LoadConfig reads a yaml config file over the defaults. An empty path
// returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr is empty", ErrInvalidConfig)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick_interval must be positive", ErrInvalidConfig)
	}
	if c.Capacity < 2 {
		return fmt.Errorf("%w: capacity must be at least 2", ErrInvalidConfig)
	}
	return nil
}
