// Package config loads tool defaults from TOML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mcci-catena/catenaprov/internal/transport"
)

// Config stores run defaults loaded from TOML files. CLI flags override all
// of these.
type Config struct {
	Port       string
	BaudRate   int
	CharDelay  time.Duration
	Echo       bool
	Permissive bool
	// Variables are macro bindings applied before any -V flag.
	Variables map[string]string
}

type fileConfig struct {
	Port       *string           `toml:"port"`
	BaudRate   *int              `toml:"baud_rate"`
	CharDelay  *string           `toml:"char_delay"`
	Echo       *bool             `toml:"echo"`
	Permissive *bool             `toml:"permissive"`
	Variables  map[string]string `toml:"variables"`
}

// Load reads config from ~/.catenaprov/config.toml and overlays a
// project-local .catenaprov/config.toml from the working directory.
func Load() (*Config, error) {
	cfg := defaults()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	paths := []string{
		filepath.Join(homeDir, ".catenaprov", "config.toml"),
		filepath.Join(workingDir, ".catenaprov", "config.toml"),
	}

	for _, path := range paths {
		if err := overlayFromFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		BaudRate:  transport.DefaultBaudRate,
		Variables: map[string]string{},
	}
}

func overlayFromFile(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config must not be nil")
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config file %q: %w", path, err)
	}

	var decoded fileConfig
	if _, err := toml.DecodeFile(path, &decoded); err != nil {
		return fmt.Errorf("decode config file %q: %w", path, err)
	}

	if decoded.Port != nil {
		cfg.Port = *decoded.Port
	}
	if decoded.BaudRate != nil {
		if *decoded.BaudRate < transport.MinBaudRate {
			return fmt.Errorf("config file %q: baud rate too small: %d", path, *decoded.BaudRate)
		}
		cfg.BaudRate = *decoded.BaudRate
	}
	if decoded.CharDelay != nil {
		d, err := time.ParseDuration(*decoded.CharDelay)
		if err != nil {
			return fmt.Errorf("config file %q: parse char_delay: %w", path, err)
		}
		if d < 0 {
			return fmt.Errorf("config file %q: char_delay must not be negative", path)
		}
		cfg.CharDelay = d
	}
	if decoded.Echo != nil {
		cfg.Echo = *decoded.Echo
	}
	if decoded.Permissive != nil {
		cfg.Permissive = *decoded.Permissive
	}
	for name, value := range decoded.Variables {
		cfg.Variables[name] = value
	}

	return nil
}
