// Package config loads the daemon's cards.yaml: which cards exist and
// how the HTTP surface is exposed.
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"timercard/internal/card"
)

// CardEntry names one card instance and carries its configuration.
type CardEntry struct {
	Name   string      `yaml:"name"`
	Config card.Config `yaml:",inline"`
}

// APIConfig configures the HTTP status surface.
type APIConfig struct {
	Port int `yaml:"port"`
}

// DaemonConfig is the cards.yaml structure.
type DaemonConfig struct {
	Cards []CardEntry `yaml:"cards"`
	API   APIConfig   `yaml:"api"`
}

// Loader reads and validates the daemon configuration file.
type Loader struct {
	path   string
	logger *zap.Logger
}

// NewLoader creates a loader for the given file path.
func NewLoader(path string, logger *zap.Logger) *Loader {
	return &Loader{
		path:   path,
		logger: logger.Named("config"),
	}
}

// Load reads, parses and validates the configuration file.
func (l *Loader) Load() (*DaemonConfig, error) {
	l.logger.Debug("Loading configuration", zap.String("path", l.path))

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg DaemonConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	l.logger.Info("Configuration loaded",
		zap.Int("cards", len(cfg.Cards)),
		zap.Int("api_port", cfg.API.Port))
	return &cfg, nil
}

func validate(cfg *DaemonConfig) error {
	if cfg.API.Port == 0 {
		cfg.API.Port = 8099
	}

	if len(cfg.Cards) == 0 {
		return fmt.Errorf("no cards configured")
	}

	seen := make(map[string]bool)
	for i := range cfg.Cards {
		entry := &cfg.Cards[i]
		if entry.Name == "" {
			return fmt.Errorf("card %d: name is required", i)
		}
		if seen[entry.Name] {
			return fmt.Errorf("card %q: duplicate name", entry.Name)
		}
		seen[entry.Name] = true

		typeName := entry.Config.Type
		if typeName != "" && card.Default.Get(typeName) == nil {
			return fmt.Errorf("card %q: unknown type %q", entry.Name, typeName)
		}
		entry.Config = entry.Config.Normalized()
	}

	return nil
}
