// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Practice PracticeConfig `toml:"practice"`
	Daemon   DaemonConfig   `toml:"daemon"`
	Log      LogConfig      `toml:"log"`
}

// PracticeConfig maps provisioning settings.
type PracticeConfig struct {
	Difficulty     *string `toml:"difficulty"`
	Collection     *string `toml:"collection"`
	IncludePremium *bool   `toml:"include-premium"`
}

// DaemonConfig maps daemon settings.
type DaemonConfig struct {
	Listen             *string  `toml:"listen"`
	CatalogURL         *string  `toml:"catalog-url"`
	CatalogRPS         *float64 `toml:"catalog-rps"`
	EscalatedMaxCycles *int     `toml:"escalated-max-cycles"`
	Session            *string  `toml:"session"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
