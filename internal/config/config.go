package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/verte-zerg/leetgulag/internal/model"
)

// Defaults for every configurable value.
const (
	DefaultDifficulty         = "all"
	DefaultCollection         = "all"
	DefaultListen             = "127.0.0.1:7878"
	DefaultCatalogURL         = "https://leetcode.com/graphql"
	DefaultCatalogRPS         = 1.0
	DefaultEscalatedMaxCycles = 0
	DefaultLogLevel           = "info"
)

// Config is the resolved daemon configuration.
type Config struct {
	Difficulty         string `validate:"omitempty,oneof=all easy medium hard"`
	Collection         string
	IncludePremium     bool
	Listen             string  `validate:"required,hostname_port"`
	CatalogURL         string  `validate:"required,url"`
	CatalogRPS         float64 `validate:"gt=0"`
	EscalatedMaxCycles int     `validate:"gte=0"`
	LogLevel           string  `validate:"omitempty,oneof=debug info warn error"`
	Session            string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Difficulty:         DefaultDifficulty,
		Collection:         DefaultCollection,
		Listen:             DefaultListen,
		CatalogURL:         DefaultCatalogURL,
		CatalogRPS:         DefaultCatalogRPS,
		EscalatedMaxCycles: DefaultEscalatedMaxCycles,
		LogLevel:           DefaultLogLevel,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges and that the practice settings parse.
func (c Config) Validate() error {
	c.Difficulty = strings.ToLower(strings.TrimSpace(c.Difficulty))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Settings(); err != nil {
		return err
	}
	return nil
}

// Settings converts the practice section into provisioning settings.
func (c Config) Settings() (model.Settings, error) {
	difficulty, err := model.ParseDifficulty(c.Difficulty)
	if err != nil {
		return model.Settings{}, err
	}
	collection, err := model.ParseCollection(c.Collection)
	if err != nil {
		return model.Settings{}, err
	}
	return model.Settings{
		Difficulty:     difficulty,
		Collection:     collection,
		IncludePremium: c.IncludePremium,
	}, nil
}

// SlogLevel maps the configured level name.
func (c Config) SlogLevel() slog.Level {
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

// Merge overlays the file values that are set onto c.
func (c Config) Merge(fc FileConfig) Config {
	setString(&c.Difficulty, fc.Practice.Difficulty)
	setString(&c.Collection, fc.Practice.Collection)
	if fc.Practice.IncludePremium != nil {
		c.IncludePremium = *fc.Practice.IncludePremium
	}
	setString(&c.Listen, fc.Daemon.Listen)
	setString(&c.CatalogURL, fc.Daemon.CatalogURL)
	if fc.Daemon.CatalogRPS != nil {
		c.CatalogRPS = *fc.Daemon.CatalogRPS
	}
	if fc.Daemon.EscalatedMaxCycles != nil {
		c.EscalatedMaxCycles = *fc.Daemon.EscalatedMaxCycles
	}
	setString(&c.LogLevel, fc.Log.Level)
	setString(&c.Session, fc.Daemon.Session)
	return c
}

func setString(target, value *string) {
	if value != nil {
		*target = *value
	}
}
