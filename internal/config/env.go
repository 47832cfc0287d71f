package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvDifficulty     = "LEETGULAG_DIFFICULTY"
	EnvCollection     = "LEETGULAG_COLLECTION"
	EnvIncludePremium = "LEETGULAG_INCLUDE_PREMIUM"
	EnvListen         = "LEETGULAG_LISTEN"
	EnvCatalogURL     = "LEETGULAG_CATALOG_URL"
	EnvLogLevel       = "LEETGULAG_LOG_LEVEL"
	EnvSession        = "LEETGULAG_SESSION"
)

// LoadEnvFile loads a dotenv file into the process environment.
// Variables already set win. Missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overlays LEETGULAG_* variables onto the file config.
func ApplyEnv(fc *FileConfig) error {
	envString(EnvDifficulty, &fc.Practice.Difficulty)
	envString(EnvCollection, &fc.Practice.Collection)
	envString(EnvListen, &fc.Daemon.Listen)
	envString(EnvCatalogURL, &fc.Daemon.CatalogURL)
	envString(EnvLogLevel, &fc.Log.Level)
	envString(EnvSession, &fc.Daemon.Session)
	if v, ok := os.LookupEnv(EnvIncludePremium); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvIncludePremium, err)
		}
		fc.Practice.IncludePremium = &b
	}
	return nil
}

func envString(name string, target **string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*target = &v
	}
}
