package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"carioca/internal/game/carioca"
)

// Config is everything the server reads at startup.
type Config struct {
	Addr            string
	DBPath          string
	LogLevel        string
	LogFormat       string // "json" or "console"
	CleanupInterval time.Duration
	SessionMaxAge   time.Duration
	Rules           carioca.Rules
}

// Load reads configuration from getenv, usually os.Getenv. A rules file named
// by RULES_PATH is applied first; the CARIOCA_* variables override it.
func Load(getenv func(string) string) (Config, error) {
	c := Config{
		Addr:            ":8080",
		DBPath:          "carioca.db",
		LogLevel:        "info",
		LogFormat:       "json",
		CleanupInterval: time.Minute,
		SessionMaxAge:   time.Hour,
		Rules:           carioca.DefaultRules(),
	}

	if p := getenv("PORT"); p != "" {
		c.Addr = ":" + p
	}
	if p := getenv("DB_PATH"); p != "" {
		c.DBPath = p
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		if v != "json" && v != "console" {
			return Config{}, fmt.Errorf("LOG_FORMAT must be json or console, got %q", v)
		}
		c.LogFormat = v
	}

	var err error
	if c.CleanupInterval, err = duration(getenv, "CLEANUP_INTERVAL", c.CleanupInterval); err != nil {
		return Config{}, err
	}
	if c.SessionMaxAge, err = duration(getenv, "SESSION_MAX_AGE", c.SessionMaxAge); err != nil {
		return Config{}, err
	}

	if p := getenv("RULES_PATH"); p != "" {
		if c.Rules, err = LoadRules(p, c.Rules); err != nil {
			return Config{}, err
		}
	}
	if c.Rules.HandSize, err = integer(getenv, "CARIOCA_HAND_SIZE", c.Rules.HandSize); err != nil {
		return Config{}, err
	}
	if c.Rules.FirstDiscardRetries, err = integer(getenv, "CARIOCA_FIRST_DISCARD_RETRIES", c.Rules.FirstDiscardRetries); err != nil {
		return Config{}, err
	}
	if err := c.Rules.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid rules: %w", err)
	}
	return c, nil
}

// LoadRules overlays the JSON file at path onto base. Fields missing from the
// file keep their base values.
func LoadRules(path string, base carioca.Rules) (carioca.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return carioca.Rules{}, fmt.Errorf("failed to read rules: %w", err)
	}
	r := base
	if err := json.Unmarshal(data, &r); err != nil {
		return carioca.Rules{}, fmt.Errorf("failed to unmarshal rules: %w", err)
	}
	return r, nil
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}

func integer(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
