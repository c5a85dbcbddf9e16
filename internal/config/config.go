// Package config loads runtime settings from an optional file and
// TASKFLOW_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"taskflow/internal/auth"
)

// Config holds the settings shared by the server and the admin commands.
type Config struct {
	Addr      string
	DBPath    string
	JWTSecret string
	TokenTTL  time.Duration
	LogLevel  slog.Level
}

// Load reads path when it is non-empty, then overlays environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TASKFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("db", "data/taskflow.db")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", auth.DefaultTokenTTL.String())
	v.SetDefault("log_level", "info")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Addr:      v.GetString("addr"),
		DBPath:    v.GetString("db"),
		JWTSecret: v.GetString("jwt_secret"),
	}

	ttl, err := time.ParseDuration(v.GetString("token_ttl"))
	if err != nil {
		return nil, fmt.Errorf("token_ttl: %w", err)
	}
	cfg.TokenTTL = ttl

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db must not be empty"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, auth.ErrMissingSecret)
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	return errors.Join(errs...)
}
