package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"taskflow/internal/auth"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.DBPath != "data/taskflow.db" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.TokenTTL != auth.DefaultTokenTTL {
		t.Errorf("TokenTTL = %v, want %v", cfg.TokenTTL, auth.DefaultTokenTTL)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if !errors.Is(cfg.Validate(), auth.ErrMissingSecret) {
		t.Errorf("Validate should report the missing secret")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskflow.yaml")
	body := "addr: \":9090\"\ndb: /tmp/tf.db\njwt_secret: from-file\ntoken_ttl: 30m\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TASKFLOW_JWT_SECRET", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.DBPath != "/tmp/tf.db" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.JWTSecret != "from-env" {
		t.Errorf("JWTSecret = %q, want env override", cfg.JWTSecret)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Errorf("TokenTTL = %v", cfg.TokenTTL)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("TASKFLOW_TOKEN_TTL", "soon")
	if _, err := Load(""); err == nil {
		t.Error("expected error for unparseable token_ttl")
	}

	t.Setenv("TASKFLOW_TOKEN_TTL", "1h")
	t.Setenv("TASKFLOW_LOG_LEVEL", "chatty")
	if _, err := Load(""); err == nil {
		t.Error("expected error for unknown log_level")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
