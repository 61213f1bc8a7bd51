package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./playsync.db" {
			t.Errorf("expected database path ./playsync.db, got %s", config.Database.Path)
		}

		if config.API.BaseURL != "http://127.0.0.1:8000" {
			t.Errorf("expected api base URL http://127.0.0.1:8000, got %s", config.API.BaseURL)
		}

		if config.API.TimeoutSeconds != 15 {
			t.Errorf("expected timeout 15, got %d", config.API.TimeoutSeconds)
		}

		if config.API.RateLimit != 0 {
			t.Errorf("expected rate limiting disabled, got %v", config.API.RateLimit)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[api]
base_url = "http://music.local:9000"
rate_limit = 5.0

[log]
level = "debug"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.API.BaseURL != "http://music.local:9000" {
			t.Errorf("expected base URL http://music.local:9000, got %s", config.API.BaseURL)
		}
		if config.API.RateLimit != 5 {
			t.Errorf("expected rate limit 5, got %v", config.API.RateLimit)
		}
		if config.Database.Path != "./playsync.db" {
			t.Errorf("expected unset values to keep defaults, got %s", config.Database.Path)
		}
		if config.LogLevel() != log.DebugLevel {
			t.Errorf("expected debug level, got %v", config.LogLevel())
		}
	})

	t.Run("LoadConfig invalid toml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[api\nbase_url ="), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv(EnvAPIURL, "http://env.local")
		t.Setenv(EnvDBPath, "/tmp/env.db")
		t.Setenv(EnvLogLevel, "warn")
		t.Setenv(EnvRateLimit, "2.5")

		config := DefaultConfig()
		if err := config.ApplyEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if config.API.BaseURL != "http://env.local" {
			t.Errorf("expected base URL from env, got %s", config.API.BaseURL)
		}
		if config.Database.Path != "/tmp/env.db" {
			t.Errorf("expected db path from env, got %s", config.Database.Path)
		}
		if config.LogLevel() != log.WarnLevel {
			t.Errorf("expected warn level, got %v", config.LogLevel())
		}
		if config.API.RateLimit != 2.5 {
			t.Errorf("expected rate limit 2.5, got %v", config.API.RateLimit)
		}
	})

	t.Run("ApplyEnv reads dotenv file", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("PLAYSYNC_API_URL=http://dotenv.local\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv(EnvAPIURL, "")
		os.Unsetenv(EnvAPIURL)

		config := DefaultConfig()
		if err := config.ApplyEnv(envPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		t.Cleanup(func() { os.Unsetenv(EnvAPIURL) })

		if config.API.BaseURL != "http://dotenv.local" {
			t.Errorf("expected base URL from .env, got %s", config.API.BaseURL)
		}
	})

	t.Run("ApplyEnv bad rate limit", func(t *testing.T) {
		t.Setenv(EnvRateLimit, "fast")
		config := DefaultConfig()
		if err := config.ApplyEnv(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
