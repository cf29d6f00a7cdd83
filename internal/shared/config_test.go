package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Driver != "sqlite3" || config.Database.DSN != "./anilistx.db" {
			t.Errorf("unexpected database defaults %+v", config.Database)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Catalog.BaseURL != "https://api.jikan.moe/v4" {
			t.Errorf("expected jikan base URL, got %s", config.Catalog.BaseURL)
		}

		if config.Cache.TTL.Duration != 60*time.Second {
			t.Errorf("expected cache ttl 60s, got %s", config.Cache.TTL)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.DSN != DefaultConfig().Database.DSN {
			t.Errorf("created config database dsn doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
driver = "postgres"
dsn = "postgres://localhost/anilistx"

[server]
host = "0.0.0.0"
port = 8080

[cache]
ttl = "2m"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Driver != "postgres" {
			t.Errorf("expected postgres driver, got %s", config.Database.Driver)
		}
		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}
		if config.Cache.TTL.Duration != 2*time.Minute {
			t.Errorf("expected ttl 2m, got %s", config.Cache.TTL)
		}
		if config.Catalog.RateLimit != 3 {
			t.Errorf("unset values should keep defaults, got rate %v", config.Catalog.RateLimit)
		}
	})

	t.Run("LoadConfig Bad Duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[cache]\nttl = \"soon\"\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error for bad duration")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("SUPABASE_URL", "https://project.supabase.co")
		t.Setenv("SUPABASE_ANON_KEY", "anon")
		t.Setenv("SUPABASE_JWT_SECRET", "secret")
		t.Setenv("DATABASE_URL", "postgres://db/anilistx")
		t.Setenv("REDIS_URL", "redis://localhost:6379/0")

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Auth.URL != "https://project.supabase.co" || config.Auth.AnonKey != "anon" || config.Auth.JWTSecret != "secret" {
			t.Errorf("auth not overridden: %+v", config.Auth)
		}
		if config.Database.Driver != "postgres" || config.Database.DSN != "postgres://db/anilistx" {
			t.Errorf("database not overridden: %+v", config.Database)
		}
		if config.Cache.RedisURL != "redis://localhost:6379/0" {
			t.Errorf("redis url not overridden: %s", config.Cache.RedisURL)
		}
	})

	t.Run("LoadEnv", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("ANILISTX_TEST_VALUE=loaded\n"), 0644); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { os.Unsetenv("ANILISTX_TEST_VALUE") })

		if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env"), envPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if os.Getenv("ANILISTX_TEST_VALUE") != "loaded" {
			t.Error("expected env file to be loaded")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(*Config)
		}{
			{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
			{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
			{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
			{"zero ttl", func(c *Config) { c.Cache.TTL.Duration = 0 }},
			{"zero rate", func(c *Config) { c.Catalog.RateLimit = 0 }},
			{"empty base url", func(c *Config) { c.Catalog.BaseURL = "" }},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})
}
