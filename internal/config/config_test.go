package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	if cfg.Server.Port != 8000 {
		t.Errorf("port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Scheduler.PollInterval != time.Minute {
		t.Errorf("poll interval = %v, want 1m", cfg.Scheduler.PollInterval)
	}
	if cfg.Scheduler.RetryInterval != 5*time.Minute {
		t.Errorf("retry interval = %v, want 5m", cfg.Scheduler.RetryInterval)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("token ttl = %v, want 24h", cfg.Auth.TokenTTL)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9100
database:
  driver: sqlite
  path: /tmp/ops.db
scheduler:
  enabled: true
  run_hour_utc: 6
  run_minute_utc: 30
  poll_interval: 10s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "9200")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ASYNCOPS_SCHEDULER_RETRY_INTERVAL", "45s")

	cfg := Load(path)

	if cfg.Server.Port != 9200 {
		t.Errorf("port = %d, want env override 9200", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "/tmp/ops.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.RunHourUTC != 6 || cfg.Scheduler.RunMinuteUTC != 30 {
		t.Errorf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.PollInterval != 10*time.Second {
		t.Errorf("poll interval = %v, want 10s", cfg.Scheduler.PollInterval)
	}
	if cfg.Scheduler.RetryInterval != 45*time.Second {
		t.Errorf("retry interval = %v, want 45s from env", cfg.Scheduler.RetryInterval)
	}
	if len(cfg.CORS.Origins) != 2 || cfg.CORS.Origins[1] != "https://b.example" {
		t.Errorf("cors origins = %v", cfg.CORS.Origins)
	}
}

func TestOpenGormDBSqlite(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "nested", "ops.db")

	db, err := cfg.OpenGormDB()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenGormDBUnknownDriver(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "oracle"
	if _, err := cfg.OpenGormDB(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
