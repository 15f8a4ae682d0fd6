package config

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	CORS      CORSConfig      `yaml:"cors"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig selects the store. Driver is "mysql" or "sqlite"; Path is
// only used by sqlite.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// SchedulerConfig drives the daily summary worker. All times are UTC.
type SchedulerConfig struct {
	Enabled       bool          `yaml:"enabled" envconfig:"ENABLED"`
	RunHourUTC    int           `yaml:"run_hour_utc" envconfig:"RUN_HOUR_UTC"`
	RunMinuteUTC  int           `yaml:"run_minute_utc" envconfig:"RUN_MINUTE_UTC"`
	PollInterval  time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL"`
	RetryInterval time.Duration `yaml:"retry_interval" envconfig:"RETRY_INTERVAL"`
}

func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8000},
		Log:      LogConfig{Level: "info", Console: true, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 30},
		Database: DatabaseConfig{Driver: "mysql", Host: "127.0.0.1", Port: 3306, Name: "asyncops", Path: "data/asyncops.db"},
		Auth:     AuthConfig{JWTSecret: "asyncops-dev-secret", TokenTTL: 24 * time.Hour},
		CORS:     CORSConfig{Origins: []string{"http://localhost:3000", "http://localhost:5173"}},
		Scheduler: SchedulerConfig{
			RunHourUTC:    0,
			RunMinuteUTC:  5,
			PollInterval:  60 * time.Second,
			RetryInterval: 300 * time.Second,
		},
	}
}

func Load(configFile string) *Config {
	c := Default()

	paths := []string{"etc/config-dev.yaml", "/etc/asyncops/config.yaml"}
	if configFile != "" {
		paths = []string{configFile}
	}
	for _, path := range paths {
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, c)
			break
		}
	}

	envOverride(&c.Database.Driver, "DB_DRIVER")
	envOverride(&c.Database.Host, "DB_HOST")
	envOverride(&c.Database.User, "DB_USER")
	envOverride(&c.Database.Password, "DB_PASS")
	envOverride(&c.Database.Name, "DB_NAME")
	envOverride(&c.Database.Path, "DB_PATH")
	envOverride(&c.Auth.JWTSecret, "JWT_SECRET")
	envOverride(&c.Log.Level, "LOG_LEVEL")
	envOverride(&c.Log.File, "LOG_FILE")
	envOverrideInt(&c.Server.Port, "PORT")
	envOverrideInt(&c.Database.Port, "DB_PORT")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORS.Origins = splitList(v)
	}
	envconfig.Process("ASYNCOPS_SCHEDULER", &c.Scheduler)

	return c
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func (c *Config) OpenGormDB() (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	switch c.Database.Driver {
	case "sqlite":
		if dir := filepath.Dir(c.Database.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		db, err := gorm.Open(sqlite.Open(c.Database.Path+"?_busy_timeout=5000"), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite pool: %w", err)
		}
		// sqlite serializes writers anyway; one connection keeps transactions from tripping SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	case "mysql", "":
		mcfg := gomysql.NewConfig()
		mcfg.User = c.Database.User
		mcfg.Passwd = c.Database.Password
		mcfg.Net = "tcp"
		mcfg.Addr = fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port)
		mcfg.DBName = c.Database.Name
		mcfg.ParseTime = true
		mcfg.Loc = time.UTC

		connector, err := gomysql.NewConnector(mcfg)
		if err != nil {
			return nil, fmt.Errorf("create connector: %w", err)
		}
		sqlDB := sql.OpenDB(connector)
		if err := sqlDB.Ping(); err != nil {
			return nil, fmt.Errorf("ping db: %w", err)
		}
		return gorm.Open(mysql.New(mysql.Config{Conn: sqlDB}), gcfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
