package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr     string `mapstructure:"addr"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"server"`

	Scheduler struct {
		Language    string `mapstructure:"language"`
		Platform    string `mapstructure:"platform"`
		ResetPolicy string `mapstructure:"reset_policy"` // "date" | "content"
	} `mapstructure:"scheduler"`

	Fetcher struct {
		URL            string `mapstructure:"url"`
		File           string `mapstructure:"file"` // used when URL is empty
		SchemaVersion  string `mapstructure:"schema_version"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
		RefreshSeconds int    `mapstructure:"refresh_seconds"`
	} `mapstructure:"fetcher"`

	Storage struct {
		Driver    string `mapstructure:"driver"` // memory | file | sqlite | redis | postgres
		Path      string `mapstructure:"path"`
		RedisAddr string `mapstructure:"redis_addr"`
		RedisDB   int    `mapstructure:"redis_db"`
	} `mapstructure:"storage"`

	Postgres struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		SSLMode      string `mapstructure:"ssl_mode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"postgres"`

	Listener struct {
		Channel          string `mapstructure:"channel"`
		ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
	} `mapstructure:"listener"`
}

// keys lists every setting so AutomaticEnv can see them without a config file.
var keys = []string{
	"server.addr", "server.log_level",
	"scheduler.language", "scheduler.platform", "scheduler.reset_policy",
	"fetcher.url", "fetcher.file", "fetcher.schema_version", "fetcher.timeout_seconds", "fetcher.refresh_seconds",
	"storage.driver", "storage.path", "storage.redis_addr", "storage.redis_db",
	"postgres.host", "postgres.port", "postgres.user", "postgres.password", "postgres.db_name",
	"postgres.ssl_mode", "postgres.max_open_conns", "postgres.max_idle_conns",
	"listener.channel", "listener.reconnect_seconds",
}

// Load reads configs/application.yaml when present; APP_* env vars
// (APP_SERVER_ADDR, APP_STORAGE_DRIVER, ...) override it.
func Load() Config {
	return load(viper.New(), "configs")
}

func load(v *viper.Viper, dir string) Config {
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}
	validate(&cfg)
	return cfg
}

func validate(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Scheduler.Language == "" {
		c.Scheduler.Language = "en"
	}
	if c.Scheduler.Platform == "" {
		c.Scheduler.Platform = "ios"
	}
	if c.Fetcher.SchemaVersion == "" {
		c.Fetcher.SchemaVersion = "0.1.0"
	}
	if c.Fetcher.TimeoutSeconds <= 0 {
		c.Fetcher.TimeoutSeconds = 10
	}
	if c.Fetcher.RefreshSeconds <= 0 {
		c.Fetcher.RefreshSeconds = 300
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.MaxOpenConns == 0 {
		c.Postgres.MaxOpenConns = 4
	}
	if c.Postgres.MaxIdleConns == 0 {
		c.Postgres.MaxIdleConns = 1
	}
	if c.Listener.ReconnectSeconds <= 0 {
		c.Listener.ReconnectSeconds = 5
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
		c.Postgres.SSLMode,
	)
}

func (c Config) Backoff() time.Duration { return time.Duration(c.Listener.ReconnectSeconds) * time.Second }

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Fetcher.RefreshSeconds) * time.Second
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}
