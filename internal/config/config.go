package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Retention RetentionConfig `mapstructure:"retention"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateWindow      time.Duration `mapstructure:"rate_window"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type StoreConfig struct {
	Backend string        `mapstructure:"backend"`
	Table   string        `mapstructure:"table"`
	Timeout time.Duration `mapstructure:"timeout"`

	// rest
	URL string `mapstructure:"url"`
	Key string `mapstructure:"key"`

	// postgres
	DatabaseURL     string        `mapstructure:"database_url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	MetricsUser     string        `mapstructure:"metrics_user"`
	MetricsPassword string        `mapstructure:"metrics_password"`
}

type DiscordConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Username   string        `mapstructure:"username"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type RetentionConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
	Days     int    `mapstructure:"days"`
}

// legacyEnv maps config keys to the environment names existing deployments use.
var legacyEnv = map[string]string{
	"store.url":           "SUPABASE_URL",
	"store.key":           "SUPABASE_KEY",
	"store.database_url":  "DATABASE_URL",
	"auth.jwt_secret":     "JWT_SECRET",
	"discord.webhook_url": "DISCORD_WEBHOOK",
}

// Load reads .env, then the optional YAML file at path, then the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	v := viper.New()
	v.SetEnvPrefix("SIGNALGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "SIGNALGW_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.rate_window", "1m")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("store.backend", BackendREST)
	v.SetDefault("store.table", "signals")
	v.SetDefault("store.timeout", "15s")
	v.SetDefault("store.max_open_conns", 10)
	v.SetDefault("store.max_idle_conns", 2)
	v.SetDefault("store.conn_max_lifetime", "30m")
	v.SetDefault("auth.token_ttl", "720h")
	v.SetDefault("auth.metrics_user", "")
	v.SetDefault("auth.metrics_password", "")
	v.SetDefault("discord.username", "BaconAlgo")
	v.SetDefault("discord.timeout", "10s")
	v.SetDefault("retention.enabled", false)
	v.SetDefault("retention.schedule", "@every 1h")
	v.SetDefault("retention.days", 7)
}

// Validate checks that the selected store backend has its credentials.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendREST:
		if c.Store.URL == "" || c.Store.Key == "" {
			return errors.New("rest store requires SUPABASE_URL and SUPABASE_KEY")
		}
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("postgres store requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("retention.days must not be negative, got %d", c.Retention.Days)
	}
	return nil
}
