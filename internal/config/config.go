package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/goodtune/tabtime/internal/storage"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// DefaultPath is the configuration file used when --config is not given.
const DefaultPath = "/etc/tabtime/config.yaml"

// Config holds the complete application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	Policy     PolicyConfig     `mapstructure:"policy"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig defines the API server listeners
type ServerConfig struct {
	BindAddress    string   `mapstructure:"bind_address"`
	APIPort        int      `mapstructure:"api_port"`
	MetricsPort    int      `mapstructure:"metrics_port"`
	Timezone       string   `mapstructure:"timezone"` // IANA name; empty means the host's local zone
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadTimeout    string   `mapstructure:"read_timeout"`
	WriteTimeout   string   `mapstructure:"write_timeout"`
}

// Location resolves the configured timezone.
func (s ServerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type   string       `mapstructure:"type"` // "redis" or "sqlite"
	Redis  RedisConfig  `mapstructure:"redis"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// SQLiteConfig defines the embedded database file
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// MinRetentionDays is the shortest retention that still covers a full week
const MinRetentionDays = 7

// RetentionConfig defines how long tracked history is kept
type RetentionConfig struct {
	Days     int    `mapstructure:"days"`
	Schedule string `mapstructure:"schedule"` // cron spec with seconds field
}

// PolicyConfig defines quota evaluation settings
type PolicyConfig struct {
	QuotaPolicyFile string `mapstructure:"quota_policy_file"` // optional Rego override
}

// ClassifierConfig extends the productive allow-list
type ClassifierConfig struct {
	ProductiveSites []string `mapstructure:"productive_sites"`
}

// AgentConfig defines the browser-side agent settings
type AgentConfig struct {
	APIBaseURL        string `mapstructure:"api_base_url"`
	RequestTimeout    string `mapstructure:"request_timeout"`
	TickInterval      string `mapstructure:"tick_interval"`
	FocusPollInterval string `mapstructure:"focus_poll_interval"`
	DecisionTTL       string `mapstructure:"decision_ttl"`
	DecisionCacheSize int    `mapstructure:"decision_cache_size"`
	InterstitialURL   string `mapstructure:"interstitial_url"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("TABTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.api_port", 5000)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.timezone", "")
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*", "http://localhost:3000"})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	// Storage defaults
	v.SetDefault("storage.type", "redis")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.sqlite.path", "/var/lib/tabtime/tabtime.db")

	// Retention defaults
	v.SetDefault("retention.days", 90)
	v.SetDefault("retention.schedule", "0 30 3 * * *")

	// Policy defaults
	v.SetDefault("policy.quota_policy_file", "")

	// Classifier defaults
	v.SetDefault("classifier.productive_sites", []string{})

	// Agent defaults
	v.SetDefault("agent.api_base_url", "http://localhost:5000/api")
	v.SetDefault("agent.request_timeout", "10s")
	v.SetDefault("agent.tick_interval", "30s")
	v.SetDefault("agent.focus_poll_interval", "10s")
	v.SetDefault("agent.decision_ttl", "5s")
	v.SetDefault("agent.decision_cache_size", 256)
	v.SetDefault("agent.interstitial_url", "chrome-extension://tabtime/blocked.html")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}
	if _, err := cfg.Server.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Server.Timezone, err)
	}

	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "redis"
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required")
		}
	case "sqlite":
		if cfg.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required")
		}
		if cfg.Storage.SQLite.Path != ":memory:" {
			if err := storage.EnsureDir(cfg.Storage.SQLite.Path); err != nil {
				return fmt.Errorf("failed to create storage directory: %w", err)
			}
		}
	default:
		return fmt.Errorf("unsupported storage type: %s (must be redis or sqlite)", cfg.Storage.Type)
	}

	if cfg.Retention.Days < 0 {
		return fmt.Errorf("retention.days must not be negative: %d", cfg.Retention.Days)
	}
	if cfg.Retention.Days > 0 && cfg.Retention.Days < MinRetentionDays {
		return fmt.Errorf("retention.days must be 0 (disabled) or at least %d so the current week is kept: %d", MinRetentionDays, cfg.Retention.Days)
	}
	if cfg.Retention.Days > 0 {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(cfg.Retention.Schedule); err != nil {
			return fmt.Errorf("invalid retention.schedule %q: %w", cfg.Retention.Schedule, err)
		}
	}

	if _, err := url.ParseRequestURI(cfg.Agent.APIBaseURL); err != nil {
		return fmt.Errorf("invalid agent.api_base_url %q: %w", cfg.Agent.APIBaseURL, err)
	}
	if cfg.Agent.InterstitialURL == "" {
		return fmt.Errorf("agent.interstitial_url is required")
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format: %s (must be json or text)", cfg.Logging.Format)
	}

	return nil
}
