package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Events     EventsConfig     `yaml:"events"`
	Lock       LockConfig       `yaml:"lock"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	RequestIPHeader string   `yaml:"request_ip_header"`
	IdentityHeader  string   `yaml:"identity_header"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                     string `yaml:"driver"`
	DSN                        string `yaml:"dsn"`
	MaxOpenConns               int    `yaml:"max_open_conns"`
	MaxIdleConns               int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes     int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel                   string `yaml:"log_level"`
	EnableExclusionConstraints bool   `yaml:"enable_exclusion_constraints"`
}

// LogConfig selects the zap preset and level.
type LogConfig struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

// EventsConfig drives the outbox relay.
type EventsConfig struct {
	Enabled         bool             `yaml:"enabled"`
	IntervalSeconds int              `yaml:"interval_seconds"`
	Interval        time.Duration    `yaml:"-"` // Ignored by YAML parser
	BatchSize       int              `yaml:"batch_size"`
	WorkerPool      WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the event publishing worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// LockConfig selects how per-resource critical sections are serialized.
type LockConfig struct {
	Backend       string        `yaml:"backend"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTLSeconds    int           `yaml:"ttl_seconds"`
	TTL           time.Duration `yaml:"-"`
}

// SchedulingConfig bounds reservation and availability requests.
type SchedulingConfig struct {
	MaxReservationMinutes int           `yaml:"max_reservation_minutes"`
	MaxReservation        time.Duration `yaml:"-"`
	MaxHorizonDays        int           `yaml:"max_horizon_days"`
	MaxHorizon            time.Duration `yaml:"-"`
	DefaultTimezone       string        `yaml:"default_timezone"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration Load produces for an empty file.
func Default() *Config {
	var cfg Config
	_ = cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.IdentityHeader == "" {
		cfg.Server.IdentityHeader = "X-User-ID"
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	switch cfg.Database.Driver {
	case "":
		cfg.Database.Driver = "postgres"
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Log.Mode == "" {
		cfg.Log.Mode = "development"
	}

	if cfg.Events.IntervalSeconds <= 0 {
		cfg.Events.IntervalSeconds = 10
	}
	cfg.Events.Interval = time.Duration(cfg.Events.IntervalSeconds) * time.Second
	if cfg.Events.BatchSize <= 0 {
		cfg.Events.BatchSize = 100
	}
	if cfg.Events.WorkerPool.Size <= 0 {
		cfg.Events.WorkerPool.Size = 1
	}

	switch cfg.Lock.Backend {
	case "":
		cfg.Lock.Backend = "memory"
	case "memory":
	case "redis":
		if cfg.Lock.RedisAddr == "" {
			return fmt.Errorf("lock.redis_addr is required for the redis lock backend")
		}
	default:
		return fmt.Errorf("unsupported lock backend %q", cfg.Lock.Backend)
	}
	if cfg.Lock.TTLSeconds <= 0 {
		cfg.Lock.TTLSeconds = 10
	}
	cfg.Lock.TTL = time.Duration(cfg.Lock.TTLSeconds) * time.Second

	if cfg.Scheduling.MaxReservationMinutes <= 0 {
		cfg.Scheduling.MaxReservationMinutes = 480
	}
	cfg.Scheduling.MaxReservation = time.Duration(cfg.Scheduling.MaxReservationMinutes) * time.Minute
	if cfg.Scheduling.MaxHorizonDays <= 0 {
		cfg.Scheduling.MaxHorizonDays = 62
	}
	cfg.Scheduling.MaxHorizon = time.Duration(cfg.Scheduling.MaxHorizonDays) * 24 * time.Hour
	if cfg.Scheduling.DefaultTimezone == "" {
		cfg.Scheduling.DefaultTimezone = "UTC"
	}
	if _, err := time.LoadLocation(cfg.Scheduling.DefaultTimezone); err != nil {
		return fmt.Errorf("scheduling.default_timezone: %w", err)
	}
	return nil
}
