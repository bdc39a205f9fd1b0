// Package config loads recur's settings from a YAML file overlaid by
// RECUR_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/alexanderramin/recur/internal/materialize"
	"github.com/caarlos0/env/v11"
	yaml "go.yaml.in/yaml/v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "RECUR_"

const (
	LeaseSQLite = "sqlite"
	LeaseRedis  = "redis"
)

type Config struct {
	DB        DBConfig        `yaml:"db" envPrefix:"DB_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	HTTP      HTTPConfig      `yaml:"http" envPrefix:"HTTP_"`
	Scheduler SchedulerConfig `yaml:"scheduler" envPrefix:"SCHEDULER_"`
	Lease     LeaseConfig     `yaml:"lease" envPrefix:"LEASE_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`

	// Directory maps kind (client, service, member, tag) to id -> display name.
	Directory map[string]map[string]string `yaml:"directory"`
}

type DBConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"` // auto, console or json
}

type HTTPConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

type SchedulerConfig struct {
	Tick                   time.Duration `yaml:"tick" env:"TICK"`
	LookaheadDays          int           `yaml:"lookahead_days" env:"LOOKAHEAD_DAYS"`
	LeaseTTL               time.Duration `yaml:"lease_ttl" env:"LEASE_TTL"`
	MaxOccurrencesPerRun   int           `yaml:"max_occurrences_per_run" env:"MAX_OCCURRENCES_PER_RUN"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures" env:"MAX_CONSECUTIVE_FAILURES"`
	BackoffInitial         time.Duration `yaml:"backoff_initial" env:"BACKOFF_INITIAL"`
	BackoffMax             time.Duration `yaml:"backoff_max" env:"BACKOFF_MAX"`
	Workers                int           `yaml:"workers" env:"WORKERS"`
	CreateRatePerSec       float64       `yaml:"create_rate_per_sec" env:"CREATE_RATE_PER_SEC"`
	WorkerID               string        `yaml:"worker_id" env:"WORKER_ID"`
}

type LeaseConfig struct {
	Backend  string `yaml:"backend" env:"BACKEND"`
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled" env:"ENABLED"`
	Endpoint    string  `yaml:"endpoint" env:"ENDPOINT"`
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
}

// DefaultTick is how often `recur serve` runs the scheduler.
const DefaultTick = 5 * time.Minute

// DefaultPath returns ~/.recur/recur.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "recur.yaml"
	}
	return filepath.Join(home, ".recur", "recur.yaml")
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "recur.db"
	}
	return filepath.Join(home, ".recur", "recur.db")
}

// Load reads path (a missing file is not an error unless required), overlays
// the environment and fills defaults.
func Load(path string, required bool) (*Config, error) {
	cfg, err := parseFile(path, required)
	if err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFile(path string, required bool) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DB.Path == "" {
		c.DB.Path = defaultDBPath()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "auto"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8080"
	}
	if c.Scheduler.Tick <= 0 {
		c.Scheduler.Tick = DefaultTick
	}
	// Zero means unset here; a file cannot ask for a zero lookahead.
	def := materialize.DefaultConfig()
	s := &c.Scheduler
	if s.LookaheadDays == 0 {
		s.LookaheadDays = def.LookaheadDays
	}
	if s.LeaseTTL == 0 {
		s.LeaseTTL = def.LeaseTTL
	}
	if s.MaxOccurrencesPerRun == 0 {
		s.MaxOccurrencesPerRun = def.MaxOccurrencesPerRun
	}
	if s.MaxConsecutiveFailures == 0 {
		s.MaxConsecutiveFailures = def.MaxConsecutiveFailures
	}
	if s.BackoffInitial == 0 {
		s.BackoffInitial = def.BackoffInitial
	}
	if s.BackoffMax == 0 {
		s.BackoffMax = def.BackoffMax
	}
	if s.Workers == 0 {
		s.Workers = def.Workers
	}
	if c.Lease.Backend == "" {
		c.Lease.Backend = LeaseSQLite
	}
	if c.Telemetry.SampleRatio <= 0 {
		c.Telemetry.SampleRatio = 1
	}
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Lease.Backend {
	case LeaseSQLite:
	case LeaseRedis:
		if c.Lease.RedisURL == "" {
			return errors.New("lease.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("lease.backend: must be sqlite or redis, got %q", c.Lease.Backend)
	}
	s := c.Scheduler
	if s.LookaheadDays < 0 || s.MaxOccurrencesPerRun < 0 || s.MaxConsecutiveFailures < 0 || s.Workers < 0 {
		return errors.New("scheduler: counts must be >= 0")
	}
	if s.LeaseTTL < 0 || s.BackoffInitial < 0 || s.BackoffMax < 0 || s.CreateRatePerSec < 0 {
		return errors.New("scheduler: durations and rates must be >= 0")
	}
	switch c.Log.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("log.format: must be auto, console or json, got %q", c.Log.Format)
	}
	return nil
}

// Materialize converts the scheduler section.
func (s SchedulerConfig) Materialize() materialize.Config {
	return materialize.Config{
		LookaheadDays:          s.LookaheadDays,
		LeaseTTL:               s.LeaseTTL,
		MaxOccurrencesPerRun:   s.MaxOccurrencesPerRun,
		MaxConsecutiveFailures: s.MaxConsecutiveFailures,
		BackoffInitial:         s.BackoffInitial,
		BackoffMax:             s.BackoffMax,
		Workers:                s.Workers,
		CreateRatePerSec:       s.CreateRatePerSec,
		WorkerID:               s.WorkerID,
	}
}
