package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Source     SourceConfig     `yaml:"source"`
	Database   DatabaseConfig   `yaml:"database"`
	KPI        KPIConfig        `yaml:"kpi"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Report     ReportConfig     `yaml:"report"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port              int     `yaml:"port"`
	RateLimitPerSec   float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst    int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds   int     `yaml:"cache_ttl_seconds"`
	ExposeErrorDetail bool    `yaml:"expose_error_detail"`
	StreamTickSeconds int     `yaml:"stream_tick_seconds"`
}

// SourceConfig describes the upstream activity endpoint and how often it is polled.
type SourceConfig struct {
	Enabled         bool              `yaml:"enabled"`
	URL             string            `yaml:"url"`
	Headers         map[string]string `yaml:"headers"`
	IntervalSeconds int               `yaml:"interval_seconds"`
	Interval        time.Duration     `yaml:"-"` // Ignored by YAML parser
	TimeoutSeconds  int               `yaml:"timeout_seconds"`
	HTTPProxy       string            `yaml:"http_proxy"`
	Timezone        string            `yaml:"timezone"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// KPIConfig tunes the adherence aggregators.
type KPIConfig struct {
	IgnoredActivityTypes []string `yaml:"ignored_activity_types"`
}

// ReportConfig configures the scheduled webhook reports.
type ReportConfig struct {
	WebhookURL string           `yaml:"webhook_url"`
	Recipient  string           `yaml:"recipient"`
	Schedules  []ReportSchedule `yaml:"schedules"`
}

// ReportSchedule binds a report type label to a 5-field cron expression.
type ReportSchedule struct {
	Type     string `yaml:"type"`
	Cron     string `yaml:"cron"`
	Strategy string `yaml:"strategy"`
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

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	envOverride(&cfg.Source.URL, "PAINEL_API_URL")
	envOverride(&cfg.Report.WebhookURL, "PAINEL_WEBHOOK_URL")
	envOverride(&cfg.Report.Recipient, "PAINEL_REPORT_RECIPIENT")
	envOverride(&cfg.Database.DSN, "PAINEL_DB_DSN")
}

func envOverride(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}
	if cfg.Server.StreamTickSeconds <= 0 {
		cfg.Server.StreamTickSeconds = 1
	}

	if cfg.Source.IntervalSeconds <= 0 {
		cfg.Source.IntervalSeconds = 300
	}
	cfg.Source.Interval = time.Duration(cfg.Source.IntervalSeconds) * time.Second
	if cfg.Source.TimeoutSeconds <= 0 {
		cfg.Source.TimeoutSeconds = 30
	}
	if cfg.Source.Timezone == "" {
		cfg.Source.Timezone = "America/Sao_Paulo"
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:painel.db"
	}

	if len(cfg.KPI.IgnoredActivityTypes) == 0 {
		cfg.KPI.IgnoredActivityTypes = []string{"DESLOCAMENTO"}
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}

// Location resolves the configured source timezone, falling back to UTC.
func (s SourceConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		log.Printf("Warning: invalid timezone %q: %v. Using UTC.", s.Timezone, err)
		return time.UTC
	}
	return loc
}
