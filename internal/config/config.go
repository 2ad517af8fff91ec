package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/engagement-tracker/internal/tracking"
)

// Config holds all configuration for the tracking service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Tracking TrackingConfig `yaml:"tracking"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig holds the dedup-cache settings. When URL is empty the recorder
// runs without the Redis fast path.
type RedisConfig struct {
	URL          string `yaml:"url"`
	DedupTTLDays int    `yaml:"dedup_ttl_days"`
}

// TrackingConfig holds pipeline settings.
type TrackingConfig struct {
	// QueueMode selects the background sink: "memory" (bounded in-process
	// queue) or "sqs" (publish to SQS, drained by a consumer).
	QueueMode   string `yaml:"queue_mode"`
	QueueSize   int    `yaml:"queue_size"`
	Workers     int    `yaml:"workers"`
	SQSQueueURL string `yaml:"sqs_queue_url"`

	// PublicURL is the externally reachable base for generated pixel and
	// click URLs.
	PublicURL string `yaml:"public_url"`

	// RealEngagementCutoff: a prefetch-classified event whose confidence is
	// below this still updates contact engagement.
	RealEngagementCutoff float64 `yaml:"real_engagement_cutoff"`

	Scoring tracking.ScoringPolicy `yaml:"scoring"`
}

// Load reads configuration from a YAML file and back-fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads the YAML file if present, then applies environment
// overrides. A missing file is not an error; env-only deployments are
// supported.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("SQS_TRACKING_QUEUE_URL"); v != "" {
		cfg.Tracking.SQSQueueURL = v
		if cfg.Tracking.QueueMode == "" {
			cfg.Tracking.QueueMode = "sqs"
		}
	}
	if v := os.Getenv("TRACKING_PUBLIC_URL"); v != "" {
		cfg.Tracking.PublicURL = v
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8081
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Redis.DedupTTLDays == 0 {
		c.Redis.DedupTTLDays = 90
	}
	if c.Tracking.QueueMode == "" {
		c.Tracking.QueueMode = "memory"
	}
	if c.Tracking.QueueSize == 0 {
		c.Tracking.QueueSize = 10000
	}
	if c.Tracking.Workers == 0 {
		c.Tracking.Workers = 4
	}
	if c.Tracking.RealEngagementCutoff == 0 {
		c.Tracking.RealEngagementCutoff = 0.7
	}

	// Zero-valued scoring weights mean "not configured": fall back to the
	// default policy rather than a table that scores nothing.
	if c.Tracking.Scoring.Version == "" {
		c.Tracking.Scoring = tracking.DefaultScoringPolicy()
	} else {
		def := tracking.DefaultScoringPolicy()
		if c.Tracking.Scoring.PrefetchCutoff == 0 {
			c.Tracking.Scoring.PrefetchCutoff = def.PrefetchCutoff
		}
		if c.Tracking.Scoring.RapidRepeatMs == 0 {
			c.Tracking.Scoring.RapidRepeatMs = def.RapidRepeatMs
		}
	}
}

// Validate checks that the settings required at startup are present.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url (or DATABASE_URL) is required")
	}
	if c.Tracking.QueueMode == "sqs" && c.Tracking.SQSQueueURL == "" {
		return fmt.Errorf("tracking.sqs_queue_url is required when queue_mode is sqs")
	}
	if c.Tracking.QueueMode != "memory" && c.Tracking.QueueMode != "sqs" {
		return fmt.Errorf("tracking.queue_mode must be memory or sqs, got %q", c.Tracking.QueueMode)
	}
	return nil
}
