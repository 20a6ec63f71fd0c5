// Package common provides shared logging, configuration, and error types
// used by the queue and lock repositories.
package common

import (
	"fmt"
	"os"
	"strconv"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds configuration for the MongoDB connection and both
// repositories.
type Config struct {
	Mongo   MongoConfig   `toml:"mongo"`
	Queue   QueueConfig   `toml:"queue"`
	Lock    LockConfig    `toml:"lock"`
	Logging LoggingConfig `toml:"logging"`
}

// MongoConfig holds the datastore connection target.
type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// QueueConfig holds work-item repository configuration.
type QueueConfig struct {
	CollectionName string `toml:"collection_name"`

	// InProgressRetryAfterMS is the duration, in milliseconds, after which
	// a stuck InProgress item becomes eligible for rescue by
	// PullOutstanding's third bucket. Read once at repository
	// construction.
	InProgressRetryAfterMS int64 `toml:"in_progress_retry_after_ms"`

	// MetricPrefix is used to build the "<prefix>.<statusName>" keys
	// returned by Repository.Metrics.
	MetricPrefix string `toml:"metric_prefix"`
}

// LockConfig holds lock repository configuration.
type LockConfig struct {
	CollectionName string `toml:"collection_name"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// NewDefaultConfig returns a Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "hmrc_mongo",
		},
		Queue: QueueConfig{
			CollectionName:         "work_items",
			InProgressRetryAfterMS: 5 * 60 * 1000,
			MetricPrefix:           "work-item",
		},
		Lock: LockConfig{
			CollectionName: "locks",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from an optional TOML file, applying
// environment overrides afterwards. An empty or missing path is not an
// error — defaults (plus any env overrides) are used instead.
func LoadConfig(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			if err := toml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies HMRCMONGO_* environment variable overrides.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("HMRCMONGO_MONGO_URI"); v != "" {
		config.Mongo.URI = v
	}
	if v := os.Getenv("HMRCMONGO_MONGO_DATABASE"); v != "" {
		config.Mongo.Database = v
	}
	if v := os.Getenv("HMRCMONGO_QUEUE_COLLECTION"); v != "" {
		config.Queue.CollectionName = v
	}
	if v := os.Getenv("HMRCMONGO_LOCK_COLLECTION"); v != "" {
		config.Lock.CollectionName = v
	}
	if v := os.Getenv("HMRCMONGO_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("HMRCMONGO_IN_PROGRESS_RETRY_AFTER_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Queue.InProgressRetryAfterMS = ms
		}
	}
}
