// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Intelligence IntelligenceConfig `mapstructure:"intelligence"`
	Handoff      HandoffConfig      `mapstructure:"handoff"`
	Events       EventsConfig       `mapstructure:"events"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	ListenAddr  string `mapstructure:"listen_addr"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	ListingIndex string   `mapstructure:"listing_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// IntelligenceConfig holds the aggregator's tuning knobs.
type IntelligenceConfig struct {
	ProducerTimeoutMs int `mapstructure:"producer_timeout_ms"` // per-producer bound
	ActiveCacheTTLSec int `mapstructure:"active_cache_ttl_sec"`
	LatencyTargetMs   int `mapstructure:"latency_target_ms"`
	MaxMatches        int `mapstructure:"max_matches"`
}

// ProducerTimeout returns the per-producer call bound.
func (c IntelligenceConfig) ProducerTimeout() time.Duration {
	return time.Duration(c.ProducerTimeoutMs) * time.Millisecond
}

// ActiveCacheTTL returns the active-context cache TTL.
func (c IntelligenceConfig) ActiveCacheTTL() time.Duration {
	return time.Duration(c.ActiveCacheTTLSec) * time.Second
}

// HandoffConfig holds the preservation service's tuning knobs.
type HandoffConfig struct {
	CacheTTLSec          int `mapstructure:"cache_ttl_sec"`         // extended TTL for handoff snapshots
	HistoryTTLSec        int `mapstructure:"history_ttl_sec"`       // transition history retention
	PreservationTargetMs int `mapstructure:"preservation_target_ms"`
	RetrievalTargetMs    int `mapstructure:"retrieval_target_ms"`
	MaxSnapshotKB        int `mapstructure:"max_snapshot_kb"` // soft warning threshold
}

// CacheTTL returns the extended handoff-snapshot TTL.
func (c HandoffConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// HistoryTTL returns the transition-history TTL.
func (c HandoffConfig) HistoryTTL() time.Duration {
	return time.Duration(c.HistoryTTLSec) * time.Second
}

// EventsConfig selects and configures the event sink.
type EventsConfig struct {
	Backend string `mapstructure:"backend"` // "redis", "sns" or "none"
	Channel string `mapstructure:"channel"` // redis pub/sub channel prefix

	SNS struct {
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
