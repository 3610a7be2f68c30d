// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DATABASE_REDIS_ADDRESS
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored if absent
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or the project root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig fills credentials directly from the environment if
// config file expansion left them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Database.Elasticsearch.Password == "" {
		if val := os.Getenv("ES_PASSWORD"); val != "" {
			cfg.Database.Elasticsearch.Password = val
		}
	}
	if cfg.Events.SNS.TopicARN == "" {
		if val := os.Getenv("SNS_TOPIC_ARN"); val != "" {
			cfg.Events.SNS.TopicARN = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "lead-intelligence"
	}
	if cfg.App.ListenAddr == "" {
		cfg.App.ListenAddr = ":8085"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Intelligence.ProducerTimeoutMs == 0 {
		cfg.Intelligence.ProducerTimeoutMs = 150
	}
	if cfg.Intelligence.ActiveCacheTTLSec == 0 {
		cfg.Intelligence.ActiveCacheTTLSec = 300
	}
	if cfg.Intelligence.LatencyTargetMs == 0 {
		cfg.Intelligence.LatencyTargetMs = 200
	}
	if cfg.Intelligence.MaxMatches == 0 {
		cfg.Intelligence.MaxMatches = 10
	}

	if cfg.Handoff.CacheTTLSec == 0 {
		cfg.Handoff.CacheTTLSec = 7200
	}
	if cfg.Handoff.HistoryTTLSec == 0 {
		cfg.Handoff.HistoryTTLSec = 86400
	}
	if cfg.Handoff.PreservationTargetMs == 0 {
		cfg.Handoff.PreservationTargetMs = 50
	}
	if cfg.Handoff.RetrievalTargetMs == 0 {
		cfg.Handoff.RetrievalTargetMs = 30
	}
	if cfg.Handoff.MaxSnapshotKB == 0 {
		cfg.Handoff.MaxSnapshotKB = 100
	}

	if cfg.Events.Backend == "" {
		cfg.Events.Backend = "redis"
	}
	if cfg.Events.Channel == "" {
		cfg.Events.Channel = "intelligence:events"
	}
	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = "localhost:6379"
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.ListingIndex == "" {
		cfg.Database.Elasticsearch.ListingIndex = "listings"
	}
}

// validateConfig enforces cross-field invariants.
func validateConfig(cfg *Config) error {
	// Handoff snapshots must outlive the active-context cache window;
	// the receiving bot may not pick up within one conversation cycle.
	if cfg.Handoff.CacheTTLSec <= cfg.Intelligence.ActiveCacheTTLSec {
		return fmt.Errorf("handoff cache_ttl_sec (%d) must be greater than intelligence active_cache_ttl_sec (%d)",
			cfg.Handoff.CacheTTLSec, cfg.Intelligence.ActiveCacheTTLSec)
	}

	if cfg.Intelligence.ProducerTimeoutMs <= 0 {
		return fmt.Errorf("producer_timeout_ms must be positive")
	}

	switch cfg.Events.Backend {
	case "redis", "none":
	case "sns":
		if cfg.Events.SNS.Region == "" || cfg.Events.SNS.TopicARN == "" {
			return fmt.Errorf("sns events backend requires region and topic_arn")
		}
	default:
		return fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}

	return nil
}
