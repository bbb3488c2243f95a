package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Engine      EngineConfig   `mapstructure:"engine"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// EngineConfig tunes the aggregation engine: the latest-price recency
// window, raw-observation retention, refresh budget and cache TTLs.
type EngineConfig struct {
	RecencyWindowDays int    `mapstructure:"recency_window_days"`
	RetentionDays     int    `mapstructure:"retention_days"`
	PruneInterval     string `mapstructure:"prune_interval"`
	RefreshBudget     string `mapstructure:"refresh_budget"`
	CacheTTL          string `mapstructure:"cache_ttl"`
	HistoryCacheTTL   string `mapstructure:"history_cache_ttl"`
	StaleTTL          string `mapstructure:"stale_ttl"`
}

// RecencyWindow returns the latest-price recency window as a duration.
func (e EngineConfig) RecencyWindow() time.Duration {
	return time.Duration(e.RecencyWindowDays) * 24 * time.Hour
}

// Retention returns the raw-observation retention window as a duration.
func (e EngineConfig) Retention() time.Duration {
	return time.Duration(e.RetentionDays) * 24 * time.Hour
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	for _, field := range []struct {
		name, value string
	}{
		{"engine.prune_interval", config.Engine.PruneInterval},
		{"engine.refresh_budget", config.Engine.RefreshBudget},
		{"engine.cache_ttl", config.Engine.CacheTTL},
		{"engine.history_cache_ttl", config.Engine.HistoryCacheTTL},
		{"engine.stale_ttl", config.Engine.StaleTTL},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return nil, fmt.Errorf("invalid duration for %s: %w", field.name, err)
		}
	}

	if config.Engine.RecencyWindowDays < 1 {
		return nil, fmt.Errorf("engine.recency_window_days must be >= 1, got %d", config.Engine.RecencyWindowDays)
	}
	if config.Engine.RetentionDays < 1 {
		return nil, fmt.Errorf("engine.retention_days must be >= 1, got %d", config.Engine.RetentionDays)
	}

	return &config, nil
}

// Duration parses a config duration string, falling back when unset.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "retail_intel")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_conns", 10)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("engine.recency_window_days", 30)
	viper.SetDefault("engine.retention_days", 90)
	viper.SetDefault("engine.prune_interval", "1h")
	viper.SetDefault("engine.refresh_budget", "10s")
	viper.SetDefault("engine.cache_ttl", "3m")
	viper.SetDefault("engine.history_cache_ttl", "10m")
	viper.SetDefault("engine.stale_ttl", "24h")
}
