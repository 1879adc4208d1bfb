// Package config handles application configuration using Viper.
// Viper supports YAML files, environment variables, and defaults — merged in priority order.
// Go convention: configuration is loaded into structs, not accessed as raw key-value pairs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration struct. Nested structs organize related settings.
// `mapstructure` tags tell Viper how to map YAML/env keys to struct fields.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

type AuthConfig struct {
	APIKeys   []string `mapstructure:"api_keys"`
	AdminKeys []string `mapstructure:"admin_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LLMConfig struct {
	// RatePerMinute bounds outbound generation calls across all providers.
	RatePerMinute int `mapstructure:"rate_per_minute"`
	// RequestTimeoutSeconds caps a single provider call. Generation calls are
	// slow but must not hang a worker forever.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	MaxTokens             int `mapstructure:"max_tokens"`
}

type WorkerConfig struct {
	PollIntervalSeconds    int `mapstructure:"poll_interval_seconds"`
	LeaseTimeoutMinutes    int `mapstructure:"lease_timeout_minutes"`
	ReclaimIntervalMinutes int `mapstructure:"reclaim_interval_minutes"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults — these apply when neither file nor env provides a value
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.database_path", "./storage/article-service.db")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("llm.rate_per_minute", 30)
	v.SetDefault("llm.request_timeout_seconds", 120)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("worker.poll_interval_seconds", 5)
	v.SetDefault("worker.lease_timeout_minutes", 30)
	v.SetDefault("worker.reclaim_interval_minutes", 5)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("log.level", "info")

	// Read from YAML config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Read config file (ignore "not found" — defaults + env are enough)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Environment variables override everything.
	// ARTICLE_ prefix + nested keys: ARTICLE_SERVER_PORT=9090 → server.port=9090
	v.SetEnvPrefix("ARTICLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Address returns the listen address string like "0.0.0.0:8080".
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RequestTimeout returns the provider call timeout as a time.Duration.
func (l LLMConfig) RequestTimeout() time.Duration {
	return time.Duration(l.RequestTimeoutSeconds) * time.Second
}

// PollInterval returns the job polling interval as a time.Duration.
func (w WorkerConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

// LeaseTimeout returns how long a processing job may sit unclaimed-but-stuck
// before the reclaim sweep resets it to pending.
func (w WorkerConfig) LeaseTimeout() time.Duration {
	return time.Duration(w.LeaseTimeoutMinutes) * time.Minute
}

// ReclaimInterval returns the period between reclaim sweeps.
func (w WorkerConfig) ReclaimInterval() time.Duration {
	return time.Duration(w.ReclaimIntervalMinutes) * time.Minute
}
