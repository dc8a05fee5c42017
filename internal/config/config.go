package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"n1core/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Server   ServerConfig
	Batch    BatchConfig
	Paths    PathConfig
	Narrator NarratorConfig
	Analysis Analysis
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Store        string `validate:"oneof=postgres memory"`
	URL          string `validate:"required_if=Store postgres"`
	MaxOpenConns int    `validate:"gte=1"`
}

// RedisConfig holds the athlete lock backend. Empty Addr means in-process locking.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration `validate:"gte=0"`
}

// KafkaConfig holds the insight publisher settings. No brokers disables publishing.
type KafkaConfig struct {
	Brokers      []string
	InsightTopic string `validate:"required_with=Brokers"`
}

// ServerConfig holds read API settings
type ServerConfig struct {
	Addr string `validate:"required"`
}

// BatchConfig holds the scheduler settings for one batch
type BatchConfig struct {
	Concurrency       int           `validate:"gte=1,lte=256"`
	AthleteRunTimeout time.Duration `validate:"gt=0"`
	LookbackDays      int           `validate:"gte=14"`
}

// PathConfig holds file system paths
type PathConfig struct {
	FlagsFile    string
	PolarityFile string
}

// NarratorConfig holds the optional narration endpoint
type NarratorConfig struct {
	URL     string `validate:"omitempty,url"`
	Timeout time.Duration
}

// Load reads configuration from the environment (and .env when present) and validates it
func Load() (*Config, error) {
	config := fromEnv()
	if err := Validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// LoadMemory is Load with the in-memory store forced, for runs that never touch a database
func LoadMemory() (*Config, error) {
	config := fromEnv()
	config.Database.Store = "memory"
	if err := Validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func fromEnv() *Config {
	// .env is optional; real environment wins
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			Store:        strings.ToLower(getEnvOrDefault("STORE", "postgres")),
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 16),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvIntOrDefault("REDIS_DB", 0),
			LockTTL:  getEnvDurationOrDefault("LOCK_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(os.Getenv("KAFKA_BROKERS")),
			InsightTopic: getEnvOrDefault("KAFKA_INSIGHT_TOPIC", "n1.insights"),
		},
		Server: ServerConfig{
			Addr: getEnvOrDefault("HTTP_ADDR", ":8080"),
		},
		Batch: BatchConfig{
			Concurrency:       getEnvIntOrDefault("BATCH_CONCURRENCY", 8),
			AthleteRunTimeout: getEnvDurationOrDefault("ATHLETE_RUN_TIMEOUT", 2*time.Minute),
			LookbackDays:      getEnvIntOrDefault("LOOKBACK_DAYS", 90),
		},
		Paths: PathConfig{
			FlagsFile:    os.Getenv("FLAGS_FILE"),
			PolarityFile: os.Getenv("POLARITY_FILE"),
		},
		Narrator: NarratorConfig{
			URL:     os.Getenv("NARRATOR_URL"),
			Timeout: getEnvDurationOrDefault("NARRATOR_TIMEOUT", 5*time.Second),
		},
		Analysis: DefaultAnalysis(),
	}
}

var validate = validator.New()

// Validate checks struct tags and the analysis invariants
func Validate(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if err := config.Analysis.Validate(); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
