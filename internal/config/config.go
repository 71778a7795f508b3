package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"

	LockLocal = "local"
	LockRedis = "redis"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	StorageBackend string
	RedisURL       string
	SQLitePath     string
	DataDir        string

	LLMProvider      string
	AnthropicAPIKey  string
	OpenAIAPIKey     string
	ModelName        string
	BackendModelName string

	ConsolidationLock    string
	BeliefSnapshotMin    float64
	CompressionThreshold int
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present; real environment variables
// win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	snapshotMin, err := getEnvFloat("BELIEF_SNAPSHOT_MIN", 0.6)
	if err != nil {
		return nil, err
	}
	threshold, err := getEnvInt("COMPRESSION_THRESHOLD", 5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		Environment:          getEnv("ENVIRONMENT", "development"),
		LogLevel:             parseLogLevel(getEnv("LOG_LEVEL", "info")),
		StorageBackend:       strings.ToLower(getEnv("STORAGE_BACKEND", StorageRedis)),
		RedisURL:             getEnv("REDIS_URL", "localhost:6379"),
		SQLitePath:           getEnv("SQLITE_PATH", "./data/npc.db"),
		DataDir:              getEnv("DATA_DIR", "./data"),
		LLMProvider:          strings.ToLower(getEnv("LLM_PROVIDER", "anthropic")),
		AnthropicAPIKey:      getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		ModelName:            getEnv("MODEL_NAME", ""),
		BackendModelName:     getEnv("BACKEND_MODEL_NAME", ""),
		ConsolidationLock:    strings.ToLower(getEnv("CONSOLIDATION_LOCK", LockLocal)),
		BeliefSnapshotMin:    snapshotMin,
		CompressionThreshold: threshold,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that have a closed set of options or a range.
func (c *Config) Validate() error {
	var errs []error
	switch c.StorageBackend {
	case StorageRedis, StorageSQLite:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be redis or sqlite, got %q", c.StorageBackend))
	}
	switch c.ConsolidationLock {
	case LockLocal, LockRedis:
	default:
		errs = append(errs, fmt.Errorf("CONSOLIDATION_LOCK must be local or redis, got %q", c.ConsolidationLock))
	}
	if c.ConsolidationLock == LockRedis && c.StorageBackend != StorageRedis {
		errs = append(errs, errors.New("CONSOLIDATION_LOCK=redis requires STORAGE_BACKEND=redis"))
	}
	if c.BeliefSnapshotMin < 0 || c.BeliefSnapshotMin > 1 {
		errs = append(errs, fmt.Errorf("BELIEF_SNAPSHOT_MIN must be within [0,1], got %v", c.BeliefSnapshotMin))
	}
	if c.CompressionThreshold < 1 {
		errs = append(errs, fmt.Errorf("COMPRESSION_THRESHOLD must be positive, got %d", c.CompressionThreshold))
	}
	return errors.Join(errs...)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
