package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	// Server settings
	ServerPort string

	// Database settings
	DBDriver      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBAutoMigrate bool

	// Rate limiting, disabled when RedisAddr is empty
	RedisAddr    string
	RateLimitRPS int

	// Key clients by X-Forwarded-For; only set behind a proxy that
	// overwrites the header.
	RateLimitTrustProxy bool

	// Event publishing, disabled when KafkaBrokers is empty
	KafkaBrokers []string
	KafkaTopic   string

	LogLevel slog.Level
}

func Load() *Config {
	return &Config{
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		DBDriver:            getEnv("DB_DRIVER", DriverPostgres),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          getEnv("DB_PASSWORD", "password"),
		DBName:              getEnv("DB_NAME", "ibanbank"),
		DBSSLMode:           getEnv("DB_SSLMODE", "disable"),
		DBAutoMigrate:       getBoolEnv("DB_AUTO_MIGRATE", true),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RateLimitRPS:        getIntEnv("RATE_LIMIT_RPS", 20),
		RateLimitTrustProxy: getBoolEnv("RATE_LIMIT_TRUST_PROXY", false),
		KafkaBrokers:        getListEnv("KAFKA_BROKERS"),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "transaction-events"),
		LogLevel:            getLevelEnv("LOG_LEVEL", slog.LevelInfo),
	}
}

// GetDBConnectionString returns a lib/pq keyword/value connection string.
func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getLevelEnv(key string, fallback slog.Level) slog.Level {
	if value, ok := os.LookupEnv(key); ok {
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err == nil {
			return level
		}
	}
	return fallback
}
