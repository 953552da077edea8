// Package config loads the example server configuration from the
// environment, with optional .env support.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Limiter algorithms selectable via RATE_LIMITER_ALGORITHM.
const (
	AlgorithmTokenBucket = "token_bucket"
	AlgorithmFixedWindow = "fixed_window"
)

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Limiter LimiterConfig
}

type ServerConfig struct {
	Port string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LimiterConfig struct {
	Algorithm string
	KeyHeader string

	// token bucket parameters
	Capacity float64
	Rate     float64

	// fixed window parameters
	Limit  int64
	Window time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	limiter, err := buildLimiterConfig()
	if err != nil {
		return Config{}, err
	}

	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Limiter: limiter,
	}, nil
}

func buildLimiterConfig() (LimiterConfig, error) {
	algorithm := getEnv("RATE_LIMITER_ALGORITHM", AlgorithmTokenBucket)
	if algorithm != AlgorithmTokenBucket && algorithm != AlgorithmFixedWindow {
		return LimiterConfig{}, fmt.Errorf("unsupported RATE_LIMITER_ALGORITHM: %s", algorithm)
	}

	capacity, err := floatEnv("RATE_LIMITER_CAPACITY", 10)
	if err != nil {
		return LimiterConfig{}, err
	}
	rate, err := floatEnv("RATE_LIMITER_RATE", 1)
	if err != nil {
		return LimiterConfig{}, err
	}
	limit, err := intEnv("RATE_LIMITER_LIMIT", 10)
	if err != nil {
		return LimiterConfig{}, err
	}
	windowSeconds, err := intEnv("RATE_LIMITER_WINDOW_SECONDS", 60)
	if err != nil {
		return LimiterConfig{}, err
	}

	return LimiterConfig{
		Algorithm: algorithm,
		KeyHeader: getEnv("RATE_LIMITER_KEY_HEADER", "X-Forwarded-For"),
		Capacity:  capacity,
		Rate:      rate,
		Limit:     int64(limit),
		Window:    time.Duration(windowSeconds) * time.Second,
	}, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
