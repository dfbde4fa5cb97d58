package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mumuon/drivefinder/route-service/offline"
	"github.com/mumuon/drivefinder/route-service/routecache"
)

// Config represents the service configuration
type Config struct {
	Server  ServerConfig  `validate:"required"`
	Cache   CacheConfig   `validate:"required"`
	Offline OfflineConfig `validate:"required"`
}

// ServerConfig represents HTTP server settings
type ServerConfig struct {
	Port         int           `validate:"gt=0,lte=65535"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
	MaxBodyBytes int64         `validate:"gt=0"`
}

// CacheConfig represents route cache settings
type CacheConfig struct {
	Size int           `validate:"gt=0"`
	TTL  time.Duration `validate:"gt=0"`
}

// OfflineConfig holds the defaults applied to estimate requests that omit them
type OfflineConfig struct {
	MinZoom  int     `validate:"gte=0,lte=22"`
	MaxZoom  int     `validate:"gte=0,lte=22,gtefield=MinZoom"`
	BufferKm float64 `validate:"gte=0"`
}

// EstimateOptions converts the defaults to estimator options.
func (c OfflineConfig) EstimateOptions() *offline.EstimateOptions {
	return &offline.EstimateOptions{
		MinZoom:  c.MinZoom,
		MaxZoom:  c.MaxZoom,
		BufferKm: c.BufferKm,
	}
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig(envPath string) (*Config, error) {
	// Prefer .env.local over .env so local development overrides shared config
	localEnvPath := strings.TrimSuffix(envPath, ".env") + ".env.local"
	if _, err := os.Stat(localEnvPath); err == nil {
		if err := loadEnvFile(localEnvPath); err != nil {
			return nil, fmt.Errorf("failed to load local env file: %w", err)
		}
	} else if _, err := os.Stat(envPath); err == nil {
		if err := loadEnvFile(envPath); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvInt("PORT", 8080),
			ReadTimeout:  getEnvSeconds("READ_TIMEOUT_SECONDS", 15*time.Second),
			WriteTimeout: getEnvSeconds("WRITE_TIMEOUT_SECONDS", 30*time.Second),
			MaxBodyBytes: int64(getEnvInt("MAX_BODY_BYTES", 10<<20)),
		},
		Cache: CacheConfig{
			Size: getEnvInt("ROUTE_CACHE_SIZE", routecache.DefaultSize),
			TTL:  getEnvSeconds("ROUTE_CACHE_TTL_SECONDS", routecache.DefaultTTL),
		},
		Offline: OfflineConfig{
			MinZoom:  getEnvInt("OFFLINE_MIN_ZOOM", offline.DefaultMinZoom),
			MaxZoom:  getEnvInt("OFFLINE_MAX_ZOOM", offline.DefaultMaxZoom),
			BufferKm: getEnvFloat("OFFLINE_BUFFER_KM", offline.DefaultBufferKm),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from a .env file
func loadEnvFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
			os.Setenv(key, value)
		}
	}

	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

// getEnvInt gets an environment variable as integer with a default value
func getEnvInt(key string, defaultVal int) int {
	if value := getEnv(key, ""); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// getEnvFloat gets an environment variable as float with a default value
func getEnvFloat(key string, defaultVal float64) float64 {
	if value := getEnv(key, ""); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvSeconds reads a whole number of seconds
func getEnvSeconds(key string, defaultVal time.Duration) time.Duration {
	return time.Duration(getEnvInt(key, int(defaultVal/time.Second))) * time.Second
}
