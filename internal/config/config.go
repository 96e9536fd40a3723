package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Map       MapConfig
	Numbering NumberingConfig
	Redis     RedisConfig
	SkipTrace SkipTraceConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// MapConfig holds the zoom filtering policy and viewport debounce window.
type MapConfig struct {
	FullDetailZoom int
	MidZoom        int
	MidCap         int
	LowCap         int
	Debounce       time.Duration
}

// NumberingConfig controls display number allocation.
type NumberingConfig struct {
	MaxRetries int
	LockTTL    time.Duration
}

// RedisConfig is optional. An empty Addr disables the shared allocation lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SkipTraceConfig holds vendor endpoints and credentials.
type SkipTraceConfig struct {
	BatchDataBaseURL    string
	BatchDataAPIKey     string
	EnformionBaseURL    string
	EnformionAPName     string
	EnformionAPPassword string
	Timeout             time.Duration
}

// Load reads configuration from environment variables.
// A .env file in the working directory is applied first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "parcelbook")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("MAP_FULL_DETAIL_ZOOM", 8)
	v.SetDefault("MAP_MID_ZOOM", 6)
	v.SetDefault("MAP_MID_CAP", 500)
	v.SetDefault("MAP_LOW_CAP", 200)
	v.SetDefault("MAP_DEBOUNCE", "200ms")
	v.SetDefault("NUMBERING_MAX_RETRIES", 5)
	v.SetDefault("NUMBERING_LOCK_TTL", "5s")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BATCHDATA_BASE_URL", "https://api.batchdata.com")
	v.SetDefault("ENFORMION_BASE_URL", "https://devapi.enformion.com")
	v.SetDefault("SKIPTRACE_TIMEOUT", "30s")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseList(v.GetString("CORS_ORIGINS")),
		},
		Map: MapConfig{
			FullDetailZoom: v.GetInt("MAP_FULL_DETAIL_ZOOM"),
			MidZoom:        v.GetInt("MAP_MID_ZOOM"),
			MidCap:         v.GetInt("MAP_MID_CAP"),
			LowCap:         v.GetInt("MAP_LOW_CAP"),
			Debounce:       v.GetDuration("MAP_DEBOUNCE"),
		},
		Numbering: NumberingConfig{
			MaxRetries: v.GetInt("NUMBERING_MAX_RETRIES"),
			LockTTL:    v.GetDuration("NUMBERING_LOCK_TTL"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		SkipTrace: SkipTraceConfig{
			BatchDataBaseURL:    v.GetString("BATCHDATA_BASE_URL"),
			BatchDataAPIKey:     v.GetString("BATCHDATA_API_KEY"),
			EnformionBaseURL:    v.GetString("ENFORMION_BASE_URL"),
			EnformionAPName:     v.GetString("ENFORMION_AP_NAME"),
			EnformionAPPassword: v.GetString("ENFORMION_AP_PASSWORD"),
			Timeout:             v.GetDuration("SKIPTRACE_TIMEOUT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	if c.Map.FullDetailZoom < 0 {
		return fmt.Errorf("MAP_FULL_DETAIL_ZOOM must be non-negative")
	}
	if c.Map.MidZoom > c.Map.FullDetailZoom {
		return fmt.Errorf("MAP_MID_ZOOM must be less than or equal to MAP_FULL_DETAIL_ZOOM")
	}
	if c.Map.MidCap < 0 || c.Map.LowCap < 0 {
		return fmt.Errorf("MAP_MID_CAP and MAP_LOW_CAP must be non-negative")
	}
	if c.Map.Debounce <= 0 {
		return fmt.Errorf("MAP_DEBOUNCE must be positive")
	}

	if c.Numbering.MaxRetries < 1 {
		return fmt.Errorf("NUMBERING_MAX_RETRIES must be at least 1")
	}
	if c.Numbering.LockTTL <= 0 {
		return fmt.Errorf("NUMBERING_LOCK_TTL must be positive")
	}

	if c.SkipTrace.Timeout <= 0 {
		return fmt.Errorf("SKIPTRACE_TIMEOUT must be positive")
	}

	return nil
}

// DSN builds the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Name,
		sslMode,
	)
}

// parseList splits a comma-separated string into a slice of trimmed values.
func parseList(raw string) []string {
	if raw == "" {
		return []string{}
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
