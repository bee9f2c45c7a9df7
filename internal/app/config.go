package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dialecticlabs/dialectic-backend/internal/logger"
	"github.com/dialecticlabs/dialectic-backend/internal/utils"
)

// Config is the process configuration: an optional yaml file provides
// the base, environment variables override field by field.
type Config struct {
	ServerAddr string `yaml:"server_addr"`
	LogMode    string `yaml:"log_mode"`

	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`

	StorageBucket       string `yaml:"storage_bucket"`
	GCPCredentialsFile  string `yaml:"gcp_credentials_file"`
	RedisAddr           string `yaml:"redis_addr"`
	RedisPassword       string `yaml:"redis_password"`
	BlobCacheTTLMinutes int    `yaml:"blob_cache_ttl_minutes"`

	JWTSecret      string   `yaml:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Load reads CONFIG_FILE if set, then applies env overrides.
func Load(log *logger.Logger) (*Config, error) {
	cfg := &Config{
		ServerAddr:          ":8080",
		LogMode:             "dev",
		DBDriver:            "postgres",
		BlobCacheTTLMinutes: 30,
		AllowedOrigins:      []string{"*"},
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("Failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("Failed to parse config file %s: %w", path, err)
		}
	}

	cfg.ServerAddr = utils.GetEnv("SERVER_ADDR", cfg.ServerAddr, log)
	cfg.LogMode = utils.GetEnv("LOG_MODE", cfg.LogMode, log)
	cfg.DBDriver = utils.GetEnv("DATABASE_DRIVER", cfg.DBDriver, log)
	cfg.DBDSN = utils.GetEnv("DATABASE_DSN", cfg.DBDSN, nil)
	cfg.StorageBucket = utils.GetEnv("STORAGE_BUCKET", cfg.StorageBucket, log)
	cfg.GCPCredentialsFile = utils.GetEnv("GCP_CREDENTIALS_FILE", cfg.GCPCredentialsFile, nil)
	cfg.RedisAddr = utils.GetEnv("REDIS_ADDR", cfg.RedisAddr, log)
	cfg.RedisPassword = utils.GetEnv("REDIS_PASSWORD", cfg.RedisPassword, nil)
	cfg.BlobCacheTTLMinutes = utils.GetEnvAsInt("BLOB_CACHE_TTL_MINUTES", cfg.BlobCacheTTLMinutes, log)
	cfg.JWTSecret = utils.GetEnv("JWT_SECRET", cfg.JWTSecret, nil)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DATABASE_DSN is required")
	}
	if cfg.StorageBucket == "" {
		return nil, fmt.Errorf("STORAGE_BUCKET is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

// BlobCacheTTL returns the cache TTL as a duration.
func (c *Config) BlobCacheTTL() time.Duration {
	return time.Duration(c.BlobCacheTTLMinutes) * time.Minute
}
