// Package config loads application configuration from environment variables
// (and an optional .env file), with later override from the settings
// database for values that should be rotatable without a restart.
//
// Configuration Loading Order:
// 1. Load from .env file (if present)
// 2. Load from environment variables (with defaults)
// 3. Update from settings database (takes precedence) via UpdateFromSettings
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/aristath/sentinel/internal/settings"
)

// Config holds application configuration.
type Config struct {
	DataDir          string // base directory for all databases, always absolute
	TradernetAPIKey  string // can be overridden by the settings DB
	TradernetAPISecret string
	MLServiceBaseURL string
	LogLevel         string
	Port             int
	DevMode          bool
	TradingMode      string // "research" | "live"

	// R2 backup configuration (optional; backup job no-ops if empty).
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
}

// Load reads configuration from environment variables.
//
// dataDirOverride optionally overrides the data directory (e.g. a CLI flag);
// it takes priority over SENTINEL_DATA_DIR.
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load() // absence is fine, not every environment ships a .env

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("SENTINEL_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		Port:               getEnvAsInt("GO_PORT", 8001),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		MLServiceBaseURL:   getEnv("ML_SERVICE_BASE_URL", settings.DefaultMLServiceBaseURL),
		TradernetAPIKey:    getEnv("TRADERNET_API_KEY", ""),
		TradernetAPISecret: getEnv("TRADERNET_API_SECRET", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		TradingMode:        getEnv("TRADING_MODE", settings.DefaultTradingMode),
		R2AccountID:        getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:      getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey:  getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:       getEnv("R2_BUCKET_NAME", ""),
	}

	return cfg, nil
}

// UpdateFromSettings overrides credential fields from the settings database,
// which takes precedence over environment variables. Called once the config
// database is open. A blank settings-DB value keeps the environment fallback.
func (c *Config) UpdateFromSettings(settingsRepo *settings.Repository) error {
	if apiKey := settingsRepo.GetString(settings.KeyTradernetAPIKey, ""); apiKey != "" {
		c.TradernetAPIKey = apiKey
	}
	if apiSecret := settingsRepo.GetString(settings.KeyTradernetAPISecret, ""); apiSecret != "" {
		c.TradernetAPISecret = apiSecret
	}
	if mlURL := settingsRepo.GetString(settings.KeyMLServiceBaseURL, ""); mlURL != "" {
		c.MLServiceBaseURL = mlURL
	}
	if mode := settingsRepo.GetString(settings.KeyTradingMode, ""); mode != "" {
		c.TradingMode = mode
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
